package domain

import (
	"sync"
	"time"
)

// BroadcastRoom groups a publisher and its viewers. Created lazily on first
// join, destroyed when the member set empties.
type BroadcastRoom struct {
	ID             string
	Members        map[string]*Member // connection ID -> member
	LastActivityAt time.Time
	StreamStarted  bool
	CreatedAt      time.Time
}

// Member is one connection's presence in a broadcast room.
type Member struct {
	ConnID   string
	UserID   string
	Username string
	UserType string
}

// NewBroadcastRoom creates an empty broadcast room.
func NewBroadcastRoom(id string) *BroadcastRoom {
	now := time.Now()
	return &BroadcastRoom{
		ID:             id,
		Members:        make(map[string]*Member),
		LastActivityAt: now,
		CreatedAt:      now,
	}
}

// Publisher returns the publisher member, if one is present.
func (r *BroadcastRoom) Publisher() (*Member, bool) {
	for _, m := range r.Members {
		if m.UserType == UserTypePublisher {
			return m, true
		}
	}
	return nil, false
}

// StreamStats holds observational ingest counters for one broadcast room.
type StreamStats struct {
	mu             sync.Mutex
	TotalFragments uint64
	TotalBytes     uint64
	DropCount      uint64
	Segments       uint64
}

// AddFragment records one accepted fragment.
func (s *StreamStats) AddFragment(size int) {
	s.mu.Lock()
	s.TotalFragments++
	s.TotalBytes += uint64(size)
	s.mu.Unlock()
}

// AddDrop records one fragment evicted on buffer overflow.
func (s *StreamStats) AddDrop() {
	s.mu.Lock()
	s.DropCount++
	s.mu.Unlock()
}

// AddSegment records one playback segment observed on disk.
func (s *StreamStats) AddSegment() {
	s.mu.Lock()
	s.Segments++
	s.mu.Unlock()
}

// Snapshot returns a copy of the counters.
func (s *StreamStats) Snapshot() StreamStatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return StreamStatsSnapshot{
		TotalFragments: s.TotalFragments,
		TotalBytes:     s.TotalBytes,
		DropCount:      s.DropCount,
		Segments:       s.Segments,
	}
}

// StreamStatsSnapshot is a point-in-time copy of StreamStats.
type StreamStatsSnapshot struct {
	TotalFragments uint64 `json:"totalFragments"`
	TotalBytes     uint64 `json:"totalBytes"`
	DropCount      uint64 `json:"dropCount"`
	Segments       uint64 `json:"segments"`
}
