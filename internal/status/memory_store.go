package status

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps broadcast status in memory. Used for single-instance
// deployments and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	statuses map[string]*broadcastStatus
}

// NewMemoryStore creates an empty in-memory status store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{statuses: make(map[string]*broadcastStatus)}
}

// SetLive marks a broadcast live with its playback path.
func (s *MemoryStore) SetLive(ctx context.Context, roomID, playbackPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[roomID] = &broadcastStatus{
		RoomID:       roomID,
		IsLive:       true,
		PlaybackPath: playbackPath,
		UpdatedAt:    time.Now().Unix(),
	}
	return nil
}

// ClearLive marks a broadcast not-live and clears its playback path.
func (s *MemoryStore) ClearLive(ctx context.Context, roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[roomID] = &broadcastStatus{
		RoomID:    roomID,
		IsLive:    false,
		UpdatedAt: time.Now().Unix(),
	}
	return nil
}

// IsLive reports the recorded live flag and playback path for a room.
func (s *MemoryStore) IsLive(roomID string) (bool, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.statuses[roomID]
	if !ok {
		return false, ""
	}
	return st.IsLive, st.PlaybackPath
}

// Close is a no-op for the memory store.
func (s *MemoryStore) Close() error {
	return nil
}
