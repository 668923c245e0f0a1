package domain

import (
	"sync"
	"time"
)

// Session is the per-connection ephemeral state. It is created on connect,
// mutated on join/leave, and destroyed on disconnect. Nothing here survives
// the connection.
type Session struct {
	ID            string
	UserID        string
	Username      string
	UserType      string
	CurrentRoomID string
	CallRoomIDs   map[string]bool
	CreatedAt     time.Time
	LastActiveAt  time.Time
	mu            sync.RWMutex
}

// NewSession creates a new session for a connection.
func NewSession(id string) *Session {
	now := time.Now()
	return &Session{
		ID:           id,
		CallRoomIDs:  make(map[string]bool),
		CreatedAt:    now,
		LastActiveAt: now,
	}
}

// SetIdentity records the identity presented on a broadcast room join.
func (s *Session) SetIdentity(userID, username, userType string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.UserID = userID
	s.Username = username
	s.UserType = userType
	s.LastActiveAt = time.Now()
}

// JoinRoom sets the current broadcast room.
func (s *Session) JoinRoom(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CurrentRoomID = roomID
	s.LastActiveAt = time.Now()
}

// LeaveRoom clears the current broadcast room.
func (s *Session) LeaveRoom() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CurrentRoomID = ""
	s.LastActiveAt = time.Now()
}

// GetCurrentRoom returns the current broadcast room ID.
func (s *Session) GetCurrentRoom() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.CurrentRoomID
}

// GetUserID returns the user ID.
func (s *Session) GetUserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.UserID
}

// GetUsername returns the display name.
func (s *Session) GetUsername() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Username
}

// IsPublisher reports whether the session joined its room as publisher.
func (s *Session) IsPublisher() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.UserType == UserTypePublisher
}

// AddCallRoom records membership in a call room.
func (s *Session) AddCallRoom(callRoomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallRoomIDs[callRoomID] = true
}

// RemoveCallRoom clears membership in a call room.
func (s *Session) RemoveCallRoom(callRoomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.CallRoomIDs, callRoomID)
}

// CallRooms returns a snapshot of the call rooms this session belongs to.
func (s *Session) CallRooms() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.CallRoomIDs))
	for id := range s.CallRoomIDs {
		ids = append(ids, id)
	}
	return ids
}

// UpdateActivity updates the last active timestamp.
func (s *Session) UpdateActivity() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LastActiveAt = time.Now()
}

// User types for broadcast room joins.
const (
	UserTypePublisher = "publisher"
	UserTypeViewer    = "viewer"
)
