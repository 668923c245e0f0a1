package registry

import (
	"sync"
	"time"

	"github.com/ngoclaithe/mncr-live/internal/domain"
)

// Registry owns the active broadcast rooms. It is an explicit context object
// passed into every handler rather than package-level state, so handlers stay
// independently testable.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*domain.BroadcastRoom
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{rooms: make(map[string]*domain.BroadcastRoom)}
}

// Join adds a member to a room, creating the room lazily on first join.
// It returns the member count after the join and whether the stream already
// started (late joiners need the current playback state).
func (r *Registry) Join(roomID string, m *domain.Member) (count int, started bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomID]
	if !ok {
		room = domain.NewBroadcastRoom(roomID)
		r.rooms[roomID] = room
	}
	room.Members[m.ConnID] = m
	room.LastActivityAt = time.Now()
	return len(room.Members), room.StreamStarted
}

// Leave removes a member. It reports whether the leaving member was the
// publisher, the remaining member count, and whether the room was deleted
// because it emptied.
func (r *Registry) Leave(roomID, connID string) (member *domain.Member, remaining int, deleted bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return nil, 0, false
	}
	member, ok = room.Members[connID]
	if !ok {
		return nil, len(room.Members), false
	}
	delete(room.Members, connID)
	room.LastActivityAt = time.Now()

	if len(room.Members) == 0 {
		delete(r.rooms, roomID)
		return member, 0, true
	}
	return member, len(room.Members), false
}

// Touch updates a room's activity timestamp.
func (r *Registry) Touch(roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if room, ok := r.rooms[roomID]; ok {
		room.LastActivityAt = time.Now()
	}
}

// MarkStarted flips the room's started flag. It returns false if the room is
// gone or was already started, so "stream live" fires at most once per room.
func (r *Registry) MarkStarted(roomID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[roomID]
	if !ok || room.StreamStarted {
		return false
	}
	room.StreamStarted = true
	room.LastActivityAt = time.Now()
	return true
}

// ClearStarted resets the started flag when a broadcast ends while viewers
// remain in the room.
func (r *Registry) ClearStarted(roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if room, ok := r.rooms[roomID]; ok {
		room.StreamStarted = false
	}
}

// MemberCount returns the number of members in a room.
func (r *Registry) MemberCount(roomID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[roomID]
	if !ok {
		return 0
	}
	return len(room.Members)
}

// Publisher returns the room's publisher member, if present.
func (r *Registry) Publisher(roomID string) (*domain.Member, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[roomID]
	if !ok {
		return nil, false
	}
	return room.Publisher()
}

// Exists reports whether a room is active.
func (r *Registry) Exists(roomID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rooms[roomID]
	return ok
}
