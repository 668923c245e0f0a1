package service

import (
	"github.com/ngoclaithe/mncr-live/internal/domain"
	"github.com/ngoclaithe/mncr-live/internal/hub"
)

// StreamService coordinates broadcast rooms: membership, media ingest and
// fan-out of room events.
type StreamService interface {
	HandleJoinRoom(c *hub.Client, roomID, userID, username, userType string) error
	HandleLeaveRoom(c *hub.Client, roomID string) error
	HandleInitSegment(c *hub.Client, roomID string, data []byte) error
	HandleChunk(c *hub.Client, roomID string, data []byte, seq uint64) error
	HandleChat(c *hub.Client, roomID, content string) error
	HandleGift(c *hub.Client, roomID, giftID string, quantity int) error
	HandleDisconnect(c *hub.Client)
	Stats(roomID string) (domain.StreamStatsSnapshot, bool)
	Close()
}
