package hub

import (
	"testing"
	"time"

	"github.com/ngoclaithe/mncr-live/internal/config"
	"github.com/ngoclaithe/mncr-live/internal/domain"
)

func newTestHub() *Hub {
	h := NewHub(config.WebSocketConfig{})
	go h.Run()
	return h
}

func registerClient(t *testing.T, h *Hub, connID string, sendCap int) *Client {
	t.Helper()
	c := &Client{
		ID:      connID,
		Hub:     h,
		Send:    make(chan []byte, sendCap),
		Session: domain.NewSession(connID),
	}
	h.Register(c)

	deadline := time.Now().Add(time.Second)
	for {
		if _, ok := h.ClientByID(connID); ok {
			return c
		}
		if time.Now().After(deadline) {
			t.Fatalf("client %s never registered", connID)
		}
		time.Sleep(time.Millisecond)
	}
}

func waitGone(t *testing.T, h *Hub, connID string) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for {
		if _, ok := h.ClientByID(connID); !ok {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("client %s never unregistered", connID)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestSendMessageAfterUnregisterIsDropped(t *testing.T) {
	h := newTestHub()
	c := registerClient(t, h, "conn-1", 4)

	h.Unregister(c)
	waitGone(t, h, "conn-1")

	// The send channel is closed by now. A late dispatch from the
	// connection's read loop must be a silent drop.
	if err := c.SendMessage(map[string]string{"type": "pong"}); err != nil {
		t.Fatalf("SendMessage after unregister: %v", err)
	}
	if err := h.SendToClient("conn-1", map[string]string{"type": "pong"}); err != nil {
		t.Fatalf("SendToClient after unregister: %v", err)
	}
}

func TestBroadcastRemovesBackpressuredClient(t *testing.T) {
	h := newTestHub()
	slow := registerClient(t, h, "slow", 1)
	fast := registerClient(t, h, "fast", 4)
	h.JoinRoom(slow, "room-1")
	h.JoinRoom(fast, "room-1")

	// Fill the slow client's buffer so the broadcast hits backpressure.
	slow.Send <- []byte("x")

	if err := h.BroadcastToRoom("room-1", map[string]string{"type": "chat_message"}, ""); err != nil {
		t.Fatalf("BroadcastToRoom: %v", err)
	}

	waitGone(t, h, "slow")
	select {
	case <-fast.Send:
	case <-time.After(time.Second):
		t.Fatal("fast client never received the broadcast")
	}

	// Further broadcasts must not panic on the removed client's channel.
	if err := h.BroadcastToRoom("room-1", map[string]string{"type": "chat_message"}, ""); err != nil {
		t.Fatalf("BroadcastToRoom after removal: %v", err)
	}
	if err := slow.SendMessage(map[string]string{"type": "pong"}); err != nil {
		t.Fatalf("SendMessage on removed client: %v", err)
	}
}

func TestTrySendReportsBackpressureOnly(t *testing.T) {
	c := &Client{ID: "conn-1", Send: make(chan []byte, 1), Session: domain.NewSession("conn-1")}

	if !c.trySend([]byte("a")) {
		t.Fatal("trySend with free buffer reported backpressure")
	}
	if c.trySend([]byte("b")) {
		t.Fatal("trySend with full buffer reported delivery")
	}

	c.closeSend()
	c.closeSend()
	if !c.trySend([]byte("c")) {
		t.Fatal("trySend on closed client reported backpressure")
	}
}
