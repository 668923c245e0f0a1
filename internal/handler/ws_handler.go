package handler

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/ngoclaithe/mncr-live/internal/call"
	"github.com/ngoclaithe/mncr-live/internal/domain"
	"github.com/ngoclaithe/mncr-live/internal/hub"
	"github.com/ngoclaithe/mncr-live/internal/service"
	pkglog "github.com/ngoclaithe/mncr-live/pkg/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSHandler handles WebSocket connections and routes control messages to the
// stream service and the call coordinator.
type WSHandler struct {
	hub         *hub.Hub
	streams     service.StreamService
	coordinator *call.Coordinator
}

// NewWSHandler creates a new WebSocket handler.
func NewWSHandler(h *hub.Hub, streams service.StreamService, coordinator *call.Coordinator) *WSHandler {
	return &WSHandler{
		hub:         h,
		streams:     streams,
		coordinator: coordinator,
	}
}

// HandleWebSocket handles WebSocket upgrade and message routing.
func (h *WSHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	l := pkglog.L()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		l.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	clientID := uuid.New().String()
	client := &hub.Client{
		ID:      clientID,
		Hub:     h.hub,
		Conn:    conn,
		Send:    make(chan []byte, 256),
		Session: domain.NewSession(clientID),
	}

	// Abrupt transport close leaves every room/call the session belonged to.
	client.SetDisconnectHandler(func(c *hub.Client) {
		h.coordinator.HandleDisconnect(c)
		h.streams.HandleDisconnect(c)
	})

	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump(h.handleMessage)
}

// handleMessage dispatches one inbound control message. Failures never
// propagate; they become error events on the originating connection only.
func (h *WSHandler) handleMessage(client *hub.Client, message []byte) {
	l := pkglog.L()

	var base domain.BaseMessage
	if err := json.Unmarshal(message, &base); err != nil {
		client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Invalid message format"))
		return
	}

	switch base.Type {
	case domain.MsgTypeJoinRoomStream:
		var msg domain.JoinRoomStreamMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Invalid join_room_stream message"))
			return
		}
		if err := h.streams.HandleJoinRoom(client, msg.RoomID, msg.UserID, msg.Username, msg.UserType); err != nil {
			l.Error().Err(err).Str(pkglog.FieldClientID, client.ID).Msg("join room failed")
		}

	case domain.MsgTypeLeaveRoomStream:
		var msg domain.LeaveRoomStreamMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Invalid leave_room_stream message"))
			return
		}
		if err := h.streams.HandleLeaveRoom(client, msg.RoomID); err != nil {
			l.Error().Err(err).Str(pkglog.FieldClientID, client.ID).Msg("leave room failed")
		}

	case domain.MsgTypeInitSegment:
		var msg domain.InitSegmentMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Invalid mp4_init_segment message"))
			return
		}
		if err := h.streams.HandleInitSegment(client, msg.RoomID, msg.Data); err != nil {
			l.Error().Err(err).Str(pkglog.FieldClientID, client.ID).Msg("init segment failed")
		}

	case domain.MsgTypeStreamChunk:
		var msg domain.StreamChunkMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			// Chunks are unacknowledged; drop malformed ones silently.
			return
		}
		h.streams.HandleChunk(client, msg.RoomID, msg.Data, msg.Seq)

	case domain.MsgTypeChatMessage:
		var msg domain.ChatMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			return
		}
		h.streams.HandleChat(client, msg.RoomID, msg.Content)

	case domain.MsgTypeGiftMessage:
		var msg domain.GiftMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			return
		}
		h.streams.HandleGift(client, msg.RoomID, msg.GiftID, msg.Quantity)

	case domain.MsgTypeJoinCallRoom:
		var msg domain.JoinCallRoomMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Invalid join_call_room message"))
			return
		}
		if err := h.coordinator.Join(client, msg.CallRoomID, msg.Token); err != nil {
			l.Error().Err(err).Str(pkglog.FieldClientID, client.ID).Msg("join call room failed")
		}

	case domain.MsgTypeWebRTCOffer, domain.MsgTypeWebRTCAnswer, domain.MsgTypeICECandidate:
		var msg domain.SignalMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Invalid signal message"))
			return
		}
		if err := h.coordinator.Relay(client, base.Type, msg.CallRoomID, msg.Payload); err != nil {
			l.Error().Err(err).Str(pkglog.FieldClientID, client.ID).Msg("signal relay failed")
		}

	case domain.MsgTypeCallAnswer:
		h.handleCallControl(client, message, h.coordinator.Answer)

	case domain.MsgTypeCallReject:
		h.handleCallControl(client, message, h.coordinator.Reject)

	case domain.MsgTypeCallEnd, domain.MsgTypeHangUp:
		h.handleCallControl(client, message, h.coordinator.End)

	case domain.MsgTypePing:
		client.SendMessage(map[string]string{"type": domain.MsgTypePong})

	default:
		client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Unknown message type"))
	}
}

func (h *WSHandler) handleCallControl(client *hub.Client, message []byte, op func(*hub.Client, string, string) error) {
	var msg domain.CallControlMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Invalid call control message"))
		return
	}
	if err := op(client, msg.CallRoomID, msg.Token); err != nil {
		pkglog.L().Error().Err(err).Str(pkglog.FieldClientID, client.ID).
			Str(pkglog.FieldCallRoomID, msg.CallRoomID).Msg("call control failed")
	}
}
