package call

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/ngoclaithe/mncr-live/internal/domain"
	"github.com/ngoclaithe/mncr-live/internal/hub"
	"github.com/ngoclaithe/mncr-live/pkg/jwt"
	pkglog "github.com/ngoclaithe/mncr-live/pkg/log"
)

// IdentityVerifier validates the signed token presented with each privileged
// call operation. There is no persisted per-connection call auth; every
// control message is re-verified.
type IdentityVerifier interface {
	Verify(token string) (*jwt.Identity, error)
}

// ReasonParticipantDisconnected is the call_ended reason when an active call
// loses a participant to an abrupt disconnect.
const ReasonParticipantDisconnected = "participant disconnected"

// Coordinator relays WebRTC-style signaling between exactly two authenticated
// parties per call room and enforces the room lifecycle:
// Waiting -> Active -> Ended|Rejected.
type Coordinator struct {
	hub      *hub.Hub
	verifier IdentityVerifier

	mu    sync.Mutex
	rooms map[string]*domain.CallRoom
}

// NewCoordinator creates a coordinator with no rooms.
func NewCoordinator(h *hub.Hub, verifier IdentityVerifier) *Coordinator {
	return &Coordinator{
		hub:      h,
		verifier: verifier,
		rooms:    make(map[string]*domain.CallRoom),
	}
}

// CreateRoom registers a call room in the Waiting state. It is invoked by the
// REST layer when a call-type message is created, before either party connects.
func (c *Coordinator) CreateRoom(callRoomID, callerID, receiverID, callType string) (*domain.CallRoom, error) {
	if callerID == "" || receiverID == "" {
		return nil, fmt.Errorf("caller and receiver are required")
	}
	if callRoomID == "" {
		callRoomID = uuid.New().String()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.rooms[callRoomID]; exists {
		return nil, fmt.Errorf("call room %s already exists", callRoomID)
	}
	room := domain.NewCallRoom(callRoomID, callerID, receiverID, callType)
	c.rooms[callRoomID] = room

	pkglog.L().Info().Str(pkglog.FieldCallRoomID, callRoomID).
		Str("caller_id", callerID).Str("receiver_id", receiverID).
		Msg("call room created")
	return room, nil
}

// Join adds an authenticated party to a call room. The second join
// transitions the room to Active and notifies both parties.
func (c *Coordinator) Join(client *hub.Client, callRoomID, token string) error {
	identity, err := c.verifier.Verify(token)
	if err != nil {
		return client.SendMessage(domain.NewErrorMessage(domain.ErrCodeUnauthorized, "Invalid token"))
	}

	c.mu.Lock()
	room, ok := c.rooms[callRoomID]
	if !ok {
		c.mu.Unlock()
		return client.SendMessage(domain.NewErrorMessage(domain.ErrCodeNotFound, "Call room not found"))
	}
	if !room.IsParty(identity.ID) {
		c.mu.Unlock()
		return client.SendMessage(domain.NewErrorMessage(domain.ErrCodeForbidden, "Not a party to this call"))
	}
	if room.IsParticipant(client.ID) {
		count := len(room.Participants)
		c.mu.Unlock()
		return client.SendMessage(&domain.CallRoomJoinedMessage{
			Type:             domain.MsgTypeCallRoomJoined,
			CallRoomID:       callRoomID,
			ParticipantCount: count,
		})
	}
	if len(room.Participants) >= 2 {
		c.mu.Unlock()
		return client.SendMessage(domain.NewErrorMessage(domain.ErrCodeFull, "Call room is full"))
	}

	room.Participants[client.ID] = identity.ID
	becameActive := false
	if len(room.Participants) == 2 && room.Status == domain.CallStatusWaiting {
		room.Status = domain.CallStatusActive
		becameActive = true
	}
	participants := participantIDs(room)
	count := len(room.Participants)
	callType := room.CallType
	c.mu.Unlock()

	client.Session.AddCallRoom(callRoomID)
	c.hub.BindIdentity(client, identity.ID)

	if err := client.SendMessage(&domain.CallRoomJoinedMessage{
		Type:             domain.MsgTypeCallRoomJoined,
		CallRoomID:       callRoomID,
		ParticipantCount: count,
	}); err != nil {
		return err
	}

	if becameActive {
		started := &domain.CallStartedMessage{
			Type:       domain.MsgTypeCallStarted,
			CallRoomID: callRoomID,
			CallType:   callType,
		}
		for _, connID := range participants {
			c.hub.SendToClient(connID, started)
		}
	}
	return nil
}

// Relay forwards an opaque signaling payload to the other participant.
// Non-participants are ignored without an error; the payload is never echoed
// back to the sender.
func (c *Coordinator) Relay(client *hub.Client, msgType, callRoomID string, payload json.RawMessage) error {
	forwardType, ok := forwardTypes[msgType]
	if !ok {
		return client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Unknown signal type"))
	}

	c.mu.Lock()
	room, exists := c.rooms[callRoomID]
	if !exists {
		c.mu.Unlock()
		return client.SendMessage(domain.NewErrorMessage(domain.ErrCodeNotFound, "Call room not found"))
	}
	if !room.IsParticipant(client.ID) {
		c.mu.Unlock()
		return nil
	}
	counterpart, hasPeer := room.Counterpart(client.ID)
	fromUserID := room.Participants[client.ID]
	c.mu.Unlock()

	if !hasPeer {
		return nil
	}
	return c.hub.SendToClient(counterpart, &domain.SignalForwardMessage{
		Type:       forwardType,
		CallRoomID: callRoomID,
		FromUserID: fromUserID,
		Payload:    payload,
	})
}

// Answer notifies the caller that the receiver accepted. Delivery goes to the
// caller's live connection through the identity index.
func (c *Coordinator) Answer(client *hub.Client, callRoomID, token string) error {
	identity, err := c.verifier.Verify(token)
	if err != nil {
		return client.SendMessage(domain.NewErrorMessage(domain.ErrCodeUnauthorized, "Invalid token"))
	}

	c.mu.Lock()
	room, ok := c.rooms[callRoomID]
	if !ok {
		c.mu.Unlock()
		return client.SendMessage(domain.NewErrorMessage(domain.ErrCodeNotFound, "Call room not found"))
	}
	if identity.ID != room.ReceiverID {
		c.mu.Unlock()
		return client.SendMessage(domain.NewErrorMessage(domain.ErrCodeForbidden, "Only the receiver can answer"))
	}
	callerID := room.CallerID
	c.mu.Unlock()

	return c.hub.SendToIdentity(callerID, &domain.CallEventMessage{
		Type:       domain.MsgTypeCallAnswered,
		CallRoomID: callRoomID,
	})
}

// Reject notifies the caller, moves the room to Rejected and tears it down.
func (c *Coordinator) Reject(client *hub.Client, callRoomID, token string) error {
	identity, err := c.verifier.Verify(token)
	if err != nil {
		return client.SendMessage(domain.NewErrorMessage(domain.ErrCodeUnauthorized, "Invalid token"))
	}

	c.mu.Lock()
	room, ok := c.rooms[callRoomID]
	if !ok {
		c.mu.Unlock()
		return client.SendMessage(domain.NewErrorMessage(domain.ErrCodeNotFound, "Call room not found"))
	}
	if identity.ID != room.ReceiverID {
		c.mu.Unlock()
		return client.SendMessage(domain.NewErrorMessage(domain.ErrCodeForbidden, "Only the receiver can reject"))
	}
	room.Status = domain.CallStatusRejected
	callerID := room.CallerID
	c.teardownLocked(room)
	c.mu.Unlock()

	return c.hub.SendToIdentity(callerID, &domain.CallEventMessage{
		Type:       domain.MsgTypeCallRejected,
		CallRoomID: callRoomID,
	})
}

// End finishes a call. Caller, receiver, or any current participant may end;
// everyone in the room is notified and the room is torn down.
func (c *Coordinator) End(client *hub.Client, callRoomID, token string) error {
	identity, err := c.verifier.Verify(token)
	if err != nil {
		return client.SendMessage(domain.NewErrorMessage(domain.ErrCodeUnauthorized, "Invalid token"))
	}

	c.mu.Lock()
	room, ok := c.rooms[callRoomID]
	if !ok {
		c.mu.Unlock()
		return client.SendMessage(domain.NewErrorMessage(domain.ErrCodeNotFound, "Call room not found"))
	}
	if !room.IsParty(identity.ID) && !room.IsParticipant(client.ID) {
		c.mu.Unlock()
		return client.SendMessage(domain.NewErrorMessage(domain.ErrCodeForbidden, "Not a party to this call"))
	}
	room.Status = domain.CallStatusEnded
	participants := participantIDs(room)
	c.teardownLocked(room)
	c.mu.Unlock()

	ended := &domain.CallEventMessage{
		Type:       domain.MsgTypeCallEnded,
		CallRoomID: callRoomID,
	}
	for _, connID := range participants {
		c.hub.SendToClient(connID, ended)
	}
	return nil
}

// Leave removes one participant. An active call dropping to one participant
// is treated as ended, not renegotiated: the remaining party gets call_ended
// with the disconnect reason and the room is deleted.
func (c *Coordinator) Leave(client *hub.Client, callRoomID string) {
	c.mu.Lock()
	room, ok := c.rooms[callRoomID]
	if !ok || !room.IsParticipant(client.ID) {
		c.mu.Unlock()
		return
	}
	delete(room.Participants, client.ID)
	client.Session.RemoveCallRoom(callRoomID)

	if len(room.Participants) == 0 {
		c.teardownLocked(room)
		c.mu.Unlock()
		return
	}

	if room.Status == domain.CallStatusActive {
		room.Status = domain.CallStatusEnded
		remaining := participantIDs(room)
		c.teardownLocked(room)
		c.mu.Unlock()

		ended := &domain.CallEventMessage{
			Type:       domain.MsgTypeCallEnded,
			CallRoomID: callRoomID,
			Reason:     ReasonParticipantDisconnected,
		}
		for _, connID := range remaining {
			c.hub.SendToClient(connID, ended)
		}
		return
	}
	c.mu.Unlock()
}

// HandleDisconnect removes a dropped connection from every call room its
// session belonged to.
func (c *Coordinator) HandleDisconnect(client *hub.Client) {
	for _, callRoomID := range client.Session.CallRooms() {
		c.Leave(client, callRoomID)
	}
}

// RoomCount returns the number of active call rooms.
func (c *Coordinator) RoomCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.rooms)
}

// teardownLocked clears session-level call bookkeeping for every remaining
// participant and deletes the room record. A torn-down room never resurrects;
// later operations against its ID get NOT_FOUND.
func (c *Coordinator) teardownLocked(room *domain.CallRoom) {
	for connID := range room.Participants {
		if participant, ok := c.hub.ClientByID(connID); ok {
			participant.Session.RemoveCallRoom(room.ID)
		}
	}
	room.Participants = make(map[string]string)
	delete(c.rooms, room.ID)

	pkglog.L().Info().Str(pkglog.FieldCallRoomID, room.ID).
		Str("status", string(room.Status)).Msg("call room torn down")
}

func participantIDs(room *domain.CallRoom) []string {
	ids := make([]string, 0, len(room.Participants))
	for connID := range room.Participants {
		ids = append(ids, connID)
	}
	return ids
}

var forwardTypes = map[string]string{
	domain.MsgTypeWebRTCOffer:  domain.MsgTypeWebRTCOfferFwd,
	domain.MsgTypeWebRTCAnswer: domain.MsgTypeWebRTCAnswerFwd,
	domain.MsgTypeICECandidate: domain.MsgTypeICECandidateFwd,
}
