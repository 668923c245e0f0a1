package domain

// CallStatus is the lifecycle state of a 1:1 call room.
type CallStatus string

const (
	CallStatusWaiting  CallStatus = "waiting"
	CallStatusActive   CallStatus = "active"
	CallStatusEnded    CallStatus = "ended"
	CallStatusRejected CallStatus = "rejected"
)

// CallRoom holds exactly two authenticated parties. It is created by the
// REST message-send flow and destroyed on end/reject/empty.
type CallRoom struct {
	ID         string
	CallerID   string
	ReceiverID string
	CallType   string // "audio" | "video"
	Status     CallStatus

	// Participants maps connection ID to the verified user ID that joined
	// with it. Never more than two entries.
	Participants map[string]string
}

// NewCallRoom creates a call room in the Waiting state.
func NewCallRoom(id, callerID, receiverID, callType string) *CallRoom {
	return &CallRoom{
		ID:           id,
		CallerID:     callerID,
		ReceiverID:   receiverID,
		CallType:     callType,
		Status:       CallStatusWaiting,
		Participants: make(map[string]string),
	}
}

// IsParty reports whether userID is the caller or the receiver.
func (r *CallRoom) IsParty(userID string) bool {
	return userID == r.CallerID || userID == r.ReceiverID
}

// IsParticipant reports whether the connection currently participates.
func (r *CallRoom) IsParticipant(connID string) bool {
	_, ok := r.Participants[connID]
	return ok
}

// Counterpart returns the connection ID of the other participant, if any.
func (r *CallRoom) Counterpart(connID string) (string, bool) {
	for id := range r.Participants {
		if id != connID {
			return id, true
		}
	}
	return "", false
}
