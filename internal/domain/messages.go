package domain

import "encoding/json"

// WebSocket message types from client.
const (
	MsgTypeJoinRoomStream  = "join_room_stream"
	MsgTypeLeaveRoomStream = "leave_room_stream"
	MsgTypeInitSegment     = "mp4_init_segment"
	MsgTypeStreamChunk     = "stream_chunk"
	MsgTypeChatMessage     = "chat_message"
	MsgTypeGiftMessage     = "gift_message"
	MsgTypeJoinCallRoom    = "join_call_room"
	MsgTypeWebRTCOffer     = "webrtc_offer"
	MsgTypeWebRTCAnswer    = "webrtc_answer"
	MsgTypeICECandidate    = "ice_candidate"
	MsgTypeCallAnswer      = "call_answer"
	MsgTypeCallReject      = "call_reject"
	MsgTypeCallEnd         = "call_end"
	MsgTypeHangUp          = "hang_up"
	MsgTypePing            = "ping"
)

// WebSocket message types to client.
const (
	MsgTypeRoomJoined         = "room_joined"
	MsgTypeUserJoined         = "user_joined"
	MsgTypeUserLeft           = "user_left"
	MsgTypeViewerCount        = "viewer_count_updated"
	MsgTypeStreamLive         = "stream_live"
	MsgTypeStreamEnded        = "stream_ended"
	MsgTypeCallRoomJoined     = "call_room_joined"
	MsgTypeCallStarted        = "call_started"
	MsgTypeWebRTCOfferFwd     = "webrtc_offerd"
	MsgTypeWebRTCAnswerFwd    = "webrtc_answerd"
	MsgTypeICECandidateFwd    = "ice_candidated"
	MsgTypeCallAnswered       = "call_answered"
	MsgTypeCallRejected       = "call_rejected"
	MsgTypeCallEnded          = "call_ended"
	MsgTypeError              = "error"
	MsgTypePong               = "pong"
)

// BaseMessage is the base structure for all WebSocket messages.
type BaseMessage struct {
	Type string `json:"type"`
}

// Client -> Server messages

// JoinRoomStreamMessage joins a broadcast room as publisher or viewer.
type JoinRoomStreamMessage struct {
	Type     string `json:"type"`
	RoomID   string `json:"roomId"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
	UserType string `json:"userType"` // "publisher" | "viewer"
}

// LeaveRoomStreamMessage leaves a broadcast room.
type LeaveRoomStreamMessage struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId"`
}

// InitSegmentMessage carries the one-time container header, sent by the
// publisher before the first chunk.
type InitSegmentMessage struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId"`
	Data   []byte `json:"data"`
}

// StreamChunkMessage carries one media fragment. Unacknowledged.
type StreamChunkMessage struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId"`
	Data   []byte `json:"data"`
	Seq    uint64 `json:"seq"`
}

// ChatMessage is relayed to everyone in the broadcast room.
type ChatMessage struct {
	Type     string `json:"type"`
	RoomID   string `json:"roomId"`
	Username string `json:"username"`
	Content  string `json:"content"`
}

// GiftMessage is relayed to everyone in the broadcast room.
type GiftMessage struct {
	Type     string `json:"type"`
	RoomID   string `json:"roomId"`
	Username string `json:"username"`
	GiftID   string `json:"giftId"`
	Quantity int    `json:"quantity"`
}

// JoinCallRoomMessage joins a 1:1 call room. The token is re-verified.
type JoinCallRoomMessage struct {
	Type       string `json:"type"`
	CallRoomID string `json:"callRoomId"`
	Token      string `json:"token"`
}

// SignalMessage carries an opaque WebRTC signaling payload to relay.
type SignalMessage struct {
	Type       string          `json:"type"`
	CallRoomID string          `json:"callRoomId"`
	Payload    json.RawMessage `json:"payload"`
}

// CallControlMessage covers call_answer, call_reject, call_end and hang_up.
type CallControlMessage struct {
	Type       string `json:"type"`
	CallRoomID string `json:"callRoomId"`
	Token      string `json:"token"`
}

// Server -> Client messages

// RoomJoinedMessage confirms a broadcast room join.
type RoomJoinedMessage struct {
	Type          string `json:"type"`
	RoomID        string `json:"roomId"`
	ViewerCount   int    `json:"viewerCount"`
	StreamStarted bool   `json:"streamStarted"`
}

// MemberMessage announces a member joining or leaving a broadcast room.
type MemberMessage struct {
	Type     string `json:"type"`
	RoomID   string `json:"roomId"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// ViewerCountMessage is broadcast whenever room membership changes.
type ViewerCountMessage struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId"`
	Count  int    `json:"count"`
}

// StreamLiveMessage is broadcast once per broadcast when playback is ready.
type StreamLiveMessage struct {
	Type        string   `json:"type"`
	RoomID      string   `json:"roomId"`
	PlaybackURL string   `json:"playbackUrl"`
	Qualities   []string `json:"qualities"`
}

// StreamEndedMessage is broadcast when the publisher stops or disconnects.
type StreamEndedMessage struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId"`
}

// CallRoomJoinedMessage confirms a call room join.
type CallRoomJoinedMessage struct {
	Type             string `json:"type"`
	CallRoomID       string `json:"callRoomId"`
	ParticipantCount int    `json:"participantCount"`
}

// CallStartedMessage is sent to both parties when the second one joins.
type CallStartedMessage struct {
	Type       string `json:"type"`
	CallRoomID string `json:"callRoomId"`
	CallType   string `json:"callType"`
}

// SignalForwardMessage delivers a relayed signaling payload to the counterpart.
type SignalForwardMessage struct {
	Type       string          `json:"type"`
	CallRoomID string          `json:"callRoomId"`
	FromUserID string          `json:"fromUserId"`
	Payload    json.RawMessage `json:"payload"`
}

// CallEventMessage covers call_answered, call_rejected and call_ended.
type CallEventMessage struct {
	Type       string `json:"type"`
	CallRoomID string `json:"callRoomId"`
	Reason     string `json:"reason,omitempty"`
}

// ErrorMessage is returned to the originating connection only.
type ErrorMessage struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes
const (
	ErrCodeUnauthorized  = "UNAUTHORIZED"
	ErrCodeForbidden     = "FORBIDDEN"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeFull          = "FULL"
	ErrCodeBadRequest    = "BAD_REQUEST"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// NewErrorMessage creates a new error message.
func NewErrorMessage(code, message string) *ErrorMessage {
	return &ErrorMessage{
		Type:    MsgTypeError,
		Code:    code,
		Message: message,
	}
}
