package log

const (
	// Request
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldClientIP  = "client_ip"

	// Actor
	FieldUserID   = "user_id"
	FieldUsername = "username"
	FieldClientID = "client_id"

	// Rooms
	FieldRoomID     = "room_id"
	FieldCallRoomID = "call_room_id"

	// Ingest
	FieldSeq    = "seq"
	FieldReason = "reason"

	// Service
	FieldService = "service"
)
