package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/ngoclaithe/mncr-live/internal/call"
	"github.com/ngoclaithe/mncr-live/internal/config"
	"github.com/ngoclaithe/mncr-live/internal/service"
	"github.com/ngoclaithe/mncr-live/pkg/response"
)

// HTTPHandler exposes the REST surface next to the WebSocket endpoint:
// health, call room provisioning, stream stats and ICE server discovery.
type HTTPHandler struct {
	streams     service.StreamService
	coordinator *call.Coordinator
	iceCfg      config.ICEConfig
}

func NewHTTPHandler(streams service.StreamService, coordinator *call.Coordinator, iceCfg config.ICEConfig) *HTTPHandler {
	return &HTTPHandler{
		streams:     streams,
		coordinator: coordinator,
		iceCfg:      iceCfg,
	}
}

// RegisterRoutes mounts all REST routes plus the static HLS output.
func (h *HTTPHandler) RegisterRoutes(r *gin.Engine, transCfg config.TranscoderConfig) {
	r.GET("/health", h.Health)
	r.POST("/internal/call-rooms", h.CreateCallRoom)

	api := r.Group("/api")
	{
		api.GET("/streams/:roomId/stats", h.StreamStats)
		api.GET("/ice-servers", h.ICEServers)
	}

	r.Static(transCfg.PublicBasePath, transCfg.OutputDir)
}

func (h *HTTPHandler) Health(c *gin.Context) {
	response.Success(c, gin.H{"status": "ok"})
}

type createCallRoomRequest struct {
	CallRoomID string `json:"callRoomId"`
	CallerID   string `json:"callerId" binding:"required"`
	ReceiverID string `json:"receiverId" binding:"required"`
	CallType   string `json:"callType"`
}

// CreateCallRoom provisions a 1:1 call room in the waiting state. Called by
// the application backend, not by clients.
func (h *HTTPHandler) CreateCallRoom(c *gin.Context) {
	var req createCallRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "callerId and receiverId are required")
		return
	}

	room, err := h.coordinator.CreateRoom(req.CallRoomID, req.CallerID, req.ReceiverID, req.CallType)
	if err != nil {
		response.Conflict(c, err.Error())
		return
	}

	response.Created(c, gin.H{
		"callRoomId": room.ID,
		"callerId":   room.CallerID,
		"receiverId": room.ReceiverID,
		"callType":   room.CallType,
		"status":     string(room.Status),
	})
}

// StreamStats returns ingest counters for a broadcast room.
func (h *HTTPHandler) StreamStats(c *gin.Context) {
	roomID := c.Param("roomId")

	stats, ok := h.streams.Stats(roomID)
	if !ok {
		response.NotFound(c, "stream not found")
		return
	}

	response.Success(c, stats)
}

type iceServer struct {
	URLs       []string `json:"urls"`
	Username   string   `json:"username,omitempty"`
	Credential string   `json:"credential,omitempty"`
}

// ICEServers returns the STUN/TURN configuration clients use to negotiate
// their peer connection. The server never inspects the negotiation itself.
func (h *HTTPHandler) ICEServers(c *gin.Context) {
	servers := make([]iceServer, 0, 2)
	if len(h.iceCfg.STUNServers) > 0 {
		servers = append(servers, iceServer{URLs: h.iceCfg.STUNServers})
	}
	if len(h.iceCfg.TURNServers) > 0 {
		servers = append(servers, iceServer{
			URLs:       h.iceCfg.TURNServers,
			Username:   h.iceCfg.TURNUser,
			Credential: h.iceCfg.TURNSecret,
		})
	}

	response.Success(c, gin.H{"iceServers": servers})
}
