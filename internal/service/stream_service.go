package service

import (
	"context"

	"github.com/ngoclaithe/mncr-live/internal/config"
	"github.com/ngoclaithe/mncr-live/internal/domain"
	"github.com/ngoclaithe/mncr-live/internal/hub"
	"github.com/ngoclaithe/mncr-live/internal/ingest"
	"github.com/ngoclaithe/mncr-live/internal/kafka"
	"github.com/ngoclaithe/mncr-live/internal/registry"
	"github.com/ngoclaithe/mncr-live/internal/status"
	"github.com/ngoclaithe/mncr-live/internal/watch"
	pkglog "github.com/ngoclaithe/mncr-live/pkg/log"
)

// qualities advertised with stream_live. The transcoder runs a single fixed
// rendition; the list is here so clients don't hardcode it.
var defaultQualities = []string{"source"}

type streamService struct {
	hub      *hub.Hub
	registry *registry.Registry
	pipeline *ingest.Pipeline
	watcher  *watch.SegmentWatcher
	producer kafka.BroadcastEventProducer // optional, may be nil
}

// NewStreamService wires the registries, the ingest pipeline and the segment
// watcher. spawn may be nil to use the real transcoder; tests inject fakes.
func NewStreamService(
	h *hub.Hub,
	reg *registry.Registry,
	ingestCfg config.IngestConfig,
	transCfg config.TranscoderConfig,
	spawn ingest.SpawnFunc,
	statusStore status.Store,
	producer kafka.BroadcastEventProducer,
) StreamService {
	s := &streamService{
		hub:      h,
		registry: reg,
		producer: producer,
	}
	s.pipeline = ingest.NewPipeline(ingestCfg, transCfg, spawn, statusStore, s.streamLive, s.streamEnded)
	s.watcher = watch.NewSegmentWatcher(transCfg.OutputDir, s.segmentSeen)
	return s
}

func (s *streamService) HandleJoinRoom(c *hub.Client, roomID, userID, username, userType string) error {
	if roomID == "" || userID == "" {
		return c.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "roomId and userId are required"))
	}
	if userType != domain.UserTypePublisher {
		userType = domain.UserTypeViewer
	}

	// Leave current room if any
	if current := c.Session.GetCurrentRoom(); current != "" && current != roomID {
		s.leaveRoom(c, current)
	}

	c.Session.SetIdentity(userID, username, userType)
	s.hub.BindIdentity(c, userID)
	s.hub.JoinRoom(c, roomID)
	count, started := s.registry.Join(roomID, &domain.Member{
		ConnID:   c.ID,
		UserID:   userID,
		Username: username,
		UserType: userType,
	})
	c.Session.JoinRoom(roomID)

	if err := c.SendMessage(&domain.RoomJoinedMessage{
		Type:          domain.MsgTypeRoomJoined,
		RoomID:        roomID,
		ViewerCount:   count,
		StreamStarted: started,
	}); err != nil {
		return err
	}

	s.hub.BroadcastToRoom(roomID, &domain.MemberMessage{
		Type:     domain.MsgTypeUserJoined,
		RoomID:   roomID,
		UserID:   userID,
		Username: username,
	}, c.ID)
	s.hub.BroadcastToRoom(roomID, &domain.ViewerCountMessage{
		Type:   domain.MsgTypeViewerCount,
		RoomID: roomID,
		Count:  count,
	}, "")
	return nil
}

func (s *streamService) HandleLeaveRoom(c *hub.Client, roomID string) error {
	if c.Session.GetCurrentRoom() != roomID {
		return nil
	}
	s.leaveRoom(c, roomID)
	return nil
}

// leaveRoom removes the member. A publisher leaving ends the broadcast: the
// pipeline is torn down and remaining viewers are told the stream ended.
func (s *streamService) leaveRoom(c *hub.Client, roomID string) {
	member, remaining, _ := s.registry.Leave(roomID, c.ID)
	s.hub.LeaveRoom(c, roomID)
	c.Session.LeaveRoom()

	if member == nil {
		return
	}

	if member.UserType == domain.UserTypePublisher {
		s.endBroadcast(roomID, member.UserID, kafka.ReasonExplicit)
	}

	if remaining > 0 {
		s.hub.BroadcastToRoom(roomID, &domain.MemberMessage{
			Type:     domain.MsgTypeUserLeft,
			RoomID:   roomID,
			UserID:   member.UserID,
			Username: member.Username,
		}, "")
		s.hub.BroadcastToRoom(roomID, &domain.ViewerCountMessage{
			Type:   domain.MsgTypeViewerCount,
			RoomID: roomID,
			Count:  remaining,
		}, "")
	}
}

func (s *streamService) HandleInitSegment(c *hub.Client, roomID string, data []byte) error {
	if !s.isPublisherIn(c, roomID) {
		return c.SendMessage(domain.NewErrorMessage(domain.ErrCodeForbidden, "Only the publisher can send media"))
	}
	if len(data) == 0 {
		return c.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Empty init segment"))
	}

	s.pipeline.OnInitSegment(roomID, data)
	if err := s.watcher.Watch(roomID); err != nil {
		pkglog.L().Error().Err(err).Str(pkglog.FieldRoomID, roomID).Msg("failed to start segment watcher")
	}
	return nil
}

func (s *streamService) HandleChunk(c *hub.Client, roomID string, data []byte, seq uint64) error {
	// Chunks are unacknowledged; a chunk from a non-publisher is dropped
	// without an error reply.
	if !s.isPublisherIn(c, roomID) || len(data) == 0 {
		return nil
	}
	s.registry.Touch(roomID)
	s.pipeline.OnFragment(roomID, data, seq)
	return nil
}

func (s *streamService) HandleChat(c *hub.Client, roomID, content string) error {
	if c.Session.GetCurrentRoom() != roomID || content == "" {
		return nil
	}
	s.registry.Touch(roomID)
	return s.hub.BroadcastToRoom(roomID, &domain.ChatMessage{
		Type:     domain.MsgTypeChatMessage,
		RoomID:   roomID,
		Username: c.Session.GetUsername(),
		Content:  content,
	}, "")
}

func (s *streamService) HandleGift(c *hub.Client, roomID, giftID string, quantity int) error {
	if c.Session.GetCurrentRoom() != roomID || giftID == "" {
		return nil
	}
	if quantity <= 0 {
		quantity = 1
	}
	s.registry.Touch(roomID)
	return s.hub.BroadcastToRoom(roomID, &domain.GiftMessage{
		Type:     domain.MsgTypeGiftMessage,
		RoomID:   roomID,
		Username: c.Session.GetUsername(),
		GiftID:   giftID,
		Quantity: quantity,
	}, "")
}

func (s *streamService) HandleDisconnect(c *hub.Client) {
	if roomID := c.Session.GetCurrentRoom(); roomID != "" {
		s.leaveRoom(c, roomID)
	}
}

func (s *streamService) Stats(roomID string) (domain.StreamStatsSnapshot, bool) {
	return s.pipeline.Stats(roomID)
}

func (s *streamService) Close() {
	s.watcher.Close()
}

// segmentSeen runs for every new HLS segment on disk. Segment production
// counts as room activity so idle reaping doesn't fire mid-broadcast.
func (s *streamService) segmentSeen(roomID, segment string) {
	s.registry.Touch(roomID)
	s.pipeline.RecordSegment(roomID)
	pkglog.L().Debug().Str(pkglog.FieldRoomID, roomID).Str("segment", segment).Msg("segment produced")
}

func (s *streamService) isPublisherIn(c *hub.Client, roomID string) bool {
	return c.Session.IsPublisher() && c.Session.GetCurrentRoom() == roomID
}

// streamLive runs when the transcoder first produces playable output. The
// started flag guards the once-per-broadcast notification.
func (s *streamService) streamLive(roomID, playbackPath string) {
	if !s.registry.MarkStarted(roomID) {
		return
	}

	s.hub.BroadcastToRoom(roomID, &domain.StreamLiveMessage{
		Type:        domain.MsgTypeStreamLive,
		RoomID:      roomID,
		PlaybackURL: playbackPath,
		Qualities:   defaultQualities,
	}, "")

	if s.producer != nil {
		broadcasterID := ""
		if pub, ok := s.registry.Publisher(roomID); ok {
			broadcasterID = pub.UserID
		}
		if err := s.producer.ProduceBroadcastStarted(context.Background(), roomID, broadcasterID); err != nil {
			pkglog.L().Error().Err(err).Str(pkglog.FieldRoomID, roomID).Msg("failed to produce broadcast_started")
		}
	}

	pkglog.L().Info().Str(pkglog.FieldRoomID, roomID).Str("playback", playbackPath).Msg("broadcast live")
}

// streamEnded runs when the transcoder exits on its own (crash or EOF).
func (s *streamService) streamEnded(roomID string) {
	broadcasterID := ""
	if pub, ok := s.registry.Publisher(roomID); ok {
		broadcasterID = pub.UserID
	}
	s.endBroadcastNotify(roomID, broadcasterID, kafka.ReasonDisconnect)
}

// endBroadcast tears the pipeline down and notifies viewers. Used when the
// publisher leaves or disconnects.
func (s *streamService) endBroadcast(roomID, broadcasterID, reason string) {
	s.pipeline.Teardown(roomID)
	s.endBroadcastNotify(roomID, broadcasterID, reason)
}

func (s *streamService) endBroadcastNotify(roomID, broadcasterID, reason string) {
	s.watcher.Unwatch(roomID)
	s.registry.ClearStarted(roomID)

	s.hub.BroadcastToRoom(roomID, &domain.StreamEndedMessage{
		Type:   domain.MsgTypeStreamEnded,
		RoomID: roomID,
	}, "")

	if s.producer != nil {
		if err := s.producer.ProduceBroadcastStopped(context.Background(), roomID, broadcasterID, reason); err != nil {
			pkglog.L().Error().Err(err).Str(pkglog.FieldRoomID, roomID).Msg("failed to produce broadcast_stopped")
		}
	}

	pkglog.L().Info().Str(pkglog.FieldRoomID, roomID).Str(pkglog.FieldReason, reason).Msg("broadcast ended")
}
