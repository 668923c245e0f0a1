package ingest

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/ngoclaithe/mncr-live/internal/config"
	"github.com/ngoclaithe/mncr-live/internal/domain"
	"github.com/ngoclaithe/mncr-live/internal/status"
	pkglog "github.com/ngoclaithe/mncr-live/pkg/log"
)

// LiveFunc is invoked once per broadcast when the transcoder first produces
// playable output. EndedFunc is invoked when the transcoder exits and the
// room's ingest state has been cleared.
type (
	LiveFunc  func(roomID, playbackPath string)
	EndedFunc func(roomID string)
)

// Pipeline owns per-room ingest state: the bounded fragment buffer, the
// transcoder process and its restart policy. All state mutation happens under
// one mutex; asynchronous process events re-validate their target room before
// acting because it may have been torn down in the interim.
type Pipeline struct {
	ingestCfg config.IngestConfig
	transCfg  config.TranscoderConfig
	spawn     SpawnFunc
	status    status.Store
	onLive    LiveFunc
	onEnded   EndedFunc

	mu    sync.Mutex
	rooms map[string]*roomIngest
}

// roomIngest is the ingest state for one live broadcast room.
type roomIngest struct {
	roomID      string
	initSegment []byte
	buffer      *FragmentBuffer
	stats       *domain.StreamStats

	proc        Proc
	gen         uint64 // bumped when a process is abandoned; stale events are ignored
	initialized bool   // init segment written to the current process
	draining    bool   // at most one in-flight drain
	started     bool   // liveness flagged once per room lifetime

	restartTimer *time.Timer
}

// NewPipeline creates the ingest pipeline.
func NewPipeline(ingestCfg config.IngestConfig, transCfg config.TranscoderConfig, spawn SpawnFunc, st status.Store, onLive LiveFunc, onEnded EndedFunc) *Pipeline {
	if spawn == nil {
		spawn = NewSpawner(transCfg, ingestCfg.BufferLowWater)
	}
	return &Pipeline{
		ingestCfg: ingestCfg,
		transCfg:  transCfg,
		spawn:     spawn,
		status:    st,
		onLive:    onLive,
		onEnded:   onEnded,
		rooms:     make(map[string]*roomIngest),
	}
}

// OnInitSegment stores the container header for a room. It is kept for the
// lifetime of the broadcast and is the first thing written to the transcoder,
// both at initial start and after every restart.
func (p *Pipeline) OnInitSegment(roomID string, data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()

	rm := p.ensureLocked(roomID)
	if rm.initSegment != nil {
		return
	}
	rm.initSegment = append([]byte(nil), data...)
}

// OnFragment buffers one fragment and triggers a drain. The transcoder is
// spawned lazily on the first fragment following the init segment.
func (p *Pipeline) OnFragment(roomID string, data []byte, seq uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	rm := p.ensureLocked(roomID)

	if rm.buffer.Push(Fragment{Seq: seq, Payload: data}) {
		rm.stats.AddDrop()
	}
	rm.stats.AddFragment(len(data))

	if rm.proc == nil && rm.restartTimer == nil && rm.initSegment != nil {
		p.spawnLocked(rm)
	}
	p.drainLocked(rm)
}

// Stats returns the ingest counters for a room.
func (p *Pipeline) Stats(roomID string) (domain.StreamStatsSnapshot, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	rm, ok := p.rooms[roomID]
	if !ok {
		return domain.StreamStatsSnapshot{}, false
	}
	return rm.stats.Snapshot(), true
}

// RecordSegment counts one playback segment observed in the room's output
// directory.
func (p *Pipeline) RecordSegment(roomID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if rm, ok := p.rooms[roomID]; ok {
		rm.stats.AddSegment()
	}
}

// Teardown ends ingest for a room: the process is killed, all per-room state
// is dropped and the output directory is removed. The broadcast is marked
// not-live with the status collaborator.
func (p *Pipeline) Teardown(roomID string) {
	p.mu.Lock()
	rm, ok := p.rooms[roomID]
	if !ok {
		p.mu.Unlock()
		return
	}
	p.cleanupLocked(rm)
	p.mu.Unlock()
}

func (p *Pipeline) ensureLocked(roomID string) *roomIngest {
	rm, ok := p.rooms[roomID]
	if !ok {
		rm = &roomIngest{
			roomID: roomID,
			buffer: NewFragmentBuffer(p.ingestCfg.BufferCapacity),
			stats:  &domain.StreamStats{},
		}
		p.rooms[roomID] = rm
	}
	return rm
}

// spawnLocked starts a transcoder process and writes the init segment as its
// first input. A spawn failure leaves the room idle; the next fragment retries.
func (p *Pipeline) spawnLocked(rm *roomIngest) {
	roomID := rm.roomID
	gen := rm.gen

	events := ProcEvents{
		OnReady: func() { p.resume(roomID, gen) },
		OnLive:  func() { p.markLive(roomID, gen) },
		OnError: func(err error) { p.writeFailed(roomID, gen, err) },
		OnExit:  func(err error) { p.procExited(roomID, gen, err) },
	}

	proc, err := p.spawn(roomID, events)
	if err != nil {
		pkglog.L().Error().Err(err).Str(pkglog.FieldRoomID, roomID).Msg("transcoder spawn failed")
		return
	}

	rm.proc = proc
	rm.initialized = false

	if _, err := proc.Write(rm.initSegment); err != nil {
		pkglog.L().Error().Err(err).Str(pkglog.FieldRoomID, roomID).Msg("init segment write failed")
		p.abandonLocked(rm)
		return
	}
	rm.initialized = true
}

// drainLocked pops buffered fragments in order and writes them to the
// transcoder input. The draining flag prevents two interleaved drains from
// reordering output; it is cleared on every exit path. A Busy result suspends
// the drain with the fragment still buffered; the readiness notification
// resumes from the same point.
func (p *Pipeline) drainLocked(rm *roomIngest) {
	if rm.draining || rm.proc == nil || !rm.initialized {
		return
	}
	rm.draining = true
	defer func() { rm.draining = false }()

	for {
		frag, ok := rm.buffer.Peek()
		if !ok {
			return
		}
		res, err := rm.proc.Write(frag.Payload)
		if err != nil {
			p.abandonLocked(rm)
			return
		}
		if res == Busy {
			return
		}
		rm.buffer.Pop()
	}
}

// abandonLocked gives up on the current process and schedules one
// bounded-delay restart. Buffering continues during the outage; with the
// buffer bounded, an extended outage loses tail data by design.
func (p *Pipeline) abandonLocked(rm *roomIngest) {
	if rm.proc != nil {
		rm.proc.Kill()
		rm.proc = nil
	}
	rm.gen++
	rm.initialized = false

	if rm.restartTimer != nil {
		return
	}
	roomID := rm.roomID
	rm.restartTimer = time.AfterFunc(p.ingestCfg.RestartDelay, func() {
		p.restart(roomID)
	})
	pkglog.L().Warn().Str(pkglog.FieldRoomID, roomID).
		Dur("delay", p.ingestCfg.RestartDelay).Msg("transcoder restart scheduled")
}

// restart runs after the bounded delay. The room may have been torn down in
// the meantime, so existence is re-checked before spawning.
func (p *Pipeline) restart(roomID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	rm, ok := p.rooms[roomID]
	if !ok {
		return
	}
	rm.restartTimer = nil
	if rm.proc != nil || rm.initSegment == nil {
		return
	}
	p.spawnLocked(rm)
	p.drainLocked(rm)
}

// resume continues a suspended drain after a readiness notification.
func (p *Pipeline) resume(roomID string, gen uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	rm, ok := p.rooms[roomID]
	if !ok || rm.gen != gen {
		return
	}
	p.drainLocked(rm)
}

// writeFailed handles an asynchronous broken pipe on the transcoder input.
func (p *Pipeline) writeFailed(roomID string, gen uint64, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	rm, ok := p.rooms[roomID]
	if !ok || rm.gen != gen {
		return
	}
	pkglog.L().Warn().Err(err).Str(pkglog.FieldRoomID, roomID).Msg("transcoder input write failed")
	p.abandonLocked(rm)
}

// markLive flags the room started on the first liveness marker and notifies
// current members through the service callback. Happens once per room.
func (p *Pipeline) markLive(roomID string, gen uint64) {
	p.mu.Lock()
	rm, ok := p.rooms[roomID]
	if !ok || rm.gen != gen || rm.started {
		p.mu.Unlock()
		return
	}
	rm.started = true
	p.mu.Unlock()

	playback := PlaybackPath(p.transCfg, roomID)
	if p.status != nil {
		if err := p.status.SetLive(context.Background(), roomID, playback); err != nil {
			pkglog.L().Error().Err(err).Str(pkglog.FieldRoomID, roomID).Msg("failed to mark broadcast live")
		}
	}
	if p.onLive != nil {
		p.onLive(roomID, playback)
	}
}

// procExited handles termination of the current process. Exits of abandoned
// processes (stale generation) are ignored; the restart path owns those.
func (p *Pipeline) procExited(roomID string, gen uint64, err error) {
	p.mu.Lock()
	rm, ok := p.rooms[roomID]
	if !ok || rm.gen != gen || rm.proc == nil {
		p.mu.Unlock()
		return
	}
	rm.proc = nil
	p.cleanupLocked(rm)
	p.mu.Unlock()

	if p.onEnded != nil {
		p.onEnded(roomID)
	}
}

// cleanupLocked clears all per-room ingest state, removes the output
// directory and marks the broadcast not-live.
func (p *Pipeline) cleanupLocked(rm *roomIngest) {
	if rm.restartTimer != nil {
		rm.restartTimer.Stop()
		rm.restartTimer = nil
	}
	if rm.proc != nil {
		rm.proc.Kill()
		rm.proc = nil
	}
	rm.gen++
	delete(p.rooms, rm.roomID)

	outputDir := OutputDir(p.transCfg, rm.roomID)
	if err := os.RemoveAll(outputDir); err != nil {
		pkglog.L().Error().Err(err).Str(pkglog.FieldRoomID, rm.roomID).Msg("failed to remove output directory")
	}
	if p.status != nil {
		if err := p.status.ClearLive(context.Background(), rm.roomID); err != nil {
			pkglog.L().Error().Err(err).Str(pkglog.FieldRoomID, rm.roomID).Msg("failed to mark broadcast not-live")
		}
	}
	pkglog.L().Info().Str(pkglog.FieldRoomID, rm.roomID).Msg("ingest state cleared")
}
