package ingest

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ngoclaithe/mncr-live/internal/config"
	"github.com/ngoclaithe/mncr-live/internal/status"
)

// fakeProc is a scripted transcoder stand-in. It records accepted writes and
// can be flipped between ready, flow-controlled and broken.
type fakeProc struct {
	mu      sync.Mutex
	events  ProcEvents
	busy    bool
	failErr error
	writes  [][]byte
	killed  bool
}

func (p *fakeProc) Write(b []byte) (WriteResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failErr != nil {
		return Ready, p.failErr
	}
	if p.busy {
		return Busy, nil
	}
	p.writes = append(p.writes, append([]byte(nil), b...))
	return Ready, nil
}

func (p *fakeProc) Kill() {
	p.mu.Lock()
	p.killed = true
	p.mu.Unlock()
}

func (p *fakeProc) setBusy(v bool) {
	p.mu.Lock()
	p.busy = v
	p.mu.Unlock()
}

func (p *fakeProc) setFail(err error) {
	p.mu.Lock()
	p.failErr = err
	p.mu.Unlock()
}

func (p *fakeProc) recorded() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([][]byte, len(p.writes))
	copy(out, p.writes)
	return out
}

func (p *fakeProc) wasKilled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.killed
}

type fakeSpawner struct {
	mu    sync.Mutex
	procs []*fakeProc
}

func (s *fakeSpawner) spawn(roomID string, events ProcEvents) (Proc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := &fakeProc{events: events}
	s.procs = append(s.procs, p)
	return p, nil
}

func (s *fakeSpawner) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.procs)
}

func (s *fakeSpawner) proc(i int) *fakeProc {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.procs[i]
}

type liveRecorder struct {
	mu    sync.Mutex
	live  []string
	ended []string
}

func (r *liveRecorder) onLive(roomID, playbackPath string) {
	r.mu.Lock()
	r.live = append(r.live, roomID)
	r.mu.Unlock()
}

func (r *liveRecorder) onEnded(roomID string) {
	r.mu.Lock()
	r.ended = append(r.ended, roomID)
	r.mu.Unlock()
}

func (r *liveRecorder) liveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.live)
}

func (r *liveRecorder) endedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ended)
}

var initSegment = []byte("init-segment")

func newTestPipeline(t *testing.T, spawner *fakeSpawner, store status.Store, rec *liveRecorder) *Pipeline {
	t.Helper()
	ingestCfg := config.IngestConfig{
		BufferCapacity: 8,
		BufferLowWater: 2,
		RestartDelay:   10 * time.Millisecond,
	}
	transCfg := config.TranscoderConfig{
		OutputDir:      t.TempDir(),
		PublicBasePath: "/live",
	}
	return NewPipeline(ingestCfg, transCfg, spawner.spawn, store, rec.onLive, rec.onEnded)
}

func pushRange(p *Pipeline, roomID string, from, to uint64) {
	for seq := from; seq <= to; seq++ {
		p.OnFragment(roomID, []byte{byte(seq)}, seq)
	}
}

func TestPipelineWritesInitSegmentFirst(t *testing.T) {
	spawner := &fakeSpawner{}
	p := newTestPipeline(t, spawner, status.NewMemoryStore(), &liveRecorder{})

	p.OnInitSegment("room-1", initSegment)
	pushRange(p, "room-1", 1, 2)

	writes := spawner.proc(0).recorded()
	if len(writes) != 3 {
		t.Fatalf("recorded %d writes, want 3", len(writes))
	}
	if string(writes[0]) != string(initSegment) {
		t.Fatalf("first write = %q, want init segment", writes[0])
	}
	if writes[1][0] != 1 || writes[2][0] != 2 {
		t.Fatalf("fragment order = %v, %v, want 1, 2", writes[1], writes[2])
	}
}

func TestPipelineBuffersUntilInitSegment(t *testing.T) {
	spawner := &fakeSpawner{}
	p := newTestPipeline(t, spawner, status.NewMemoryStore(), &liveRecorder{})

	pushRange(p, "room-1", 1, 3)
	if got := spawner.count(); got != 0 {
		t.Fatalf("spawned %d procs before init segment, want 0", got)
	}

	p.OnInitSegment("room-1", initSegment)
	pushRange(p, "room-1", 4, 4)

	writes := spawner.proc(0).recorded()
	want := []byte{1, 2, 3, 4}
	if len(writes) != len(want)+1 {
		t.Fatalf("recorded %d writes, want %d", len(writes), len(want)+1)
	}
	for i, seq := range want {
		if writes[i+1][0] != seq {
			t.Fatalf("write %d = %v, want seq %d", i+1, writes[i+1], seq)
		}
	}
}

func TestPipelineBackpressureResumesInOrder(t *testing.T) {
	spawner := &fakeSpawner{}
	p := newTestPipeline(t, spawner, status.NewMemoryStore(), &liveRecorder{})

	p.OnInitSegment("room-1", initSegment)
	pushRange(p, "room-1", 1, 3)

	proc := spawner.proc(0)
	proc.setBusy(true)
	pushRange(p, "room-1", 4, 10)

	// Only init + 1..3 accepted so far; 4..10 are parked in the buffer.
	if got := len(proc.recorded()); got != 4 {
		t.Fatalf("recorded %d writes while flow-controlled, want 4", got)
	}

	proc.setBusy(false)
	proc.events.OnReady()

	writes := proc.recorded()
	if len(writes) != 11 {
		t.Fatalf("recorded %d writes after resume, want 11", len(writes))
	}
	for seq := 1; seq <= 10; seq++ {
		if int(writes[seq][0]) != seq {
			t.Fatalf("write %d = %v, want seq %d", seq, writes[seq], seq)
		}
	}

	stats, ok := p.Stats("room-1")
	if !ok {
		t.Fatal("Stats() missing for active room")
	}
	if stats.DropCount != 0 {
		t.Fatalf("DropCount = %d, want 0", stats.DropCount)
	}
}

func TestPipelineOverflowDropsOldest(t *testing.T) {
	spawner := &fakeSpawner{}
	p := newTestPipeline(t, spawner, status.NewMemoryStore(), &liveRecorder{})

	p.OnInitSegment("room-1", initSegment)
	pushRange(p, "room-1", 1, 3)

	proc := spawner.proc(0)
	proc.setBusy(true)
	// 11 fragments against a capacity of 8: 4, 5 and 6 get evicted.
	pushRange(p, "room-1", 4, 14)

	proc.setBusy(false)
	proc.events.OnReady()

	writes := proc.recorded()
	wantSeqs := []int{1, 2, 3, 7, 8, 9, 10, 11, 12, 13, 14}
	if len(writes) != len(wantSeqs)+1 {
		t.Fatalf("recorded %d writes, want %d", len(writes), len(wantSeqs)+1)
	}
	for i, seq := range wantSeqs {
		if int(writes[i+1][0]) != seq {
			t.Fatalf("write %d = %v, want seq %d", i+1, writes[i+1], seq)
		}
	}

	stats, _ := p.Stats("room-1")
	if stats.DropCount != 3 {
		t.Fatalf("DropCount = %d, want 3", stats.DropCount)
	}
	if stats.TotalFragments != 14 {
		t.Fatalf("TotalFragments = %d, want 14", stats.TotalFragments)
	}
}

func TestPipelineRestartResendsInitSegment(t *testing.T) {
	spawner := &fakeSpawner{}
	p := newTestPipeline(t, spawner, status.NewMemoryStore(), &liveRecorder{})

	p.OnInitSegment("room-1", initSegment)
	pushRange(p, "room-1", 1, 2)

	first := spawner.proc(0)
	first.setFail(errors.New("broken pipe"))
	pushRange(p, "room-1", 3, 3)

	if !first.wasKilled() {
		t.Fatal("failed proc was not killed")
	}

	deadline := time.Now().Add(time.Second)
	for spawner.count() < 2 {
		if time.Now().After(deadline) {
			t.Fatal("no replacement proc spawned after restart delay")
		}
		time.Sleep(time.Millisecond)
	}

	second := spawner.proc(1)
	writes := second.recorded()
	if len(writes) < 2 {
		t.Fatalf("replacement recorded %d writes, want at least init + fragment", len(writes))
	}
	if string(writes[0]) != string(initSegment) {
		t.Fatalf("replacement first write = %q, want init segment", writes[0])
	}
	// Fragment 3 survived the outage in the buffer and is replayed.
	if writes[1][0] != 3 {
		t.Fatalf("replacement write 1 = %v, want seq 3", writes[1])
	}
}

func TestPipelineLiveNotifiesOnce(t *testing.T) {
	spawner := &fakeSpawner{}
	store := status.NewMemoryStore()
	rec := &liveRecorder{}
	p := newTestPipeline(t, spawner, store, rec)

	p.OnInitSegment("room-1", initSegment)
	pushRange(p, "room-1", 1, 1)

	proc := spawner.proc(0)
	proc.events.OnLive()
	proc.events.OnLive()

	if got := rec.liveCount(); got != 1 {
		t.Fatalf("live callback fired %d times, want 1", got)
	}
	live, playback := store.IsLive("room-1")
	if !live {
		t.Fatal("status store does not report the broadcast live")
	}
	if playback != "/live/room-1/index.m3u8" {
		t.Fatalf("playback path = %q", playback)
	}
}

func TestPipelineTeardownClearsState(t *testing.T) {
	spawner := &fakeSpawner{}
	store := status.NewMemoryStore()
	rec := &liveRecorder{}
	p := newTestPipeline(t, spawner, store, rec)

	p.OnInitSegment("room-1", initSegment)
	pushRange(p, "room-1", 1, 1)
	proc := spawner.proc(0)
	proc.events.OnLive()

	p.Teardown("room-1")

	if !proc.wasKilled() {
		t.Fatal("Teardown did not kill the transcoder")
	}
	if _, ok := p.Stats("room-1"); ok {
		t.Fatal("Stats() still present after Teardown")
	}
	if live, _ := store.IsLive("room-1"); live {
		t.Fatal("status store still reports the broadcast live")
	}
	// Explicit teardown must not double-fire the ended callback.
	if got := rec.endedCount(); got != 0 {
		t.Fatalf("ended callback fired %d times on explicit teardown, want 0", got)
	}
}

func TestPipelineProcExitEndsBroadcast(t *testing.T) {
	spawner := &fakeSpawner{}
	rec := &liveRecorder{}
	p := newTestPipeline(t, spawner, status.NewMemoryStore(), rec)

	p.OnInitSegment("room-1", initSegment)
	pushRange(p, "room-1", 1, 1)

	spawner.proc(0).events.OnExit(errors.New("exit status 1"))

	if got := rec.endedCount(); got != 1 {
		t.Fatalf("ended callback fired %d times, want 1", got)
	}
	if _, ok := p.Stats("room-1"); ok {
		t.Fatal("room state survived process exit")
	}
}

func TestPipelineStaleProcessEventsIgnored(t *testing.T) {
	spawner := &fakeSpawner{}
	rec := &liveRecorder{}
	p := newTestPipeline(t, spawner, status.NewMemoryStore(), rec)

	p.OnInitSegment("room-1", initSegment)
	pushRange(p, "room-1", 1, 1)

	first := spawner.proc(0)
	first.setFail(errors.New("broken pipe"))
	pushRange(p, "room-1", 2, 2)

	deadline := time.Now().Add(time.Second)
	for spawner.count() < 2 {
		if time.Now().After(deadline) {
			t.Fatal("no replacement proc spawned")
		}
		time.Sleep(time.Millisecond)
	}

	// The abandoned process reports its exit after the replacement is up.
	first.events.OnExit(errors.New("signal: killed"))

	if _, ok := p.Stats("room-1"); !ok {
		t.Fatal("stale exit tore down the room")
	}
	if got := rec.endedCount(); got != 0 {
		t.Fatalf("ended callback fired %d times for a stale exit, want 0", got)
	}
}
