package ingest

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/ngoclaithe/mncr-live/internal/config"
	pkglog "github.com/ngoclaithe/mncr-live/pkg/log"
)

// WriteResult reports whether the sink accepted bytes and can take more.
type WriteResult int

const (
	// Ready means the bytes were accepted and the sink can take more.
	Ready WriteResult = iota
	// Busy means the sink is flow-controlled; the bytes were NOT consumed
	// and the caller must retry them after a readiness notification.
	Busy
)

// Proc is an owned transcoder child process. A Proc is single-use: once it
// fails or exits it is abandoned and the pipeline spawns a replacement.
type Proc interface {
	// Write queues bytes for the transcoder input. Busy leaves p unconsumed.
	Write(p []byte) (WriteResult, error)
	// Kill terminates the process and releases its pipes.
	Kill()
}

// ProcEvents are delivered from process-owned goroutines. Receivers must
// re-validate their target still exists; the process may have been abandoned
// between emission and delivery.
type ProcEvents struct {
	// OnReady fires when a previously Busy input queue drains to low water.
	OnReady func()
	// OnLive fires once, at the first liveness marker on the diagnostic stream.
	OnLive func()
	// OnError fires when an asynchronous input write fails (broken pipe).
	OnError func(err error)
	// OnExit fires when the process terminates for any reason.
	OnExit func(err error)
}

// SpawnFunc launches a transcoder for a room. Swapped for a fake in tests.
type SpawnFunc func(roomID string, events ProcEvents) (Proc, error)

// process state machine: Idle -> Starting -> Running -> Failed.
const (
	stateIdle int32 = iota
	stateStarting
	stateRunning
	stateFailed
)

var errProcessFailed = fmt.Errorf("transcoder process failed")

// ffmpegProc runs one ffmpeg instance packaging fragmented input into a
// rolling HLS window inside a per-room output directory.
type ffmpegProc struct {
	roomID string
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	events ProcEvents

	queue     chan []byte
	lowWater  int
	suspended atomic.Bool
	state     atomic.Int32
	done      chan struct{}
	doneOnce  sync.Once
	killOnce  sync.Once
}

// NewSpawner returns a SpawnFunc launching ffmpeg with the fixed encode and
// packaging parameters from cfg.
func NewSpawner(cfg config.TranscoderConfig, lowWater int) SpawnFunc {
	return func(roomID string, events ProcEvents) (Proc, error) {
		return spawnFFmpeg(cfg, lowWater, roomID, events)
	}
}

// OutputDir returns the per-room segment directory.
func OutputDir(cfg config.TranscoderConfig, roomID string) string {
	return filepath.Join(cfg.OutputDir, roomID)
}

// PlaybackPath returns the public playlist path for a room.
func PlaybackPath(cfg config.TranscoderConfig, roomID string) string {
	return cfg.PublicBasePath + "/" + roomID + "/index.m3u8"
}

func buildFFmpegArgs(cfg config.TranscoderConfig, outputDir string) []string {
	playlist := filepath.Join(outputDir, "index.m3u8")
	segments := filepath.Join(outputDir, "segment_%03d.ts")

	hlsFlags := "delete_segments+append_list"
	if !cfg.DeleteSegments {
		hlsFlags = "append_list"
	}

	args := []string{
		"-hide_banner",
		"-f", "mp4",
		"-i", "pipe:0",
		"-c:v", "libx264",
		"-preset", cfg.Preset,
		"-tune", "zerolatency",
		"-pix_fmt", "yuv420p",
		"-b:v", cfg.VideoBitrate,
		"-r", fmt.Sprintf("%d", cfg.Framerate),
		"-g", fmt.Sprintf("%d", cfg.GOPSize),
		"-c:a", "aac",
		"-b:a", cfg.AudioBitrate,
		"-f", "hls",
		"-hls_time", fmt.Sprintf("%d", cfg.SegmentDuration),
		"-hls_list_size", fmt.Sprintf("%d", cfg.PlaylistSize),
		"-hls_flags", hlsFlags,
		"-hls_segment_filename", segments,
		playlist,
	}
	return args
}

func spawnFFmpeg(cfg config.TranscoderConfig, lowWater int, roomID string, events ProcEvents) (Proc, error) {
	outputDir := OutputDir(cfg, roomID)
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	cmd := exec.Command(cfg.FFmpegPath, buildFFmpegArgs(cfg, outputDir)...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to get stdin pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to get stderr pipe: %w", err)
	}

	queueSize := cfg.WriteQueueSize
	if queueSize <= 0 {
		queueSize = 16
	}
	if lowWater < 0 {
		lowWater = 0
	}

	p := &ffmpegProc{
		roomID:   roomID,
		cmd:      cmd,
		stdin:    stdin,
		events:   events,
		queue:    make(chan []byte, queueSize),
		lowWater: lowWater,
		done:     make(chan struct{}),
	}
	p.state.Store(stateStarting)

	if err := cmd.Start(); err != nil {
		p.state.Store(stateFailed)
		return nil, fmt.Errorf("failed to start transcoder: %w", err)
	}
	p.state.Store(stateRunning)

	pkglog.L().Info().Str(pkglog.FieldRoomID, roomID).Int("pid", cmd.Process.Pid).
		Msg("transcoder started")

	go p.writeLoop()
	go p.scanDiagnostics(stderr)
	go p.waitExit()

	return p, nil
}

// Write queues bytes for the transcoder input without blocking. A full queue
// returns Busy and the readiness notification resumes the caller later.
func (p *ffmpegProc) Write(b []byte) (WriteResult, error) {
	if p.state.Load() != stateRunning {
		return Busy, errProcessFailed
	}
	select {
	case p.queue <- b:
		return Ready, nil
	default:
		p.suspended.Store(true)
		// The write loop may have drained past low water before the
		// flag became visible to it. Re-check here so the readiness
		// notification is not lost in that window.
		if len(p.queue) <= p.lowWater && p.suspended.CompareAndSwap(true, false) {
			if p.events.OnReady != nil {
				go p.events.OnReady()
			}
		}
		return Busy, nil
	}
}

func (p *ffmpegProc) writeLoop() {
	for {
		var b []byte
		select {
		case <-p.done:
			return
		case b = <-p.queue:
		}
		if _, err := p.stdin.Write(b); err != nil {
			p.state.Store(stateFailed)
			if p.events.OnError != nil {
				p.events.OnError(err)
			}
			return
		}
		if p.suspended.Load() && len(p.queue) <= p.lowWater {
			p.suspended.Store(false)
			if p.events.OnReady != nil {
				p.events.OnReady()
			}
		}
	}
}

// scanDiagnostics watches the transcoder's stderr for the first sign that it
// is producing playlist output, which is what "live" means here.
func (p *ffmpegProc) scanDiagnostics(stderr io.Reader) {
	l := pkglog.L()
	live := false
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 4096), 256*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !live && strings.Contains(line, ".m3u8") && strings.Contains(line, "Opening") {
			live = true
			if p.events.OnLive != nil {
				p.events.OnLive()
			}
		}
		l.Debug().Str(pkglog.FieldRoomID, p.roomID).Str("line", line).Msg("transcoder stderr")
	}
}

func (p *ffmpegProc) waitExit() {
	err := p.cmd.Wait()
	p.state.Store(stateFailed)
	p.stopWriteLoop()
	pkglog.L().Info().Str(pkglog.FieldRoomID, p.roomID).Err(err).Msg("transcoder exited")
	if p.events.OnExit != nil {
		p.events.OnExit(err)
	}
}

// stopWriteLoop releases the input goroutine. Closing the queue itself would
// race with Write, so the loop is signalled through a separate channel.
func (p *ffmpegProc) stopWriteLoop() {
	p.doneOnce.Do(func() { close(p.done) })
}

// Kill terminates the process. The exit notification still fires via waitExit.
func (p *ffmpegProc) Kill() {
	p.killOnce.Do(func() {
		p.state.Store(stateFailed)
		p.stopWriteLoop()
		p.stdin.Close()
		if p.cmd.Process != nil {
			p.cmd.Process.Kill()
		}
	})
}
