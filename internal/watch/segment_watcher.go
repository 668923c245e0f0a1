package watch

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	pkglog "github.com/ngoclaithe/mncr-live/pkg/log"
)

// SegmentCallback is called once per newly observed playback segment.
type SegmentCallback func(roomID, segment string)

// SegmentWatcher monitors per-room transcoder output directories and reports
// segment production. The transcoder itself prunes old segments; this only
// observes, feeding room activity timestamps and ingest counters.
type SegmentWatcher struct {
	outputDir string
	callback  SegmentCallback

	mu       sync.Mutex
	watchers map[string]*fsnotify.Watcher
	known    map[string]map[string]bool // roomID -> filename -> seen
}

// NewSegmentWatcher creates a watcher rooted at the transcoder output dir.
func NewSegmentWatcher(outputDir string, callback SegmentCallback) *SegmentWatcher {
	return &SegmentWatcher{
		outputDir: outputDir,
		callback:  callback,
		watchers:  make(map[string]*fsnotify.Watcher),
		known:     make(map[string]map[string]bool),
	}
}

// Watch begins monitoring a room's output directory. The directory may not
// exist yet; watching starts once the transcoder creates it.
func (w *SegmentWatcher) Watch(roomID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, exists := w.watchers[roomID]; exists {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.watchers[roomID] = watcher
	w.known[roomID] = make(map[string]bool)

	roomDir := filepath.Join(w.outputDir, roomID)
	go w.handleEvents(roomID, watcher)
	go w.waitAndWatch(roomID, watcher, roomDir)
	return nil
}

// Unwatch stops monitoring a room and forgets its segment history.
func (w *SegmentWatcher) Unwatch(roomID string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if watcher, ok := w.watchers[roomID]; ok {
		watcher.Close()
		delete(w.watchers, roomID)
	}
	delete(w.known, roomID)
}

// Close stops all watchers.
func (w *SegmentWatcher) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()

	for roomID, watcher := range w.watchers {
		watcher.Close()
		delete(w.watchers, roomID)
		delete(w.known, roomID)
	}
}

// waitAndWatch polls until the transcoder has created the room directory,
// then attaches the fsnotify watcher to it. The room may be torn down before
// the directory ever appears, so the watcher's liveness is re-checked.
func (w *SegmentWatcher) waitAndWatch(roomID string, watcher *fsnotify.Watcher, roomDir string) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for range ticker.C {
		w.mu.Lock()
		current, alive := w.watchers[roomID]
		w.mu.Unlock()
		if !alive || current != watcher {
			return
		}

		if info, err := os.Stat(roomDir); err == nil && info.IsDir() {
			if err := watcher.Add(roomDir); err != nil {
				pkglog.L().Error().Err(err).Str(pkglog.FieldRoomID, roomID).Msg("failed to watch output directory")
			}
			return
		}
	}
}

func (w *SegmentWatcher) handleEvents(roomID string, watcher *fsnotify.Watcher) {
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			name := filepath.Base(event.Name)
			if !strings.HasSuffix(name, ".ts") {
				continue
			}
			if w.firstSighting(roomID, name) && w.callback != nil {
				w.callback(roomID, name)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			pkglog.L().Error().Err(err).Str(pkglog.FieldRoomID, roomID).Msg("segment watcher error")
		}
	}
}

func (w *SegmentWatcher) firstSighting(roomID, name string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	seen, ok := w.known[roomID]
	if !ok {
		return false
	}
	if seen[name] {
		return false
	}
	seen[name] = true
	return true
}
