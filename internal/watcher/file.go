package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FileWatcher watches individual files.
type FileWatcher struct {
	opts   Options
	paths  map[string]struct{}
	dirs   []string
	fsw    *fsnotify.Watcher
	logger *slog.Logger

	mu      sync.Mutex
	pending map[string]FileEvent
	timer   *time.Timer
	stopped bool
}

// New creates a watcher for the given files. The files need not exist yet.
func New(opts Options, paths ...string) (*FileWatcher, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no files to watch")
	}

	w := &FileWatcher{
		opts:    opts.WithDefaults(),
		paths:   make(map[string]struct{}, len(paths)),
		logger:  slog.Default(),
		pending: make(map[string]FileEvent),
	}

	dirs := make(map[string]struct{})
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("resolve absolute path: %w", err)
		}
		w.paths[abs] = struct{}{}
		dirs[filepath.Dir(abs)] = struct{}{}
	}
	for d := range dirs {
		w.dirs = append(w.dirs, d)
	}
	sort.Strings(w.dirs)

	if !w.opts.ForcePolling {
		fsw, err := fsnotify.NewWatcher()
		if err == nil {
			w.fsw = fsw
		} else {
			w.logger.Warn("fsnotify_unavailable", slog.String("error", err.Error()))
		}
	}
	return w, nil
}

// SetLogger replaces the default logger.
func (w *FileWatcher) SetLogger(logger *slog.Logger) {
	if logger != nil {
		w.logger = logger
	}
}

// Mode returns "fsnotify" or "polling".
func (w *FileWatcher) Mode() string {
	if w.fsw != nil {
		return "fsnotify"
	}
	return "polling"
}

// Run watches until ctx is cancelled, calling onChange with each debounced
// batch of events. onChange runs on a timer goroutine.
// Run returns ctx.Err() on cancellation.
func (w *FileWatcher) Run(ctx context.Context, onChange func([]FileEvent)) error {
	defer w.stop()

	if w.fsw != nil {
		err := w.addDirs()
		if err == nil {
			return w.runFsnotify(ctx, onChange)
		}
		w.logger.Warn("fsnotify_add_failed_fallback_polling", slog.String("error", err.Error()))
		_ = w.fsw.Close()
		w.fsw = nil
	}
	return w.runPolling(ctx, onChange)
}

func (w *FileWatcher) addDirs() error {
	for _, d := range w.dirs {
		if err := w.fsw.Add(d); err != nil {
			return fmt.Errorf("watch %s: %w", d, err)
		}
	}
	return nil
}

func (w *FileWatcher) runFsnotify(ctx context.Context, onChange func([]FileEvent)) error {
	defer w.fsw.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			abs, err := filepath.Abs(ev.Name)
			if err != nil {
				continue
			}
			if _, watched := w.paths[abs]; !watched {
				continue
			}
			op, ok := convertOp(ev.Op)
			if !ok {
				continue
			}
			w.add(FileEvent{Path: abs, Operation: op, Timestamp: time.Now()}, onChange)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("file_watcher_error", slog.String("error", err.Error()))
		}
	}
}

func convertOp(op fsnotify.Op) (Operation, bool) {
	switch {
	case op&fsnotify.Create != 0:
		return OpCreate, true
	case op&fsnotify.Write != 0:
		return OpModify, true
	case op&fsnotify.Remove != 0:
		return OpDelete, true
	case op&fsnotify.Rename != 0:
		return OpRename, true
	default:
		// Chmod alone does not change content.
		return 0, false
	}
}

// fileState is what polling compares between ticks.
type fileState struct {
	exists  bool
	modTime time.Time
	size    int64
}

func statFile(path string) fileState {
	info, err := os.Stat(path)
	if err != nil {
		return fileState{}
	}
	return fileState{exists: true, modTime: info.ModTime(), size: info.Size()}
}

func (w *FileWatcher) runPolling(ctx context.Context, onChange func([]FileEvent)) error {
	state := make(map[string]fileState, len(w.paths))
	for p := range w.paths {
		state[p] = statFile(p)
	}

	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			for p, prev := range state {
				cur := statFile(p)
				var op Operation
				switch {
				case !prev.exists && cur.exists:
					op = OpCreate
				case prev.exists && !cur.exists:
					op = OpDelete
				case cur.exists && (cur.modTime != prev.modTime || cur.size != prev.size):
					op = OpModify
				default:
					continue
				}
				state[p] = cur
				w.add(FileEvent{Path: p, Operation: op, Timestamp: time.Now()}, onChange)
			}
		}
	}
}

// add queues an event and (re)arms the debounce timer.
func (w *FileWatcher) add(ev FileEvent, onChange func([]FileEvent)) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return
	}
	if prev, ok := w.pending[ev.Path]; ok {
		ev = coalesce(prev, ev)
	}
	w.pending[ev.Path] = ev

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.opts.DebounceWindow, func() {
		w.flush(onChange)
	})
}

func (w *FileWatcher) flush(onChange func([]FileEvent)) {
	w.mu.Lock()
	if w.stopped || len(w.pending) == 0 {
		w.mu.Unlock()
		return
	}
	events := make([]FileEvent, 0, len(w.pending))
	for _, ev := range w.pending {
		events = append(events, ev)
	}
	w.pending = make(map[string]FileEvent)
	w.mu.Unlock()

	sort.Slice(events, func(i, j int) bool { return events[i].Path < events[j].Path })
	w.logger.Debug("watched_files_changed", slog.Int("events", len(events)))
	onChange(events)
}

func (w *FileWatcher) stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.stopped = true
	if w.timer != nil {
		w.timer.Stop()
	}
}
