package watcher

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"booklib/internal/logging"
	"booklib/internal/metrics"
)

// DefaultDebounce is how long the books directory must stay quiet before a
// change triggers a build.
const DefaultDebounce = 2 * time.Second

// Builder starts a library build and reports whether one was started. A
// build already running absorbs the request and returns false.
type Builder interface {
	StartBuild() bool
}

// Options configures a Watcher.
type Options struct {
	Dir string
	// Watch enables filesystem notifications.
	Watch    bool
	Debounce time.Duration
	// Interval between unconditional builds; 0 disables them.
	Interval   time.Duration
	SkipHidden bool
}

// Watcher triggers library builds when the books directory changes and at
// a fixed interval.
type Watcher struct {
	builder Builder
	opts    Options

	fsw      *fsnotify.Watcher
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu      sync.Mutex
	pending *time.Timer
	watched map[string]struct{}
}

// New creates a watcher for builder. Nothing runs until Start.
func New(builder Builder, opts Options) *Watcher {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	return &Watcher{
		builder:  builder,
		opts:     opts,
		stopChan: make(chan struct{}),
		watched:  make(map[string]struct{}),
	}
}

// Start registers the directory tree and begins watching.
func (w *Watcher) Start() error {
	if w.opts.Watch {
		fsw, err := fsnotify.NewWatcher()
		if err != nil {
			return err
		}
		w.fsw = fsw
		w.addTree(w.opts.Dir)
		logging.Info("Watching %d directories under %s (debounce %v)", w.watchedCount(), w.opts.Dir, w.opts.Debounce)

		w.wg.Add(1)
		go w.watchLoop()
	}

	if w.opts.Interval > 0 {
		logging.Info("Periodic library build every %v", w.opts.Interval)
		w.wg.Add(1)
		go w.periodicBuild()
	}
	return nil
}

// Stop ends watching and waits for the loops to exit. A pending debounced
// build is dropped.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopChan)
		w.mu.Lock()
		if w.pending != nil {
			w.pending.Stop()
		}
		w.mu.Unlock()
		if w.fsw != nil {
			if err := w.fsw.Close(); err != nil {
				logging.Warn("Failed to close filesystem watcher: %v", err)
			}
		}
		w.wg.Wait()
		metrics.WatchedDirectories.Set(0)
	})
}

// TriggerBuild starts a build right away.
func (w *Watcher) TriggerBuild() bool {
	return w.trigger("manual")
}

func (w *Watcher) trigger(source string) bool {
	metrics.WatcherTriggersTotal.WithLabelValues(source).Inc()
	started := w.builder.StartBuild()
	logging.Debug("Library build requested by %s (started: %v)", source, started)
	return started
}

func (w *Watcher) hidden(path string) bool {
	return w.opts.SkipHidden && strings.HasPrefix(filepath.Base(path), ".")
}

// addTree watches dir and every directory below it.
func (w *Watcher) addTree(dir string) {
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logging.Debug("Skipping %s: %v", path, err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && w.hidden(path) {
			return filepath.SkipDir
		}
		w.add(path)
		return nil
	})
	if err != nil {
		logging.Warn("Failed to walk %s: %v", dir, err)
	}
}

func (w *Watcher) add(dir string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.watched[dir]; ok {
		return
	}
	if err := w.fsw.Add(dir); err != nil {
		metrics.WatcherErrors.Inc()
		logging.Warn("Failed to watch %s: %v", dir, err)
		return
	}
	w.watched[dir] = struct{}{}
	metrics.WatchedDirectories.Set(float64(len(w.watched)))
}

func (w *Watcher) forget(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for dir := range w.watched {
		if dir == path || strings.HasPrefix(dir, path+string(filepath.Separator)) {
			delete(w.watched, dir)
		}
	}
	metrics.WatchedDirectories.Set(float64(len(w.watched)))
}

func (w *Watcher) watchedCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.watched)
}

func (w *Watcher) watchLoop() {
	defer w.wg.Done()

	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			metrics.WatcherErrors.Inc()
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				logging.Warn("Filesystem events overflowed, rebuilding")
				w.schedule()
				continue
			}
			logging.Warn("Filesystem watcher error: %v", err)
		case <-w.stopChan:
			return
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Write) {
		return
	}
	if w.hidden(ev.Name) {
		return
	}
	metrics.WatcherEventsTotal.WithLabelValues(opName(ev.Op)).Inc()
	logging.Debug("Filesystem event: %s", ev)

	switch {
	case ev.Has(fsnotify.Create):
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			w.addTree(ev.Name)
		}
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		w.forget(ev.Name)
	}
	w.schedule()
}

// schedule (re)starts the debounce timer.
func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()

	select {
	case <-w.stopChan:
		return
	default:
	}

	if w.pending != nil {
		w.pending.Reset(w.opts.Debounce)
		return
	}
	w.pending = time.AfterFunc(w.opts.Debounce, w.fire)
}

// fire runs when the debounce timer expires. A build that is already
// running may have walked past the change, so the request is retried after
// another debounce period until a build starts.
func (w *Watcher) fire() {
	w.mu.Lock()
	w.pending = nil
	w.mu.Unlock()

	if !w.trigger("fsnotify") {
		logging.Debug("Library build busy, retrying in %v", w.opts.Debounce)
		w.schedule()
	}
}

func (w *Watcher) periodicBuild() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			logging.Debug("Periodic library build triggered")
			w.trigger("interval")
		case <-w.stopChan:
			return
		}
	}
}

func opName(op fsnotify.Op) string {
	switch {
	case op.Has(fsnotify.Create):
		return "create"
	case op.Has(fsnotify.Write):
		return "write"
	case op.Has(fsnotify.Remove):
		return "remove"
	case op.Has(fsnotify.Rename):
		return "rename"
	default:
		return "chmod"
	}
}
