package location

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-logr/logr"

	"github.com/dshills/dbgcore/internal/event"
	"github.com/dshills/dbgcore/internal/session"
)

// DefaultWatchDelay coalesces the bursts of events editors produce when
// saving a file.
const DefaultWatchDelay = 100 * time.Millisecond

// WatcherOptions configures a SourceWatcher.
type WatcherOptions struct {
	Log logr.Logger

	// Bus receives session.TopicSourceChanged events. Required.
	Bus event.Bus

	// Delay is how long a file must be quiet before a change is reported.
	Delay time.Duration
}

// SourceWatcher reports modifications of resolved source files on the
// session bus so views can offer a reload.
//
// Files are watched through their parent directory, which keeps working
// when an editor replaces a file by renaming over it.
type SourceWatcher struct {
	log   logr.Logger
	bus   event.Bus
	delay time.Duration
	fsw   *fsnotify.Watcher

	mu     sync.Mutex
	files  map[string]struct{}
	dirs   map[string]int
	timers map[string]*time.Timer
	closed bool

	closeCh chan struct{}
	wg      sync.WaitGroup
}

// NewSourceWatcher starts a watcher.
func NewSourceWatcher(opts WatcherOptions) (*SourceWatcher, error) {
	if opts.Bus == nil {
		return nil, errors.New("source watcher: nil bus")
	}
	if opts.Delay <= 0 {
		opts.Delay = DefaultWatchDelay
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("source watcher: %w", err)
	}
	w := &SourceWatcher{
		log:     opts.Log.WithName("source-watcher"),
		bus:     opts.Bus,
		delay:   opts.Delay,
		fsw:     fsw,
		files:   make(map[string]struct{}),
		dirs:    make(map[string]int),
		timers:  make(map[string]*time.Timer),
		closeCh: make(chan struct{}),
	}
	w.wg.Add(1)
	go w.processLoop()
	return w, nil
}

// Watch starts reporting changes to path. Watching a file twice is a no-op.
func (w *SourceWatcher) Watch(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWatcherClosed
	}
	if _, ok := w.files[abs]; ok {
		return nil
	}

	dir := filepath.Dir(abs)
	if w.dirs[dir] == 0 {
		if err := w.fsw.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
	}
	w.dirs[dir]++
	w.files[abs] = struct{}{}
	w.log.V(1).Info("watching source", "path", abs)
	return nil
}

// Unwatch stops reporting changes to path. Unknown paths are ignored.
func (w *SourceWatcher) Unwatch(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("unwatch %s: %w", path, err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWatcherClosed
	}
	if _, ok := w.files[abs]; !ok {
		return nil
	}
	delete(w.files, abs)
	if t, ok := w.timers[abs]; ok {
		t.Stop()
		delete(w.timers, abs)
	}

	dir := filepath.Dir(abs)
	w.dirs[dir]--
	if w.dirs[dir] > 0 {
		return nil
	}
	delete(w.dirs, dir)
	if err := w.fsw.Remove(dir); err != nil && !errors.Is(err, fsnotify.ErrNonExistentWatch) {
		return fmt.Errorf("unwatch %s: %w", path, err)
	}
	return nil
}

// IsWatching reports whether path is watched.
func (w *SourceWatcher) IsWatching(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.files[abs]
	return ok
}

// Close stops the watcher. Pending change reports are dropped.
func (w *SourceWatcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	for p, t := range w.timers {
		t.Stop()
		delete(w.timers, p)
	}
	close(w.closeCh)
	w.mu.Unlock()

	w.wg.Wait()
	return w.fsw.Close()
}

func (w *SourceWatcher) processLoop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.closeCh:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Error(err, "watch error")
		}
	}
}

func (w *SourceWatcher) handle(ev fsnotify.Event) {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
		return
	}
	path := filepath.Clean(ev.Name)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if _, ok := w.files[path]; !ok {
		return
	}
	if t, ok := w.timers[path]; ok {
		t.Reset(w.delay)
		return
	}
	w.timers[path] = time.AfterFunc(w.delay, func() { w.fire(path) })
}

func (w *SourceWatcher) fire(path string) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	delete(w.timers, path)
	_, watched := w.files[path]
	w.mu.Unlock()
	if !watched {
		return
	}

	w.log.V(1).Info("source changed", "path", path)
	ev := event.NewEvent(session.TopicSourceChanged, session.SourceChanged{Path: path}, "source-watcher")
	if err := w.bus.Publish(context.Background(), ev); err != nil {
		w.log.Error(err, "publish failed", "path", path)
	}
}
