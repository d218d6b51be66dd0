package view

import (
	"context"
	"errors"
	"sync"

	"github.com/go-logr/logr"

	"github.com/dshills/dbgcore/internal/event"
	"github.com/dshills/dbgcore/internal/event/topic"
	"github.com/dshills/dbgcore/internal/location"
	"github.com/dshills/dbgcore/internal/session"
)

// Snapshot is what a LocationTracker currently shows.
type Snapshot struct {
	// Valid is false when there is no current frame.
	Valid    bool
	Location location.Location
	Markers  []location.Marker

	// Stale is set when the shown source file changed on disk.
	Stale bool
}

// TrackerOptions configures a LocationTracker.
type TrackerOptions struct {
	Log      logr.Logger
	Resolver *location.Resolver

	// Disassembler fetches instructions for address views. Nil leaves
	// address views unplaced.
	Disassembler location.Disassembler

	// Watcher, if set, watches every source file shown.
	Watcher *location.SourceWatcher

	// Interactive allows the resolver to prompt for missing files.
	Interactive bool

	// OnUpdate, if set, receives every new snapshot.
	OnUpdate func(Snapshot)
}

// LocationTracker follows the current frame: it resolves it to a source
// or address view and recomputes breakpoint markers from the table.
type LocationTracker struct {
	opts TrackerOptions
	log  logr.Logger

	mu   sync.Mutex
	snap Snapshot
	gen  uint64
}

// NewLocationTracker creates a tracker.
func NewLocationTracker(opts TrackerOptions) (*LocationTracker, error) {
	if opts.Resolver == nil {
		return nil, errors.New("location tracker: nil resolver")
	}
	return &LocationTracker{opts: opts, log: opts.Log.WithName("tracker")}, nil
}

// Name implements Observer.
func (*LocationTracker) Name() string { return "location" }

// Topics implements Observer.
func (*LocationTracker) Topics() []topic.Topic {
	return []topic.Topic{
		session.TopicFrameChanged,
		session.TopicBreakpointsChanged,
		session.TopicSourceChanged,
	}
}

// Snapshot returns what the tracker currently shows.
func (t *LocationTracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snap
}

// Refresh implements Observer.
func (t *LocationTracker) Refresh(ctx context.Context, src Source, ev any) error {
	switch topicOf(ev) {
	case session.TopicFrameChanged:
		return t.follow(ctx, src)
	case session.TopicBreakpointsChanged:
		t.update(func(s *Snapshot) bool {
			if !s.Valid {
				return false
			}
			s.Markers = markersFor(src, s.Location)
			return true
		})
	case session.TopicSourceChanged:
		changed, ok := event.PayloadOf[session.SourceChanged](ev)
		if !ok {
			return nil
		}
		t.update(func(s *Snapshot) bool {
			if !s.Valid || s.Location.Kind != location.KindSource || s.Location.Path != changed.Path {
				return false
			}
			s.Stale = true
			return true
		})
	}
	return nil
}

func (t *LocationTracker) follow(ctx context.Context, src Source) error {
	t.mu.Lock()
	t.gen++
	gen := t.gen
	prev := t.snap
	t.mu.Unlock()

	frame, ok := src.Frame()
	if !ok {
		t.unwatch(prev, "")
		t.set(gen, Snapshot{})
		return nil
	}

	loc, err := t.opts.Resolver.Resolve(ctx, frame, t.opts.Interactive)
	if err != nil {
		t.unwatch(prev, "")
		t.set(gen, Snapshot{})
		return err
	}

	if loc.Kind == location.KindSource {
		t.unwatch(prev, loc.Path)
		if t.opts.Watcher != nil {
			if err := t.opts.Watcher.Watch(loc.Path); err != nil {
				t.log.Error(err, "cannot watch source", "path", loc.Path)
			}
		}
	} else {
		t.unwatch(prev, "")
		t.log.V(1).Info("showing address view", "address", loc.Address, "reason", loc.Reason)
	}

	t.set(gen, Snapshot{Valid: true, Location: loc, Markers: markersFor(src, loc)})

	if loc.Kind == location.KindAddress && t.opts.Disassembler != nil {
		err := location.FetchInstructions(ctx, t.opts.Disassembler, loc, func(placed location.Location, err error) {
			if err != nil {
				t.log.Error(err, "cannot place address view", "address", loc.Address)
				return
			}
			t.update(func(s *Snapshot) bool {
				if t.gen != gen {
					return false
				}
				s.Location = placed
				return true
			})
		})
		if err != nil {
			t.log.Error(err, "cannot disassemble", "window", loc.Window)
		}
	}
	return nil
}

// set replaces the snapshot unless a newer frame has been followed since.
func (t *LocationTracker) set(gen uint64, snap Snapshot) {
	t.update(func(s *Snapshot) bool {
		if t.gen != gen {
			return false
		}
		*s = snap
		return true
	})
}

// update applies fn under the lock and publishes the snapshot when fn
// reports a change.
func (t *LocationTracker) update(fn func(*Snapshot) bool) {
	t.mu.Lock()
	changed := fn(&t.snap)
	snap := t.snap
	t.mu.Unlock()
	if changed && t.opts.OnUpdate != nil {
		t.opts.OnUpdate(snap)
	}
}

// unwatch stops watching the previously shown file unless it is keep.
func (t *LocationTracker) unwatch(prev Snapshot, keep string) {
	if t.opts.Watcher == nil || !prev.Valid || prev.Location.Kind != location.KindSource {
		return
	}
	if prev.Location.Path == keep {
		return
	}
	if err := t.opts.Watcher.Unwatch(prev.Location.Path); err != nil {
		t.log.Error(err, "cannot unwatch source", "path", prev.Location.Path)
	}
}

func markersFor(src Source, loc location.Location) []location.Marker {
	if loc.Kind == location.KindSource {
		return location.SourceMarkers(src, loc.Path)
	}
	return location.AddressMarkers(src, loc.Window)
}
