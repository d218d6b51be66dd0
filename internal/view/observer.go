package view

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-logr/logr"

	"github.com/dshills/dbgcore/internal/engine"
	"github.com/dshills/dbgcore/internal/event"
	"github.com/dshills/dbgcore/internal/event/topic"
	"github.com/dshills/dbgcore/internal/location"
	"github.com/dshills/dbgcore/internal/session"
)

// Source is the read-only session state observers refresh from.
// *session.Session implements it.
type Source interface {
	Status() session.Status
	Frame() (engine.Frame, bool)
	Breakpoints() []engine.Breakpoint
	location.BreakpointSource
}

// Observer is a view refreshed on session notifications.
type Observer interface {
	// Name identifies the observer in logs.
	Name() string

	// Topics lists the topic patterns the observer subscribes to.
	Topics() []topic.Topic

	// Refresh re-reads src after ev was published.
	Refresh(ctx context.Context, src Source, ev any) error
}

// prioritized observers choose their delivery order. Others get
// event.PriorityNormal.
type prioritized interface {
	Priority() event.Priority
}

// Sync owns the bus subscriptions of a set of observers.
type Sync struct {
	bus event.Bus
	src Source
	log logr.Logger

	mu     sync.Mutex
	subs   []event.Subscription
	byName map[string][]event.Subscription
	closed bool
}

// Attach subscribes observers to bus. Nothing stays subscribed if any
// subscription fails.
func Attach(bus event.Bus, src Source, log logr.Logger, observers ...Observer) (*Sync, error) {
	s := &Sync{bus: bus, src: src, log: log.WithName("view"), byName: make(map[string][]event.Subscription)}
	for _, o := range observers {
		if err := s.Add(o); err != nil {
			_ = s.Close()
			return nil, err
		}
	}
	return s, nil
}

// Add subscribes one more observer.
func (s *Sync) Add(o Observer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("view sync closed")
	}
	prio := event.PriorityNormal
	if p, ok := o.(prioritized); ok {
		prio = p.Priority()
	}
	for _, t := range o.Topics() {
		sub, err := s.bus.SubscribeFunc(t, s.handler(o), event.WithPriority(prio))
		if err != nil {
			return fmt.Errorf("subscribe %s to %s: %w", o.Name(), t, err)
		}
		s.subs = append(s.subs, sub)
		s.byName[o.Name()] = append(s.byName[o.Name()], sub)
	}
	s.log.V(1).Info("observer attached", "observer", o.Name())
	return nil
}

func (s *Sync) handler(o Observer) event.HandlerFunc {
	return func(ctx context.Context, ev any) error {
		if err := o.Refresh(ctx, s.src, ev); err != nil {
			kv := []any{"observer", o.Name(), "topic", topicOf(ev)}
			if mp, ok := ev.(event.MetadataProvider); ok {
				md := mp.EventMetadata()
				kv = append(kv, "seq", md.Seq, "correlation", md.CorrelationID)
			}
			s.log.Error(err, "refresh failed", kv...)
			return fmt.Errorf("%s: %w", o.Name(), err)
		}
		return nil
	}
}

// SetPaused stops or restarts delivery to the observer called name. A
// paused observer misses what is published meanwhile.
func (s *Sync) SetPaused(name string, paused bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	subs, ok := s.byName[name]
	if !ok || s.closed {
		return fmt.Errorf("no observer %q", name)
	}
	for _, sub := range subs {
		if paused {
			sub.Pause()
		} else {
			sub.Resume()
		}
	}
	return nil
}

// Close cancels every subscription.
func (s *Sync) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	var errs []error
	for _, sub := range s.subs {
		if err := s.bus.Unsubscribe(sub); err != nil && !errors.Is(err, event.ErrSubscriptionNotFound) {
			errs = append(errs, err)
		}
	}
	s.subs = nil
	s.byName = nil
	return errors.Join(errs...)
}

// topicOf returns the topic an event was published under.
func topicOf(ev any) topic.Topic {
	if tp, ok := ev.(event.TopicProvider); ok {
		return tp.EventTopic()
	}
	return ""
}
