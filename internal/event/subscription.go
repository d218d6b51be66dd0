package event

import (
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/dshills/dbgcore/internal/event/topic"
)

// SubscriptionState represents the state of a subscription.
type SubscriptionState int32

const (
	// SubscriptionStateActive means the subscription is receiving events.
	SubscriptionStateActive SubscriptionState = iota

	// SubscriptionStatePaused means delivery is suspended until Resume.
	SubscriptionStatePaused

	// SubscriptionStateCancelled is terminal.
	SubscriptionStateCancelled
)

// String returns a human-readable state name.
func (s SubscriptionState) String() string {
	switch s {
	case SubscriptionStateActive:
		return "active"
	case SubscriptionStatePaused:
		return "paused"
	case SubscriptionStateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Subscription represents an active event subscription.
type Subscription interface {
	ID() string
	Topic() topic.Topic
	State() SubscriptionState
	IsActive() bool
	Pause()
	Resume()

	// Cancel permanently cancels the subscription.
	Cancel()
}

// SubscriptionConfig contains configuration for a subscription.
type SubscriptionConfig struct {
	// Priority determines execution order (lower values execute first).
	Priority Priority

	// Filter is an optional predicate; events are delivered only when it
	// returns true.
	Filter FilterFunc

	// Once cancels the subscription after the first delivered event.
	Once bool
}

// SubscriptionOption configures a subscription.
type SubscriptionOption func(*SubscriptionConfig)

// WithPriority sets the subscription priority.
func WithPriority(p Priority) SubscriptionOption {
	return func(c *SubscriptionConfig) { c.Priority = p }
}

// WithFilter sets a filter predicate.
func WithFilter(f FilterFunc) SubscriptionOption {
	return func(c *SubscriptionConfig) { c.Filter = f }
}

// WithOnce sets the subscription to auto-cancel after the first event.
func WithOnce() SubscriptionOption {
	return func(c *SubscriptionConfig) { c.Once = true }
}

type subscription struct {
	id      string
	pattern topic.Topic
	handler Handler
	config  SubscriptionConfig
	state   atomic.Int32
	seq     uint64 // insertion order, ties broken by it
}

func newSubscription(pattern topic.Topic, h Handler, seq uint64, opts []SubscriptionOption) *subscription {
	cfg := SubscriptionConfig{Priority: PriorityNormal}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &subscription{
		id:      uuid.NewString(),
		pattern: pattern,
		handler: h,
		config:  cfg,
		seq:     seq,
	}
}

func (s *subscription) ID() string         { return s.id }
func (s *subscription) Topic() topic.Topic { return s.pattern }
func (s *subscription) IsActive() bool     { return s.State() == SubscriptionStateActive }

func (s *subscription) State() SubscriptionState {
	return SubscriptionState(s.state.Load())
}

func (s *subscription) Pause() {
	s.state.CompareAndSwap(int32(SubscriptionStateActive), int32(SubscriptionStatePaused))
}

func (s *subscription) Resume() {
	s.state.CompareAndSwap(int32(SubscriptionStatePaused), int32(SubscriptionStateActive))
}

func (s *subscription) Cancel() {
	s.state.Store(int32(SubscriptionStateCancelled))
}

// accepts reports whether the event should be delivered. A Once
// subscription claims its single delivery here.
func (s *subscription) accepts(ev any) bool {
	if !s.IsActive() {
		return false
	}
	if s.config.Filter != nil && !s.config.Filter(ev) {
		return false
	}
	if s.config.Once {
		return s.state.CompareAndSwap(int32(SubscriptionStateActive), int32(SubscriptionStateCancelled))
	}
	return true
}
