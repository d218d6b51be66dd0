package event

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync/atomic"

	"github.com/dshills/dbgcore/internal/event/topic"
)

// Bus is the observer notification bus.
type Bus interface {
	// Publish delivers the event to every matching subscriber before
	// returning. The event must implement TopicProvider.
	Publish(ctx context.Context, event any) error

	Subscribe(pattern topic.Topic, handler Handler, opts ...SubscriptionOption) (Subscription, error)
	SubscribeFunc(pattern topic.Topic, fn HandlerFunc, opts ...SubscriptionOption) (Subscription, error)
	Unsubscribe(sub Subscription) error

	Stats() Stats
}

type bus struct {
	reg    registry
	config busConfig

	published atomic.Uint64
	delivered atomic.Uint64
	errs      atomic.Uint64
	panics    atomic.Uint64
}

// NewBus creates a synchronous event bus.
func NewBus(opts ...BusOption) Bus {
	cfg := defaultBusConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &bus{config: cfg}
}

func (b *bus) Publish(ctx context.Context, ev any) error {
	tp, ok := ev.(TopicProvider)
	if !ok {
		return fmt.Errorf("%w: %T does not provide a topic", ErrInvalidEvent, ev)
	}
	t := tp.EventTopic()
	if t.IsWildcard() || !t.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidTopic, t)
	}
	b.published.Add(1)

	for _, sub := range b.reg.match(t) {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !sub.accepts(ev) {
			continue
		}
		if err := b.deliver(ctx, sub, t, ev); err != nil {
			b.errs.Add(1)
			b.config.errorHandler(ev, sub, err)
			continue
		}
		b.delivered.Add(1)
	}
	return nil
}

func (b *bus) deliver(ctx context.Context, sub *subscription, t topic.Topic, ev any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			b.panics.Add(1)
			err = &PanicError{
				SubscriptionID: sub.id,
				Topic:          t.String(),
				Value:          r,
				Stack:          string(debug.Stack()),
			}
		}
	}()
	return sub.handler.Handle(ctx, ev)
}

func (b *bus) Subscribe(pattern topic.Topic, h Handler, opts ...SubscriptionOption) (Subscription, error) {
	if h == nil {
		return nil, ErrNilHandler
	}
	if !pattern.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTopic, pattern)
	}
	return b.reg.add(pattern, h, opts), nil
}

func (b *bus) SubscribeFunc(pattern topic.Topic, fn HandlerFunc, opts ...SubscriptionOption) (Subscription, error) {
	if fn == nil {
		return nil, ErrNilHandler
	}
	return b.Subscribe(pattern, fn, opts...)
}

func (b *bus) Unsubscribe(sub Subscription) error {
	if sub == nil {
		return ErrInvalidSubscription
	}
	if !b.reg.remove(sub.ID()) {
		return ErrSubscriptionNotFound
	}
	return nil
}

func (b *bus) Stats() Stats {
	return Stats{
		EventsPublished:   b.published.Load(),
		EventsDelivered:   b.delivered.Load(),
		HandlerErrors:     b.errs.Load(),
		HandlerPanics:     b.panics.Load(),
		ActiveSubscribers: b.reg.count(),
	}
}
