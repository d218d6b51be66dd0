package view

import (
	"context"

	"github.com/dshills/dbgcore/internal/event"
	"github.com/dshills/dbgcore/internal/event/topic"
)

// Expectation waits for the first notification matching a predicate.
type Expectation struct {
	bus  event.Bus
	sub  event.Subscription
	done chan struct{}
	ev   any
}

// Expect subscribes to pattern for a single notification accepted by match.
// The subscription exists when Expect returns, so nothing published after
// that is missed.
func Expect(bus event.Bus, pattern topic.Topic, match func(ev any) bool) (*Expectation, error) {
	x := &Expectation{bus: bus, done: make(chan struct{})}
	sub, err := bus.SubscribeFunc(pattern, func(_ context.Context, ev any) error {
		x.ev = ev
		close(x.done)
		return nil
	}, event.WithOnce(), event.WithFilter(match))
	if err != nil {
		return nil, err
	}
	x.sub = sub
	return x, nil
}

// Done is closed once a matching notification arrived.
func (x *Expectation) Done() <-chan struct{} {
	return x.done
}

// Wait blocks until the notification arrives or ctx is done.
func (x *Expectation) Wait(ctx context.Context) (any, error) {
	select {
	case <-x.done:
		return x.ev, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Cancel drops the subscription if it is still waiting.
func (x *Expectation) Cancel() {
	_ = x.bus.Unsubscribe(x.sub)
}
