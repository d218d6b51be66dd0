package event

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/dbgcore/internal/event/topic"
)

type framePayload struct {
	Line int
}

func TestBusDeliversInPriorityThenSubscriptionOrder(t *testing.T) {
	b := NewBus()
	var order []string
	record := func(name string) HandlerFunc {
		return func(context.Context, any) error {
			order = append(order, name)
			return nil
		}
	}

	_, err := b.SubscribeFunc("debug.**", record("low"), WithPriority(PriorityLow))
	require.NoError(t, err)
	_, err = b.SubscribeFunc("debug.frame.changed", record("normal-1"))
	require.NoError(t, err)
	_, err = b.SubscribeFunc("debug.frame.*", record("normal-2"))
	require.NoError(t, err)
	_, err = b.SubscribeFunc("debug.frame.changed", record("critical"), WithPriority(PriorityCritical))
	require.NoError(t, err)
	_, err = b.SubscribeFunc("debug.breakpoints.changed", record("unrelated"))
	require.NoError(t, err)

	ev := NewEvent(topic.Topic("debug.frame.changed"), framePayload{Line: 3}, "test")
	require.NoError(t, b.Publish(context.Background(), ev))

	assert.Equal(t, []string{"critical", "normal-1", "normal-2", "low"}, order)
}

func TestBusIsolatesFailingHandlers(t *testing.T) {
	var reported []error
	b := NewBus(WithErrorHandler(func(_ any, _ Subscription, err error) {
		reported = append(reported, err)
	}))

	calls := 0
	_, _ = b.SubscribeFunc("debug.*", func(context.Context, any) error { panic("boom") })
	_, _ = b.SubscribeFunc("debug.*", func(context.Context, any) error { return errors.New("bad") })
	_, _ = b.SubscribeFunc("debug.*", func(context.Context, any) error { calls++; return nil })

	require.NoError(t, b.Publish(context.Background(), NewEvent(topic.Topic("debug.x"), 1, "test")))

	assert.Equal(t, 1, calls)
	require.Len(t, reported, 2)
	assert.ErrorIs(t, reported[0], ErrHandlerPanic)
	assert.EqualError(t, reported[1], "bad")

	stats := b.Stats()
	assert.Equal(t, uint64(1), stats.EventsPublished)
	assert.Equal(t, uint64(1), stats.EventsDelivered)
	assert.Equal(t, uint64(2), stats.HandlerErrors)
	assert.Equal(t, uint64(1), stats.HandlerPanics)
}

func TestSubscriptionLifecycle(t *testing.T) {
	b := NewBus()
	n := 0
	sub, err := b.SubscribeFunc("debug.output.console", func(context.Context, any) error { n++; return nil })
	require.NoError(t, err)
	ev := NewEvent(topic.Topic("debug.output.console"), "hello", "test")
	ctx := context.Background()

	require.NoError(t, b.Publish(ctx, ev))
	sub.Pause()
	assert.Equal(t, SubscriptionStatePaused, sub.State())
	require.NoError(t, b.Publish(ctx, ev))
	sub.Resume()
	require.NoError(t, b.Publish(ctx, ev))
	assert.Equal(t, 2, n)

	require.NoError(t, b.Unsubscribe(sub))
	require.NoError(t, b.Publish(ctx, ev))
	assert.Equal(t, 2, n)
	assert.ErrorIs(t, b.Unsubscribe(sub), ErrSubscriptionNotFound)
	assert.Equal(t, 0, b.Stats().ActiveSubscribers)
}

func TestSubscriptionOnceAndFilter(t *testing.T) {
	b := NewBus()
	once, filtered := 0, 0
	_, _ = b.SubscribeFunc("debug.**", func(context.Context, any) error { once++; return nil }, WithOnce())
	_, _ = b.Subscribe("debug.**", AsHandler(func(_ context.Context, ev Event[framePayload]) error {
		filtered++
		assert.Equal(t, 7, ev.Payload.Line)
		return nil
	}), WithFilter(func(ev any) bool {
		p, ok := PayloadOf[framePayload](ev)
		return ok && p.Line == 7
	}))

	ctx := context.Background()
	require.NoError(t, b.Publish(ctx, NewEvent(topic.Topic("debug.frame.changed"), framePayload{Line: 1}, "t")))
	require.NoError(t, b.Publish(ctx, NewEvent(topic.Topic("debug.frame.changed"), framePayload{Line: 7}, "t")))

	assert.Equal(t, 1, once)
	assert.Equal(t, 1, filtered)
	assert.Equal(t, 1, b.Stats().ActiveSubscribers)
}

func TestPublishRejectsInvalidEvents(t *testing.T) {
	b := NewBus()
	ctx := context.Background()

	assert.ErrorIs(t, b.Publish(ctx, "no topic"), ErrInvalidEvent)
	assert.ErrorIs(t, b.Publish(ctx, NewEvent(topic.Topic("debug.*"), 0, "t")), ErrInvalidTopic)
	assert.ErrorIs(t, b.Publish(ctx, NewEvent(topic.Topic(""), 0, "t")), ErrInvalidTopic)

	_, err := b.Subscribe("debug..x", HandlerFunc(func(context.Context, any) error { return nil }))
	assert.ErrorIs(t, err, ErrInvalidTopic)
	_, err = b.Subscribe("debug.x", nil)
	assert.ErrorIs(t, err, ErrNilHandler)
}

func TestEventMetadata(t *testing.T) {
	ev := NewEvent(topic.Topic("debug.session.state"), "ready", "session").WithCorrelation("req-1").WithSeq(9)
	assert.NotEmpty(t, ev.Metadata.ID)
	assert.Equal(t, "session", ev.Metadata.Source)
	assert.Equal(t, "req-1", ev.EventMetadata().CorrelationID)
	assert.Equal(t, uint64(9), ev.Metadata.Seq)
	assert.False(t, ev.Metadata.Timestamp.IsZero())
}
