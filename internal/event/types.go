package event

import "context"

// Priority determines handler execution order. Lower values execute first.
type Priority int

const (
	// PriorityCritical is for state mirrors other observers read from.
	PriorityCritical Priority = 0

	// PriorityHigh is for primary views.
	PriorityHigh Priority = 100

	// PriorityNormal is the default.
	PriorityNormal Priority = 200

	// PriorityLow is for logging and metrics observers.
	PriorityLow Priority = 300
)

// String returns a human-readable priority name.
func (p Priority) String() string {
	switch {
	case p <= PriorityCritical:
		return "critical"
	case p <= PriorityHigh:
		return "high"
	case p <= PriorityNormal:
		return "normal"
	default:
		return "low"
	}
}

// Handler is the interface for event handlers.
type Handler interface {
	// Handle processes an event. The event is type-erased; use PayloadOf or
	// a type assertion.
	Handle(ctx context.Context, event any) error
}

// HandlerFunc is a function adapter for Handler.
type HandlerFunc func(ctx context.Context, event any) error

// Handle implements the Handler interface.
func (f HandlerFunc) Handle(ctx context.Context, event any) error {
	return f(ctx, event)
}

// TypedHandlerFunc handles events with a known payload type.
type TypedHandlerFunc[T any] func(ctx context.Context, event Event[T]) error

// AsHandler converts a typed handler to a Handler. Events of other payload
// types are skipped.
func AsHandler[T any](fn TypedHandlerFunc[T]) Handler {
	return HandlerFunc(func(ctx context.Context, event any) error {
		if e, ok := event.(Event[T]); ok {
			return fn(ctx, e)
		}
		return nil
	})
}

// FilterFunc is a predicate for filtering events.
type FilterFunc func(event any) bool

// ErrorHandler is told about handlers that failed or panicked.
type ErrorHandler func(event any, sub Subscription, err error)

// Stats contains event bus statistics.
type Stats struct {
	EventsPublished   uint64
	EventsDelivered   uint64
	HandlerErrors     uint64
	HandlerPanics     uint64
	ActiveSubscribers int
}
