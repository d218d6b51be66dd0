package event

import (
	"time"

	"github.com/google/uuid"

	"github.com/dshills/dbgcore/internal/event/topic"
)

// Event is a typed notification. Events are immutable once created.
type Event[T any] struct {
	// Type is the hierarchical event topic.
	Type topic.Topic

	// Payload is the event-specific data.
	Payload T

	// Metadata is standard event information.
	Metadata Metadata
}

// Metadata contains standard information attached to every event.
type Metadata struct {
	// ID is a unique identifier for this event instance.
	ID string

	// Timestamp is when the event was created.
	Timestamp time.Time

	// Source identifies the component that published the event.
	Source string

	// CorrelationID links the event to the request that caused it.
	CorrelationID string

	// Seq is the sequence number of the engine event that caused this one.
	Seq uint64
}

// NewEvent creates a new event with the given topic and payload.
func NewEvent[T any](eventType topic.Topic, payload T, source string) Event[T] {
	return Event[T]{
		Type:    eventType,
		Payload: payload,
		Metadata: Metadata{
			ID:        uuid.NewString(),
			Timestamp: time.Now(),
			Source:    source,
		},
	}
}

// EventTopic returns the event's topic.
func (e Event[T]) EventTopic() topic.Topic {
	return e.Type
}

// EventMetadata returns the event's metadata.
func (e Event[T]) EventMetadata() Metadata {
	return e.Metadata
}

// WithCorrelation returns a copy of the event with a correlation ID set.
func (e Event[T]) WithCorrelation(correlationID string) Event[T] {
	e.Metadata.CorrelationID = correlationID
	return e
}

// WithSeq returns a copy of the event tagged with an engine sequence number.
func (e Event[T]) WithSeq(seq uint64) Event[T] {
	e.Metadata.Seq = seq
	return e
}

// TopicProvider is implemented by types that can provide their topic.
type TopicProvider interface {
	EventTopic() topic.Topic
}

// MetadataProvider is implemented by types that can provide their metadata.
type MetadataProvider interface {
	EventMetadata() Metadata
}

// PayloadOf extracts a typed payload from a type-erased event.
func PayloadOf[T any](ev any) (T, bool) {
	e, ok := ev.(Event[T])
	if !ok {
		var zero T
		return zero, false
	}
	return e.Payload, true
}
