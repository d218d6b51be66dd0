package output

import (
	"errors"
	"fmt"
)

var (
	// ErrNilEvent is returned when Dispatch is given a nil event.
	ErrNilEvent = errors.New("nil engine event")

	// ErrHandlerPanic is wrapped by a HandlerError whose handler panicked.
	ErrHandlerPanic = errors.New("handler panicked")
)

// HandlerError reports a handler that failed while processing an event.
type HandlerError struct {
	// Handler is the failing handler's name.
	Handler string
	// Seq numbers the dispatched event.
	Seq uint64
	// Event is the engine event name.
	Event string
	// Err is the handler's error.
	Err error
	// Stack is set when the handler panicked.
	Stack string
}

// Error implements the error interface.
func (e *HandlerError) Error() string {
	return fmt.Sprintf("handler %s failed on %s event #%d: %v", e.Handler, e.Event, e.Seq, e.Err)
}

// Unwrap returns the underlying error.
func (e *HandlerError) Unwrap() error {
	return e.Err
}

// RequestError is the failure delivered to a pending request when the
// engine answers with an error.
type RequestError struct {
	Command string
	Message string
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	if e.Command == "" {
		return "engine error: " + e.Message
	}
	return fmt.Sprintf("engine error in %s: %s", e.Command, e.Message)
}
