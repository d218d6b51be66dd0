package session

import (
	"errors"
	"fmt"
)

var (
	// ErrBusy is returned by requests that need a stopped target while the
	// target is running.
	ErrBusy = errors.New("target is running")

	// ErrEngineDead is returned by every request once the engine has died.
	ErrEngineDead = errors.New("debugger engine is dead")

	// ErrNoProgram is returned by requests that need a loaded program.
	ErrNoProgram = errors.New("no program loaded")

	// ErrNotAttached is returned by Detach when no target is attached.
	ErrNotAttached = errors.New("not attached to a target")

	// ErrShutdown is returned by requests made after Shutdown.
	ErrShutdown = errors.New("session is shut down")

	// ErrRequestTimeout fails a pending request that got no answer in time.
	ErrRequestTimeout = errors.New("request timed out")
)

// ValidationError rejects a request before it reaches the engine.
type ValidationError struct {
	// Op is the rejected request.
	Op string
	// Field names the invalid input.
	Field string
	// Value is the invalid input.
	Value any
	// Reason explains what is wrong with it.
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: invalid %s %v: %s", e.Op, e.Field, e.Value, e.Reason)
}

func invalid(op, field string, value any, reason string) error {
	return &ValidationError{Op: op, Field: field, Value: value, Reason: reason}
}
