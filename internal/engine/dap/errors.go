package dap

import "errors"

var (
	// ErrClosed is returned by requests made after Close.
	ErrClosed = errors.New("dap engine closed")

	// ErrAdapterGone reports that the adapter connection was lost.
	ErrAdapterGone = errors.New("debug adapter connection lost")

	// ErrUnknownPreset is returned for an adapter preset name that does not exist.
	ErrUnknownPreset = errors.New("unknown adapter preset")

	// ErrNoAdapter is returned when the adapter executable cannot be found.
	ErrNoAdapter = errors.New("debug adapter not available")

	// ErrNotSupported is returned for requests the adapter did not declare
	// support for.
	ErrNotSupported = errors.New("not supported by debug adapter")

	// ErrUnknownBreakpoint is returned for a breakpoint number the engine
	// never handed out.
	ErrUnknownBreakpoint = errors.New("unknown breakpoint")
)
