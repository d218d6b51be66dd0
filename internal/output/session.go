package output

import "github.com/dshills/dbgcore/internal/engine"

// Warning classifies non-fatal conditions reported to the user.
type Warning string

const (
	// WarnSymbolWithoutLineInfo is a stop inside a function with no line
	// information. The current frame is left as it was.
	WarnSymbolWithoutLineInfo Warning = "symbol-without-line-info"

	// WarnScript reports a message raised by a user script.
	WarnScript Warning = "script"
)

// MsgSymbolNotAvailable is the error shown for a stop with neither line
// information nor a function name.
const MsgSymbolNotAvailable = "symbol not available"

// Stop describes a target stop that committed a new current frame.
type Stop struct {
	Reason           engine.StopReason
	ThreadID         int
	BreakpointNumber int
	Frame            *engine.Frame
}

// Session is the mutation surface handlers operate on. Readers of session
// state get copies; handlers are the only writers.
type Session interface {
	State() engine.State
	Frame() (engine.Frame, bool)

	// EngineAlive is false once MarkEngineDead ran.
	EngineAlive() bool

	// SetFrame replaces the current frame wholesale.
	SetFrame(frame engine.Frame)
	ClearFrame()
	SetState(state engine.State)
	SetAttached(attached bool)
	SetTargetInfo(pid int, exePath string)

	// MarkEngineDead moves the session to its terminal dead state and fails
	// every pending request.
	MarkEngineDead(err error)

	// NotifyStopped tells observers the target stopped at the current frame.
	NotifyStopped(stop Stop)

	UpsertBreakpoint(number int, bp engine.Breakpoint)
	RemoveBreakpoint(number int) bool
	CountHit(number int)

	// NotifyBreakpointsChanged tells observers to re-read the breakpoint table.
	NotifyBreakpointsChanged()

	Console(text string)
	Target(text string)
	Log(text string)
	Warn(kind Warning, msg string)
	Error(msg string)

	OverloadsChoice(entries []engine.OverloadEntry, cookie string)

	// Resolve completes the pending request registered under cookie. It
	// reports false when no request is pending under that cookie.
	Resolve(cookie string, result any, err error) bool
}
