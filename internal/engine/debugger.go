package engine

import "context"

// State is the engine's own coarse state.
type State int

const (
	// StateNotStarted means no target is loaded or it has exited.
	StateNotStarted State = iota
	// StateReady means the engine is idle and accepts commands.
	StateReady
	// StateRunning means the target is executing.
	StateRunning
)

// String returns a string representation of the state.
func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not-started"
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	default:
		return "unknown"
	}
}

// Debugger is the request side of a debugger engine.
//
// Every method hands the request to the engine and returns; it does not wait
// for the engine to act on it. The error result only reports failure to
// deliver the request. Outcomes arrive as events on Events, tagged with the
// cookie given here when the request takes one.
type Debugger interface {
	LoadProgram(ctx context.Context, prog Program) error
	Run(ctx context.Context) error
	StopTarget(ctx context.Context) error
	StepOver(ctx context.Context) error
	StepIn(ctx context.Context) error
	StepOut(ctx context.Context) error
	Continue(ctx context.Context) error
	ContinueTo(ctx context.Context, file string, line int) error

	SetBreakpoint(ctx context.Context, req BreakpointRequest, cookie string) error
	DeleteBreakpoint(ctx context.Context, number int, cookie string) error
	EnableBreakpoint(ctx context.Context, number int) error
	DisableBreakpoint(ctx context.Context, number int) error
	SetWatchpoint(ctx context.Context, expr string, write, read bool, cookie string) error

	Disassemble(ctx context.Context, start, end Address, style DisassemblyStyle, cookie string) error
	PrintVariableValue(ctx context.Context, name, cookie string) error
	PrintVariableType(ctx context.Context, name, cookie string) error
	CreateVariable(ctx context.Context, name, cookie string) error
	CallFunction(ctx context.Context, expr, cookie string) error
	SelectFrame(ctx context.Context, level int, cookie string) error

	// Detach releases the target without killing it.
	Detach(ctx context.Context, cookie string) error
	// Terminate kills the target.
	Terminate(ctx context.Context) error
	// Close shuts the engine down. Events is closed afterwards.
	Close() error

	// Events returns the inbound event stream.
	Events() <-chan Event
}
