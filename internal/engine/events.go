package engine

// Event is one inbound notification from the engine. Events are delivered
// exactly once per occurrence, in engine emission order.
type Event interface {
	// EventName returns a short name used in logs.
	EventName() string
}

// OutputEvent carries one raw output batch.
type OutputEvent struct {
	Output Output
}

// BreakpointsSetEvent confirms one or more breakpoints, keyed by number.
type BreakpointsSetEvent struct {
	Breakpoints map[int]Breakpoint
	Cookie      string
}

// BreakpointDeletedEvent confirms deletion of a breakpoint.
type BreakpointDeletedEvent struct {
	Breakpoint Breakpoint
	Number     int
	Cookie     string
}

// StoppedEvent reports that the target stopped.
type StoppedEvent struct {
	Reason           StopReason
	HasFrame         bool
	Frame            Frame
	ThreadID         int
	BreakpointNumber int
	Cookie           string
}

// RunningEvent reports that the target is executing.
type RunningEvent struct {
	ThreadID int
	Cookie   string
}

// ProgramFinishedEvent reports that the target exited.
type ProgramFinishedEvent struct {
	ExitCode int
}

// EngineDiedEvent reports that the engine process or connection is gone.
type EngineDiedEvent struct {
	Err error
}

// DetachedEvent acknowledges a detach request.
type DetachedEvent struct {
	Cookie string
}

// StateChangedEvent reports the engine's own notion of its state.
type StateChangedEvent struct {
	State State
}

// VariableValueEvent answers a print-value or call-function request.
type VariableValueEvent struct {
	Name     string
	Variable Variable
	Cookie   string
}

// VariableTypeEvent answers a print-type request.
type VariableTypeEvent struct {
	Name   string
	Type   string
	Cookie string
}

// VariableCreatedEvent answers a create-variable request.
type VariableCreatedEvent struct {
	Variable Variable
	Cookie   string
}

// DisassemblyEvent answers a disassemble request.
type DisassemblyEvent struct {
	Disassembly Disassembly
	Cookie      string
}

// FrameSelectedEvent answers a select-frame request.
type FrameSelectedEvent struct {
	Frame  Frame
	Cookie string
}

// OverloadsChoiceEvent asks the user to pick among ambiguous locations.
type OverloadsChoiceEvent struct {
	Entries []OverloadEntry
	Cookie  string
}

// TargetInfoEvent reports the debugged process.
type TargetInfoEvent struct {
	PID     int
	ExePath string
}

// ErrorEvent carries an engine error message. When Cookie is set the error
// answers that request.
type ErrorEvent struct {
	Message string
	Cookie  string
}

func (*OutputEvent) EventName() string            { return "output" }
func (*BreakpointsSetEvent) EventName() string    { return "breakpoints-set" }
func (*BreakpointDeletedEvent) EventName() string { return "breakpoint-deleted" }
func (*StoppedEvent) EventName() string           { return "stopped" }
func (*RunningEvent) EventName() string           { return "running" }
func (*ProgramFinishedEvent) EventName() string   { return "program-finished" }
func (*EngineDiedEvent) EventName() string        { return "engine-died" }
func (*DetachedEvent) EventName() string          { return "detached" }
func (*StateChangedEvent) EventName() string      { return "state-changed" }
func (*VariableValueEvent) EventName() string     { return "variable-value" }
func (*VariableTypeEvent) EventName() string      { return "variable-type" }
func (*VariableCreatedEvent) EventName() string   { return "variable-created" }
func (*DisassemblyEvent) EventName() string       { return "disassembly" }
func (*FrameSelectedEvent) EventName() string     { return "frame-selected" }
func (*OverloadsChoiceEvent) EventName() string   { return "overloads-choice" }
func (*TargetInfoEvent) EventName() string        { return "target-info" }
func (*ErrorEvent) EventName() string             { return "error" }

// CookieOf returns the cookie carried by ev, or "" if it has none.
func CookieOf(ev Event) string {
	switch e := ev.(type) {
	case *OutputEvent:
		if e.Output.Result != nil && e.Output.Result.Cookie != "" {
			return e.Output.Result.Cookie
		}
		return e.Output.Command.Cookie
	case *BreakpointsSetEvent:
		return e.Cookie
	case *BreakpointDeletedEvent:
		return e.Cookie
	case *StoppedEvent:
		return e.Cookie
	case *RunningEvent:
		return e.Cookie
	case *DetachedEvent:
		return e.Cookie
	case *VariableValueEvent:
		return e.Cookie
	case *VariableTypeEvent:
		return e.Cookie
	case *VariableCreatedEvent:
		return e.Cookie
	case *DisassemblyEvent:
		return e.Cookie
	case *FrameSelectedEvent:
		return e.Cookie
	case *OverloadsChoiceEvent:
		return e.Cookie
	case *ErrorEvent:
		return e.Cookie
	default:
		return ""
	}
}
