package session

import (
	"context"
	"fmt"

	"github.com/dshills/dbgcore/internal/engine"
)

// requirement is what a request needs from the session before it is sent.
type requirement int

const (
	needAlive   requirement = iota // engine alive, session not shut down
	needProgram                    // plus a loaded program
	needStopped                    // plus a target that is not running
)

func (s *Session) check(need requirement) error {
	if s.isShutdown() {
		return ErrShutdown
	}
	st := s.Status()
	if !st.EngineAlive {
		return ErrEngineDead
	}
	if need >= needProgram && !st.ProgramLoaded {
		return ErrNoProgram
	}
	if need >= needStopped && st.Mode == ModeRunning {
		return ErrBusy
	}
	return nil
}

// send runs call after checking need.
func (s *Session) send(op string, need requirement, call func() error) error {
	if err := s.check(need); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.V(1).Info("request", "op", op)
	if err := call(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// sendPending registers a pending request and runs call with its cookie.
func (s *Session) sendPending(ctx context.Context, op string, need requirement, then Continuation, call func(cookie string) error) (*Request, error) {
	if err := s.check(need); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	req := s.pending.register(ctx, op, then)
	s.log.V(1).Info("request", "op", op, "id", req.ID)
	if err := call(req.ID); err != nil {
		err = fmt.Errorf("%s: %w", op, err)
		s.pending.complete(req.ID, nil, err)
		return nil, err
	}
	return req, nil
}

// LoadProgram loads prog into the engine.
func (s *Session) LoadProgram(ctx context.Context, prog engine.Program) error {
	if prog.Path == "" {
		return invalid("load program", "path", `""`, "program path is empty")
	}
	err := s.send("load program", needAlive, func() error {
		return s.eng.LoadProgram(ctx, prog)
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	prev := s.status
	s.program = prog
	s.status.ProgramLoaded = true
	s.mu.Unlock()
	(&mutator{s: s, ctx: ctx}).publishState(prev)
	return nil
}

// Run starts the loaded program.
func (s *Session) Run(ctx context.Context) error {
	return s.send("run", needStopped, func() error { return s.eng.Run(ctx) })
}

// StopTarget interrupts the running target.
func (s *Session) StopTarget(ctx context.Context) error {
	return s.send("stop target", needProgram, func() error { return s.eng.StopTarget(ctx) })
}

// StepOver steps to the next source line.
func (s *Session) StepOver(ctx context.Context) error {
	return s.send("step over", needStopped, func() error { return s.eng.StepOver(ctx) })
}

// StepIn steps into the next call.
func (s *Session) StepIn(ctx context.Context) error {
	return s.send("step in", needStopped, func() error { return s.eng.StepIn(ctx) })
}

// StepOut runs until the current function returns.
func (s *Session) StepOut(ctx context.Context) error {
	return s.send("step out", needStopped, func() error { return s.eng.StepOut(ctx) })
}

// Continue resumes the target.
func (s *Session) Continue(ctx context.Context) error {
	return s.send("continue", needStopped, func() error { return s.eng.Continue(ctx) })
}

// ContinueTo resumes the target until it reaches file:line.
func (s *Session) ContinueTo(ctx context.Context, file string, line int) error {
	const op = "continue to"
	if err := validateSourceLocation(op, file, line); err != nil {
		return err
	}
	return s.send(op, needStopped, func() error { return s.eng.ContinueTo(ctx, file, line) })
}

// SetBreakpoint asks the engine for a breakpoint. The table changes when
// the engine confirms it; the request completes with the confirmed
// []engine.Breakpoint.
func (s *Session) SetBreakpoint(ctx context.Context, req engine.BreakpointRequest, then Continuation) (*Request, error) {
	const op = "set breakpoint"
	switch req.Kind {
	case engine.LocationSource:
		if err := validateSourceLocation(op, req.File, req.Line); err != nil {
			return nil, err
		}
	case engine.LocationFunction:
		if req.Function == "" {
			return nil, invalid(op, "function", `""`, "function name is empty")
		}
	case engine.LocationAddress:
		if req.Address == 0 {
			return nil, invalid(op, "address", req.Address, "address is zero")
		}
	default:
		return nil, invalid(op, "location kind", req.Kind, "unknown location kind")
	}
	if req.IgnoreCount < 0 {
		return nil, invalid(op, "ignore count", req.IgnoreCount, "ignore count is negative")
	}
	return s.sendPending(ctx, op, needAlive, then, func(cookie string) error {
		return s.eng.SetBreakpoint(ctx, req, cookie)
	})
}

// BreakAt sets an enabled breakpoint at file:line.
func (s *Session) BreakAt(ctx context.Context, file string, line int, then Continuation) (*Request, error) {
	return s.SetBreakpoint(ctx, engine.BreakpointRequest{
		Kind:    engine.LocationSource,
		File:    file,
		Line:    line,
		Enabled: true,
	}, then)
}

// ToggleBreakpoint deletes the breakpoint at file:line if there is one and
// sets one otherwise.
func (s *Session) ToggleBreakpoint(ctx context.Context, file string, line int, then Continuation) (*Request, error) {
	if number, _, ok := s.table.FindByLocation(file, line); ok {
		return s.DeleteBreakpoint(ctx, number, then)
	}
	return s.BreakAt(ctx, file, line, then)
}

// DeleteBreakpoint asks the engine to delete breakpoint number.
func (s *Session) DeleteBreakpoint(ctx context.Context, number int, then Continuation) (*Request, error) {
	const op = "delete breakpoint"
	if number <= 0 {
		return nil, invalid(op, "number", number, "breakpoint numbers start at 1")
	}
	return s.sendPending(ctx, op, needAlive, then, func(cookie string) error {
		return s.eng.DeleteBreakpoint(ctx, number, cookie)
	})
}

// EnableBreakpoint enables breakpoint number.
func (s *Session) EnableBreakpoint(ctx context.Context, number int) error {
	if number <= 0 {
		return invalid("enable breakpoint", "number", number, "breakpoint numbers start at 1")
	}
	return s.send("enable breakpoint", needAlive, func() error { return s.eng.EnableBreakpoint(ctx, number) })
}

// DisableBreakpoint disables breakpoint number.
func (s *Session) DisableBreakpoint(ctx context.Context, number int) error {
	if number <= 0 {
		return invalid("disable breakpoint", "number", number, "breakpoint numbers start at 1")
	}
	return s.send("disable breakpoint", needAlive, func() error { return s.eng.DisableBreakpoint(ctx, number) })
}

// SetWatchpoint watches expr for writes, reads or both.
func (s *Session) SetWatchpoint(ctx context.Context, expr string, write, read bool, then Continuation) (*Request, error) {
	const op = "set watchpoint"
	if expr == "" {
		return nil, invalid(op, "expression", `""`, "expression is empty")
	}
	if !write && !read {
		return nil, invalid(op, "access", "none", "watch reads, writes or both")
	}
	return s.sendPending(ctx, op, needAlive, then, func(cookie string) error {
		return s.eng.SetWatchpoint(ctx, expr, write, read, cookie)
	})
}

// Disassemble requests the instructions in [start, end). The request
// completes with an engine.Disassembly.
func (s *Session) Disassemble(ctx context.Context, start, end engine.Address, style engine.DisassemblyStyle, then Continuation) (*Request, error) {
	const op = "disassemble"
	if end <= start {
		return nil, invalid(op, "range", fmt.Sprintf("[%s, %s)", start, end), "end must be above start")
	}
	return s.sendPending(ctx, op, needStopped, then, func(cookie string) error {
		return s.eng.Disassemble(ctx, start, end, style, cookie)
	})
}

// PrintVariableValue requests the value of name. The request completes
// with an engine.Variable.
func (s *Session) PrintVariableValue(ctx context.Context, name string, then Continuation) (*Request, error) {
	const op = "print variable value"
	if name == "" {
		return nil, invalid(op, "name", `""`, "variable name is empty")
	}
	return s.sendPending(ctx, op, needStopped, then, func(cookie string) error {
		return s.eng.PrintVariableValue(ctx, name, cookie)
	})
}

// PrintVariableType requests the type of name. The request completes with
// the type string.
func (s *Session) PrintVariableType(ctx context.Context, name string, then Continuation) (*Request, error) {
	const op = "print variable type"
	if name == "" {
		return nil, invalid(op, "name", `""`, "variable name is empty")
	}
	return s.sendPending(ctx, op, needStopped, then, func(cookie string) error {
		return s.eng.PrintVariableType(ctx, name, cookie)
	})
}

// CreateVariable creates an engine-side variable object for name.
func (s *Session) CreateVariable(ctx context.Context, name string, then Continuation) (*Request, error) {
	const op = "create variable"
	if name == "" {
		return nil, invalid(op, "name", `""`, "variable name is empty")
	}
	return s.sendPending(ctx, op, needStopped, then, func(cookie string) error {
		return s.eng.CreateVariable(ctx, name, cookie)
	})
}

// CallFunction evaluates a function call expression in the target.
func (s *Session) CallFunction(ctx context.Context, expr string, then Continuation) (*Request, error) {
	const op = "call function"
	if expr == "" {
		return nil, invalid(op, "expression", `""`, "expression is empty")
	}
	return s.sendPending(ctx, op, needStopped, then, func(cookie string) error {
		return s.eng.CallFunction(ctx, expr, cookie)
	})
}

// SelectFrame makes the frame at level current.
func (s *Session) SelectFrame(ctx context.Context, level int, then Continuation) (*Request, error) {
	const op = "select frame"
	if level < 0 {
		return nil, invalid(op, "level", level, "frame level is negative")
	}
	return s.sendPending(ctx, op, needStopped, then, func(cookie string) error {
		return s.eng.SelectFrame(ctx, level, cookie)
	})
}

// Detach releases the target without killing it.
func (s *Session) Detach(ctx context.Context, then Continuation) (*Request, error) {
	const op = "detach"
	if err := s.check(needProgram); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !s.Status().Attached {
		return nil, fmt.Errorf("%s: %w", op, ErrNotAttached)
	}
	return s.sendPending(ctx, op, needProgram, then, func(cookie string) error {
		return s.eng.Detach(ctx, cookie)
	})
}

func validateSourceLocation(op, file string, line int) error {
	if file == "" {
		return invalid(op, "file", `""`, "file name is empty")
	}
	if line <= 0 {
		return invalid(op, "line", line, "line numbers start at 1")
	}
	return nil
}
