package dap

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/go-dap"

	"github.com/dshills/dbgcore/internal/engine"
)

// maxDisassembly caps the instruction count of one disassemble request.
const maxDisassembly = 1024

// LoadProgram implements engine.Debugger with a launch request.
func (e *Engine) LoadProgram(_ context.Context, prog engine.Program) error {
	args, err := json.Marshal(e.preset.LaunchArgs(prog, e.stopOnEntry))
	if err != nil {
		return fmt.Errorf("encode launch arguments: %w", err)
	}
	req := &dap.LaunchRequest{Request: request("launch"), Arguments: args}
	return e.send(req, func(resp dap.ResponseMessage) {
		if err := responseError(resp); err != nil {
			e.emit(&engine.ErrorEvent{Message: fmt.Sprintf("cannot load %s: %v", prog.Path, err)})
		}
	})
}

// Run implements engine.Debugger. The first call finishes configuration,
// which starts the program; later calls continue it.
func (e *Engine) Run(ctx context.Context) error {
	e.mu.Lock()
	switch {
	case e.configured:
		e.mu.Unlock()
		return e.Continue(ctx)
	case !e.initialized:
		e.runWanted = true
		e.mu.Unlock()
		return nil
	}
	e.configured = true
	e.mu.Unlock()
	return e.configurationDone()
}

func (e *Engine) configurationDone() error {
	if !e.Capabilities().SupportsConfigurationDoneRequest {
		e.emit(&engine.RunningEvent{})
		return nil
	}
	return e.resume(&dap.ConfigurationDoneRequest{Request: request("configurationDone")})
}

// resume reports the target running and sends req. A refused request puts
// the engine back to ready.
func (e *Engine) resume(req dap.RequestMessage) error {
	e.emit(&engine.RunningEvent{ThreadID: e.thread()})
	return e.send(req, func(resp dap.ResponseMessage) {
		if err := responseError(resp); err != nil {
			e.emit(&engine.ErrorEvent{Message: err.Error()})
			e.emit(&engine.StateChangedEvent{State: engine.StateReady})
		}
	})
}

func (e *Engine) thread() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.threadID == 0 {
		return 1
	}
	return e.threadID
}

func (e *Engine) frame() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.frameID
}

// StopTarget implements engine.Debugger.
func (e *Engine) StopTarget(context.Context) error {
	req := &dap.PauseRequest{Request: request("pause"), Arguments: dap.PauseArguments{ThreadId: e.thread()}}
	return e.send(req, e.reportFailure(""))
}

// StepOver implements engine.Debugger.
func (e *Engine) StepOver(context.Context) error {
	return e.resume(&dap.NextRequest{Request: request("next"), Arguments: dap.NextArguments{ThreadId: e.thread()}})
}

// StepIn implements engine.Debugger.
func (e *Engine) StepIn(context.Context) error {
	return e.resume(&dap.StepInRequest{Request: request("stepIn"), Arguments: dap.StepInArguments{ThreadId: e.thread()}})
}

// StepOut implements engine.Debugger.
func (e *Engine) StepOut(context.Context) error {
	return e.resume(&dap.StepOutRequest{Request: request("stepOut"), Arguments: dap.StepOutArguments{ThreadId: e.thread()}})
}

// Continue implements engine.Debugger.
func (e *Engine) Continue(context.Context) error {
	return e.resume(&dap.ContinueRequest{Request: request("continue"), Arguments: dap.ContinueArguments{ThreadId: e.thread()}})
}

// ContinueTo implements engine.Debugger with a temporary breakpoint that is
// dropped at the next stop.
func (e *Engine) ContinueTo(ctx context.Context, file string, line int) error {
	e.mu.Lock()
	ent := e.bps.addTemporary(file, line)
	e.mu.Unlock()

	err := e.syncGroup(ent.group, ent.bp.Number, func(err error) {
		if err != nil {
			e.emit(&engine.ErrorEvent{Message: fmt.Sprintf("cannot run to %s:%d: %v", file, line, err)})
		}
	})
	if err != nil {
		e.mu.Lock()
		e.bps.remove(ent.bp.Number)
		e.mu.Unlock()
		return err
	}
	return e.Continue(ctx)
}

// SetBreakpoint implements engine.Debugger. The breakpoint gets its number
// at once; it is reported when the adapter answers.
func (e *Engine) SetBreakpoint(_ context.Context, req engine.BreakpointRequest, cookie string) error {
	caps := e.Capabilities()
	switch {
	case req.Kind == engine.LocationFunction && !caps.SupportsFunctionBreakpoints:
		return fmt.Errorf("function breakpoints: %w", ErrNotSupported)
	case req.Kind == engine.LocationAddress && !caps.SupportsInstructionBreakpoints:
		return fmt.Errorf("address breakpoints: %w", ErrNotSupported)
	}

	e.mu.Lock()
	ent := e.bps.add(req)
	e.mu.Unlock()
	number := ent.bp.Number

	err := e.syncGroup(ent.group, number, func(err error) {
		if err != nil {
			e.mu.Lock()
			e.bps.remove(number)
			e.mu.Unlock()
			e.emit(&engine.ErrorEvent{Message: fmt.Sprintf("cannot set breakpoint at %s: %v", req, err), Cookie: cookie})
			return
		}
		e.reportBreakpoint(number, cookie)
	})
	if err != nil {
		e.mu.Lock()
		e.bps.remove(number)
		e.mu.Unlock()
	}
	return err
}

// reportBreakpoint emits the current state of breakpoint number.
func (e *Engine) reportBreakpoint(number int, cookie string) {
	bp, ok := e.snapshot(number)
	if !ok {
		e.emit(&engine.ErrorEvent{Message: fmt.Sprintf("breakpoint %d vanished", number), Cookie: cookie})
		return
	}
	e.emit(&engine.BreakpointsSetEvent{Breakpoints: map[int]engine.Breakpoint{number: bp}, Cookie: cookie})
}

// DeleteBreakpoint implements engine.Debugger.
func (e *Engine) DeleteBreakpoint(_ context.Context, number int, cookie string) error {
	e.mu.Lock()
	ent, ok := e.bps.get(number)
	if !ok || ent.temporary {
		e.mu.Unlock()
		return fmt.Errorf("delete breakpoint %d: %w", number, ErrUnknownBreakpoint)
	}
	e.bps.remove(number)
	e.mu.Unlock()

	restore := func() {
		e.mu.Lock()
		e.bps.restore(ent)
		e.mu.Unlock()
	}
	err := e.syncGroup(ent.group, number, func(err error) {
		if err != nil {
			restore()
			e.emit(&engine.ErrorEvent{Message: fmt.Sprintf("cannot delete breakpoint %d: %v", number, err), Cookie: cookie})
			return
		}
		e.emit(&engine.BreakpointDeletedEvent{Breakpoint: ent.bp, Number: number, Cookie: cookie})
	})
	if err != nil {
		restore()
	}
	return err
}

// EnableBreakpoint implements engine.Debugger.
func (e *Engine) EnableBreakpoint(_ context.Context, number int) error {
	return e.setEnabled(number, true)
}

// DisableBreakpoint implements engine.Debugger. The breakpoint is removed
// from the adapter but kept, with its number, by the engine.
func (e *Engine) DisableBreakpoint(_ context.Context, number int) error {
	return e.setEnabled(number, false)
}

func (e *Engine) setEnabled(number int, enabled bool) error {
	e.mu.Lock()
	ent, ok := e.bps.get(number)
	if !ok || ent.temporary {
		e.mu.Unlock()
		return fmt.Errorf("breakpoint %d: %w", number, ErrUnknownBreakpoint)
	}
	if ent.bp.Enabled == enabled {
		e.mu.Unlock()
		e.reportBreakpoint(number, "")
		return nil
	}
	ent.bp.Enabled = enabled
	if !enabled {
		ent.adapterID = 0
		ent.bp.Verified = false
	}
	e.mu.Unlock()

	verb := map[bool]string{true: "enable", false: "disable"}[enabled]
	return e.syncGroup(ent.group, number, func(err error) {
		if err != nil {
			e.emit(&engine.ErrorEvent{Message: fmt.Sprintf("cannot %s breakpoint %d: %v", verb, number, err)})
			return
		}
		e.reportBreakpoint(number, "")
	})
}

// SetWatchpoint implements engine.Debugger with a data breakpoint. The
// adapter is first asked whether expr can be watched at all.
func (e *Engine) SetWatchpoint(_ context.Context, expr string, write, read bool, cookie string) error {
	if !e.Capabilities().SupportsDataBreakpoints {
		return fmt.Errorf("watchpoints: %w", ErrNotSupported)
	}
	info := &dap.DataBreakpointInfoRequest{
		Request:   request("dataBreakpointInfo"),
		Arguments: dap.DataBreakpointInfoArguments{Name: expr},
	}
	return e.send(info, func(resp dap.ResponseMessage) {
		fail := func(err error) {
			e.emit(&engine.ErrorEvent{Message: fmt.Sprintf("cannot watch %s: %v", expr, err), Cookie: cookie})
		}
		if err := responseError(resp); err != nil {
			fail(err)
			return
		}
		r, ok := resp.(*dap.DataBreakpointInfoResponse)
		if !ok {
			fail(fmt.Errorf("unexpected %T", resp))
			return
		}
		dataID := fmt.Sprint(r.Body.DataId)
		if dataID == "" || dataID == "<nil>" {
			fail(fmt.Errorf("%s", r.Body.Description))
			return
		}

		e.mu.Lock()
		ent := e.bps.addWatch(expr, dataID, write, read)
		e.mu.Unlock()
		number := ent.bp.Number
		err := e.syncGroup(ent.group, number, func(err error) {
			if err != nil {
				e.mu.Lock()
				e.bps.remove(number)
				e.mu.Unlock()
				fail(err)
				return
			}
			e.reportBreakpoint(number, cookie)
		})
		if err != nil {
			e.mu.Lock()
			e.bps.remove(number)
			e.mu.Unlock()
			fail(err)
		}
	})
}

// Disassemble implements engine.Debugger. Instructions outside [start, end)
// are dropped from the answer.
func (e *Engine) Disassemble(_ context.Context, start, end engine.Address, style engine.DisassemblyStyle, cookie string) error {
	if !e.Capabilities().SupportsDisassembleRequest {
		return fmt.Errorf("disassemble: %w", ErrNotSupported)
	}
	count := maxDisassembly
	if span := end - start; span < maxDisassembly {
		count = int(span)
	}
	req := &dap.DisassembleRequest{
		Request: request("disassemble"),
		Arguments: dap.DisassembleArguments{
			MemoryReference:  start.String(),
			InstructionCount: count,
			ResolveSymbols:   true,
		},
	}
	return e.send(req, func(resp dap.ResponseMessage) {
		if err := responseError(resp); err != nil {
			e.emit(&engine.ErrorEvent{Message: err.Error(), Cookie: cookie})
			return
		}
		r, ok := resp.(*dap.DisassembleResponse)
		if !ok {
			e.emit(&engine.ErrorEvent{Message: fmt.Sprintf("disassemble: unexpected %T", resp), Cookie: cookie})
			return
		}
		e.emit(&engine.DisassemblyEvent{
			Disassembly: toDisassembly(r.Body.Instructions, start, end, style),
			Cookie:      cookie,
		})
	})
}

// evaluate sends an evaluate request in the selected frame and passes the
// result to then, or reports the failure against cookie.
func (e *Engine) evaluate(expr, cookie string, then func(dap.EvaluateResponseBody)) error {
	req := &dap.EvaluateRequest{
		Request: request("evaluate"),
		Arguments: dap.EvaluateArguments{
			Expression: expr,
			FrameId:    e.frame(),
			Context:    "watch",
		},
	}
	return e.send(req, func(resp dap.ResponseMessage) {
		if err := responseError(resp); err != nil {
			e.emit(&engine.ErrorEvent{Message: err.Error(), Cookie: cookie})
			return
		}
		r, ok := resp.(*dap.EvaluateResponse)
		if !ok {
			e.emit(&engine.ErrorEvent{Message: fmt.Sprintf("evaluate: unexpected %T", resp), Cookie: cookie})
			return
		}
		then(r.Body)
	})
}

// PrintVariableValue implements engine.Debugger.
func (e *Engine) PrintVariableValue(_ context.Context, name, cookie string) error {
	return e.evaluate(name, cookie, func(body dap.EvaluateResponseBody) {
		e.emit(&engine.VariableValueEvent{Name: name, Variable: toVariable(name, body), Cookie: cookie})
	})
}

// PrintVariableType implements engine.Debugger.
func (e *Engine) PrintVariableType(_ context.Context, name, cookie string) error {
	return e.evaluate(name, cookie, func(body dap.EvaluateResponseBody) {
		if body.Type == "" {
			e.emit(&engine.ErrorEvent{Message: fmt.Sprintf("type of %s is not known", name), Cookie: cookie})
			return
		}
		e.emit(&engine.VariableTypeEvent{Name: name, Type: body.Type, Cookie: cookie})
	})
}

// CreateVariable implements engine.Debugger. The variable's Ref expands its
// children through the adapter.
func (e *Engine) CreateVariable(_ context.Context, name, cookie string) error {
	return e.evaluate(name, cookie, func(body dap.EvaluateResponseBody) {
		e.emit(&engine.VariableCreatedEvent{Variable: toVariable(name, body), Cookie: cookie})
	})
}

// CallFunction implements engine.Debugger.
func (e *Engine) CallFunction(_ context.Context, expr, cookie string) error {
	return e.evaluate(expr, cookie, func(body dap.EvaluateResponseBody) {
		e.emit(&engine.VariableValueEvent{Name: expr, Variable: toVariable(expr, body), Cookie: cookie})
	})
}

// SelectFrame implements engine.Debugger. Later evaluations run in the
// selected frame.
func (e *Engine) SelectFrame(_ context.Context, level int, cookie string) error {
	thread := e.thread()
	req := &dap.StackTraceRequest{
		Request:   request("stackTrace"),
		Arguments: dap.StackTraceArguments{ThreadId: thread, StartFrame: level, Levels: 1},
	}
	return e.send(req, func(resp dap.ResponseMessage) {
		if err := responseError(resp); err != nil {
			e.emit(&engine.ErrorEvent{Message: err.Error(), Cookie: cookie})
			return
		}
		r, ok := resp.(*dap.StackTraceResponse)
		if !ok || len(r.Body.StackFrames) == 0 {
			e.emit(&engine.ErrorEvent{Message: fmt.Sprintf("no frame at level %d", level), Cookie: cookie})
			return
		}
		sf := r.Body.StackFrames[0]
		e.mu.Lock()
		e.frameID = sf.Id
		e.mu.Unlock()
		e.emit(&engine.FrameSelectedEvent{Frame: toFrame(sf, level, thread), Cookie: cookie})
	})
}

// detachRequest is a disconnect request that always carries
// terminateDebuggee. dap.DisconnectArguments omits it when false, and
// adapters then kill a launched program.
type detachRequest struct {
	dap.Request
	Arguments detachArguments `json:"arguments"`
}

type detachArguments struct {
	Restart           bool `json:"restart"`
	TerminateDebuggee bool `json:"terminateDebuggee"`
}

// Detach implements engine.Debugger.
func (e *Engine) Detach(_ context.Context, cookie string) error {
	req := &detachRequest{Request: request("disconnect")}
	return e.send(req, func(resp dap.ResponseMessage) {
		if err := responseError(resp); err != nil {
			e.emit(&engine.ErrorEvent{Message: err.Error(), Cookie: cookie})
			return
		}
		e.emit(&engine.DetachedEvent{Cookie: cookie})
	})
}

// Terminate implements engine.Debugger. Unlike other requests it waits for
// the adapter's answer.
func (e *Engine) Terminate(ctx context.Context) error {
	var req dap.RequestMessage
	if e.Capabilities().SupportsTerminateRequest {
		req = &dap.TerminateRequest{Request: request("terminate")}
	} else {
		req = &dap.DisconnectRequest{
			Request:   request("disconnect"),
			Arguments: &dap.DisconnectArguments{TerminateDebuggee: true},
		}
	}
	if _, err := e.call(ctx, req); err != nil {
		return fmt.Errorf("terminate: %w", err)
	}
	return nil
}

// reportFailure returns a reply that reports a refused request.
func (e *Engine) reportFailure(cookie string) func(dap.ResponseMessage) {
	return func(resp dap.ResponseMessage) {
		if err := responseError(resp); err != nil {
			e.emit(&engine.ErrorEvent{Message: err.Error(), Cookie: cookie})
		}
	}
}
