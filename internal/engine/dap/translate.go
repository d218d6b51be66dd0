package dap

import (
	"strconv"
	"strings"

	"github.com/google/go-dap"

	"github.com/dshills/dbgcore/internal/engine"
)

func (e *Engine) handleEvent(m dap.EventMessage) {
	switch ev := m.(type) {
	case *dap.InitializedEvent:
		e.onInitialized()
	case *dap.StoppedEvent:
		e.onStopped(ev.Body)
	case *dap.ContinuedEvent:
		e.emit(&engine.RunningEvent{ThreadID: ev.Body.ThreadId})
	case *dap.OutputEvent:
		e.onOutput(ev.Body)
	case *dap.ExitedEvent:
		e.mu.Lock()
		e.exited = true
		e.mu.Unlock()
		e.emit(&engine.ProgramFinishedEvent{ExitCode: ev.Body.ExitCode})
	case *dap.TerminatedEvent:
		e.mu.Lock()
		exited := e.exited
		e.exited = true
		e.mu.Unlock()
		if !exited {
			e.emit(&engine.ProgramFinishedEvent{})
		}
	case *dap.ProcessEvent:
		e.emit(&engine.TargetInfoEvent{PID: ev.Body.SystemProcessId, ExePath: ev.Body.Name})
	case *dap.ThreadEvent:
		if ev.Body.Reason == "started" {
			e.mu.Lock()
			if e.threadID == 0 {
				e.threadID = ev.Body.ThreadId
			}
			e.mu.Unlock()
		}
	case *dap.BreakpointEvent:
		e.onBreakpointEvent(ev.Body)
	default:
		e.log.V(1).Info("ignoring event", "event", m.GetEvent().Event)
	}
}

// onInitialized flushes the breakpoint syncs queued before the adapter was
// ready and finishes configuration if Run already asked for it.
func (e *Engine) onInitialized() {
	e.mu.Lock()
	e.initialized = true
	deferred := e.deferred
	e.deferred = nil
	run := e.runWanted
	e.runWanted = false
	if run {
		e.configured = true
	}
	e.mu.Unlock()

	for _, fn := range deferred {
		fn()
	}
	if run {
		if err := e.configurationDone(); err != nil {
			e.emit(&engine.ErrorEvent{Message: err.Error()})
		}
	}
}

// onStopped fetches the top frame of the stopped thread and then reports
// the stop. Temporary breakpoints are dropped first.
func (e *Engine) onStopped(body dap.StoppedEventBody) {
	reason := stopReason(body.Reason)

	e.mu.Lock()
	if body.ThreadId != 0 {
		e.threadID = body.ThreadId
	}
	thread := e.threadID
	number, temporary := 0, false
	for _, id := range body.HitBreakpointIds {
		if ent, ok := e.bps.byAdapterID(id); ok {
			if ent.temporary {
				temporary = true
				continue
			}
			number = ent.bp.Number
			break
		}
	}
	groups := e.bps.dropTemporaries()
	e.mu.Unlock()

	for _, g := range groups {
		err := e.syncGroup(g, 0, func(err error) {
			if err != nil {
				e.log.Error(err, "cannot drop temporary breakpoint")
			}
		})
		if err != nil {
			e.log.Error(err, "cannot drop temporary breakpoint")
		}
	}
	if temporary && number == 0 {
		reason = engine.StopLocationReached
	}

	req := &dap.StackTraceRequest{
		Request:   request("stackTrace"),
		Arguments: dap.StackTraceArguments{ThreadId: thread, Levels: 1},
	}
	err := e.send(req, func(resp dap.ResponseMessage) {
		st := &engine.StoppedEvent{Reason: reason, ThreadID: thread, BreakpointNumber: number}
		if r, ok := resp.(*dap.StackTraceResponse); ok && len(r.Body.StackFrames) > 0 {
			sf := r.Body.StackFrames[0]
			st.HasFrame = true
			st.Frame = toFrame(sf, 0, thread)

			e.mu.Lock()
			e.frameID = sf.Id
			if st.BreakpointNumber == 0 && reason == engine.StopBreakpointHit {
				if ent, ok := e.bps.at(st.Frame.FileFullName, st.Frame.Line); ok {
					st.BreakpointNumber = ent.bp.Number
				}
			}
			e.mu.Unlock()
		} else if err := responseError(resp); err != nil {
			e.log.Error(err, "cannot read stop location")
		}
		e.emit(st)
	})
	if err != nil {
		e.log.Error(err, "cannot read stop location")
		e.emit(&engine.StoppedEvent{Reason: reason, ThreadID: thread, BreakpointNumber: number})
	}
}

func (e *Engine) onOutput(body dap.OutputEventBody) {
	var stream engine.StreamKind
	switch body.Category {
	case "stdout", "stderr":
		stream = engine.StreamTarget
	case "", "console", "important":
		stream = engine.StreamConsole
	case "telemetry":
		return
	default:
		stream = engine.StreamLog
	}
	if body.Output == "" {
		return
	}
	e.emit(&engine.OutputEvent{Output: engine.Output{
		OutOfBand: []engine.OutOfBandRecord{{Stream: stream, Text: body.Output}},
	}})
}

// stopReason maps a DAP stopped reason to an engine stop reason.
func stopReason(reason string) engine.StopReason {
	switch reason {
	case "breakpoint", "function breakpoint", "instruction breakpoint":
		return engine.StopBreakpointHit
	case "data breakpoint":
		return engine.StopWatchpointTrig
	case "step":
		return engine.StopEndSteppingRange
	case "pause":
		return engine.StopPause
	case "entry":
		return engine.StopEntry
	case "exception":
		return engine.StopException
	case "goto":
		return engine.StopLocationReached
	case "signal":
		return engine.StopSignalReceived
	default:
		return engine.StopUnknown
	}
}

// toFrame converts a stack frame. A frame without a source file keeps no
// line, so it reads as symbol-only.
func toFrame(sf dap.StackFrame, level, thread int) engine.Frame {
	f := engine.Frame{Level: level, ThreadID: thread, Function: sf.Name}
	if sf.Source != nil && (sf.Source.Path != "" || sf.Source.Name != "") {
		f.FileName = sf.Source.Name
		f.FileFullName = sf.Source.Path
		f.Line = sf.Line
	}
	if sf.InstructionPointerReference != "" {
		if addr, err := engine.ParseAddress(sf.InstructionPointerReference); err == nil {
			f.Address = addr
		}
	}
	return f
}

func toVariable(name string, body dap.EvaluateResponseBody) engine.Variable {
	return engine.Variable{
		Name:     name,
		Value:    body.Result,
		Type:     body.Type,
		Children: body.NamedVariables + body.IndexedVariables,
		Ref:      body.VariablesReference,
	}
}

// toDisassembly keeps the instructions in [start, end). Pure disassembly
// drops source positions.
func toDisassembly(in []dap.DisassembledInstruction, start, end engine.Address, style engine.DisassemblyStyle) engine.Disassembly {
	d := engine.Disassembly{Start: start, End: end}
	for _, di := range in {
		addr, err := engine.ParseAddress(di.Address)
		if err != nil || addr < start || addr >= end {
			continue
		}
		instr := engine.Instruction{Address: addr, Instruction: di.Instruction}
		instr.Function, instr.Offset = splitSymbol(di.Symbol)
		if style == engine.DisassembleMixed {
			if di.Location != nil {
				instr.FileName = di.Location.Name
			}
			instr.Line = di.Line
		}
		d.Instructions = append(d.Instructions, instr)
	}
	return d
}

// splitSymbol splits "main+12" into its function and offset.
func splitSymbol(sym string) (string, int) {
	sym = strings.Trim(sym, "<>")
	fn, off, ok := strings.Cut(sym, "+")
	if !ok {
		return sym, 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(off))
	if err != nil {
		return sym, 0
	}
	return strings.TrimSpace(fn), n
}
