package dap

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/go-dap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/dbgcore/internal/engine"
)

const wait = 2 * time.Second

// fakeAdapter answers requests over an in-memory connection. Replies are
// written by their own goroutine so the adapter never stops reading.
type fakeAdapter struct {
	tr    Transport
	out   chan dap.Message
	got   chan dap.RequestMessage
	other chan dap.Message
	seq   atomic.Int64

	mu       sync.Mutex
	handlers map[string]func(dap.RequestMessage) dap.Message
}

func newFakeAdapter(tr Transport) *fakeAdapter {
	fa := &fakeAdapter{
		tr:       tr,
		out:      make(chan dap.Message, 64),
		got:      make(chan dap.RequestMessage, 64),
		other:    make(chan dap.Message, 8),
		handlers: make(map[string]func(dap.RequestMessage) dap.Message),
	}
	return fa
}

func (fa *fakeAdapter) start() {
	go func() {
		for m := range fa.out {
			if err := fa.tr.WriteMessage(m); err != nil {
				return
			}
		}
	}()
	go func() {
		for {
			msg, err := fa.tr.ReadMessage()
			if err != nil {
				return
			}
			req, ok := msg.(dap.RequestMessage)
			if !ok {
				fa.other <- msg
				continue
			}
			fa.got <- req
			fa.mu.Lock()
			h, ok := fa.handlers[req.GetRequest().Command]
			fa.mu.Unlock()
			if !ok {
				resp := fa.ok(req)
				fa.out <- &resp
				continue
			}
			if resp := h(req); resp != nil {
				fa.out <- resp
			}
		}
	}()
}

// handle must be called before the request can arrive.
func (fa *fakeAdapter) handle(command string, h func(dap.RequestMessage) dap.Message) {
	fa.mu.Lock()
	defer fa.mu.Unlock()
	fa.handlers[command] = h
}

func (fa *fakeAdapter) ok(req dap.RequestMessage) dap.Response {
	r := req.GetRequest()
	return dap.Response{
		ProtocolMessage: dap.ProtocolMessage{Seq: int(fa.seq.Add(1)), Type: "response"},
		RequestSeq:      r.Seq,
		Success:         true,
		Command:         r.Command,
	}
}

func (fa *fakeAdapter) fail(req dap.RequestMessage, msg string) dap.Message {
	resp := fa.ok(req)
	resp.Success = false
	resp.Message = msg
	return &dap.ErrorResponse{Response: resp}
}

func (fa *fakeAdapter) event(name string) dap.Event {
	return dap.Event{ProtocolMessage: dap.ProtocolMessage{Seq: int(fa.seq.Add(1)), Type: "event"}, Event: name}
}

func (fa *fakeAdapter) send(m dap.Message) { fa.out <- m }

// next returns the next request the adapter received.
func (fa *fakeAdapter) next(t *testing.T) dap.RequestMessage {
	t.Helper()
	select {
	case req := <-fa.got:
		return req
	case <-time.After(wait):
		t.Fatal("adapter received no request")
		return nil
	}
}

func (fa *fakeAdapter) expect(t *testing.T, command string) dap.RequestMessage {
	t.Helper()
	req := fa.next(t)
	require.Equal(t, command, req.GetRequest().Command)
	return req
}

func newHarness(t *testing.T, caps dap.Capabilities) (*Engine, *fakeAdapter) {
	t.Helper()
	client, server := net.Pipe()
	fa := newFakeAdapter(NewConnTransport(server))
	fa.handle("initialize", func(req dap.RequestMessage) dap.Message {
		return &dap.InitializeResponse{Response: fa.ok(req), Body: caps}
	})
	fa.start()

	e, err := New(NewConnTransport(client), Options{Log: logr.Discard(), Preset: "gdb"})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = e.Close()
		_ = fa.tr.Close()
	})

	ctx, cancel := context.WithTimeout(context.Background(), wait)
	defer cancel()
	require.NoError(t, e.Initialize(ctx))
	fa.expect(t, "initialize")
	return e, fa
}

var fullCaps = dap.Capabilities{
	SupportsConfigurationDoneRequest: true,
	SupportsFunctionBreakpoints:      true,
	SupportsConditionalBreakpoints:   true,
	SupportsDataBreakpoints:          true,
	SupportsDisassembleRequest:       true,
	SupportsInstructionBreakpoints:   true,
}

// started returns an engine whose program is configured and running.
func started(t *testing.T) (*Engine, *fakeAdapter) {
	t.Helper()
	e, fa := newHarness(t, fullCaps)
	fa.send(&dap.InitializedEvent{Event: fa.event("initialized")})
	require.NoError(t, e.Run(context.Background()))
	fa.expect(t, "configurationDone")
	nextOf[*engine.RunningEvent](t, e)
	return e, fa
}

func nextEvent(t *testing.T, e *Engine) engine.Event {
	t.Helper()
	select {
	case ev, ok := <-e.Events():
		require.True(t, ok, "event stream closed")
		return ev
	case <-time.After(wait):
		t.Fatal("no event")
		return nil
	}
}

func nextOf[T engine.Event](t *testing.T, e *Engine) T {
	t.Helper()
	ev := nextEvent(t, e)
	out, ok := ev.(T)
	require.Truef(t, ok, "got %T (%+v)", ev, ev)
	return out
}

// verifyAll answers setBreakpoints by verifying every line, with adapter
// ids of 100+line.
func verifyAll(fa *fakeAdapter) {
	fa.handle("setBreakpoints", func(req dap.RequestMessage) dap.Message {
		args := req.(*dap.SetBreakpointsRequest).Arguments
		bps := make([]dap.Breakpoint, len(args.Breakpoints))
		for i, sb := range args.Breakpoints {
			bps[i] = dap.Breakpoint{Id: 100 + sb.Line, Verified: true, Line: sb.Line, Source: &dap.Source{Name: args.Source.Name, Path: "/src/" + args.Source.Name}}
		}
		return &dap.SetBreakpointsResponse{Response: fa.ok(req), Body: dap.SetBreakpointsResponseBody{Breakpoints: bps}}
	})
}

func TestInitializeRecordsCapabilities(t *testing.T) {
	e, _ := newHarness(t, dap.Capabilities{SupportsDisassembleRequest: true})
	assert.True(t, e.Capabilities().SupportsDisassembleRequest)
	assert.False(t, e.Capabilities().SupportsDataBreakpoints)
}

func TestBreakpointsWaitForInitialized(t *testing.T) {
	ctx := context.Background()
	e, fa := newHarness(t, fullCaps)
	verifyAll(fa)

	req := engine.BreakpointRequest{Kind: engine.LocationSource, File: "main.c", Line: 12, Enabled: true, IgnoreCount: 2}
	require.NoError(t, e.SetBreakpoint(ctx, req, "c1"))
	require.NoError(t, e.StopTarget(ctx))
	fa.expect(t, "pause")

	fa.send(&dap.InitializedEvent{Event: fa.event("initialized")})
	sb := fa.expect(t, "setBreakpoints").(*dap.SetBreakpointsRequest)
	assert.Equal(t, "main.c", sb.Arguments.Source.Path)
	require.Len(t, sb.Arguments.Breakpoints, 1)
	assert.Equal(t, 12, sb.Arguments.Breakpoints[0].Line)
	assert.Equal(t, "2", sb.Arguments.Breakpoints[0].HitCondition, "gdb takes the ignore count as is")

	set := nextOf[*engine.BreakpointsSetEvent](t, e)
	assert.Equal(t, "c1", set.Cookie)
	bp := set.Breakpoints[1]
	assert.True(t, bp.Verified)
	assert.Equal(t, "/src/main.c", bp.FileFullName)
	assert.Equal(t, 12, bp.Line)
}

func TestRunFinishesConfigurationOnce(t *testing.T) {
	e, fa := started(t)
	require.NoError(t, e.Run(context.Background()))
	fa.expect(t, "continue")
	nextOf[*engine.RunningEvent](t, e)
}

func TestRefusedResumeReturnsToReady(t *testing.T) {
	e, fa := started(t)
	fa.handle("next", func(req dap.RequestMessage) dap.Message { return fa.fail(req, "not stopped") })
	require.NoError(t, e.StepOver(context.Background()))
	fa.expect(t, "next")

	nextOf[*engine.RunningEvent](t, e)
	assert.Contains(t, nextOf[*engine.ErrorEvent](t, e).Message, "not stopped")
	assert.Equal(t, engine.StateReady, nextOf[*engine.StateChangedEvent](t, e).State)
}

func TestStopReportsTopFrameAndBreakpoint(t *testing.T) {
	ctx := context.Background()
	e, fa := started(t)
	verifyAll(fa)
	require.NoError(t, e.SetBreakpoint(ctx, engine.BreakpointRequest{Kind: engine.LocationSource, File: "main.c", Line: 12, Enabled: true}, "c1"))
	fa.expect(t, "setBreakpoints")
	nextOf[*engine.BreakpointsSetEvent](t, e)

	fa.handle("stackTrace", func(req dap.RequestMessage) dap.Message {
		return &dap.StackTraceResponse{Response: fa.ok(req), Body: dap.StackTraceResponseBody{
			StackFrames: []dap.StackFrame{{
				Id: 7, Name: "main", Line: 12,
				Source:                      &dap.Source{Name: "main.c", Path: "/src/main.c"},
				InstructionPointerReference: "0x401136",
			}},
		}}
	})
	fa.send(&dap.StoppedEvent{Event: fa.event("stopped"), Body: dap.StoppedEventBody{
		Reason: "breakpoint", ThreadId: 3, HitBreakpointIds: []int{112},
	}})
	st := fa.expect(t, "stackTrace").(*dap.StackTraceRequest)
	assert.Equal(t, 3, st.Arguments.ThreadId)
	assert.Equal(t, 1, st.Arguments.Levels)

	stop := nextOf[*engine.StoppedEvent](t, e)
	assert.Equal(t, engine.StopBreakpointHit, stop.Reason)
	assert.Equal(t, 1, stop.BreakpointNumber)
	assert.Equal(t, 3, stop.ThreadID)
	require.True(t, stop.HasFrame)
	assert.Equal(t, "main", stop.Frame.Function)
	assert.Equal(t, "/src/main.c", stop.Frame.FileFullName)
	assert.Equal(t, engine.Address(0x401136), stop.Frame.Address)
	assert.True(t, stop.Frame.HasSourceLine())

	fa.handle("evaluate", func(req dap.RequestMessage) dap.Message {
		return &dap.EvaluateResponse{Response: fa.ok(req), Body: dap.EvaluateResponseBody{Result: "1", Type: "int"}}
	})
	require.NoError(t, e.PrintVariableValue(ctx, "argc", "c2"))
	ev := fa.expect(t, "evaluate").(*dap.EvaluateRequest)
	assert.Equal(t, 7, ev.Arguments.FrameId, "evaluation runs in the stopped frame")
	val := nextOf[*engine.VariableValueEvent](t, e)
	assert.Equal(t, "c2", val.Cookie)
	assert.Equal(t, engine.Variable{Name: "argc", Value: "1", Type: "int"}, val.Variable)
}

func TestStopWithoutSourceIsSymbolOnly(t *testing.T) {
	e, fa := started(t)
	fa.handle("stackTrace", func(req dap.RequestMessage) dap.Message {
		return &dap.StackTraceResponse{Response: fa.ok(req), Body: dap.StackTraceResponseBody{
			StackFrames: []dap.StackFrame{{Id: 1, Name: "__libc_start_main", Line: 0}},
		}}
	})
	fa.send(&dap.StoppedEvent{Event: fa.event("stopped"), Body: dap.StoppedEventBody{Reason: "pause", ThreadId: 1}})
	fa.expect(t, "stackTrace")

	stop := nextOf[*engine.StoppedEvent](t, e)
	assert.Equal(t, engine.StopPause, stop.Reason)
	assert.True(t, stop.Frame.IsSymbolOnly())
}

func TestDisableLeavesBreakpointOut(t *testing.T) {
	ctx := context.Background()
	e, fa := started(t)
	verifyAll(fa)
	for _, line := range []int{3, 9} {
		require.NoError(t, e.SetBreakpoint(ctx, engine.BreakpointRequest{Kind: engine.LocationSource, File: "a.c", Line: line, Enabled: true}, ""))
		fa.expect(t, "setBreakpoints")
		set := nextOf[*engine.BreakpointsSetEvent](t, e)
		require.Len(t, set.Breakpoints, 1, "unchanged neighbours are not reported again")
	}

	require.NoError(t, e.DisableBreakpoint(ctx, 1))
	sb := fa.expect(t, "setBreakpoints").(*dap.SetBreakpointsRequest)
	require.Len(t, sb.Arguments.Breakpoints, 1)
	assert.Equal(t, 9, sb.Arguments.Breakpoints[0].Line)
	set := nextOf[*engine.BreakpointsSetEvent](t, e)
	assert.False(t, set.Breakpoints[1].Enabled)
	assert.False(t, set.Breakpoints[1].Verified)

	require.NoError(t, e.EnableBreakpoint(ctx, 1))
	sb = fa.expect(t, "setBreakpoints").(*dap.SetBreakpointsRequest)
	assert.Len(t, sb.Arguments.Breakpoints, 2)
	assert.True(t, nextOf[*engine.BreakpointsSetEvent](t, e).Breakpoints[1].Enabled)

	assert.ErrorIs(t, e.EnableBreakpoint(ctx, 42), ErrUnknownBreakpoint)
}

func TestDeleteBreakpoint(t *testing.T) {
	ctx := context.Background()
	e, fa := started(t)
	verifyAll(fa)
	require.NoError(t, e.SetBreakpoint(ctx, engine.BreakpointRequest{Kind: engine.LocationSource, File: "a.c", Line: 3, Enabled: true}, ""))
	fa.expect(t, "setBreakpoints")
	nextOf[*engine.BreakpointsSetEvent](t, e)

	require.NoError(t, e.DeleteBreakpoint(ctx, 1, "d1"))
	sb := fa.expect(t, "setBreakpoints").(*dap.SetBreakpointsRequest)
	assert.Empty(t, sb.Arguments.Breakpoints)
	del := nextOf[*engine.BreakpointDeletedEvent](t, e)
	assert.Equal(t, 1, del.Number)
	assert.Equal(t, "d1", del.Cookie)

	assert.ErrorIs(t, e.DeleteBreakpoint(ctx, 1, "d2"), ErrUnknownBreakpoint)
}

func TestRejectedBreakpointAnswersCookie(t *testing.T) {
	ctx := context.Background()
	e, fa := started(t)
	fa.handle("setFunctionBreakpoints", func(req dap.RequestMessage) dap.Message {
		return fa.fail(req, "no symbol nosuch")
	})
	require.NoError(t, e.SetBreakpoint(ctx, engine.BreakpointRequest{Kind: engine.LocationFunction, Function: "nosuch", Enabled: true}, "f1"))
	fa.expect(t, "setFunctionBreakpoints")

	ev := nextOf[*engine.ErrorEvent](t, e)
	assert.Equal(t, "f1", ev.Cookie)
	assert.Contains(t, ev.Message, "no symbol nosuch")
	assert.ErrorIs(t, e.DeleteBreakpoint(ctx, 1, ""), ErrUnknownBreakpoint, "a rejected breakpoint is forgotten")
}

func TestUnsupportedRequestsFail(t *testing.T) {
	ctx := context.Background()
	e, _ := newHarness(t, dap.Capabilities{})
	assert.ErrorIs(t, e.SetBreakpoint(ctx, engine.BreakpointRequest{Kind: engine.LocationFunction, Function: "f"}, ""), ErrNotSupported)
	assert.ErrorIs(t, e.SetWatchpoint(ctx, "x", true, false, ""), ErrNotSupported)
	assert.ErrorIs(t, e.Disassemble(ctx, 0x10, 0x20, engine.DisassemblePure, ""), ErrNotSupported)
}

func TestContinueToUsesTemporaryBreakpoint(t *testing.T) {
	ctx := context.Background()
	e, fa := started(t)
	verifyAll(fa)

	require.NoError(t, e.ContinueTo(ctx, "b.c", 20))
	sb := fa.expect(t, "setBreakpoints").(*dap.SetBreakpointsRequest)
	require.Len(t, sb.Arguments.Breakpoints, 1)
	assert.Equal(t, 20, sb.Arguments.Breakpoints[0].Line)
	fa.expect(t, "continue")
	nextOf[*engine.RunningEvent](t, e)

	fa.send(&dap.StoppedEvent{Event: fa.event("stopped"), Body: dap.StoppedEventBody{
		Reason: "breakpoint", ThreadId: 1, HitBreakpointIds: []int{120},
	}})
	sb = fa.expect(t, "setBreakpoints").(*dap.SetBreakpointsRequest)
	assert.Empty(t, sb.Arguments.Breakpoints, "the temporary breakpoint is dropped at the stop")
	fa.expect(t, "stackTrace")

	stop := nextOf[*engine.StoppedEvent](t, e)
	assert.Equal(t, engine.StopLocationReached, stop.Reason)
	assert.Zero(t, stop.BreakpointNumber)
}

func TestWatchpoint(t *testing.T) {
	ctx := context.Background()
	e, fa := started(t)
	fa.handle("dataBreakpointInfo", func(req dap.RequestMessage) dap.Message {
		return &dap.DataBreakpointInfoResponse{Response: fa.ok(req), Body: dap.DataBreakpointInfoResponseBody{
			DataId: "x-id", Description: "x",
		}}
	})
	fa.handle("setDataBreakpoints", func(req dap.RequestMessage) dap.Message {
		args := req.(*dap.SetDataBreakpointsRequest).Arguments
		bps := make([]dap.Breakpoint, len(args.Breakpoints))
		for i := range args.Breakpoints {
			bps[i] = dap.Breakpoint{Id: 500 + i, Verified: true}
		}
		return &dap.SetDataBreakpointsResponse{Response: fa.ok(req), Body: dap.SetDataBreakpointsResponseBody{Breakpoints: bps}}
	})

	require.NoError(t, e.SetWatchpoint(ctx, "x", true, true, "w1"))
	info := fa.expect(t, "dataBreakpointInfo").(*dap.DataBreakpointInfoRequest)
	assert.Equal(t, "x", info.Arguments.Name)
	sd := fa.expect(t, "setDataBreakpoints").(*dap.SetDataBreakpointsRequest)
	require.Len(t, sd.Arguments.Breakpoints, 1)
	assert.Equal(t, dap.DataBreakpointAccessType("readWrite"), sd.Arguments.Breakpoints[0].AccessType)

	set := nextOf[*engine.BreakpointsSetEvent](t, e)
	assert.Equal(t, "w1", set.Cookie)
	bp := set.Breakpoints[1]
	assert.Equal(t, engine.BreakpointWatchpoint, bp.Type)
	assert.Equal(t, "x", bp.Expression)
	assert.True(t, bp.IsReadWatchpoint)
	assert.True(t, bp.IsWriteWatchpoint)
}

func TestDisassembleKeepsWindow(t *testing.T) {
	e, fa := started(t)
	fa.handle("disassemble", func(req dap.RequestMessage) dap.Message {
		return &dap.DisassembleResponse{Response: fa.ok(req), Body: dap.DisassembleResponseBody{
			Instructions: []dap.DisassembledInstruction{
				{Address: "0x0ff0", Instruction: "nop"},
				{Address: "0x1000", Instruction: "push %rbp", Symbol: "main"},
				{Address: "0x1001", Instruction: "mov %rsp,%rbp", Symbol: "<main+1>", Line: 4},
				{Address: "0x1010", Instruction: "ret"},
			},
		}}
	})
	require.NoError(t, e.Disassemble(context.Background(), 0x1000, 0x1010, engine.DisassemblePure, "d1"))
	req := fa.expect(t, "disassemble").(*dap.DisassembleRequest)
	assert.Equal(t, "0x1000", req.Arguments.MemoryReference)
	assert.Equal(t, 16, req.Arguments.InstructionCount)

	dis := nextOf[*engine.DisassemblyEvent](t, e)
	assert.Equal(t, "d1", dis.Cookie)
	assert.Equal(t, []engine.Instruction{
		{Address: 0x1000, Function: "main", Instruction: "push %rbp"},
		{Address: 0x1001, Function: "main", Offset: 1, Instruction: "mov %rsp,%rbp"},
	}, dis.Disassembly.Instructions)
}

func TestFailedEvaluationAnswersCookie(t *testing.T) {
	e, fa := started(t)
	fa.handle("evaluate", func(req dap.RequestMessage) dap.Message { return fa.fail(req, "No symbol \"y\" in current context.") })
	require.NoError(t, e.PrintVariableType(context.Background(), "y", "t1"))
	fa.expect(t, "evaluate")

	ev := nextOf[*engine.ErrorEvent](t, e)
	assert.Equal(t, "t1", ev.Cookie)
	assert.Contains(t, ev.Message, `No symbol "y"`)
}

func TestSelectFrame(t *testing.T) {
	e, fa := started(t)
	fa.handle("stackTrace", func(req dap.RequestMessage) dap.Message {
		args := req.(*dap.StackTraceRequest).Arguments
		if args.StartFrame != 2 {
			return &dap.StackTraceResponse{Response: fa.ok(req)}
		}
		return &dap.StackTraceResponse{Response: fa.ok(req), Body: dap.StackTraceResponseBody{
			StackFrames: []dap.StackFrame{{Id: 30, Name: "caller", Line: 40, Source: &dap.Source{Name: "c.c", Path: "/src/c.c"}}},
		}}
	})
	require.NoError(t, e.SelectFrame(context.Background(), 2, "s1"))
	fa.expect(t, "stackTrace")
	sel := nextOf[*engine.FrameSelectedEvent](t, e)
	assert.Equal(t, "s1", sel.Cookie)
	assert.Equal(t, 2, sel.Frame.Level)
	assert.Equal(t, "caller", sel.Frame.Function)
	assert.Equal(t, 30, e.frame())

	require.NoError(t, e.SelectFrame(context.Background(), 9, "s2"))
	fa.expect(t, "stackTrace")
	assert.Equal(t, "s2", nextOf[*engine.ErrorEvent](t, e).Cookie)
}

func TestOutputAndLifecycleEvents(t *testing.T) {
	e, fa := started(t)
	out := func(category, text string) {
		fa.send(&dap.OutputEvent{Event: fa.event("output"), Body: dap.OutputEventBody{Category: category, Output: text}})
	}
	out("console", "Reading symbols\n")
	out("stdout", "hello\n")
	out("telemetry", "ignored")
	out("debug", "adapter chatter\n")
	fa.send(&dap.ProcessEvent{Event: fa.event("process"), Body: dap.ProcessEventBody{Name: "/bin/prog", SystemProcessId: 42}})
	fa.send(&dap.ExitedEvent{Event: fa.event("exited"), Body: dap.ExitedEventBody{ExitCode: 3}})
	fa.send(&dap.TerminatedEvent{Event: fa.event("terminated")})

	streams := []engine.StreamKind{engine.StreamConsole, engine.StreamTarget, engine.StreamLog}
	for _, want := range streams {
		rec := nextOf[*engine.OutputEvent](t, e).Output.OutOfBand
		require.Len(t, rec, 1)
		assert.Equal(t, want, rec[0].Stream)
	}
	info := nextOf[*engine.TargetInfoEvent](t, e)
	assert.Equal(t, 42, info.PID)
	assert.Equal(t, 3, nextOf[*engine.ProgramFinishedEvent](t, e).ExitCode)

	// terminated after exited reports nothing more.
	fa.send(&dap.OutputEvent{Event: fa.event("output"), Body: dap.OutputEventBody{Category: "console", Output: "done\n"}})
	nextOf[*engine.OutputEvent](t, e)
}

func TestAdapterBreakpointEvents(t *testing.T) {
	ctx := context.Background()
	e, fa := started(t)
	verifyAll(fa)
	require.NoError(t, e.SetBreakpoint(ctx, engine.BreakpointRequest{Kind: engine.LocationSource, File: "a.c", Line: 3, Enabled: true}, ""))
	fa.expect(t, "setBreakpoints")
	nextOf[*engine.BreakpointsSetEvent](t, e)

	bpEvent := func(reason string, bp dap.Breakpoint) {
		fa.send(&dap.BreakpointEvent{Event: fa.event("breakpoint"), Body: dap.BreakpointEventBody{Reason: reason, Breakpoint: bp}})
	}
	bpEvent("changed", dap.Breakpoint{Id: 103, Verified: true, Line: 4, Source: &dap.Source{Path: "/src/a.c"}})
	changed := nextOf[*engine.BreakpointsSetEvent](t, e)
	assert.Equal(t, 4, changed.Breakpoints[1].Line, "moved by the adapter")

	bpEvent("new", dap.Breakpoint{Id: 900, Verified: true, Line: 50, Source: &dap.Source{Path: "/src/z.c"}})
	adopted := nextOf[*engine.BreakpointsSetEvent](t, e)
	assert.Equal(t, "/src/z.c", adopted.Breakpoints[2].FileFullName)

	bpEvent("removed", dap.Breakpoint{Id: 103})
	assert.Equal(t, 1, nextOf[*engine.BreakpointDeletedEvent](t, e).Number)
}

func TestDetach(t *testing.T) {
	e, fa := started(t)
	require.NoError(t, e.Detach(context.Background(), "x1"))
	req := fa.expect(t, "disconnect").(*dap.DisconnectRequest)
	if req.Arguments != nil {
		assert.False(t, req.Arguments.TerminateDebuggee)
	}
	assert.Equal(t, "x1", nextOf[*engine.DetachedEvent](t, e).Cookie)
}

func TestTerminateWaitsForAnswer(t *testing.T) {
	caps := fullCaps
	caps.SupportsTerminateRequest = true
	e, fa := newHarness(t, caps)
	fa.handle("terminate", func(req dap.RequestMessage) dap.Message { return fa.fail(req, "already gone") })

	ctx, cancel := context.WithTimeout(context.Background(), wait)
	defer cancel()
	err := e.Terminate(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already gone")
}

func TestAdapterLossKillsEngine(t *testing.T) {
	e, fa := started(t)
	fa.handle("evaluate", func(dap.RequestMessage) dap.Message { return nil })
	require.NoError(t, e.PrintVariableValue(context.Background(), "x", "v1"))
	fa.expect(t, "evaluate")
	require.NoError(t, fa.tr.Close())

	assert.Equal(t, "v1", nextOf[*engine.ErrorEvent](t, e).Cookie, "pending requests fail")
	died := nextOf[*engine.EngineDiedEvent](t, e)
	assert.ErrorIs(t, died.Err, ErrAdapterGone)
	_, open := <-e.Events()
	assert.False(t, open)
}

func TestCloseIsIdempotent(t *testing.T) {
	e, _ := newHarness(t, fullCaps)
	require.NoError(t, e.Close())
	require.NoError(t, e.Close())
	_, open := <-e.Events()
	assert.False(t, open)
	assert.ErrorIs(t, e.Continue(context.Background()), ErrClosed)
	assert.ErrorIs(t, e.SetBreakpoint(context.Background(), engine.BreakpointRequest{Kind: engine.LocationSource, File: "a.c", Line: 1}, ""), ErrClosed)
}

func TestRefusesReverseRequests(t *testing.T) {
	e, fa := newHarness(t, fullCaps)
	fa.send(&dap.RunInTerminalRequest{Request: dap.Request{
		ProtocolMessage: dap.ProtocolMessage{Seq: int(fa.seq.Add(1)), Type: "request"},
		Command:         "runInTerminal",
	}})

	select {
	case msg := <-fa.other:
		resp, ok := msg.(dap.ResponseMessage)
		require.True(t, ok, "got %T", msg)
		assert.False(t, resp.GetResponse().Success)
		assert.Equal(t, "runInTerminal", resp.GetResponse().Command)
	case <-time.After(wait):
		t.Fatal("reverse request was not answered")
	}

	require.NoError(t, e.StopTarget(context.Background()))
	fa.expect(t, "pause")
}
