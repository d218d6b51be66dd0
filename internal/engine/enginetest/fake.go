// Package enginetest provides an in-memory engine.Debugger for tests.
package enginetest

import (
	"context"
	"fmt"
	"sync"

	"github.com/dshills/dbgcore/internal/engine"
)

// Call records one request made to the fake engine.
type Call struct {
	Method string
	Args   []any
}

// Fake is a scriptable engine.Debugger. Requests are recorded; events are
// injected with Emit.
type Fake struct {
	mu     sync.Mutex
	calls  []Call
	fail   map[string]error
	events chan engine.Event
	closed bool
}

// New creates a fake engine whose event channel buffers up to capacity
// events.
func New(capacity int) *Fake {
	if capacity <= 0 {
		capacity = 64
	}
	return &Fake{
		fail:   make(map[string]error),
		events: make(chan engine.Event, capacity),
	}
}

// Emit queues ev on the event channel. It panics if the fake is closed.
func (f *Fake) Emit(ev engine.Event) {
	f.mu.Lock()
	closed := f.closed
	f.mu.Unlock()
	if closed {
		panic("enginetest: emit on closed engine")
	}
	f.events <- ev
}

// FailWith makes every later call to method return err.
func (f *Fake) FailWith(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[method] = err
}

// Calls returns a copy of the recorded calls.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// CallsTo returns the recorded calls to method.
func (f *Fake) CallsTo(method string) []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Call
	for _, c := range f.calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// LastCookie returns the cookie argument of the most recent call to method.
// Cookies are always the last argument.
func (f *Fake) LastCookie(method string) string {
	calls := f.CallsTo(method)
	if len(calls) == 0 {
		return ""
	}
	args := calls[len(calls)-1].Args
	if len(args) == 0 {
		return ""
	}
	s, _ := args[len(args)-1].(string)
	return s
}

// Closed reports whether Close was called.
func (f *Fake) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *Fake) record(method string, args ...any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return fmt.Errorf("%s: engine closed", method)
	}
	f.calls = append(f.calls, Call{Method: method, Args: args})
	return f.fail[method]
}

func (f *Fake) LoadProgram(_ context.Context, prog engine.Program) error {
	return f.record("LoadProgram", prog)
}

func (f *Fake) Run(context.Context) error        { return f.record("Run") }
func (f *Fake) StopTarget(context.Context) error { return f.record("StopTarget") }
func (f *Fake) StepOver(context.Context) error   { return f.record("StepOver") }
func (f *Fake) StepIn(context.Context) error     { return f.record("StepIn") }
func (f *Fake) StepOut(context.Context) error    { return f.record("StepOut") }
func (f *Fake) Continue(context.Context) error   { return f.record("Continue") }

func (f *Fake) ContinueTo(_ context.Context, file string, line int) error {
	return f.record("ContinueTo", file, line)
}

func (f *Fake) SetBreakpoint(_ context.Context, req engine.BreakpointRequest, cookie string) error {
	return f.record("SetBreakpoint", req, cookie)
}

func (f *Fake) DeleteBreakpoint(_ context.Context, number int, cookie string) error {
	return f.record("DeleteBreakpoint", number, cookie)
}

func (f *Fake) EnableBreakpoint(_ context.Context, number int) error {
	return f.record("EnableBreakpoint", number)
}

func (f *Fake) DisableBreakpoint(_ context.Context, number int) error {
	return f.record("DisableBreakpoint", number)
}

func (f *Fake) SetWatchpoint(_ context.Context, expr string, write, read bool, cookie string) error {
	return f.record("SetWatchpoint", expr, write, read, cookie)
}

func (f *Fake) Disassemble(_ context.Context, start, end engine.Address, style engine.DisassemblyStyle, cookie string) error {
	return f.record("Disassemble", start, end, style, cookie)
}

func (f *Fake) PrintVariableValue(_ context.Context, name, cookie string) error {
	return f.record("PrintVariableValue", name, cookie)
}

func (f *Fake) PrintVariableType(_ context.Context, name, cookie string) error {
	return f.record("PrintVariableType", name, cookie)
}

func (f *Fake) CreateVariable(_ context.Context, name, cookie string) error {
	return f.record("CreateVariable", name, cookie)
}

func (f *Fake) CallFunction(_ context.Context, expr, cookie string) error {
	return f.record("CallFunction", expr, cookie)
}

func (f *Fake) SelectFrame(_ context.Context, level int, cookie string) error {
	return f.record("SelectFrame", level, cookie)
}

func (f *Fake) Detach(_ context.Context, cookie string) error {
	return f.record("Detach", cookie)
}

func (f *Fake) Terminate(context.Context) error { return f.record("Terminate") }

// Close closes the event channel. Later calls are no-ops.
func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.calls = append(f.calls, Call{Method: "Close"})
	f.closed = true
	close(f.events)
	return nil
}

// Events returns the event channel.
func (f *Fake) Events() <-chan engine.Event {
	return f.events
}

var _ engine.Debugger = (*Fake)(nil)
