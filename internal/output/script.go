package output

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/dbgcore/internal/engine"
)

// DefaultScriptTimeout bounds a single script callback.
const DefaultScriptTimeout = 100 * time.Millisecond

// ErrScriptClosed is returned by a ScriptHandler used after Close.
var ErrScriptClosed = errors.New("script handler closed")

// ScriptHandler is a Handler implemented in Lua. The script defines two
// global functions:
//
//	function can_handle(batch) return batch.name == "output" end
//	function do_handle(batch)
//	  for _, r in ipairs(batch.records) do
//	    if r.stream == "target" and r.text:find("FATAL") then
//	      dbg.warn("target reported: " .. r.text)
//	    end
//	  end
//	end
//
// do_handle may call dbg.console, dbg.log, dbg.warn and dbg.error. Scripts
// run without the io, os, package and debug libraries, and each callback is
// cancelled after the configured timeout.
type ScriptHandler struct {
	name    string
	timeout time.Duration

	mu     sync.Mutex
	L      *lua.LState
	sess   Session // bound only while do_handle runs
	canErr error
	closed bool
}

// LoadScript reads and compiles a Lua handler file.
func LoadScript(path string, timeout time.Duration) (*ScriptHandler, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading script: %w", err)
	}
	return NewScript(filepath.Base(path), string(src), timeout)
}

// NewScript compiles a Lua handler from source.
func NewScript(name, source string, timeout time.Duration) (*ScriptHandler, error) {
	if timeout <= 0 {
		timeout = DefaultScriptTimeout
	}
	h := &ScriptHandler{name: name, timeout: timeout}
	h.L = lua.NewState(lua.Options{SkipOpenLibs: true})
	openSafeLibraries(h.L)
	h.installAPI()

	fn, err := h.L.Load(strings.NewReader(source), name)
	if err != nil {
		h.L.Close()
		return nil, fmt.Errorf("compiling script %s: %w", name, err)
	}
	h.L.Push(fn)
	if err := h.callProtected(context.Background(), 0, 0); err != nil {
		h.L.Close()
		return nil, fmt.Errorf("running script %s: %w", name, err)
	}
	for _, fn := range []string{"can_handle", "do_handle"} {
		if h.L.GetGlobal(fn).Type() != lua.LTFunction {
			h.L.Close()
			return nil, fmt.Errorf("script %s does not define function %s", name, fn)
		}
	}
	return h, nil
}

// openSafeLibraries opens the base, table, string and math libraries and
// removes the base functions that load code from outside the script.
func openSafeLibraries(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "module"} {
		L.SetGlobal(name, lua.LNil)
	}
}

func (h *ScriptHandler) installAPI() {
	sink := func(fn func(s Session, text string)) lua.LGFunction {
		return func(L *lua.LState) int {
			text := L.CheckString(1)
			if h.sess == nil {
				L.RaiseError("session functions are only available in do_handle")
				return 0
			}
			fn(h.sess, text)
			return 0
		}
	}
	api := h.L.SetFuncs(h.L.NewTable(), map[string]lua.LGFunction{
		"console": sink(func(s Session, t string) { s.Console(t) }),
		"log":     sink(func(s Session, t string) { s.Log(t) }),
		"warn":    sink(func(s Session, t string) { s.Warn(WarnScript, t) }),
		"error":   sink(func(s Session, t string) { s.Error(t) }),
	})
	h.L.SetGlobal("dbg", api)
	h.L.SetGlobal("print", h.L.NewFunction(func(L *lua.LState) int {
		parts := make([]string, 0, L.GetTop())
		for i := 1; i <= L.GetTop(); i++ {
			parts = append(parts, L.ToStringMeta(L.Get(i)).String())
		}
		if h.sess != nil {
			h.sess.Log(strings.Join(parts, "\t"))
		}
		return 0
	}))
}

// Name implements Handler.
func (h *ScriptHandler) Name() string { return "script:" + h.name }

// CanHandle implements Handler. A failing can_handle is reported by the
// following DoHandle.
func (h *ScriptHandler) CanHandle(ev engine.Event) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.canErr = nil
	if h.closed {
		return false
	}
	ret, err := h.call(context.Background(), "can_handle", ev)
	if err != nil {
		h.canErr = err
		return true
	}
	return lua.LVAsBool(ret)
}

// DoHandle implements Handler.
func (h *ScriptHandler) DoHandle(ctx context.Context, ev engine.Event, s Session) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrScriptClosed
	}
	if err := h.canErr; err != nil {
		h.canErr = nil
		return fmt.Errorf("can_handle: %w", err)
	}
	h.sess = s
	defer func() { h.sess = nil }()
	if _, err := h.call(ctx, "do_handle", ev); err != nil {
		return fmt.Errorf("do_handle: %w", err)
	}
	return nil
}

// Close releases the Lua state.
func (h *ScriptHandler) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.closed {
		h.closed = true
		h.L.Close()
	}
}

func (h *ScriptHandler) call(ctx context.Context, fn string, ev engine.Event) (lua.LValue, error) {
	h.L.Push(h.L.GetGlobal(fn))
	h.L.Push(batchTable(h.L, ev))
	if err := h.callProtected(ctx, 1, 1); err != nil {
		return lua.LNil, err
	}
	ret := h.L.Get(-1)
	h.L.Pop(1)
	return ret, nil
}

func (h *ScriptHandler) callProtected(ctx context.Context, nargs, nret int) error {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	h.L.SetContext(ctx)
	defer h.L.RemoveContext()
	return h.L.PCall(nargs, nret, nil)
}

// batchTable converts an engine event into the table scripts receive.
func batchTable(L *lua.LState, ev engine.Event) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("name", lua.LString(ev.EventName()))
	t.RawSetString("cookie", lua.LString(engine.CookieOf(ev)))

	switch e := ev.(type) {
	case *engine.OutputEvent:
		out := e.Output
		t.RawSetString("command", lua.LString(out.Command.Name))
		records := L.NewTable()
		for _, r := range out.OutOfBand {
			rec := L.NewTable()
			rec.RawSetString("stream", lua.LString(r.Stream.String()))
			rec.RawSetString("text", lua.LString(r.Text))
			rec.RawSetString("stopped", lua.LBool(r.Stopped))
			rec.RawSetString("running", lua.LBool(r.Running))
			rec.RawSetString("reason", lua.LString(string(r.Reason)))
			rec.RawSetString("thread_id", lua.LNumber(r.ThreadID))
			rec.RawSetString("breakpoint", lua.LNumber(r.BreakpointNumber))
			if r.Frame != nil {
				rec.RawSetString("frame", frameTable(L, *r.Frame))
			}
			records.Append(rec)
		}
		t.RawSetString("records", records)
		if out.Result != nil {
			res := L.NewTable()
			res.RawSetString("class", lua.LString(out.Result.Class.String()))
			res.RawSetString("message", lua.LString(out.Result.Message))
			t.RawSetString("result", res)
		}
	case *engine.StoppedEvent:
		t.RawSetString("reason", lua.LString(string(e.Reason)))
		if e.HasFrame {
			t.RawSetString("frame", frameTable(L, e.Frame))
		}
	case *engine.ErrorEvent:
		t.RawSetString("message", lua.LString(e.Message))
	case *engine.ProgramFinishedEvent:
		t.RawSetString("exit_code", lua.LNumber(e.ExitCode))
	}
	return t
}

func frameTable(L *lua.LState, f engine.Frame) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("function", lua.LString(f.Function))
	t.RawSetString("file", lua.LString(f.FileName))
	t.RawSetString("fullname", lua.LString(f.FileFullName))
	t.RawSetString("line", lua.LNumber(f.Line))
	t.RawSetString("address", lua.LString(f.Address.String()))
	return t
}
