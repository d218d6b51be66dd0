package output

import (
	"fmt"

	"github.com/dshills/dbgcore/internal/engine"
)

// recorder is a Session that records every mutation in call order.
type recorder struct {
	state       engine.State
	frame       *engine.Frame
	attached    bool
	dead        error
	died        bool
	breakpoints map[int]engine.Breakpoint
	hits        map[int]int
	resolved    map[string]resolution
	calls       []string
	console     []string
	target      []string
	logs        []string
	warnings    []Warning
	errors      []string
	stops       []Stop
}

type resolution struct {
	result any
	err    error
}

func newRecorder() *recorder {
	return &recorder{
		breakpoints: map[int]engine.Breakpoint{},
		hits:        map[int]int{},
		resolved:    map[string]resolution{},
	}
}

func (r *recorder) note(format string, args ...any) {
	r.calls = append(r.calls, fmt.Sprintf(format, args...))
}

func (r *recorder) State() engine.State { return r.state }

func (r *recorder) EngineAlive() bool { return !r.died }

func (r *recorder) Frame() (engine.Frame, bool) {
	if r.frame == nil {
		return engine.Frame{}, false
	}
	return *r.frame, true
}

func (r *recorder) SetFrame(f engine.Frame) { r.frame = &f; r.note("frame %s", f) }
func (r *recorder) ClearFrame()             { r.frame = nil; r.note("clear-frame") }

func (r *recorder) SetState(s engine.State) {
	if r.state != s {
		r.note("state %s", s)
	}
	r.state = s
}

func (r *recorder) SetAttached(a bool)                { r.attached = a }
func (r *recorder) SetTargetInfo(pid int, exe string) { r.note("target %d %s", pid, exe) }

func (r *recorder) MarkEngineDead(err error) {
	r.dead = err
	r.died = true
	r.state = engine.StateNotStarted
	r.note("dead")
}

func (r *recorder) NotifyStopped(s Stop) { r.stops = append(r.stops, s); r.note("stopped") }

func (r *recorder) UpsertBreakpoint(n int, bp engine.Breakpoint) {
	bp.Number = n
	r.breakpoints[n] = bp
	r.note("upsert %d", n)
}

func (r *recorder) RemoveBreakpoint(n int) bool {
	_, ok := r.breakpoints[n]
	delete(r.breakpoints, n)
	r.note("remove %d", n)
	return ok
}

func (r *recorder) CountHit(n int)            { r.hits[n]++ }
func (r *recorder) NotifyBreakpointsChanged() { r.note("breakpoints-changed") }
func (r *recorder) Console(t string)          { r.console = append(r.console, t) }
func (r *recorder) Target(t string)           { r.target = append(r.target, t) }
func (r *recorder) Log(t string)              { r.logs = append(r.logs, t) }
func (r *recorder) Warn(k Warning, _ string)  { r.warnings = append(r.warnings, k) }
func (r *recorder) Error(msg string)          { r.errors = append(r.errors, msg) }

func (r *recorder) OverloadsChoice(e []engine.OverloadEntry, cookie string) {
	r.note("overloads %d %s", len(e), cookie)
}

func (r *recorder) Resolve(cookie string, result any, err error) bool {
	if cookie == "" {
		return false
	}
	r.resolved[cookie] = resolution{result: result, err: err}
	return true
}

var _ Session = (*recorder)(nil)
