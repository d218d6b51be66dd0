package output

import (
	"context"
	"fmt"

	"github.com/dshills/dbgcore/internal/engine"
)

// LifecycleHandler applies running, exit, detach and engine death events.
type LifecycleHandler struct{}

// Name implements Handler.
func (*LifecycleHandler) Name() string { return "lifecycle" }

// CanHandle implements Handler.
func (*LifecycleHandler) CanHandle(ev engine.Event) bool {
	switch e := ev.(type) {
	case *engine.OutputEvent:
		return isRunningBatch(e.Output)
	case *engine.RunningEvent, *engine.ProgramFinishedEvent, *engine.EngineDiedEvent,
		*engine.DetachedEvent, *engine.StateChangedEvent, *engine.TargetInfoEvent:
		return true
	}
	return false
}

// isRunningBatch reports whether out says the target resumed. A batch that
// also reports a stop is left to the stop handler.
func isRunningBatch(out engine.Output) bool {
	running := out.HasResult() && out.Result.Class == engine.ResultRunning
	for _, r := range out.OutOfBand {
		if r.IsStopped() {
			return false
		}
		if r.Running {
			running = true
		}
	}
	return running
}

// DoHandle implements Handler.
func (*LifecycleHandler) DoHandle(_ context.Context, ev engine.Event, s Session) error {
	switch e := ev.(type) {
	case *engine.OutputEvent, *engine.RunningEvent:
		s.SetState(engine.StateRunning)
		s.SetAttached(true)
	case *engine.ProgramFinishedEvent:
		s.ClearFrame()
		s.SetAttached(false)
		s.SetState(engine.StateNotStarted)
		s.Console(fmt.Sprintf("program exited with code %d", e.ExitCode))
	case *engine.EngineDiedEvent:
		s.MarkEngineDead(e.Err)
	case *engine.DetachedEvent:
		s.ClearFrame()
		s.SetAttached(false)
		s.SetState(engine.StateNotStarted)
		s.Resolve(e.Cookie, nil, nil)
	case *engine.StateChangedEvent:
		s.SetState(e.State)
	case *engine.TargetInfoEvent:
		s.SetTargetInfo(e.PID, e.ExePath)
		s.SetAttached(true)
	}
	return nil
}
