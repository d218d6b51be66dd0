package output

import (
	"context"
	"fmt"

	"github.com/dshills/dbgcore/internal/engine"
)

// StopHandler detects target stops.
//
// In an output batch only the first record that is stopped and carries a
// frame is used; later stop records in the same batch are ignored.
type StopHandler struct {
	found *engine.OutOfBandRecord
}

// Name implements Handler.
func (*StopHandler) Name() string { return "stop" }

// CanHandle implements Handler.
func (h *StopHandler) CanHandle(ev engine.Event) bool {
	h.found = nil
	switch e := ev.(type) {
	case *engine.OutputEvent:
		for i := range e.Output.OutOfBand {
			r := &e.Output.OutOfBand[i]
			if r.IsStopped() && r.HasFrame() {
				h.found = r
				return true
			}
		}
		return false
	case *engine.StoppedEvent:
		return true
	default:
		return false
	}
}

// DoHandle implements Handler.
func (h *StopHandler) DoHandle(_ context.Context, ev engine.Event, s Session) error {
	switch e := ev.(type) {
	case *engine.OutputEvent:
		r := h.found
		h.found = nil
		if r == nil {
			return fmt.Errorf("no stop record cached for output batch")
		}
		applyStop(s, Stop{
			Reason:           r.Reason,
			ThreadID:         r.ThreadID,
			BreakpointNumber: r.BreakpointNumber,
			Frame:            r.Frame,
		})
	case *engine.StoppedEvent:
		stop := Stop{Reason: e.Reason, ThreadID: e.ThreadID, BreakpointNumber: e.BreakpointNumber}
		if e.HasFrame {
			frame := e.Frame
			stop.Frame = &frame
		}
		applyStop(s, stop)
		s.Resolve(e.Cookie, stop, nil)
	}
	return nil
}

// applyStop moves the session to READY and commits the frame when it has
// usable line information. Stops reported after engine death are dropped.
func applyStop(s Session, stop Stop) {
	if !s.EngineAlive() {
		s.Log(fmt.Sprintf("ignoring stop after engine death: %s", stop.Reason))
		return
	}
	s.SetState(engine.StateReady)

	if stop.Frame == nil {
		return
	}
	frame := *stop.Frame
	switch {
	case frame.IsSymbolOnly():
		s.Warn(WarnSymbolWithoutLineInfo, fmt.Sprintf("stopped in %s, which has no line information", frame.Function))
	case frame.HasSourceLine():
		s.SetFrame(frame)
		if stop.BreakpointNumber > 0 {
			s.CountHit(stop.BreakpointNumber)
		}
		s.NotifyStopped(stop)
	default:
		s.Error(MsgSymbolNotAvailable)
	}
}
