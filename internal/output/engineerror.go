package output

import (
	"context"

	"github.com/dshills/dbgcore/internal/engine"
)

// EngineErrorHandler reports engine errors. It never changes the session
// mode.
type EngineErrorHandler struct {
	// Suppress keeps messages out of the user visible error channel.
	Suppress bool
}

// Name implements Handler.
func (*EngineErrorHandler) Name() string { return "engine-error" }

// CanHandle implements Handler.
func (*EngineErrorHandler) CanHandle(ev engine.Event) bool {
	switch e := ev.(type) {
	case *engine.ErrorEvent:
		return true
	case *engine.OutputEvent:
		return e.Output.HasResult() && e.Output.Result.Class == engine.ResultError
	}
	return false
}

// DoHandle implements Handler.
func (h *EngineErrorHandler) DoHandle(_ context.Context, ev engine.Event, s Session) error {
	var msg string
	switch e := ev.(type) {
	case *engine.ErrorEvent:
		msg = e.Message
		if e.Cookie != "" {
			s.Resolve(e.Cookie, nil, &RequestError{Message: e.Message})
		}
	case *engine.OutputEvent:
		msg = e.Output.Result.Message
	}
	s.Log("engine error: " + msg)
	if !h.Suppress {
		s.Error(msg)
	}
	return nil
}
