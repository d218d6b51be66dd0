package output

import (
	"context"

	"github.com/dshills/dbgcore/internal/engine"
)

// StreamHandler routes non-empty console, target and log stream records to
// the matching session sinks.
type StreamHandler struct{}

// Name implements Handler.
func (*StreamHandler) Name() string { return "stream" }

// CanHandle implements Handler.
func (*StreamHandler) CanHandle(ev engine.Event) bool {
	out, ok := ev.(*engine.OutputEvent)
	if !ok {
		return false
	}
	for _, r := range out.Output.OutOfBand {
		if r.Stream != engine.StreamNone && r.Text != "" {
			return true
		}
	}
	return false
}

// DoHandle implements Handler.
func (*StreamHandler) DoHandle(_ context.Context, ev engine.Event, s Session) error {
	out := ev.(*engine.OutputEvent)
	for _, r := range out.Output.OutOfBand {
		if r.Text == "" {
			continue
		}
		switch r.Stream {
		case engine.StreamConsole:
			s.Console(r.Text)
		case engine.StreamTarget:
			s.Target(r.Text)
		case engine.StreamLog:
			s.Log(r.Text)
		}
	}
	return nil
}
