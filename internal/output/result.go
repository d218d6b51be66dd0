package output

import (
	"context"

	"github.com/dshills/dbgcore/internal/engine"
)

// ResultHandler completes pending requests from result records.
type ResultHandler struct{}

// Name implements Handler.
func (*ResultHandler) Name() string { return "result" }

// CanHandle implements Handler.
func (*ResultHandler) CanHandle(ev engine.Event) bool {
	out, ok := ev.(*engine.OutputEvent)
	return ok && out.Output.HasResult() && engine.CookieOf(ev) != ""
}

// DoHandle implements Handler.
func (*ResultHandler) DoHandle(_ context.Context, ev engine.Event, s Session) error {
	out := ev.(*engine.OutputEvent)
	res := *out.Output.Result
	cookie := engine.CookieOf(ev)
	if res.Class == engine.ResultError {
		s.Resolve(cookie, nil, &RequestError{Command: out.Output.Command.Name, Message: res.Message})
		return nil
	}
	s.Resolve(cookie, res, nil)
	return nil
}

// VariableHandler delivers inspection results: variable values and types,
// created variables, disassembly and frame selection.
type VariableHandler struct{}

// Name implements Handler.
func (*VariableHandler) Name() string { return "variable" }

// CanHandle implements Handler.
func (*VariableHandler) CanHandle(ev engine.Event) bool {
	switch ev.(type) {
	case *engine.VariableValueEvent, *engine.VariableTypeEvent, *engine.VariableCreatedEvent,
		*engine.DisassemblyEvent, *engine.FrameSelectedEvent:
		return true
	}
	return false
}

// DoHandle implements Handler.
func (*VariableHandler) DoHandle(_ context.Context, ev engine.Event, s Session) error {
	switch e := ev.(type) {
	case *engine.VariableValueEvent:
		s.Resolve(e.Cookie, e.Variable, nil)
	case *engine.VariableTypeEvent:
		s.Resolve(e.Cookie, e.Type, nil)
	case *engine.VariableCreatedEvent:
		s.Resolve(e.Cookie, e.Variable, nil)
	case *engine.DisassemblyEvent:
		s.Resolve(e.Cookie, e.Disassembly, nil)
	case *engine.FrameSelectedEvent:
		s.SetFrame(e.Frame)
		s.Resolve(e.Cookie, e.Frame, nil)
	}
	return nil
}

// OverloadsHandler forwards overload choice prompts.
type OverloadsHandler struct{}

// Name implements Handler.
func (*OverloadsHandler) Name() string { return "overloads" }

// CanHandle implements Handler.
func (*OverloadsHandler) CanHandle(ev engine.Event) bool {
	_, ok := ev.(*engine.OverloadsChoiceEvent)
	return ok
}

// DoHandle implements Handler.
func (*OverloadsHandler) DoHandle(_ context.Context, ev engine.Event, s Session) error {
	e := ev.(*engine.OverloadsChoiceEvent)
	entries := append([]engine.OverloadEntry(nil), e.Entries...)
	s.OverloadsChoice(entries, e.Cookie)
	s.Resolve(e.Cookie, entries, nil)
	return nil
}
