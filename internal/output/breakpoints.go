package output

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/dshills/dbgcore/internal/engine"
)

// BreakpointsHandler mirrors engine breakpoint confirmations into the
// session's table.
type BreakpointsHandler struct{}

// Name implements Handler.
func (*BreakpointsHandler) Name() string { return "breakpoints" }

// CanHandle implements Handler.
func (*BreakpointsHandler) CanHandle(ev engine.Event) bool {
	switch ev.(type) {
	case *engine.BreakpointsSetEvent, *engine.BreakpointDeletedEvent:
		return true
	}
	return false
}

// DoHandle implements Handler.
func (*BreakpointsHandler) DoHandle(_ context.Context, ev engine.Event, s Session) error {
	switch e := ev.(type) {
	case *engine.BreakpointsSetEvent:
		var (
			set []engine.Breakpoint
			err error
		)
		for _, number := range slices.Sorted(maps.Keys(e.Breakpoints)) {
			if number <= 0 {
				err = fmt.Errorf("engine confirmed breakpoint with invalid number %d", number)
				continue
			}
			bp := e.Breakpoints[number]
			bp.Number = number
			s.UpsertBreakpoint(number, bp)
			set = append(set, bp)
		}
		if len(set) > 0 {
			s.NotifyBreakpointsChanged()
		}
		s.Resolve(e.Cookie, set, err)
		return err
	case *engine.BreakpointDeletedEvent:
		number := e.Number
		if number == 0 {
			number = e.Breakpoint.Number
		}
		removed := s.RemoveBreakpoint(number)
		if removed {
			s.NotifyBreakpointsChanged()
		}
		s.Resolve(e.Cookie, number, nil)
	}
	return nil
}
