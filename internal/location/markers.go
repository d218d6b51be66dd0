package location

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/dshills/dbgcore/internal/engine"
	"github.com/dshills/dbgcore/internal/session"
)

// Marker is a breakpoint indicator in a source or address view.
type Marker struct {
	Number      int
	Enabled     bool
	Conditional bool
	Line        int
	Address     engine.Address
}

// BreakpointSource queries the breakpoint table.
type BreakpointSource interface {
	BreakpointsInFile(file string) []engine.Breakpoint
	BreakpointsInRange(lo, hi engine.Address) []engine.Breakpoint
}

// SourceMarkers returns the markers for the breakpoints in path, ordered by
// line then number.
func SourceMarkers(src BreakpointSource, path string) []Marker {
	bps := src.BreakpointsInFile(path)
	markers := make([]Marker, 0, len(bps))
	for _, bp := range bps {
		if bp.Type != engine.BreakpointStandard {
			continue
		}
		markers = append(markers, markerOf(bp))
	}
	slices.SortFunc(markers, func(a, b Marker) int {
		return cmp.Or(cmp.Compare(a.Line, b.Line), cmp.Compare(a.Number, b.Number))
	})
	return markers
}

// AddressMarkers returns the markers for breakpoints inside w, ordered by
// address then number.
func AddressMarkers(src BreakpointSource, w Window) []Marker {
	if w.Empty() {
		return nil
	}
	bps := src.BreakpointsInRange(w.Start, w.End-1)
	markers := make([]Marker, 0, len(bps))
	for _, bp := range bps {
		if bp.Type != engine.BreakpointStandard {
			continue
		}
		markers = append(markers, markerOf(bp))
	}
	slices.SortFunc(markers, func(a, b Marker) int {
		return cmp.Or(cmp.Compare(a.Address, b.Address), cmp.Compare(a.Number, b.Number))
	})
	return markers
}

func markerOf(bp engine.Breakpoint) Marker {
	return Marker{
		Number:      bp.Number,
		Enabled:     bp.Enabled,
		Conditional: bp.Condition != "",
		Line:        bp.Line,
		Address:     bp.Address,
	}
}

// Disassembler issues disassembly requests. *session.Session implements it.
type Disassembler interface {
	Disassemble(ctx context.Context, start, end engine.Address, style engine.DisassemblyStyle, then session.Continuation) (*session.Request, error)
}

// FetchInstructions requests the disassembly window of an address location
// and calls done with the placed location once it arrives. done runs on the
// session loop and must not block.
func FetchInstructions(ctx context.Context, d Disassembler, loc Location, done func(Location, error)) error {
	if loc.Kind != KindAddress {
		return fmt.Errorf("fetch instructions for %s location %s: not an address view", loc.Kind, loc)
	}
	_, err := d.Disassemble(ctx, loc.Window.Start, loc.Window.End, engine.DisassemblePure, func(result any, err error) {
		if err != nil {
			done(loc, err)
			return
		}
		dis, ok := result.(engine.Disassembly)
		if !ok {
			done(loc, fmt.Errorf("fetch instructions: unexpected result %T", result))
			return
		}
		done(loc.Place(dis))
	})
	return err
}
