package location

import (
	"fmt"

	"github.com/dshills/dbgcore/internal/engine"
)

// Kind says how a location is shown.
type Kind int

const (
	// KindSource is a line in a resolved source file.
	KindSource Kind = iota
	// KindAddress is an instruction in a disassembled range.
	KindAddress
)

// String returns a string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindSource:
		return "source"
	case KindAddress:
		return "address"
	default:
		return "unknown"
	}
}

// BytesPerInstruction approximates the size of one instruction when sizing
// a disassembly window. It is tuned for x86 and overestimates elsewhere.
const BytesPerInstruction = 17

// DefaultMargin is the number of instructions disassembled around an
// address when no margin is configured.
const DefaultMargin = 20

// Window is a half-open address range [Start, End).
type Window struct {
	Start engine.Address
	End   engine.Address
}

// Contains reports whether addr lies in the window.
func (w Window) Contains(addr engine.Address) bool {
	return addr >= w.Start && addr < w.End
}

// Empty reports whether the window covers no address.
func (w Window) Empty() bool {
	return w.End <= w.Start
}

// String formats the window as "[start, end)".
func (w Window) String() string {
	return fmt.Sprintf("[%s, %s)", w.Start, w.End)
}

// DisassemblyWindow returns the range to disassemble for addr, margin
// instructions long. A non-positive margin uses DefaultMargin. The end is
// clamped at the top of the address space.
func DisassemblyWindow(addr engine.Address, margin int) Window {
	if margin <= 0 {
		margin = DefaultMargin
	}
	span := engine.Address(margin) * BytesPerInstruction
	end := addr + span
	if end < addr {
		end = ^engine.Address(0)
	}
	return Window{Start: addr, End: end}
}

// NearestInstruction returns the instruction with the highest address not
// above addr. An exact match is the nearest. It fails only when every
// instruction lies above addr or instrs is empty.
func NearestInstruction(instrs []engine.Instruction, addr engine.Address) (engine.Instruction, bool) {
	var (
		best  engine.Instruction
		found bool
	)
	for _, in := range instrs {
		if in.Address > addr {
			continue
		}
		if !found || in.Address > best.Address {
			best = in
			found = true
		}
	}
	return best, found
}

// Location is where a frame is shown.
type Location struct {
	Kind  Kind
	Frame engine.Frame

	// Source view.
	Path string
	Line int

	// Address view. Reason records why the source could not be used.
	Address      engine.Address
	Window       Window
	Reason       error
	Instructions []engine.Instruction
	Current      engine.Address
	Placed       bool
}

// Place positions the current-location marker of an address location on
// the disassembled instructions.
func (l Location) Place(d engine.Disassembly) (Location, error) {
	in, ok := NearestInstruction(d.Instructions, l.Address)
	if !ok {
		return l, fmt.Errorf("place %s in %s: %w", l.Address, Window{Start: d.Start, End: d.End}, ErrNoInstruction)
	}
	l.Instructions = d.Instructions
	l.Current = in.Address
	l.Placed = true
	return l, nil
}

// String describes the location.
func (l Location) String() string {
	if l.Kind == KindSource {
		return fmt.Sprintf("%s:%d", l.Path, l.Line)
	}
	return fmt.Sprintf("*%s", l.Address)
}
