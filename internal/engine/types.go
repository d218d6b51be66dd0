package engine

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// Address is a target machine address.
type Address uint64

// String formats the address as a hexadecimal literal.
func (a Address) String() string {
	return fmt.Sprintf("%#x", uint64(a))
}

// ParseAddress parses a decimal or 0x-prefixed hexadecimal address.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("parse address: empty string")
	}
	v, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("parse address %q: %w", s, err)
	}
	return Address(v), nil
}

// BreakpointType distinguishes code breakpoints from watchpoints.
type BreakpointType int

const (
	// BreakpointStandard stops at a source line, function or address.
	BreakpointStandard BreakpointType = iota
	// BreakpointWatchpoint stops when an expression is read or written.
	BreakpointWatchpoint
)

// String returns a string representation of the breakpoint type.
func (t BreakpointType) String() string {
	switch t {
	case BreakpointStandard:
		return "breakpoint"
	case BreakpointWatchpoint:
		return "watchpoint"
	default:
		return "unknown"
	}
}

// Breakpoint is one engine breakpoint or watchpoint as reported by the
// engine. Number is stable for the breakpoint's lifetime.
type Breakpoint struct {
	Number   int
	Type     BreakpointType
	Enabled  bool
	Verified bool

	// Source location. FileFullName may be empty when the engine could not
	// resolve the file.
	FileName     string
	FileFullName string
	Line         int

	Function string
	Address  Address

	Condition   string
	IgnoreCount int
	HitCount    int

	// Watchpoint fields.
	Expression        string
	IsReadWatchpoint  bool
	IsWriteWatchpoint bool

	// Message is diagnostic text from the engine, if any.
	Message string
}

// BaseName returns the base name of the breakpoint's file, preferring the
// full name when present.
func (b Breakpoint) BaseName() string {
	switch {
	case b.FileFullName != "":
		return filepath.Base(b.FileFullName)
	case b.FileName != "":
		return filepath.Base(b.FileName)
	default:
		return ""
	}
}

// MatchesLocation reports whether the breakpoint sits at file:line.
//
// The full path must match exactly, or failing that the base names must
// match. Engines that omit directory information still match, at the cost
// that two files sharing a base name in different directories are treated
// as the same target.
func (b Breakpoint) MatchesLocation(file string, line int) bool {
	if file == "" || line <= 0 || b.Line != line {
		return false
	}
	if b.FileFullName != "" && b.FileFullName == file {
		return true
	}
	base := filepath.Base(file)
	return base != "" && base == b.BaseName()
}

// String returns a short description such as "#3 main.c:42".
func (b Breakpoint) String() string {
	switch {
	case b.Type == BreakpointWatchpoint:
		return fmt.Sprintf("#%d watch %s", b.Number, b.Expression)
	case b.Line > 0:
		return fmt.Sprintf("#%d %s:%d", b.Number, b.BaseName(), b.Line)
	case b.Function != "":
		return fmt.Sprintf("#%d %s", b.Number, b.Function)
	default:
		return fmt.Sprintf("#%d *%s", b.Number, b.Address)
	}
}

// Frame is one stack frame, or the current execution point.
type Frame struct {
	Level        int
	ThreadID     int
	Function     string
	FileName     string
	FileFullName string
	Line         int
	Address      Address

	// Library is set when the frame is inside a shared library without
	// line information.
	Library string
}

// HasSourceLine reports whether the frame carries a usable source position.
func (f Frame) HasSourceLine() bool {
	return f.Line > 0 && f.FileFullName != ""
}

// IsSymbolOnly reports whether the frame names a function but has no line
// information. This is a degraded but valid stop location.
func (f Frame) IsSymbolOnly() bool {
	return f.Function != "" && f.Line == 0
}

// String returns a short description of the frame.
func (f Frame) String() string {
	name := f.Function
	if name == "" {
		name = "??"
	}
	if f.Line > 0 {
		file := f.FileName
		if file == "" {
			file = filepath.Base(f.FileFullName)
		}
		return fmt.Sprintf("%s at %s:%d", name, file, f.Line)
	}
	if f.Library != "" {
		return fmt.Sprintf("%s (%s) at %s", name, f.Library, f.Address)
	}
	return fmt.Sprintf("%s at %s", name, f.Address)
}

// StopReason describes why the target stopped.
type StopReason string

// Stop reasons.
const (
	StopBreakpointHit    StopReason = "breakpoint-hit"
	StopWatchpointTrig   StopReason = "watchpoint-trigger"
	StopEndSteppingRange StopReason = "end-stepping-range"
	StopFunctionFinished StopReason = "function-finished"
	StopLocationReached  StopReason = "location-reached"
	StopSignalReceived   StopReason = "signal-received"
	StopException        StopReason = "exception"
	StopPause            StopReason = "pause"
	StopEntry            StopReason = "entry"
	StopUnknown          StopReason = "unknown"
)

// Program describes what the engine should load.
type Program struct {
	Path       string
	Args       []string
	Cwd        string
	SearchDirs []string
	TTY        string
	Env        map[string]string
}

// LocationKind selects how a breakpoint request is addressed.
type LocationKind int

const (
	// LocationSource addresses a file and line.
	LocationSource LocationKind = iota
	// LocationFunction addresses a function entry.
	LocationFunction
	// LocationAddress addresses a machine address.
	LocationAddress
)

// BreakpointRequest asks the engine to set a breakpoint.
type BreakpointRequest struct {
	Kind        LocationKind
	File        string
	Line        int
	Function    string
	Address     Address
	Condition   string
	IgnoreCount int
	Enabled     bool
}

// String describes the requested location.
func (r BreakpointRequest) String() string {
	switch r.Kind {
	case LocationSource:
		return fmt.Sprintf("%s:%d", r.File, r.Line)
	case LocationFunction:
		return r.Function
	default:
		return "*" + r.Address.String()
	}
}

// Variable is a value reported by the engine.
type Variable struct {
	Name     string
	Value    string
	Type     string
	Children int

	// Ref is an engine specific handle for expanding the variable.
	Ref int
}

// DisassemblyStyle selects what the engine should return for a range.
type DisassemblyStyle int

const (
	// DisassemblePure returns instructions only.
	DisassemblePure DisassemblyStyle = iota
	// DisassembleMixed interleaves source lines where known.
	DisassembleMixed
)

// Instruction is one disassembled machine instruction.
type Instruction struct {
	Address     Address
	Function    string
	Offset      int
	Instruction string
	FileName    string
	Line        int
}

// Disassembly is the result of a disassemble request.
type Disassembly struct {
	Start        Address
	End          Address
	Instructions []Instruction
}

// OverloadEntry is one candidate offered when a location is ambiguous.
type OverloadEntry struct {
	Index        int
	Function     string
	FileName     string
	FileFullName string
	Line         int
}
