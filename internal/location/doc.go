// Package location decides where a frame should be shown.
//
// A frame with file information is resolved to a readable source file by
// searching, in order, the paths remembered for the session, the full name
// reported by the engine, the program's working directory, the session
// search directories and the global search directories. When that fails and
// the caller allows it, a Prompter asks for the file; the answer, including
// a request to stop asking, is remembered until Reset.
//
// A frame that cannot be tied to a source file falls back to an address
// view. The disassembly window around the frame's address is sized from an
// instruction margin at BytesPerInstruction bytes each, which is an x86
// oriented approximation. The current-location marker goes on the closest
// instruction at or below the address, since the program counter does not
// always land on a boundary of the disassembled range.
//
// Breakpoint markers are computed from the session's breakpoint table on
// every call and are never cached.
package location
