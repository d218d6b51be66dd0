// Package dap implements engine.Debugger on top of the Debug Adapter
// Protocol.
//
// GDB (gdb --interpreter=dap), lldb-dap and Delve (dlv dap) all speak DAP,
// so one engine covers them; a Preset says how to start each adapter and how
// to phrase its launch request. Messages are framed and decoded by
// github.com/google/go-dap.
//
// The engine owns one reader goroutine. It matches responses to requests by
// sequence number and turns adapter events into engine events, which are
// queued on an unbounded channel so a slow consumer never stalls the adapter
// connection:
//
//	adapter ──► Transport ──► reader ──► pending[seq] callback ─┐
//	                                 └─► event translation ─────┴─► Events()
//
// Breakpoint numbers are assigned by the engine and stay stable while the
// adapter's own ids come and go. DAP replaces breakpoints per file (and per
// function, instruction or data group), so every change resends the whole
// group; disabled breakpoints are simply left out.
package dap
