// Package engine defines the contract between the session core and a
// debugger engine.
//
// The engine is an external collaborator (GDB, Delve, lldb behind a debug
// adapter). Requests flow out through the Debugger interface and are all
// fire-and-forget: a request returns as soon as it is handed to the engine.
// Answers come back later, in engine emission order, as Event values on the
// channel returned by Debugger.Events.
//
// # Output batches
//
// Raw engine output arrives as an Output batch (one "command and output"
// unit). A batch carries zero or more out-of-band records (stream text or
// execution notifications) and at most one result record:
//
//	┌──────────────────────────────────────────────┐
//	│ Output                                       │
//	│  Command   the request that caused it        │
//	│  OutOfBand console / target / log / stopped  │
//	│  Result    done / running / error + cookie   │
//	└──────────────────────────────────────────────┘
//
// Typed events (BreakpointsSetEvent, StoppedEvent, ...) are delivered
// alongside batches. Both are consumed by the output classifier.
//
// # Cookies
//
// Requests whose answer must be paired with the caller take a cookie. The
// engine echoes the cookie on the resulting event unchanged; it never
// interprets it.
package engine
