// Package session implements the debugger session state machine.
//
// A Session owns the lifecycle mode, the current frame and the breakpoint
// table. Outbound requests are validated locally and forwarded to the
// engine; they never change state themselves. Every state change is driven
// by an engine event dispatched through the output classifier, either by
// Serve, which consumes the engine's event channel in arrival order, or by
// Process for a single event.
//
// Mode transitions:
//
//	NOT_STARTED --running event-->          RUNNING
//	RUNNING     --stop with a frame-->      READY
//	READY       --running event-->          RUNNING
//	RUNNING     --program finished-->       NOT_STARTED (not attached)
//	any         --engine died-->            NOT_STARTED (engine dead, terminal)
//	READY/RUNNING --detached event-->       NOT_STARTED (not attached)
//
// Requests whose answer arrives later are registered in a pending table
// under a generated correlation ID, which is passed to the engine as the
// cookie. The answer, a timeout or the request context's cancellation
// completes the request exactly once, on the loop goroutine.
//
// Observers subscribe to the topics in topics.go on the session's event bus
// and re-read session state when notified.
package session
