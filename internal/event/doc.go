// Package event provides the notification bus between the debugger session
// and its observers.
//
// The session publishes typed notifications on hierarchical topics; views
// subscribe by topic pattern and re-read session state when notified.
// Delivery is synchronous and ordered: Publish runs every matching handler
// in the publisher's goroutine, lowest priority value first and in
// subscription order within a priority, before returning. This keeps
// observer updates in the same order as the engine events that caused them.
//
// # Topics
//
//	debug.frame.changed        - current frame replaced
//	debug.breakpoints.changed  - breakpoint table changed
//	debug.output.console       - console text
//
// Patterns may use "*" (one segment) and "**" (any number of segments):
//
//	debug.output.*   - every output stream
//	debug.**         - everything the session publishes
//
// # Usage
//
//	bus := event.NewBus()
//	sub, _ := bus.SubscribeFunc("debug.frame.changed", func(ctx context.Context, ev any) error {
//	    frame, _ := sess.Frame()
//	    redraw(frame)
//	    return nil
//	})
//	defer bus.Unsubscribe(sub)
//
// A handler that returns an error or panics is isolated: remaining handlers
// still run and the failure is reported to the bus error handler.
package event
