// Package output classifies debugger engine events and applies them to a
// session.
//
// A Classifier holds an ordered list of Handlers. Every event is offered to
// every handler in registration order: a handler whose CanHandle returns true
// has its DoHandle run, and the chain continues regardless of the outcome.
// Several handlers may act on one event; a batch with console text and a
// stop record is handled by both the stream and the stop handler.
//
// Handlers mutate the session only through the Session interface they are
// given. A failing or panicking handler is reported as a *HandlerError and
// does not prevent later handlers from running.
package output
