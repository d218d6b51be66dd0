// Package view keeps headless views in sync with a debugging session.
//
// An Observer names the session topics it cares about. When one is
// published, Sync calls the observer's Refresh with the session as a
// read-only Source; the observer re-reads whatever state it shows. Event
// payloads are hints about what changed, never a complete diff, so an
// observer that misses an event recovers on the next one.
//
// Refresh runs on the goroutine that published the event, which for
// session topics is the session loop. Observers must not block on engine
// answers there; requests that need an answer take a continuation.
package view
