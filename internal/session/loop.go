package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/dshills/dbgcore/internal/engine"
)

// ErrEventsClosed is the engine death cause when the engine's event channel
// closes while the session is live.
var ErrEventsClosed = errors.New("engine event channel closed")

type msgKind int

const (
	msgTimeout msgKind = iota
	msgCancel
)

// loopMsg is an internal message serviced by the event loop.
type loopMsg struct {
	kind msgKind
	id   string
	err  error
}

// post queues msg for the loop. Messages posted after shutdown are dropped.
func (s *Session) post(msg loopMsg) {
	select {
	case s.inbox.In <- msg:
	case <-s.done:
	}
}

// Serve consumes engine events in arrival order until ctx is done, the
// session is shut down, or the engine's event channel closes.
func (s *Session) Serve(ctx context.Context) error {
	events := s.eng.Events()
	s.log.Info("event loop started")
	defer s.log.Info("event loop stopped")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.done:
			return nil
		case ev, ok := <-events:
			if !ok {
				if !s.isShutdown() && s.Status().EngineAlive {
					s.Process(ctx, &engine.EngineDiedEvent{Err: ErrEventsClosed})
				}
				return nil
			}
			s.Process(ctx, ev)
		case msg := <-s.inbox.Out:
			s.service(msg)
		}
	}
}

// Process dispatches one engine event through the handler chain and
// returns the handlers' errors. Calls are serialized with the event loop.
func (s *Session) Process(ctx context.Context, ev engine.Event) []error {
	s.procMu.Lock()
	defer s.procMu.Unlock()

	if s.isShutdown() {
		return nil
	}
	seq := s.seq.Add(1)
	return s.classifier.Dispatch(ctx, ev, &mutator{s: s, ctx: ctx, seq: seq, cookie: engine.CookieOf(ev)})
}

func (s *Session) service(msg loopMsg) {
	s.procMu.Lock()
	defer s.procMu.Unlock()

	switch msg.kind {
	case msgTimeout:
		if s.pending.complete(msg.id, nil, ErrRequestTimeout) {
			s.log.Info("request timed out", "id", msg.id)
		}
	case msgCancel:
		s.pending.complete(msg.id, nil, fmt.Errorf("request cancelled: %w", msg.err))
	}
}
