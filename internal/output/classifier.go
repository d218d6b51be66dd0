package output

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/go-logr/logr"

	"github.com/dshills/dbgcore/internal/engine"
)

// Handler is one link of the classification chain.
type Handler interface {
	// Name identifies the handler in logs and errors.
	Name() string

	// CanHandle reports whether DoHandle should run for ev. It may remember
	// what it found for the DoHandle call that immediately follows, but must
	// not touch the session.
	CanHandle(ev engine.Event) bool

	// DoHandle applies ev to the session.
	DoHandle(ctx context.Context, ev engine.Event, s Session) error
}

// Classifier runs events through an ordered handler list.
type Classifier struct {
	mu       sync.RWMutex
	handlers []Handler
	seq      uint64
	log      logr.Logger
}

// NewClassifier creates a classifier with the given handlers in order.
func NewClassifier(log logr.Logger, handlers ...Handler) *Classifier {
	c := &Classifier{log: log}
	for _, h := range handlers {
		c.Register(h)
	}
	return c
}

// Register appends h to the chain. Registering the same handler twice runs
// it twice.
func (c *Classifier) Register(h Handler) {
	if h == nil {
		return
	}
	c.mu.Lock()
	c.handlers = append(c.handlers, h)
	c.mu.Unlock()
}

// Handlers returns the chain in order.
func (c *Classifier) Handlers() []Handler {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Handler(nil), c.handlers...)
}

// Dispatch offers ev to every handler in order and returns the errors of
// the handlers that failed. Failures are also written to the session log.
func (c *Classifier) Dispatch(ctx context.Context, ev engine.Event, s Session) []error {
	if ev == nil {
		return []error{ErrNilEvent}
	}

	c.mu.Lock()
	c.seq++
	seq := c.seq
	handlers := append([]Handler(nil), c.handlers...)
	c.mu.Unlock()

	c.log.V(1).Info("dispatching event", "seq", seq, "event", ev.EventName())

	var errs []error
	for _, h := range handlers {
		if err := c.run(ctx, h, ev, s); err != nil {
			herr := &HandlerError{Handler: h.Name(), Seq: seq, Event: ev.EventName(), Err: err}
			if p, ok := err.(*panicError); ok {
				herr.Err = fmt.Errorf("%w: %v", ErrHandlerPanic, p.value)
				herr.Stack = p.stack
			}
			c.log.Error(herr.Err, "output handler failed", "handler", herr.Handler, "seq", seq, "event", herr.Event)
			s.Log(herr.Error())
			errs = append(errs, herr)
		}
	}
	return errs
}

type panicError struct {
	value any
	stack string
}

func (p *panicError) Error() string { return fmt.Sprint(p.value) }

func (c *Classifier) run(ctx context.Context, h Handler, ev engine.Event, s Session) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r, stack: string(debug.Stack())}
		}
	}()
	if !h.CanHandle(ev) {
		return nil
	}
	return h.DoHandle(ctx, ev, s)
}

// Options configures the built-in handlers.
type Options struct {
	// SuppressEngineErrors keeps engine error messages out of the user
	// visible error channel. They still reach the log sink.
	SuppressEngineErrors bool
}

// DefaultHandlers returns fresh instances of the built-in handlers in their
// dispatch order.
func DefaultHandlers(opts Options) []Handler {
	return []Handler{
		&StreamHandler{},
		&StopHandler{},
		&ResultHandler{},
		&BreakpointsHandler{},
		&LifecycleHandler{},
		&VariableHandler{},
		&OverloadsHandler{},
		&EngineErrorHandler{Suppress: opts.SuppressEngineErrors},
	}
}
