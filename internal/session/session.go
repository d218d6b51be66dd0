package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"
	"github.com/smallnest/chanx"

	"github.com/dshills/dbgcore/internal/breakpoint"
	"github.com/dshills/dbgcore/internal/engine"
	"github.com/dshills/dbgcore/internal/event"
	"github.com/dshills/dbgcore/internal/output"
)

// Mode is the session lifecycle mode.
type Mode = engine.State

// Lifecycle modes.
const (
	ModeNotStarted = engine.StateNotStarted
	ModeReady      = engine.StateReady
	ModeRunning    = engine.StateRunning
)

// DefaultRequestTimeout fails pending requests that get no answer.
const DefaultRequestTimeout = 30 * time.Second

// Status is a snapshot of the session's mode and flags.
type Status struct {
	Mode          Mode
	Attached      bool
	EngineAlive   bool
	ProgramLoaded bool
	PID           int
	ExePath       string
}

// Options configures a Session.
type Options struct {
	// Log receives session diagnostics. Defaults to a discarding logger.
	Log logr.Logger

	// Bus receives notifications. Defaults to a new bus.
	Bus event.Bus

	// RequestTimeout bounds pending requests. Defaults to
	// DefaultRequestTimeout.
	RequestTimeout time.Duration

	// SuppressEngineErrors keeps engine errors out of TopicError.
	SuppressEngineErrors bool

	// Handlers are appended to the built-in handler chain.
	Handlers []output.Handler
}

// Session is a debugging session over one engine.
type Session struct {
	eng        engine.Debugger
	bus        event.Bus
	classifier *output.Classifier
	table      *breakpoint.Table
	pending    *pendingTable
	log        logr.Logger

	inbox       *chanx.UnboundedChan[loopMsg]
	stopInbox   context.CancelFunc
	done        chan struct{}
	closing     atomic.Bool
	shutdownOne sync.Once

	procMu sync.Mutex
	seq    atomic.Uint64

	mu      sync.RWMutex
	status  Status
	program engine.Program
	frame   *engine.Frame
}

// New creates a session over eng.
func New(eng engine.Debugger, opts Options) *Session {
	if opts.Log.GetSink() == nil {
		opts.Log = logr.Discard()
	}
	if opts.Bus == nil {
		opts.Bus = event.NewBus()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}

	handlers := output.DefaultHandlers(output.Options{SuppressEngineErrors: opts.SuppressEngineErrors})
	handlers = append(handlers, opts.Handlers...)

	inboxCtx, cancel := context.WithCancel(context.Background())
	s := &Session{
		eng:        eng,
		bus:        opts.Bus,
		log:        opts.Log,
		classifier: output.NewClassifier(opts.Log.WithName("output"), handlers...),
		table:      breakpoint.NewTable(opts.Log.WithName("breakpoints")),
		inbox:      chanx.NewUnboundedChan[loopMsg](inboxCtx, 16),
		stopInbox:  cancel,
		done:       make(chan struct{}),
		status:     Status{Mode: ModeNotStarted, EngineAlive: true},
	}
	s.pending = newPendingTable(opts.RequestTimeout, s.post)
	return s
}

// Bus returns the notification bus.
func (s *Session) Bus() event.Bus {
	return s.bus
}

// Status returns a snapshot of the mode and flags.
func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Mode returns the lifecycle mode.
func (s *Session) Mode() Mode {
	return s.Status().Mode
}

// Program returns the loaded program.
func (s *Session) Program() (engine.Program, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.program, s.status.ProgramLoaded
}

// Frame returns a copy of the current frame.
func (s *Session) Frame() (engine.Frame, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.frame == nil {
		return engine.Frame{}, false
	}
	return *s.frame, true
}

// Breakpoints returns a snapshot of the breakpoint table sorted by number.
func (s *Session) Breakpoints() []engine.Breakpoint {
	return s.table.All()
}

// BreakpointAt returns the breakpoint matching file and line.
func (s *Session) BreakpointAt(file string, line int) (engine.Breakpoint, bool) {
	number, _, ok := s.table.FindByLocation(file, line)
	if !ok {
		return engine.Breakpoint{}, false
	}
	return s.table.Get(number)
}

// BreakpointAtAddress returns the breakpoint set exactly at addr.
func (s *Session) BreakpointAtAddress(addr engine.Address) (engine.Breakpoint, bool) {
	number, ok := s.table.FindByAddress(addr)
	if !ok {
		return engine.Breakpoint{}, false
	}
	return s.table.Get(number)
}

// BreakpointsInFile returns the line breakpoints set in file.
func (s *Session) BreakpointsInFile(file string) []engine.Breakpoint {
	return s.table.ForFile(file)
}

// BreakpointsInRange returns the breakpoints whose address lies in [lo, hi].
func (s *Session) BreakpointsInRange(lo, hi engine.Address) []engine.Breakpoint {
	return s.table.InRange(lo, hi)
}

// PendingRequests returns the number of requests awaiting an answer.
func (s *Session) PendingRequests() int {
	return s.pending.len()
}

// Shutdown terminates the target, closes the engine, fails pending requests
// and clears the session. Only the first call does anything; later and
// concurrent calls return nil once it has finished. It must not be called
// from a bus handler or a Continuation.
func (s *Session) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOne.Do(func() {
		err = s.shutdown(ctx)
	})
	return err
}

func (s *Session) shutdown(ctx context.Context) error {
	s.closing.Store(true)
	s.log.Info("shutting down session")

	var errs []error
	st := s.Status()
	if st.EngineAlive && st.ProgramLoaded {
		if err := s.eng.Terminate(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.eng.Close(); err != nil {
		errs = append(errs, err)
	}

	s.procMu.Lock()
	defer s.procMu.Unlock()

	close(s.done)
	s.stopInbox()
	s.pending.failAll(ErrShutdown)

	s.mu.Lock()
	prev := s.status
	hadFrame := s.frame != nil
	s.status = Status{Mode: ModeNotStarted}
	s.frame = nil
	s.program = engine.Program{}
	s.mu.Unlock()
	s.table.Clear()

	m := &mutator{s: s, ctx: ctx}
	m.publishState(prev)
	if hadFrame {
		emit(m, TopicFrameChanged, FrameChanged{})
	}
	emit(m, TopicBreakpointsChanged, BreakpointsChanged{})

	return errors.Join(errs...)
}

func (s *Session) isShutdown() bool {
	return s.closing.Load()
}
