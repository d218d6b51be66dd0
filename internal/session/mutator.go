package session

import (
	"context"
	"fmt"

	"github.com/dshills/dbgcore/internal/engine"
	"github.com/dshills/dbgcore/internal/event"
	"github.com/dshills/dbgcore/internal/event/topic"
	"github.com/dshills/dbgcore/internal/output"
)

// mutator is the output.Session handed to the classifier for one event.
// It is the only writer of session state.
type mutator struct {
	s   *Session
	ctx context.Context
	seq uint64

	// cookie of the engine event, carried as the correlation ID of every
	// notification it causes
	cookie string
}

var _ output.Session = (*mutator)(nil)

func emit[T any](m *mutator, t topic.Topic, payload T) {
	ev := event.NewEvent(t, payload, "session").WithSeq(m.seq).WithCorrelation(m.cookie)
	if err := m.s.bus.Publish(context.WithoutCancel(m.ctx), ev); err != nil {
		m.s.log.Error(err, "publish failed", "topic", t)
	}
}

func (m *mutator) publishState(prev Status) {
	cur := m.s.Status()
	if cur != prev {
		m.s.log.V(1).Info("session state changed", "from", prev.Mode, "to", cur.Mode,
			"attached", cur.Attached, "engineAlive", cur.EngineAlive)
		emit(m, TopicSessionState, StateChanged{Previous: prev, Current: cur})
	}
}

// update applies fn to the status under the lock and publishes the change.
func (m *mutator) update(fn func(st *Status)) {
	m.s.mu.Lock()
	prev := m.s.status
	fn(&m.s.status)
	if m.s.status.Mode == ModeNotStarted {
		m.s.status.Attached = false
	}
	m.s.mu.Unlock()
	m.publishState(prev)
}

func (m *mutator) State() engine.State {
	return m.s.Mode()
}

func (m *mutator) EngineAlive() bool {
	return m.s.Status().EngineAlive
}

func (m *mutator) Frame() (engine.Frame, bool) {
	return m.s.Frame()
}

func (m *mutator) SetFrame(frame engine.Frame) {
	m.s.mu.Lock()
	m.s.frame = &frame
	m.s.mu.Unlock()
	emit(m, TopicFrameChanged, FrameChanged{Frame: frame, Valid: true})
}

func (m *mutator) ClearFrame() {
	m.s.mu.Lock()
	had := m.s.frame != nil
	m.s.frame = nil
	m.s.mu.Unlock()
	if had {
		emit(m, TopicFrameChanged, FrameChanged{})
	}
}

func (m *mutator) SetState(state engine.State) {
	if !m.s.Status().EngineAlive && state != ModeNotStarted {
		m.s.log.Info("ignoring state change after engine death", "state", state)
		return
	}
	m.update(func(st *Status) { st.Mode = state })
}

func (m *mutator) SetAttached(attached bool) {
	m.update(func(st *Status) { st.Attached = attached })
}

func (m *mutator) SetTargetInfo(pid int, exePath string) {
	m.update(func(st *Status) {
		st.PID = pid
		st.ExePath = exePath
	})
}

func (m *mutator) MarkEngineDead(err error) {
	m.s.log.Error(err, "debugger engine died")
	m.update(func(st *Status) {
		st.Mode = ModeNotStarted
		st.EngineAlive = false
		st.ProgramLoaded = false
		st.PID = 0
	})
	m.ClearFrame()
	cause := ErrEngineDead
	if err != nil {
		cause = fmt.Errorf("%w: %v", ErrEngineDead, err)
	}
	m.s.pending.failAll(cause)
	emit(m, TopicError, Message{Text: cause.Error()})
}

func (m *mutator) NotifyStopped(stop output.Stop) {
	emit(m, TopicStopped, Stopped{Stop: stop})
}

func (m *mutator) UpsertBreakpoint(number int, bp engine.Breakpoint) {
	m.s.table.Upsert(number, bp)
}

func (m *mutator) RemoveBreakpoint(number int) bool {
	return m.s.table.Remove(number)
}

func (m *mutator) CountHit(number int) {
	if _, ok := m.s.table.Get(number); !ok {
		return
	}
	m.s.table.IncrementHitCount(number)
	m.NotifyBreakpointsChanged()
}

func (m *mutator) NotifyBreakpointsChanged() {
	emit(m, TopicBreakpointsChanged, BreakpointsChanged{Count: m.s.table.Len()})
}

func (m *mutator) Console(text string) { m.text(engine.StreamConsole, text) }
func (m *mutator) Target(text string)  { m.text(engine.StreamTarget, text) }

func (m *mutator) Log(text string) {
	m.s.log.V(1).Info("engine log", "text", text)
	m.text(engine.StreamLog, text)
}

func (m *mutator) text(stream engine.StreamKind, text string) {
	emit(m, outputTopic(stream), OutputText{Stream: stream, Text: text})
}

func (m *mutator) Warn(kind output.Warning, msg string) {
	emit(m, TopicWarning, Message{Kind: kind, Text: msg})
}

func (m *mutator) Error(msg string) {
	emit(m, TopicError, Message{Text: msg})
}

func (m *mutator) OverloadsChoice(entries []engine.OverloadEntry, cookie string) {
	emit(m, TopicOverloadsChoice, OverloadsChoice{Entries: entries, Cookie: cookie})
}

func (m *mutator) Resolve(cookie string, result any, err error) bool {
	return m.s.pending.complete(cookie, result, err)
}
