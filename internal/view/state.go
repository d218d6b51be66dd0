package view

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/dshills/dbgcore/internal/event"
	"github.com/dshills/dbgcore/internal/event/topic"
	"github.com/dshills/dbgcore/internal/session"
)

// StateIndicator shows the session mode and status flags.
type StateIndicator struct {
	mu       sync.RWMutex
	status   session.Status
	modes    []session.Mode
	onChange func(session.Status)
}

// NewStateIndicator creates a state indicator. onChange, if set, receives
// each status that differs from the previous one.
func NewStateIndicator(onChange func(session.Status)) *StateIndicator {
	return &StateIndicator{status: session.Status{Mode: session.ModeNotStarted, EngineAlive: true}, onChange: onChange}
}

// Name implements Observer.
func (*StateIndicator) Name() string { return "state" }

// Topics implements Observer.
func (*StateIndicator) Topics() []topic.Topic {
	return []topic.Topic{session.TopicSessionState}
}

// Priority runs the indicator before other views so they can consult it.
func (*StateIndicator) Priority() event.Priority { return event.PriorityHigh }

// Refresh implements Observer.
func (i *StateIndicator) Refresh(_ context.Context, src Source, _ any) error {
	st := src.Status()
	i.mu.Lock()
	changed := st != i.status
	if st.Mode != i.status.Mode {
		i.modes = append(i.modes, st.Mode)
	}
	i.status = st
	i.mu.Unlock()
	if changed && i.onChange != nil {
		i.onChange(st)
	}
	return nil
}

// Status returns the last status read.
func (i *StateIndicator) Status() session.Status {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.status
}

// Modes returns every mode entered, in order.
func (i *StateIndicator) Modes() []session.Mode {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return append([]session.Mode(nil), i.modes...)
}

// Text returns a one-line description such as "running, attached, pid 42".
func (i *StateIndicator) Text() string {
	return StatusText(i.Status())
}

// StatusText describes st on one line.
func StatusText(st session.Status) string {
	parts := []string{st.Mode.String()}
	if st.Attached {
		parts = append(parts, "attached")
	}
	if st.PID > 0 {
		parts = append(parts, fmt.Sprintf("pid %d", st.PID))
	}
	if !st.EngineAlive {
		parts = append(parts, "engine dead")
	}
	return strings.Join(parts, ", ")
}
