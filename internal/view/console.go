package view

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/dshills/dbgcore/internal/event"
	"github.com/dshills/dbgcore/internal/event/topic"
	"github.com/dshills/dbgcore/internal/session"
)

// ConsoleLog writes session output and messages to a writer, one entry per
// notification.
type ConsoleLog struct {
	mu      sync.Mutex
	w       io.Writer
	entries int
}

// NewConsoleLog creates a console log writing to w.
func NewConsoleLog(w io.Writer) *ConsoleLog {
	return &ConsoleLog{w: w}
}

// Name implements Observer.
func (*ConsoleLog) Name() string { return "console" }

// Topics implements Observer.
func (*ConsoleLog) Topics() []topic.Topic {
	return []topic.Topic{
		"debug.output.*",
		session.TopicWarning,
		session.TopicError,
		session.TopicStopped,
		session.TopicOverloadsChoice,
	}
}

// Priority runs the log after the views it reports on.
func (*ConsoleLog) Priority() event.Priority { return event.PriorityLow }

// Refresh implements Observer. Text notifications carry their content, so
// the log reads payloads rather than session state.
func (c *ConsoleLog) Refresh(_ context.Context, _ Source, ev any) error {
	text, ok := c.format(ev)
	if !ok {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries++
	_, err := io.WriteString(c.w, text)
	return err
}

// Entries returns the number of entries written.
func (c *ConsoleLog) Entries() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries
}

func (c *ConsoleLog) format(ev any) (string, bool) {
	switch topicOf(ev) {
	case session.TopicOutputConsole, session.TopicOutputTarget:
		out, ok := event.PayloadOf[session.OutputText](ev)
		return out.Text, ok && out.Text != ""
	case session.TopicOutputLog:
		out, ok := event.PayloadOf[session.OutputText](ev)
		return line("[log] " + out.Text), ok && out.Text != ""
	case session.TopicWarning:
		msg, ok := event.PayloadOf[session.Message](ev)
		return line("warning: " + msg.Text), ok
	case session.TopicError:
		msg, ok := event.PayloadOf[session.Message](ev)
		return line("error: " + msg.Text), ok
	case session.TopicStopped:
		st, ok := event.PayloadOf[session.Stopped](ev)
		if !ok || st.Stop.Frame == nil {
			return "", false
		}
		text := fmt.Sprintf("stopped (%s) in %s", st.Stop.Reason, st.Stop.Frame)
		if st.Stop.BreakpointNumber > 0 {
			text += fmt.Sprintf(", breakpoint #%d", st.Stop.BreakpointNumber)
		}
		return line(text), true
	case session.TopicOverloadsChoice:
		oc, ok := event.PayloadOf[session.OverloadsChoice](ev)
		if !ok {
			return "", false
		}
		var b strings.Builder
		b.WriteString("location is ambiguous, candidates:\n")
		for _, e := range oc.Entries {
			fmt.Fprintf(&b, "  [%d] %s at %s:%d\n", e.Index, e.Function, e.FileName, e.Line)
		}
		return b.String(), true
	}
	return "", false
}

func line(s string) string {
	if strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}
