package session

import (
	"github.com/dshills/dbgcore/internal/engine"
	"github.com/dshills/dbgcore/internal/event"
	"github.com/dshills/dbgcore/internal/event/topic"
	"github.com/dshills/dbgcore/internal/output"
)

// Topics published on the session bus.
const (
	// TopicBreakpointsChanged is published when the breakpoint table changes.
	TopicBreakpointsChanged topic.Topic = "debug.breakpoints.changed"

	// TopicFrameChanged is published when the current frame is replaced or
	// cleared.
	TopicFrameChanged topic.Topic = "debug.frame.changed"

	// TopicSessionState is published when the mode or a status flag changes.
	TopicSessionState topic.Topic = "debug.session.state"

	// TopicStopped is published once per stop that committed a frame.
	TopicStopped topic.Topic = "debug.session.stopped"

	// TopicOutputConsole carries debugger console text.
	TopicOutputConsole topic.Topic = "debug.output.console"

	// TopicOutputTarget carries text written by the debugged program.
	TopicOutputTarget topic.Topic = "debug.output.target"

	// TopicOutputLog carries debugger log text.
	TopicOutputLog topic.Topic = "debug.output.log"

	// TopicWarning carries non-fatal messages for the user.
	TopicWarning topic.Topic = "debug.message.warning"

	// TopicError carries error messages for the user.
	TopicError topic.Topic = "debug.message.error"

	// TopicOverloadsChoice asks the user to pick among overloads.
	TopicOverloadsChoice topic.Topic = "debug.overloads.choice"

	// TopicSourceChanged is published when a resolved source file changes on disk.
	TopicSourceChanged topic.Topic = "debug.source.changed"

	// TopicAll matches every session topic.
	TopicAll topic.Topic = "debug.**"
)

// BreakpointsChanged is the TopicBreakpointsChanged payload.
type BreakpointsChanged struct {
	// Count is the table size after the change.
	Count int
}

// FrameChanged is the TopicFrameChanged payload.
type FrameChanged struct {
	Frame engine.Frame
	// Valid is false when the frame was cleared.
	Valid bool
}

// StateChanged is the TopicSessionState payload.
type StateChanged struct {
	Previous Status
	Current  Status
}

// RunEnded reports whether ev is a TopicSessionState notification for the
// end of a run: the target finished or detached, or the engine died.
func RunEnded(ev any) bool {
	sc, ok := event.PayloadOf[StateChanged](ev)
	if !ok {
		return false
	}
	if sc.Previous.EngineAlive && !sc.Current.EngineAlive {
		return true
	}
	return sc.Current.Mode == ModeNotStarted && sc.Previous.Mode != ModeNotStarted
}

// Stopped is the TopicStopped payload.
type Stopped struct {
	Stop output.Stop
}

// OutputText is the payload of the output topics.
type OutputText struct {
	Stream engine.StreamKind
	Text   string
}

// Message is the TopicWarning and TopicError payload.
type Message struct {
	// Kind is set for warnings.
	Kind output.Warning
	Text string
}

// OverloadsChoice is the TopicOverloadsChoice payload.
type OverloadsChoice struct {
	Entries []engine.OverloadEntry
	Cookie  string
}

// SourceChanged is the TopicSourceChanged payload.
type SourceChanged struct {
	Path string
}

func outputTopic(stream engine.StreamKind) topic.Topic {
	switch stream {
	case engine.StreamTarget:
		return TopicOutputTarget
	case engine.StreamLog:
		return TopicOutputLog
	default:
		return TopicOutputConsole
	}
}
