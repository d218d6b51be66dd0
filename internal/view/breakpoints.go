package view

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"sync"
	"text/tabwriter"

	"github.com/dshills/dbgcore/internal/engine"
	"github.com/dshills/dbgcore/internal/event/topic"
	"github.com/dshills/dbgcore/internal/session"
)

// BreakpointList mirrors the breakpoint table.
type BreakpointList struct {
	mu       sync.RWMutex
	rows     []engine.Breakpoint
	onChange func([]engine.Breakpoint)
}

// NewBreakpointList creates a breakpoint list. onChange, if set, receives
// each new snapshot.
func NewBreakpointList(onChange func([]engine.Breakpoint)) *BreakpointList {
	return &BreakpointList{onChange: onChange}
}

// Name implements Observer.
func (*BreakpointList) Name() string { return "breakpoints" }

// Topics implements Observer.
func (*BreakpointList) Topics() []topic.Topic {
	return []topic.Topic{session.TopicBreakpointsChanged}
}

// Refresh implements Observer.
func (l *BreakpointList) Refresh(_ context.Context, src Source, _ any) error {
	rows := src.Breakpoints()
	l.mu.Lock()
	l.rows = rows
	l.mu.Unlock()
	if l.onChange != nil {
		l.onChange(rows)
	}
	return nil
}

// Rows returns the last snapshot, sorted by number.
func (l *BreakpointList) Rows() []engine.Breakpoint {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]engine.Breakpoint(nil), l.rows...)
}

// FormatBreakpoints writes bps as an aligned table.
func FormatBreakpoints(w io.Writer, bps []engine.Breakpoint) error {
	if len(bps) == 0 {
		_, err := fmt.Fprintln(w, "no breakpoints")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NUM\tTYPE\tENB\tWHERE\tHITS\tCONDITION")
	for _, bp := range bps {
		enabled := "n"
		if bp.Enabled {
			enabled = "y"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			bp.Number, bp.Type, enabled, where(bp), strconv.Itoa(bp.HitCount), bp.Condition)
	}
	return tw.Flush()
}

func where(bp engine.Breakpoint) string {
	switch {
	case bp.Type == engine.BreakpointWatchpoint:
		access := "write"
		switch {
		case bp.IsReadWatchpoint && bp.IsWriteWatchpoint:
			access = "access"
		case bp.IsReadWatchpoint:
			access = "read"
		}
		return fmt.Sprintf("%s (%s)", bp.Expression, access)
	case bp.Line > 0:
		file := bp.FileFullName
		if file == "" {
			file = bp.FileName
		}
		return fmt.Sprintf("%s:%d", file, bp.Line)
	case bp.Function != "":
		return bp.Function
	default:
		return "*" + bp.Address.String()
	}
}
