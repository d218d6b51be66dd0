// Package breakpoint holds the authoritative breakpoint table of a session.
//
// The table mirrors what the engine reports. Entries are created and
// replaced only from confirmed engine events and removed on deletion
// events; the table never creates breakpoints on its own and does not
// prevent two numbers from sharing a location.
package breakpoint

import (
	"sort"
	"sync"

	"github.com/go-logr/logr"

	"github.com/dshills/dbgcore/internal/engine"
)

// Table maps breakpoint numbers to breakpoints.
type Table struct {
	mu          sync.RWMutex
	breakpoints map[int]engine.Breakpoint
	log         logr.Logger
}

// NewTable creates an empty table.
func NewTable(log logr.Logger) *Table {
	return &Table{
		breakpoints: make(map[int]engine.Breakpoint),
		log:         log,
	}
}

// Upsert inserts bp under number, replacing any existing entry. The stored
// breakpoint's Number is forced to number.
func (t *Table) Upsert(number int, bp engine.Breakpoint) {
	bp.Number = number

	t.mu.Lock()
	defer t.mu.Unlock()
	t.breakpoints[number] = bp
}

// Remove deletes the breakpoint with the given number. Removing an unknown
// number is a logged no-op. It reports whether an entry was removed.
func (t *Table) Remove(number int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.breakpoints[number]; !ok {
		t.log.V(1).Info("remove of unknown breakpoint ignored", "number", number)
		return false
	}
	delete(t.breakpoints, number)
	return true
}

// Get returns the breakpoint with the given number.
func (t *Table) Get(number int) (engine.Breakpoint, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	bp, ok := t.breakpoints[number]
	return bp, ok
}

// Len returns the number of breakpoints.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.breakpoints)
}

// FindByLocation returns the number and enabled flag of a breakpoint at
// file:line, using the tolerant matching of engine.Breakpoint.MatchesLocation.
//
// If several entries match, which one is returned is unspecified: the scan
// follows map iteration order.
func (t *Table) FindByLocation(file string, line int) (number int, enabled bool, ok bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for n, bp := range t.breakpoints {
		if bp.MatchesLocation(file, line) {
			return n, bp.Enabled, true
		}
	}
	return 0, false, false
}

// FindByAddress returns the number of a breakpoint at exactly addr.
func (t *Table) FindByAddress(addr engine.Address) (int, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for n, bp := range t.breakpoints {
		if bp.Address != 0 && bp.Address == addr {
			return n, true
		}
	}
	return 0, false
}

// All returns a copy of every breakpoint, sorted by number. The result is
// not a live view.
func (t *Table) All() []engine.Breakpoint {
	t.mu.RLock()
	result := make([]engine.Breakpoint, 0, len(t.breakpoints))
	for _, bp := range t.breakpoints {
		result = append(result, bp)
	}
	t.mu.RUnlock()

	sortByNumber(result)
	return result
}

// ForFile returns the breakpoints whose file matches file by full path or
// base name, sorted by number.
func (t *Table) ForFile(file string) []engine.Breakpoint {
	var result []engine.Breakpoint
	for _, bp := range t.All() {
		if bp.Line > 0 && bp.MatchesLocation(file, bp.Line) {
			result = append(result, bp)
		}
	}
	return result
}

// InRange returns the breakpoints whose address lies in [lo, hi], sorted by
// number.
func (t *Table) InRange(lo, hi engine.Address) []engine.Breakpoint {
	var result []engine.Breakpoint
	for _, bp := range t.All() {
		if bp.Address != 0 && bp.Address >= lo && bp.Address <= hi {
			result = append(result, bp)
		}
	}
	return result
}

// IncrementHitCount bumps the hit count of the given breakpoint, if known.
func (t *Table) IncrementHitCount(number int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if bp, ok := t.breakpoints[number]; ok {
		bp.HitCount++
		t.breakpoints[number] = bp
	}
}

// Clear removes all breakpoints.
func (t *Table) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.breakpoints = make(map[int]engine.Breakpoint)
}

func sortByNumber(bps []engine.Breakpoint) {
	sort.Slice(bps, func(i, j int) bool {
		return bps[i].Number < bps[j].Number
	})
}
