package dap

import (
	"path/filepath"
	"slices"

	"github.com/google/go-dap"

	"github.com/dshills/dbgcore/internal/engine"
)

// groupKind is the DAP request a breakpoint is sent with.
type groupKind int

const (
	groupSource groupKind = iota
	groupFunction
	groupInstruction
	groupData
)

// group is the unit DAP replaces at once: all breakpoints in one file, or
// all function, instruction or data breakpoints.
type group struct {
	kind groupKind
	file string
}

type entry struct {
	bp    engine.Breakpoint
	group group

	// adapterID is the adapter's id for the breakpoint, 0 while unknown or
	// disabled.
	adapterID int

	// temporary entries stop ContinueTo and are never reported.
	temporary bool

	dataID string
	access dap.DataBreakpointAccessType
}

// breakpoints is the engine's breakpoint list. It is guarded by the
// engine's mutex.
type breakpoints struct {
	next     int
	nextTemp int
	entries  map[int]*entry
}

func newBreakpoints() *breakpoints {
	return &breakpoints{next: 1, nextTemp: -1, entries: make(map[int]*entry)}
}

func groupOf(req engine.BreakpointRequest) group {
	switch req.Kind {
	case engine.LocationFunction:
		return group{kind: groupFunction}
	case engine.LocationAddress:
		return group{kind: groupInstruction}
	default:
		return group{kind: groupSource, file: req.File}
	}
}

// add records a new breakpoint for req and returns it.
func (b *breakpoints) add(req engine.BreakpointRequest) *entry {
	bp := engine.Breakpoint{
		Number:      b.next,
		Enabled:     req.Enabled,
		Function:    req.Function,
		Address:     req.Address,
		Condition:   req.Condition,
		IgnoreCount: req.IgnoreCount,
	}
	if req.Kind == engine.LocationSource {
		bp.FileName = req.File
		bp.Line = req.Line
		if filepath.IsAbs(req.File) {
			bp.FileFullName = req.File
		}
	}
	b.next++
	ent := &entry{bp: bp, group: groupOf(req)}
	b.entries[bp.Number] = ent
	return ent
}

// addTemporary records a breakpoint used once to stop at file:line.
func (b *breakpoints) addTemporary(file string, line int) *entry {
	ent := &entry{
		bp:        engine.Breakpoint{Number: b.nextTemp, Enabled: true, FileName: file, Line: line},
		group:     group{kind: groupSource, file: file},
		temporary: true,
	}
	b.nextTemp--
	b.entries[ent.bp.Number] = ent
	return ent
}

// addWatch records a data breakpoint.
func (b *breakpoints) addWatch(expr, dataID string, write, read bool) *entry {
	access := dap.DataBreakpointAccessType("write")
	switch {
	case write && read:
		access = "readWrite"
	case read:
		access = "read"
	}
	ent := &entry{
		bp: engine.Breakpoint{
			Number:            b.next,
			Type:              engine.BreakpointWatchpoint,
			Enabled:           true,
			Expression:        expr,
			IsReadWatchpoint:  read,
			IsWriteWatchpoint: write,
		},
		group:  group{kind: groupData},
		dataID: dataID,
		access: access,
	}
	b.next++
	b.entries[ent.bp.Number] = ent
	return ent
}

// adopt records a breakpoint the adapter created on its own.
func (b *breakpoints) adopt(d dap.Breakpoint) *entry {
	ent := &entry{bp: engine.Breakpoint{Number: b.next, Enabled: true}}
	b.next++
	ent.apply(d)
	ent.group = group{kind: groupSource, file: ent.bp.FileFullName}
	if ent.bp.Line == 0 {
		ent.group = group{kind: groupInstruction}
	}
	b.entries[ent.bp.Number] = ent
	return ent
}

func (b *breakpoints) get(number int) (*entry, bool) {
	ent, ok := b.entries[number]
	return ent, ok
}

func (b *breakpoints) remove(number int) {
	delete(b.entries, number)
}

// restore puts back an entry removed by a failed request.
func (b *breakpoints) restore(ent *entry) {
	b.entries[ent.bp.Number] = ent
}

// members returns the enabled entries of g in number order. This is the
// order they are sent in, and the order the adapter answers in.
func (b *breakpoints) members(g group) []*entry {
	var out []*entry
	for _, ent := range b.entries {
		if ent.group == g && ent.bp.Enabled {
			out = append(out, ent)
		}
	}
	slices.SortFunc(out, func(x, y *entry) int { return x.bp.Number - y.bp.Number })
	return out
}

// dropTemporaries removes the temporary entries and returns the groups
// they were in.
func (b *breakpoints) dropTemporaries() []group {
	var groups []group
	for n, ent := range b.entries {
		if !ent.temporary {
			continue
		}
		delete(b.entries, n)
		if !slices.Contains(groups, ent.group) {
			groups = append(groups, ent.group)
		}
	}
	return groups
}

// byAdapterID finds the entry the adapter knows as id.
func (b *breakpoints) byAdapterID(id int) (*entry, bool) {
	if id == 0 {
		return nil, false
	}
	for _, ent := range b.entries {
		if ent.adapterID == id {
			return ent, true
		}
	}
	return nil, false
}

// at finds a reported breakpoint at file:line.
func (b *breakpoints) at(file string, line int) (*entry, bool) {
	for _, ent := range b.entries {
		if !ent.temporary && ent.bp.MatchesLocation(file, line) {
			return ent, true
		}
	}
	return nil, false
}

// apply copies what the adapter reported into the entry.
func (ent *entry) apply(d dap.Breakpoint) {
	ent.adapterID = d.Id
	ent.bp.Verified = d.Verified
	ent.bp.Message = d.Message
	if d.Line > 0 {
		ent.bp.Line = d.Line
	}
	if d.Source != nil && d.Source.Path != "" {
		ent.bp.FileFullName = d.Source.Path
		if ent.bp.FileName == "" {
			ent.bp.FileName = filepath.Base(d.Source.Path)
		}
	}
	if d.InstructionReference != "" {
		if addr, err := engine.ParseAddress(d.InstructionReference); err == nil {
			ent.bp.Address = addr + engine.Address(d.Offset)
		}
	}
}

// breakpointRequest builds the DAP request that replaces g with members.
func (e *Engine) breakpointRequest(g group, members []*entry) dap.RequestMessage {
	switch g.kind {
	case groupFunction:
		fbs := make([]dap.FunctionBreakpoint, len(members))
		for i, ent := range members {
			fbs[i] = dap.FunctionBreakpoint{
				Name:         ent.bp.Function,
				Condition:    ent.bp.Condition,
				HitCondition: e.preset.hitCondition(ent.bp.IgnoreCount),
			}
		}
		return &dap.SetFunctionBreakpointsRequest{
			Request:   request("setFunctionBreakpoints"),
			Arguments: dap.SetFunctionBreakpointsArguments{Breakpoints: fbs},
		}
	case groupInstruction:
		ibs := make([]dap.InstructionBreakpoint, len(members))
		for i, ent := range members {
			ibs[i] = dap.InstructionBreakpoint{
				InstructionReference: ent.bp.Address.String(),
				Condition:            ent.bp.Condition,
				HitCondition:         e.preset.hitCondition(ent.bp.IgnoreCount),
			}
		}
		return &dap.SetInstructionBreakpointsRequest{
			Request:   request("setInstructionBreakpoints"),
			Arguments: dap.SetInstructionBreakpointsArguments{Breakpoints: ibs},
		}
	case groupData:
		dbs := make([]dap.DataBreakpoint, len(members))
		for i, ent := range members {
			dbs[i] = dap.DataBreakpoint{
				DataId:       ent.dataID,
				AccessType:   ent.access,
				Condition:    ent.bp.Condition,
				HitCondition: e.preset.hitCondition(ent.bp.IgnoreCount),
			}
		}
		return &dap.SetDataBreakpointsRequest{
			Request:   request("setDataBreakpoints"),
			Arguments: dap.SetDataBreakpointsArguments{Breakpoints: dbs},
		}
	default:
		sbs := make([]dap.SourceBreakpoint, len(members))
		for i, ent := range members {
			sbs[i] = dap.SourceBreakpoint{
				Line:         ent.bp.Line,
				Condition:    ent.bp.Condition,
				HitCondition: e.preset.hitCondition(ent.bp.IgnoreCount),
			}
		}
		return &dap.SetBreakpointsRequest{
			Request: request("setBreakpoints"),
			Arguments: dap.SetBreakpointsArguments{
				Source:      dap.Source{Name: filepath.Base(g.file), Path: g.file},
				Breakpoints: sbs,
			},
		}
	}
}

func breakpointsOf(resp dap.ResponseMessage) []dap.Breakpoint {
	switch r := resp.(type) {
	case *dap.SetBreakpointsResponse:
		return r.Body.Breakpoints
	case *dap.SetFunctionBreakpointsResponse:
		return r.Body.Breakpoints
	case *dap.SetInstructionBreakpointsResponse:
		return r.Body.Breakpoints
	case *dap.SetDataBreakpointsResponse:
		return r.Body.Breakpoints
	}
	return nil
}

// syncGroup resends every enabled breakpoint of g. When the answer arrives
// the entries are updated, changes to breakpoints other than focus are
// reported, and done runs. Before the adapter is initialized the sync is
// deferred. If the request cannot be sent, syncGroup returns the error and
// done never runs.
func (e *Engine) syncGroup(g group, focus int, done func(error)) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	if !e.initialized {
		e.deferred = append(e.deferred, func() {
			if err := e.syncGroup(g, focus, done); err != nil {
				done(err)
			}
		})
		e.mu.Unlock()
		return nil
	}
	members := e.bps.members(g)
	numbers := make([]int, len(members))
	for i, ent := range members {
		numbers[i] = ent.bp.Number
	}
	req := e.breakpointRequest(g, members)
	e.mu.Unlock()

	return e.send(req, func(resp dap.ResponseMessage) {
		if err := responseError(resp); err != nil {
			done(err)
			return
		}
		changed := e.applyGroup(numbers, breakpointsOf(resp), focus)
		if len(changed) > 0 {
			e.emit(&engine.BreakpointsSetEvent{Breakpoints: changed})
		}
		done(nil)
	})
}

// applyGroup updates the entries sent as numbers from the adapter's answer
// and returns the reported breakpoints, other than focus, that changed.
func (e *Engine) applyGroup(numbers []int, answer []dap.Breakpoint, focus int) map[int]engine.Breakpoint {
	e.mu.Lock()
	defer e.mu.Unlock()
	changed := make(map[int]engine.Breakpoint)
	for i, n := range numbers {
		ent, ok := e.bps.get(n)
		if !ok || i >= len(answer) {
			continue
		}
		before := ent.bp
		ent.apply(answer[i])
		if n != focus && !ent.temporary && ent.bp != before {
			changed[n] = ent.bp
		}
	}
	return changed
}

// snapshot returns the current view of breakpoint number.
func (e *Engine) snapshot(number int) (engine.Breakpoint, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ent, ok := e.bps.get(number)
	if !ok {
		return engine.Breakpoint{}, false
	}
	return ent.bp, true
}

// onBreakpointEvent applies a breakpoint the adapter changed on its own.
func (e *Engine) onBreakpointEvent(body dap.BreakpointEventBody) {
	e.mu.Lock()
	ent, known := e.bps.byAdapterID(body.Breakpoint.Id)
	var ev engine.Event
	switch body.Reason {
	case "removed":
		if known {
			e.bps.remove(ent.bp.Number)
			if !ent.temporary {
				ev = &engine.BreakpointDeletedEvent{Breakpoint: ent.bp, Number: ent.bp.Number}
			}
		}
	case "new":
		if !known {
			ent = e.claim(body.Breakpoint)
			ev = &engine.BreakpointsSetEvent{Breakpoints: map[int]engine.Breakpoint{ent.bp.Number: ent.bp}}
		}
	default:
		if known {
			ent.apply(body.Breakpoint)
			if !ent.temporary {
				ev = &engine.BreakpointsSetEvent{Breakpoints: map[int]engine.Breakpoint{ent.bp.Number: ent.bp}}
			}
		}
	}
	e.mu.Unlock()

	if ev != nil {
		e.emit(ev)
	}
}

// claim matches a breakpoint announced by the adapter with one still
// waiting for its answer at the same line, or adopts it as new.
func (e *Engine) claim(d dap.Breakpoint) *entry {
	if d.Source != nil && d.Source.Path != "" && d.Line > 0 {
		if ent, ok := e.bps.at(d.Source.Path, d.Line); ok && ent.adapterID == 0 {
			ent.apply(d)
			return ent
		}
	}
	return e.bps.adopt(d)
}
