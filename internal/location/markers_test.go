package location

import (
	"context"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/dbgcore/internal/engine"
	"github.com/dshills/dbgcore/internal/engine/enginetest"
	"github.com/dshills/dbgcore/internal/session"
)

func newSession(t *testing.T) (*session.Session, *enginetest.Fake) {
	t.Helper()
	fake := enginetest.New(16)
	s := session.New(fake, session.Options{Log: logr.Discard()})
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	require.NoError(t, s.LoadProgram(context.Background(), engine.Program{Path: "/bin/prog"}))
	return s, fake
}

func TestMarkersFollowTheTable(t *testing.T) {
	ctx := context.Background()
	s, _ := newSession(t)

	s.Process(ctx, &engine.BreakpointsSetEvent{Breakpoints: map[int]engine.Breakpoint{
		1: {Number: 1, Enabled: true, FileName: "b.c", FileFullName: "/a/b.c", Line: 30, Address: 0x1040},
		2: {Number: 2, Enabled: false, FileName: "b.c", FileFullName: "/a/b.c", Line: 12, Address: 0x1010, Condition: "i > 3"},
		3: {Number: 3, Enabled: true, FileName: "c.c", FileFullName: "/a/c.c", Line: 5, Address: 0x2000},
		4: {Number: 4, Type: engine.BreakpointWatchpoint, Expression: "counter", Enabled: true},
		5: {Number: 5, Enabled: true, Function: "helper", Address: 0x1020},
	}})

	markers := SourceMarkers(s, "/a/b.c")
	require.Len(t, markers, 2)
	assert.Equal(t, Marker{Number: 2, Enabled: false, Conditional: true, Line: 12, Address: 0x1010}, markers[0])
	assert.Equal(t, Marker{Number: 1, Enabled: true, Line: 30, Address: 0x1040}, markers[1])

	assert.Len(t, SourceMarkers(s, "/other/tree/b.c"), 2, "base name matches tolerate missing directories")
	assert.Empty(t, SourceMarkers(s, "/a/none.c"))

	w := Window{Start: 0x1010, End: 0x1040}
	var numbers []int
	for _, m := range AddressMarkers(s, w) {
		numbers = append(numbers, m.Number)
	}
	assert.Equal(t, []int{2, 5}, numbers, "window end is exclusive")
	assert.Empty(t, AddressMarkers(s, Window{}))

	s.Process(ctx, &engine.BreakpointDeletedEvent{Number: 2})
	assert.Len(t, SourceMarkers(s, "/a/b.c"), 1, "markers are recomputed on every call")
}

func TestFetchInstructions(t *testing.T) {
	ctx := context.Background()
	s, fake := newSession(t)

	r := NewResolver(Options{Log: logr.Discard(), Margin: 4})
	loc, err := r.Resolve(ctx, engine.Frame{Function: "memcpy", Library: "libc.so.6", Address: 0x5006}, false)
	require.NoError(t, err)
	require.Equal(t, KindAddress, loc.Kind)

	var (
		got    Location
		gotErr error
		calls  int
	)
	require.NoError(t, FetchInstructions(ctx, s, loc, func(l Location, err error) {
		calls++
		got, gotErr = l, err
	}))

	call := fake.CallsTo("Disassemble")
	require.Len(t, call, 1)
	assert.Equal(t, []any{engine.Address(0x5006), engine.Address(0x5006 + 4*BytesPerInstruction), engine.DisassemblePure, fake.LastCookie("Disassemble")}, call[0].Args)

	s.Process(ctx, &engine.DisassemblyEvent{Cookie: fake.LastCookie("Disassemble"), Disassembly: engine.Disassembly{
		Start: 0x5000, End: 0x5050,
		Instructions: []engine.Instruction{{Address: 0x5000}, {Address: 0x5004}, {Address: 0x5008}},
	}})
	require.Equal(t, 1, calls)
	require.NoError(t, gotErr)
	assert.True(t, got.Placed)
	assert.Equal(t, engine.Address(0x5004), got.Current)

	require.NoError(t, FetchInstructions(ctx, s, loc, func(l Location, err error) {
		calls++
		gotErr = err
	}))
	s.Process(ctx, &engine.ErrorEvent{Cookie: fake.LastCookie("Disassemble"), Message: "cannot access memory"})
	require.Equal(t, 2, calls)
	assert.Error(t, gotErr)

	err = FetchInstructions(ctx, s, Location{Kind: KindSource, Path: "/a/b.c", Line: 1}, func(Location, error) {})
	assert.Error(t, err)
}
