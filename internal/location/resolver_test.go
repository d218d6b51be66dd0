package location

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/dbgcore/internal/engine"
)

func touch(t *testing.T, path string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("int main(void) { return 0; }\n"), 0o644))
	return path
}

// countingPrompter records the names it was asked about.
type countingPrompter struct {
	asked  []string
	answer Answer
	err    error
}

func (p *countingPrompter) Locate(_ context.Context, name string) (Answer, error) {
	p.asked = append(p.asked, name)
	return p.answer, p.err
}

func TestResolvePathSearchOrder(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	cwd := filepath.Join(root, "cwd")
	sessionDir := filepath.Join(root, "session")
	globalDir := filepath.Join(root, "global")

	touch(t, filepath.Join(sessionDir, "util.c"))
	touch(t, filepath.Join(globalDir, "util.c"))
	touch(t, filepath.Join(globalDir, "lib.c"))
	inCwd := touch(t, filepath.Join(cwd, "src", "main.c"))
	full := touch(t, filepath.Join(root, "abs", "abs.c"))

	r := NewResolver(Options{Log: logr.Discard(), SearchDirs: []string{globalDir}})
	r.SetProgram(engine.Program{Path: "/bin/prog", Cwd: cwd, SearchDirs: []string{sessionDir}})

	tests := []struct {
		name     string
		fileName string
		fullName string
		want     string
	}{
		{"full name as given", "abs.c", full, full},
		{"relative to working directory", "src/main.c", "", inCwd},
		{"session directory before global", "util.c", "/build/tree/util.c", filepath.Join(sessionDir, "util.c")},
		{"global directory", "lib.c", "", filepath.Join(globalDir, "lib.c")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.ResolvePath(ctx, tt.fileName, tt.fullName, false)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := r.ResolvePath(ctx, "missing.c", "/nowhere/missing.c", false)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = r.ResolvePath(ctx, "", "", false)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolvePathRemembersAnswers(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	elsewhere := touch(t, filepath.Join(root, "elsewhere", "gone.c"))

	prompter := &countingPrompter{answer: Answer{Path: elsewhere}}
	r := NewResolver(Options{Log: logr.Discard(), Prompter: prompter})
	r.SetProgram(engine.Program{Cwd: root})

	_, err := r.ResolvePath(ctx, "gone.c", "/old/tree/gone.c", false)
	require.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, prompter.asked, "non-interactive lookups never prompt")

	got, err := r.ResolvePath(ctx, "gone.c", "/old/tree/gone.c", true)
	require.NoError(t, err)
	assert.Equal(t, elsewhere, got)

	got, err = r.ResolvePath(ctx, "gone.c", "/old/tree/gone.c", true)
	require.NoError(t, err)
	assert.Equal(t, elsewhere, got)
	assert.Equal(t, []string{"/old/tree/gone.c"}, prompter.asked, "answer is remembered")

	r.Reset()
	prompter.answer = Answer{Ignore: true}
	_, err = r.ResolvePath(ctx, "gone.c", "/old/tree/gone.c", true)
	require.ErrorIs(t, err, ErrIgnored)
	_, err = r.ResolvePath(ctx, "gone.c", "/old/tree/gone.c", true)
	require.ErrorIs(t, err, ErrIgnored)
	assert.Len(t, prompter.asked, 2, "ignored paths are not asked about again")

	r.SetProgram(engine.Program{Cwd: root})
	prompter.answer = Answer{}
	_, err = r.ResolvePath(ctx, "gone.c", "/old/tree/gone.c", true)
	require.ErrorIs(t, err, ErrNotFound, "a new program forgets ignores")
	_, err = r.ResolvePath(ctx, "gone.c", "/old/tree/gone.c", true)
	require.ErrorIs(t, err, ErrNotFound)
	assert.Len(t, prompter.asked, 4, "an empty answer is asked again")
}

func TestResolvePathPromptedPathMustExist(t *testing.T) {
	prompter := &countingPrompter{answer: Answer{Path: "/definitely/not/here.c"}}
	r := NewResolver(Options{Log: logr.Discard(), Prompter: prompter})

	_, err := r.ResolvePath(context.Background(), "here.c", "", true)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolveFallsBackToAddress(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	src := touch(t, filepath.Join(root, "a", "b.c"))

	r := NewResolver(Options{Log: logr.Discard(), Margin: 10})

	loc, err := r.Resolve(ctx, engine.Frame{Function: "main", FileName: "b.c", FileFullName: src, Line: 42, Address: 0x1000}, false)
	require.NoError(t, err)
	assert.Equal(t, KindSource, loc.Kind)
	assert.Equal(t, src, loc.Path)
	assert.Equal(t, 42, loc.Line)

	loc, err = r.Resolve(ctx, engine.Frame{Function: "main", FileName: "x.c", FileFullName: "/gone/x.c", Line: 7, Address: 0x2000}, false)
	require.NoError(t, err)
	assert.Equal(t, KindAddress, loc.Kind)
	assert.Equal(t, engine.Address(0x2000), loc.Address)
	assert.Equal(t, Window{Start: 0x2000, End: 0x2000 + 10*BytesPerInstruction}, loc.Window)
	assert.ErrorIs(t, loc.Reason, ErrNotFound)

	loc, err = r.Resolve(ctx, engine.Frame{Function: "memcpy", Library: "libc.so.6", Address: 0x7f00}, true)
	require.NoError(t, err)
	assert.Equal(t, KindAddress, loc.Kind)
	assert.False(t, loc.Placed)

	_, err = r.Resolve(ctx, engine.Frame{Function: "mystery"}, false)
	assert.ErrorIs(t, err, ErrNoAddress)
}

func TestResolvePromptFailures(t *testing.T) {
	r := NewResolver(Options{Log: logr.Discard(), Prompter: &countingPrompter{err: context.Canceled}})
	_, err := r.Resolve(context.Background(), engine.Frame{FileFullName: "/gone/x.c", Line: 1, Address: 0x10}, true)
	assert.ErrorIs(t, err, context.Canceled)

	broken := errors.New("terminal gone")
	r = NewResolver(Options{Log: logr.Discard(), Prompter: &countingPrompter{err: broken}})
	loc, err := r.Resolve(context.Background(), engine.Frame{FileFullName: "/gone/x.c", Line: 1, Address: 0x10}, true)
	require.NoError(t, err)
	assert.Equal(t, KindAddress, loc.Kind)
	assert.ErrorIs(t, loc.Reason, broken)
}

func TestLinePrompter(t *testing.T) {
	var out strings.Builder
	p := NewLinePrompter(strings.NewReader("/src/main.c\n-\n\n/last.c"), &out)
	ctx := context.Background()

	a, err := p.Locate(ctx, "main.c")
	require.NoError(t, err)
	assert.Equal(t, Answer{Path: "/src/main.c"}, a)
	assert.Contains(t, out.String(), `cannot find source file "main.c"`)

	a, err = p.Locate(ctx, "util.c")
	require.NoError(t, err)
	assert.Equal(t, Answer{Ignore: true}, a)

	a, err = p.Locate(ctx, "empty.c")
	require.NoError(t, err)
	assert.Equal(t, Answer{}, a)

	a, err = p.Locate(ctx, "eof.c")
	require.NoError(t, err)
	assert.Equal(t, Answer{Path: "/last.c"}, a, "a final line without newline still counts")

	a, err = p.Locate(ctx, "nothing-left.c")
	require.NoError(t, err)
	assert.Equal(t, Answer{}, a)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = p.Locate(cancelled, "x.c")
	assert.ErrorIs(t, err, context.Canceled)
}
