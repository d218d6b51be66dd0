package location

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/go-logr/logr"

	"github.com/dshills/dbgcore/internal/engine"
)

// FileSystem answers whether a candidate source path exists.
type FileSystem interface {
	Stat(path string) (fs.FileInfo, error)
}

// OSFS implements FileSystem using the real OS file system.
type OSFS struct{}

// Stat implements FileSystem.
func (OSFS) Stat(path string) (fs.FileInfo, error) {
	return os.Stat(path)
}

// Options configures a Resolver.
type Options struct {
	Log logr.Logger

	// FS defaults to OSFS.
	FS FileSystem

	// Prompter is asked for files that cannot be found when resolution is
	// interactive. Nil disables prompting.
	Prompter Prompter

	// SearchDirs are global source directories, searched after the
	// program's own directories.
	SearchDirs []string

	// Margin is the disassembly window size in instructions.
	Margin int
}

// Resolver maps frames to source files or address views. It remembers
// resolved and ignored paths until Reset or SetProgram.
type Resolver struct {
	log      logr.Logger
	fs       FileSystem
	prompter Prompter
	global   []string
	margin   int

	mu       sync.Mutex
	cwd      string
	dirs     []string
	resolved map[string]string
	ignored  map[string]struct{}
}

// NewResolver creates a resolver.
func NewResolver(opts Options) *Resolver {
	if opts.FS == nil {
		opts.FS = OSFS{}
	}
	if opts.Margin <= 0 {
		opts.Margin = DefaultMargin
	}
	return &Resolver{
		log:      opts.Log.WithName("location"),
		fs:       opts.FS,
		prompter: opts.Prompter,
		global:   slices.Clone(opts.SearchDirs),
		margin:   opts.Margin,
		resolved: make(map[string]string),
		ignored:  make(map[string]struct{}),
	}
}

// SetProgram starts a new session for p, taking its working directory and
// search directories and forgetting earlier answers.
func (r *Resolver) SetProgram(p engine.Program) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cwd = p.Cwd
	r.dirs = slices.Clone(p.SearchDirs)
	clear(r.resolved)
	clear(r.ignored)
}

// Reset forgets every remembered and ignored path.
func (r *Resolver) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.resolved)
	clear(r.ignored)
}

// Remember records that name lives at path.
func (r *Resolver) Remember(name, path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.ignored, name)
	r.resolved[name] = path
}

// Ignore records that name should not be looked up again.
func (r *Resolver) Ignore(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.resolved, name)
	r.ignored[name] = struct{}{}
}

// Margin returns the disassembly margin in instructions.
func (r *Resolver) Margin() int {
	return r.margin
}

// ResolvePath finds a readable file for a frame's file name and full name.
// The search order is remembered answers, the full name, the working
// directory, the session search directories, then the global ones. With
// interactive set, a failed search asks the Prompter and remembers its
// answer. Failures wrap ErrNotFound or ErrIgnored.
func (r *Resolver) ResolvePath(ctx context.Context, fileName, fullName string, interactive bool) (string, error) {
	key := fullName
	if key == "" {
		key = fileName
	}
	if key == "" {
		return "", fmt.Errorf("resolve path: empty file name: %w", ErrNotFound)
	}

	r.mu.Lock()
	if path, ok := r.resolved[key]; ok {
		r.mu.Unlock()
		return path, nil
	}
	if _, ok := r.ignored[key]; ok {
		r.mu.Unlock()
		return "", fmt.Errorf("resolve %s: %w", key, ErrIgnored)
	}
	cwd, dirs := r.cwd, slices.Clone(r.dirs)
	r.mu.Unlock()

	if path, ok := r.search(fileName, fullName, cwd, dirs); ok {
		r.Remember(key, path)
		r.log.V(1).Info("source resolved", "name", key, "path", path)
		return path, nil
	}

	if !interactive || r.prompter == nil {
		return "", fmt.Errorf("resolve %s: %w", key, ErrNotFound)
	}

	answer, err := r.prompter.Locate(ctx, key)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", key, err)
	}
	if answer.Ignore {
		r.Ignore(key)
		return "", fmt.Errorf("resolve %s: %w", key, ErrIgnored)
	}
	if answer.Path != "" {
		path := expandHome(answer.Path)
		if r.isFile(path) {
			r.Remember(key, path)
			return path, nil
		}
		r.log.Info("prompted source path does not exist", "name", key, "path", path)
	}
	return "", fmt.Errorf("resolve %s: %w", key, ErrNotFound)
}

func (r *Resolver) search(fileName, fullName, cwd string, dirs []string) (string, bool) {
	for _, p := range []string{fullName, fileName} {
		if filepath.IsAbs(p) && r.isFile(p) {
			return p, true
		}
	}

	var names []string
	add := func(n string) {
		if n != "" && n != "." && !filepath.IsAbs(n) && !slices.Contains(names, n) {
			names = append(names, n)
		}
	}
	add(fileName)
	add(filepath.Base(fileName))
	add(filepath.Base(fullName))

	var roots []string
	if cwd != "" {
		roots = append(roots, cwd)
	}
	roots = append(roots, dirs...)
	roots = append(roots, r.global...)

	for _, root := range roots {
		root = expandHome(root)
		for _, n := range names {
			candidate := filepath.Join(root, n)
			if r.isFile(candidate) {
				return candidate, true
			}
		}
	}
	return "", false
}

func (r *Resolver) isFile(path string) bool {
	info, err := r.fs.Stat(path)
	return err == nil && !info.IsDir()
}

// Resolve decides where frame is shown. A frame whose source file resolves
// is a KindSource location. Otherwise it falls back to a KindAddress
// location with the disassembly window to request, and Reason holds why the
// source was not used. Only a frame with neither usable source nor an
// address, or a cancelled context, is an error.
func (r *Resolver) Resolve(ctx context.Context, frame engine.Frame, interactive bool) (Location, error) {
	var reason error
	if frame.Line > 0 && (frame.FileFullName != "" || frame.FileName != "") {
		path, err := r.ResolvePath(ctx, frame.FileName, frame.FileFullName, interactive)
		switch {
		case err == nil:
			return Location{Kind: KindSource, Frame: frame, Path: path, Line: frame.Line}, nil
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return Location{}, err
		case !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrIgnored):
			r.log.Error(err, "source lookup failed")
		}
		reason = err
	} else {
		reason = fmt.Errorf("resolve %s: no line information: %w", frame, ErrNotFound)
	}

	if frame.Address == 0 {
		return Location{}, fmt.Errorf("resolve %s: %w", frame, ErrNoAddress)
	}
	return Location{
		Kind:    KindAddress,
		Frame:   frame,
		Address: frame.Address,
		Window:  DisassemblyWindow(frame.Address, r.margin),
		Reason:  reason,
	}, nil
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
