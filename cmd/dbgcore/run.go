package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/dbgcore/internal/config"
	"github.com/dshills/dbgcore/internal/engine"
	"github.com/dshills/dbgcore/internal/engine/dap"
	"github.com/dshills/dbgcore/internal/location"
	"github.com/dshills/dbgcore/internal/logger"
	"github.com/dshills/dbgcore/internal/output"
	"github.com/dshills/dbgcore/internal/session"
	"github.com/dshills/dbgcore/internal/view"
)

const shutdownTimeout = 5 * time.Second

type runFlags struct {
	configPath string
	adapter    string
	address    string
	cwd        string
	breaks     []string
	batch      bool
}

func newRunCmd(log *logger.Logger) *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run PROGRAM [-- ARGS...]",
		Short: "Runs PROGRAM under the configured debug adapter",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			levelSet := cmd.Flags().Changed("verbosity")
			return runProgram(ctx, log, levelSet, f, args[0], args[1:], cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	fs := cmd.Flags()
	fs.StringVarP(&f.configPath, "config", "c", "", "Path to the configuration file")
	fs.StringVarP(&f.adapter, "adapter", "a", "", "Adapter preset, one of "+fmt.Sprint(dap.PresetNames()))
	fs.StringVar(&f.address, "connect", "", "Connect to an adapter already listening on this address")
	fs.StringVar(&f.cwd, "cwd", "", "Working directory of the program")
	fs.StringArrayVarP(&f.breaks, "break", "b", nil, "Set a breakpoint at FILE:LINE before running (repeatable)")
	fs.BoolVar(&f.batch, "batch", false, "Do not read commands from stdin; run until the program exits")
	return cmd
}

func runProgram(ctx context.Context, log *logger.Logger, levelSet bool, f runFlags, program string, args []string, in io.Reader, out io.Writer) error {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return err
	}
	if !levelSet && cfg.Log.Level != "" {
		if err := log.SetLevelName(cfg.Log.Level); err != nil {
			return err
		}
	}
	if f.adapter != "" {
		cfg.Engine.Adapter = f.adapter
	}
	if f.address != "" {
		cfg.Engine.Address = f.address
	}

	prog, err := programOf(program, args, f.cwd)
	if err != nil {
		return err
	}
	type sourceLine struct {
		file string
		line int
	}
	var breaks []sourceLine
	for _, b := range f.breaks {
		file, line, err := parseLocation(b)
		if err != nil {
			return err
		}
		breaks = append(breaks, sourceLine{file, line})
	}

	var handlers []output.Handler
	for _, path := range cfg.Session.Scripts {
		h, err := output.LoadScript(path, cfg.Session.ScriptTimeout.Std())
		if err != nil {
			return err
		}
		defer h.Close()
		handlers = append(handlers, h)
	}

	eng, err := dap.Start(ctx, dap.Options{
		Log:            log.Logger,
		Preset:         cfg.Engine.Adapter,
		Command:        cfg.Engine.Command,
		Args:           cfg.Engine.Args,
		Address:        cfg.Engine.Address,
		ConnectTimeout: cfg.Engine.ConnectTimeout.Std(),
		StopOnEntry:    cfg.Engine.StopOnEntry,
	})
	if err != nil {
		return err
	}

	s := session.New(eng, session.Options{
		Log:                  log.Logger.WithName("session"),
		RequestTimeout:       cfg.Session.RequestTimeout.Std(),
		SuppressEngineErrors: cfg.Session.SuppressEngineErrors,
		Handlers:             handlers,
	})
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.Shutdown(sctx); err != nil {
			log.Error(err, "session shutdown")
		}
	}()

	var term *terminal
	if !f.batch {
		term = newTerminal(in, out)
		defer term.Close()
	}

	ended, err := view.Expect(s.Bus(), session.TopicSessionState, session.RunEnded)
	if err != nil {
		return err
	}
	defer ended.Cancel()

	views, watcher, err := attachViews(log, cfg, s, prog, term, out)
	if err != nil {
		return err
	}
	defer func() { _ = views.Close() }()
	if watcher != nil {
		defer func() { _ = watcher.Close() }()
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- s.Serve(ctx) }()

	for _, b := range breaks {
		if _, err := s.BreakAt(ctx, b.file, b.line, func(_ any, err error) {
			if err != nil {
				fmt.Fprintf(out, "break %s:%d: %v\n", b.file, b.line, err)
			}
		}); err != nil {
			return err
		}
	}

	if err := s.LoadProgram(ctx, prog); err != nil {
		return err
	}
	if err := s.Run(ctx); err != nil {
		return err
	}

	if term != nil {
		go shellLoop(ctx, &shell{s: s, views: views, out: out}, term, ended.Done())
	}

	select {
	case <-ctx.Done():
	case <-ended.Done():
	case err := <-serveErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
	}
	return nil
}

func programOf(path string, args []string, cwd string) (engine.Program, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return engine.Program{}, fmt.Errorf("program %s: %w", path, err)
	}
	if cwd == "" {
		cwd, err = os.Getwd()
		if err != nil {
			return engine.Program{}, err
		}
	}
	return engine.Program{
		Path:       abs,
		Args:       args,
		Cwd:        cwd,
		SearchDirs: []string{filepath.Dir(abs)},
	}, nil
}

// attachViews subscribes the terminal views to the session bus.
func attachViews(log *logger.Logger, cfg *config.Config, s *session.Session, prog engine.Program, term *terminal, out io.Writer) (*view.Sync, *location.SourceWatcher, error) {
	var prompter location.Prompter
	if term != nil {
		prompter = term
	}
	resolver := location.NewResolver(location.Options{
		Log:        log.Logger,
		Prompter:   prompter,
		SearchDirs: cfg.Location.SearchDirs,
		Margin:     cfg.Location.DisassemblyMargin,
	})
	resolver.SetProgram(prog)

	var watcher *location.SourceWatcher
	if cfg.Location.WatchSources {
		w, err := location.NewSourceWatcher(location.WatcherOptions{Log: log.Logger, Bus: s.Bus()})
		if err != nil {
			return nil, nil, err
		}
		watcher = w
	}

	tracker, err := view.NewLocationTracker(view.TrackerOptions{
		Log:          log.Logger,
		Resolver:     resolver,
		Disassembler: s,
		Watcher:      watcher,
		Interactive:  term != nil,
		OnUpdate:     func(snap view.Snapshot) { printSnapshot(out, snap) },
	})
	if err != nil {
		if watcher != nil {
			_ = watcher.Close()
		}
		return nil, nil, err
	}

	state := view.NewStateIndicator(func(st session.Status) {
		fmt.Fprintf(out, "[%s]\n", view.StatusText(st))
	})
	bps := view.NewBreakpointList(func(list []engine.Breakpoint) {
		_ = view.FormatBreakpoints(out, list)
	})

	views, err := view.Attach(s.Bus(), s, log.Logger, state, bps, view.NewConsoleLog(out), tracker)
	if err != nil {
		if watcher != nil {
			_ = watcher.Close()
		}
		return nil, nil, err
	}
	return views, watcher, nil
}

func printSnapshot(out io.Writer, snap view.Snapshot) {
	if !snap.Valid {
		return
	}
	stale := ""
	if snap.Stale {
		stale = " (changed on disk)"
	}
	fmt.Fprintf(out, "=> %s%s\n", snap.Location, stale)
	for _, m := range snap.Markers {
		fmt.Fprintf(out, "   %s\n", markerText(m))
	}
}

func markerText(m location.Marker) string {
	flag := "b"
	if !m.Enabled {
		flag = "-"
	} else if m.Conditional {
		flag = "?"
	}
	if m.Line > 0 {
		return fmt.Sprintf("%s %d line %d", flag, m.Number, m.Line)
	}
	return fmt.Sprintf("%s %d %s", flag, m.Number, m.Address)
}

func shellLoop(ctx context.Context, sh *shell, term *terminal, finished <-chan struct{}) {
	for {
		line, ok := term.next(ctx)
		if !ok {
			return
		}
		err := sh.exec(ctx, line)
		if errors.Is(err, errQuit) {
			select {
			case <-finished:
			default:
				// quitting ends the run like the program exiting would
				_ = sh.s.Shutdown(ctx)
			}
			return
		}
		if err != nil {
			fmt.Fprintln(sh.out, err)
		}
	}
}
