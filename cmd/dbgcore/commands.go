package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/dshills/dbgcore/internal/engine"
	"github.com/dshills/dbgcore/internal/session"
	"github.com/dshills/dbgcore/internal/view"
)

var errQuit = errors.New("quit")

type command struct {
	usage string
	help  string
	run   func(ctx context.Context, sh *shell, args []string) error
}

// shell executes one line of user input against a session.
type shell struct {
	s     *session.Session
	views *view.Sync
	out   io.Writer
}

var commands = map[string]command{
	"continue": {"continue", "resume the program", func(ctx context.Context, sh *shell, _ []string) error {
		return sh.s.Continue(ctx)
	}},
	"next": {"next", "step over the current line", func(ctx context.Context, sh *shell, _ []string) error {
		return sh.s.StepOver(ctx)
	}},
	"step": {"step", "step into the current line", func(ctx context.Context, sh *shell, _ []string) error {
		return sh.s.StepIn(ctx)
	}},
	"finish": {"finish", "run until the current function returns", func(ctx context.Context, sh *shell, _ []string) error {
		return sh.s.StepOut(ctx)
	}},
	"pause": {"pause", "interrupt the running program", func(ctx context.Context, sh *shell, _ []string) error {
		return sh.s.StopTarget(ctx)
	}},
	"until": {"until FILE:LINE", "run to a location", func(ctx context.Context, sh *shell, args []string) error {
		file, line, err := oneLocation(args)
		if err != nil {
			return err
		}
		return sh.s.ContinueTo(ctx, file, line)
	}},
	"break": {"break FILE:LINE", "set a breakpoint", func(ctx context.Context, sh *shell, args []string) error {
		file, line, err := oneLocation(args)
		if err != nil {
			return err
		}
		_, err = sh.s.BreakAt(ctx, file, line, sh.report("break"))
		return err
	}},
	"toggle": {"toggle FILE:LINE", "set or remove the breakpoint at a line", func(ctx context.Context, sh *shell, args []string) error {
		file, line, err := oneLocation(args)
		if err != nil {
			return err
		}
		_, err = sh.s.ToggleBreakpoint(ctx, file, line, sh.report("toggle"))
		return err
	}},
	"delete": {"delete N", "delete a breakpoint", func(ctx context.Context, sh *shell, args []string) error {
		n, err := oneNumber(args)
		if err != nil {
			return err
		}
		_, err = sh.s.DeleteBreakpoint(ctx, n, sh.report("delete"))
		return err
	}},
	"enable": {"enable N", "enable a breakpoint", func(ctx context.Context, sh *shell, args []string) error {
		n, err := oneNumber(args)
		if err != nil {
			return err
		}
		return sh.s.EnableBreakpoint(ctx, n)
	}},
	"disable": {"disable N", "disable a breakpoint", func(ctx context.Context, sh *shell, args []string) error {
		n, err := oneNumber(args)
		if err != nil {
			return err
		}
		return sh.s.DisableBreakpoint(ctx, n)
	}},
	"watch":  {"watch EXPR", "stop when EXPR is written", watch(true, false)},
	"rwatch": {"rwatch EXPR", "stop when EXPR is read", watch(false, true)},
	"awatch": {"awatch EXPR", "stop when EXPR is read or written", watch(true, true)},
	"info": {"info", "list breakpoints", func(_ context.Context, sh *shell, _ []string) error {
		return view.FormatBreakpoints(sh.out, sh.s.Breakpoints())
	}},
	"print": {"print EXPR", "print the value of EXPR", func(ctx context.Context, sh *shell, args []string) error {
		if len(args) == 0 {
			return errors.New("print needs an expression")
		}
		_, err := sh.s.PrintVariableValue(ctx, strings.Join(args, " "), sh.report("print"))
		return err
	}},
	"ptype": {"ptype EXPR", "print the type of EXPR", func(ctx context.Context, sh *shell, args []string) error {
		if len(args) == 0 {
			return errors.New("ptype needs an expression")
		}
		_, err := sh.s.PrintVariableType(ctx, strings.Join(args, " "), sh.report("ptype"))
		return err
	}},
	"call": {"call EXPR", "call a function in the program", func(ctx context.Context, sh *shell, args []string) error {
		if len(args) == 0 {
			return errors.New("call needs an expression")
		}
		_, err := sh.s.CallFunction(ctx, strings.Join(args, " "), sh.report("call"))
		return err
	}},
	"frame": {"frame N", "select a stack frame", func(ctx context.Context, sh *shell, args []string) error {
		n, err := oneNumber(args)
		if err != nil {
			return err
		}
		_, err = sh.s.SelectFrame(ctx, n, sh.report("frame"))
		return err
	}},
	"detach": {"detach", "detach from the program", func(ctx context.Context, sh *shell, _ []string) error {
		_, err := sh.s.Detach(ctx, sh.report("detach"))
		return err
	}},
	"output": {"output on|off", "show or hide debugger and program output", func(_ context.Context, sh *shell, args []string) error {
		if len(args) != 1 || (args[0] != "on" && args[0] != "off") {
			return errors.New("want on or off")
		}
		if sh.views == nil {
			return errors.New("no views attached")
		}
		return sh.views.SetPaused("console", args[0] == "off")
	}},
	"quit": {"quit", "terminate the program and exit", func(context.Context, *shell, []string) error {
		return errQuit
	}},
}

var aliases = map[string]string{
	"c": "continue",
	"n": "next",
	"s": "step",
	"b": "break",
	"d": "delete",
	"p": "print",
	"f": "frame",
	"q": "quit",
}

func watch(write, read bool) func(context.Context, *shell, []string) error {
	return func(ctx context.Context, sh *shell, args []string) error {
		if len(args) == 0 {
			return errors.New("watch needs an expression")
		}
		_, err := sh.s.SetWatchpoint(ctx, strings.Join(args, " "), write, read, sh.report("watch"))
		return err
	}
}

// exec runs one input line. It returns errQuit for quit.
func (sh *shell) exec(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	name := fields[0]
	if full, ok := aliases[name]; ok {
		name = full
	}
	if name == "help" {
		sh.help()
		return nil
	}
	cmd, ok := commands[name]
	if !ok {
		return fmt.Errorf("unknown command %q (try help)", fields[0])
	}
	return cmd.run(ctx, sh, fields[1:])
}

func (sh *shell) help() {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(sh.out, "  %-18s %s\n", commands[name].usage, commands[name].help)
	}
}

// report prints the answer to a pending request.
func (sh *shell) report(op string) session.Continuation {
	return func(result any, err error) {
		if err != nil {
			fmt.Fprintf(sh.out, "%s: %v\n", op, err)
			return
		}
		switch r := result.(type) {
		case engine.Variable:
			fmt.Fprintf(sh.out, "%s = %s\n", r.Name, r.Value)
		case string:
			fmt.Fprintf(sh.out, "type = %s\n", r)
		case []engine.Breakpoint:
			_ = view.FormatBreakpoints(sh.out, r)
		case int:
			fmt.Fprintf(sh.out, "deleted breakpoint %d\n", r)
		case engine.Frame:
			fmt.Fprintf(sh.out, "#%d %s\n", r.Level, frameText(r))
		case nil:
		default:
			fmt.Fprintf(sh.out, "%s: %v\n", op, r)
		}
	}
}

func frameText(f engine.Frame) string {
	if f.HasSourceLine() {
		return fmt.Sprintf("%s at %s:%d", f.Function, f.FileName, f.Line)
	}
	return fmt.Sprintf("%s at %s", f.Function, f.Address)
}

// parseLocation splits "file:line".
func parseLocation(s string) (string, int, error) {
	i := strings.LastIndexByte(s, ':')
	if i <= 0 || i == len(s)-1 {
		return "", 0, fmt.Errorf("location %q: want FILE:LINE", s)
	}
	line, err := strconv.Atoi(s[i+1:])
	if err != nil || line <= 0 {
		return "", 0, fmt.Errorf("location %q: bad line number", s)
	}
	return s[:i], line, nil
}

func oneLocation(args []string) (string, int, error) {
	if len(args) != 1 {
		return "", 0, errors.New("want one FILE:LINE argument")
	}
	return parseLocation(args[0])
}

func oneNumber(args []string) (int, error) {
	if len(args) != 1 {
		return 0, errors.New("want one number")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", args[0])
	}
	return n, nil
}
