package dap

import (
	"fmt"
	"maps"
	"net"
	"os/exec"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/dshills/dbgcore/internal/engine"
)

// DefaultConnectTimeout bounds connection retries to a socket adapter.
const DefaultConnectTimeout = 5 * time.Second

// ConnectionType is how the engine talks to an adapter.
type ConnectionType string

const (
	// ConnectStdio speaks the protocol over the adapter's stdin and stdout.
	ConnectStdio ConnectionType = "stdio"
	// ConnectSocket spawns the adapter listening on a port and dials it.
	ConnectSocket ConnectionType = "socket"
)

// Preset describes how to start one kind of debug adapter and how to phrase
// its launch request.
type Preset struct {
	// Name is the preset name used in configuration.
	Name string

	// AdapterID is sent in the initialize request.
	AdapterID string

	// Command and Args start the adapter. For socket presets, the literal
	// argument "{addr}" is replaced by the listen address.
	Command string
	Args    []string

	Connection ConnectionType

	// LaunchArgs builds the adapter specific launch arguments.
	LaunchArgs func(prog engine.Program, stopOnEntry bool) map[string]any

	// IgnoreCondition phrases an ignore count as a DAP hit condition.
	// Nil uses "> N".
	IgnoreCondition func(ignore int) string
}

// AddrPlaceholder marks where a socket preset takes its listen address.
const AddrPlaceholder = "{addr}"

var presets = map[string]Preset{
	"gdb": {
		Name:       "gdb",
		AdapterID:  "gdb",
		Command:    "gdb",
		Args:       []string{"--interpreter=dap", "--quiet"},
		Connection: ConnectStdio,
		LaunchArgs: func(prog engine.Program, stopOnEntry bool) map[string]any {
			args := commonLaunchArgs(prog)
			if stopOnEntry {
				args["stopAtBeginningOfMainSubprogram"] = true
			}
			return args
		},
		IgnoreCondition: strconv.Itoa,
	},
	"lldb": {
		Name:       "lldb",
		AdapterID:  "lldb-dap",
		Command:    "lldb-dap",
		Connection: ConnectStdio,
		LaunchArgs: func(prog engine.Program, stopOnEntry bool) map[string]any {
			args := commonLaunchArgs(prog)
			// lldb-dap takes the environment as KEY=VALUE strings.
			if len(prog.Env) > 0 {
				env := make([]string, 0, len(prog.Env))
				for _, k := range slices.Sorted(maps.Keys(prog.Env)) {
					env = append(env, k+"="+prog.Env[k])
				}
				args["env"] = env
			}
			args["stopOnEntry"] = stopOnEntry
			return args
		},
		IgnoreCondition: strconv.Itoa,
	},
	"delve": {
		Name:       "delve",
		AdapterID:  "go",
		Command:    "dlv",
		Args:       []string{"dap", "--listen", AddrPlaceholder},
		Connection: ConnectSocket,
		LaunchArgs: func(prog engine.Program, stopOnEntry bool) map[string]any {
			args := commonLaunchArgs(prog)
			args["mode"] = "exec"
			args["stopOnEntry"] = stopOnEntry
			return args
		},
	},
	"generic": {
		Name:       "generic",
		AdapterID:  "generic",
		Connection: ConnectStdio,
		LaunchArgs: func(prog engine.Program, stopOnEntry bool) map[string]any {
			args := commonLaunchArgs(prog)
			args["stopOnEntry"] = stopOnEntry
			return args
		},
	},
}

// LookupPreset returns the preset called name.
func LookupPreset(name string) (Preset, error) {
	p, ok := presets[name]
	if !ok {
		return Preset{}, fmt.Errorf("%w: %q (known: %s)", ErrUnknownPreset, name, strings.Join(PresetNames(), ", "))
	}
	return p, nil
}

// PresetNames returns the known preset names, sorted.
func PresetNames() []string {
	return slices.Sorted(maps.Keys(presets))
}

// hitCondition returns the hit condition for an ignore count, or "" when
// there is nothing to ignore.
func (p Preset) hitCondition(ignore int) string {
	if ignore <= 0 {
		return ""
	}
	if p.IgnoreCondition != nil {
		return p.IgnoreCondition(ignore)
	}
	return "> " + strconv.Itoa(ignore)
}

func commonLaunchArgs(prog engine.Program) map[string]any {
	args := map[string]any{"program": prog.Path}
	if len(prog.Args) > 0 {
		args["args"] = prog.Args
	}
	if prog.Cwd != "" {
		args["cwd"] = prog.Cwd
	}
	if len(prog.Env) > 0 {
		args["env"] = prog.Env
	}
	return args
}

// command builds the adapter command line, substituting addr for the
// listen placeholder.
func (p Preset) command(command string, args []string, addr string) (*exec.Cmd, error) {
	if command == "" {
		command = p.Command
	}
	if args == nil {
		args = p.Args
	}
	if command == "" {
		return nil, fmt.Errorf("%w: preset %q has no command", ErrNoAdapter, p.Name)
	}
	path, err := exec.LookPath(command)
	if err != nil {
		return nil, fmt.Errorf("%w: %s not found in PATH: %v", ErrNoAdapter, command, err)
	}
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = strings.ReplaceAll(a, AddrPlaceholder, addr)
	}
	return exec.Command(path, out...), nil
}

// freeAddress returns a loopback address with a port nobody listens on.
func freeAddress() (string, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", fmt.Errorf("pick adapter port: %w", err)
	}
	addr := l.Addr().String()
	if err := l.Close(); err != nil {
		return "", fmt.Errorf("pick adapter port: %w", err)
	}
	return addr, nil
}
