package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// Adapter preset names understood by the DAP engine.
const (
	AdapterGDB     = "gdb"
	AdapterDelve   = "delve"
	AdapterLLDB    = "lldb"
	AdapterGeneric = "generic"
)

// KnownAdapters lists the accepted engine.adapter values.
var KnownAdapters = []string{AdapterGDB, AdapterDelve, AdapterLLDB, AdapterGeneric}

// Config holds every dbgcore setting.
type Config struct {
	Log      LogConfig      `toml:"log"`
	Engine   EngineConfig   `toml:"engine"`
	Session  SessionConfig  `toml:"session"`
	Location LocationConfig `toml:"location"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	// Level is a level name or a positive verbosity number.
	Level string `toml:"level"`
}

// EngineConfig selects and starts the debug adapter.
type EngineConfig struct {
	// Adapter is one of KnownAdapters.
	Adapter string `toml:"adapter"`

	// Command overrides the preset's adapter executable.
	Command string `toml:"command"`

	// Args overrides the preset's adapter arguments.
	Args []string `toml:"args"`

	// Address connects to an already running adapter (host:port) instead
	// of spawning Command.
	Address string `toml:"address"`

	// ConnectTimeout bounds connection retries to Address.
	ConnectTimeout Duration `toml:"connect_timeout"`

	// StopOnEntry asks the adapter to stop at the program entry point.
	StopOnEntry bool `toml:"stop_on_entry"`
}

// SessionConfig configures the debugger session.
type SessionConfig struct {
	// RequestTimeout fails a pending request that got no answer.
	RequestTimeout Duration `toml:"request_timeout"`

	// SuppressEngineErrors hides engine error messages from the user. They
	// are still logged.
	SuppressEngineErrors bool `toml:"suppress_engine_errors"`

	// Scripts are Lua output handlers appended to the handler chain.
	Scripts []string `toml:"scripts"`

	// ScriptTimeout bounds one script callback.
	ScriptTimeout Duration `toml:"script_timeout"`
}

// LocationConfig configures source lookup.
type LocationConfig struct {
	// SearchDirs are global source search directories.
	SearchDirs []string `toml:"search_dirs"`

	// DisassemblyMargin is the number of instructions disassembled around
	// an address without source.
	DisassemblyMargin int `toml:"disassembly_margin"`

	// WatchSources reports changes to resolved source files.
	WatchSources bool `toml:"watch_sources"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info"},
		Engine: EngineConfig{
			Adapter:        AdapterGDB,
			ConnectTimeout: Duration(5 * time.Second),
		},
		Session: SessionConfig{
			RequestTimeout: Duration(30 * time.Second),
			ScriptTimeout:  Duration(100 * time.Millisecond),
		},
		Location: LocationConfig{
			DisassemblyMargin: 20,
			WatchSources:      true,
		},
	}
}

// DefaultPath returns the user configuration file path.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "dbgcore", "config.toml")
}

// Validate checks every setting.
func (c *Config) Validate() error {
	if !slices.Contains(KnownAdapters, c.Engine.Adapter) {
		return &ValidationError{
			Path:    "engine.adapter",
			Message: fmt.Sprintf("must be one of %s", strings.Join(KnownAdapters, ", ")),
			Value:   c.Engine.Adapter,
		}
	}
	if c.Engine.Adapter == AdapterGeneric && c.Engine.Command == "" && c.Engine.Address == "" {
		return &ValidationError{
			Path:    "engine.command",
			Message: "generic adapter needs a command or an address",
			Value:   c.Engine.Command,
		}
	}
	if c.Engine.ConnectTimeout < 0 {
		return &ValidationError{Path: "engine.connect_timeout", Message: "must not be negative", Value: c.Engine.ConnectTimeout}
	}
	if c.Session.RequestTimeout <= 0 {
		return &ValidationError{Path: "session.request_timeout", Message: "must be positive", Value: c.Session.RequestTimeout}
	}
	if c.Session.ScriptTimeout <= 0 {
		return &ValidationError{Path: "session.script_timeout", Message: "must be positive", Value: c.Session.ScriptTimeout}
	}
	if c.Location.DisassemblyMargin <= 0 {
		return &ValidationError{Path: "location.disassembly_margin", Message: "must be positive", Value: c.Location.DisassemblyMargin}
	}
	for _, dir := range c.Location.SearchDirs {
		if dir == "" {
			return &ValidationError{Path: "location.search_dirs", Message: "contains an empty directory", Value: c.Location.SearchDirs}
		}
	}
	return nil
}

// Duration is a time.Duration written as a string ("5s") in TOML.
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// String formats the duration.
func (d Duration) String() string {
	return time.Duration(d).String()
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}
