package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "DBGCORE_"

// FileSystem is an abstraction for file system operations.
// This allows for easy testing with in-memory file systems.
type FileSystem interface {
	// ReadFile reads the entire file at path.
	ReadFile(path string) ([]byte, error)
}

// OSFS implements FileSystem using the real OS file system.
type OSFS struct{}

// ReadFile implements FileSystem.
func (OSFS) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// Loader reads configuration from a file system and the environment.
type Loader struct {
	fs     FileSystem
	lookup func(string) (string, bool)
}

// NewLoader creates a loader over the real file system and environment.
func NewLoader() *Loader {
	return &Loader{fs: OSFS{}, lookup: os.LookupEnv}
}

// NewLoaderWith creates a loader with a custom file system and environment
// lookup.
func NewLoaderWith(fsys FileSystem, lookup func(string) (string, bool)) *Loader {
	if lookup == nil {
		lookup = func(string) (string, bool) { return "", false }
	}
	return &Loader{fs: fsys, lookup: lookup}
}

// Load reads the configuration. An empty path means DefaultPath, whose
// absence is not an error.
func Load(path string) (*Config, error) {
	return NewLoader().Load(path)
}

// Load reads defaults, then path, then environment overrides, and validates
// the result.
func (l *Loader) Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if path != "" {
		if err := l.loadFile(cfg, path, explicit); err != nil {
			return nil, err
		}
	}
	if err := l.applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (l *Loader) loadFile(cfg *Config, path string, explicit bool) error {
	data, err := l.fs.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			if explicit {
				return fmt.Errorf("%w: %s", ErrFileNotFound, path)
			}
			return nil
		}
		return fmt.Errorf("reading config file %s: %w", path, err)
	}

	dec := toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		perr := &ParseError{Path: path, Message: err.Error(), Err: err}
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			perr.Line, perr.Column = derr.Position()
		}
		return perr
	}
	cfg.Location.SearchDirs = expandHome(cfg.Location.SearchDirs)
	cfg.Session.Scripts = expandHome(cfg.Session.Scripts)
	return nil
}

// envSetters maps DBGCORE_* names (without prefix) to the setting they override.
var envSetters = map[string]func(c *Config, v string) error{
	"LOG_LEVEL": func(c *Config, v string) error {
		c.Log.Level = v
		return nil
	},
	"ADAPTER": func(c *Config, v string) error {
		c.Engine.Adapter = v
		return nil
	},
	"ENGINE_COMMAND": func(c *Config, v string) error {
		c.Engine.Command = v
		return nil
	},
	"ENGINE_ADDRESS": func(c *Config, v string) error {
		c.Engine.Address = v
		return nil
	},
	"CONNECT_TIMEOUT": func(c *Config, v string) error {
		return c.Engine.ConnectTimeout.UnmarshalText([]byte(v))
	},
	"REQUEST_TIMEOUT": func(c *Config, v string) error {
		return c.Session.RequestTimeout.UnmarshalText([]byte(v))
	},
	"SUPPRESS_ENGINE_ERRORS": func(c *Config, v string) (err error) {
		c.Session.SuppressEngineErrors, err = strconv.ParseBool(v)
		return err
	},
	"SEARCH_DIRS": func(c *Config, v string) error {
		c.Location.SearchDirs = expandHome(filepath.SplitList(v))
		return nil
	},
	"DISASSEMBLY_MARGIN": func(c *Config, v string) (err error) {
		c.Location.DisassemblyMargin, err = strconv.Atoi(v)
		return err
	},
	"WATCH_SOURCES": func(c *Config, v string) (err error) {
		c.Location.WatchSources, err = strconv.ParseBool(v)
		return err
	},
}

func (l *Loader) applyEnv(cfg *Config) error {
	for name, set := range envSetters {
		v, ok := l.lookup(EnvPrefix + name)
		if !ok {
			continue
		}
		if err := set(cfg, strings.TrimSpace(v)); err != nil {
			return &ParseError{Path: EnvPrefix + name, Message: err.Error(), Err: err}
		}
	}
	return nil
}

func expandHome(paths []string) []string {
	home, err := os.UserHomeDir()
	if err != nil {
		return paths
	}
	out := make([]string, len(paths))
	for i, p := range paths {
		if p == "~" || strings.HasPrefix(p, "~/") {
			p = filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
		out[i] = p
	}
	return out
}
