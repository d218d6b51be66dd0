package config

import (
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(vars map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := vars[k]
		return v, ok
	}
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 20, cfg.Location.DisassemblyMargin)
	assert.Equal(t, 30*time.Second, cfg.Session.RequestTimeout.Std())
	assert.Equal(t, AdapterGDB, cfg.Engine.Adapter)
}

func TestLoadFileThenEnv(t *testing.T) {
	fsys := fstest.MapFS{
		"dbg.toml": {Data: []byte(`
[log]
level = "debug"

[engine]
adapter = "delve"
connect_timeout = "2s"

[session]
request_timeout = "10s"
suppress_engine_errors = true

[location]
search_dirs = ["/src/a", "/src/b"]
disassembly_margin = 8
`)},
	}
	l := NewLoaderWith(fsys, env(map[string]string{
		"DBGCORE_LOG_LEVEL":          "error",
		"DBGCORE_DISASSEMBLY_MARGIN": "12",
	}))

	cfg, err := l.Load("dbg.toml")
	require.NoError(t, err)

	assert.Equal(t, "error", cfg.Log.Level)
	assert.Equal(t, AdapterDelve, cfg.Engine.Adapter)
	assert.Equal(t, 2*time.Second, cfg.Engine.ConnectTimeout.Std())
	assert.Equal(t, 10*time.Second, cfg.Session.RequestTimeout.Std())
	assert.True(t, cfg.Session.SuppressEngineErrors)
	assert.Equal(t, []string{"/src/a", "/src/b"}, cfg.Location.SearchDirs)
	assert.Equal(t, 12, cfg.Location.DisassemblyMargin)
	assert.True(t, cfg.Location.WatchSources, "unset keys keep defaults")
}

func TestLoadErrors(t *testing.T) {
	fsys := fstest.MapFS{
		"bad.toml":     {Data: []byte("[engine\nadapter = 1")},
		"unknown.toml": {Data: []byte("[engine]\nflavour = \"x\"\n")},
		"invalid.toml": {Data: []byte("[engine]\nadapter = \"windbg\"\n")},
	}

	t.Run("explicit missing file", func(t *testing.T) {
		_, err := NewLoaderWith(fsys, nil).Load("nope.toml")
		assert.ErrorIs(t, err, ErrFileNotFound)
	})
	t.Run("syntax error", func(t *testing.T) {
		_, err := NewLoaderWith(fsys, nil).Load("bad.toml")
		var perr *ParseError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, "bad.toml", perr.Path)
		assert.Positive(t, perr.Line)
	})
	t.Run("unknown key", func(t *testing.T) {
		_, err := NewLoaderWith(fsys, nil).Load("unknown.toml")
		var perr *ParseError
		assert.ErrorAs(t, err, &perr)
	})
	t.Run("validation", func(t *testing.T) {
		_, err := NewLoaderWith(fsys, nil).Load("invalid.toml")
		assert.ErrorIs(t, err, ErrValidationFailed)
		assert.Contains(t, err.Error(), "engine.adapter")
	})
	t.Run("bad env", func(t *testing.T) {
		_, err := NewLoaderWith(fsys, env(map[string]string{"DBGCORE_REQUEST_TIMEOUT": "soon"})).Load("")
		var perr *ParseError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, "DBGCORE_REQUEST_TIMEOUT", perr.Path)
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		path   string
	}{
		{"generic without command", func(c *Config) { c.Engine.Adapter = AdapterGeneric }, "engine.command"},
		{"zero request timeout", func(c *Config) { c.Session.RequestTimeout = 0 }, "session.request_timeout"},
		{"zero margin", func(c *Config) { c.Location.DisassemblyMargin = 0 }, "location.disassembly_margin"},
		{"empty search dir", func(c *Config) { c.Location.SearchDirs = []string{""} }, "location.search_dirs"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.path, verr.Path)
		})
	}

	cfg := Default()
	cfg.Engine.Adapter = AdapterGeneric
	cfg.Engine.Address = "127.0.0.1:4711"
	assert.NoError(t, cfg.Validate())
}
