// Package config loads dbgcore settings.
//
// Settings come from three layers, later layers overriding earlier ones:
//
//  1. Built-in defaults (Default)
//  2. The TOML file ($XDG_CONFIG_HOME/dbgcore/config.toml or --config)
//  3. DBGCORE_* environment variables
//
// The result is validated before it is returned. A missing default file is
// not an error; a missing file named explicitly is.
//
// Example file:
//
//	[log]
//	level = "debug"
//
//	[engine]
//	adapter = "gdb"
//	connect_timeout = "5s"
//
//	[session]
//	request_timeout = "30s"
//	scripts = ["~/.config/dbgcore/filters.lua"]
//
//	[location]
//	search_dirs = ["/usr/src/glibc"]
//	disassembly_margin = 20
package config
