package logger

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var levelStrings = map[string]zapcore.Level{
	"debug":   zap.DebugLevel,
	"info":    zap.InfoLevel,
	"warn":    zap.WarnLevel,
	"warning": zap.WarnLevel,
	"error":   zap.ErrorLevel,
}

// ParseLevel parses a level name or a positive verbosity number. Verbosity
// n enables logr V(n) messages.
func ParseLevel(s string) (zapcore.Level, error) {
	if level, ok := levelStrings[strings.ToLower(strings.TrimSpace(s))]; ok {
		return level, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 || n > 127 {
		return zap.InfoLevel, fmt.Errorf("invalid log level %q", s)
	}
	// zap levels run the other way from logr verbosity
	return zapcore.Level(int8(-n)), nil
}

type levelFlagValue struct {
	onLevel func(zapcore.Level)
	value   string
}

func newLevelFlagValue(onLevel func(zapcore.Level)) *levelFlagValue {
	return &levelFlagValue{onLevel: onLevel}
}

func (v *levelFlagValue) Set(s string) error {
	level, err := ParseLevel(s)
	if err != nil {
		return err
	}
	v.onLevel(level)
	v.value = s
	return nil
}

func (v *levelFlagValue) String() string { return v.value }

func (*levelFlagValue) Type() string { return "level" }

var _ pflag.Value = (*levelFlagValue)(nil)
