// Package logger builds the process logger: a logr.Logger backed by zap.
package logger

import (
	"io"
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	verbosityFlagName      = "verbosity"
	verbosityFlagShortName = "v"
)

// Logger is a logr.Logger with a level that can be changed after creation.
type Logger struct {
	logr.Logger
	atomicLevel zap.AtomicLevel
	flush       func()
}

// New creates a logger writing human readable lines to stderr.
func New(name string) *Logger {
	return NewWithWriter(name, os.Stderr)
}

// NewWithWriter creates a logger writing to w.
func NewWithWriter(name string, w io.Writer) *Logger {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	consoleEncoder := zapcore.NewConsoleEncoder(encoderConfig)

	level := zap.NewAtomicLevelAt(zap.InfoLevel)
	core := zapcore.NewCore(consoleEncoder, zapcore.Lock(zapcore.AddSync(w)), level)
	zapLogger := zap.New(core)

	return &Logger{
		Logger:      zapr.NewLogger(zapLogger).WithName(name),
		atomicLevel: level,
		flush: func() {
			_ = zapLogger.Sync()
		},
	}
}

// SetLevel changes the minimum level written.
func (l *Logger) SetLevel(level zapcore.Level) {
	l.atomicLevel.SetLevel(level)
}

// SetLevelName sets the level from a name such as "debug" or a positive
// verbosity number.
func (l *Logger) SetLevelName(name string) error {
	level, err := ParseLevel(name)
	if err != nil {
		return err
	}
	l.SetLevel(level)
	return nil
}

// Level returns the current minimum level.
func (l *Logger) Level() zapcore.Level {
	return l.atomicLevel.Level()
}

// Flush writes any buffered entries.
func (l *Logger) Flush() {
	l.flush()
}

// AddLevelFlag registers -v/--verbosity on fs.
func (l *Logger) AddLevelFlag(fs *pflag.FlagSet) {
	v := newLevelFlagValue(l.SetLevel)
	fs.VarP(v, verbosityFlagName, verbosityFlagShortName,
		"Logging verbosity level (e.g. -v=debug). One of 'debug', 'info', 'warn', 'error', or a positive integer for increasing debug verbosity.")
}
