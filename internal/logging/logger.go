// Package logging wraps zerolog with the component-scoped, leveled logger
// shape used across the trading core: every package gets a child logger
// tagged with its own name so log lines are filterable by subsystem without
// a parsing step.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger is a thin facade over zerolog.Logger. It exists so call sites depend
// on this package's small surface rather than zerolog directly, and so the
// component tag is attached once at construction instead of at every call.
type Logger struct {
	zl zerolog.Logger
}

// Config controls process-wide logger construction.
type Config struct {
	Level       string // debug, info, warn, error
	JSONFormat  bool   // false renders a human console writer
	IncludeFile bool   // add file:line to every event
	Output      io.Writer
}

// New builds the root Logger for the process. Individual components should
// call .With("component-name") rather than constructing their own root.
func New(cfg Config) *Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	if !cfg.JSONFormat {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	level := parseLevel(cfg.Level)
	ctx := zerolog.New(out).With().Timestamp()
	if cfg.IncludeFile {
		ctx = ctx.Caller()
	}
	zl := ctx.Logger().Level(level)
	return &Logger{zl: zl}
}

func parseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// With returns a child logger tagged with the given component name, e.g.
// log.With("scheduler") or log.With("exchange.linear").
func (l *Logger) With(component string) *Logger {
	return &Logger{zl: l.zl.With().Str("component", component).Logger()}
}

// Fields attaches structured key/value pairs to the next event built from
// the returned logger. Values are passed through zerolog's Interface field.
func (l *Logger) Fields(kv map[string]any) *Logger {
	ctx := l.zl.With()
	for k, v := range kv {
		ctx = ctx.Interface(k, v)
	}
	return &Logger{zl: ctx.Logger()}
}

func (l *Logger) Debug(msg string)          { l.zl.Debug().Msg(msg) }
func (l *Logger) Debugf(f string, a ...any) { l.zl.Debug().Msgf(f, a...) }
func (l *Logger) Info(msg string)           { l.zl.Info().Msg(msg) }
func (l *Logger) Infof(f string, a ...any)  { l.zl.Info().Msgf(f, a...) }
func (l *Logger) Warn(msg string)           { l.zl.Warn().Msg(msg) }
func (l *Logger) Warnf(f string, a ...any)  { l.zl.Warn().Msgf(f, a...) }
func (l *Logger) Error(err error, msg string) {
	l.zl.Error().Err(err).Msg(msg)
}
func (l *Logger) Errorf(err error, f string, a ...any) {
	l.zl.Error().Err(err).Msgf(f, a...)
}
func (l *Logger) Fatal(err error, msg string) { l.zl.Fatal().Err(err).Msg(msg) }

// Nop returns a Logger that discards everything, for tests.
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}
