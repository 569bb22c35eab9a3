// Package logging implements leveled, per-module structured logging on top
// of go-kit log.
//
// Loggers may be obtained before Initialize is called. Until then they
// discard their output and are switched over to the configured backend
// once it exists.
package logging

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/spf13/pflag"
)

// callerDepth skips the frames of the leveled wrappers below.
const callerDepth = 5

var (
	root = &registry{
		base:         log.NewNopLogger(),
		defaultLevel: LevelError,
	}

	_ pflag.Value = (*Level)(nil)
	_ pflag.Value = (*Format)(nil)
)

// Format is a logging format.
type Format uint

const (
	// FmtLogfmt is the "logfmt" logging format.
	FmtLogfmt Format = iota
	// FmtJSON is the JSON logging format.
	FmtJSON
)

var formatNames = []string{
	FmtLogfmt: "logfmt",
	FmtJSON:   "json",
}

// String returns the string representation of a Format.
func (f Format) String() string {
	if int(f) < len(formatNames) {
		return formatNames[f]
	}
	return fmt.Sprintf("[unknown format: %d]", uint(f))
}

// Set sets the Format to the value specified by the provided string.
func (f *Format) Set(s string) error {
	for i, name := range formatNames {
		if strings.EqualFold(name, s) {
			*f = Format(i)
			return nil
		}
	}
	return fmt.Errorf("logging: invalid log format: '%s'", s)
}

// Type returns the pflag type name.
func (f *Format) Type() string {
	return "format"
}

// Level is a log level.
type Level uint

const (
	// LevelDebug is the log level for debug messages.
	LevelDebug Level = iota
	// LevelInfo is the log level for informative messages.
	LevelInfo
	// LevelWarn is the log level for warning messages.
	LevelWarn
	// LevelError is the log level for error messages.
	LevelError
)

var levelNames = []string{
	LevelDebug: "debug",
	LevelInfo:  "info",
	LevelWarn:  "warn",
	LevelError: "error",
}

// String returns the string representation of a Level.
func (l Level) String() string {
	if int(l) < len(levelNames) {
		return levelNames[l]
	}
	return fmt.Sprintf("[unknown level: %d]", uint(l))
}

// Set sets the Level to the value specified by the provided string.
func (l *Level) Set(s string) error {
	for i, name := range levelNames {
		if strings.EqualFold(name, s) {
			*l = Level(i)
			return nil
		}
	}
	return fmt.Errorf("logging: invalid log level: '%s'", s)
}

// Type returns the pflag type name.
func (l *Level) Type() string {
	return "level"
}

// UnmarshalText decodes a text level.
func (l *Level) UnmarshalText(text []byte) error {
	return l.Set(string(text))
}

func (l Level) allow() level.Option {
	switch l {
	case LevelDebug:
		return level.AllowDebug()
	case LevelInfo:
		return level.AllowInfo()
	case LevelWarn:
		return level.AllowWarn()
	default:
		return level.AllowError()
	}
}

// Logger is a logger instance.
type Logger struct {
	logger log.Logger
	level  Level
	module string
}

func (l *Logger) log(lvl Level, msg string, keyvals []interface{}) {
	if lvl < l.level {
		return
	}

	var leveled log.Logger
	switch lvl {
	case LevelDebug:
		leveled = level.Debug(l.logger)
	case LevelInfo:
		leveled = level.Info(l.logger)
	case LevelWarn:
		leveled = level.Warn(l.logger)
	default:
		leveled = level.Error(l.logger)
	}

	kvs := make([]interface{}, 0, len(keyvals)+2)
	kvs = append(kvs, "msg", msg)
	kvs = append(kvs, keyvals...)
	_ = leveled.Log(kvs...)
}

// Debug logs the message and key value pairs at the Debug log level.
func (l *Logger) Debug(msg string, keyvals ...interface{}) {
	l.log(LevelDebug, msg, keyvals)
}

// Info logs the message and key value pairs at the Info log level.
func (l *Logger) Info(msg string, keyvals ...interface{}) {
	l.log(LevelInfo, msg, keyvals)
}

// Warn logs the message and key value pairs at the Warn log level.
func (l *Logger) Warn(msg string, keyvals ...interface{}) {
	l.log(LevelWarn, msg, keyvals)
}

// Error logs the message and key value pairs at the Error log level.
func (l *Logger) Error(msg string, keyvals ...interface{}) {
	l.log(LevelError, msg, keyvals)
}

// With returns a clone of the logger with the provided key/value pairs
// added as context for all subsequent logs.
func (l *Logger) With(keyvals ...interface{}) *Logger {
	return &Logger{
		logger: log.With(l.logger, keyvals...),
		level:  l.level,
		module: l.module,
	}
}

// GetLogger returns a logger for the given module.
func GetLogger(module string) *Logger {
	return root.getLogger(module)
}

// NewJSONLogger creates a logger writing JSON lines to w at every level,
// bypassing the global backend.
func NewJSONLogger(w io.Writer) *Logger {
	return &Logger{
		logger: log.NewJSONLogger(w),
		level:  LevelDebug,
	}
}

// Initialize sets up the global backend writing to w. Modules take the
// level of their longest matching prefix in moduleLvls, or defaultLvl.
// A nil writer discards all output.
func Initialize(w io.Writer, format Format, defaultLvl Level, moduleLvls map[string]Level) error {
	return root.initialize(w, format, defaultLvl, moduleLvls)
}

type registry struct {
	sync.Mutex

	base         log.Logger
	defaultLevel Level
	moduleLevels map[string]Level

	// pending are loggers handed out before initialization.
	pending     []*pendingLogger
	initialized bool
}

type pendingLogger struct {
	swap   *log.SwapLogger
	logger *Logger
}

func (r *registry) levelFor(module string) Level {
	lvl, matched := r.defaultLevel, -1
	for prefix, l := range r.moduleLevels {
		if len(prefix) > matched && strings.HasPrefix(module, prefix) {
			lvl, matched = l, len(prefix)
		}
	}
	return lvl
}

func (r *registry) getLogger(module string) *Logger {
	r.Lock()
	defer r.Unlock()

	base := r.base
	var swap *log.SwapLogger
	if !r.initialized {
		swap = &log.SwapLogger{}
		base = swap
	}

	var keyvals []interface{}
	if module != "" {
		keyvals = append(keyvals, "module", module)
	}
	keyvals = append(keyvals, "caller", log.Caller(callerDepth))

	l := &Logger{
		logger: log.WithPrefix(base, keyvals...),
		level:  r.levelFor(module),
		module: module,
	}
	if swap != nil {
		r.pending = append(r.pending, &pendingLogger{swap: swap, logger: l})
	}
	return l
}

func (r *registry) initialize(w io.Writer, format Format, defaultLvl Level, moduleLvls map[string]Level) error {
	r.Lock()
	defer r.Unlock()

	if r.initialized {
		return fmt.Errorf("logging: already initialized")
	}

	base := r.base
	if w != nil {
		w = log.NewSyncWriter(w)
		switch format {
		case FmtLogfmt:
			base = log.NewLogfmtLogger(w)
		case FmtJSON:
			base = log.NewJSONLogger(w)
		default:
			return fmt.Errorf("logging: unsupported log format: %v", format)
		}
	}

	// Per module levels may be more verbose than the default.
	minLevel := defaultLvl
	for _, l := range moduleLvls {
		if l < minLevel {
			minLevel = l
		}
	}
	base = level.NewFilter(base, minLevel.allow())
	base = log.With(base, "ts", log.DefaultTimestampUTC)

	r.base = base
	r.defaultLevel = defaultLvl
	r.moduleLevels = moduleLvls
	r.initialized = true

	for _, p := range r.pending {
		p.swap.Swap(base)
		p.logger.level = r.levelFor(p.logger.module)
	}
	r.pending = nil

	return nil
}
