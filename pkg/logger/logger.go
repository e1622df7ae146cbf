package logger

import (
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	mu   sync.RWMutex
	base = newLogger("info", false)
)

// Init configures the process-wide logger. level is one of
// debug|info|warn|error; json switches the console writer off for
// machine-readable output.
func Init(level string, json bool) {
	mu.Lock()
	defer mu.Unlock()
	base = newLogger(level, json)
}

func newLogger(level string, json bool) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	if json {
		return zerolog.New(os.Stdout).With().Timestamp().Logger().Level(lvl)
	}
	out := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	return zerolog.New(out).With().Timestamp().Logger().Level(lvl)
}

func get() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// DebugCF logs at debug level for a component with structured fields.
func DebugCF(component, msg string, fields map[string]interface{}) {
	l := get()
	emit(l.Debug(), component, msg, fields)
}

// InfoCF logs at info level for a component with structured fields.
func InfoCF(component, msg string, fields map[string]interface{}) {
	l := get()
	emit(l.Info(), component, msg, fields)
}

// WarnCF logs at warn level for a component with structured fields.
func WarnCF(component, msg string, fields map[string]interface{}) {
	l := get()
	emit(l.Warn(), component, msg, fields)
}

// ErrorCF logs at error level for a component with structured fields.
func ErrorCF(component, msg string, fields map[string]interface{}) {
	l := get()
	emit(l.Error(), component, msg, fields)
}

func emit(ev *zerolog.Event, component, msg string, fields map[string]interface{}) {
	ev = ev.Str("component", component)
	for k, v := range fields {
		ev = ev.Interface(k, v)
	}
	ev.Msg(msg)
}
