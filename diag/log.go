// Package diag provides logging and dump helpers shared by the bus, PATA and
// SD emulation layers.
package diag

import (
	"io"
	"log/slog"
	"os"
	"sync"
)

// Component identifies a subsystem for log filtering.
type Component string

// Component identifiers.
const (
	ComponentBus  Component = "bus"
	ComponentPATA Component = "pata"
	ComponentSD   Component = "sd"
	ComponentHost Component = "host"
)

// LogFormat specifies the output format for logging.
type LogFormat int

// Log format options.
const (
	LogFormatText LogFormat = iota
	LogFormatJSON
)

var (
	// level is shared by every handler made here
	level = new(slog.LevelVar)

	mu      sync.RWMutex
	handler = newHandler(os.Stderr, LogFormatText)
)

func init() {
	level.Set(slog.LevelWarn)
}

func newHandler(w io.Writer, format LogFormat) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if format == LogFormatJSON {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// SetLogLevel sets the minimum level of every component logger, including
// the ones already handed out.
func SetLogLevel(l slog.Level) {
	level.Set(l)
}

// SetOutput sends the component loggers created from now on to w.
func SetOutput(w io.Writer, format LogFormat) {
	mu.Lock()
	handler = newHandler(w, format)
	mu.Unlock()
}

// Logger returns a logger tagged with the component.
func Logger(c Component) *slog.Logger {
	mu.RLock()
	h := handler
	mu.RUnlock()
	return slog.New(h).With("component", string(c))
}

// NewLogger returns a text logger on w, used to give a single driver its own
// output. With nil opts it follows the package level.
func NewLogger(w io.Writer, opts *slog.HandlerOptions) *slog.Logger {
	if opts == nil {
		opts = &slog.HandlerOptions{Level: level}
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// ParseLevel maps a level name ("debug", "info", "warn", "error") to a
// slog level. Unknown names map to warn.
func ParseLevel(name string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelWarn
	}
	return l
}
