// Package logger wraps charmbracelet/log with the shape the rest of the
// core expects: leveled methods, a structured WithFields, and a choice
// between human-readable and JSON output.
package logger

import (
	"io"
	"os"
	"sort"
	"strings"

	cblog "github.com/charmbracelet/log"
)

// Options describes logger configuration supplied at creation time.
type Options struct {
	Level         string // "debug", "info", "warn", "error"; defaults to "info"
	HumanReadable bool   // false selects JSON output, for machine consumption
	Writer        io.Writer
	Component     string // e.g. "executor", "cache"; attached to every entry
}

// Logger is a thin wrapper around *cblog.Logger adding a fields-sorted
// WithFields and an Error signature that takes the error explicitly.
type Logger struct {
	base *cblog.Logger
}

// New creates a configured Logger.
func New(opts Options) (*Logger, error) {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}

	base := cblog.NewWithOptions(w, cblog.Options{
		Formatter: formatter(opts.HumanReadable),
		Level:     parseLevel(opts.Level),
	})
	if opts.Component != "" {
		base = base.With("component", opts.Component)
	}

	return &Logger{base: base}, nil
}

func formatter(humanReadable bool) cblog.Formatter {
	if humanReadable {
		return cblog.TextFormatter
	}
	return cblog.JSONFormatter
}

func parseLevel(level string) cblog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return cblog.DebugLevel
	case "warn", "warning":
		return cblog.WarnLevel
	case "error":
		return cblog.ErrorLevel
	default:
		return cblog.InfoLevel
	}
}

// WithFields returns a derived Logger that always writes the supplied
// fields, sorted by key so output is reproducible across runs.
func (l *Logger) WithFields(fields map[string]any) *Logger {
	if l == nil || l.base == nil || len(fields) == 0 {
		return l
	}

	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	args := make([]interface{}, 0, len(fields)*2)
	for _, key := range keys {
		args = append(args, key, fields[key])
	}

	return &Logger{base: l.base.With(args...)}
}

// Info writes an informational log entry.
func (l *Logger) Info(msg string) {
	if l == nil || l.base == nil {
		return
	}
	l.base.Info(strings.TrimSpace(msg))
}

// Debug writes a debug-level log entry if enabled.
func (l *Logger) Debug(msg string) {
	if l == nil || l.base == nil {
		return
	}
	l.base.Debug(strings.TrimSpace(msg))
}

// Warn writes a warning-level log entry.
func (l *Logger) Warn(msg string) {
	if l == nil || l.base == nil {
		return
	}
	l.base.Warn(strings.TrimSpace(msg))
}

// Error writes an error-level log entry including the supplied error.
func (l *Logger) Error(err error, msg string) {
	if l == nil || l.base == nil {
		return
	}
	if err != nil {
		l.base.Error(strings.TrimSpace(msg), "error", err)
		return
	}
	l.base.Error(strings.TrimSpace(msg))
}
