package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger is a deliberately small, framework-agnostic logging interface.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	// With returns a child logger with persistent fields.
	With(fields ...Field) Logger
}

// Field is a simple key/value pair for structured logging fields.
type Field struct {
	Key   string
	Value any
}

// StdoutLogger prints one JSON object per line. It implements Logger on top
// of slog's JSON handler.
type StdoutLogger struct {
	l *slog.Logger
}

// NewStdoutLogger creates a JSON logger writing to stdout at info level.
// service is optional and is attached to every entry.
func NewStdoutLogger(service string) *StdoutLogger {
	return NewLogger(os.Stdout, "info", service)
}

// NewLogger creates a JSON logger writing to w. level is one of
// debug|info|warn|error; anything else falls back to info. service names
// the process under the "service" key; packages tag their child loggers
// with "component".
func NewLogger(w io.Writer, level string, service string) *StdoutLogger {
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)})
	l := slog.New(h)
	if service != "" {
		l = l.With("service", service)
	}
	return &StdoutLogger{l: l}
}

// ParseLevel maps a textual level to a slog.Level.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (s *StdoutLogger) log(level slog.Level, msg string, fields ...Field) {
	if !s.l.Enabled(context.Background(), level) {
		return
	}
	s.l.LogAttrs(context.Background(), level, msg, attrs(fields)...)
}

func (s *StdoutLogger) Debug(msg string, fields ...Field) { s.log(slog.LevelDebug, msg, fields...) }
func (s *StdoutLogger) Info(msg string, fields ...Field) { s.log(slog.LevelInfo, msg, fields...) }
func (s *StdoutLogger) Warn(msg string, fields ...Field) { s.log(slog.LevelWarn, msg, fields...) }
func (s *StdoutLogger) Error(msg string, fields ...Field) { s.log(slog.LevelError, msg, fields...) }

func (s *StdoutLogger) With(fields ...Field) Logger {
	args := make([]any, 0, len(fields))
	for _, a := range attrs(fields) {
		args = append(args, a)
	}
	return &StdoutLogger{l: s.l.With(args...)}
}

func attrs(fields []Field) []slog.Attr {
	out := make([]slog.Attr, 0, len(fields))
	for _, f := range fields {
		if err, ok := f.Value.(error); ok {
			out = append(out, slog.String(f.Key, err.Error()))
			continue
		}
		out = append(out, slog.Any(f.Key, f.Value))
	}
	return out
}

// NewNopLogger returns a Logger that discards everything.
func NewNopLogger() Logger {
	return nopLogger{}
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...Field) {}
func (nopLogger) Info(string, ...Field) {}
func (nopLogger) Warn(string, ...Field) {}
func (nopLogger) Error(string, ...Field) {}
func (n nopLogger) With(...Field) Logger { return n }
