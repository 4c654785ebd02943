// Package logging holds the slog helpers shared by the detection, linking and gap-closing code.
package logging

import (
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"
)

// Logger wraps slog.Logger with field names used across the module.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs to w.
func NewTextLogger(w io.Writer, level slog.Level) *Logger {
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// OrNoop returns l, or a discarding logger when l is nil.
func OrNoop(l *Logger) *Logger {
	if l == nil {
		return NoopLogger()
	}
	return l
}

// WithRun tags every record with the run identifier.
func (l *Logger) WithRun(id uuid.UUID) *Logger {
	return &Logger{
		Logger: l.Logger.With("run", id.String()),
	}
}

// WithFrame adds a frame field to the logger.
func (l *Logger) WithFrame(frame int) *Logger {
	return &Logger{
		Logger: l.Logger.With("frame", frame),
	}
}

// WithComponent adds a component field to the logger.
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("component", name),
	}
}
