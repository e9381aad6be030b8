// Package logging provides structured logging for the courseforge service.
// It wraps log/slog and supports rotated file output for long-running
// deployments.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is a thin wrapper around slog.Logger with helpers for the
// attributes this service propagates. Safe for concurrent use.
type Logger struct {
	*slog.Logger
}

// New creates a logger writing to stderr, or to a rotated log file when
// filePath is non-empty. format is "text" or "json"; level is one of
// debug/info/warn/error (defaults to info).
func New(level, format, filePath string) *Logger {
	var writer io.Writer = os.Stderr
	if filePath != "" {
		writer = &lumberjack.Logger{
			Filename:   filePath,
			MaxSize:    15, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}
	}

	opts := &slog.HandlerOptions{Level: parseLevel(level)}

	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(writer, opts)
	} else {
		handler = slog.NewTextHandler(writer, opts)
	}

	return &Logger{Logger: slog.New(handler)}
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// With returns a child logger with additional key-value attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// WithCourse returns a child logger carrying the course id.
func (l *Logger) WithCourse(courseID string) *Logger {
	return l.With("course_id", courseID)
}

// WithStage returns a child logger carrying the stage name.
func (l *Logger) WithStage(stage string) *Logger {
	return l.With("stage", stage)
}

// WithSession returns a child logger carrying the negotiation session id.
func (l *Logger) WithSession(sessionID string) *Logger {
	return l.With("session_id", sessionID)
}

// Nop returns a logger that discards all output. Useful in tests.
func Nop() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}
