package logging

import (
	"io"
	"log/slog"
	"os"

	"github.com/samber/oops"
)

// Logger wraps slog.Logger with field helpers used across handlers and services
type Logger struct {
	*slog.Logger
}

// NewLogger creates a logger writing to stdout.
// Development uses human-readable text at debug level, production uses JSON at info level.
func NewLogger(isDevelopment bool) *Logger {
	return NewLoggerWithWriter(os.Stdout, isDevelopment)
}

// NewLoggerWithWriter creates a logger writing to w
func NewLoggerWithWriter(w io.Writer, isDevelopment bool) *Logger {
	var handler slog.Handler
	if isDevelopment {
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug})
	} else {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo})
	}

	return &Logger{Logger: slog.New(handler)}
}

// WithFields returns a child logger carrying the given fields
func (l *Logger) WithFields(fields map[string]any) *Logger {
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return &Logger{Logger: l.With(args...)}
}

// LogError logs err at error level. Errors built with oops contribute their code
// and context as separate attributes.
func (l *Logger) LogError(msg string, err error) {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		l.Error(msg, "error", err.Error())
		return
	}

	attrs := []any{"error", oopsErr.Error()}
	if code := oopsErr.Code(); code != nil {
		attrs = append(attrs, "code", code)
	}
	if ctx := oopsErr.Context(); len(ctx) > 0 {
		attrs = append(attrs, "context", ctx)
	}
	l.Error(msg, attrs...)
}
