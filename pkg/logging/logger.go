package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger wraps slog.Logger with application-specific functionality
type Logger struct {
	*slog.Logger
}

// Options controls how a Logger is built.
type Options struct {
	Level  string
	Format string // "json" (default) or "text"
	Writer io.Writer
}

// New creates a new logger with the specified level
func New(level string) *Logger {
	return NewWithOptions(Options{Level: level})
}

// NewWithOptions creates a logger with explicit level, format and output.
func NewWithOptions(opts Options) *Logger {
	handlerOpts := &slog.HandlerOptions{
		Level: parseLevel(opts.Level),
	}

	w := opts.Writer
	if w == nil {
		w = os.Stdout
	}

	var handler slog.Handler
	if strings.EqualFold(strings.TrimSpace(opts.Format), "text") {
		handler = slog.NewTextHandler(w, handlerOpts)
	} else {
		handler = slog.NewJSONHandler(w, handlerOpts)
	}

	return &Logger{Logger: slog.New(handler)}
}

// Default returns a logger with default settings
func Default() *Logger {
	return New("info")
}

// With returns a child logger that always emits the given attributes.
func (l *Logger) With(args ...any) *Logger {
	if l == nil || l.Logger == nil {
		return Default().With(args...)
	}
	return &Logger{Logger: l.Logger.With(args...)}
}

func parseLevel(level string) slog.Level {
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
