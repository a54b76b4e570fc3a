package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger wraps slog.Logger with application-specific functionality
type Logger struct {
	*slog.Logger
	closer io.Closer
}

// Options controls handler construction.
type Options struct {
	Level  string
	Format string // "json" (default) or "text"
	File   string // optional path; output is written to stdout and the file
	Writer io.Writer
}

// New creates a new JSON logger on stdout with the specified level
func New(level string) *Logger {
	logger, _ := NewWithOptions(Options{Level: level})
	return logger
}

// NewWithOptions builds a logger from opts. The only error source is opening opts.File.
func NewWithOptions(opts Options) (*Logger, error) {
	var out io.Writer = os.Stdout
	if opts.Writer != nil {
		out = opts.Writer
	}

	var closer io.Closer
	if path := strings.TrimSpace(opts.File); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return &Logger{Logger: newSlog(out, opts)}, fmt.Errorf("logging: open log file: %w", err)
		}
		out = io.MultiWriter(out, f)
		closer = f
	}

	return &Logger{Logger: newSlog(out, opts), closer: closer}, nil
}

func newSlog(out io.Writer, opts Options) *slog.Logger {
	handlerOpts := &slog.HandlerOptions{
		Level: ParseLevel(opts.Level),
	}

	var handler slog.Handler
	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "text":
		handler = slog.NewTextHandler(out, handlerOpts)
	default:
		handler = slog.NewJSONHandler(out, handlerOpts)
	}
	return slog.New(handler)
}

// ParseLevel maps a level name to a slog level, defaulting to info.
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

// With returns a child logger carrying the given attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// Close releases the log file, if any.
func (l *Logger) Close() error {
	if l == nil || l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// Default returns a logger with default settings
func Default() *Logger {
	return New("info")
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}
