package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger wraps slog with the key-value call style used across the service:
// logger.Info("Scan completed", "domain", d, "rating", r)
type Logger struct {
	*slog.Logger
}

// Config selects level and output format
type Config struct {
	Level  string    // debug, info, warn, error
	Format string    // json or text
	Writer io.Writer // defaults to os.Stdout
}

// New creates a new Logger instance
func New(cfg Config) *Logger {
	w := cfg.Writer
	if w == nil {
		w = os.Stdout
	}

	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	return &Logger{Logger: slog.New(handler)}
}

// NewNop returns a logger that discards everything
func NewNop() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// With returns a child logger carrying the given key-value pairs
func (l *Logger) With(keysAndValues ...any) *Logger {
	return &Logger{Logger: l.Logger.With(keysAndValues...)}
}

// ParseLevel maps a level name to slog.Level; unknown names mean info
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
