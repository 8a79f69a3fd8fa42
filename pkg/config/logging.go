package config

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Format string `yaml:"format"` // "json" | "text"
	Level  string `yaml:"level"`  // "debug" | "info" | "warn" | "error"
}

// Logger builds a logger writing to w.
func (c LoggingConfig) Logger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(c.Level)}

	var handler slog.Handler
	switch strings.ToLower(c.Format) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// Setup installs a stdout logger as the slog default and returns it.
func (c LoggingConfig) Setup() *slog.Logger {
	l := c.Logger(os.Stdout)
	slog.SetDefault(l)
	return l
}

// ParseLevel converts a level name to slog.Level. Unknown names map to
// info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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
