// Package log sets up the process-wide structured logger.
package log

import (
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	once   sync.Once
	logger *slog.Logger
)

// Setup initializes the global logger. An unknown level falls back to
// INFO.
func Setup(level string) *slog.Logger {
	once.Do(func() {
		var l slog.Level

		switch strings.ToUpper(level) {
		case "DEBUG":
			l = slog.LevelDebug
		case "WARN":
			l = slog.LevelWarn
		case "ERROR":
			l = slog.LevelError
		default:
			l = slog.LevelInfo
		}

		handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: l})
		logger = slog.New(handler)
		slog.SetDefault(logger)
	})

	return logger
}

// Get returns the configured logger, or a default one if Setup hasn't
// been called.
func Get() *slog.Logger {
	if logger == nil {
		return Setup("INFO")
	}
	return logger
}

// WithComponent returns a logger with the component field set.
func WithComponent(name string) *slog.Logger {
	return Get().With(slog.String("component", name))
}
