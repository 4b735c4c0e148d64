// Package log configures structured logging for the binaries and holds the
// shared field-name vocabulary.
package log

import (
	"log/slog"
	"os"
)

// Config holds logger configuration.
type Config struct {
	Level     slog.Level
	Component string
	Handler   slog.Handler
}

// DefaultConfig returns sensible defaults for logging.
func DefaultConfig() Config {
	return Config{
		Level:     slog.LevelInfo,
		Component: ComponentApp,
	}
}

// New creates a component-tagged logger with the given configuration.
func New(config Config) *slog.Logger {
	handler := config.Handler
	if handler == nil {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: config.Level,
		})
	}
	return slog.New(handler).With(FieldComponent, config.Component)
}

// Setup creates a logger for the component and installs it as the process
// default, so package-level slog calls carry the component tag.
func Setup(component string) *slog.Logger {
	logger := New(Config{Level: levelFromEnv(), Component: component})
	slog.SetDefault(logger)
	return logger
}

func levelFromEnv() slog.Level {
	switch os.Getenv("LOG_LEVEL") {
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
