// Package cli consolidates the initialization steps shared by the bilancio
// binaries: environment loading, logging, configuration and the SQLite store.
package cli

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"bilancio/internal/config"
	"bilancio/internal/log"
	"bilancio/internal/storage"
)

// Setup loads the optional .env file and installs a component-tagged default
// logger. The .env file is a local-development convenience; its absence is
// not an error.
func Setup(component string) *slog.Logger {
	_ = godotenv.Load()
	return log.Setup(component)
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *slog.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// OpenStore opens the SQLite repository, migrating the schema on the way.
// Returns the repository or exits the process on failure.
func OpenStore(logger *slog.Logger, dbPath string) *storage.Repository {
	repo, err := storage.NewRepository(dbPath)
	if err != nil {
		logger.Error("Failed to open SQLite store", log.FieldError, err, "path", dbPath)
		os.Exit(1)
	}
	return repo
}
