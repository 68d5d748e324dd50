// Package cli consolidates the initialization shared by cmd/timebank and
// cmd/timebank-worker.
package cli

import (
	"os"

	"github.com/joho/godotenv"

	"timebank/internal/config"
	applog "timebank/internal/log"
	"timebank/internal/storage"
)

// Setup loads the optional .env file, installs the default logger, and
// returns it tagged with the given component.
func Setup(component string) *applog.Logger {
	// .env is for local development; errors are ignored in production/docker
	_ = godotenv.Load()

	logger := applog.New(applog.DefaultConfig()).WithComponent(component)
	applog.SetDefault(logger)
	return logger
}

// LoadConfig loads configuration and validates it, exiting on failure.
func LoadConfig(logger *applog.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

// OpenStorage opens the SQLite repository, exiting on failure.
func OpenStorage(logger *applog.Logger, dbPath string) *storage.SQLiteRepository {
	repo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", dbPath)
		os.Exit(1)
	}
	return repo
}
