// Package cli provides common CLI initialization utilities shared by the
// application entrypoints.
package cli

import (
	"context"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"loantrack/internal/config"
	"loantrack/internal/remote"
	"loantrack/internal/remote/jsonbin"
	"loantrack/internal/remote/memory"
	"loantrack/internal/storage"
)

// SetupLogger initializes structured logging with default settings.
// Returns the configured logger and sets it as the default logger.
func SetupLogger() *slog.Logger {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *slog.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

// InitCache opens the local SQLite cache at the given path.
// Returns the cache or exits the process on failure.
func InitCache(logger *slog.Logger, dbPath string) *storage.Cache {
	cache, err := storage.NewCache(dbPath)
	if err != nil {
		logger.Error("Failed to initialize local cache", "error", err, "path", dbPath)
		os.Exit(1)
	}
	return cache
}

// InitRemoteStore selects the remote store. Credentials saved through the
// settings endpoint take precedence over the environment, so a bin entered
// interactively survives restarts.
func InitRemoteStore(logger *slog.Logger, cfg *config.Config, cache *storage.Cache) remote.Store {
	saved, ok, err := cache.LoadRemoteConfig(context.Background())
	if err != nil {
		logger.Warn("Failed to read saved remote settings", "error", err)
	}
	if ok && saved.APIKey != "" && saved.BinID != "" {
		logger.Info("Initialized jsonbin remote store from saved settings", "bin_id", saved.BinID)
		return jsonbin.New(cfg.JSONBinBaseURL, saved.APIKey, saved.BinID)
	}

	switch cfg.RemoteBackend {
	case "jsonbin":
		logger.Info("Initialized jsonbin remote store", "bin_id", cfg.JSONBinBinID)
		return jsonbin.New(cfg.JSONBinBaseURL, cfg.JSONBinAPIKey, cfg.JSONBinBinID)
	default:
		logger.Info("Initialized in-memory remote store", "backend", cfg.RemoteBackend)
		return memory.New()
	}
}
