package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port string

	// Local cache
	CacheDBPath string

	// Remote store selection
	RemoteBackend string

	// jsonbin.io
	JSONBinBaseURL string
	JSONBinAPIKey  string
	JSONBinBinID   string

	// Background pull on startup
	PullTimeout time.Duration
}

func Load() *Config {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		CacheDBPath: getEnv("CACHE_DB_PATH", "./data/loantrack.db"),

		RemoteBackend: getEnv("REMOTE_BACKEND", "memory"),

		JSONBinBaseURL: getEnv("JSONBIN_BASE_URL", ""),
		JSONBinAPIKey:  getEnv("JSONBIN_API_KEY", ""),
		JSONBinBinID:   getEnv("JSONBIN_BIN_ID", ""),

		PullTimeout: getEnvDuration("PULL_TIMEOUT", 30*time.Second),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	// Validate remote backend
	validBackends := []string{"memory", "jsonbin"}
	isValidBackend := false
	for _, backend := range validBackends {
		if c.RemoteBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid remote backend '%s': must be one of %v", c.RemoteBackend, validBackends))
	}

	// Validate cache path
	if c.CacheDBPath == "" {
		errors = append(errors, "cache database path cannot be empty")
	} else {
		dir := filepath.Dir(c.CacheDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create cache database directory '%s': %v", dir, err))
				}
			}
		}
	}

	// Validate jsonbin configuration if backend is jsonbin
	if c.RemoteBackend == "jsonbin" {
		if c.JSONBinAPIKey == "" {
			errors = append(errors, "JSONBIN_API_KEY is required when using jsonbin backend")
		}
		if c.JSONBinBinID == "" {
			errors = append(errors, "JSONBIN_BIN_ID is required when using jsonbin backend")
		}
		if c.JSONBinBaseURL != "" {
			if parsedURL, err := url.Parse(c.JSONBinBaseURL); err != nil {
				errors = append(errors, fmt.Sprintf("invalid jsonbin base URL '%s': %v", c.JSONBinBaseURL, err))
			} else if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
				errors = append(errors, fmt.Sprintf("invalid jsonbin base URL scheme '%s': must be 'http' or 'https'", parsedURL.Scheme))
			}
		}
	}

	// Validate pull timeout
	if c.PullTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid pull timeout %v: must be at least 1 second", c.PullTimeout))
	} else if c.PullTimeout > time.Hour {
		errors = append(errors, fmt.Sprintf("invalid pull timeout %v: must be at most 1 hour", c.PullTimeout))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
