package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		config      Config
		wantErr     bool
		errorString string
	}{
		{
			name: "valid memory backend config",
			config: Config{
				Port:          "8080",
				CacheDBPath:   "./test.db",
				RemoteBackend: "memory",
				PullTimeout:   30 * time.Second,
			},
			wantErr: false,
		},
		{
			name: "valid jsonbin backend config",
			config: Config{
				Port:           "8080",
				CacheDBPath:    "./test.db",
				RemoteBackend:  "jsonbin",
				JSONBinAPIKey:  "key",
				JSONBinBinID:   "bin",
				JSONBinBaseURL: "https://api.jsonbin.io/v3",
				PullTimeout:    30 * time.Second,
			},
			wantErr: false,
		},
		{
			name: "invalid port - non-numeric",
			config: Config{
				Port:          "abc",
				CacheDBPath:   "./test.db",
				RemoteBackend: "memory",
				PullTimeout:   30 * time.Second,
			},
			wantErr:     true,
			errorString: "invalid port 'abc': must be a number",
		},
		{
			name: "invalid port - out of range",
			config: Config{
				Port:          "70000",
				CacheDBPath:   "./test.db",
				RemoteBackend: "memory",
				PullTimeout:   30 * time.Second,
			},
			wantErr:     true,
			errorString: "invalid port 70000: must be between 1 and 65535",
		},
		{
			name: "invalid remote backend",
			config: Config{
				Port:          "8080",
				CacheDBPath:   "./test.db",
				RemoteBackend: "invalid",
				PullTimeout:   30 * time.Second,
			},
			wantErr:     true,
			errorString: "invalid remote backend 'invalid': must be one of [memory jsonbin]",
		},
		{
			name: "missing cache path",
			config: Config{
				Port:          "8080",
				CacheDBPath:   "",
				RemoteBackend: "memory",
				PullTimeout:   30 * time.Second,
			},
			wantErr:     true,
			errorString: "cache database path cannot be empty",
		},
		{
			name: "jsonbin backend missing API key",
			config: Config{
				Port:          "8080",
				CacheDBPath:   "./test.db",
				RemoteBackend: "jsonbin",
				JSONBinBinID:  "bin",
				PullTimeout:   30 * time.Second,
			},
			wantErr:     true,
			errorString: "JSONBIN_API_KEY is required when using jsonbin backend",
		},
		{
			name: "jsonbin backend missing bin ID",
			config: Config{
				Port:          "8080",
				CacheDBPath:   "./test.db",
				RemoteBackend: "jsonbin",
				JSONBinAPIKey: "key",
				PullTimeout:   30 * time.Second,
			},
			wantErr:     true,
			errorString: "JSONBIN_BIN_ID is required when using jsonbin backend",
		},
		{
			name: "invalid jsonbin base URL scheme",
			config: Config{
				Port:           "8080",
				CacheDBPath:    "./test.db",
				RemoteBackend:  "jsonbin",
				JSONBinAPIKey:  "key",
				JSONBinBinID:   "bin",
				JSONBinBaseURL: "ftp://api.jsonbin.io",
				PullTimeout:    30 * time.Second,
			},
			wantErr:     true,
			errorString: "invalid jsonbin base URL scheme 'ftp': must be 'http' or 'https'",
		},
		{
			name: "pull timeout too short",
			config: Config{
				Port:          "8080",
				CacheDBPath:   "./test.db",
				RemoteBackend: "memory",
				PullTimeout:   500 * time.Millisecond,
			},
			wantErr:     true,
			errorString: "invalid pull timeout 500ms: must be at least 1 second",
		},
		{
			name: "pull timeout too long",
			config: Config{
				Port:          "8080",
				CacheDBPath:   "./test.db",
				RemoteBackend: "memory",
				PullTimeout:   2 * time.Hour,
			},
			wantErr:     true,
			errorString: "invalid pull timeout 2h0m0s: must be at most 1 hour",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				if err == nil {
					t.Errorf("Config.Validate() error = nil, wantErr %v", tt.wantErr)
					return
				}
				if tt.errorString != "" && !strings.Contains(err.Error(), tt.errorString) {
					t.Errorf("Config.Validate() error = %v, want error containing %v", err.Error(), tt.errorString)
				}
			} else {
				if err != nil {
					t.Errorf("Config.Validate() error = %v, wantErr %v", err, tt.wantErr)
				}
			}
		})
	}
}

func TestLoad(t *testing.T) {
	originalVars := map[string]string{
		"PORT":            os.Getenv("PORT"),
		"CACHE_DB_PATH":   os.Getenv("CACHE_DB_PATH"),
		"REMOTE_BACKEND":  os.Getenv("REMOTE_BACKEND"),
		"JSONBIN_API_KEY": os.Getenv("JSONBIN_API_KEY"),
		"JSONBIN_BIN_ID":  os.Getenv("JSONBIN_BIN_ID"),
		"PULL_TIMEOUT":    os.Getenv("PULL_TIMEOUT"),
	}

	for key := range originalVars {
		os.Unsetenv(key)
	}

	defer func() {
		for key, value := range originalVars {
			if value != "" {
				os.Setenv(key, value)
			} else {
				os.Unsetenv(key)
			}
		}
	}()

	t.Run("default values", func(t *testing.T) {
		cfg := Load()

		if cfg.Port != "8080" {
			t.Errorf("Load() Port = %v, want 8080", cfg.Port)
		}
		if cfg.RemoteBackend != "memory" {
			t.Errorf("Load() RemoteBackend = %v, want memory", cfg.RemoteBackend)
		}
		if cfg.CacheDBPath != "./data/loantrack.db" {
			t.Errorf("Load() CacheDBPath = %v, want ./data/loantrack.db", cfg.CacheDBPath)
		}
		if cfg.PullTimeout != 30*time.Second {
			t.Errorf("Load() PullTimeout = %v, want 30s", cfg.PullTimeout)
		}
	})

	t.Run("environment variables", func(t *testing.T) {
		os.Setenv("PORT", "9090")
		os.Setenv("REMOTE_BACKEND", "jsonbin")
		os.Setenv("JSONBIN_API_KEY", "env-key")
		os.Setenv("JSONBIN_BIN_ID", "env-bin")
		os.Setenv("PULL_TIMEOUT", "45s")

		cfg := Load()

		if cfg.Port != "9090" {
			t.Errorf("Load() Port = %v, want 9090", cfg.Port)
		}
		if cfg.RemoteBackend != "jsonbin" {
			t.Errorf("Load() RemoteBackend = %v, want jsonbin", cfg.RemoteBackend)
		}
		if cfg.JSONBinAPIKey != "env-key" {
			t.Errorf("Load() JSONBinAPIKey = %v, want env-key", cfg.JSONBinAPIKey)
		}
		if cfg.JSONBinBinID != "env-bin" {
			t.Errorf("Load() JSONBinBinID = %v, want env-bin", cfg.JSONBinBinID)
		}
		if cfg.PullTimeout != 45*time.Second {
			t.Errorf("Load() PullTimeout = %v, want 45s", cfg.PullTimeout)
		}
	})

	t.Run("invalid environment variables use defaults", func(t *testing.T) {
		os.Setenv("PULL_TIMEOUT", "invalid")

		cfg := Load()

		if cfg.PullTimeout != 30*time.Second {
			t.Errorf("Load() PullTimeout = %v, want 30s (default for invalid input)", cfg.PullTimeout)
		}
	})
}
