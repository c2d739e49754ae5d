// Package storage is the local durable cache: a synchronous key to
// JSON-blob store on SQLite, keyed by fixed logical names. It is read once
// at startup and written on every mutation, always before any remote push.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"loantrack/internal/core"

	_ "modernc.org/sqlite"
)

// Fixed blob keys.
const (
	KeyLoans        = "loans"
	KeyUsers        = "users"
	KeyRemoteConfig = "remote_config"
)

// RemoteConfig is the persisted remote-store connection settings, entered
// interactively or seeded from the environment.
type RemoteConfig struct {
	APIKey   string `json:"apiKey"`
	BinID    string `json:"binId"`
	LastSync string `json:"lastSync"`
}

type Cache struct {
	db *sql.DB
}

func NewCache(dbPath string) (*Cache, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open cache database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping cache database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Cache{db: db}, nil
}

func (c *Cache) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Get reads the raw blob stored under key. A missing key is not an error;
// it returns (nil, false, nil).
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := c.db.QueryRowContext(ctx,
		`SELECT value FROM blobs WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read blob %q: %w", key, err)
	}
	return value, true, nil
}

// Put writes the blob under key, replacing any previous value.
func (c *Cache) Put(ctx context.Context, key string, value []byte) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO blobs (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		key, value)
	if err != nil {
		return fmt.Errorf("write blob %q: %w", key, err)
	}
	return nil
}

// Reset drops every stored blob. Used by the "clear local data" action; the
// remote store is untouched.
func (c *Cache) Reset(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM blobs`); err != nil {
		return fmt.Errorf("reset cache: %w", err)
	}
	return nil
}

func (c *Cache) SaveLoans(ctx context.Context, loans []core.Loan) error {
	return c.putJSON(ctx, KeyLoans, loans)
}

func (c *Cache) LoadLoans(ctx context.Context) ([]core.Loan, error) {
	var loans []core.Loan
	if err := c.getJSON(ctx, KeyLoans, &loans); err != nil {
		return nil, err
	}
	return loans, nil
}

func (c *Cache) SaveUsers(ctx context.Context, users []core.UserAccount) error {
	return c.putJSON(ctx, KeyUsers, users)
}

func (c *Cache) LoadUsers(ctx context.Context) ([]core.UserAccount, error) {
	var users []core.UserAccount
	if err := c.getJSON(ctx, KeyUsers, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (c *Cache) SaveRemoteConfig(ctx context.Context, cfg RemoteConfig) error {
	return c.putJSON(ctx, KeyRemoteConfig, cfg)
}

// LoadRemoteConfig returns the persisted connection settings, or false when
// none were saved yet.
func (c *Cache) LoadRemoteConfig(ctx context.Context) (RemoteConfig, bool, error) {
	raw, ok, err := c.Get(ctx, KeyRemoteConfig)
	if err != nil || !ok {
		return RemoteConfig{}, false, err
	}
	var cfg RemoteConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return RemoteConfig{}, false, fmt.Errorf("decode blob %q: %w", KeyRemoteConfig, err)
	}
	return cfg, true, nil
}

func (c *Cache) putJSON(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode blob %q: %w", key, err)
	}
	return c.Put(ctx, key, raw)
}

func (c *Cache) getJSON(ctx context.Context, key string, v any) error {
	raw, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode blob %q: %w", key, err)
	}
	return nil
}
