// Package daemon loads the webledger daemon configuration.
// Configuration lives at $WEBLEDGER_HOME/config.toml (default
// ~/.webledger/config.toml); a missing file means defaults.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the full daemon configuration.
type Config struct {
	API     APIConfig     `toml:"api"`
	Storage StorageConfig `toml:"storage"`
	Ledger  LedgerConfig  `toml:"ledger"`
}

// APIConfig controls the HTTP listener.
type APIConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Addr returns the listen address.
func (c APIConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// StorageConfig controls durable persistence.
type StorageConfig struct {
	Path string `toml:"path"` // sqlite database file
}

// LedgerConfig controls ledger concurrency and idempotency.
type LedgerConfig struct {
	Shards         int    `toml:"shards"`
	MailboxDepth   int    `toml:"mailbox_depth"`
	IdempotencyTTL string `toml:"idempotency_ttl"` // Go duration string
}

// TTL parses the idempotency window, falling back to 10m on bad input.
func (c LedgerConfig) TTL() time.Duration {
	d, err := time.ParseDuration(c.IdempotencyTTL)
	if err != nil || d <= 0 {
		return 10 * time.Minute
	}
	return d
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 7430,
		},
		Storage: StorageConfig{
			Path: filepath.Join(Home(), "credits.db"),
		},
		Ledger: LedgerConfig{
			Shards:         16,
			MailboxDepth:   64,
			IdempotencyTTL: "10m",
		},
	}
}

// Home returns the webledger home directory.
func Home() string {
	if env := os.Getenv("WEBLEDGER_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".webledger")
}

// LoadConfig reads config.toml from the home directory over the defaults.
// A missing file is not an error; a malformed one is.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()

	path := filepath.Join(Home(), "config.toml")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}
