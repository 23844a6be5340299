// Package daemon wires configuration, storage, and the HTTP server into a
// running stonekeeper instance.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the daemon configuration, loaded from ~/.stonekeeper/config.toml.
type Config struct {
	API     APIConfig     `toml:"api"`
	Store   StoreConfig   `toml:"store"`
	Chess   ChessConfig   `toml:"chess"`
	Metrics MetricsConfig `toml:"metrics"`
}

// APIConfig configures the HTTP listener.
type APIConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// StoreConfig selects and configures the document backend.
//
// Backend is one of "sqlite", "file", or "remote". Path is the database file
// (sqlite) or data directory (file); RemoteURL is the ws:// base of another
// instance's feed (remote).
type StoreConfig struct {
	Backend    string `toml:"backend"`
	Path       string `toml:"path"`
	RemoteURL  string `toml:"remote_url"`
	UserID     string `toml:"user_id"`
	DebounceMS int    `toml:"debounce_ms"`
	Offline    bool   `toml:"offline"`
}

// Debounce returns the write-coalescing window.
func (c StoreConfig) Debounce() time.Duration {
	if c.DebounceMS <= 0 {
		return time.Second
	}
	return time.Duration(c.DebounceMS) * time.Millisecond
}

// ChessConfig configures the rating engine.
type ChessConfig struct {
	KFactor        int `toml:"k_factor"`
	BaselineRating int `toml:"baseline_rating"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `toml:"enabled"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 7420,
		},
		Store: StoreConfig{
			Backend:    "sqlite",
			UserID:     "local",
			DebounceMS: 1000,
		},
		Chess: ChessConfig{
			KFactor:        32,
			BaselineRating: 1200,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Home returns the stonekeeper home directory, honoring STONEKEEPER_HOME.
func Home() string {
	if home := os.Getenv("STONEKEEPER_HOME"); home != "" {
		return home
	}
	userHome, err := os.UserHomeDir()
	if err != nil {
		return ".stonekeeper"
	}
	return filepath.Join(userHome, ".stonekeeper")
}

// ConfigPath returns the config file location.
func ConfigPath() string {
	return filepath.Join(Home(), "config.toml")
}

// Load reads the config file at path, falling back to defaults for any
// missing section. A missing file is not an error: defaults apply.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Addr returns the listen address.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.API.Host, c.API.Port)
}

// StorePath resolves the backend path, defaulting under Home().
func (c Config) StorePath() string {
	if c.Store.Path != "" {
		return c.Store.Path
	}
	if c.Store.Backend == "file" {
		return filepath.Join(Home(), "data")
	}
	return filepath.Join(Home(), "stonekeeper.db")
}
