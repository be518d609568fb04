// Package config loads modelopt configuration from three layers:
// a .env file (development convenience), a TOML config file, and
// MODELOPT_* environment variables. Later layers win.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/paretolabs/modelopt/optimizer"
)

// Collaborator selects and tunes the external gateway bundle.
type Collaborator struct {
	// Name is the registered collaborator factory, e.g. "openai".
	Name string `toml:"name"`
}

// Cache configures the cache backend.
type Cache struct {
	// Backend is "memory" or "sqlite".
	Backend string `toml:"backend"`

	// Path is the SQLite database file for the sqlite backend.
	Path string `toml:"path"`

	// DefaultTTL applies to entries stored without an explicit TTL.
	DefaultTTL time.Duration `toml:"default_ttl" split_words:"true"`
}

// Registry configures the model catalog source.
type Registry struct {
	// CatalogPath points at the YAML model catalog. Empty uses the
	// built-in default catalog.
	CatalogPath string `toml:"catalog_path" split_words:"true"`

	// Watch reloads the catalog on file changes.
	Watch bool `toml:"watch"`

	// PricingVersion tags cached values derived from pricing data.
	PricingVersion string `toml:"pricing_version" split_words:"true"`
}

// Config is the full modelopt configuration.
type Config struct {
	Thresholds   optimizer.Thresholds `toml:"thresholds"`
	Collaborator Collaborator         `toml:"collaborator"`
	Cache        Cache                `toml:"cache"`
	Registry     Registry             `toml:"registry"`
}

// Default returns the configuration used when no file or environment
// overrides are present.
func Default() Config {
	return Config{
		Thresholds:   optimizer.DefaultThresholds(),
		Collaborator: Collaborator{Name: "openai"},
		Cache: Cache{
			Backend:    "memory",
			Path:       "modelopt.db",
			DefaultTTL: time.Hour,
		},
		Registry: Registry{PricingVersion: "2024-01"},
	}
}

// Load builds the configuration: defaults, then the TOML file at path
// (skipped when empty, missing file is an error), then MODELOPT_*
// environment variables. A .env file in the working directory is read
// into the environment first if present.
func Load(path string) (Config, error) {
	// Missing .env is the normal production case.
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return cfg, fmt.Errorf("config file: %w", err)
		}
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := envconfig.Process("modelopt", &cfg); err != nil {
		return cfg, fmt.Errorf("environment overrides: %w", err)
	}
	return cfg, nil
}
