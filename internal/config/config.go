// Package config loads the optional omebatch.yml file. Command-line flags
// always override file values; the file exists so that server coordinates
// and pool sizing do not have to be repeated on every invocation.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ome-contrib/omebatch/internal/omero"
)

// DefaultPath is the config filename looked up in the working directory.
const DefaultPath = "omebatch.yml"

// Config is the top-level omebatch.yml structure.
type Config struct {
	Version string       `yaml:"version"`
	Server  omero.Config `yaml:"server"`
	Store   StoreConfig  `yaml:"store,omitempty"`
	Pool    PoolConfig   `yaml:"pool,omitempty"`
	Redis   *RedisConfig `yaml:"redis,omitempty"`
}

// StoreConfig selects where feature files are published.
type StoreConfig struct {
	// Dir overrides the default root (the feature set name).
	Dir string `yaml:"dir,omitempty"`
}

// PoolConfig sizes the worker pool.
type PoolConfig struct {
	// Workers is the pool size; 0 means the local core count.
	Workers int `yaml:"workers,omitempty"`
}

// RedisConfig enables the optional run activity log.
type RedisConfig struct {
	URL      string `yaml:"url"`
	Instance string `yaml:"instance,omitempty"` // defaults to "default"
}

// Validate performs strict validation on the configuration.
func (c *Config) Validate() error {
	if c.Version != "1" {
		return fmt.Errorf("unsupported version: %s (expected: 1)", c.Version)
	}
	if c.Pool.Workers < 0 {
		return fmt.Errorf("pool.workers must be >= 0, got %d", c.Pool.Workers)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Redis != nil {
		if c.Redis.URL == "" {
			return fmt.Errorf("redis.url is required when redis is configured")
		}
		if c.Redis.Instance == "" {
			c.Redis.Instance = "default"
		}
	}
	return nil
}

// Load reads and validates the config at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// LoadDefault loads DefaultPath if it exists, or returns an empty config
// when the file is absent - running without a config file is the normal
// case.
func LoadDefault() (*Config, error) {
	cfg, err := Load(DefaultPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &Config{Version: "1"}, nil
		}
		return nil, err
	}
	return cfg, nil
}
