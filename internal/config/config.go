// Package config provides configuration management for Civica.
//
// Config file locations (priority order):
//  1. $CIVICA_CONFIG
//  2. ./civica.yaml
//  3. $XDG_CONFIG_HOME/civica/config.yaml
//  4. ~/.config/civica/config.yaml
//  5. /etc/civica/config.yaml
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	// EnvConfigPath is the environment variable for an explicit config path
	EnvConfigPath = "CIVICA_CONFIG"
	// ConfigFileName is the config file name looked up in the working directory
	ConfigFileName = "civica.yaml"
)

// Load finds and loads the config file, or returns defaults if none found
func Load() (*Config, string, error) {
	path := FindConfigPath()

	if path == "" {
		return DefaultConfig(), "", nil
	}

	return LoadFromPath(path)
}

// LoadFromPath loads config from a specific path
func LoadFromPath(path string) (*Config, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, path, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, path, nil
}

// FindConfigPath returns the first existing candidate from the search
// order documented on the package, or empty string if none exists.
func FindConfigPath() string {
	for _, candidate := range searchPaths() {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

func searchPaths() []string {
	paths := make([]string, 0, 5)
	if p := os.Getenv(EnvConfigPath); p != "" {
		paths = append(paths, p)
	}
	if abs, err := filepath.Abs(ConfigFileName); err == nil {
		paths = append(paths, abs)
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		paths = append(paths, filepath.Join(xdg, "civica", "config.yaml"))
	}
	if home := os.Getenv("HOME"); home != "" {
		paths = append(paths, filepath.Join(home, ".config", "civica", "config.yaml"))
	}
	return append(paths, "/etc/civica/config.yaml")
}

// Save writes config to the specified path, creating parent directories
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// DefaultConfig returns sensible defaults for a new installation
func DefaultConfig() *Config {
	return &Config{
		Version:  1,
		Database: DatabaseConfig{Path: "./civica.db"},
		Logging:  LoggingConfig{Level: "info", Format: "text"},
	}
}

// applyDefaults fills in missing values with defaults
func (c *Config) applyDefaults() {
	if c.Version == 0 {
		c.Version = 1
	}
	if c.Database.Path == "" {
		c.Database.Path = "./civica.db"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}
