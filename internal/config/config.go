// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config handles loading and saving credlock configuration from
// ~/.credlock/config.toml. Missing files fall back to defaults; the
// CREDLOCK_DB environment variable overrides the database path.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the top-level configuration.
type Config struct {
	Storage   StorageConfig   `toml:"storage"`
	Bootstrap BootstrapConfig `toml:"bootstrap"`
}

// StorageConfig controls where the account database lives.
type StorageConfig struct {
	// Path to the SQLite database file. Empty means the default under
	// the config directory.
	Path string `toml:"path"`
}

// BootstrapConfig controls first-run seeding.
type BootstrapConfig struct {
	// SeedDefaultAdmin creates a default admin account on first run so
	// the admin surface is reachable out of the box.
	SeedDefaultAdmin bool `toml:"seed_default_admin"`

	// DefaultAdminUser is the username for the seeded admin.
	DefaultAdminUser string `toml:"default_admin_user"`
}

// DefaultConfig returns the baseline configuration.
func DefaultConfig() *Config {
	return &Config{
		Bootstrap: BootstrapConfig{
			SeedDefaultAdmin: true,
			DefaultAdminUser: "admin",
		},
	}
}

// ConfigDir returns ~/.credlock, creating it if needed.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	dir := filepath.Join(home, ".credlock")
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return dir, nil
}

// Load reads the config file, applying defaults for anything unset. A
// missing file is not an error.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	dir, err := ConfigDir()
	if err != nil {
		return nil, err
	}

	path := filepath.Join(dir, "config.toml")
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if cfg.Storage.Path == "" {
		cfg.Storage.Path = filepath.Join(dir, "credlock.db")
	}
	if cfg.Bootstrap.DefaultAdminUser == "" {
		cfg.Bootstrap.DefaultAdminUser = "admin"
	}

	return cfg, nil
}

// applyEnvOverrides lets the environment win over the file. CREDLOCK_DB
// mainly exists so scripts and tests can point at a scratch database.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CREDLOCK_DB"); v != "" {
		cfg.Storage.Path = v
	}
}

// Save writes the configuration to the config file.
func (c *Config) Save() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}

	path := filepath.Join(dir, "config.toml")
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(c); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
