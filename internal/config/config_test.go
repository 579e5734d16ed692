// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("CREDLOCK_DB", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	want := filepath.Join(home, ".credlock", "credlock.db")
	if cfg.Storage.Path != want {
		t.Errorf("default db path = %q, want %q", cfg.Storage.Path, want)
	}
	if !cfg.Bootstrap.SeedDefaultAdmin {
		t.Error("default config should seed the admin account")
	}
	if cfg.Bootstrap.DefaultAdminUser != "admin" {
		t.Errorf("default admin user = %q, want %q", cfg.Bootstrap.DefaultAdminUser, "admin")
	}
}

func TestLoadFromFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("CREDLOCK_DB", "")

	dir := filepath.Join(home, ".credlock")
	if err := os.MkdirAll(dir, 0700); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}

	content := `
[storage]
path = "/var/lib/credlock/accounts.db"

[bootstrap]
seed_default_admin = false
default_admin_user = "root"
`
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Storage.Path != "/var/lib/credlock/accounts.db" {
		t.Errorf("db path = %q", cfg.Storage.Path)
	}
	if cfg.Bootstrap.SeedDefaultAdmin {
		t.Error("seed_default_admin should be false")
	}
	if cfg.Bootstrap.DefaultAdminUser != "root" {
		t.Errorf("admin user = %q, want %q", cfg.Bootstrap.DefaultAdminUser, "root")
	}
}

func TestEnvOverridesFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("CREDLOCK_DB", "/tmp/override.db")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Storage.Path != "/tmp/override.db" {
		t.Errorf("db path = %q, want env override", cfg.Storage.Path)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("CREDLOCK_DB", "")

	cfg := DefaultConfig()
	cfg.Storage.Path = "/data/credlock.db"
	cfg.Bootstrap.DefaultAdminUser = "operator"
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Storage.Path != "/data/credlock.db" {
		t.Errorf("db path = %q", loaded.Storage.Path)
	}
	if loaded.Bootstrap.DefaultAdminUser != "operator" {
		t.Errorf("admin user = %q", loaded.Bootstrap.DefaultAdminUser)
	}
}
