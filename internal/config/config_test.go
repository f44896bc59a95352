package config

import (
	"os"
	"path/filepath"
	"testing"
)

func withHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("SIDECAR_HOME", home)
	return home
}

func TestLoad_Defaults(t *testing.T) {
	withHome(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DBPath != "/home/automaton/state.db" {
		t.Fatalf("DBPath = %q", cfg.DBPath)
	}
	if cfg.BindAddr != "127.0.0.1:3000" {
		t.Fatalf("BindAddr = %q", cfg.BindAddr)
	}
	if cfg.MarketplaceDir != "/home/automaton/marketplace" {
		t.Fatalf("MarketplaceDir = %q", cfg.MarketplaceDir)
	}
	if cfg.ServerURL != "http://127.0.0.1:3000" {
		t.Fatalf("ServerURL = %q", cfg.ServerURL)
	}
	if !cfg.CORS.Enabled {
		t.Fatalf("CORS should default enabled")
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	home := withHome(t)
	yaml := `
db_path: /tmp/other.db
bind_addr: 0.0.0.0:8080
log_level: debug
server_url: http://sidecar.local:8080/
`
	if err := os.WriteFile(filepath.Join(home, "config.yaml"), []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DBPath != "/tmp/other.db" {
		t.Fatalf("DBPath = %q", cfg.DBPath)
	}
	if cfg.BindAddr != "0.0.0.0:8080" {
		t.Fatalf("BindAddr = %q", cfg.BindAddr)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("LogLevel = %q", cfg.LogLevel)
	}
	if cfg.ServerURL != "http://sidecar.local:8080" {
		t.Fatalf("ServerURL = %q, want trailing slash trimmed", cfg.ServerURL)
	}
}

func TestLoad_EnvOverridesBeatFile(t *testing.T) {
	home := withHome(t)
	if err := os.WriteFile(filepath.Join(home, "config.yaml"), []byte("db_path: /tmp/file.db\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("SIDECAR_DB_PATH", "/tmp/env.db")
	t.Setenv("SIDECAR_MARKETPLACE_DIR", "/tmp/market")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DBPath != "/tmp/env.db" {
		t.Fatalf("DBPath = %q, want env override", cfg.DBPath)
	}
	if cfg.MarketplaceDir != "/tmp/market" {
		t.Fatalf("MarketplaceDir = %q", cfg.MarketplaceDir)
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	home := withHome(t)
	if err := os.WriteFile(filepath.Join(home, "config.yaml"), []byte("db_path: [broken\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for malformed config.yaml")
	}
}

func TestFingerprint_Stable(t *testing.T) {
	withHome(t)
	a, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	b := a
	if a.Fingerprint() != b.Fingerprint() {
		t.Fatalf("fingerprint not stable")
	}
	b.DBPath = "/elsewhere.db"
	if a.Fingerprint() == b.Fingerprint() {
		t.Fatalf("fingerprint should change with config")
	}
}
