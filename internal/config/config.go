// Package config loads sidecar configuration from config.yaml with
// environment overrides. Handlers never read the environment directly;
// everything they need is resolved here at startup.
package config

import (
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/automatonhq/sidecar/internal/otel"
)

// CORSConfig controls cross-origin access to the telemetry endpoints.
// The dashboard is usually served from a different origin than the sidecar.
type CORSConfig struct {
	Enabled        bool     `yaml:"enabled"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
	MaxAge         int      `yaml:"max_age"`
}

// AlertsConfig configures the optional Telegram tier-degradation notifier.
// Disabled unless a token and at least one chat ID are present.
type AlertsConfig struct {
	TelegramToken string  `yaml:"telegram_token"`
	ChatIDs       []int64 `yaml:"chat_ids"`
}

type Config struct {
	HomeDir string `yaml:"-"`

	// DBPath is the agent's state store. The sidecar only ever opens it
	// read-only; it is written by the automaton process.
	DBPath string `yaml:"db_path"`

	BindAddr string `yaml:"bind_addr"`
	LogLevel string `yaml:"log_level"`

	// MarketplaceDir holds catalog.json and per-skill directories
	// (SKILL.md, README.md). Written by the automaton, read here.
	MarketplaceDir string `yaml:"marketplace_dir"`

	// ServerURL is the base URL the sync client and CLI subcommands poll.
	ServerURL string `yaml:"server_url"`

	CORS   CORSConfig   `yaml:"cors"`
	Alerts AlertsConfig `yaml:"alerts"`
	OTel   otel.Config  `yaml:"otel"`
}

func defaultConfig() Config {
	return Config{
		DBPath:         "/home/automaton/state.db",
		BindAddr:       "127.0.0.1:3000",
		LogLevel:       "info",
		MarketplaceDir: "/home/automaton/marketplace",
		ServerURL:      "http://127.0.0.1:3000",
		CORS: CORSConfig{
			Enabled:        true,
			AllowedOrigins: []string{"*"},
		},
	}
}

// HomeDir returns the sidecar data directory (logs, config.yaml).
func HomeDir() string {
	if override := os.Getenv("SIDECAR_HOME"); override != "" {
		return override
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = "."
	}
	return filepath.Join(home, ".automaton-sidecar")
}

// Load reads config.yaml from the sidecar home, applies env overrides,
// and normalizes defaults. A missing config.yaml is not an error.
func Load() (Config, error) {
	cfg := defaultConfig()
	cfg.HomeDir = HomeDir()

	if err := os.MkdirAll(cfg.HomeDir, 0o755); err != nil {
		return cfg, fmt.Errorf("create sidecar home: %w", err)
	}

	configPath := filepath.Join(cfg.HomeDir, "config.yaml")
	data, err := os.ReadFile(configPath)
	if err != nil && !os.IsNotExist(err) {
		return cfg, fmt.Errorf("read config.yaml: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config.yaml: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	normalize(&cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SIDECAR_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("SIDECAR_BIND_ADDR"); v != "" {
		cfg.BindAddr = v
	}
	if v := os.Getenv("SIDECAR_MARKETPLACE_DIR"); v != "" {
		cfg.MarketplaceDir = v
	}
	if v := os.Getenv("SIDECAR_SERVER_URL"); v != "" {
		cfg.ServerURL = v
	}
	if v := os.Getenv("SIDECAR_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("TELEGRAM_ALERT_TOKEN"); v != "" {
		cfg.Alerts.TelegramToken = v
	}
}

func normalize(cfg *Config) {
	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = "/home/automaton/state.db"
	}
	if cfg.BindAddr == "" {
		cfg.BindAddr = "127.0.0.1:3000"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if strings.TrimSpace(cfg.MarketplaceDir) == "" {
		cfg.MarketplaceDir = "/home/automaton/marketplace"
	}
	if cfg.ServerURL == "" {
		cfg.ServerURL = "http://" + cfg.BindAddr
	}
	cfg.ServerURL = strings.TrimRight(cfg.ServerURL, "/")
}

// Fingerprint returns a stable hash of the active config, exposed on the
// health endpoint so operators can tell which config a daemon is running.
func (c Config) Fingerprint() string {
	h := fnv.New64a()
	fmt.Fprintf(h, "db=%s|bind=%s|market=%s|log=%s|cors=%v",
		c.DBPath, c.BindAddr, c.MarketplaceDir, c.LogLevel, c.CORS.AllowedOrigins)
	return fmt.Sprintf("cfg-%x", h.Sum64())
}
