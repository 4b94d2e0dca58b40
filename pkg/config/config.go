// Package config loads the runner configuration from a YAML file with
// environment-variable overrides for deploy-specific values.
package config

import (
	"os"
	"strconv"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ExchangeConfig is the transport section.
type ExchangeConfig struct {
	BaseURL       string `yaml:"base_url"`
	Window        int64  `yaml:"window"`
	RetryAttempts int    `yaml:"retry_attempts"`
	RetryWaitMS   int    `yaml:"retry_wait_ms"`
}

// StrategyConfig is the pool policy defaults section. Per-pool settings in
// the directory override these. The json tags let the runner feed it through
// the same overlay parser pool blobs use.
type StrategyConfig struct {
	Symbols         []string `yaml:"symbols" json:"symbols,omitempty"`
	Leverage        int      `yaml:"leverage" json:"leverage,omitempty"`
	MinDepositUSD   string   `yaml:"min_deposit_usd" json:"min_deposit_usd,omitempty"`
	TargetPositions int      `yaml:"target_positions" json:"target_positions,omitempty"`
	Ladder          []string `yaml:"ladder" json:"ladder,omitempty"`
	TopUpSymbol     string   `yaml:"top_up_symbol" json:"top_up_symbol,omitempty"`
	TopUpChain      string   `yaml:"top_up_chain" json:"top_up_chain,omitempty"`
	FundingPair     string   `yaml:"funding_pair" json:"funding_pair,omitempty"`
	IntervalMinutes int      `yaml:"interval_minutes" json:"interval_minutes,omitempty"`
}

// LogConfig is the logging section.
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// Config is the full runner configuration.
type Config struct {
	Exchange    ExchangeConfig `yaml:"exchange"`
	Strategy    StrategyConfig `yaml:"strategy"`
	Log         LogConfig      `yaml:"log"`
	DatabaseDSN string         `yaml:"database"`
	MetricsAddr string         `yaml:"metrics_addr"`
}

func defaults() Config {
	return Config{
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 14,
		},
		DatabaseDSN: "poolbot.db",
		MetricsAddr: ":9090",
	}
}

// Load reads path (when non-empty) and applies environment overrides.
// A missing file with an empty path is not an error; the defaults plus
// environment carry a minimal deployment.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "reading config %s", path)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, errors.Wrapf(err, "parsing config %s", path)
		}
	}

	cfg.Exchange.BaseURL = envString("POOLBOT_BASE_URL", cfg.Exchange.BaseURL)
	cfg.Exchange.Window = envInt64("POOLBOT_WINDOW", cfg.Exchange.Window)
	cfg.DatabaseDSN = envString("POOLBOT_DB", cfg.DatabaseDSN)
	cfg.MetricsAddr = envString("POOLBOT_METRICS_ADDR", cfg.MetricsAddr)
	cfg.Log.Level = envString("POOLBOT_LOG_LEVEL", cfg.Log.Level)
	cfg.Log.File = envString("POOLBOT_LOG_FILE", cfg.Log.File)

	return &cfg, nil
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}
