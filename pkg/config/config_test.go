package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "poolbot.db", cfg.DatabaseDSN)
	require.Equal(t, ":9090", cfg.MetricsAddr)
	require.Equal(t, "info", cfg.Log.Level)
}

func TestLoadFileOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
exchange:
  base_url: https://api.backpack.exchange
  window: 10000
strategy:
  symbols: [BTC_USDC_PERP]
  leverage: 10
database: /var/lib/poolbot/directory.db
log:
  level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "https://api.backpack.exchange", cfg.Exchange.BaseURL)
	require.Equal(t, int64(10000), cfg.Exchange.Window)
	require.Equal(t, []string{"BTC_USDC_PERP"}, cfg.Strategy.Symbols)
	require.Equal(t, 10, cfg.Strategy.Leverage)
	require.Equal(t, "/var/lib/poolbot/directory.db", cfg.DatabaseDSN)
	require.Equal(t, "debug", cfg.Log.Level)
	// Sections the file leaves out keep their defaults.
	require.Equal(t, ":9090", cfg.MetricsAddr)
	require.Equal(t, 5, cfg.Log.MaxBackups)
}

func TestLoadEnvBeatsFile(t *testing.T) {
	path := writeConfig(t, `
exchange:
  base_url: https://file.example
  window: 10000
database: file.db
`)
	t.Setenv("POOLBOT_BASE_URL", "https://env.example")
	t.Setenv("POOLBOT_DB", "env.db")
	t.Setenv("POOLBOT_WINDOW", "not-a-number")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "https://env.example", cfg.Exchange.BaseURL)
	require.Equal(t, "env.db", cfg.DatabaseDSN)
	// An unparsable numeric override falls back to the file's value.
	require.Equal(t, int64(10000), cfg.Exchange.Window)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	_, err = Load(writeConfig(t, "exchange: [not, a, mapping]"))
	require.Error(t, err)
}
