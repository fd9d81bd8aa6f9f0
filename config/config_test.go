package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alejandrodnm/betledger/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv evita que el entorno del CI contamine los tests.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"LOG_LEVEL", "LOG_FORMAT", "LEDGER_STORAGE_DRIVER", "LEDGER_STORAGE_DSN",
		"LEDGER_ADMIN_SECRET", "REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB",
	} {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := config.Load(writeConfig(t, "{}\n"))
	require.NoError(t, err)

	assert.Equal(t, int64(10), cfg.Market.MinWager)
	assert.Equal(t, int64(500), cfg.Market.MaxWager)
	assert.Equal(t, int64(5), cfg.Market.PayoutMultiplier)
	assert.Equal(t, 5, cfg.Market.LeaderboardSize)
	assert.Equal(t, "KC", cfg.Market.Currency)
	assert.Equal(t, "json", cfg.Storage.Driver)
	assert.Equal(t, "bets_data.json", cfg.Storage.DSN)
	assert.Equal(t, 5*time.Second, cfg.LockTTL())
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Empty(t, cfg.Metrics.Addr)
}

func TestLoad_YAMLValues(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
market:
  min_wager: 1
  max_wager: 100
  payout_multiplier: 3
  submit_rate_per_sec: 2
storage:
  driver: sqlite
log:
  level: debug
  format: json
metrics:
  addr: ":9108"
`)
	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, int64(1), cfg.Market.MinWager)
	assert.Equal(t, int64(100), cfg.Market.MaxWager)
	assert.Equal(t, int64(3), cfg.Market.PayoutMultiplier)
	assert.Equal(t, 1, cfg.Market.SubmitBurst, "burst mínimo si hay rate")
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, "betledger.db", cfg.Storage.DSN)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, ":9108", cfg.Metrics.Addr)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("LEDGER_STORAGE_DRIVER", "redis")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("LEDGER_ADMIN_SECRET", "s3cret")

	cfg, err := config.Load(writeConfig(t, "log:\n  level: debug\n"))
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "redis", cfg.Storage.Driver)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 3, cfg.Redis.DB)
	assert.Equal(t, "s3cret", cfg.Auth.AdminSecret)
	assert.Equal(t, "betledger", cfg.Redis.KeyPrefix)
}

func TestLoad_Errors(t *testing.T) {
	clearEnv(t)

	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err, "ruta explícita inexistente")

	_, err = config.Load(writeConfig(t, "market: [oops"))
	assert.Error(t, err)

	_, err = config.Load(writeConfig(t, "storage:\n  driver: postgres\n"))
	assert.ErrorContains(t, err, "unknown storage driver")

	_, err = config.Load(writeConfig(t, "storage:\n  driver: redis\n"))
	assert.ErrorContains(t, err, "redis.addr")

	_, err = config.Load(writeConfig(t, "market:\n  min_wager: 100\n  max_wager: 50\n"))
	assert.Error(t, err)
}

func TestLoad_MissingDefaultPathUsesDefaults(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())

	cfg, err := config.Load(config.DefaultPath)
	require.NoError(t, err)
	assert.Equal(t, "json", cfg.Storage.Driver)
}
