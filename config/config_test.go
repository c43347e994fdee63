package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse(nil, env(nil))
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, DriverSQLite, cfg.Driver)
	assert.Equal(t, "ledger.db", cfg.DBPath)
	assert.Equal(t, 5*time.Second, cfg.TxTimeout)
	assert.True(t, cfg.SweepEnabled)
	assert.Equal(t, time.Hour, cfg.SweepInterval)
	assert.Empty(t, cfg.RedisAddr)
}

func TestParse_EnvThenFlags(t *testing.T) {
	cfg, err := Parse([]string{"-port", "9090"}, env(map[string]string{
		"LEDGER_PORT":           "3000",
		"LEDGER_DB_PATH":        ":memory:",
		"LEDGER_TX_TIMEOUT":     "2s",
		"LEDGER_SWEEP_ENABLED":  "false",
		"LEDGER_SWEEP_INTERVAL": "15m",
		"LEDGER_CORS_ORIGINS":   "https://a.example, https://b.example,",
		"LEDGER_REDIS_ADDR":     "localhost:6379",
	}))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port, "flag wins over env")
	assert.Equal(t, ":memory:", cfg.DBPath)
	assert.Equal(t, 2*time.Second, cfg.TxTimeout)
	assert.False(t, cfg.SweepEnabled)
	assert.Equal(t, 15*time.Minute, cfg.SweepInterval)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse(nil, env(map[string]string{"LEDGER_PORT": "eighty"}))
	assert.Error(t, err)

	_, err = Parse([]string{"-driver", "postgres"}, env(nil))
	assert.ErrorContains(t, err, "postgres")

	_, err = Parse([]string{"-driver", "mysql"}, env(nil))
	assert.ErrorContains(t, err, "unknown storage driver")

	_, err = Parse(nil, env(map[string]string{"LEDGER_TX_TIMEOUT": "0s"}))
	assert.Error(t, err)

	cfg, err := Parse(nil, env(map[string]string{"LEDGER_CORS_ORIGINS": ","}))
	require.NoError(t, err)
	assert.Empty(t, cfg.CORSOrigins, "no origins means no cross-origin access")

	cfg, err = Parse([]string{"-driver", "postgres", "-database-url", "postgres://localhost/ledger"}, env(nil))
	require.NoError(t, err)
	assert.Equal(t, DriverPostgres, cfg.Driver)
}
