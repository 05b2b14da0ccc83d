package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, StoreMemory, cfg.Store)
	assert.Equal(t, 10*time.Second, cfg.ActionTimeout)
	assert.True(t, cfg.CacheEnabled)
	assert.Equal(t, "waypoint:", cfg.Redis.Prefix)
	assert.Equal(t, 2, cfg.Webhook.MaxRetries)
	assert.Equal(t, int32(10), cfg.Postgres.MaxConns)
	assert.Contains(t, cfg.PIIPatterns, "(?i)email")
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("WAYPOINT_STORE", "redis")
	t.Setenv("WAYPOINT_ACTION_TIMEOUT", "3s")
	t.Setenv("WAYPOINT_SYNC_ENTRY_ACTIONS", "true")
	t.Setenv("REDIS_PREFIX", "test:")
	t.Setenv("WEBHOOK_MAX_RETRIES", "5")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, StoreRedis, cfg.Store)
	assert.Equal(t, 3*time.Second, cfg.ActionTimeout)
	assert.True(t, cfg.SyncEntryActions)
	assert.Equal(t, "test:", cfg.Redis.Prefix)
	assert.Equal(t, 5, cfg.Webhook.MaxRetries)
}

func TestConfig_EffectiveCacheTTL(t *testing.T) {
	cfg := Config{Store: StoreMemory}
	assert.Zero(t, cfg.EffectiveCacheTTL(), "a private store never needs expiry")

	cfg.Store = StoreRedis
	assert.Equal(t, SharedStoreCacheTTL, cfg.EffectiveCacheTTL())

	cfg.Store = StorePostgres
	cfg.CacheTTL = 5 * time.Second
	assert.Equal(t, 5*time.Second, cfg.EffectiveCacheTTL())
}

func TestLoad_DotEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("WAYPOINT_HTTP_ADDR=:9999\nWAYPOINT_LOG_FORMAT=json\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("WAYPOINT_HTTP_ADDR")
		os.Unsetenv("WAYPOINT_LOG_FORMAT")
	})

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.HTTPAddr)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoad_Invalid(t *testing.T) {
	t.Run("unknown store", func(t *testing.T) {
		t.Setenv("WAYPOINT_STORE", "etcd")
		_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("postgres without url", func(t *testing.T) {
		t.Setenv("WAYPOINT_STORE", "postgres")
		t.Setenv("PG_CONN_URL", "")
		_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("bad duration", func(t *testing.T) {
		t.Setenv("WAYPOINT_ACTION_TIMEOUT", "soon")
		_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
		assert.ErrorIs(t, err, ErrParsingConfig)
	})

	t.Run("bad level", func(t *testing.T) {
		t.Setenv("WAYPOINT_LOG_LEVEL", "loud")
		_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})
}
