package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CONFIG_FILE", "PORT", "ALLOWED_ORIGIN", "DATABASE_URL", "REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB",
		"TIMEZONE_OFFSET_HOURS", "REPORT_CACHE_TTL_SECONDS", "CART_TTL_HOURS", "CART_FILE_DIR",
		"RANKING_DEFAULT_LIMIT", "LOG_LEVEL", "APP_ENV",
	} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
	t.Chdir(t.TempDir())
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
	assert.Equal(t, ":8080", cfg.Address())
	assert.Equal(t, 8, cfg.TimezoneOffsetHours)
}

func TestLoadFileThenEnv(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: \"9090\"\ntimezone_offset_hours: -5\nranking_default_limit: 25\n"), 0o644))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("RANKING_DEFAULT_LIMIT", "3")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, -5, cfg.TimezoneOffsetHours)
	assert.Equal(t, 3, cfg.RankingDefaultLimit)
}

func TestLoadReadsDotEnvWithoutOverriding(t *testing.T) {
	clearEnv(t)
	require.NoError(t, os.WriteFile(".env", []byte("LOG_LEVEL=debug\nPORT=7070\n"), 0o644))
	t.Setenv("PORT", "6060")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "6060", cfg.Port)
}

func TestLoadRejectsBadNumbers(t *testing.T) {
	clearEnv(t)
	t.Setenv("CART_TTL_HOURS", "three days")

	_, err := Load()
	assert.ErrorContains(t, err, "CART_TTL_HOURS")
}

func TestLoadReportsFirstBadNumberInFixedOrder(t *testing.T) {
	clearEnv(t)
	t.Setenv("RANKING_DEFAULT_LIMIT", "ten")
	t.Setenv("CART_TTL_HOURS", "three days")
	t.Setenv("TIMEZONE_OFFSET_HOURS", "UTC+8")

	for range 5 {
		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "TIMEZONE_OFFSET_HOURS")
		assert.NotContains(t, err.Error(), "CART_TTL_HOURS")
	}
}
