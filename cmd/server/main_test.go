package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storestock/backend/internal/cart"
	"storestock/backend/internal/config"
)

func TestValidateConfigAcceptsDefaults(t *testing.T) {
	assert.NoError(t, validateConfig(config.Defaults()))
}

func TestValidateConfigRejectsBadValues(t *testing.T) {
	cases := map[string]func(*config.Config){
		"port":          func(c *config.Config) { c.Port = "http" },
		"offset":        func(c *config.Config) { c.TimezoneOffsetHours = 15 },
		"cache ttl":     func(c *config.Config) { c.ReportCacheTTLSeconds = 0 },
		"cart ttl":      func(c *config.Config) { c.CartTTLHours = -1 },
		"ranking limit": func(c *config.Config) { c.RankingDefaultLimit = 0 },
		"origin":        func(c *config.Config) { c.AppEnv = "production"; c.AllowedOrigin = "*" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := config.Defaults()
			mutate(&cfg)
			assert.Error(t, validateConfig(cfg))
		})
	}
}

func TestLocalCartStore(t *testing.T) {
	s, err := localCartStore(config.Defaults())
	require.NoError(t, err)
	assert.IsType(t, &cart.MemoryStore{}, s)

	cfg := config.Defaults()
	cfg.CartFileDir = t.TempDir()
	s, err = localCartStore(cfg)
	require.NoError(t, err)
	assert.IsType(t, &cart.FileStore{}, s)
}
