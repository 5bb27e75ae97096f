package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/merlinrabens/image-gen-mcp/internal/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
server:
  name: image-gen
  request_timeout: 90s
rate_limit:
  requests_per_window: 20
  window: 30s
retry:
  max_attempts: 5
  base_delay: 2s
cache:
  enabled: true
  type: redis
  ttl: 10m
  redis:
    addr: localhost:6379
    namespace: imggen
selection:
  fallback_enabled: true
  fallback_chain: [stability, openai]
logging:
  level: debug
  format: text
`)

	cfg, err := config.LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "image-gen", cfg.Server.Name)
	assert.Equal(t, 90*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, 20, cfg.RateLimit.RequestsPerWindow)
	assert.Equal(t, 30*time.Second, cfg.RateLimit.Window)
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.Retry.BaseDelay)
	assert.Equal(t, "redis", cfg.Cache.Type)
	assert.Equal(t, 10*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, []string{"stability", "openai"}, cfg.Selection.FallbackChain)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFromFileDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  name: image-gen
`)

	cfg, err := config.LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, 120*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, 10, cfg.RateLimit.RequestsPerWindow)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, "local", cfg.Cache.Type)
	assert.Equal(t, 100, cfg.Cache.MaxEntries)
	assert.True(t, cfg.Selection.FallbackEnabled)
}

func TestLoadFromFileEnvExpansion(t *testing.T) {
	t.Setenv("TEST_REDIS_ADDR", "redis.internal:6380")

	path := writeConfig(t, `
server:
  name: image-gen
cache:
  type: redis
  redis:
    addr: ${TEST_REDIS_ADDR}
`)

	cfg, err := config.LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "redis.internal:6380", cfg.Cache.Redis.Addr)
}

func TestLoadFromFileMissing(t *testing.T) {
	_, err := config.LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		errMsg string
	}{
		{
			name:   "valid defaults",
			mutate: func(c *config.Config) {},
		},
		{
			name:   "missing server name",
			mutate: func(c *config.Config) { c.Server.Name = "" },
			errMsg: "server.name",
		},
		{
			name:   "zero retry attempts",
			mutate: func(c *config.Config) { c.Retry.MaxAttempts = 0 },
			errMsg: "retry.max_attempts",
		},
		{
			name:   "jitter out of range",
			mutate: func(c *config.Config) { c.Retry.Jitter = 1.5 },
			errMsg: "retry.jitter",
		},
		{
			name:   "unknown cache type",
			mutate: func(c *config.Config) { c.Cache.Type = "memcached" },
			errMsg: "cache.type",
		},
		{
			name: "redis cache without addr",
			mutate: func(c *config.Config) {
				c.Cache.Type = "redis"
				c.Cache.Redis.Addr = ""
			},
			errMsg: "cache.redis.addr",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			}
		})
	}
}
