package imagegen

import (
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"

	"github.com/merlinrabens/image-gen-mcp/internal/selection"
	"github.com/merlinrabens/image-gen-mcp/pkg/backend"
)

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	assert.True(t, cfg.FallbackEnabled)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 10, cfg.RateLimitCapacity)
	assert.Equal(t, time.Minute, cfg.RateLimitWindow)
	assert.True(t, cfg.CacheEnabled)
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL)
	assert.Equal(t, 100, cfg.CacheCapacity)
	assert.Equal(t, 120*time.Second, cfg.Timeout)
	assert.NotNil(t, cfg.Logger)
	assert.Nil(t, cfg.Cache)
	assert.Nil(t, cfg.Registry)
}

func TestOptionsApply(t *testing.T) {
	reg := prometheus.NewRegistry()
	logger := slog.Default()
	creds := backend.StaticCredentials{"K": "v"}
	categories := []selection.Category{{Name: "custom", Keywords: []string{"x"}}}

	cfg := defaultConfig()
	for _, opt := range []Option{
		WithCredentials(creds),
		WithSelectionCategories(categories),
		WithFallbackChain([]string{"stability", "openai"}),
		WithFallback(false),
		WithRetryPolicy(RetryPolicy{MaxAttempts: 7}),
		WithRateLimit(42, 30*time.Second),
		WithCacheTTL(time.Hour),
		WithCacheCapacity(1000),
		WithTimeout(time.Minute),
		WithLogger(logger),
		WithMetrics(reg),
	} {
		opt(cfg)
	}

	assert.Equal(t, creds, cfg.Credentials)
	assert.Equal(t, categories, cfg.Categories)
	assert.Equal(t, []string{"stability", "openai"}, cfg.FallbackChain)
	assert.False(t, cfg.FallbackEnabled)
	assert.Equal(t, 7, cfg.Retry.MaxAttempts)
	assert.Equal(t, 42, cfg.RateLimitCapacity)
	assert.Equal(t, 30*time.Second, cfg.RateLimitWindow)
	assert.Equal(t, time.Hour, cfg.CacheTTL)
	assert.Equal(t, 1000, cfg.CacheCapacity)
	assert.Equal(t, time.Minute, cfg.Timeout)
	assert.Same(t, logger, cfg.Logger)
	assert.Equal(t, prometheus.Registerer(reg), cfg.MetricsRegisterer)
}

func TestWithoutCacheClearsCacheState(t *testing.T) {
	cfg := defaultConfig()
	WithoutCache()(cfg)

	assert.False(t, cfg.CacheEnabled)
	assert.Nil(t, cfg.Cache)
}

func TestWithCacheEnablesCaching(t *testing.T) {
	cfg := defaultConfig()
	WithoutCache()(cfg)
	WithCache(nil)(cfg)

	assert.True(t, cfg.CacheEnabled)
}
