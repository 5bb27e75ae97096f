package imagegen

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/merlinrabens/image-gen-mcp/internal/resilience"
	"github.com/merlinrabens/image-gen-mcp/internal/selection"
	"github.com/merlinrabens/image-gen-mcp/pkg/backend"
	"github.com/merlinrabens/image-gen-mcp/pkg/cache"
)

// ClientConfig holds all configuration for the client.
type ClientConfig struct {
	// Backends
	Registry    *Registry
	Credentials backend.CredentialSource
	Instances   []backend.Backend

	// Selection
	Categories    []selection.Category
	FallbackChain []string

	// Fallback / retry
	FallbackEnabled bool
	Retry           resilience.RetryPolicy

	// Rate limiting
	RateLimitCapacity int
	RateLimitWindow   time.Duration

	// Caching
	CacheEnabled  bool
	Cache         cache.Cache
	CacheTTL      time.Duration
	CacheCapacity int

	// HTTP
	Timeout time.Duration

	// Logging
	Logger *slog.Logger

	// Metrics
	MetricsRegisterer prometheus.Registerer
}

// Option is a function that configures the Client.
type Option func(*ClientConfig)

// defaultConfig returns sensible defaults.
func defaultConfig() *ClientConfig {
	return &ClientConfig{
		FallbackEnabled:   true,
		Retry:             resilience.DefaultRetryPolicy(),
		RateLimitCapacity: 10,
		RateLimitWindow:   time.Minute,
		CacheEnabled:      true,
		CacheTTL:          5 * time.Minute,
		CacheCapacity:     100,
		Timeout:           120 * time.Second,
		Logger:            slog.Default(),
	}
}

// WithRegistry sets a pre-built backend registry. This overrides
// WithCredentials and WithTimeout for adapter construction.
func WithRegistry(r *Registry) Option {
	return func(c *ClientConfig) {
		c.Registry = r
	}
}

// WithCredentials sets the credential source backends use to discover
// their API keys. Defaults to process environment variables.
func WithCredentials(src backend.CredentialSource) Option {
	return func(c *ClientConfig) {
		c.Credentials = src
	}
}

// WithBackend adds a pre-built backend instance. Useful for custom adapters
// and for tests.
func WithBackend(b Backend) Option {
	return func(c *ClientConfig) {
		c.Instances = append(c.Instances, b)
	}
}

// WithSelectionCategories replaces the built-in prompt classification table.
func WithSelectionCategories(categories []selection.Category) Option {
	return func(c *ClientConfig) {
		c.Categories = categories
	}
}

// WithFallbackChain sets the static backend priority used when no category
// matches a prompt. The chain order is policy, not a fixed property of the
// system.
func WithFallbackChain(chain []string) Option {
	return func(c *ClientConfig) {
		c.FallbackChain = chain
	}
}

// WithFallback enables or disables trying the next candidate backend after
// a retryable failure.
func WithFallback(enabled bool) Option {
	return func(c *ClientConfig) {
		c.FallbackEnabled = enabled
	}
}

// WithRetryPolicy configures the per-backend retry executor.
func WithRetryPolicy(policy RetryPolicy) Option {
	return func(c *ClientConfig) {
		c.Retry = policy
	}
}

// WithRateLimit configures the per-backend sliding window: at most capacity
// admissions per window.
func WithRateLimit(capacity int, window time.Duration) Option {
	return func(c *ClientConfig) {
		c.RateLimitCapacity = capacity
		c.RateLimitWindow = window
	}
}

// WithCache sets a custom cache implementation (e.g. the Redis adapter).
func WithCache(cc Cache) Option {
	return func(c *ClientConfig) {
		c.CacheEnabled = true
		c.Cache = cc
	}
}

// WithCacheCapacity sets how many entries the built-in memory cache holds
// before evicting the oldest. It has no effect on a cache supplied via
// WithCache.
func WithCacheCapacity(n int) Option {
	return func(c *ClientConfig) {
		c.CacheCapacity = n
	}
}

// WithCacheTTL sets how long successful results stay reusable.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *ClientConfig) {
		c.CacheTTL = ttl
	}
}

// WithoutCache disables result caching entirely.
func WithoutCache() Option {
	return func(c *ClientConfig) {
		c.CacheEnabled = false
		c.Cache = nil
	}
}

// WithTimeout sets the per-call HTTP budget used when the client builds the
// shared HTTP client for adapters.
func WithTimeout(d time.Duration) Option {
	return func(c *ClientConfig) {
		c.Timeout = d
	}
}

// WithLogger sets the logger for the client.
func WithLogger(logger *slog.Logger) Option {
	return func(c *ClientConfig) {
		c.Logger = logger
	}
}

// WithMetrics registers the client's Prometheus collectors against reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(c *ClientConfig) {
		c.MetricsRegisterer = reg
	}
}
