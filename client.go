package imagegen

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/merlinrabens/image-gen-mcp/backends"
	internalcache "github.com/merlinrabens/image-gen-mcp/internal/cache"
	"github.com/merlinrabens/image-gen-mcp/internal/metrics"
	"github.com/merlinrabens/image-gen-mcp/internal/resilience"
	"github.com/merlinrabens/image-gen-mcp/internal/selection"
	"github.com/merlinrabens/image-gen-mcp/pkg/backend"
	"github.com/merlinrabens/image-gen-mcp/pkg/errors"
	"github.com/merlinrabens/image-gen-mcp/pkg/types"
)

type operation string

const (
	opGenerate operation = "generate"
	opEdit     operation = "edit"
)

// Client is the orchestrator and the only entry point: it composes backend
// selection, admission control, caching, retries, async polling and fallback
// into the end-to-end request lifecycle.
//
// Client is safe for concurrent use by multiple goroutines. Each request
// runs on its caller's goroutine; shared state is limited to the rate
// limiter's windows and the result cache, both internally synchronized.
type Client struct {
	registry *backends.Registry
	selector *selection.Engine
	limiter  *resilience.SlidingWindowLimiter
	retrier  *resilience.Retrier
	cache    Cache
	config   *ClientConfig
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// New creates a client with the given options.
func New(opts ...Option) (*Client, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	registry := cfg.Registry
	if registry == nil {
		registry = backends.NewRegistry(backend.Config{
			Credentials: cfg.Credentials,
			Timeout:     cfg.Timeout,
		})
	}
	for _, inst := range cfg.Instances {
		registry.Add(inst)
	}

	var selOpts []selection.Option
	if len(cfg.Categories) > 0 {
		selOpts = append(selOpts, selection.WithCategories(cfg.Categories))
	}
	if len(cfg.FallbackChain) > 0 {
		selOpts = append(selOpts, selection.WithPriority(cfg.FallbackChain))
	}

	c := &Client{
		registry: registry,
		selector: selection.NewEngine(selOpts...),
		limiter:  resilience.NewSlidingWindowLimiter(cfg.RateLimitCapacity, cfg.RateLimitWindow),
		retrier:  resilience.NewRetrier(cfg.Retry),
		config:   cfg,
		logger:   cfg.Logger,
	}

	if cfg.CacheEnabled {
		c.cache = cfg.Cache
		if c.cache == nil {
			c.cache = internalcache.NewMemory(internalcache.MemoryConfig{
				MaxEntries: cfg.CacheCapacity,
				DefaultTTL: cfg.CacheTTL,
			})
		}
	}
	if cfg.MetricsRegisterer != nil {
		c.metrics = metrics.New(cfg.MetricsRegisterer)
	}

	c.logger.Info("imagegen client initialized",
		"backends", len(registry.Names()),
		"configured", len(registry.Configured()),
		"cache_enabled", cfg.CacheEnabled,
		"fallback_enabled", cfg.FallbackEnabled,
	)
	return c, nil
}

// Generate creates images for the request. It handles backend selection,
// rate limiting, caching, retries and fallback automatically.
func (c *Client) Generate(ctx context.Context, req *GenerationRequest) (*GenerationResult, error) {
	return c.run(ctx, req, opGenerate)
}

// Edit modifies the request's base image guided by the prompt.
func (c *Client) Edit(ctx context.Context, req *GenerationRequest) (*GenerationResult, error) {
	return c.run(ctx, req, opEdit)
}

// Backends reports diagnostics for every registered backend.
func (c *Client) Backends() []BackendStatus {
	return c.registry.Status()
}

// Close releases resources held by the client.
func (c *Client) Close() error {
	if c.cache != nil {
		return c.cache.Close()
	}
	return nil
}

// run drives one request through the full pipeline.
func (c *Client) run(ctx context.Context, req *GenerationRequest, op operation) (*GenerationResult, error) {
	if req == nil {
		return nil, errors.NewValidationError("request is nil")
	}
	if err := c.validate(req, op); err != nil {
		return nil, err
	}

	candidates, err := c.candidates(req, op)
	if err != nil {
		return nil, err
	}

	log := c.logger.With("request_id", uuid.NewString(), "operation", string(op))
	fallback := c.config.FallbackEnabled && !req.DisableFallback

	var attempts []errors.Attempt
	for i, name := range candidates {
		if i > 0 {
			if c.metrics != nil {
				c.metrics.Fallbacks.Inc()
			}
			log.Debug("falling back to next candidate", "backend", name, "attempt", i+1)
		}

		result, err := c.tryBackend(ctx, log, name, req, op)
		if err == nil {
			return result, nil
		}

		attempts = append(attempts, errors.Attempt{Backend: name, Err: err})

		if !errors.IsRetryable(err) {
			// Permanent failure: surface immediately, no fallback.
			return nil, err
		}
		if !fallback {
			return nil, err
		}
	}

	if len(attempts) == 1 {
		return nil, attempts[0].Err
	}
	return nil, &errors.FallbackError{Attempts: attempts}
}

// tryBackend runs admission, cache lookup and the retry-wrapped backend
// call for one candidate. No lock is held across the network call.
func (c *Client) tryBackend(ctx context.Context, log *slog.Logger, name string, req *GenerationRequest, op operation) (*GenerationResult, error) {
	b, ok := c.registry.Get(name)
	if !ok {
		return nil, errors.NewConfigurationError(fmt.Sprintf("backend %s is not registered", name))
	}

	if err := c.limiter.Admit(name); err != nil {
		if c.metrics != nil {
			c.metrics.RateLimited.WithLabelValues(name).Inc()
		}
		return nil, err
	}

	cacheKey := ""
	if c.cache != nil && op == opGenerate {
		cacheKey = internalcache.Key(name, req)
		if cached := c.cacheLookup(ctx, cacheKey); cached != nil {
			log.Debug("cache hit", "backend", name)
			return cached, nil
		}
	}

	start := time.Now()
	var result *GenerationResult
	err := c.retrier.Do(ctx, name, func(ctx context.Context) error {
		var callErr error
		result, callErr = c.dispatch(ctx, b, req, op)
		return callErr
	})

	if c.metrics != nil {
		outcome := "success"
		if err != nil {
			outcome = "failure"
		}
		c.metrics.RequestsTotal.WithLabelValues(name, string(op), outcome).Inc()
		c.metrics.RequestDuration.WithLabelValues(name, string(op)).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		return nil, err
	}

	if cacheKey != "" {
		c.cacheStore(ctx, log, cacheKey, result)
	}
	return result, nil
}

func (c *Client) dispatch(ctx context.Context, b Backend, req *GenerationRequest, op operation) (*GenerationResult, error) {
	if op == opEdit {
		return b.Edit(ctx, req)
	}
	return b.Generate(ctx, req)
}

// validate checks request shape before any backend work.
func (c *Client) validate(req *GenerationRequest, op operation) error {
	if err := req.Validate(); err != nil {
		return errors.NewValidationError(err.Error())
	}
	if op == opEdit && req.BaseImage.Empty() {
		return errors.NewValidationError("edit requires a base image")
	}
	return nil
}

// candidates resolves the ordered backend list for the request, filtered to
// backends whose capabilities accept it.
func (c *Client) candidates(req *GenerationRequest, op operation) ([]string, error) {
	configured := c.registry.Configured()
	if len(configured) == 0 {
		return nil, errors.NewConfigurationError("no backend is configured")
	}

	var ordered []string
	if req.Auto() {
		ordered = c.selector.Candidates(req.Prompt, configured)
	} else {
		if _, ok := c.registry.Get(req.Backend); !ok {
			return nil, errors.NewConfigurationError(fmt.Sprintf("unknown backend %q", req.Backend))
		}
		found := false
		for _, name := range configured {
			if name == req.Backend {
				found = true
				break
			}
		}
		if !found {
			return nil, errors.NewConfigurationError(fmt.Sprintf("backend %q is not configured", req.Backend))
		}
		ordered = []string{req.Backend}
		// An explicitly named backend may still fall back after a retryable
		// failure unless fallback is disabled.
		if c.config.FallbackEnabled && !req.DisableFallback {
			for _, name := range c.selector.Candidates(req.Prompt, configured) {
				if name != req.Backend {
					ordered = append(ordered, name)
				}
			}
		}
	}

	out := make([]string, 0, len(ordered))
	for _, name := range ordered {
		b, ok := c.registry.Get(name)
		if !ok {
			continue
		}
		caps := b.Capabilities()
		if op == opGenerate && !caps.SupportsGenerate {
			continue
		}
		if op == opEdit && !caps.SupportsEdit {
			continue
		}
		if !caps.Accepts(req.Width, req.Height) {
			continue
		}
		out = append(out, name)
	}
	if len(out) == 0 {
		return nil, errors.NewNoCompatibleBackendError(
			fmt.Sprintf("no configured backend supports %dx%d %s", req.Width, req.Height, op))
	}
	return out, nil
}

func (c *Client) cacheLookup(ctx context.Context, key string) *GenerationResult {
	data, err := c.cache.Get(ctx, key)
	if err != nil || data == nil {
		if c.metrics != nil {
			c.metrics.CacheEvents.WithLabelValues("miss").Inc()
		}
		return nil
	}
	var result types.GenerationResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil
	}
	if c.metrics != nil {
		c.metrics.CacheEvents.WithLabelValues("hit").Inc()
	}
	return &result
}

// cacheStore persists a successful result. Failed calls never reach here,
// so the cache only ever holds complete results.
func (c *Client) cacheStore(ctx context.Context, log *slog.Logger, key string, result *GenerationResult) {
	data, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, key, data, c.config.CacheTTL); err != nil {
		log.Debug("cache store failed", "error", err)
		return
	}
	if c.metrics != nil {
		c.metrics.CacheEvents.WithLabelValues("store").Inc()
	}
}
