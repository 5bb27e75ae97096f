// Package config provides YAML configuration for the image generation server.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete server configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Retry     RetryConfig     `yaml:"retry"`
	Cache     CacheConfig     `yaml:"cache"`
	Selection SelectionConfig `yaml:"selection"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig contains server identity and request handling settings.
type ServerConfig struct {
	Name              string        `yaml:"name"`
	Version           string        `yaml:"version"`
	RequestTimeout    time.Duration `yaml:"request_timeout"`
	InboundRatePerSec float64       `yaml:"inbound_rate_per_sec"`
	InboundBurst      int           `yaml:"inbound_burst"`
}

// RateLimitConfig defines per-backend admission control parameters.
type RateLimitConfig struct {
	RequestsPerWindow int           `yaml:"requests_per_window"`
	Window            time.Duration `yaml:"window"`
}

// RetryConfig defines retry and backoff parameters.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
	Jitter      float64       `yaml:"jitter"`
}

// CacheConfig defines result caching settings.
type CacheConfig struct {
	Enabled    bool          `yaml:"enabled"`
	Type       string        `yaml:"type"` // local, redis
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"max_entries"`
	Redis      RedisConfig   `yaml:"redis"`
}

// RedisConfig contains Redis connection settings for the distributed cache.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	Namespace string `yaml:"namespace"`
}

// SelectionConfig contains backend selection settings.
type SelectionConfig struct {
	FallbackEnabled bool     `yaml:"fallback_enabled"`
	FallbackChain   []string `yaml:"fallback_chain"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Name:              "image-gen",
			Version:           "1.0.0",
			RequestTimeout:    120 * time.Second,
			InboundRatePerSec: 5,
			InboundBurst:      10,
		},
		RateLimit: RateLimitConfig{
			RequestsPerWindow: 10,
			Window:            time.Minute,
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   time.Second,
			MaxDelay:    10 * time.Second,
			Jitter:      0.2,
		},
		Cache: CacheConfig{
			Enabled:    true,
			Type:       "local",
			TTL:        5 * time.Minute,
			MaxEntries: 100,
		},
		Selection: SelectionConfig{
			FallbackEnabled: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadFromFile reads and parses a YAML configuration file.
// Environment variables in the format ${VAR_NAME} are expanded.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Name == "" {
		return fmt.Errorf("server.name is required")
	}
	if c.Server.RequestTimeout < 0 {
		return fmt.Errorf("server.request_timeout cannot be negative")
	}
	if c.RateLimit.RequestsPerWindow < 0 {
		return fmt.Errorf("rate_limit.requests_per_window cannot be negative")
	}
	if c.RateLimit.Window < 0 {
		return fmt.Errorf("rate_limit.window cannot be negative")
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1")
	}
	if c.Retry.Jitter < 0 || c.Retry.Jitter > 1 {
		return fmt.Errorf("retry.jitter must be between 0 and 1")
	}
	switch c.Cache.Type {
	case "", "local", "redis":
	default:
		return fmt.Errorf("cache.type must be local or redis, got %q", c.Cache.Type)
	}
	if c.Cache.Type == "redis" && c.Cache.Redis.Addr == "" {
		return fmt.Errorf("cache.redis.addr is required when cache.type is redis")
	}
	return nil
}
