// Package main is the entry point for the image generation MCP server.
package main

import (
	"flag"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	imagegen "github.com/merlinrabens/image-gen-mcp"
	redisCache "github.com/merlinrabens/image-gen-mcp/caches/redis"
	"github.com/merlinrabens/image-gen-mcp/internal/config"
	"github.com/merlinrabens/image-gen-mcp/internal/mcpserver"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file")
	envFile := flag.String("env", ".env", "path to env file with backend credentials")
	flag.Parse()

	// Credentials typically live in a local env file during development.
	_ = godotenv.Load(*envFile)

	cfg := config.DefaultConfig()
	if *configPath != "" {
		loaded, err := config.LoadFromFile(*configPath)
		if err != nil {
			slog.Error("failed to load configuration", "error", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	// Stdout carries the MCP protocol stream, so logs go to stderr.
	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	logger.Info("starting image generation server",
		"name", cfg.Server.Name, "version", cfg.Server.Version)

	opts := []imagegen.Option{
		imagegen.WithLogger(logger),
		imagegen.WithFallback(cfg.Selection.FallbackEnabled),
		imagegen.WithRetryPolicy(imagegen.RetryPolicy{
			MaxAttempts: cfg.Retry.MaxAttempts,
			BaseDelay:   cfg.Retry.BaseDelay,
			MaxDelay:    cfg.Retry.MaxDelay,
			Jitter:      cfg.Retry.Jitter,
		}),
		imagegen.WithRateLimit(cfg.RateLimit.RequestsPerWindow, cfg.RateLimit.Window),
	}
	if cfg.Server.RequestTimeout > 0 {
		opts = append(opts, imagegen.WithTimeout(cfg.Server.RequestTimeout))
	}
	if len(cfg.Selection.FallbackChain) > 0 {
		opts = append(opts, imagegen.WithFallbackChain(cfg.Selection.FallbackChain))
	}

	switch {
	case !cfg.Cache.Enabled:
		opts = append(opts, imagegen.WithoutCache())
	case cfg.Cache.Type == "redis":
		rc, err := redisCache.New(redisCache.Config{
			Addr:       cfg.Cache.Redis.Addr,
			Password:   cfg.Cache.Redis.Password,
			DB:         cfg.Cache.Redis.DB,
			Namespace:  cfg.Cache.Redis.Namespace,
			DefaultTTL: cfg.Cache.TTL,
		})
		if err != nil {
			logger.Error("failed to connect to redis cache", "error", err)
			os.Exit(1)
		}
		opts = append(opts, imagegen.WithCache(rc))
	default:
		if cfg.Cache.TTL > 0 {
			opts = append(opts, imagegen.WithCacheTTL(cfg.Cache.TTL))
		}
		if cfg.Cache.MaxEntries > 0 {
			opts = append(opts, imagegen.WithCacheCapacity(cfg.Cache.MaxEntries))
		}
	}

	client, err := imagegen.New(opts...)
	if err != nil {
		logger.Error("failed to build client", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := client.Close(); err != nil {
			logger.Warn("client close", "error", err)
		}
	}()

	for _, entry := range client.Backends() {
		logger.Info("backend registered",
			"backend", entry.Name, "configured", entry.Configured)
	}

	srv := mcpserver.New(client, mcpserver.Options{
		Name:         cfg.Server.Name,
		Version:      cfg.Server.Version,
		InboundRate:  cfg.Server.InboundRatePerSec,
		InboundBurst: cfg.Server.InboundBurst,
		Logger:       logger,
	})

	if err := srv.ServeStdio(); err != nil {
		logger.Error("server terminated", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	hopts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stderr, hopts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, hopts)
	}
	return slog.New(handler)
}
