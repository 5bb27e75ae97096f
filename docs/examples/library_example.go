// Example: Using the image generation client as a library
//
// This example generates one image with automatic backend selection and
// one with an explicit backend, then prints the diagnostics listing.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	imagegen "github.com/merlinrabens/image-gen-mcp"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	client, err := imagegen.New(
		imagegen.WithLogger(logger),
		imagegen.WithCacheTTL(10*time.Minute),
		imagegen.WithRateLimit(10, time.Minute),
	)
	if err != nil {
		logger.Error("client init failed", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	// Automatic selection: the prompt classifier picks the backend.
	result, err := client.Generate(ctx, &imagegen.GenerationRequest{
		Prompt: "a logo with the text 'Acme Robotics' in clean typography",
	})
	if err != nil {
		logger.Error("generation failed", "error", err)
		os.Exit(1)
	}
	fmt.Printf("got %d image(s) from %s\n", len(result.Images), result.Backend)

	// Explicit backend with fallback disabled.
	seed := int64(42)
	result, err = client.Generate(ctx, &imagegen.GenerationRequest{
		Prompt:          "photorealistic portrait, golden hour",
		Backend:         "stability",
		Width:           1024,
		Height:          1024,
		Seed:            &seed,
		DisableFallback: true,
	})
	if err != nil {
		logger.Error("generation failed", "error", err)
	} else {
		fmt.Printf("got %d image(s) from %s (%s)\n", len(result.Images), result.Backend, result.Model)
	}

	for _, entry := range client.Backends() {
		fmt.Printf("%-10s configured=%v edit=%v\n",
			entry.Name, entry.Configured, entry.Capabilities.SupportsEdit)
	}
}
