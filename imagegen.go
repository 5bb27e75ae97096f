// Package imagegen brokers image generation requests across heterogeneous
// backend services behind one uniform contract.
//
// The client handles backend selection, per-backend rate limiting, result
// caching, retries with backoff, async job polling and fallback across
// backends automatically:
//
//	client, err := imagegen.New(
//	    imagegen.WithCredentials(backend.EnvCredentials{}),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	result, err := client.Generate(ctx, &imagegen.GenerationRequest{
//	    Prompt:  "a lighthouse at dusk, oil painting",
//	    Backend: imagegen.BackendAuto,
//	})
package imagegen

import (
	"github.com/merlinrabens/image-gen-mcp/backends"
	"github.com/merlinrabens/image-gen-mcp/internal/resilience"
	"github.com/merlinrabens/image-gen-mcp/internal/selection"
	"github.com/merlinrabens/image-gen-mcp/pkg/backend"
	"github.com/merlinrabens/image-gen-mcp/pkg/cache"
	"github.com/merlinrabens/image-gen-mcp/pkg/errors"
	"github.com/merlinrabens/image-gen-mcp/pkg/types"
)

// Version is the current version of the library.
const Version = "1.0.0"

// Re-export core request/response types for convenience.
type (
	// GenerationRequest describes one image generation or edit request.
	GenerationRequest = types.GenerationRequest

	// GenerationResult is the normalized output of one successful call.
	GenerationResult = types.GenerationResult

	// Image is a single generated image.
	Image = types.Image

	// ImageInput carries a base image or mask for edit requests.
	ImageInput = types.ImageInput

	// Capabilities describes what a backend can do.
	Capabilities = types.Capabilities
)

// Re-export backend types.
type (
	// Backend is the uniform contract implemented by every adapter.
	Backend = backend.Backend

	// BackendFactory creates backend instances from configuration.
	BackendFactory = backend.Factory

	// CredentialSource resolves credential keys to values.
	CredentialSource = backend.CredentialSource

	// Registry holds lazily constructed backend instances.
	Registry = backends.Registry

	// BackendStatus is one row of the diagnostics listing.
	BackendStatus = backends.StatusEntry
)

// Re-export cache and policy types.
type (
	// Cache is the result cache contract.
	Cache = cache.Cache

	// RetryPolicy controls the retry executor's schedule.
	RetryPolicy = resilience.RetryPolicy

	// SelectionCategory is one row of the prompt classification table.
	SelectionCategory = selection.Category
)

// Re-export error types.
type (
	// ImageError is the standardized error for a failed operation.
	ImageError = errors.ImageError

	// FallbackError aggregates every attempted backend's failure.
	FallbackError = errors.FallbackError
)

// BackendAuto requests automatic backend selection.
const BackendAuto = types.BackendAuto

// Re-export error kind constants.
const (
	KindValidation          = errors.KindValidation
	KindConfiguration       = errors.KindConfiguration
	KindRateLimit           = errors.KindRateLimit
	KindBackend             = errors.KindBackend
	KindTimeout             = errors.KindTimeout
	KindRetriesExhausted    = errors.KindRetriesExhausted
	KindNoCompatibleBackend = errors.KindNoCompatibleBackend
)

// IsRetryable reports whether err is classified as transient.
var IsRetryable = errors.IsRetryable
