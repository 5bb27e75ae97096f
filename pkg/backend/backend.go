// Package backend defines the public interface every image backend adapter
// implements. Adapters translate the unified request into one service's API
// and map its failures onto the shared error taxonomy; they hold no state the
// orchestrator depends on.
package backend

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/merlinrabens/image-gen-mcp/pkg/types"
)

// Backend is the uniform contract implemented by each image service adapter.
type Backend interface {
	// Name returns the backend identifier (e.g. "openai", "ideogram").
	Name() string

	// Configured reports whether the backend has the credentials it needs.
	Configured() bool

	// RequiredCredentials lists the credential keys the backend reads.
	RequiredCredentials() []string

	// Capabilities describes supported operations, dimension limits and models.
	Capabilities() types.Capabilities

	// Generate creates images from the request prompt. Implementations may
	// internally submit a job and poll for completion.
	Generate(ctx context.Context, req *types.GenerationRequest) (*types.GenerationResult, error)

	// Edit modifies the request's base image guided by the prompt.
	Edit(ctx context.Context, req *types.GenerationRequest) (*types.GenerationResult, error)
}

// CredentialSource resolves credential keys to values. The orchestrator core
// never reads configuration directly; adapters discover their keys through
// this interface.
type CredentialSource interface {
	Get(key string) (string, bool)
}

// EnvCredentials resolves credentials from process environment variables.
type EnvCredentials struct{}

// Get implements CredentialSource.
func (EnvCredentials) Get(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}

// StaticCredentials resolves credentials from a fixed map. Useful in tests
// and embedded setups.
type StaticCredentials map[string]string

// Get implements CredentialSource.
func (s StaticCredentials) Get(key string) (string, bool) {
	v, ok := s[key]
	return v, ok && v != ""
}

// Config carries everything a factory needs to build an adapter instance.
type Config struct {
	Credentials CredentialSource
	HTTPClient  *http.Client
	BaseURL     string        // override the adapter's default endpoint
	Timeout     time.Duration // per-call budget when the adapter builds its own client
}

// Client returns the configured HTTP client or a default one.
func (c Config) Client() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
		Timeout: timeout,
	}
}

// Credential is a convenience lookup that tolerates a nil source.
func (c Config) Credential(key string) string {
	if c.Credentials == nil {
		return ""
	}
	v, _ := c.Credentials.Get(key)
	return v
}

// Factory creates a backend instance from configuration.
type Factory func(cfg Config) (Backend, error)
