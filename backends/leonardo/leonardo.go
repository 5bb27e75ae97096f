// Package leonardo provides the Leonardo AI backend. Generations are
// job-based: submit, then poll the generation record until it completes.
package leonardo

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/merlinrabens/image-gen-mcp/internal/httputil"
	"github.com/merlinrabens/image-gen-mcp/internal/resilience"
	"github.com/merlinrabens/image-gen-mcp/pkg/backend"
	"github.com/merlinrabens/image-gen-mcp/pkg/errors"
	"github.com/merlinrabens/image-gen-mcp/pkg/types"
)

const (
	BackendName    = "leonardo"
	DefaultBaseURL = "https://cloud.leonardo.ai/api/rest/v1"

	credAPIKey = "LEONARDO_API_KEY"
)

// Backend implements the Leonardo generations API adapter.
type Backend struct {
	apiKey  string
	baseURL string
	client  *http.Client
	poll    resilience.PollConfig
}

// New creates the adapter from shared backend configuration.
func New(cfg backend.Config) (backend.Backend, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Backend{
		apiKey:  cfg.Credential(credAPIKey),
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  cfg.Client(),
		poll: resilience.PollConfig{
			InitialDelay: 2 * time.Second,
			MaxDelay:     10 * time.Second,
			Multiplier:   1.5,
			MaxAttempts:  60,
			MaxWait:      5 * time.Minute,
		},
	}, nil
}

func (b *Backend) Name() string                  { return BackendName }
func (b *Backend) Configured() bool              { return b.apiKey != "" }
func (b *Backend) RequiredCredentials() []string { return []string{credAPIKey} }

func (b *Backend) Capabilities() types.Capabilities {
	return types.Capabilities{
		SupportsGenerate: true,
		MaxWidth:         1536,
		MaxHeight:        1536,
	}
}

type generation struct {
	Status string `json:"status"` // PENDING, COMPLETE, FAILED
	Images []struct {
		URL string `json:"url"`
	} `json:"generated_images"`
}

// Generate submits a generation job and polls it to completion.
func (b *Backend) Generate(ctx context.Context, req *types.GenerationRequest) (*types.GenerationResult, error) {
	payload := map[string]any{
		"prompt":     req.Prompt,
		"num_images": 1,
	}
	if req.Model != "" {
		payload["modelId"] = req.Model
	}
	if req.Width > 0 {
		payload["width"] = req.Width
	}
	if req.Height > 0 {
		payload["height"] = req.Height
	}
	if req.Seed != nil {
		payload["seed"] = *req.Seed
	}

	status, body, err := httputil.PostJSON(ctx, b.client, b.baseURL+"/generations", payload, b.headers())
	if err != nil {
		return nil, errors.NewBackendError(BackendName, err.Error(), true)
	}
	if status >= 400 {
		return nil, b.mapError(status, body)
	}

	var submitted struct {
		Job struct {
			GenerationID string `json:"generationId"`
		} `json:"sdGenerationJob"`
	}
	if err := json.Unmarshal(body, &submitted); err != nil || submitted.Job.GenerationID == "" {
		return nil, errors.NewBackendError(BackendName, "submit returned no generation id", true)
	}

	final, err := resilience.Poll(ctx, BackendName, b.poll, func(ctx context.Context) (resilience.PollStatus, generation, error) {
		return b.checkStatus(ctx, submitted.Job.GenerationID)
	})
	if err != nil {
		return nil, err
	}

	images := make([]types.Image, 0, len(final.Images))
	for _, img := range final.Images {
		raw, format, err := httputil.FetchImage(ctx, b.client, img.URL)
		if err != nil {
			return nil, errors.NewBackendError(BackendName, fmt.Sprintf("download image: %v", err), true)
		}
		images = append(images, types.Image{Data: raw, Format: format})
	}
	return &types.GenerationResult{Images: images, Backend: BackendName, Model: req.Model}, nil
}

// Edit is not supported by this adapter.
func (b *Backend) Edit(ctx context.Context, req *types.GenerationRequest) (*types.GenerationResult, error) {
	return nil, errors.NewValidationError("leonardo does not support image editing")
}

func (b *Backend) checkStatus(ctx context.Context, id string) (resilience.PollStatus, generation, error) {
	var gen generation

	status, body, err := httputil.GetJSON(ctx, b.client, b.baseURL+"/generations/"+id, b.headers())
	if err != nil || status >= 400 {
		return resilience.StatusPending, gen, nil
	}

	var parsed struct {
		Gen generation `json:"generations_by_pk"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return resilience.StatusPending, gen, nil
	}
	gen = parsed.Gen

	switch gen.Status {
	case "COMPLETE":
		if len(gen.Images) == 0 {
			return resilience.StatusFailed, gen, errors.NewBackendError(BackendName, "generation complete without images", true)
		}
		return resilience.StatusReady, gen, nil
	case "FAILED":
		return resilience.StatusFailed, gen, errors.NewBackendError(BackendName, "generation failed", false)
	default:
		return resilience.StatusPending, gen, nil
	}
}

func (b *Backend) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + b.apiKey}
}

func (b *Backend) mapError(status int, body []byte) error {
	var errResp struct {
		Error string `json:"error"`
	}
	message := fmt.Sprintf("request failed with status %d", status)
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		message = errResp.Error
	}
	return errors.FromHTTPStatus(BackendName, status, message)
}
