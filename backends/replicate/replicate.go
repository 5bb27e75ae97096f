// Package replicate provides the Replicate backend. Replicate is job-based:
// a prediction is submitted and then polled until it reaches a terminal
// state. Predictions usually settle within seconds, so polling starts fast.
package replicate

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
	BackendName    = "replicate"
	DefaultBaseURL = "https://api.replicate.com"

	credAPIToken = "REPLICATE_API_TOKEN"

	defaultModel = "black-forest-labs/flux-dev"
)

// Backend implements the Replicate predictions API adapter.
type Backend struct {
	apiToken string
	baseURL  string
	client   *http.Client
	poll     resilience.PollConfig
}

// New creates the adapter from shared backend configuration.
func New(cfg backend.Config) (backend.Backend, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Backend{
		apiToken: cfg.Credential(credAPIToken),
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		client:   cfg.Client(),
		poll: resilience.PollConfig{
			InitialDelay: 500 * time.Millisecond,
			MaxDelay:     5 * time.Second,
			Multiplier:   1.5,
			MaxAttempts:  120,
			MaxWait:      5 * time.Minute,
		},
	}, nil
}

func (b *Backend) Name() string                  { return BackendName }
func (b *Backend) Configured() bool              { return b.apiToken != "" }
func (b *Backend) RequiredCredentials() []string { return []string{credAPIToken} }

func (b *Backend) Capabilities() types.Capabilities {
	return types.Capabilities{
		SupportsGenerate: true,
		MaxWidth:         2048,
		MaxHeight:        2048,
		Models:           []string{"black-forest-labs/flux-dev", "black-forest-labs/flux-schnell", "stability-ai/sdxl"},
	}
}

type prediction struct {
	ID     string `json:"id"`
	Status string `json:"status"` // starting, processing, succeeded, failed, canceled
	Output any    `json:"output"`
	Error  string `json:"error"`
}

// Generate submits a prediction and polls it to completion.
func (b *Backend) Generate(ctx context.Context, req *types.GenerationRequest) (*types.GenerationResult, error) {
	model := req.Model
	if model == "" {
		model = defaultModel
	}

	input := map[string]any{"prompt": req.Prompt}
	if req.Width > 0 {
		input["width"] = req.Width
	}
	if req.Height > 0 {
		input["height"] = req.Height
	}
	if req.Seed != nil {
		input["seed"] = *req.Seed
	}
	if req.Guidance != nil {
		input["guidance"] = *req.Guidance
	}
	if req.Steps > 0 {
		input["num_inference_steps"] = req.Steps
	}

	status, body, err := httputil.PostJSON(ctx, b.client,
		fmt.Sprintf("%s/v1/models/%s/predictions", b.baseURL, model),
		map[string]any{"input": input}, b.headers())
	if err != nil {
		return nil, errors.NewBackendError(BackendName, err.Error(), true)
	}
	if status >= 400 {
		return nil, b.mapError(status, body)
	}

	var submitted prediction
	if err := json.Unmarshal(body, &submitted); err != nil {
		return nil, errors.NewBackendError(BackendName, fmt.Sprintf("unmarshal prediction: %v", err), false)
	}
	if submitted.ID == "" {
		return nil, errors.NewBackendError(BackendName, "submit returned no prediction id", true)
	}

	final, err := resilience.Poll(ctx, BackendName, b.poll, func(ctx context.Context) (resilience.PollStatus, prediction, error) {
		return b.checkStatus(ctx, submitted.ID)
	})
	if err != nil {
		return nil, err
	}
	return b.extractResult(ctx, model, final)
}

// Edit is not supported by this adapter.
func (b *Backend) Edit(ctx context.Context, req *types.GenerationRequest) (*types.GenerationResult, error) {
	return nil, errors.NewValidationError("replicate does not support image editing")
}

// checkStatus maps one prediction fetch onto the normalized poll states.
func (b *Backend) checkStatus(ctx context.Context, id string) (resilience.PollStatus, prediction, error) {
	var p prediction

	status, body, err := httputil.GetJSON(ctx, b.client, fmt.Sprintf("%s/v1/predictions/%s", b.baseURL, id), b.headers())
	if err != nil || status >= 400 {
		// Transient fetch failure; the poll loop re-checks.
		return resilience.StatusPending, p, nil
	}
	if err := json.Unmarshal(body, &p); err != nil {
		return resilience.StatusPending, p, nil
	}

	switch p.Status {
	case "succeeded":
		return resilience.StatusReady, p, nil
	case "failed", "canceled":
		message := p.Error
		if message == "" {
			message = "prediction " + p.Status
		}
		return resilience.StatusFailed, p, errors.NewBackendError(BackendName, message, false)
	case "starting":
		return resilience.StatusSubmitted, p, nil
	default:
		return resilience.StatusPending, p, nil
	}
}

// extractResult downloads the output URLs of a succeeded prediction.
func (b *Backend) extractResult(ctx context.Context, model string, p prediction) (*types.GenerationResult, error) {
	var urls []string
	switch out := p.Output.(type) {
	case string:
		urls = []string{out}
	case []any:
		for _, v := range out {
			if s, ok := v.(string); ok {
				urls = append(urls, s)
			}
		}
	}
	if len(urls) == 0 {
		return nil, errors.NewBackendError(BackendName, "prediction succeeded without output", true)
	}

	images := make([]types.Image, 0, len(urls))
	for _, u := range urls {
		raw, format, err := httputil.FetchImage(ctx, b.client, u)
		if err != nil {
			return nil, errors.NewBackendError(BackendName, fmt.Sprintf("download output: %v", err), true)
		}
		images = append(images, types.Image{Data: raw, Format: format})
	}
	return &types.GenerationResult{Images: images, Backend: BackendName, Model: model}, nil
}

func (b *Backend) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + b.apiToken}
}

func (b *Backend) mapError(status int, body []byte) error {
	var errResp struct {
		Detail string `json:"detail"`
	}
	message := fmt.Sprintf("request failed with status %d", status)
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Detail != "" {
		message = errResp.Detail
	}
	return errors.FromHTTPStatus(BackendName, status, message)
}
