// Package fal provides the fal.ai backend. Requests go through fal's queue
// API: submit, poll the status URL, then fetch the response URL.
package fal

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
	BackendName    = "fal"
	DefaultBaseURL = "https://queue.fal.run"

	credAPIKey = "FAL_KEY"

	defaultModel = "fal-ai/flux/schnell"
)

// Backend implements the fal queue API adapter.
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
			InitialDelay: 300 * time.Millisecond,
			MaxDelay:     3 * time.Second,
			Multiplier:   1.5,
			MaxAttempts:  150,
			MaxWait:      3 * time.Minute,
		},
	}, nil
}

func (b *Backend) Name() string                  { return BackendName }
func (b *Backend) Configured() bool              { return b.apiKey != "" }
func (b *Backend) RequiredCredentials() []string { return []string{credAPIKey} }

func (b *Backend) Capabilities() types.Capabilities {
	return types.Capabilities{
		SupportsGenerate: true,
		MaxWidth:         1920,
		MaxHeight:        1920,
		Models:           []string{"fal-ai/flux/schnell", "fal-ai/flux/dev"},
	}
}

type queueTicket struct {
	RequestID   string `json:"request_id"`
	StatusURL   string `json:"status_url"`
	ResponseURL string `json:"response_url"`
}

// Generate submits to the queue, polls the status URL, then fetches the
// final response.
func (b *Backend) Generate(ctx context.Context, req *types.GenerationRequest) (*types.GenerationResult, error) {
	model := req.Model
	if model == "" {
		model = defaultModel
	}

	payload := map[string]any{"prompt": req.Prompt, "num_images": 1}
	if req.Width > 0 && req.Height > 0 {
		payload["image_size"] = map[string]int{"width": req.Width, "height": req.Height}
	}
	if req.Seed != nil {
		payload["seed"] = *req.Seed
	}
	if req.Steps > 0 {
		payload["num_inference_steps"] = req.Steps
	}

	status, body, err := httputil.PostJSON(ctx, b.client, b.baseURL+"/"+model, payload, b.headers())
	if err != nil {
		return nil, errors.NewBackendError(BackendName, err.Error(), true)
	}
	if status >= 400 {
		return nil, b.mapError(status, body)
	}

	var ticket queueTicket
	if err := json.Unmarshal(body, &ticket); err != nil || ticket.StatusURL == "" || ticket.ResponseURL == "" {
		return nil, errors.NewBackendError(BackendName, "submit returned no queue ticket", true)
	}

	_, err = resilience.Poll(ctx, BackendName, b.poll, func(ctx context.Context) (resilience.PollStatus, struct{}, error) {
		return b.checkStatus(ctx, ticket.StatusURL)
	})
	if err != nil {
		return nil, err
	}
	return b.fetchResult(ctx, model, ticket.ResponseURL)
}

// Edit is not supported by this adapter.
func (b *Backend) Edit(ctx context.Context, req *types.GenerationRequest) (*types.GenerationResult, error) {
	return nil, errors.NewValidationError("fal does not support image editing")
}

func (b *Backend) checkStatus(ctx context.Context, statusURL string) (resilience.PollStatus, struct{}, error) {
	var none struct{}

	status, body, err := httputil.GetJSON(ctx, b.client, statusURL, b.headers())
	if err != nil || status >= 400 {
		return resilience.StatusPending, none, nil
	}

	var parsed struct {
		Status string `json:"status"` // IN_QUEUE, IN_PROGRESS, COMPLETED
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return resilience.StatusPending, none, nil
	}

	switch parsed.Status {
	case "COMPLETED":
		return resilience.StatusReady, none, nil
	case "IN_QUEUE":
		return resilience.StatusSubmitted, none, nil
	default:
		return resilience.StatusPending, none, nil
	}
}

func (b *Backend) fetchResult(ctx context.Context, model, responseURL string) (*types.GenerationResult, error) {
	status, body, err := httputil.GetJSON(ctx, b.client, responseURL, b.headers())
	if err != nil {
		return nil, errors.NewBackendError(BackendName, err.Error(), true)
	}
	if status >= 400 {
		return nil, b.mapError(status, body)
	}

	var parsed struct {
		Images []struct {
			URL         string `json:"url"`
			ContentType string `json:"content_type"`
		} `json:"images"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, errors.NewBackendError(BackendName, fmt.Sprintf("unmarshal response: %v", err), false)
	}
	if len(parsed.Images) == 0 {
		return nil, errors.NewBackendError(BackendName, "completed job contained no images", true)
	}

	images := make([]types.Image, 0, len(parsed.Images))
	for _, img := range parsed.Images {
		raw, format, err := httputil.FetchImage(ctx, b.client, img.URL)
		if err != nil {
			return nil, errors.NewBackendError(BackendName, fmt.Sprintf("download image: %v", err), true)
		}
		if img.ContentType != "" {
			format = httputil.FormatFromContentType(img.ContentType, img.URL)
		}
		images = append(images, types.Image{Data: raw, Format: format})
	}
	return &types.GenerationResult{Images: images, Backend: BackendName, Model: model}, nil
}

func (b *Backend) headers() map[string]string {
	return map[string]string{"Authorization": "Key " + b.apiKey}
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
