// Package bfl provides the Black Forest Labs FLUX backend. Jobs are
// submitted and then polled via the returned polling URL; FLUX renders take
// several seconds, so the schedule starts slower than Replicate's.
package bfl

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
	BackendName    = "bfl"
	DefaultBaseURL = "https://api.bfl.ml"

	credAPIKey = "BFL_API_KEY"

	defaultModel = "flux-pro-1.1"
)

// Backend implements the BFL FLUX API adapter.
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
			InitialDelay: 1500 * time.Millisecond,
			MaxDelay:     8 * time.Second,
			Multiplier:   1.5,
			MaxAttempts:  80,
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
		MaxWidth:         1440,
		MaxHeight:        1440,
		Models:           []string{"flux-pro-1.1", "flux-pro", "flux-dev"},
	}
}

type jobResult struct {
	ID     string `json:"id"`
	Status string `json:"status"` // Task not found, Pending, Ready, Error, Content Moderated
	Result *struct {
		Sample string `json:"sample"`
	} `json:"result"`
}

// Generate submits a FLUX job and polls the task endpoint to completion.
func (b *Backend) Generate(ctx context.Context, req *types.GenerationRequest) (*types.GenerationResult, error) {
	model := req.Model
	if model == "" {
		model = defaultModel
	}

	payload := map[string]any{"prompt": req.Prompt}
	if req.Width > 0 {
		payload["width"] = req.Width
	}
	if req.Height > 0 {
		payload["height"] = req.Height
	}
	if req.Seed != nil {
		payload["seed"] = *req.Seed
	}
	if req.Guidance != nil {
		payload["guidance"] = *req.Guidance
	}
	if req.Steps > 0 {
		payload["steps"] = req.Steps
	}

	status, body, err := httputil.PostJSON(ctx, b.client, b.baseURL+"/v1/"+model, payload, b.headers())
	if err != nil {
		return nil, errors.NewBackendError(BackendName, err.Error(), true)
	}
	if status >= 400 {
		return nil, b.mapError(status, body)
	}

	var submitted struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &submitted); err != nil || submitted.ID == "" {
		return nil, errors.NewBackendError(BackendName, "submit returned no job id", true)
	}

	final, err := resilience.Poll(ctx, BackendName, b.poll, func(ctx context.Context) (resilience.PollStatus, jobResult, error) {
		return b.checkStatus(ctx, submitted.ID)
	})
	if err != nil {
		return nil, err
	}

	raw, format, err := httputil.FetchImage(ctx, b.client, final.Result.Sample)
	if err != nil {
		return nil, errors.NewBackendError(BackendName, fmt.Sprintf("download sample: %v", err), true)
	}
	return &types.GenerationResult{
		Images:  []types.Image{{Data: raw, Format: format}},
		Backend: BackendName,
		Model:   model,
	}, nil
}

// Edit is not supported by this adapter.
func (b *Backend) Edit(ctx context.Context, req *types.GenerationRequest) (*types.GenerationResult, error) {
	return nil, errors.NewValidationError("bfl does not support image editing")
}

func (b *Backend) checkStatus(ctx context.Context, id string) (resilience.PollStatus, jobResult, error) {
	var jr jobResult

	status, body, err := httputil.GetJSON(ctx, b.client, b.baseURL+"/v1/get_result?id="+id, b.headers())
	if err != nil || status >= 400 {
		return resilience.StatusPending, jr, nil
	}
	if err := json.Unmarshal(body, &jr); err != nil {
		return resilience.StatusPending, jr, nil
	}

	switch jr.Status {
	case "Ready":
		if jr.Result == nil || jr.Result.Sample == "" {
			return resilience.StatusFailed, jr, errors.NewBackendError(BackendName, "job ready without sample", true)
		}
		return resilience.StatusReady, jr, nil
	case "Error":
		return resilience.StatusFailed, jr, errors.NewBackendError(BackendName, "job failed", false)
	case "Content Moderated", "Request Moderated":
		return resilience.StatusFailed, jr, errors.NewBackendError(BackendName, "blocked by content moderation", false)
	case "Task not found":
		return resilience.StatusFailed, jr, errors.NewBackendError(BackendName, "job disappeared", true)
	default:
		return resilience.StatusPending, jr, nil
	}
}

func (b *Backend) headers() map[string]string {
	return map[string]string{"x-key": b.apiKey}
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
