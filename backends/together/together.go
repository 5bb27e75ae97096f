// Package together provides the Together AI backend, the speed-oriented
// FLUX schnell class of models.
package together

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/merlinrabens/image-gen-mcp/internal/httputil"
	"github.com/merlinrabens/image-gen-mcp/pkg/backend"
	"github.com/merlinrabens/image-gen-mcp/pkg/errors"
	"github.com/merlinrabens/image-gen-mcp/pkg/types"
)

const (
	BackendName    = "together"
	DefaultBaseURL = "https://api.together.xyz"

	credAPIKey = "TOGETHER_API_KEY"

	defaultModel = "black-forest-labs/FLUX.1-schnell"
)

// Backend implements the Together images API adapter.
type Backend struct {
	apiKey  string
	baseURL string
	client  *http.Client
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
	}, nil
}

func (b *Backend) Name() string                  { return BackendName }
func (b *Backend) Configured() bool              { return b.apiKey != "" }
func (b *Backend) RequiredCredentials() []string { return []string{credAPIKey} }

func (b *Backend) Capabilities() types.Capabilities {
	return types.Capabilities{
		SupportsGenerate: true,
		MaxWidth:         1792,
		MaxHeight:        1792,
		Models:           []string{"black-forest-labs/FLUX.1-schnell", "black-forest-labs/FLUX.1-dev"},
	}
}

// Generate creates images synchronously; schnell-class models typically
// answer in a couple of seconds.
func (b *Backend) Generate(ctx context.Context, req *types.GenerationRequest) (*types.GenerationResult, error) {
	model := req.Model
	if model == "" {
		model = defaultModel
	}

	payload := map[string]any{
		"model":           model,
		"prompt":          req.Prompt,
		"n":               1,
		"response_format": "base64",
	}
	if req.Width > 0 {
		payload["width"] = req.Width
	}
	if req.Height > 0 {
		payload["height"] = req.Height
	}
	if req.Steps > 0 {
		payload["steps"] = req.Steps
	}
	if req.Seed != nil {
		payload["seed"] = *req.Seed
	}

	status, body, err := httputil.PostJSON(ctx, b.client, b.baseURL+"/v1/images/generations", payload,
		map[string]string{"Authorization": "Bearer " + b.apiKey})
	if err != nil {
		return nil, errors.NewBackendError(BackendName, err.Error(), true)
	}
	if status >= 400 {
		return nil, b.mapError(status, body)
	}

	var parsed struct {
		Data []struct {
			B64JSON string `json:"b64_json"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, errors.NewBackendError(BackendName, fmt.Sprintf("unmarshal response: %v", err), false)
	}
	if len(parsed.Data) == 0 {
		return nil, errors.NewBackendError(BackendName, "response contained no images", true)
	}

	images := make([]types.Image, 0, len(parsed.Data))
	for _, d := range parsed.Data {
		raw, err := base64.StdEncoding.DecodeString(d.B64JSON)
		if err != nil {
			return nil, errors.NewBackendError(BackendName, fmt.Sprintf("decode image: %v", err), false)
		}
		images = append(images, types.Image{Data: raw, Format: "png"})
	}
	return &types.GenerationResult{Images: images, Backend: BackendName, Model: model}, nil
}

// Edit is not supported by the Together images API.
func (b *Backend) Edit(ctx context.Context, req *types.GenerationRequest) (*types.GenerationResult, error) {
	return nil, errors.NewValidationError("together does not support image editing")
}

func (b *Backend) mapError(status int, body []byte) error {
	var errResp struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	message := fmt.Sprintf("request failed with status %d", status)
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		message = errResp.Error.Message
	}
	return errors.FromHTTPStatus(BackendName, status, message)
}
