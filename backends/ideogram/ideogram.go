// Package ideogram provides the Ideogram backend, the strongest option for
// prompts that need legible rendered text.
package ideogram

import (
	"context"
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
	BackendName    = "ideogram"
	DefaultBaseURL = "https://api.ideogram.ai"

	credAPIKey = "IDEOGRAM_API_KEY"

	defaultModel = "V_2"
)

// Backend implements the Ideogram generate API adapter.
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
		MaxWidth:         2048,
		MaxHeight:        2048,
		Models:           []string{"V_2", "V_2_TURBO"},
	}
}

// Generate creates images and downloads them from the returned URLs.
func (b *Backend) Generate(ctx context.Context, req *types.GenerationRequest) (*types.GenerationResult, error) {
	model := req.Model
	if model == "" {
		model = defaultModel
	}

	imageRequest := map[string]any{
		"prompt": req.Prompt,
		"model":  model,
	}
	if req.Width > 0 && req.Height > 0 {
		imageRequest["resolution"] = fmt.Sprintf("RESOLUTION_%d_%d", req.Width, req.Height)
	}
	if req.Seed != nil {
		imageRequest["seed"] = *req.Seed
	}

	status, body, err := httputil.PostJSON(ctx, b.client, b.baseURL+"/generate",
		map[string]any{"image_request": imageRequest},
		map[string]string{"Api-Key": b.apiKey})
	if err != nil {
		return nil, errors.NewBackendError(BackendName, err.Error(), true)
	}
	if status >= 400 {
		return nil, b.mapError(status, body)
	}

	var parsed struct {
		Data []struct {
			URL string `json:"url"`
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
		raw, format, err := httputil.FetchImage(ctx, b.client, d.URL)
		if err != nil {
			return nil, errors.NewBackendError(BackendName, fmt.Sprintf("download image: %v", err), true)
		}
		images = append(images, types.Image{Data: raw, Format: format})
	}
	return &types.GenerationResult{Images: images, Backend: BackendName, Model: model}, nil
}

// Edit is not supported by this adapter.
func (b *Backend) Edit(ctx context.Context, req *types.GenerationRequest) (*types.GenerationResult, error) {
	return nil, errors.NewValidationError("ideogram does not support image editing")
}

func (b *Backend) mapError(status int, body []byte) error {
	var errResp struct {
		Message string `json:"message"`
	}
	message := fmt.Sprintf("request failed with status %d", status)
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Message != "" {
		message = errResp.Message
	}
	return errors.FromHTTPStatus(BackendName, status, message)
}
