// Package stability provides the Stability AI (Stable Diffusion) backend.
package stability

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/merlinrabens/image-gen-mcp/internal/httputil"
	"github.com/merlinrabens/image-gen-mcp/pkg/backend"
	"github.com/merlinrabens/image-gen-mcp/pkg/errors"
	"github.com/merlinrabens/image-gen-mcp/pkg/types"
)

const (
	BackendName    = "stability"
	DefaultBaseURL = "https://api.stability.ai"

	credAPIKey = "STABILITY_API_KEY"

	defaultModel = "sd3.5-large"
)

// Backend implements the Stability stable-image API adapter.
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
		SupportsEdit:     true,
		MaxWidth:         1536,
		MaxHeight:        1536,
		Models:           []string{"sd3.5-large", "sd3.5-medium", "core"},
	}
}

// Generate creates an image via the synchronous stable-image endpoint.
func (b *Backend) Generate(ctx context.Context, req *types.GenerationRequest) (*types.GenerationResult, error) {
	model := req.Model
	if model == "" {
		model = defaultModel
	}

	fields := map[string]string{
		"prompt":        req.Prompt,
		"output_format": "png",
	}
	if model != "core" {
		fields["model"] = model
	}
	if req.Seed != nil {
		fields["seed"] = strconv.FormatInt(*req.Seed, 10)
	}
	if req.Guidance != nil {
		fields["cfg_scale"] = strconv.FormatFloat(*req.Guidance, 'f', 1, 64)
	}
	if ratio, ok := aspectRatio(req.Width, req.Height); ok {
		fields["aspect_ratio"] = ratio
	}

	endpoint := b.baseURL + "/v2beta/stable-image/generate/sd3"
	if model == "core" {
		endpoint = b.baseURL + "/v2beta/stable-image/generate/core"
	}
	return b.call(ctx, endpoint, model, fields, nil)
}

// Edit performs inpainting with the base image and optional mask.
func (b *Backend) Edit(ctx context.Context, req *types.GenerationRequest) (*types.GenerationResult, error) {
	model := req.Model
	if model == "" {
		model = defaultModel
	}

	image, err := req.BaseImage.Payload()
	if err != nil {
		return nil, errors.NewValidationError(fmt.Sprintf("base image: %v", err))
	}
	files := map[string][]byte{"image": image}
	if !req.Mask.Empty() {
		mask, err := req.Mask.Payload()
		if err != nil {
			return nil, errors.NewValidationError(fmt.Sprintf("mask: %v", err))
		}
		files["mask"] = mask
	}

	fields := map[string]string{
		"prompt":        req.Prompt,
		"output_format": "png",
	}
	return b.call(ctx, b.baseURL+"/v2beta/stable-image/edit/inpaint", model, fields, files)
}

// call issues one multipart request and decodes the JSON image response.
func (b *Backend) call(ctx context.Context, endpoint, model string, fields map[string]string, files map[string][]byte) (*types.GenerationResult, error) {
	var form bytes.Buffer
	w := multipart.NewWriter(&form)
	for k, v := range fields {
		_ = w.WriteField(k, v)
	}
	for name, data := range files {
		part, err := w.CreateFormFile(name, name+".png")
		if err != nil {
			return nil, errors.NewBackendError(BackendName, err.Error(), false)
		}
		if _, err := io.Copy(part, bytes.NewReader(data)); err != nil {
			return nil, errors.NewBackendError(BackendName, err.Error(), false)
		}
	}
	if err := w.Close(); err != nil {
		return nil, errors.NewBackendError(BackendName, err.Error(), false)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &form)
	if err != nil {
		return nil, errors.NewBackendError(BackendName, err.Error(), false)
	}
	httpReq.Header.Set("Content-Type", w.FormDataContentType())
	httpReq.Header.Set("Authorization", "Bearer "+b.apiKey)
	httpReq.Header.Set("Accept", "application/json")

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return nil, errors.NewBackendError(BackendName, err.Error(), true)
	}
	defer resp.Body.Close()

	body, err := httputil.ReadBody(resp)
	if err != nil {
		return nil, errors.NewBackendError(BackendName, err.Error(), true)
	}
	if resp.StatusCode >= 400 {
		return nil, b.mapError(resp.StatusCode, body)
	}

	var parsed struct {
		Image        string `json:"image"` // base64
		FinishReason string `json:"finish_reason"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, errors.NewBackendError(BackendName, fmt.Sprintf("unmarshal response: %v", err), false)
	}
	if parsed.FinishReason == "CONTENT_FILTERED" {
		return nil, errors.NewBackendError(BackendName, "output blocked by content filter", false)
	}
	raw, err := decodeBase64(parsed.Image)
	if err != nil {
		return nil, errors.NewBackendError(BackendName, fmt.Sprintf("decode image: %v", err), false)
	}

	return &types.GenerationResult{
		Images:  []types.Image{{Data: raw, Format: "png"}},
		Backend: BackendName,
		Model:   model,
	}, nil
}

func (b *Backend) mapError(status int, body []byte) error {
	var errResp struct {
		Errors []string `json:"errors"`
		Name   string   `json:"name"`
	}
	message := fmt.Sprintf("request failed with status %d", status)
	if err := json.Unmarshal(body, &errResp); err == nil && len(errResp.Errors) > 0 {
		message = strings.Join(errResp.Errors, "; ")
	}
	return errors.FromHTTPStatus(BackendName, status, message)
}

func decodeBase64(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}

// aspectRatio maps requested dimensions onto the closest supported ratio.
func aspectRatio(width, height int) (string, bool) {
	if width == 0 || height == 0 {
		return "", false
	}
	r := float64(width) / float64(height)
	switch {
	case r > 1.6:
		return "16:9", true
	case r > 1.1:
		return "3:2", true
	case r > 0.9:
		return "1:1", true
	case r > 0.6:
		return "2:3", true
	default:
		return "9:16", true
	}
}
