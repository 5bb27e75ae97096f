// Package openai provides the OpenAI image backend. It serves as the
// reference implementation for the other adapters.
package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/merlinrabens/image-gen-mcp/internal/httputil"
	"github.com/merlinrabens/image-gen-mcp/pkg/backend"
	"github.com/merlinrabens/image-gen-mcp/pkg/errors"
	"github.com/merlinrabens/image-gen-mcp/pkg/types"
)

const (
	// BackendName is the identifier for this backend.
	BackendName = "openai"

	// DefaultBaseURL is the default OpenAI API endpoint.
	DefaultBaseURL = "https://api.openai.com/v1"

	credAPIKey = "OPENAI_API_KEY"

	defaultModel = "gpt-image-1"
)

// Backend implements the OpenAI images API adapter.
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

// Name returns the backend identifier.
func (b *Backend) Name() string { return BackendName }

// Configured reports whether an API key is present.
func (b *Backend) Configured() bool { return b.apiKey != "" }

// RequiredCredentials lists the credential keys this backend reads.
func (b *Backend) RequiredCredentials() []string { return []string{credAPIKey} }

// Capabilities describes supported operations and limits.
func (b *Backend) Capabilities() types.Capabilities {
	return types.Capabilities{
		SupportsGenerate: true,
		SupportsEdit:     true,
		MaxWidth:         4096,
		MaxHeight:        4096,
		Models:           []string{"gpt-image-1", "dall-e-3"},
	}
}

type imageResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
	} `json:"data"`
}

// Generate creates images via the synchronous generations endpoint.
func (b *Backend) Generate(ctx context.Context, req *types.GenerationRequest) (*types.GenerationResult, error) {
	model := req.Model
	if model == "" {
		model = defaultModel
	}

	payload := map[string]any{
		"model":  model,
		"prompt": req.Prompt,
		"n":      1,
	}
	if size, ok := sizeParam(req.Width, req.Height); ok {
		payload["size"] = size
	}

	status, body, err := httputil.PostJSON(ctx, b.client, b.baseURL+"/images/generations", payload, b.headers())
	if err != nil {
		return nil, errors.NewBackendError(BackendName, err.Error(), true)
	}
	if status >= 400 {
		return nil, b.mapError(status, body)
	}
	return b.parseResult(model, body)
}

// Edit modifies the base image via the multipart edits endpoint.
func (b *Backend) Edit(ctx context.Context, req *types.GenerationRequest) (*types.GenerationResult, error) {
	model := req.Model
	if model == "" {
		model = defaultModel
	}

	image, err := req.BaseImage.Payload()
	if err != nil {
		return nil, errors.NewValidationError(fmt.Sprintf("base image: %v", err))
	}

	var form bytes.Buffer
	w := multipart.NewWriter(&form)
	if err := writeFilePart(w, "image", "image.png", image); err != nil {
		return nil, errors.NewBackendError(BackendName, err.Error(), false)
	}
	if !req.Mask.Empty() {
		mask, err := req.Mask.Payload()
		if err != nil {
			return nil, errors.NewValidationError(fmt.Sprintf("mask: %v", err))
		}
		if err := writeFilePart(w, "mask", "mask.png", mask); err != nil {
			return nil, errors.NewBackendError(BackendName, err.Error(), false)
		}
	}
	_ = w.WriteField("model", model)
	_ = w.WriteField("prompt", req.Prompt)
	if size, ok := sizeParam(req.Width, req.Height); ok {
		_ = w.WriteField("size", size)
	}
	if err := w.Close(); err != nil {
		return nil, errors.NewBackendError(BackendName, err.Error(), false)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/images/edits", &form)
	if err != nil {
		return nil, errors.NewBackendError(BackendName, err.Error(), false)
	}
	httpReq.Header.Set("Content-Type", w.FormDataContentType())
	httpReq.Header.Set("Authorization", "Bearer "+b.apiKey)

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
	return b.parseResult(model, body)
}

func (b *Backend) parseResult(model string, body []byte) (*types.GenerationResult, error) {
	var parsed imageResponse
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

func (b *Backend) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + b.apiKey}
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

// sizeParam maps requested dimensions onto the nearest supported size value.
func sizeParam(width, height int) (string, bool) {
	if width == 0 && height == 0 {
		return "", false
	}
	switch {
	case width > height:
		return "1536x1024", true
	case height > width:
		return "1024x1536", true
	default:
		return "1024x1024", true
	}
}

func writeFilePart(w *multipart.Writer, field, filename string, data []byte) error {
	part, err := w.CreateFormFile(field, filename)
	if err != nil {
		return err
	}
	_, err = io.Copy(part, bytes.NewReader(data))
	return err
}
