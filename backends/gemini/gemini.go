// Package gemini provides the Google Gemini image backend.
package gemini

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
	BackendName    = "gemini"
	DefaultBaseURL = "https://generativelanguage.googleapis.com"

	credAPIKey = "GEMINI_API_KEY"

	defaultModel = "gemini-2.0-flash-exp-image-generation"
)

// Backend implements the Gemini generateContent adapter for image output.
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
		MaxWidth:         2048,
		MaxHeight:        2048,
		Models:           []string{defaultModel},
	}
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"` // base64
}

// Generate creates images from the prompt.
func (b *Backend) Generate(ctx context.Context, req *types.GenerationRequest) (*types.GenerationResult, error) {
	return b.call(ctx, req, []part{{Text: req.Prompt}})
}

// Edit sends the base image alongside the instruction prompt.
func (b *Backend) Edit(ctx context.Context, req *types.GenerationRequest) (*types.GenerationResult, error) {
	image, err := req.BaseImage.Payload()
	if err != nil {
		return nil, errors.NewValidationError(fmt.Sprintf("base image: %v", err))
	}
	mime := req.BaseImage.MIMEType
	if mime == "" {
		mime = "image/png"
	}
	parts := []part{
		{Text: req.Prompt},
		{InlineData: &inlineData{MIMEType: mime, Data: base64.StdEncoding.EncodeToString(image)}},
	}
	return b.call(ctx, req, parts)
}

func (b *Backend) call(ctx context.Context, req *types.GenerationRequest, parts []part) (*types.GenerationResult, error) {
	model := req.Model
	if model == "" {
		model = defaultModel
	}

	payload := map[string]any{
		"contents": []map[string]any{{"parts": parts}},
		"generationConfig": map[string]any{
			"responseModalities": []string{"TEXT", "IMAGE"},
		},
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", b.baseURL, model)
	status, body, err := httputil.PostJSON(ctx, b.client, url, payload,
		map[string]string{"x-goog-api-key": b.apiKey})
	if err != nil {
		return nil, errors.NewBackendError(BackendName, err.Error(), true)
	}
	if status >= 400 {
		return nil, b.mapError(status, body)
	}

	var parsed struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text       string `json:"text"`
					InlineData *struct {
						MIMEType string `json:"mimeType"`
						Data     string `json:"data"`
					} `json:"inlineData"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, errors.NewBackendError(BackendName, fmt.Sprintf("unmarshal response: %v", err), false)
	}

	var images []types.Image
	var warnings []string
	for _, cand := range parsed.Candidates {
		for _, p := range cand.Content.Parts {
			if p.InlineData == nil {
				continue
			}
			raw, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
			if err != nil {
				return nil, errors.NewBackendError(BackendName, fmt.Sprintf("decode image: %v", err), false)
			}
			images = append(images, types.Image{
				Data:   raw,
				Format: httputil.FormatFromContentType(p.InlineData.MIMEType, ""),
			})
		}
	}
	if len(images) == 0 {
		return nil, errors.NewBackendError(BackendName, "response contained no images", true)
	}
	if req.Width > 0 || req.Height > 0 {
		warnings = append(warnings, "gemini ignores explicit dimensions; output size is model-determined")
	}

	return &types.GenerationResult{Images: images, Backend: BackendName, Model: model, Warnings: warnings}, nil
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
