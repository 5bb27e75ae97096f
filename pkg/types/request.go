// Package types defines the unified request/response types shared by the
// orchestrator and every backend adapter.
package types

import (
	"fmt"
	"os"
	"strings"
)

// Request bounds enforced by the orchestrator before any backend is touched.
const (
	MaxPromptLength = 4000
	MinDimension    = 256
	MaxDimension    = 4096
)

// BackendAuto lets the selection engine pick the backend from the prompt.
const BackendAuto = "auto"

// ImageInput carries a base image (and optionally a mask) for edit requests.
// The payload is either inline bytes or a path reference, never both.
type ImageInput struct {
	Data     []byte `json:"data,omitempty"`
	Path     string `json:"path,omitempty"`
	MIMEType string `json:"mime_type,omitempty"`
}

// Empty reports whether the input holds neither inline bytes nor a path.
func (in *ImageInput) Empty() bool {
	return in == nil || (len(in.Data) == 0 && in.Path == "")
}

// Payload returns the image bytes, reading the referenced file when the
// input is path-addressed.
func (in *ImageInput) Payload() ([]byte, error) {
	if in == nil {
		return nil, fmt.Errorf("image input is nil")
	}
	if len(in.Data) > 0 {
		return in.Data, nil
	}
	if in.Path == "" {
		return nil, fmt.Errorf("image input has neither data nor path")
	}
	return os.ReadFile(in.Path)
}

// GenerationRequest describes one image generation or edit request.
// Treat it as immutable once handed to the client: the orchestrator and
// adapters only ever read it, so the same request can be replayed across
// fallback candidates.
type GenerationRequest struct {
	Prompt  string `json:"prompt"`
	Backend string `json:"backend,omitempty"` // empty or "auto" for automatic selection

	Width    int      `json:"width,omitempty"`
	Height   int      `json:"height,omitempty"`
	Model    string   `json:"model,omitempty"`
	Seed     *int64   `json:"seed,omitempty"`
	Guidance *float64 `json:"guidance,omitempty"`
	Steps    int      `json:"steps,omitempty"`

	// Edit mode inputs.
	BaseImage *ImageInput `json:"base_image,omitempty"`
	Mask      *ImageInput `json:"mask,omitempty"`

	// DisableFallback restricts the request to the first selected backend.
	DisableFallback bool `json:"disable_fallback,omitempty"`
}

// Auto reports whether the request leaves backend choice to the selection engine.
func (r *GenerationRequest) Auto() bool {
	return r.Backend == "" || r.Backend == BackendAuto
}

// Validate checks request shape and bounds. It does not consult any backend;
// capability filtering happens later in the pipeline.
func (r *GenerationRequest) Validate() error {
	if strings.TrimSpace(r.Prompt) == "" {
		return fmt.Errorf("prompt is required")
	}
	if len(r.Prompt) > MaxPromptLength {
		return fmt.Errorf("prompt exceeds %d characters", MaxPromptLength)
	}
	if err := validateDimension("width", r.Width); err != nil {
		return err
	}
	if err := validateDimension("height", r.Height); err != nil {
		return err
	}
	if r.Steps < 0 {
		return fmt.Errorf("steps must be non-negative")
	}
	if r.Guidance != nil && (*r.Guidance < 0 || *r.Guidance > 30) {
		return fmt.Errorf("guidance must be between 0 and 30")
	}
	return nil
}

func validateDimension(name string, v int) error {
	if v == 0 {
		return nil // backend default
	}
	if v < MinDimension || v > MaxDimension {
		return fmt.Errorf("%s must be between %d and %d", name, MinDimension, MaxDimension)
	}
	return nil
}
