package types

// Image is a single generated image: encoded bytes plus a format tag
// ("png", "jpeg", "webp").
type Image struct {
	Data   []byte `json:"data"`
	Format string `json:"format"`
}

// GenerationResult is the normalized output of one successful backend call.
// It is produced once per attempt and never mutated afterwards; the result
// cache stores it verbatim.
type GenerationResult struct {
	Images   []Image  `json:"images"`
	Backend  string   `json:"backend"`
	Model    string   `json:"model"`
	Warnings []string `json:"warnings,omitempty"`
}

// Capabilities describes what a backend can do. The orchestrator filters
// selection candidates against it before dispatching.
type Capabilities struct {
	SupportsGenerate bool     `json:"supports_generate"`
	SupportsEdit     bool     `json:"supports_edit"`
	MaxWidth         int      `json:"max_width"`
	MaxHeight        int      `json:"max_height"`
	Models           []string `json:"models,omitempty"`
}

// Accepts reports whether the requested dimensions fit within the backend's
// limits. Zero dimensions mean "backend default" and always fit.
func (c Capabilities) Accepts(width, height int) bool {
	if width > 0 && c.MaxWidth > 0 && width > c.MaxWidth {
		return false
	}
	if height > 0 && c.MaxHeight > 0 && height > c.MaxHeight {
		return false
	}
	return true
}
