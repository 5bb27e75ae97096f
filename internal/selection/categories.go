package selection

// Category is one row of the prompt classification table. Scoring is a pure
// function of (prompt, table): the engine never consults a backend.
type Category struct {
	Name string

	// Keywords matched case-insensitively as substrings of the prompt.
	Keywords []string

	// Preferred backends, in order, when this category wins.
	Preferred []string

	// Fallback backends appended after the preferred list.
	Fallback []string

	// BaseConfidence scales the reported confidence for this category.
	BaseConfidence float64
}

// DefaultCategories is the built-in classification table. Order matters:
// ties on raw score resolve to the earlier category.
func DefaultCategories() []Category {
	return []Category{
		{
			Name:           "text-heavy",
			Keywords:       []string{"logo", "text", "typography", "lettering", "wordmark", "poster with", "sign", "label", "slogan", "caption"},
			Preferred:      []string{"ideogram", "openai"},
			Fallback:       []string{"stability"},
			BaseConfidence: 0.9,
		},
		{
			Name:           "photorealistic",
			Keywords:       []string{"photo", "photorealistic", "realistic", "portrait", "dslr", "35mm", "golden hour", "bokeh", "studio lighting"},
			Preferred:      []string{"bfl", "stability"},
			Fallback:       []string{"replicate", "leonardo"},
			BaseConfidence: 0.85,
		},
		{
			Name:           "illustration",
			Keywords:       []string{"illustration", "watercolor", "anime", "cartoon", "comic", "painting", "digital art", "concept art"},
			Preferred:      []string{"openai", "leonardo"},
			Fallback:       []string{"gemini", "stability"},
			BaseConfidence: 0.8,
		},
		{
			Name:           "quick-draft",
			Keywords:       []string{"quick", "draft", "sketch", "rough", "placeholder", "wireframe", "doodle"},
			Preferred:      []string{"together", "fal"},
			Fallback:       []string{"replicate"},
			BaseConfidence: 0.75,
		},
		{
			Name:           "product",
			Keywords:       []string{"product shot", "mockup", "packshot", "e-commerce", "white background", "catalog"},
			Preferred:      []string{"stability", "bfl"},
			Fallback:       []string{"openai"},
			BaseConfidence: 0.8,
		},
	}
}

// Generic heuristics applied when no category matches.
var (
	qualityKeywords = []string{"quality", "detailed", "masterpiece", "intricate", "professional", "4k", "8k", "high resolution"}
	speedKeywords   = []string{"fast", "quick", "simple", "basic"}
)

// DefaultQualityBackends orders backends for quality-leaning prompts.
func DefaultQualityBackends() []string {
	return []string{"bfl", "openai", "stability"}
}

// DefaultSpeedBackends orders backends for speed-leaning prompts.
func DefaultSpeedBackends() []string {
	return []string{"together", "fal", "replicate"}
}

// DefaultPriority is the static fallback chain used when nothing else
// applies. It is policy, not a constant of the system: callers override it
// with WithFallbackChain or the server's selection config.
func DefaultPriority() []string {
	return []string{"openai", "stability", "bfl", "ideogram", "gemini", "together", "fal", "replicate", "leonardo"}
}
