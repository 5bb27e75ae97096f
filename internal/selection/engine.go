// Package selection decides which backends should serve a request, and in
// what order. Classification scores the prompt against a fixed category
// table; the orchestrator consumes the ordered output as its fallback chain.
package selection

import (
	"strings"
)

// Score is the transient result of classifying one prompt.
type Score struct {
	Category   string
	Raw        int
	Confidence float64
}

// Engine holds the classification table and the generic fallback policy.
type Engine struct {
	categories []Category
	quality    []string
	speed      []string
	priority   []string
}

// Option configures an Engine.
type Option func(*Engine)

// WithCategories replaces the built-in classification table.
func WithCategories(categories []Category) Option {
	return func(e *Engine) {
		if len(categories) > 0 {
			e.categories = categories
		}
	}
}

// WithPriority replaces the static fallback chain.
func WithPriority(priority []string) Option {
	return func(e *Engine) {
		if len(priority) > 0 {
			e.priority = priority
		}
	}
}

// NewEngine creates a selection engine with the default tables.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		categories: DefaultCategories(),
		quality:    DefaultQualityBackends(),
		speed:      DefaultSpeedBackends(),
		priority:   DefaultPriority(),
	}
	for _, opt := range opts {
		opt(e)
	}
	// Prompts are matched lowercased, so the table must be too.
	e.categories = lowerKeywords(e.categories)
	return e
}

func lowerKeywords(categories []Category) []Category {
	out := make([]Category, len(categories))
	for i, cat := range categories {
		keywords := make([]string, len(cat.Keywords))
		for j, kw := range cat.Keywords {
			keywords[j] = strings.ToLower(kw)
		}
		cat.Keywords = keywords
		out[i] = cat
	}
	return out
}

// Classify scores the prompt against every category and returns the winner.
// Raw score is the sum of matched keyword lengths, so longer, more specific
// keywords weigh more. Ties resolve to the earlier category in the table.
// ok is false when no keyword in any category matches.
func (e *Engine) Classify(prompt string) (Score, bool) {
	lower := strings.ToLower(prompt)

	best := Score{}
	found := false
	for _, cat := range e.categories {
		raw, matched := 0, 0
		for _, kw := range cat.Keywords {
			if strings.Contains(lower, kw) {
				raw += len(kw)
				matched++
			}
		}
		if raw == 0 {
			continue
		}
		confidence := cat.BaseConfidence * (0.5 + 0.5*float64(matched)/float64(len(cat.Keywords)))
		if !found || raw > best.Raw {
			best = Score{Category: cat.Name, Raw: raw, Confidence: confidence}
			found = true
		}
	}
	return best, found
}

// Candidates returns the ordered backend preference list for a prompt,
// restricted to the configured set. When a category matches, the list is
// exactly the category's preferred + fallback backends; backends outside the
// category never join the chain. Without a category match the generic
// heuristics apply, padded by the static priority chain so a request is
// never starved.
func (e *Engine) Candidates(prompt string, configured []string) []string {
	avail := make(map[string]bool, len(configured))
	for _, name := range configured {
		avail[name] = true
	}

	if score, ok := e.Classify(prompt); ok {
		for _, cat := range e.categories {
			if cat.Name == score.Category {
				ordered := append(append([]string{}, cat.Preferred...), cat.Fallback...)
				return filterOrdered(ordered, avail)
			}
		}
	}

	lower := strings.ToLower(prompt)
	var ordered []string
	switch {
	case containsAny(lower, qualityKeywords):
		ordered = append(ordered, e.quality...)
	case containsAny(lower, speedKeywords):
		ordered = append(ordered, e.speed...)
	}
	ordered = append(ordered, e.priority...)
	for _, name := range configured {
		ordered = append(ordered, name) // catch backends absent from the tables
	}
	return filterOrdered(ordered, avail)
}

func filterOrdered(ordered []string, avail map[string]bool) []string {
	out := make([]string, 0, len(ordered))
	seen := make(map[string]bool, len(ordered))
	for _, name := range ordered {
		if avail[name] && !seen[name] {
			out = append(out, name)
			seen[name] = true
		}
	}
	return out
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
