// Package backends provides the registry of built-in backend adapters.
// The registry is an explicit value constructed once and handed to the
// client; there is no hidden module-level instance state.
package backends

import (
	"sort"
	"sync"

	"github.com/merlinrabens/image-gen-mcp/pkg/backend"
	"github.com/merlinrabens/image-gen-mcp/pkg/types"
)

// Registry lazily constructs and memoizes one adapter instance per backend
// name. Instance identity is stable for the registry's lifetime.
type Registry struct {
	mu        sync.Mutex
	factories map[string]backend.Factory
	instances map[string]backend.Backend
	cfg       backend.Config
}

// StatusEntry is one row of the diagnostics listing.
type StatusEntry struct {
	Name                string             `json:"name"`
	Configured          bool               `json:"configured"`
	RequiredCredentials []string           `json:"required_credentials"`
	Capabilities        types.Capabilities `json:"capabilities"`
}

// NewRegistry creates a registry with all built-in factories registered.
// cfg is shared by every adapter the registry constructs.
func NewRegistry(cfg backend.Config) *Registry {
	if cfg.Credentials == nil {
		cfg.Credentials = backend.EnvCredentials{}
	}
	r := &Registry{
		factories: make(map[string]backend.Factory),
		instances: make(map[string]backend.Backend),
		cfg:       cfg,
	}
	r.registerBuiltins()
	return r
}

// Register adds or replaces a factory for the given backend name.
func (r *Registry) Register(name string, factory backend.Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Add inserts a pre-built backend instance, bypassing factory construction.
func (r *Registry) Add(b backend.Backend) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.instances[b.Name()] = b
	if _, ok := r.factories[b.Name()]; !ok {
		r.factories[b.Name()] = func(backend.Config) (backend.Backend, error) { return b, nil }
	}
}

// Get returns the backend for name, constructing it on first use.
// ok is false for unknown names or failed construction.
func (r *Registry) Get(name string) (backend.Backend, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.instances[name]; ok {
		return b, true
	}
	factory, ok := r.factories[name]
	if !ok {
		return nil, false
	}
	b, err := factory(r.cfg)
	if err != nil {
		return nil, false
	}
	r.instances[name] = b
	return b, true
}

// Names returns every registered backend name, sorted.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Configured returns the names of backends whose own configuration check
// passes, sorted.
func (r *Registry) Configured() []string {
	var out []string
	for _, name := range r.Names() {
		if b, ok := r.Get(name); ok && b.Configured() {
			out = append(out, name)
		}
	}
	return out
}

// Status reports diagnostics for every registered backend.
func (r *Registry) Status() []StatusEntry {
	var out []StatusEntry
	for _, name := range r.Names() {
		b, ok := r.Get(name)
		if !ok {
			continue
		}
		out = append(out, StatusEntry{
			Name:                name,
			Configured:          b.Configured(),
			RequiredCredentials: b.RequiredCredentials(),
			Capabilities:        b.Capabilities(),
		})
	}
	return out
}
