package backends

import (
	"github.com/merlinrabens/image-gen-mcp/backends/bfl"
	"github.com/merlinrabens/image-gen-mcp/backends/fal"
	"github.com/merlinrabens/image-gen-mcp/backends/gemini"
	"github.com/merlinrabens/image-gen-mcp/backends/ideogram"
	"github.com/merlinrabens/image-gen-mcp/backends/leonardo"
	"github.com/merlinrabens/image-gen-mcp/backends/openai"
	"github.com/merlinrabens/image-gen-mcp/backends/replicate"
	"github.com/merlinrabens/image-gen-mcp/backends/stability"
	"github.com/merlinrabens/image-gen-mcp/backends/together"
)

// registerBuiltins wires every built-in adapter factory into the registry.
func (r *Registry) registerBuiltins() {
	r.factories[openai.BackendName] = openai.New
	r.factories[stability.BackendName] = stability.New
	r.factories[replicate.BackendName] = replicate.New
	r.factories[ideogram.BackendName] = ideogram.New
	r.factories[bfl.BackendName] = bfl.New
	r.factories[fal.BackendName] = fal.New
	r.factories[together.BackendName] = together.New
	r.factories[gemini.BackendName] = gemini.New
	r.factories[leonardo.BackendName] = leonardo.New
}
