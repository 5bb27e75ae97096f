// Package mcpserver exposes the image generation client as an MCP server
// speaking the Model Context Protocol over stdio.
package mcpserver

import (
	"context"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"golang.org/x/time/rate"

	imagegen "github.com/merlinrabens/image-gen-mcp"
	"github.com/merlinrabens/image-gen-mcp/backends"
	"github.com/merlinrabens/image-gen-mcp/pkg/types"
)

// Generator is the subset of the client the server needs.
type Generator interface {
	Generate(ctx context.Context, req *types.GenerationRequest) (*types.GenerationResult, error)
	Edit(ctx context.Context, req *types.GenerationRequest) (*types.GenerationResult, error)
	Backends() []backends.StatusEntry
}

// Options configures the MCP server.
type Options struct {
	Name    string
	Version string

	// InboundRate limits tool calls accepted from the client, applied
	// globally before any backend work. Zero disables the limiter.
	InboundRate  float64
	InboundBurst int

	Logger *slog.Logger
}

// Server wraps an MCP stdio server around a Generator.
type Server struct {
	mcp     *server.MCPServer
	client  Generator
	limiter *rate.Limiter
	logger  *slog.Logger
}

// New builds the MCP server and registers the image tools.
func New(client Generator, opts Options) *Server {
	if opts.Name == "" {
		opts.Name = "image-gen"
	}
	if opts.Version == "" {
		opts.Version = imagegen.Version
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		mcp: server.NewMCPServer(opts.Name, opts.Version,
			server.WithToolCapabilities(false),
			server.WithRecovery(),
		),
		client: client,
		logger: logger,
	}
	if opts.InboundRate > 0 {
		burst := opts.InboundBurst
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(opts.InboundRate), burst)
	}

	s.registerTools()
	return s
}

// ServeStdio runs the server on stdin/stdout until the stream closes.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

func (s *Server) registerTools() {
	s.mcp.AddTool(mcp.NewTool("generate_image",
		mcp.WithDescription("Generate an image from a text prompt. Automatically selects the best backend for the prompt unless one is named explicitly."),
		mcp.WithString("prompt",
			mcp.Required(),
			mcp.Description("Text description of the image to generate"),
		),
		mcp.WithString("backend",
			mcp.Description("Backend to use (auto, openai, stability, replicate, together, bfl, fal, ideogram, leonardo, gemini)"),
		),
		mcp.WithString("model",
			mcp.Description("Backend-specific model override"),
		),
		mcp.WithNumber("width", mcp.Description("Image width in pixels (256-4096)")),
		mcp.WithNumber("height", mcp.Description("Image height in pixels (256-4096)")),
		mcp.WithNumber("seed", mcp.Description("Seed for reproducible generation")),
		mcp.WithNumber("guidance", mcp.Description("Guidance scale (0-30)")),
		mcp.WithNumber("steps", mcp.Description("Number of inference steps")),
		mcp.WithBoolean("disable_fallback",
			mcp.Description("Fail instead of falling back to another backend"),
		),
	), s.handleGenerate)

	s.mcp.AddTool(mcp.NewTool("edit_image",
		mcp.WithDescription("Edit an existing image using a text prompt, optionally constrained by a mask."),
		mcp.WithString("prompt",
			mcp.Required(),
			mcp.Description("Text description of the edit to apply"),
		),
		mcp.WithString("image",
			mcp.Required(),
			mcp.Description("Base image as base64 data or a local file path"),
		),
		mcp.WithString("mask",
			mcp.Description("Mask image as base64 data or a local file path"),
		),
		mcp.WithString("backend",
			mcp.Description("Backend to use (auto, openai, stability, gemini)"),
		),
		mcp.WithString("model", mcp.Description("Backend-specific model override")),
		mcp.WithNumber("width", mcp.Description("Output width in pixels")),
		mcp.WithNumber("height", mcp.Description("Output height in pixels")),
		mcp.WithBoolean("disable_fallback",
			mcp.Description("Fail instead of falling back to another backend"),
		),
	), s.handleEdit)

	s.mcp.AddTool(mcp.NewTool("list_backends",
		mcp.WithDescription("List available image backends with their configuration state and capabilities."),
	), s.handleListBackends)
}

func (s *Server) admit() bool {
	return s.limiter == nil || s.limiter.Allow()
}
