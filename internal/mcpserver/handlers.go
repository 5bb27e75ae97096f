package mcpserver

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/merlinrabens/image-gen-mcp/pkg/errors"
	"github.com/merlinrabens/image-gen-mcp/pkg/types"
)

func (s *Server) handleGenerate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !s.admit() {
		return mcp.NewToolResultError("rate limit exceeded, retry shortly"), nil
	}

	genReq, err := parseRequest(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.client.Generate(ctx, genReq)
	if err != nil {
		s.logger.Warn("generate failed", "error", err)
		return mcp.NewToolResultError(toolError(err)), nil
	}
	return imageResult(result), nil
}

func (s *Server) handleEdit(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !s.admit() {
		return mcp.NewToolResultError("rate limit exceeded, retry shortly"), nil
	}

	genReq, err := parseRequest(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	image, err := req.RequireString("image")
	if err != nil {
		return mcp.NewToolResultError("image is required"), nil
	}
	genReq.BaseImage = imageInput(image)
	if mask := req.GetString("mask", ""); mask != "" {
		genReq.Mask = imageInput(mask)
	}

	result, err := s.client.Edit(ctx, genReq)
	if err != nil {
		s.logger.Warn("edit failed", "error", err)
		return mcp.NewToolResultError(toolError(err)), nil
	}
	return imageResult(result), nil
}

func (s *Server) handleListBackends(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(s.client.Backends(), "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("marshal backend status: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// parseRequest extracts the fields shared by generate and edit.
func parseRequest(req mcp.CallToolRequest) (*types.GenerationRequest, error) {
	prompt, err := req.RequireString("prompt")
	if err != nil {
		return nil, fmt.Errorf("prompt is required")
	}

	genReq := &types.GenerationRequest{
		Prompt:          prompt,
		Backend:         req.GetString("backend", types.BackendAuto),
		Model:           req.GetString("model", ""),
		Width:           req.GetInt("width", 0),
		Height:          req.GetInt("height", 0),
		Steps:           req.GetInt("steps", 0),
		DisableFallback: req.GetBool("disable_fallback", false),
	}

	args := req.GetArguments()
	if _, ok := args["seed"]; ok {
		seed := int64(req.GetInt("seed", 0))
		genReq.Seed = &seed
	}
	if _, ok := args["guidance"]; ok {
		guidance := req.GetFloat("guidance", 0)
		genReq.Guidance = &guidance
	}
	return genReq, nil
}

// imageInput treats values that look like paths as file references and
// everything else as base64 payload. Values that decode as neither fall
// through as a path so the adapter reports a readable error.
func imageInput(value string) *types.ImageInput {
	if strings.HasPrefix(value, "/") || strings.HasPrefix(value, "./") || strings.HasPrefix(value, "~/") {
		return &types.ImageInput{Path: value}
	}
	if raw, err := base64.StdEncoding.DecodeString(value); err == nil {
		return &types.ImageInput{Data: raw}
	}
	return &types.ImageInput{Path: value}
}

// imageResult converts a generation result into MCP image content,
// prefixed with a text summary and any backend warnings.
func imageResult(result *types.GenerationResult) *mcp.CallToolResult {
	summary := fmt.Sprintf("Generated %d image(s) via %s", len(result.Images), result.Backend)
	if result.Model != "" {
		summary += " (" + result.Model + ")"
	}
	if len(result.Warnings) > 0 {
		summary += "\nWarnings: " + strings.Join(result.Warnings, "; ")
	}

	content := []mcp.Content{mcp.TextContent{Type: "text", Text: summary}}
	for _, img := range result.Images {
		content = append(content, mcp.ImageContent{
			Type:     "image",
			Data:     base64.StdEncoding.EncodeToString(img.Data),
			MIMEType: mimeType(img.Format),
		})
	}
	return &mcp.CallToolResult{Content: content}
}

func mimeType(format string) string {
	switch strings.ToLower(format) {
	case "jpg", "jpeg":
		return "image/jpeg"
	case "webp":
		return "image/webp"
	case "gif":
		return "image/gif"
	default:
		return "image/png"
	}
}

// toolError renders client errors in a form useful to the calling model.
func toolError(err error) string {
	var imgErr *errors.ImageError
	if errors.As(err, &imgErr) {
		if imgErr.Backend != "" {
			return fmt.Sprintf("%s: %s", imgErr.Backend, imgErr.Message)
		}
		return imgErr.Message
	}
	return err.Error()
}
