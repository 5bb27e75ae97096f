package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/merlinrabens/image-gen-mcp/pkg/types"
)

// KeyPrefix namespaces all generated cache keys.
const KeyPrefix = "imggen"

// Key derives the deterministic cache key for a request against one backend.
// Only fields that affect the output participate: prompt, backend, model,
// dimensions, seed, guidance and steps. Volatile fields (fallback policy,
// image payloads for edits are never cached) are excluded.
func Key(backendName string, req *types.GenerationRequest) string {
	var sb strings.Builder

	sb.WriteString("backend:")
	sb.WriteString(backendName)
	sb.WriteString("|prompt:")
	sb.WriteString(req.Prompt)

	if req.Model != "" {
		fmt.Fprintf(&sb, "|model:%s", req.Model)
	}
	if req.Width > 0 {
		fmt.Fprintf(&sb, "|w:%d", req.Width)
	}
	if req.Height > 0 {
		fmt.Fprintf(&sb, "|h:%d", req.Height)
	}
	if req.Seed != nil {
		fmt.Fprintf(&sb, "|seed:%d", *req.Seed)
	}
	if req.Guidance != nil {
		fmt.Fprintf(&sb, "|guidance:%.2f", *req.Guidance)
	}
	if req.Steps > 0 {
		fmt.Fprintf(&sb, "|steps:%d", req.Steps)
	}

	sum := sha256.Sum256([]byte(sb.String()))
	return KeyPrefix + ":" + hex.EncodeToString(sum[:])
}
