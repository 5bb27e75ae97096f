package cache

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/merlinrabens/image-gen-mcp/pkg/types"
)

func TestKeyDeterministic(t *testing.T) {
	req := &types.GenerationRequest{Prompt: "a red fox", Width: 1024, Height: 768}

	assert.Equal(t, Key("openai", req), Key("openai", req))
}

func TestKeyPrefix(t *testing.T) {
	key := Key("openai", &types.GenerationRequest{Prompt: "x"})
	assert.True(t, strings.HasPrefix(key, "imggen:"))
}

func TestKeyVariesByBackend(t *testing.T) {
	req := &types.GenerationRequest{Prompt: "a red fox"}

	assert.NotEqual(t, Key("openai", req), Key("stability", req))
}

func TestKeyVariesByOutputAffectingFields(t *testing.T) {
	base := types.GenerationRequest{Prompt: "a red fox"}
	baseKey := Key("openai", &base)

	seed := int64(42)
	guidance := 7.5

	variants := []types.GenerationRequest{
		{Prompt: "a blue fox"},
		{Prompt: "a red fox", Model: "dall-e-3"},
		{Prompt: "a red fox", Width: 512},
		{Prompt: "a red fox", Height: 512},
		{Prompt: "a red fox", Seed: &seed},
		{Prompt: "a red fox", Guidance: &guidance},
		{Prompt: "a red fox", Steps: 30},
	}
	for i := range variants {
		assert.NotEqual(t, baseKey, Key("openai", &variants[i]), "variant %d", i)
	}
}

func TestKeyIgnoresVolatileFields(t *testing.T) {
	a := &types.GenerationRequest{Prompt: "a red fox"}
	b := &types.GenerationRequest{Prompt: "a red fox", DisableFallback: true, Backend: "auto"}

	assert.Equal(t, Key("openai", a), Key("openai", b))
}

func TestKeySeedZeroDiffersFromUnset(t *testing.T) {
	zero := int64(0)
	withSeed := &types.GenerationRequest{Prompt: "a red fox", Seed: &zero}
	without := &types.GenerationRequest{Prompt: "a red fox"}

	assert.NotEqual(t, Key("openai", without), Key("openai", withSeed))
}
