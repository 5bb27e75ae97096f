package openai

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/merlinrabens/image-gen-mcp/pkg/backend"
	"github.com/merlinrabens/image-gen-mcp/pkg/errors"
	"github.com/merlinrabens/image-gen-mcp/pkg/types"
)

func newTestBackend(t *testing.T, handler http.HandlerFunc) *Backend {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	b, err := New(backend.Config{
		Credentials: backend.StaticCredentials{"OPENAI_API_KEY": "sk-test"},
		BaseURL:     srv.URL,
	})
	require.NoError(t, err)
	return b.(*Backend)
}

func imageJSON(t *testing.T, pngs ...[]byte) []byte {
	t.Helper()

	type datum struct {
		B64JSON string `json:"b64_json"`
	}
	resp := struct {
		Data []datum `json:"data"`
	}{}
	for _, p := range pngs {
		resp.Data = append(resp.Data, datum{B64JSON: base64.StdEncoding.EncodeToString(p)})
	}
	out, err := json.Marshal(resp)
	require.NoError(t, err)
	return out
}

func TestGenerate(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G'}
	var gotPath, gotAuth string
	var gotPayload map[string]any

	b := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		_, _ = w.Write(imageJSON(t, png))
	})

	result, err := b.Generate(context.Background(), &types.GenerationRequest{
		Prompt: "a red fox",
		Width:  1536,
		Height: 1024,
	})
	require.NoError(t, err)

	assert.Equal(t, "/images/generations", gotPath)
	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.Equal(t, "a red fox", gotPayload["prompt"])
	assert.Equal(t, "gpt-image-1", gotPayload["model"])
	assert.Equal(t, "1536x1024", gotPayload["size"])

	require.Len(t, result.Images, 1)
	assert.Equal(t, png, result.Images[0].Data)
	assert.Equal(t, "png", result.Images[0].Format)
	assert.Equal(t, BackendName, result.Backend)
	assert.Equal(t, "gpt-image-1", result.Model)
}

func TestGenerateModelOverride(t *testing.T) {
	var gotPayload map[string]any
	b := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		_, _ = w.Write(imageJSON(t, []byte{1}))
	})

	result, err := b.Generate(context.Background(), &types.GenerationRequest{
		Prompt: "x",
		Model:  "dall-e-3",
	})
	require.NoError(t, err)
	assert.Equal(t, "dall-e-3", gotPayload["model"])
	assert.Equal(t, "dall-e-3", result.Model)
	_, hasSize := gotPayload["size"]
	assert.False(t, hasSize)
}

func TestGenerateServerErrorIsRetryable(t *testing.T) {
	b := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"server overloaded"}}`))
	})

	_, err := b.Generate(context.Background(), &types.GenerationRequest{Prompt: "x"})
	require.Error(t, err)

	var imgErr *errors.ImageError
	require.True(t, errors.As(err, &imgErr))
	assert.Equal(t, BackendName, imgErr.Backend)
	assert.Equal(t, 500, imgErr.StatusCode)
	assert.True(t, imgErr.Retryable)
	assert.Contains(t, imgErr.Message, "server overloaded")
}

func TestGenerateBadRequestIsPermanent(t *testing.T) {
	b := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"prompt violates policy"}}`))
	})

	_, err := b.Generate(context.Background(), &types.GenerationRequest{Prompt: "x"})
	require.Error(t, err)
	assert.False(t, errors.IsRetryable(err))
}

func TestGenerateRateLimitedIsRetryable(t *testing.T) {
	b := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{}`))
	})

	_, err := b.Generate(context.Background(), &types.GenerationRequest{Prompt: "x"})
	require.Error(t, err)
	assert.True(t, errors.IsRetryable(err))
}

func TestEditMultipart(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G'}

	b := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/images/edits", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))

		assert.Equal(t, "brighten the sky", r.FormValue("prompt"))
		assert.Equal(t, "gpt-image-1", r.FormValue("model"))

		_, _, err := r.FormFile("image")
		assert.NoError(t, err)
		_, _, err = r.FormFile("mask")
		assert.NoError(t, err)

		_, _ = w.Write(imageJSON(t, png))
	})

	result, err := b.Edit(context.Background(), &types.GenerationRequest{
		Prompt:    "brighten the sky",
		BaseImage: &types.ImageInput{Data: []byte("base-image")},
		Mask:      &types.ImageInput{Data: []byte("mask-image")},
	})
	require.NoError(t, err)
	require.Len(t, result.Images, 1)
	assert.Equal(t, png, result.Images[0].Data)
}

func TestConfigured(t *testing.T) {
	withKey, err := New(backend.Config{
		Credentials: backend.StaticCredentials{"OPENAI_API_KEY": "sk-test"},
	})
	require.NoError(t, err)
	assert.True(t, withKey.Configured())

	withoutKey, err := New(backend.Config{Credentials: backend.StaticCredentials{}})
	require.NoError(t, err)
	assert.False(t, withoutKey.Configured())
}

func TestSizeParam(t *testing.T) {
	size, ok := sizeParam(0, 0)
	assert.False(t, ok)
	assert.Empty(t, size)

	size, _ = sizeParam(2048, 1024)
	assert.Equal(t, "1536x1024", size)
	size, _ = sizeParam(1024, 2048)
	assert.Equal(t, "1024x1536", size)
	size, _ = sizeParam(1024, 1024)
	assert.Equal(t, "1024x1024", size)
}
