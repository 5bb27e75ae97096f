package replicate

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/merlinrabens/image-gen-mcp/internal/resilience"
	"github.com/merlinrabens/image-gen-mcp/pkg/backend"
	"github.com/merlinrabens/image-gen-mcp/pkg/errors"
	"github.com/merlinrabens/image-gen-mcp/pkg/types"
)

func newTestBackend(t *testing.T, handler http.Handler) *Backend {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	built, err := New(backend.Config{
		Credentials: backend.StaticCredentials{"REPLICATE_API_TOKEN": "r8-test"},
		BaseURL:     srv.URL,
	})
	require.NoError(t, err)

	b := built.(*Backend)
	b.poll = resilience.PollConfig{
		InitialDelay: time.Millisecond,
		MaxDelay:     2 * time.Millisecond,
		Multiplier:   1.5,
		MaxAttempts:  20,
		MaxWait:      time.Second,
	}
	return b
}

func TestGeneratePollsToCompletion(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G'}
	var statusChecks atomic.Int32

	mux := http.NewServeMux()
	var outputURL string
	mux.HandleFunc("POST /v1/models/black-forest-labs/flux-dev/predictions", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer r8-test", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"id":"pred-1","status":"starting"}`))
	})
	mux.HandleFunc("GET /v1/predictions/pred-1", func(w http.ResponseWriter, r *http.Request) {
		switch statusChecks.Add(1) {
		case 1:
			_, _ = w.Write([]byte(`{"id":"pred-1","status":"starting"}`))
		case 2:
			_, _ = w.Write([]byte(`{"id":"pred-1","status":"processing"}`))
		default:
			_, _ = w.Write([]byte(`{"id":"pred-1","status":"succeeded","output":["` + outputURL + `"]}`))
		}
	})
	mux.HandleFunc("GET /out.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(png)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	outputURL = srv.URL + "/out.png"

	built, err := New(backend.Config{
		Credentials: backend.StaticCredentials{"REPLICATE_API_TOKEN": "r8-test"},
		BaseURL:     srv.URL,
	})
	require.NoError(t, err)
	b := built.(*Backend)
	b.poll = resilience.PollConfig{
		InitialDelay: time.Millisecond,
		MaxDelay:     2 * time.Millisecond,
		Multiplier:   1.5,
		MaxAttempts:  20,
		MaxWait:      time.Second,
	}

	result, err := b.Generate(context.Background(), &types.GenerationRequest{Prompt: "a red fox"})
	require.NoError(t, err)

	assert.Equal(t, int32(3), statusChecks.Load())
	require.Len(t, result.Images, 1)
	assert.Equal(t, png, result.Images[0].Data)
	assert.Equal(t, "png", result.Images[0].Format)
	assert.Equal(t, BackendName, result.Backend)
}

func TestGenerateFailedPredictionIsPermanent(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/models/black-forest-labs/flux-dev/predictions", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"pred-2","status":"starting"}`))
	})
	mux.HandleFunc("GET /v1/predictions/pred-2", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"pred-2","status":"failed","error":"NSFW content detected"}`))
	})

	b := newTestBackend(t, mux)

	_, err := b.Generate(context.Background(), &types.GenerationRequest{Prompt: "x"})
	require.Error(t, err)

	var imgErr *errors.ImageError
	require.True(t, errors.As(err, &imgErr))
	assert.Contains(t, imgErr.Message, "NSFW content detected")
	assert.False(t, imgErr.Retryable)
}

func TestGenerateNeverCompletingTimesOut(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/models/black-forest-labs/flux-dev/predictions", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"pred-3","status":"starting"}`))
	})
	mux.HandleFunc("GET /v1/predictions/pred-3", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"pred-3","status":"processing"}`))
	})

	b := newTestBackend(t, mux)

	_, err := b.Generate(context.Background(), &types.GenerationRequest{Prompt: "x"})
	require.Error(t, err)

	var imgErr *errors.ImageError
	require.True(t, errors.As(err, &imgErr))
	assert.Equal(t, errors.KindTimeout, imgErr.Kind)
	assert.True(t, imgErr.Retryable)
}

func TestGenerateSubmitRejected(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/models/black-forest-labs/flux-dev/predictions", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"detail":"invalid input"}`))
	})

	b := newTestBackend(t, mux)

	_, err := b.Generate(context.Background(), &types.GenerationRequest{Prompt: "x"})
	require.Error(t, err)

	var imgErr *errors.ImageError
	require.True(t, errors.As(err, &imgErr))
	assert.Contains(t, imgErr.Message, "invalid input")
	assert.False(t, imgErr.Retryable)
}

func TestEditUnsupported(t *testing.T) {
	b := newTestBackend(t, http.NewServeMux())

	_, err := b.Edit(context.Background(), &types.GenerationRequest{
		Prompt:    "x",
		BaseImage: &types.ImageInput{Data: []byte{1}},
	})
	require.Error(t, err)

	var imgErr *errors.ImageError
	require.True(t, errors.As(err, &imgErr))
	assert.Equal(t, errors.KindValidation, imgErr.Kind)
}
