package resilience

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/merlinrabens/image-gen-mcp/pkg/errors"
)

func TestLimiterAdmitsUpToCapacity(t *testing.T) {
	l := NewSlidingWindowLimiter(10, time.Minute)

	for i := 0; i < 10; i++ {
		require.NoError(t, l.Admit("openai"), "admission %d", i+1)
	}

	err := l.Admit("openai")
	require.Error(t, err)

	var imgErr *errors.ImageError
	require.True(t, errors.As(err, &imgErr))
	assert.Equal(t, errors.KindRateLimit, imgErr.Kind)
	assert.Equal(t, "openai", imgErr.Backend)
	assert.True(t, imgErr.Retryable)
}

func TestLimiterWindowsArePerBackend(t *testing.T) {
	l := NewSlidingWindowLimiter(1, time.Minute)

	require.NoError(t, l.Admit("openai"))
	require.Error(t, l.Admit("openai"))

	// A full window on one backend does not affect another.
	require.NoError(t, l.Admit("stability"))
}

func TestLimiterSlidingWindowExpiry(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l := NewSlidingWindowLimiter(2, time.Minute)
	l.now = func() time.Time { return now }

	require.NoError(t, l.Admit("openai"))

	now = now.Add(30 * time.Second)
	require.NoError(t, l.Admit("openai"))
	require.Error(t, l.Admit("openai"))

	// The first admission ages out of the trailing window; one slot frees up.
	now = now.Add(31 * time.Second)
	assert.Equal(t, 1, l.InFlight("openai"))
	require.NoError(t, l.Admit("openai"))
	require.Error(t, l.Admit("openai"))
}

func TestLimiterDefaults(t *testing.T) {
	l := NewSlidingWindowLimiter(0, 0)
	assert.Equal(t, 10, l.capacity)
	assert.Equal(t, time.Minute, l.window)
}

func TestLimiterConcurrentAdmissions(t *testing.T) {
	l := NewSlidingWindowLimiter(50, time.Minute)

	done := make(chan error, 100)
	for i := 0; i < 100; i++ {
		go func() {
			done <- l.Admit("replicate")
		}()
	}

	admitted := 0
	for i := 0; i < 100; i++ {
		if err := <-done; err == nil {
			admitted++
		}
	}
	assert.Equal(t, 50, admitted)
}
