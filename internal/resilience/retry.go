package resilience

import (
	"context"
	"math/rand"
	"time"

	"github.com/merlinrabens/image-gen-mcp/pkg/errors"
)

// RetryPolicy controls the retry executor's attempt budget and delay schedule.
type RetryPolicy struct {
	MaxAttempts int           // total attempts, including the first
	BaseDelay   time.Duration // delay before the first retry
	MaxDelay    time.Duration // cap on the exponential schedule; 0 disables the cap
	Jitter      float64       // fraction of the delay randomized in both directions (0.0 - 1.0)
}

// DefaultRetryPolicy returns the orchestrator's default retry behavior.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    10 * time.Second,
		Jitter:      0.2,
	}
}

// Retrier executes units of work under a RetryPolicy. It knows nothing about
// what the work represents; retryability is read off the returned error.
// A single Retrier is shared by all in-flight requests and is safe for
// concurrent use.
type Retrier struct {
	policy RetryPolicy
}

// NewRetrier creates a retry executor for the given policy.
func NewRetrier(policy RetryPolicy) *Retrier {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}
	return &Retrier{policy: policy}
}

// Do runs fn until it succeeds, fails permanently, or the attempt budget is
// spent. A non-retryable error aborts immediately. Exhaustion wraps the last
// error; the wrapper keeps the cause's retryability.
func (r *Retrier) Do(ctx context.Context, backendName string, fn func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt < r.policy.MaxAttempts; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, r.backoff(attempt)); err != nil {
				return errors.NewTimeoutError(backendName, "cancelled while waiting to retry")
			}
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !errors.IsRetryable(err) {
			return err
		}
		if ctx.Err() != nil {
			return errors.NewTimeoutError(backendName, "deadline exceeded during retries")
		}
	}

	return errors.WrapRetriesExhausted(backendName, r.policy.MaxAttempts, lastErr)
}

// backoff computes the delay before the given retry attempt (1-based):
// min(base * 2^(attempt-1), max) randomized by the jitter fraction.
func (r *Retrier) backoff(attempt int) time.Duration {
	d := r.policy.BaseDelay * time.Duration(1<<(attempt-1))
	if r.policy.MaxDelay > 0 && d > r.policy.MaxDelay {
		d = r.policy.MaxDelay
	}
	if r.policy.Jitter > 0 {
		delta := (rand.Float64()*2 - 1) * r.policy.Jitter * float64(d)
		d = time.Duration(float64(d) + delta)
	}
	if d < 0 {
		d = 0
	}
	return d
}

// sleepCtx sleeps for d, returning early with ctx.Err() on cancellation.
// The timer is always released.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
