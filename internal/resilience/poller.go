package resilience

import (
	"context"
	"fmt"
	"time"

	"github.com/merlinrabens/image-gen-mcp/pkg/errors"
)

// PollStatus is the normalized state of an asynchronous backend job.
type PollStatus int

const (
	StatusSubmitted PollStatus = iota
	StatusPending
	StatusReady
	StatusFailed
)

// String returns the status name for logging.
func (s PollStatus) String() string {
	switch s {
	case StatusSubmitted:
		return "submitted"
	case StatusPending:
		return "pending"
	case StatusReady:
		return "ready"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// PollConfig tunes the poll loop for one backend's conventions: some need
// sub-second initial polling, others multi-second intervals.
type PollConfig struct {
	InitialDelay time.Duration // delay before the first status check
	MaxDelay     time.Duration // cap on the backoff schedule
	Multiplier   float64       // backoff growth factor (default 1.5)
	MaxAttempts  int           // status check budget
	MaxWait      time.Duration // wall-clock ceiling for the whole poll
}

// DefaultPollConfig returns a schedule suitable for most job-based backends.
func DefaultPollConfig() PollConfig {
	return PollConfig{
		InitialDelay: time.Second,
		MaxDelay:     10 * time.Second,
		Multiplier:   1.5,
		MaxAttempts:  60,
		MaxWait:      5 * time.Minute,
	}
}

// CheckFunc reports the current job state. On StatusReady the returned value
// is the terminal result; on StatusFailed the returned error describes the
// failure (permanent unless the backend signals a transient condition).
type CheckFunc[T any] func(ctx context.Context) (PollStatus, T, error)

// Poll normalizes submit-then-check backends into one state machine:
// Submitted -> Pending -> {Ready | Failed}. It sleeps between checks on an
// exponential schedule, exits promptly on cancellation, and raises a
// retryable timeout error once the attempt or wall-clock budget is spent.
func Poll[T any](ctx context.Context, backendName string, cfg PollConfig, check CheckFunc[T]) (T, error) {
	var zero T

	if cfg.Multiplier <= 1 {
		cfg.Multiplier = 1.5
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 60
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = time.Second
	}

	deadline := time.Time{}
	if cfg.MaxWait > 0 {
		deadline = time.Now().Add(cfg.MaxWait)
	}

	delay := cfg.InitialDelay
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		if err := sleepCtx(ctx, delay); err != nil {
			return zero, errors.NewTimeoutError(backendName, "cancelled while polling for completion")
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			break
		}

		status, result, err := check(ctx)
		switch status {
		case StatusReady:
			return result, nil
		case StatusFailed:
			if err == nil {
				err = errors.NewBackendError(backendName, "job failed without detail", false)
			}
			return zero, err
		default:
			// Submitted or Pending: keep polling. A check error here is
			// treated as transient; the next iteration re-checks.
		}

		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	return zero, errors.NewTimeoutError(backendName, "job did not complete within the polling budget")
}
