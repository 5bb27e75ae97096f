// Package errors defines the unified error types for image generation
// operations. All backend-specific failures are mapped to these standard
// types so the orchestrator can classify them uniformly.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error kind constants. The kind is part of the caller-visible contract.
const (
	KindValidation          = "validation_error"
	KindConfiguration       = "configuration_error"
	KindRateLimit           = "rate_limit_exceeded"
	KindBackend             = "backend_error"
	KindTimeout             = "timeout_error"
	KindRetriesExhausted    = "retries_exhausted"
	KindNoCompatibleBackend = "no_compatible_backend"
)

// ImageError is the standardized error for a single failed operation.
// Retryable marks failures worth retrying against the same backend or
// falling back from; validation-type failures are permanent.
type ImageError struct {
	Kind       string `json:"kind"`
	Message    string `json:"message"`
	Backend    string `json:"backend,omitempty"`
	StatusCode int    `json:"status_code,omitempty"`
	Retryable  bool   `json:"retryable"`

	cause error
}

// Error implements the error interface.
func (e *ImageError) Error() string {
	if e.Backend != "" {
		return fmt.Sprintf("[%s] %s (backend=%s)", e.Kind, e.Message, e.Backend)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *ImageError) Unwrap() error {
	return e.cause
}

// NewValidationError creates a permanent bad-request error.
func NewValidationError(message string) *ImageError {
	return &ImageError{Kind: KindValidation, Message: message}
}

// NewConfigurationError creates a permanent error for a missing or
// unconfigured backend.
func NewConfigurationError(message string) *ImageError {
	return &ImageError{Kind: KindConfiguration, Message: message}
}

// NewRateLimitError creates a transient backpressure error. It is marked
// retryable so the orchestrator may fall back to another backend, but the
// orchestrator never retries it against the same backend.
func NewRateLimitError(backend, message string) *ImageError {
	return &ImageError{Kind: KindRateLimit, Message: message, Backend: backend, Retryable: true}
}

// NewBackendError creates a backend failure with explicit retryability.
func NewBackendError(backend, message string, retryable bool) *ImageError {
	return &ImageError{Kind: KindBackend, Message: message, Backend: backend, Retryable: retryable}
}

// NewTimeoutError creates a transient deadline error.
func NewTimeoutError(backend, message string) *ImageError {
	return &ImageError{Kind: KindTimeout, Message: message, Backend: backend, Retryable: true}
}

// NewNoCompatibleBackendError creates a permanent error for requests no
// configured backend can serve.
func NewNoCompatibleBackendError(message string) *ImageError {
	return &ImageError{Kind: KindNoCompatibleBackend, Message: message}
}

// WrapRetriesExhausted wraps the last underlying error once the retry
// budget is spent. The wrapper keeps the cause's retryability so the
// orchestrator can still decide whether fallback applies.
func WrapRetriesExhausted(backend string, attempts int, cause error) *ImageError {
	return &ImageError{
		Kind:      KindRetriesExhausted,
		Message:   fmt.Sprintf("gave up after %d attempts: %v", attempts, cause),
		Backend:   backend,
		Retryable: IsRetryable(cause),
		cause:     cause,
	}
}

// FromHTTPStatus maps an upstream HTTP status to a classified error.
// 5xx and throttling responses are retryable; 4xx validation-type responses
// are permanent.
func FromHTTPStatus(backend string, statusCode int, message string) *ImageError {
	e := &ImageError{Kind: KindBackend, Message: message, Backend: backend, StatusCode: statusCode}
	switch {
	case statusCode == http.StatusTooManyRequests:
		e.Retryable = true
	case statusCode == http.StatusRequestTimeout, statusCode == http.StatusGatewayTimeout:
		e.Kind = KindTimeout
		e.Retryable = true
	case statusCode >= 500:
		e.Retryable = true
	}
	return e
}

// As is errors.As, re-exported so callers need not import both packages.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Is is errors.Is, re-exported so callers need not import both packages.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// IsRetryable reports whether err is classified as transient. Unknown error
// types (raw network failures and the like) count as retryable.
func IsRetryable(err error) bool {
	var ie *ImageError
	if errors.As(err, &ie) {
		return ie.Retryable
	}
	return err != nil
}

// Attempt records one failed backend try inside a fallback chain.
type Attempt struct {
	Backend string
	Err     error
}

// FallbackError aggregates every attempted backend and its terminal reason
// once the candidate list is exhausted.
type FallbackError struct {
	Attempts []Attempt
}

// Error implements the error interface.
func (e *FallbackError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %v", a.Backend, a.Err))
	}
	return fmt.Sprintf("all %d backend(s) failed: %s", len(e.Attempts), strings.Join(parts, "; "))
}
