// Error classification for dispatch. Distinguishes retryable throttling
// from fatal errors: typed errors carrying a structured status are the
// ground truth; text matching is a compatibility shim for opaque error
// sources and is documented as such.

package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Attempt failure reasons.
const (
	ReasonRateLimit   = "rate_limit"
	ReasonTimeout     = "timeout"
	ReasonServerError = "server_error"
	ReasonAbort       = "abort"
	ReasonUpstream    = "upstream_error"
	ReasonUnknown     = "unknown"
)

// RateLimitError is a typed throttling signal. Status carries the HTTP
// status code when the base client supplied one.
type RateLimitError struct {
	Status int
	Err    error
}

func (e *RateLimitError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("rate limited (status=%d): %v", e.Status, e.Err)
	}
	return fmt.Sprintf("rate limited: %v", e.Err)
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// RateLimit marks this error as a throttling signal for the pool.
func (e *RateLimitError) RateLimit() bool { return true }

// StallError reports a stream that stopped producing output within the
// liveness window. Slow-but-alive streams never trip it.
type StallError struct {
	Model   string
	Timeout string
}

func (e *StallError) Error() string {
	return fmt.Sprintf("stream from %s stalled: no output for %s", e.Model, e.Timeout)
}

// Attempt records one failed model attempt.
type Attempt struct {
	Model  string `json:"model"`
	Reason string `json:"reason"`
	Error  string `json:"error"`
}

// ErrAllModelsFailed is the sentinel wrapped by AllModelsFailedError.
var ErrAllModelsFailed = errors.New("all models failed")

// AllModelsFailedError reports total upstream unavailability: every model
// in the candidate list failed. Callers must surface it, never swallow it.
type AllModelsFailedError struct {
	Attempts []Attempt
}

func (e *AllModelsFailedError) Error() string {
	var sb strings.Builder
	sb.WriteString("all models failed:")
	for i, a := range e.Attempts {
		sb.WriteString(fmt.Sprintf("\n  %d. %s: [%s] %s", i+1, a.Model, a.Reason, a.Error))
	}
	return sb.String()
}

func (e *AllModelsFailedError) Unwrap() error { return ErrAllModelsFailed }

// ClassifyReason buckets an attempt error for audit records.
func ClassifyReason(err error) string {
	if err == nil {
		return ReasonUnknown
	}

	if errors.Is(err, context.Canceled) {
		return ReasonAbort
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonTimeout
	}
	var rateLimited *RateLimitError
	if errors.As(err, &rateLimited) {
		return ReasonRateLimit
	}
	var stalled *StallError
	if errors.As(err, &stalled) {
		return ReasonTimeout
	}

	text := strings.ToLower(err.Error())
	switch {
	case strings.Contains(text, "rate limit"),
		strings.Contains(text, "429"),
		strings.Contains(text, "too many requests"):
		return ReasonRateLimit
	case strings.Contains(text, "timeout"),
		strings.Contains(text, "deadline exceeded"):
		return ReasonTimeout
	case strings.Contains(text, "500"),
		strings.Contains(text, "502"),
		strings.Contains(text, "503"),
		strings.Contains(text, "overloaded"),
		strings.Contains(text, "server error"):
		return ReasonServerError
	default:
		return ReasonUpstream
	}
}
