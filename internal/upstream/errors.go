package upstream

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/aashari/go-onemin-gateway/internal/reliability"
)

// ErrCircuitOpen is a local fast rejection: no network call was made.
var ErrCircuitOpen = reliability.ErrCircuitOpen

// TimeoutError means the upstream did not answer within the call timeout.
type TimeoutError struct {
	Op      string
	Timeout time.Duration
	Err     error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: upstream timed out after %s", e.Op, e.Timeout)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// NetworkError wraps transport failures (DNS, refused connections, resets).
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// UpstreamError is a non-2xx answer or a 2xx answer that failed validation.
// Body is kept for server-side logging only.
type UpstreamError struct {
	Op         string
	StatusCode int
	Reason     string
	Body       string
	retriable  bool
	retryAfter time.Duration
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: upstream returned %d: %s", e.Op, e.StatusCode, e.Reason)
}

// IsRetriable implements reliability.RetryableError.
func (e *UpstreamError) IsRetriable() bool { return e.retriable }

// RetryAfter implements reliability.RetryAfterError.
func (e *UpstreamError) RetryAfter() time.Duration { return e.retryAfter }

// IsCredentialRejected reports whether the provider refused the caller's key.
func IsCredentialRejected(err error) bool {
	var upErr *UpstreamError
	if errors.As(err, &upErr) {
		return upErr.StatusCode == http.StatusUnauthorized || upErr.StatusCode == http.StatusForbidden
	}
	return false
}

// CountsAgainstBreaker is the breaker's failure filter: a rejected key is a
// caller problem, not an upstream outage.
func CountsAgainstBreaker(err error) bool {
	return !IsCredentialRejected(err)
}

func classifyTransportError(op string, timeout time.Duration, timedOut bool, err error) error {
	if timedOut || errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{Op: op, Timeout: timeout, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &TimeoutError{Op: op, Timeout: timeout, Err: err}
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return &NetworkError{Op: op, Err: err}
}

// Outcome names an error for metrics and logs.
func Outcome(err error) string {
	var (
		timeoutErr *TimeoutError
		netErr     *NetworkError
		upErr      *UpstreamError
	)
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrCircuitOpen):
		return "circuit_open"
	case errors.As(err, &timeoutErr):
		return "timeout"
	case errors.As(err, &netErr):
		return "network_error"
	case errors.As(err, &upErr):
		return "upstream_error"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}
