package ai

import (
	"errors"
	"io"
	"net"
	"syscall"
)

// Sentinel errors classifying failures of the external service. Backends
// wrap raw transport and API errors with these so the scheduler's retry
// policy can tell a retryable fault from a terminal one without knowing
// which backend produced it.
var (
	// ErrContentRejected means the service refused the input for safety
	// reasons. Terminal: retrying the same content cannot succeed.
	ErrContentRejected = errors.New("content rejected by service safety system")

	// ErrRateLimited is an explicit rate-limit signal from the service.
	ErrRateLimited = errors.New("rate limited by service")

	// ErrUnavailable covers server-side failures (5xx responses).
	ErrUnavailable = errors.New("service unavailable")

	// ErrTimeout marks a per-call deadline hit while the enclosing run is
	// still live, so the call may be retried.
	ErrTimeout = errors.New("service call timed out")

	// ErrUnauthorized means the service refused the configured credentials.
	ErrUnauthorized = errors.New("service rejected credentials")
)

// IsTransient reports whether err is a failure that a retry can plausibly
// fix: explicit rate limits, per-call timeouts, server-side failures, and
// network faults. Safety rejections, credential failures, and anything
// unclassified are terminal.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrContentRejected) || errors.Is(err, ErrUnauthorized) {
		return false
	}
	if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrUnavailable) || errors.Is(err, ErrTimeout) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	switch {
	case errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.EPIPE):
		return true
	}
	return false
}
