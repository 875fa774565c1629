package crawler

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"syscall"
	"time"
)

// ExponentialRetryPolicy doubles the wait after every failed attempt.
type ExponentialRetryPolicy struct {
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// NewExponentialRetryPolicy builds a policy allowing maxRetries retries after
// the first attempt. Waits start at baseDelay and are capped at maxDelay.
func NewExponentialRetryPolicy(maxRetries int, baseDelay, maxDelay time.Duration) *ExponentialRetryPolicy {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if maxDelay > 0 && maxDelay < baseDelay {
		maxDelay = baseDelay
	}
	return &ExponentialRetryPolicy{
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		maxDelay:   maxDelay,
	}
}

// MaxAttempts is the total number of attempts the policy allows.
func (p *ExponentialRetryPolicy) MaxAttempts() int {
	return p.maxRetries + 1
}

// ShouldRetry reports whether another attempt follows the given 1-based attempt.
func (p *ExponentialRetryPolicy) ShouldRetry(attempt int) bool {
	return attempt <= p.maxRetries
}

// Backoff returns the wait after the given 1-based attempt: base, 2*base, 4*base...
func (p *ExponentialRetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := p.baseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if p.maxDelay > 0 && delay >= p.maxDelay {
			return p.maxDelay
		}
	}
	if p.maxDelay > 0 && delay > p.maxDelay {
		return p.maxDelay
	}
	return delay
}

// StatusClass groups HTTP statuses by how the fetcher treats them.
type StatusClass int

const (
	// StatusOK is a 2xx response.
	StatusOK StatusClass = iota
	// StatusMissing is a 404 or 410.
	StatusMissing
	// StatusRetriable is a 5xx that may succeed later.
	StatusRetriable
	// StatusRejected is any other non-2xx response.
	StatusRejected
)

// ClassifyHTTPStatus maps a status code to a StatusClass.
func ClassifyHTTPStatus(code int) StatusClass {
	switch {
	case code >= 200 && code < 300:
		return StatusOK
	case code == http.StatusNotFound, code == http.StatusGone:
		return StatusMissing
	case code == http.StatusInternalServerError,
		code == http.StatusBadGateway,
		code == http.StatusServiceUnavailable,
		code == http.StatusGatewayTimeout:
		return StatusRetriable
	default:
		return StatusRejected
	}
}

// IsRetriableError reports whether a transport error is worth another attempt.
// Malformed addresses and caller cancellation are not.
func IsRetriableError(err error) bool {
	if err == nil {
		return false
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Op != "parse"
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED)
}
