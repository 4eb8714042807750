package crawler

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"
)

// FailurePolicy decides what a listing error does to the crawl.
type FailurePolicy int

const (
	// FailAbort stops the whole crawl on the first listing error.
	FailAbort FailurePolicy = iota
	// FailRetry retries transient errors with backoff, then aborts.
	FailRetry
	// FailSkip retries transient errors with backoff, then marks the
	// identity unreachable and continues with the rest of the frontier.
	FailSkip
)

// String returns the policy name as accepted by ParseFailurePolicy.
func (p FailurePolicy) String() string {
	switch p {
	case FailAbort:
		return "abort"
	case FailRetry:
		return "retry"
	case FailSkip:
		return "skip"
	default:
		return "unknown"
	}
}

// ParseFailurePolicy parses "abort", "retry" or "skip" (case-insensitive).
// The empty string means FailAbort.
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "abort":
		return FailAbort, nil
	case "retry":
		return FailRetry, nil
	case "skip":
		return FailSkip, nil
	default:
		return FailAbort, ErrInvalidFailurePolicy
	}
}

// retries reports whether the policy retries failed pages.
func (p FailurePolicy) retries() bool {
	return p == FailRetry || p == FailSkip
}

// RetryConfig bounds the per-page retry loop of FailRetry and FailSkip.
type RetryConfig struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int

	// InitialInterval is the first backoff delay.
	InitialInterval time.Duration

	// MaxInterval caps a single backoff delay.
	MaxInterval time.Duration
}

// DefaultRetryConfig returns the retry settings used when none are configured.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      5,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     30 * time.Second,
	}
}

// transienter is implemented by errors that know whether retrying can help.
type transienter interface {
	Transient() bool
}

// isTransient classifies an error for the retry loop.
// Cancellation is never transient and errors that report Transient() are
// trusted. Of the rest only network failures are retried; anything else,
// such as a response that could not be decoded, fails the same way again.
func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var t transienter
	if errors.As(err, &t) {
		return t.Transient()
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
