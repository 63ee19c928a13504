package retry

import (
	"math/rand/v2"
	"time"
)

// Default backoff parameters. These are deliberately conservative:
// documentation hosts are often behind CDNs that rate-limit bursts,
// and a crawl that waits a few extra seconds still finishes.
const (
	// DefaultBaseDelay is the first retry wait before jitter.
	DefaultBaseDelay = 1 * time.Second

	// DefaultMaxDelay caps the exponential growth.
	DefaultMaxDelay = 30 * time.Second

	// DefaultJitterMax is the upper bound of the uniform jitter added
	// to every wait.
	DefaultJitterMax = 500 * time.Millisecond

	// DefaultMaxAttempts is the per-page retry budget.
	DefaultMaxAttempts = 3
)

// BackoffOptions configures backoff computation.
type BackoffOptions struct {
	// BaseDelay is the attempt-0 wait. Zero means DefaultBaseDelay.
	BaseDelay time.Duration

	// MaxDelay caps the exponential term. Zero means DefaultMaxDelay.
	MaxDelay time.Duration

	// JitterMax bounds the uniform random jitter added to the wait.
	// Zero means DefaultJitterMax; negative disables jitter.
	JitterMax time.Duration

	// Rand returns a float64 in [0, 1). Nil uses math/rand/v2.
	// Injectable so tests can pin the jitter.
	Rand func() float64
}

func (o BackoffOptions) withDefaults() BackoffOptions {
	if o.BaseDelay <= 0 {
		o.BaseDelay = DefaultBaseDelay
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = DefaultMaxDelay
	}
	if o.JitterMax == 0 {
		o.JitterMax = DefaultJitterMax
	}
	if o.Rand == nil {
		o.Rand = rand.Float64
	}
	return o
}

// Backoff returns how long to wait before retrying after the given
// zero-based attempt. The wait is base*2^attempt capped at MaxDelay,
// plus uniform jitter in [0, JitterMax).
//
// A rate-limit error carrying a server-provided Retry-After overrides
// the exponential formula: we wait at least what the server asked,
// plus a small jitter so concurrent workers do not retry in lockstep.
func Backoff(attempt int, catErr *CategorizedError, opts BackoffOptions) time.Duration {
	o := opts.withDefaults()

	if catErr != nil && catErr.Category == CategoryRateLimit && catErr.RetryAfter > 0 {
		return catErr.RetryAfter + jitter(o, o.JitterMax/4)
	}

	delay := o.BaseDelay << uint(attempt) //nolint:gosec // attempt is a small retry counter
	if delay > o.MaxDelay || delay <= 0 { // <= 0 guards shift overflow
		delay = o.MaxDelay
	}
	return delay + jitter(o, o.JitterMax)
}

func jitter(o BackoffOptions, max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(o.Rand() * float64(max))
}

// ShouldRetry reports whether another attempt should be made after the
// given zero-based attempt. Permanent errors are never retried; all
// retryable categories are retried until the attempt budget runs out.
func ShouldRetry(catErr *CategorizedError, attempt, maxAttempts int) bool {
	if catErr == nil || !catErr.Retryable {
		return false
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return attempt+1 < maxAttempts
}
