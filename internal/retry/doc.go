// Package retry classifies fetch failures and computes retry waits.
//
// The classifier maps an HTTP status or transport error to a stable
// category (rate limit, retryable, permanent, unknown) from a small
// field set: status code, error text, and the Retry-After header.
// It never inspects concrete error types beyond the net package's
// timeout interface, so classification stays a pure function.
//
// Backoff is exponential with a cap and uniform jitter. Rate-limit
// errors that carry a server-provided Retry-After use that value
// instead of the exponential formula.
//
// The package performs no I/O and no sleeping; the crawler owns the
// actual waits so they stay cancellable.
package retry
