package retry

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Category is the stable classification of a fetch failure.
type Category string

// Failure categories, in decreasing order of specificity.
const (
	// CategoryRateLimit means the server asked us to slow down (HTTP 429).
	CategoryRateLimit Category = "rate_limit"

	// CategoryRetryable means a transient condition: 5xx, 408, network
	// errors, timeouts.
	CategoryRetryable Category = "retryable"

	// CategoryPermanent means retrying cannot help: auth failures,
	// missing pages, other 4xx.
	CategoryPermanent Category = "permanent"

	// CategoryUnknown is the fail-safe default for unmatched failures.
	// Unknown errors are retried: a false retry costs one request, a
	// false give-up costs a page.
	CategoryUnknown Category = "unknown"
)

// CategorizedError is the stable result of classifying a failed fetch
// attempt. It is logged and drives retry decisions; it is never
// persisted.
type CategorizedError struct {
	// Category is the failure class.
	Category Category

	// Retryable reports whether another attempt may succeed.
	Retryable bool

	// StatusCode is the HTTP status, or 0 for transport failures.
	StatusCode int

	// RetryAfter is the server-provided wait from a Retry-After
	// header, or 0 when the server gave none.
	RetryAfter time.Duration

	// Message is the underlying failure text.
	Message string

	// SuggestedAction is a short operator-facing hint.
	SuggestedAction string
}

// Error implements the error interface.
func (e *CategorizedError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s (HTTP %d): %s", e.Category, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Category, e.Message)
}

// Classify maps a failed fetch attempt to a CategorizedError.
// statusCode is the HTTP status (0 when the request never completed),
// header is the response header (may be nil), and err is the transport
// error (nil for HTTP-level failures).
//
// Rules are applied in priority order; the first match wins.
func Classify(statusCode int, header http.Header, err error) *CategorizedError {
	message := ""
	if err != nil {
		message = err.Error()
	}

	if statusCode > 0 {
		return classifyStatus(statusCode, header, message)
	}

	if err != nil {
		if isTransientNetErr(err) || strings.Contains(strings.ToLower(message), "timeout") {
			return &CategorizedError{
				Category:        CategoryRetryable,
				Retryable:       true,
				Message:         message,
				SuggestedAction: "retry with backoff",
			}
		}
	}

	return &CategorizedError{
		Category:        CategoryUnknown,
		Retryable:       true,
		Message:         message,
		SuggestedAction: "retry with backoff",
	}
}

func classifyStatus(statusCode int, header http.Header, message string) *CategorizedError {
	if message == "" {
		message = http.StatusText(statusCode)
	}

	switch {
	case statusCode == http.StatusTooManyRequests:
		return &CategorizedError{
			Category:        CategoryRateLimit,
			Retryable:       true,
			StatusCode:      statusCode,
			RetryAfter:      parseRetryAfter(header),
			Message:         message,
			SuggestedAction: "wait for the server-provided delay and retry",
		}
	case statusCode >= 500:
		return &CategorizedError{
			Category:        CategoryRetryable,
			Retryable:       true,
			StatusCode:      statusCode,
			Message:         message,
			SuggestedAction: "retry with backoff",
		}
	case statusCode == http.StatusRequestTimeout:
		return &CategorizedError{
			Category:        CategoryRetryable,
			Retryable:       true,
			StatusCode:      statusCode,
			Message:         message,
			SuggestedAction: "retry with backoff",
		}
	case statusCode == http.StatusUnauthorized,
		statusCode == http.StatusForbidden,
		statusCode == http.StatusNotFound,
		statusCode == http.StatusGone:
		return &CategorizedError{
			Category:        CategoryPermanent,
			Retryable:       false,
			StatusCode:      statusCode,
			Message:         message,
			SuggestedAction: "skip this page",
		}
	case statusCode >= 400:
		return &CategorizedError{
			Category:        CategoryPermanent,
			Retryable:       false,
			StatusCode:      statusCode,
			Message:         message,
			SuggestedAction: "skip this page",
		}
	}

	return &CategorizedError{
		Category:        CategoryUnknown,
		Retryable:       true,
		StatusCode:      statusCode,
		Message:         message,
		SuggestedAction: "retry with backoff",
	}
}

// transientMessages are substrings of error text produced by the net
// package and resolvers for conditions worth retrying.
var transientMessages = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"no such host",
	"temporary failure in name resolution",
	"network is unreachable",
	"eof",
}

// isTransientNetErr reports whether err looks like a transient network
// condition. We match on net.Error timeouts plus well-known error text
// rather than concrete error types, because the set of types the
// transport can return is not stable across Go versions.
func isTransientNetErr(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	text := strings.ToLower(err.Error())
	for _, m := range transientMessages {
		if strings.Contains(text, m) {
			return true
		}
	}
	return false
}

// parseRetryAfter extracts the Retry-After header as a duration.
// Integer values are seconds; otherwise an HTTP date is tried and the
// difference from now is clamped at zero. Returns 0 when the header is
// absent or unparseable.
func parseRetryAfter(header http.Header) time.Duration {
	if header == nil {
		return 0
	}
	value := header.Get("Retry-After")
	if value == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
		if seconds < 0 {
			return 0
		}
		return time.Duration(seconds) * time.Second
	}

	if when, err := http.ParseTime(value); err == nil {
		d := time.Until(when)
		if d < 0 {
			return 0
		}
		return d
	}

	return 0
}
