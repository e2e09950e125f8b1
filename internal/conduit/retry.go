package conduit

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type rateLimitError struct{}

func (e *rateLimitError) Error() string { return "rate limited" }

type authError struct {
	message string
}

func (e *authError) Error() string {
	return "authentication error: " + e.message
}

type serverError struct {
	statusCode int
	body       string
}

func (e *serverError) Error() string {
	return fmt.Sprintf("server error (status %d): %s", e.statusCode, e.body)
}

// APIError is a Conduit-level failure reported inside a successful HTTP
// response.
type APIError struct {
	Method string
	Code   string
	Info   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Method, e.Code, e.Info)
}

// IsAuthError checks if an error is an authentication error. Conduit
// reports a bad token as an API error rather than an HTTP status, so both
// forms count.
func IsAuthError(err error) bool {
	var ae *authError
	if errors.As(err, &ae) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == "ERR-INVALID-AUTH" || apiErr.Code == "ERR-INVALID-SESSION"
	}
	return false
}

func isRetryable(err error) bool {
	var rl *rateLimitError
	var se *serverError
	return errors.As(err, &rl) || errors.As(err, &se)
}

// backoffUnit is the first retry delay. Tests shrink it.
var backoffUnit = time.Second

func retryWithBackoff(ctx context.Context, maxRetries int, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		// Only rate limits and server errors are worth repeating
		if !isRetryable(lastErr) {
			return lastErr
		}

		if attempt < maxRetries {
			backoff := time.Duration(1<<uint(attempt)) * backoffUnit
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
	}
	return lastErr
}
