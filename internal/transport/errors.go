package transport

import (
	"fmt"
	"time"
)

// RateLimitError reports that the local bucket refused a request because
// waiting on the limit is disabled. Wait is the pause that would have been
// required before the request could proceed.
type RateLimitError struct {
	Bucket string
	Wait   time.Duration
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited: bucket %q requires a %s wait", e.Bucket, e.Wait)
}

// WaitLimitError reports that the pause required by the local bucket exceeds
// the configured ceiling, so the request was refused instead of blocking.
type WaitLimitError struct {
	Bucket string
	Wait   time.Duration
	Max    time.Duration
}

// Error implements the error interface.
func (e *WaitLimitError) Error() string {
	return fmt.Sprintf("rate limited: bucket %q requires a %s wait, exceeding the %s ceiling", e.Bucket, e.Wait, e.Max)
}

// RetryExhaustedError wraps the last transport error after every retry
// attempt failed without producing a response.
type RetryExhaustedError struct {
	Attempts int
	Err      error
}

// Error implements the error interface.
func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("giving up after %d attempts: %v", e.Attempts, e.Err)
}

// Unwrap returns the final attempt's error.
func (e *RetryExhaustedError) Unwrap() error {
	return e.Err
}
