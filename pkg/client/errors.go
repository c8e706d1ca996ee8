package client

import (
	"errors"
	"fmt"
)

// Common errors returned by the client.
var (
	// ErrMaxRetriesExceeded is returned when all retry attempts are
	// exhausted.
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")

	// ErrDailyQuotaExceeded is returned when the tracker infers a daily
	// quota condition; retrying within the day will not help.
	ErrDailyQuotaExceeded = errors.New("daily quota exceeded")

	// ErrAuthExpired is returned when a 401/403 persists after one token
	// refresh attempt.
	ErrAuthExpired = errors.New("authentication expired")

	// ErrContextCancelled is returned when the context is cancelled
	// during a backoff sleep.
	ErrContextCancelled = errors.New("context cancelled")
)

// RateLimitError is returned when a call is refused because the tracker is
// currently blocked. It carries the remaining wait so callers can surface
// it to users.
type RateLimitError struct {
	WaitSeconds        int
	DailyQuotaExceeded bool
	LastError          string
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	if e.DailyQuotaExceeded {
		return fmt.Sprintf("rate limited (daily quota exceeded): retry in %ds", e.WaitSeconds)
	}
	return fmt.Sprintf("rate limited: retry in %ds", e.WaitSeconds)
}

// UpstreamError represents a non-retryable or retry-exhausted upstream
// failure.
type UpstreamError struct {
	Operation string
	Status    int
	Message   string
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: upstream error (status %d): %s", e.Operation, e.Status, e.Message)
}
