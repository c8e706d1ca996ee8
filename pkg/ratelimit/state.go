// Package ratelimit implements the 429-driven rate limit state machine for
// the ViCare API. It tracks a single process-wide blocked-until window,
// classifies daily-quota conditions, and instructs the cache to widen its
// TTLs while blocked.
package ratelimit

import (
	"time"
)

// state is the single process-wide rate limit record, owned exclusively by
// the Tracker.
type state struct {
	// retryAfter is the delay parsed from the last 429 response.
	retryAfter time.Duration

	// blockedUntil is the absolute time until which requests are gated.
	blockedUntil time.Time

	// retryCount counts consecutive rate limited requests.
	retryCount int

	// lastError is the human-readable message of the last 429.
	lastError string

	// dailyQuotaExceeded marks a long, non-retriable cooldown inferred
	// from an unusually long retry-after or a high retry count.
	dailyQuotaExceeded bool

	// resetTime is the expected end of the daily quota window.
	resetTime time.Time
}

// Status is a read-only snapshot of the tracker state.
type Status struct {
	IsLimited          bool      `json:"is_limited"`
	BlockedUntil       time.Time `json:"blocked_until,omitempty"`
	WaitSeconds        int       `json:"wait_seconds,omitempty"`
	RetryCount         int       `json:"retry_count"`
	DailyQuotaExceeded bool      `json:"daily_quota_exceeded"`
	ResetTime          time.Time `json:"reset_time,omitempty"`
	LastError          string    `json:"last_error,omitempty"`
}

// ErrorInfo describes a rate limited response handed to the tracker.
type ErrorInfo struct {
	// Status is the upstream HTTP status (429).
	Status int

	// RetryAfter is the raw Retry-After header value in seconds.
	// Empty when the header is absent.
	RetryAfter string

	// Message is the upstream error text.
	Message string
}
