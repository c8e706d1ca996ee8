package client

import (
	"context"
	"fmt"
	"time"
)

// transportBackoffCeiling caps the backoff applied to generic transport and
// server failures.
const transportBackoffCeiling = 30 * time.Second

// backoffDelay computes base * 2^attempt capped at ceiling.
func backoffDelay(base time.Duration, attempt int, ceiling time.Duration) time.Duration {
	if attempt > 30 {
		attempt = 30
	}
	d := base << uint(attempt)
	if d <= 0 || d > ceiling {
		return ceiling
	}
	return d
}

// sleepWithContext suspends for d without starving other in-flight calls,
// honoring context cancellation. An abandoned retry loop simply stops here;
// no compensating action is needed because the tracker's state derives from
// absolute response data, not per-call state.
func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
	case <-timer.C:
		return nil
	}
}
