package ratelimit

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for rate limit tracking.
var (
	rateLimitBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vicare_rate_limit_blocks_total",
		Help: "Total number of 429 responses handled by the tracker",
	})

	rateLimitBlocked = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vicare_rate_limit_blocked",
		Help: "Whether requests are currently blocked (1) or not (0)",
	})

	dailyQuotaExceededGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vicare_daily_quota_exceeded",
		Help: "Whether the daily quota exceeded condition is active (1) or not (0)",
	})

	rateLimitRetryCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vicare_rate_limit_retry_count",
		Help: "Current consecutive rate limited request count",
	})
)

// TTL multipliers instructed to the cache while blocked.
const (
	ttlWidenNormal     = 3.0
	ttlWidenDailyQuota = 10.0
)

// dailyQuotaCooldown is the reset marker set when the daily quota trips.
const dailyQuotaCooldown = 24 * time.Hour

// TTLPolicy is the cache capability the tracker drives: widening the
// shortest-lived TTL category during a block and restoring it afterwards.
type TTLPolicy interface {
	WidenFeatureTTL(multiplier float64)
	RestoreFeatureTTL()
}

// Config holds the tracker configuration.
type Config struct {
	// MaxRetries bounds ShouldRetry.
	MaxRetries int

	// BaseDelay is the first exponential backoff step.
	BaseDelay time.Duration

	// MaxDelay caps the exponential backoff.
	MaxDelay time.Duration

	// ResetBuffer is added on top of every computed block window.
	ResetBuffer time.Duration

	// DailyQuotaThreshold classifies a retry-after at or above this value
	// as a daily quota condition.
	DailyQuotaThreshold time.Duration

	// DailyQuotaRetryCount classifies a running retry count above this
	// value as a daily quota condition.
	DailyQuotaRetryCount int
}

// DefaultConfig returns the default tracker configuration.
func DefaultConfig() Config {
	return Config{
		MaxRetries:           3,
		BaseDelay:            time.Second,
		MaxDelay:             60 * time.Second,
		ResetBuffer:          60 * time.Second,
		DailyQuotaThreshold:  time.Hour,
		DailyQuotaRetryCount: 10,
	}
}

// Tracker is the process-wide rate limit state machine. A block applies to
// every key because the upstream vendor rate-limits globally, not
// per-endpoint.
type Tracker struct {
	mu     sync.Mutex
	cfg    Config
	state  state
	ttl    TTLPolicy
	logger zerolog.Logger

	now func() time.Time
}

// NewTracker creates a rate limit tracker. ttl may be nil when no cache
// cooperation is wanted.
func NewTracker(cfg Config, ttl TTLPolicy, logger zerolog.Logger) *Tracker {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultConfig().MaxRetries
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultConfig().BaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = DefaultConfig().MaxDelay
	}
	if cfg.DailyQuotaThreshold <= 0 {
		cfg.DailyQuotaThreshold = DefaultConfig().DailyQuotaThreshold
	}
	if cfg.DailyQuotaRetryCount <= 0 {
		cfg.DailyQuotaRetryCount = DefaultConfig().DailyQuotaRetryCount
	}

	return &Tracker{
		cfg:    cfg,
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
	}
}

// IsRateLimited reports whether the current time is before blockedUntil.
func (t *Tracker) IsRateLimited() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.isRateLimitedLocked(t.now())
}

func (t *Tracker) isRateLimitedLocked(now time.Time) bool {
	return now.Before(t.state.blockedUntil)
}

// HandleRateLimit processes a 429 response: it parses the retry-after
// duration, classifies daily-quota conditions, computes the block window
// and instructs the cache to widen its TTLs. Returns the computed delay
// (excluding the reset buffer).
func (t *Tracker) HandleRateLimit(info ErrorInfo) time.Duration {
	t.mu.Lock()

	now := t.now()
	retryAfter := parseRetryAfter(info.RetryAfter)

	daily := retryAfter >= t.cfg.DailyQuotaThreshold ||
		t.state.retryCount > t.cfg.DailyQuotaRetryCount

	delay := retryAfter
	if delay <= 0 {
		delay = t.backoff(t.state.retryCount)
	}
	if daily && delay < time.Hour {
		delay = time.Hour
	}

	t.state.retryAfter = retryAfter
	t.state.blockedUntil = now.Add(delay + t.cfg.ResetBuffer)
	t.state.retryCount++
	t.state.lastError = info.Message
	if daily {
		t.state.dailyQuotaExceeded = true
		t.state.resetTime = now.Add(dailyQuotaCooldown)
	}

	blockedUntil := t.state.blockedUntil
	retryCount := t.state.retryCount
	t.mu.Unlock()

	rateLimitBlocksTotal.Inc()
	rateLimitBlocked.Set(1)
	rateLimitRetryCount.Set(float64(retryCount))
	if daily {
		dailyQuotaExceededGauge.Set(1)
	}

	if t.ttl != nil {
		if daily {
			t.ttl.WidenFeatureTTL(ttlWidenDailyQuota)
		} else {
			t.ttl.WidenFeatureTTL(ttlWidenNormal)
		}
	}

	event := t.logger.Warn()
	if daily {
		event = t.logger.Error()
	}
	event.
		Time("blocked_until", blockedUntil).
		Dur("delay", delay).
		Int("retry_count", retryCount).
		Bool("daily_quota_exceeded", daily).
		Str("upstream_error", info.Message).
		Msg("Rate limited")

	return delay
}

// ShouldRetry reports whether another attempt is allowed: never while
// blocked or under a daily quota condition, otherwise while retryCount is
// under the configured maximum.
func (t *Tracker) ShouldRetry(retryCount int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.isRateLimitedLocked(t.now()) || t.state.dailyQuotaExceeded {
		return false
	}
	return retryCount < t.cfg.MaxRetries
}

// RetryDelay returns the remaining block time when blocked, otherwise the
// capped exponential backoff for the attempt. Also used for non-429
// failures.
func (t *Tracker) RetryDelay(retryCount int) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if t.isRateLimitedLocked(now) {
		return t.state.blockedUntil.Sub(now)
	}
	return t.backoff(retryCount)
}

// RecordSuccess resets the retry bookkeeping after a successful request.
// It deliberately does not clear blockedUntil: a success observed while
// still blocked must not lift the block early.
func (t *Tracker) RecordSuccess() {
	t.mu.Lock()
	t.state.retryCount = 0
	t.state.lastError = ""
	t.mu.Unlock()

	rateLimitRetryCount.Set(0)
}

// CheckAndResetIfExpired fully resets the state once blockedUntil has
// passed, restoring the cache's widened TTL. This is the only path back to
// the clear state after a block and must run before every call attempt.
func (t *Tracker) CheckAndResetIfExpired() {
	t.mu.Lock()
	if t.state.blockedUntil.IsZero() || t.now().Before(t.state.blockedUntil) {
		t.mu.Unlock()
		return
	}
	t.state = state{}
	t.mu.Unlock()

	rateLimitBlocked.Set(0)
	dailyQuotaExceededGauge.Set(0)
	rateLimitRetryCount.Set(0)

	if t.ttl != nil {
		t.ttl.RestoreFeatureTTL()
	}
	t.logger.Info().Msg("Rate limit window expired, state reset")
}

// Status returns a snapshot of the tracker state.
func (t *Tracker) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	s := Status{
		IsLimited:          t.isRateLimitedLocked(now),
		RetryCount:         t.state.retryCount,
		DailyQuotaExceeded: t.state.dailyQuotaExceeded,
		ResetTime:          t.state.resetTime,
		LastError:          t.state.lastError,
	}
	if s.IsLimited {
		s.BlockedUntil = t.state.blockedUntil
		s.WaitSeconds = int(t.state.blockedUntil.Sub(now).Seconds() + 0.5)
	}
	return s
}

// backoff computes baseDelay * 2^retryCount capped at MaxDelay.
func (t *Tracker) backoff(retryCount int) time.Duration {
	if retryCount > 30 {
		retryCount = 30
	}
	d := t.cfg.BaseDelay << uint(retryCount)
	if d <= 0 || d > t.cfg.MaxDelay {
		return t.cfg.MaxDelay
	}
	return d
}

// parseRetryAfter converts a Retry-After header value (in seconds) to a
// duration. Absent or unparseable values yield zero.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	seconds, err := strconv.Atoi(value)
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
