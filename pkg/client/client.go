// Package client provides the call orchestrator for the ViCare API: the
// per-request control loop that consults the cache, gates on the rate limit
// tracker, invokes the transport and classifies the outcome into retry,
// backoff, token refresh or failure.
package client

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/diegoweb100/vicare-client-go/pkg/cache"
	"github.com/diegoweb100/vicare-client-go/pkg/logging"
	"github.com/diegoweb100/vicare-client-go/pkg/ratelimit"
	"github.com/diegoweb100/vicare-client-go/pkg/transport"
)

// Prometheus metrics for orchestrated calls.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vicare_requests_total",
		Help: "Total orchestrated calls by operation and outcome",
	}, []string{"operation", "outcome"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vicare_request_duration_seconds",
		Help:    "Orchestrated call duration in seconds by operation",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"operation"})

	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vicare_retries_total",
		Help: "Total retry attempts by reason",
	}, []string{"reason"}) // "rate_limit", "auth_refresh", "transport"
)

// RequestFunc performs one transport attempt. The orchestrator passes extra
// headers (conditional-request validators) to be merged into the request.
type RequestFunc func(ctx context.Context, extra http.Header) (*transport.Response, error)

// Config holds the client configuration.
type Config struct {
	// Cache configures the response cache.
	Cache cache.Config

	// RateLimit configures the tracker. Its MaxRetries and BaseDelay
	// also drive the generic (non-429) retry path.
	RateLimit ratelimit.Config
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig() Config {
	return Config{
		Cache:     cache.DefaultConfig(),
		RateLimit: ratelimit.DefaultConfig(),
	}
}

// Client owns the cache and rate limit tracker and orchestrates calls
// against them. Multiple instances do not interfere: there is no ambient
// state.
type Client struct {
	cache   *cache.Cache
	tracker *ratelimit.Tracker
	auth    transport.TokenSource
	cfg     Config
	logger  zerolog.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a client. auth may be nil when token refresh is handled
// elsewhere; 401/403 responses are then propagated directly.
func New(cfg Config, auth transport.TokenSource) (*Client, error) {
	if cfg.Cache.MaxEntries < 0 {
		return nil, fmt.Errorf("max entries must not be negative (got %d)", cfg.Cache.MaxEntries)
	}

	logger := logging.NewLogger("vicare-client")

	responseCache := cache.New(cfg.Cache, logging.NewLogger("cache"))
	tracker := ratelimit.NewTracker(cfg.RateLimit, responseCache, logging.NewLogger("ratelimit"))

	return &Client{
		cache:   responseCache,
		tracker: tracker,
		auth:    auth,
		cfg:     cfg,
		logger:  logger,
		sleep:   sleepWithContext,
	}, nil
}

// Close releases the client's resources.
func (c *Client) Close() {
	c.cache.Close()
}

// MakeCall runs the per-request control loop. When key is non-nil the cache
// is consulted first and a hit returns a synthetic cached response without
// touching the transport or the rate limit state. Retries are an explicit
// loop; backoff sleeps suspend on the context rather than blocking.
func (c *Client) MakeCall(ctx context.Context, fn RequestFunc, operation string, key *cache.Key) (*transport.Response, error) {
	start := time.Now()
	defer func() {
		requestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}()

	logger := c.logger.With().
		Str("operation", operation).
		Str("call_id", uuid.NewString()).
		Logger()

	if key != nil {
		if data, ok := c.cache.Get(*key); ok {
			logger.Debug().Bool("cache_hit", true).Msg("Served from cache")
			requestsTotal.WithLabelValues(operation, "cache_hit").Inc()
			return &transport.Response{Status: http.StatusOK, Data: data, Cached: true}, nil
		}
	}

	attempt := 0
	refreshed := false

	for {
		c.tracker.CheckAndResetIfExpired()
		if c.tracker.IsRateLimited() {
			status := c.tracker.Status()
			logger.Warn().
				Time("blocked_until", status.BlockedUntil).
				Int("wait_seconds", status.WaitSeconds).
				Msg("Call refused, rate limited")
			requestsTotal.WithLabelValues(operation, "rate_limited").Inc()
			return nil, &RateLimitError{
				WaitSeconds:        status.WaitSeconds,
				DailyQuotaExceeded: status.DailyQuotaExceeded,
				LastError:          status.LastError,
			}
		}

		extra := http.Header{}
		if key != nil {
			extra = c.cache.ConditionalHeaders(*key)
		}

		resp, err := fn(ctx, extra)
		if err != nil {
			if attempt < c.cfg.RateLimit.MaxRetries {
				delay := backoffDelay(c.cfg.RateLimit.BaseDelay, attempt, transportBackoffCeiling)
				logger.Warn().Err(err).Int("retry_count", attempt).Dur("backoff", delay).Msg("Transport failure, retrying")
				retriesTotal.WithLabelValues("transport").Inc()
				if serr := c.sleep(ctx, delay); serr != nil {
					return nil, serr
				}
				attempt++
				continue
			}
			requestsTotal.WithLabelValues(operation, "error").Inc()
			return nil, fmt.Errorf("%s: %w (after %d attempts)", operation, err, attempt+1)
		}

		switch {
		case resp.Status == http.StatusNotModified:
			if key != nil {
				if data, ok := c.cache.HandleNotModified(*key); ok {
					logger.Debug().Msg("304 Not Modified, extended cache entry")
					c.tracker.RecordSuccess()
					requestsTotal.WithLabelValues(operation, "not_modified").Inc()
					return &transport.Response{Status: http.StatusOK, Data: data, Headers: resp.Headers, Cached: true}, nil
				}
			}
			requestsTotal.WithLabelValues(operation, "error").Inc()
			return nil, fmt.Errorf("%s: 304 response without a cached entry", operation)

		case resp.Status == http.StatusTooManyRequests:
			c.tracker.HandleRateLimit(ratelimit.ErrorInfo{
				Status:     resp.Status,
				RetryAfter: resp.Headers.Get("Retry-After"),
				Message:    string(resp.Data),
			})
			if c.tracker.ShouldRetry(attempt) {
				delay := c.tracker.RetryDelay(attempt)
				logger.Warn().Int("retry_count", attempt).Dur("backoff", delay).Msg("Rate limited, retrying")
				retriesTotal.WithLabelValues("rate_limit").Inc()
				if serr := c.sleep(ctx, delay); serr != nil {
					return nil, serr
				}
				attempt++
				continue
			}
			status := c.tracker.Status()
			if status.DailyQuotaExceeded {
				requestsTotal.WithLabelValues(operation, "daily_quota").Inc()
				return nil, fmt.Errorf("%s: %w: %s", operation, ErrDailyQuotaExceeded, status.LastError)
			}
			requestsTotal.WithLabelValues(operation, "max_retries").Inc()
			return nil, fmt.Errorf("%s: %w: %s", operation, ErrMaxRetriesExceeded, status.LastError)

		case resp.Status == http.StatusUnauthorized || resp.Status == http.StatusForbidden:
			if !refreshed && c.auth != nil {
				logger.Info().Int("status", resp.Status).Msg("Refreshing access token")
				retriesTotal.WithLabelValues("auth_refresh").Inc()
				if rerr := c.auth.RefreshToken(ctx); rerr != nil {
					requestsTotal.WithLabelValues(operation, "auth_expired").Inc()
					return nil, fmt.Errorf("%s: %w: token refresh failed: %v", operation, ErrAuthExpired, rerr)
				}
				refreshed = true
				attempt++
				continue
			}
			requestsTotal.WithLabelValues(operation, "auth_expired").Inc()
			return nil, fmt.Errorf("%s: %w (status %d)", operation, ErrAuthExpired, resp.Status)

		case resp.Status >= 400:
			if attempt < c.cfg.RateLimit.MaxRetries {
				delay := backoffDelay(c.cfg.RateLimit.BaseDelay, attempt, transportBackoffCeiling)
				logger.Warn().Int("status", resp.Status).Int("retry_count", attempt).Dur("backoff", delay).Msg("Upstream error, retrying")
				retriesTotal.WithLabelValues("transport").Inc()
				if serr := c.sleep(ctx, delay); serr != nil {
					return nil, serr
				}
				attempt++
				continue
			}
			requestsTotal.WithLabelValues(operation, "error").Inc()
			return nil, &UpstreamError{Operation: operation, Status: resp.Status, Message: string(resp.Data)}

		default:
			c.tracker.RecordSuccess()
			if key != nil && resp.Status == http.StatusOK {
				c.cache.Set(*key, resp.Data, cache.Validators{
					ETag:         resp.Headers.Get("ETag"),
					LastModified: resp.Headers.Get("Last-Modified"),
				})
			}
			logger.Debug().Int("status", resp.Status).Int("retry_count", attempt).Msg("Call succeeded")
			requestsTotal.WithLabelValues(operation, "success").Inc()
			return resp, nil
		}
	}
}

// CacheGet reads a payload from the response cache.
func (c *Client) CacheGet(key cache.Key) ([]byte, bool) {
	return c.cache.Get(key)
}

// CacheSet stores a payload in the response cache.
func (c *Client) CacheSet(key cache.Key, value []byte, v cache.Validators) {
	c.cache.Set(key, value, v)
}

// CacheInvalidate removes entries matching the pattern; an empty pattern
// clears the store. Returns the number of entries removed.
func (c *Client) CacheInvalidate(pattern string) int {
	return c.cache.Invalidate(pattern)
}

// CacheStats returns a snapshot of cache health.
func (c *Client) CacheStats() cache.Stats {
	return c.cache.Stats()
}

// UpdateCacheConfig applies a partial cache configuration change.
func (c *Client) UpdateCacheConfig(u cache.ConfigUpdate) {
	c.cache.UpdateConfig(u)
}

// RateLimitStatus returns a snapshot of the rate limit state.
func (c *Client) RateLimitStatus() ratelimit.Status {
	return c.tracker.Status()
}

// Cache exposes the response cache, e.g. to wire a prefetch hook.
func (c *Client) Cache() *cache.Cache {
	return c.cache
}
