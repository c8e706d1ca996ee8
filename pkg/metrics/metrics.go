// Package metrics documents the Prometheus metrics exported by the ViCare
// client. Metrics are defined in their respective packages (cache,
// ratelimit, client) to maintain modularity and avoid circular
// dependencies.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the client. All
// metrics are automatically registered via promauto in their respective
// packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Cache Metrics (pkg/cache):
//   - vicare_cache_hits_total (Counter): Cache hits
//   - vicare_cache_misses_total (Counter): Cache misses, including expired entries
//   - vicare_cache_evictions_total{policy} (Counter): Evictions by policy (simple, scored)
//   - vicare_cache_entries (Gauge): Current entry count
//   - vicare_cache_compressed_total (Counter): Entries stored gzip-compressed
//   - vicare_cache_not_modified_total (Counter): 304-driven TTL extensions
//   - vicare_cache_invalidations_total (Counter): Entries removed by invalidation
//   - vicare_cache_prefetch_scheduled_total (Counter): Prefetch warmups scheduled
//
// Rate Limit Metrics (pkg/ratelimit):
//   - vicare_rate_limit_blocks_total (Counter): 429 responses handled
//   - vicare_rate_limit_blocked (Gauge): Block currently active (0/1)
//   - vicare_daily_quota_exceeded (Gauge): Daily quota condition active (0/1)
//   - vicare_rate_limit_retry_count (Gauge): Consecutive rate limited requests
//
// Request Metrics (pkg/client):
//   - vicare_requests_total{operation, outcome} (Counter): Calls by outcome
//     (cache_hit, success, not_modified, rate_limited, daily_quota,
//     max_retries, auth_expired, error)
//   - vicare_request_duration_seconds{operation} (Histogram): Call duration
//   - vicare_retries_total{reason} (Counter): Retries by reason
//     (rate_limit, auth_refresh, transport)
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(vicare_cache_hits_total[5m])) /
//   (sum(rate(vicare_cache_hits_total[5m])) + sum(rate(vicare_cache_misses_total[5m])))
//
//   # Currently blocked?
//   vicare_rate_limit_blocked == 1
//
//   # P95 Call Latency
//   histogram_quantile(0.95, rate(vicare_request_duration_seconds_bucket[5m]))
