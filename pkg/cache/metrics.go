package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// cacheHitsTotal tracks cache hits.
	cacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vicare_cache_hits_total",
			Help: "Total number of ViCare cache hits",
		},
	)

	// cacheMissesTotal tracks cache misses, including expired entries.
	cacheMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vicare_cache_misses_total",
			Help: "Total number of ViCare cache misses",
		},
	)

	// cacheEvictionsTotal tracks evictions by policy.
	cacheEvictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vicare_cache_evictions_total",
			Help: "Total number of cache evictions",
		},
		[]string{"policy"}, // "simple", "scored"
	)

	// cacheEntries tracks the current entry count.
	cacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vicare_cache_entries",
			Help: "Current number of cache entries",
		},
	)

	// cacheCompressedTotal tracks entries stored compressed.
	cacheCompressedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vicare_cache_compressed_total",
			Help: "Total number of entries stored gzip-compressed",
		},
	)

	// cacheNotModifiedTotal tracks 304-driven TTL extensions.
	cacheNotModifiedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vicare_cache_not_modified_total",
			Help: "Total number of 304 Not Modified cache extensions",
		},
	)

	// cacheInvalidationsTotal tracks entries removed by invalidation.
	cacheInvalidationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vicare_cache_invalidations_total",
			Help: "Total number of entries removed by invalidation",
		},
	)

	// prefetchScheduledTotal tracks prefetch warmups scheduled by the advisor.
	prefetchScheduledTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vicare_cache_prefetch_scheduled_total",
			Help: "Total number of prefetch warmups scheduled",
		},
	)
)
