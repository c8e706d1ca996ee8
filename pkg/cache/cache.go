package cache

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Cache is an in-process response cache with per-category TTLs, conditional
// request metadata, optional compression and bounded eviction. All state is
// guarded by a single mutex; the maintenance goroutine takes the same lock
// as the request path.
type Cache struct {
	mu      sync.Mutex
	cfg     Config
	entries map[string]*entry

	// defaultFeaturesTTL is the baseline the rate limit tracker widens
	// from and restores to.
	defaultFeaturesTTL time.Duration

	totalHits     uint64
	totalMisses   uint64
	evictionCount uint64

	advisor *Advisor
	logger  zerolog.Logger

	now func() time.Time

	stopCh   chan struct{}
	stopOnce sync.Once
}

// Stats is a read-only snapshot of cache health, computed on demand.
type Stats struct {
	Entries          int     `json:"entries"`
	MaxEntries       int     `json:"max_entries"`
	Hits             uint64  `json:"hits"`
	Misses           uint64  `json:"misses"`
	HitRate          float64 `json:"hit_rate"`
	Evictions        uint64  `json:"evictions"`
	MemoryBytes      int64   `json:"memory_bytes"`
	CompressedCount  int     `json:"compressed_count"`
	CompressionRatio float64 `json:"compression_ratio"`
}

// New creates a cache and starts its maintenance cycle when the configured
// interval is positive.
func New(cfg Config, logger zerolog.Logger) *Cache {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultConfig().MaxEntries
	}
	if cfg.EvictionPolicy == "" {
		cfg.EvictionPolicy = PolicySimple
	}

	c := &Cache{
		cfg:                cfg,
		entries:            make(map[string]*entry),
		defaultFeaturesTTL: cfg.TTL.Features,
		advisor:            NewAdvisor(logger),
		logger:             logger,
		now:                time.Now,
		stopCh:             make(chan struct{}),
	}

	if cfg.MaintenanceInterval > 0 {
		go c.maintenanceLoop(cfg.MaintenanceInterval)
	}

	return c
}

// Close stops the maintenance goroutine. Safe to call more than once.
func (c *Cache) Close() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
	})
}

// Advisor returns the prefetch advisor so callers can wire a fetch hook or
// register additional rules.
func (c *Cache) Advisor() *Advisor {
	return c.advisor
}

// Get returns the cached payload for the key. An entry past its expiry
// counts as a miss; the stale entry stays behind (until the maintenance
// sweep collects it) so its validators can still back a conditional
// revalidation. Misses signal the prefetch advisor when intelligent
// prefetch is enabled.
func (c *Cache) Get(key Key) ([]byte, bool) {
	k := key.String()

	c.mu.Lock()
	now := c.now()
	e, ok := c.entries[k]
	if ok && e.isExpired(now) {
		ok = false
	}
	if !ok {
		c.totalMisses++
		prefetch := c.cfg.EnableIntelligentPrefetch
		c.mu.Unlock()

		cacheMissesTotal.Inc()
		if prefetch {
			c.advisor.OnMiss(k)
		}
		return nil, false
	}

	e.recordHit(now)
	data := e.data
	compressed := e.compressed
	c.totalHits++
	c.mu.Unlock()

	cacheHitsTotal.Inc()

	if compressed {
		raw, err := decompressPayload(data)
		if err != nil {
			c.logger.Error().Err(err).Str("key", k).Msg("Cache entry decompression failed")
			cacheMissesTotal.Inc()
			return nil, false
		}
		return raw, true
	}
	return data, true
}

// Set stores a response payload under the key. Command endpoints and
// categories with a zero TTL are never stored. When the stored entry has an
// identical content checksum only its expiry is extended, leaving the
// payload and the entry's eviction ordering untouched.
func (c *Cache) Set(key Key, value []byte, v Validators) {
	cat := categoryFor(key.Endpoint)
	k := key.String()

	c.mu.Lock()
	defer c.mu.Unlock()

	ttl := c.cfg.TTL.ttlFor(cat)
	if ttl <= 0 {
		c.logger.Debug().Str("key", k).Str("category", string(cat)).Msg("Endpoint not cacheable, skipping store")
		return
	}

	now := c.now()
	sum := checksum(value)

	if existing, ok := c.entries[k]; ok && existing.checksum == sum {
		existing.expiresAt = now.Add(ttl)
		c.logger.Debug().Str("key", k).Msg("Content unchanged, extended expiry")
		return
	}

	size := len(value)
	if size == 0 {
		size = defaultSizeEstimate
	}

	data := value
	compressed := false
	if c.cfg.CompressionEnabled && len(value) >= c.cfg.CompressionMinSize {
		if gz, err := compressPayload(value); err == nil && worthCompressing(len(value), len(gz)) {
			data = gz
			compressed = true
			cacheCompressedTotal.Inc()
		}
	}
	if !compressed {
		// Entries own their payload.
		data = append([]byte(nil), value...)
	}

	c.entries[k] = &entry{
		data:         data,
		compressed:   compressed,
		etag:         v.ETag,
		lastModified: v.LastModified,
		createdAt:    now,
		expiresAt:    now.Add(ttl),
		size:         size,
		checksum:     sum,
		priority:     priorityFor(cat, size),
	}

	c.enforceLimitLocked()
	cacheEntries.Set(float64(len(c.entries)))
}

// ConditionalHeaders returns If-None-Match / If-Modified-Since headers when
// conditional requests are enabled and a validator-carrying entry exists.
func (c *Cache) ConditionalHeaders(key Key) http.Header {
	headers := http.Header{}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.cfg.EnableConditionalRequests {
		return headers
	}

	e, ok := c.entries[key.String()]
	if !ok || !e.hasValidator() {
		return headers
	}

	if e.etag != "" {
		headers.Set("If-None-Match", e.etag)
	}
	if e.lastModified != "" {
		headers.Set("If-Modified-Since", e.lastModified)
	}
	return headers
}

// HandleNotModified extends the entry's expiry with the current category
// TTL after an upstream 304 and returns the stored payload. Reports false
// when no entry exists; the caller must treat that as an error, not as a
// cacheable empty value.
func (c *Cache) HandleNotModified(key Key) ([]byte, bool) {
	k := key.String()

	c.mu.Lock()
	e, ok := c.entries[k]
	if !ok {
		c.mu.Unlock()
		return nil, false
	}

	ttl := c.cfg.TTL.ttlFor(categoryFor(key.Endpoint))
	e.expiresAt = c.now().Add(ttl)
	data := e.data
	compressed := e.compressed
	c.mu.Unlock()

	cacheNotModifiedTotal.Inc()

	if compressed {
		raw, err := decompressPayload(data)
		if err != nil {
			c.logger.Error().Err(err).Str("key", k).Msg("Cache entry decompression failed")
			return nil, false
		}
		return raw, true
	}
	return data, true
}

// Invalidate removes entries. An empty pattern clears the whole store and
// resets the hit/miss counters; otherwise every entry whose key contains
// the pattern as a substring is removed and the historical counters are
// kept. Returns the number of entries removed.
func (c *Cache) Invalidate(pattern string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	var removed int
	if pattern == "" {
		removed = len(c.entries)
		c.entries = make(map[string]*entry)
		c.totalHits = 0
		c.totalMisses = 0
	} else {
		for k := range c.entries {
			if strings.Contains(k, pattern) {
				delete(c.entries, k)
				removed++
			}
		}
	}

	cacheEntries.Set(float64(len(c.entries)))
	cacheInvalidationsTotal.Add(float64(removed))
	c.logger.Debug().Str("pattern", pattern).Int("removed", removed).Msg("Cache invalidated")
	return removed
}

// Stats computes a snapshot of cache health.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	var memory int64
	var rawBytes, storedBytes int64
	var compressedCount int
	for _, e := range c.entries {
		memory += int64(len(e.data))
		rawBytes += int64(e.size)
		storedBytes += int64(len(e.data))
		if e.compressed {
			compressedCount++
		}
	}

	s := Stats{
		Entries:         len(c.entries),
		MaxEntries:      c.cfg.MaxEntries,
		Hits:            c.totalHits,
		Misses:          c.totalMisses,
		Evictions:       c.evictionCount,
		MemoryBytes:     memory,
		CompressedCount: compressedCount,
	}
	if total := c.totalHits + c.totalMisses; total > 0 {
		s.HitRate = float64(c.totalHits) / float64(total)
	}
	if rawBytes > 0 {
		s.CompressionRatio = float64(storedBytes) / float64(rawBytes)
	}
	return s
}

// UpdateConfig applies a partial configuration change.
func (c *Cache) UpdateConfig(u ConfigUpdate) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if u.InstallationsTTL != nil {
		c.cfg.TTL.Installations = *u.InstallationsTTL
	}
	if u.GatewaysTTL != nil {
		c.cfg.TTL.Gateways = *u.GatewaysTTL
	}
	if u.DevicesTTL != nil {
		c.cfg.TTL.Devices = *u.DevicesTTL
	}
	if u.FeaturesTTL != nil {
		c.cfg.TTL.Features = *u.FeaturesTTL
		c.defaultFeaturesTTL = *u.FeaturesTTL
	}
	if u.MaxEntries != nil && *u.MaxEntries > 0 {
		c.cfg.MaxEntries = *u.MaxEntries
	}
	if u.EnableConditionalRequests != nil {
		c.cfg.EnableConditionalRequests = *u.EnableConditionalRequests
	}
	if u.EnableIntelligentPrefetch != nil {
		c.cfg.EnableIntelligentPrefetch = *u.EnableIntelligentPrefetch
	}
	if u.CompressionEnabled != nil {
		c.cfg.CompressionEnabled = *u.CompressionEnabled
	}
	if u.EvictionPolicy != nil {
		c.cfg.EvictionPolicy = *u.EvictionPolicy
	}
	if u.MemoryBudgetBytes != nil {
		c.cfg.MemoryBudgetBytes = *u.MemoryBudgetBytes
	}
}

// WidenFeatureTTL stretches the features TTL by the multiplier (relative to
// its configured baseline), capped at a fixed ceiling. Called by the rate
// limit tracker to shed call volume while blocked.
func (c *Cache) WidenFeatureTTL(multiplier float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	widened := time.Duration(float64(c.defaultFeaturesTTL) * multiplier)
	if widened > widenedTTLCeiling {
		widened = widenedTTLCeiling
	}
	if widened > c.cfg.TTL.Features {
		c.cfg.TTL.Features = widened
		c.logger.Info().Dur("features_ttl", widened).Float64("multiplier", multiplier).Msg("Widened features TTL under rate limit")
	}
}

// RestoreFeatureTTL resets the features TTL to its configured baseline.
func (c *Cache) RestoreFeatureTTL() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfg.TTL.Features != c.defaultFeaturesTTL {
		c.cfg.TTL.Features = c.defaultFeaturesTTL
		c.logger.Info().Dur("features_ttl", c.defaultFeaturesTTL).Msg("Restored features TTL")
	}
}

// FeaturesTTL returns the currently effective features TTL.
func (c *Cache) FeaturesTTL() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg.TTL.Features
}
