package cache

import (
	"time"
)

// Policy selects the eviction strategy.
type Policy string

const (
	// PolicySimple evicts the least-hit, oldest entries first.
	PolicySimple Policy = "simple"

	// PolicyScored evicts by the computed eviction score, highest first.
	PolicyScored Policy = "scored"
)

// widenedTTLCeiling caps how far the features TTL can be stretched while
// rate limited.
const widenedTTLCeiling = 30 * time.Minute

// Config holds the cache configuration.
type Config struct {
	// TTL holds the per-category time-to-live values.
	TTL TTLConfig

	// MaxEntries is the entry-count limit enforced by eviction.
	MaxEntries int

	// EnableConditionalRequests emits If-None-Match / If-Modified-Since
	// headers for entries carrying validators.
	EnableConditionalRequests bool

	// EnableIntelligentPrefetch activates the prefetch advisor on misses.
	EnableIntelligentPrefetch bool

	// CompressionEnabled stores large payloads gzip-compressed when the
	// savings exceed 20%.
	CompressionEnabled bool

	// CompressionMinSize is the minimum raw payload size considered for
	// compression.
	CompressionMinSize int

	// EvictionPolicy selects between simple and scored eviction.
	EvictionPolicy Policy

	// MemoryBudgetBytes is the estimated-memory threshold that, together
	// with 80% occupancy, triggers pressure eviction during maintenance.
	MemoryBudgetBytes int64

	// MaintenanceInterval is the period of the background maintenance
	// cycle. Zero disables the background goroutine (maintenance can
	// still be driven manually, e.g. in tests).
	MaintenanceInterval time.Duration
}

// DefaultConfig returns a safe default cache configuration.
func DefaultConfig() Config {
	return Config{
		TTL:                       DefaultTTLConfig(),
		MaxEntries:                1000,
		EnableConditionalRequests: true,
		EnableIntelligentPrefetch: false,
		CompressionEnabled:        true,
		CompressionMinSize:        1024,
		EvictionPolicy:            PolicySimple,
		MemoryBudgetBytes:         32 << 20, // 32 MiB
		MaintenanceInterval:       time.Minute,
	}
}

// ConfigUpdate is a partial configuration change applied at runtime.
// Nil fields are left untouched.
type ConfigUpdate struct {
	InstallationsTTL *time.Duration
	GatewaysTTL      *time.Duration
	DevicesTTL       *time.Duration
	FeaturesTTL      *time.Duration

	MaxEntries                *int
	EnableConditionalRequests *bool
	EnableIntelligentPrefetch *bool
	CompressionEnabled        *bool
	EvictionPolicy            *Policy
	MemoryBudgetBytes         *int64
}
