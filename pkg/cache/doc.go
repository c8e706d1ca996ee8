// Package cache provides the in-process response cache for the ViCare
// client, with per-category TTLs, conditional-request metadata, optional
// gzip compression and two eviction policies.
//
// # Cache keys
//
// Keys are composed from the endpoint path and the lexicographically sorted
// query parameters, so the same call with reordered parameters hits the
// same entry:
//
//	key := cache.Key{
//		Endpoint: "/installations/123/devices/0/features",
//		Params:   url.Values{"filter": []string{"heating.dhw"}},
//	}
//
// # TTL by category
//
// Every endpoint falls into a category (installations, gateways, devices,
// features, commands) with its own TTL. Installation data is cached
// longest, feature reads shortest, and command endpoints are never stored.
//
// # Unchanged-data short-circuit
//
// Set computes an xxhash checksum of the payload. Re-storing identical
// content only extends the entry's expiry: the payload, creation timestamp
// and eviction ordering stay untouched.
//
// # Eviction
//
// Two policies are available. The simple policy removes the least-hit,
// oldest entries. The scored policy ranks entries by
//
//	ageHours*2 + sizeKB*0.5 - accessFrequency*10 - priority*0.1
//
// and removes the highest-scoring entries first. Neither policy evicts
// below the configured maximum entry count.
//
// # Maintenance
//
// A background cycle sweeps expired entries, trims access-time rings, runs
// pressure eviction when occupancy and memory exceed their thresholds, and
// drifts prefetch rule probabilities. It is started by New and stopped by
// Close.
//
// # Rate limit cooperation
//
// WidenFeatureTTL and RestoreFeatureTTL let the rate limit tracker stretch
// the shortest-lived TTL during a block so the client sheds call volume.
package cache
