package cache

import (
	"time"
)

// maxAccessRing bounds the per-entry ring of recent access timestamps.
const maxAccessRing = 50

// accessWindow is how far back access timestamps are kept during
// maintenance trimming.
const accessWindow = time.Hour

// defaultSizeEstimate is used when the payload size cannot be determined.
const defaultSizeEstimate = 1024

// Validators carry the conditional-request metadata of a response.
type Validators struct {
	// ETag for If-None-Match.
	ETag string

	// LastModified is the raw Last-Modified header value, for
	// If-Modified-Since.
	LastModified string
}

// entry is a single cached response. All fields are guarded by the owning
// Cache's mutex.
type entry struct {
	// data is the payload, gzip-compressed when compressed is set.
	data       []byte
	compressed bool

	etag         string
	lastModified string

	createdAt time.Time
	expiresAt time.Time

	// hits counts cache hits since creation.
	hits int64

	// size is the raw (uncompressed) payload size estimate in bytes.
	size int

	// checksum is the xxhash of the raw payload, used to detect
	// unchanged content on refresh.
	checksum uint64

	// priority is a 0-100 score derived from category and size.
	priority float64

	// accessTimes is a bounded ring of recent hit timestamps,
	// oldest first.
	accessTimes []time.Time
}

func (e *entry) isExpired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// recordHit bumps the hit counter and appends to the access ring,
// dropping the oldest timestamp when full.
func (e *entry) recordHit(now time.Time) {
	e.hits++
	if len(e.accessTimes) >= maxAccessRing {
		e.accessTimes = e.accessTimes[1:]
	}
	e.accessTimes = append(e.accessTimes, now)
}

// trimAccessRing drops timestamps older than the access window and keeps at
// most maxAccessRing of the remainder.
func (e *entry) trimAccessRing(now time.Time) {
	cutoff := now.Add(-accessWindow)
	i := 0
	for i < len(e.accessTimes) && e.accessTimes[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		e.accessTimes = append([]time.Time(nil), e.accessTimes[i:]...)
	}
	if len(e.accessTimes) > maxAccessRing {
		e.accessTimes = e.accessTimes[len(e.accessTimes)-maxAccessRing:]
	}
}

// hasValidator reports whether the entry can back a conditional request.
func (e *entry) hasValidator() bool {
	return e.etag != "" || e.lastModified != ""
}
