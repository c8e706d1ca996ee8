package cache

import (
	"math"
	"sort"
	"time"
)

// Eviction score weights. These are compatibility constants carried over
// from the original heuristics, not values to tune.
const (
	scoreAgeWeight       = 2.0
	scoreSizeWeight      = 0.5
	scoreFrequencyWeight = 10.0
	scorePriorityWeight  = 0.1
)

// evictionScore ranks an entry for removal under the scored policy. Higher
// means more evictable: old, large, rarely accessed, low priority.
func evictionScore(e *entry, now time.Time) float64 {
	ageHours := now.Sub(e.createdAt).Hours()
	frequency := float64(e.hits) / math.Max(ageHours, 0.1)
	return ageHours*scoreAgeWeight +
		float64(e.size)/1024*scoreSizeWeight -
		frequency*scoreFrequencyWeight -
		e.priority*scorePriorityWeight
}

type scoredEntry struct {
	key   string
	entry *entry
}

// enforceLimitLocked brings the entry count back to MaxEntries after a Set.
// Never evicts below the configured maximum.
func (c *Cache) enforceLimitLocked() {
	if len(c.entries) <= c.cfg.MaxEntries {
		return
	}
	if c.cfg.EvictionPolicy == PolicyScored {
		c.evictScoredLocked(c.cfg.MaxEntries)
		return
	}
	c.evictSimpleLocked(c.cfg.MaxEntries)
}

// evictSimpleLocked removes the least-hit, oldest entries until the count
// reaches target.
func (c *Cache) evictSimpleLocked(target int) {
	if len(c.entries) <= target {
		return
	}

	snapshot := make([]scoredEntry, 0, len(c.entries))
	for k, e := range c.entries {
		snapshot = append(snapshot, scoredEntry{key: k, entry: e})
	}
	sort.Slice(snapshot, func(i, j int) bool {
		a, b := snapshot[i].entry, snapshot[j].entry
		if a.hits != b.hits {
			return a.hits < b.hits
		}
		return a.createdAt.Before(b.createdAt)
	})

	evicted := 0
	for _, se := range snapshot {
		if len(c.entries) <= target {
			break
		}
		delete(c.entries, se.key)
		evicted++
	}

	c.evictionCount += uint64(evicted)
	cacheEvictionsTotal.WithLabelValues(string(PolicySimple)).Add(float64(evicted))
	c.logger.Debug().Int("evicted", evicted).Msg("Simple eviction")
}

// evictScoredLocked removes the highest-scoring (most evictable) entries
// until the count reaches target. Returns the number evicted.
func (c *Cache) evictScoredLocked(target int) int {
	if len(c.entries) <= target {
		return 0
	}

	now := c.now()
	snapshot := make([]scoredEntry, 0, len(c.entries))
	for k, e := range c.entries {
		snapshot = append(snapshot, scoredEntry{key: k, entry: e})
	}
	sort.Slice(snapshot, func(i, j int) bool {
		return evictionScore(snapshot[i].entry, now) > evictionScore(snapshot[j].entry, now)
	})

	evicted := 0
	for _, se := range snapshot {
		if len(c.entries) <= target {
			break
		}
		delete(c.entries, se.key)
		evicted++
	}

	c.evictionCount += uint64(evicted)
	cacheEvictionsTotal.WithLabelValues(string(PolicyScored)).Add(float64(evicted))
	c.logger.Debug().Int("evicted", evicted).Msg("Scored eviction")
	return evicted
}
