package cache

import (
	"time"
)

// maintenanceLoop runs the periodic maintenance cycle until Close.
func (c *Cache) maintenanceLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.runMaintenance()
		}
	}
}

// runMaintenance performs one maintenance cycle: expired-entry sweep,
// access-ring trim, pressure eviction and prefetch probability drift. It
// takes the same lock as the request path and operates on snapshots so the
// cycle stays bounded.
func (c *Cache) runMaintenance() {
	c.mu.Lock()
	now := c.now()

	expired := 0
	for k, e := range c.entries {
		if e.isExpired(now) {
			delete(c.entries, k)
			expired++
		}
	}

	recentCutoff := now.Add(-accessWindow)
	var recentKeys []string
	for k, e := range c.entries {
		e.trimAccessRing(now)
		if n := len(e.accessTimes); n > 0 && e.accessTimes[n-1].After(recentCutoff) {
			recentKeys = append(recentKeys, k)
		}
	}

	pressureEvicted := 0
	occupancyHigh := len(c.entries) > c.cfg.MaxEntries*80/100
	var memory int64
	for _, e := range c.entries {
		memory += int64(len(e.data))
	}
	if occupancyHigh && memory > c.cfg.MemoryBudgetBytes {
		// Drop roughly the bottom 20%, but never below 70% occupancy.
		target := len(c.entries) - len(c.entries)/5
		floor := c.cfg.MaxEntries * 70 / 100
		if target < floor {
			target = floor
		}
		pressureEvicted = c.evictScoredLocked(target)
	}

	prefetch := c.cfg.EnableIntelligentPrefetch
	remaining := len(c.entries)
	c.mu.Unlock()

	cacheEntries.Set(float64(remaining))

	if prefetch {
		c.advisor.UpdateProbabilities(recentKeys)
	}

	if expired > 0 || pressureEvicted > 0 {
		c.logger.Debug().
			Int("expired", expired).
			Int("pressure_evicted", pressureEvicted).
			Int("entries", remaining).
			Msg("Maintenance cycle complete")
	}
}
