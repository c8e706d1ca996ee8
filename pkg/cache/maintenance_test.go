package cache

import (
	"fmt"
	"testing"
	"time"
)

func TestCache_MaintenanceSweepsExpired(t *testing.T) {
	c, clock := newTestCache(t, DefaultConfig())

	stale := featureKey("heating.dhw")
	live := Key{Endpoint: "/installations/123/gateways"}
	c.Set(stale, []byte(`{}`), Validators{})
	c.Set(live, []byte(`{}`), Validators{})

	clock.Advance(5 * time.Minute)
	c.runMaintenance()

	c.mu.Lock()
	_, staleLeft := c.entries[stale.String()]
	_, liveLeft := c.entries[live.String()]
	c.mu.Unlock()

	if staleLeft {
		t.Error("expired entry survived the maintenance sweep")
	}
	if !liveLeft {
		t.Error("live entry removed by the maintenance sweep")
	}
}

func TestCache_MaintenanceTrimsAccessRing(t *testing.T) {
	c, clock := newTestCache(t, DefaultConfig())

	key := Key{Endpoint: "/installations/123/gateways"}
	c.Set(key, []byte(`{}`), Validators{})

	c.Get(key)
	clock.Advance(30 * time.Minute)
	c.Get(key)
	clock.Advance(45 * time.Minute)
	c.Get(key)

	// First access is now 75 minutes old, outside the window.
	c.runMaintenance()

	c.mu.Lock()
	ring := len(c.entries[key.String()].accessTimes)
	c.mu.Unlock()

	if ring != 2 {
		t.Errorf("access ring length = %d, want 2", ring)
	}
}

func TestCache_MaintenancePressureEviction(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxEntries = 10
	cfg.MemoryBudgetBytes = 1024
	cfg.CompressionEnabled = false
	c, _ := newTestCache(t, cfg)

	// 9 of 10 slots filled (past the 80% occupancy mark) with payloads
	// well over the 1 KiB budget.
	for i := 0; i < 9; i++ {
		c.Set(Key{Endpoint: fmt.Sprintf("/installations/%d/gateways", i)}, make([]byte, 512), Validators{})
	}

	c.runMaintenance()

	stats := c.Stats()
	// Target is len - len/5 = 9 - 1 = 8, above the 70% floor of 7.
	if stats.Entries != 8 {
		t.Errorf("Entries after pressure eviction = %d, want 8", stats.Entries)
	}
	if stats.Evictions != 1 {
		t.Errorf("Evictions = %d, want 1", stats.Evictions)
	}
}

func TestCache_MaintenanceNoPressureUnderBudget(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxEntries = 10
	cfg.MemoryBudgetBytes = 1 << 20
	c, _ := newTestCache(t, cfg)

	for i := 0; i < 9; i++ {
		c.Set(Key{Endpoint: fmt.Sprintf("/installations/%d/gateways", i)}, make([]byte, 512), Validators{})
	}

	c.runMaintenance()

	if stats := c.Stats(); stats.Entries != 9 {
		t.Errorf("Entries = %d, want 9; eviction fired under budget", stats.Entries)
	}
}

func TestCache_MaintenanceDriftsProbabilities(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EnableIntelligentPrefetch = true
	c, _ := newTestCache(t, cfg)
	// Suppress warmup draws so Get calls stay side-effect free.
	c.advisor.rand = func() float64 { return 1 }

	key := Key{Endpoint: "/equipment/installations"}
	c.Set(key, []byte(`{}`), Validators{})
	c.Get(key)

	before := ruleProbability(t, c.advisor, "installations")
	c.runMaintenance()
	after := ruleProbability(t, c.advisor, "installations")

	if after <= before {
		t.Errorf("installations rule probability %v -> %v, want an increase", before, after)
	}

	// With no recent traffic the probability decays again.
	c.Invalidate("")
	c.runMaintenance()
	decayed := ruleProbability(t, c.advisor, "installations")
	if decayed >= after {
		t.Errorf("probability %v -> %v, want decay without traffic", after, decayed)
	}
}

func ruleProbability(t *testing.T, a *Advisor, pattern string) float64 {
	t.Helper()
	for _, r := range a.Rules() {
		if r.Pattern == pattern {
			return r.Probability
		}
	}
	t.Fatalf("rule %q not found", pattern)
	return 0
}
