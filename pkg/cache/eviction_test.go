package cache

import (
	"fmt"
	"testing"
	"time"
)

func TestCache_SimpleEviction(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxEntries = 3
	c, clock := newTestCache(t, cfg)

	// Oldest entry first, each later entry one minute apart.
	keys := make([]Key, 4)
	for i := 0; i < 3; i++ {
		keys[i] = featureKey(fmt.Sprintf("feature-%d", i))
		c.Set(keys[i], []byte(`{}`), Validators{})
		clock.Advance(time.Minute)
	}

	// Hit everything except the first entry.
	c.Get(keys[1])
	c.Get(keys[2])

	keys[3] = featureKey("feature-3")
	c.Set(keys[3], []byte(`{}`), Validators{})

	if stats := c.Stats(); stats.Entries != 3 {
		t.Fatalf("Entries = %d, want 3", stats.Entries)
	}
	if stats := c.Stats(); stats.Evictions != 1 {
		t.Fatalf("Evictions = %d, want 1", stats.Evictions)
	}

	// The zero-hit oldest entry was the victim.
	if _, ok := c.Get(keys[0]); ok {
		t.Error("least-hit oldest entry survived eviction")
	}
	for _, k := range keys[1:] {
		if _, ok := c.Get(k); !ok {
			t.Errorf("entry %s evicted unexpectedly", k.String())
		}
	}
}

func TestCache_SimpleEvictionTieBreaksByAge(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxEntries = 2
	c, clock := newTestCache(t, cfg)

	first := featureKey("first")
	second := featureKey("second")

	c.Set(first, []byte(`{}`), Validators{})
	clock.Advance(time.Minute)
	c.Set(second, []byte(`{}`), Validators{})
	clock.Advance(time.Minute)

	// Equal hit counts; the older entry loses.
	c.Set(featureKey("third"), []byte(`{}`), Validators{})

	if _, ok := c.Get(first); ok {
		t.Error("older entry survived the tie break")
	}
	if _, ok := c.Get(second); !ok {
		t.Error("newer entry evicted on the tie break")
	}
}

func TestCache_ScoredEviction(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxEntries = 2
	cfg.EvictionPolicy = PolicyScored
	cfg.CompressionEnabled = false
	c, clock := newTestCache(t, cfg)

	// Old, large, never accessed: the clear victim.
	stale := featureKey("stale")
	c.Set(stale, make([]byte, 8192), Validators{})

	clock.Advance(6 * time.Hour)

	// Fresh and hot.
	hot := featureKey("hot")
	c.Set(hot, []byte(`{}`), Validators{})
	for i := 0; i < 20; i++ {
		c.Get(hot)
	}

	c.Set(featureKey("new"), []byte(`{}`), Validators{})

	if _, ok := c.Get(stale); ok {
		t.Error("old unaccessed entry survived scored eviction")
	}
	if _, ok := c.Get(hot); !ok {
		t.Error("frequently accessed entry evicted under scored policy")
	}
}

func TestCache_NoEvictionBelowLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxEntries = 10
	c, _ := newTestCache(t, cfg)

	for i := 0; i < 10; i++ {
		c.Set(featureKey(fmt.Sprintf("feature-%d", i)), []byte(`{}`), Validators{})
	}

	stats := c.Stats()
	if stats.Entries != 10 {
		t.Errorf("Entries = %d, want 10", stats.Entries)
	}
	if stats.Evictions != 0 {
		t.Errorf("Evictions = %d, want 0", stats.Evictions)
	}
}

func TestEvictionScore(t *testing.T) {
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

	old := &entry{
		createdAt: now.Add(-10 * time.Hour),
		size:      4096,
		hits:      0,
		priority:  50,
	}
	fresh := &entry{
		createdAt: now.Add(-time.Hour),
		size:      512,
		hits:      30,
		priority:  90,
	}

	if evictionScore(old, now) <= evictionScore(fresh, now) {
		t.Errorf("old idle entry scored %v, fresh hot entry %v; old should rank higher",
			evictionScore(old, now), evictionScore(fresh, now))
	}
}

func TestEvictionScore_YoungEntryFrequencyClamp(t *testing.T) {
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

	// A seconds-old entry divides by the 0.1h clamp rather than near-zero.
	young := &entry{
		createdAt: now.Add(-5 * time.Second),
		size:      1024,
		hits:      1,
		priority:  50,
	}

	got := evictionScore(young, now)
	ageHours := (5 * time.Second).Hours()
	want := ageHours*scoreAgeWeight + 1*scoreSizeWeight - (1/0.1)*scoreFrequencyWeight - 50*scorePriorityWeight
	if diff := got - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("evictionScore = %v, want %v", got, want)
	}
}
