package cache

import (
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Prefetch probability bounds and drift factors applied by the maintenance
// cycle.
const (
	probabilityCeiling = 0.9
	probabilityFloor   = 0.1
	probabilityBump    = 0.1
	probabilityDecay   = 0.9
)

// prefetchDelay is the fixed pause before a scheduled warmup fires.
const prefetchDelay = 100 * time.Millisecond

// maxRecordedIntents bounds the intent log kept when no fetch hook is wired.
const maxRecordedIntents = 100

// FetchFunc warms a dependent pattern. Resolving the pattern to concrete
// endpoints and performing the request is the caller's concern; the advisor
// only decides when a warmup is worthwhile.
type FetchFunc func(pattern string)

// Rule maps a URL pattern to dependent patterns likely to be requested
// next. Patterns may contain {placeholder} segments, which are stripped
// before matching. Rules are never removed once registered; only their
// probabilities drift.
type Rule struct {
	Pattern     string
	Dependents  []string
	Probability float64
	LastUsed    time.Time
}

// Advisor tracks access patterns and schedules best-effort prefetch
// warmups on cache misses.
type Advisor struct {
	mu    sync.Mutex
	rules []*Rule
	fetch FetchFunc

	// intents records dependent patterns that would have been warmed when
	// no fetch hook is wired.
	intents   []string
	scheduled uint64

	group  singleflight.Group
	rand   func() float64
	logger zerolog.Logger
}

// NewAdvisor creates an advisor seeded with the default rule set.
func NewAdvisor(logger zerolog.Logger) *Advisor {
	return &Advisor{
		rules:  defaultRules(),
		rand:   rand.Float64,
		logger: logger,
	}
}

// defaultRules seeds the fixed pattern->dependency registry. Accessing an
// installation usually leads to its gateways and devices; reading one
// feature group usually leads to the other.
func defaultRules() []*Rule {
	return []*Rule{
		{
			Pattern:     "installations",
			Dependents:  []string{"installations/{installationId}/gateways"},
			Probability: 0.5,
		},
		{
			Pattern:     "gateways",
			Dependents:  []string{"gateways/{gatewaySerial}/devices"},
			Probability: 0.5,
		},
		{
			Pattern:     "features/heating.circuits",
			Dependents:  []string{"features/heating.dhw"},
			Probability: 0.3,
		},
		{
			Pattern:     "features/heating.dhw",
			Dependents:  []string{"features/heating.circuits"},
			Probability: 0.3,
		},
	}
}

// SetFetchFunc wires the warmup hook. Without one the advisor records
// intent only.
func (a *Advisor) SetFetchFunc(fn FetchFunc) {
	a.mu.Lock()
	a.fetch = fn
	a.mu.Unlock()
}

// RegisterRule adds a rule to the registry.
func (a *Advisor) RegisterRule(r Rule) {
	a.mu.Lock()
	a.rules = append(a.rules, &r)
	a.mu.Unlock()
}

// OnMiss draws against each matching rule's probability and schedules
// warmups for the winners. Never blocks the request path.
func (a *Advisor) OnMiss(key string) {
	now := time.Now()
	var warmups []string

	a.mu.Lock()
	for _, r := range a.rules {
		frag := stripPlaceholders(r.Pattern)
		if frag == "" || !strings.Contains(key, frag) {
			continue
		}
		if a.rand() >= r.Probability {
			continue
		}
		r.LastUsed = now
		warmups = append(warmups, r.Dependents...)
	}
	a.mu.Unlock()

	for _, dep := range warmups {
		a.scheduleWarmup(dep)
	}
}

// scheduleWarmup fires the warmup for a dependent pattern after a short
// delay, deduplicating concurrent warmups of the same pattern.
func (a *Advisor) scheduleWarmup(pattern string) {
	a.mu.Lock()
	a.scheduled++
	a.mu.Unlock()
	prefetchScheduledTotal.Inc()

	time.AfterFunc(prefetchDelay, func() {
		a.group.Do(pattern, func() (interface{}, error) {
			defer func() {
				if r := recover(); r != nil {
					a.logger.Warn().Interface("panic", r).Str("pattern", pattern).Msg("Prefetch hook panicked")
				}
			}()

			a.mu.Lock()
			fetch := a.fetch
			a.mu.Unlock()

			if fetch == nil {
				a.recordIntent(pattern)
				return nil, nil
			}

			a.logger.Debug().Str("pattern", pattern).Msg("Prefetch warmup")
			fetch(pattern)
			return nil, nil
		})
	})
}

func (a *Advisor) recordIntent(pattern string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.intents) >= maxRecordedIntents {
		a.intents = a.intents[1:]
	}
	a.intents = append(a.intents, pattern)
}

// Intents returns the dependent patterns recorded while no fetch hook was
// wired, oldest first.
func (a *Advisor) Intents() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.intents...)
}

// Scheduled returns the number of warmups scheduled so far.
func (a *Advisor) Scheduled() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.scheduled
}

// Rules returns a snapshot of the current rule set.
func (a *Advisor) Rules() []Rule {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]Rule, len(a.rules))
	for i, r := range a.rules {
		out[i] = *r
	}
	return out
}

// UpdateProbabilities drifts rule probabilities based on recent accesses:
// up toward the ceiling when the rule's pattern saw traffic in the window,
// decaying toward the floor otherwise. Called only from the maintenance
// cycle to bound per-miss overhead.
func (a *Advisor) UpdateProbabilities(recentKeys []string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, r := range a.rules {
		frag := stripPlaceholders(r.Pattern)
		matched := false
		for _, k := range recentKeys {
			if frag != "" && strings.Contains(k, frag) {
				matched = true
				break
			}
		}

		if matched {
			r.Probability += probabilityBump
			if r.Probability > probabilityCeiling {
				r.Probability = probabilityCeiling
			}
		} else {
			r.Probability *= probabilityDecay
			if r.Probability < probabilityFloor {
				r.Probability = probabilityFloor
			}
		}
	}
}

// stripPlaceholders cuts a pattern at its first {placeholder} segment so
// the remaining literal prefix can be substring-matched against cache keys.
func stripPlaceholders(pattern string) string {
	if i := strings.Index(pattern, "{"); i >= 0 {
		pattern = pattern[:i]
	}
	return strings.Trim(pattern, "/")
}
