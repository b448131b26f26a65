package querycache

import (
	"sort"
	"sync"
	"time"
)

// ewma weights for the access-frequency estimate. The estimate only needs to
// rise with more frequent access; the exact curve is tunable.
const (
	ewmaKeep   = 0.7
	ewmaSample = 0.3
	minGapSec  = 0.001 // clamp for back-to-back accesses
)

// AccessPattern tracks per-key hit/miss counters and an exponentially
// weighted access-rate estimate.
type AccessPattern struct {
	Hits       uint64
	Misses     uint64
	LastAccess time.Time
	Frequency  float64 // ~accesses per second, EWMA
}

type accessTracker struct {
	mu       sync.Mutex
	patterns map[string]*AccessPattern
}

func newTracker() *accessTracker {
	return &accessTracker{patterns: make(map[string]*AccessPattern)}
}

// Record notes an access outcome. A fresh key starts at frequency 0; every
// subsequent access folds 1/elapsed into the estimate, so any later access
// yields a frequency > 0.
func (t *accessTracker) Record(key string, hit bool) {
	now := time.Now()
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.patterns[key]
	if !ok {
		p = &AccessPattern{LastAccess: now}
		t.patterns[key] = p
	} else {
		gap := now.Sub(p.LastAccess).Seconds()
		if gap < minGapSec {
			gap = minGapSec
		}
		p.Frequency = ewmaKeep*p.Frequency + ewmaSample*(1/gap)
		p.LastAccess = now
	}
	if hit {
		p.Hits++
	} else {
		p.Misses++
	}
}

func (t *accessTracker) Totals() (hits, misses uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, p := range t.patterns {
		hits += p.Hits
		misses += p.Misses
	}
	return hits, misses
}

// Pattern returns a copy of the pattern for key.
func (t *accessTracker) Pattern(key string) (AccessPattern, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.patterns[key]
	if !ok {
		return AccessPattern{}, false
	}
	return *p, true
}

// TopN returns the n most frequently accessed keys, most frequent first.
func (t *accessTracker) TopN(n int) []KeyFrequency {
	t.mu.Lock()
	out := make([]KeyFrequency, 0, len(t.patterns))
	for k, p := range t.patterns {
		out = append(out, KeyFrequency{
			Key: k, Frequency: p.Frequency, Hits: p.Hits, Misses: p.Misses,
		})
	}
	t.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Frequency > out[j].Frequency })
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// LowHitKeys returns keys whose hit ratio is below ratio after at least
// minAccesses recorded accesses.
func (t *accessTracker) LowHitKeys(ratio float64, minAccesses uint64) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []string
	for k, p := range t.patterns {
		total := p.Hits + p.Misses
		if total < minAccesses {
			continue
		}
		if float64(p.Hits)/float64(total) < ratio {
			out = append(out, k)
		}
	}
	return out
}

// PruneStale drops patterns not accessed since olderThan ago.
func (t *accessTracker) PruneStale(olderThan time.Duration) int {
	cutoff := time.Now().Add(-olderThan)
	t.mu.Lock()
	defer t.mu.Unlock()
	removed := 0
	for k, p := range t.patterns {
		if p.LastAccess.Before(cutoff) {
			delete(t.patterns, k)
			removed++
		}
	}
	return removed
}
