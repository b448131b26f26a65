package querycache

import "fmt"

// Self-optimization thresholds. Tunable starting points, not contracts.
const (
	lowHitRatio        = 0.5
	lowKeyHitRatio     = 0.3
	lowKeyMinAccesses  = 10
	highWaterFraction  = 0.9
	highMemoryBytes    = 50 << 20
	minAccessesForHint = 20
)

// Optimize runs one self-optimization pass: drops stale access patterns,
// evicts idle L1 entries independent of TTL, and produces human-readable
// recommendations from the current statistics.
func (e *engine) Optimize() OptimizationReport {
	r := OptimizationReport{
		StalePatternsDropped: e.tracker.PruneStale(e.staleAge),
		IdleEntriesEvicted:   e.l1.EvictIdle(e.idleAge),
	}

	s := e.Stats()
	total := s.Hits + s.Misses

	if total >= minAccessesForHint && s.HitRatio < lowHitRatio {
		r.Recommendations = append(r.Recommendations,
			fmt.Sprintf("hit ratio %.3f is below %.1f: review TTLs and query patterns", s.HitRatio, lowHitRatio))
	}
	if s.L1MaxSize > 0 && float64(s.L1Size) >= highWaterFraction*float64(s.L1MaxSize) {
		r.Recommendations = append(r.Recommendations,
			fmt.Sprintf("L1 holds %d of %d entries: consider raising L1MaxSize", s.L1Size, s.L1MaxSize))
	}
	if s.L1Bytes > highMemoryBytes {
		r.Recommendations = append(r.Recommendations,
			fmt.Sprintf("L1 holds ~%dMB of result data: cache smaller result sets or lower the compression threshold", s.L1Bytes>>20))
	}
	if lowKeys := e.tracker.LowHitKeys(lowKeyHitRatio, lowKeyMinAccesses); len(lowKeys) > 0 {
		r.Recommendations = append(r.Recommendations,
			fmt.Sprintf("%d keys have a hit ratio below %.1f: review whether they belong in the cache", len(lowKeys), lowKeyHitRatio))
	}

	e.log.Debug("optimization pass done", Fields{
		"stale_patterns": r.StalePatternsDropped,
		"idle_evicted":   r.IdleEntriesEvicted,
		"hints":          len(r.Recommendations),
	})
	return r
}
