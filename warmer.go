package querycache

import (
	"context"
	"fmt"
)

// Warm proactively populates the cache from a curated query set. Entries
// already cached are skipped; entries whose execution fails or returns nil
// are logged and skipped. Returns the number of entries newly warmed.
func (e *engine) Warm(ctx context.Context, entries []WarmupEntry, exec ExecuteFunc) (int, error) {
	if exec == nil {
		return 0, fmt.Errorf("querycache: warm requires an execute func")
	}

	warmed := 0
	for _, w := range entries {
		if err := ctx.Err(); err != nil {
			return warmed, err
		}
		if _, ok := e.Get(ctx, w.Query, w.Params, w.Table); ok {
			continue // already warm
		}
		results, err := exec(ctx, w.Query, w.Params)
		if err != nil {
			e.log.Warn("warmup execute failed", Fields{"query": w.Query, "err": err})
			continue
		}
		if results == nil {
			continue
		}
		if err := e.Put(ctx, w.Query, w.Params, w.Table, results, w.TTL); err != nil {
			e.log.Warn("warmup cache write failed", Fields{"query": w.Query, "err": err})
			continue
		}
		warmed++
	}

	e.log.Debug("warmup sweep done", Fields{"requested": len(entries), "warmed": warmed})
	return warmed, nil
}
