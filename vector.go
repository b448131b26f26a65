package querycache

import (
	"context"
	"fmt"
	"time"

	"github.com/unkn0wn-root/querycache/internal/keys"
)

// VectorEntry is the cached form of one vector-search result set. Lives in
// the ":vector:" namespace; the table-based TTL overrides never apply, vector
// searches are their own category with their own default lifetime.
type VectorEntry struct {
	Results             []Record  `json:"results"`
	QueryVectorHash     string    `json:"query_vector_hash"`
	SimilarityThreshold float64   `json:"similarity_threshold"`
	Limit               int       `json:"limit"`
	CachedAt            time.Time `json:"cached_at"`
}

// GetVector serves a cached vector-search result. An empty query vector is a
// valid input (it simply hashes to its own key).
func (e *engine) GetVector(ctx context.Context, vec []float32, threshold float64, limit int, table string) ([]Record, bool) {
	if !e.enabled.Load() {
		return nil, false
	}
	key := e.VectorKey(vec, threshold, limit, table)

	if v, ok := e.l1.Get(key); ok {
		if entry, ok := v.(VectorEntry); ok {
			e.tracker.Record(key, true)
			return entry.Results, true
		}
		e.l1.Remove(key)
	}

	payload, env, ok := e.fetchL2(ctx, key)
	if !ok {
		e.tracker.Record(key, false)
		return nil, false
	}
	entry, err := e.vcodec.Decode(payload)
	if err != nil {
		e.selfHeal(ctx, key, "value_decode")
		e.tracker.Record(key, false)
		return nil, false
	}

	if rem := remainingTTL(env); rem > 0 {
		e.l1.Put(key, entry, int64(len(payload)), rem)
	}
	e.tracker.Record(key, true)
	return entry.Results, true
}

// PutVector caches a vector-search result set. ttl <= 0 uses the vector
// default; a table still registers the entry in the dependency index so
// mutations invalidate it.
func (e *engine) PutVector(ctx context.Context, vec []float32, threshold float64, limit int, table string, results []Record, ttl time.Duration) error {
	if !e.enabled.Load() {
		return nil
	}
	key := e.VectorKey(vec, threshold, limit, table)
	if ttl <= 0 {
		ttl = e.vectorTTL
	}

	entry := VectorEntry{
		Results:             results,
		QueryVectorHash:     keys.VectorHash(vec),
		SimilarityThreshold: threshold,
		Limit:               limit,
		CachedAt:            time.Now().UTC(),
	}
	payload, err := e.vcodec.Encode(entry)
	if err != nil {
		return fmt.Errorf("querycache: encode vector entry: %w", err)
	}

	e.l1.Put(key, entry, int64(len(payload)), ttl)
	if err := e.storeL2(ctx, key, payload, table, ttl); err != nil {
		e.log.Warn("l2 store failed", Fields{"key": key, "err": err})
		return err
	}

	if table != "" {
		e.addDependency(ctx, table, key)
	}
	return nil
}
