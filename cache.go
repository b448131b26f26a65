package querycache

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	c "github.com/unkn0wn-root/querycache/codec"
	"github.com/unkn0wn-root/querycache/internal/compress"
	"github.com/unkn0wn-root/querycache/internal/keys"
	"github.com/unkn0wn-root/querycache/internal/wire"
	pr "github.com/unkn0wn-root/querycache/provider"
)

const (
	defaultL1MaxSize  = 1000
	defaultVectorTTL  = 30 * time.Minute
	defaultStaleAge   = 24 * time.Hour
	defaultIdleAge    = 30 * time.Minute
	frequentKeysLimit = 10
)

type engine struct {
	ns       string
	provider pr.Provider
	codec    c.Codec[[]Record]
	vcodec   c.Codec[VectorEntry]
	deps     c.Codec[[]string]
	log      Logger
	hooks    Hooks
	policy   *Policy

	l1      *l1Cache
	tracker *accessTracker

	compressMin int
	vectorTTL   time.Duration
	staleAge    time.Duration
	idleAge     time.Duration

	enabled      atomic.Bool
	invalidation atomic.Bool
}

func newEngine(opts Options) (*engine, error) {
	if opts.Provider == nil {
		return nil, fmt.Errorf("querycache: provider is required")
	}
	if opts.Namespace == "" {
		return nil, fmt.Errorf("querycache: namespace is required")
	}

	e := &engine{
		ns:       opts.Namespace,
		provider: opts.Provider,
		deps:     c.JSON[[]string]{},
	}

	// defaults
	e.codec = coalesce[c.Codec[[]Record]](opts.Codec, c.JSON[[]Record]{})
	e.vcodec = coalesce[c.Codec[VectorEntry]](opts.VectorCodec, c.JSON[VectorEntry]{})
	e.log = coalesce[Logger](opts.Logger, NopLogger{})
	e.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	e.compressMin = coalesce[int](opts.CompressionThreshold, compress.DefaultThreshold)
	e.vectorTTL = coalesce[time.Duration](opts.VectorTTL, defaultVectorTTL)
	e.staleAge = coalesce[time.Duration](opts.StalePatternAge, defaultStaleAge)
	e.idleAge = coalesce[time.Duration](opts.IdleEntryAge, defaultIdleAge)

	if opts.Policy != nil {
		p := *opts.Policy // copy so the Fallback override never mutates the caller's policy
		e.policy = &p
	} else {
		e.policy = DefaultPolicy()
	}
	if opts.DefaultTTL > 0 {
		e.policy.Fallback = opts.DefaultTTL
	}

	e.l1 = newL1(coalesce[int](opts.L1MaxSize, defaultL1MaxSize))
	e.tracker = newTracker()

	e.enabled.Store(!opts.Disabled)
	e.invalidation.Store(true)

	return e, nil
}

func (e *engine) Enabled() bool                  { return e.enabled.Load() }
func (e *engine) SetEnabled(on bool)             { e.enabled.Store(on) }
func (e *engine) InvalidationEnabled() bool      { return e.invalidation.Load() }
func (e *engine) SetInvalidationEnabled(on bool) { e.invalidation.Store(on) }

func (e *engine) Close(ctx context.Context) error {
	if e.provider != nil {
		return e.provider.Close(ctx)
	}
	return nil
}

func (e *engine) Key(query string, params map[string]any, table string) string {
	return keys.Query(e.ns, query, params, table)
}

func (e *engine) VectorKey(vec []float32, threshold float64, limit int, table string) string {
	return keys.Vector(e.ns, vec, threshold, limit, table)
}

// Get serves a query result from L1, then L2 (restoring to L1), recording the
// access outcome either way. All failures degrade to a miss.
func (e *engine) Get(ctx context.Context, query string, params map[string]any, table string) ([]Record, bool) {
	if !e.enabled.Load() {
		return nil, false
	}
	key := e.Key(query, params, table)

	if v, ok := e.l1.Get(key); ok {
		if rs, ok := v.([]Record); ok {
			e.tracker.Record(key, true)
			return rs, true
		}
		// unexpected shape under a query key; drop it
		e.l1.Remove(key)
	}

	payload, env, ok := e.fetchL2(ctx, key)
	if !ok {
		e.tracker.Record(key, false)
		return nil, false
	}
	rs, err := e.codec.Decode(payload)
	if err != nil {
		e.selfHeal(ctx, key, "value_decode")
		e.tracker.Record(key, false)
		return nil, false
	}

	if rem := remainingTTL(env); rem > 0 {
		e.l1.Put(key, rs, int64(len(payload)), rem)
	}
	e.tracker.Record(key, true)
	return rs, true
}

// Put caches a query result in both tiers and records the table dependency.
// ttl <= 0 defers to the TTL policy.
func (e *engine) Put(ctx context.Context, query string, params map[string]any, table string, results []Record, ttl time.Duration) error {
	if !e.enabled.Load() {
		return nil
	}
	key := e.Key(query, params, table)

	payload, err := e.codec.Encode(results)
	if err != nil {
		return fmt.Errorf("querycache: encode results: %w", err)
	}
	if ttl <= 0 {
		ttl = e.policy.TTLFor(query, table, len(payload))
	}

	e.l1.Put(key, results, int64(len(payload)), ttl)
	if err := e.storeL2(ctx, key, payload, table, ttl); err != nil {
		// L1 is already seeded; the distributed tier will be repopulated on
		// the next miss.
		e.log.Warn("l2 store failed", Fields{"key": key, "err": err})
		return err
	}

	if table != "" {
		e.addDependency(ctx, table, key)
	}
	return nil
}

// InvalidateTable drops every key recorded in the table's dependency index
// from both tiers and clears the index. Failures degrade to 0.
func (e *engine) InvalidateTable(ctx context.Context, table string) int {
	depsKey := keys.Deps(e.ns, table)

	raw, ok, err := e.provider.Get(ctx, depsKey)
	if err != nil {
		derr := &DependencyIndexError{Table: table, FetchErr: err}
		e.log.Warn("dependency index fetch failed", Fields{"table": table, "err": derr})
		e.hooks.DependencyIndexError(table, derr)
		return 0
	}
	if !ok {
		return 0 // nothing depends on this table
	}
	list, err := e.deps.Decode(raw)
	if err != nil {
		// corrupt index; clear it so writers start fresh
		_, _ = e.provider.Del(ctx, depsKey)
		e.hooks.SelfHeal(depsKey, "corrupt")
		return 0
	}

	removed := 0
	for _, k := range list {
		if e.l1.Remove(k) {
			removed++
		}
	}
	if len(list) > 0 {
		if n, err := e.provider.Del(ctx, list...); err == nil && n > removed {
			removed = n
		} else if err != nil {
			e.log.Warn("l2 delete failed during invalidation", Fields{"table": table, "err": err})
		}
	}
	_, _ = e.provider.Del(ctx, depsKey)

	e.hooks.TableInvalidated(table, removed)
	e.log.Debug("table invalidated", Fields{"table": table, "removed": removed})
	return removed
}

func (e *engine) InvalidateTables(ctx context.Context, tables ...string) int {
	total := 0
	for _, t := range tables {
		total += e.InvalidateTable(ctx, t)
	}
	return total
}

func (e *engine) Stats() Stats {
	hits, misses := e.tracker.Totals()
	s := Stats{
		Hits:         hits,
		Misses:       misses,
		L1Size:       e.l1.Len(),
		L1MaxSize:    e.l1.maxSize,
		L1Bytes:      e.l1.Bytes(),
		FrequentKeys: e.tracker.TopN(frequentKeysLimit),
	}
	if total := hits + misses; total > 0 {
		s.HitRatio = round3(float64(hits) / float64(total))
	}
	return s
}

func round3(f float64) float64 { return math.Round(f*1000) / 1000 }

// fetchL2 reads and unwraps an envelope, decompressing when flagged. Any
// decode failure self-heals (deletes the entry) and reads as a miss.
func (e *engine) fetchL2(ctx context.Context, key string) ([]byte, wire.Envelope, bool) {
	raw, ok, err := e.provider.Get(ctx, key)
	if err != nil {
		e.log.Warn("l2 get failed", Fields{"key": key, "err": err})
		return nil, wire.Envelope{}, false
	}
	if !ok {
		return nil, wire.Envelope{}, false
	}
	env, err := wire.Decode(raw)
	if err != nil {
		e.selfHeal(ctx, key, "corrupt")
		return nil, wire.Envelope{}, false
	}
	payload := env.Payload
	if env.Compressed {
		payload, err = compress.Decompress(payload)
		if err != nil {
			e.selfHeal(ctx, key, "decompress")
			return nil, wire.Envelope{}, false
		}
	}
	return payload, env, true
}

// storeL2 wraps payload in an envelope (compressing beyond the threshold)
// and writes it with the entry TTL.
func (e *engine) storeL2(ctx context.Context, key string, payload []byte, table string, ttl time.Duration) error {
	stored := payload
	compressed := false
	if compress.ShouldCompress(payload, e.compressMin) {
		if z, err := compress.Compress(payload); err == nil {
			stored, compressed = z, true
		} else {
			e.log.Warn("compression failed; storing raw", Fields{"key": key, "err": err})
		}
	}

	env := wire.Envelope{
		Payload:    stored,
		Compressed: compressed,
		CachedAt:   time.Now().UTC(),
		TTL:        ttl,
		QueryHash:  keyDigest(key),
		Table:      table,
	}
	ok, err := e.provider.Set(ctx, key, wire.Encode(env), ttl)
	if err != nil {
		return err
	}
	if !ok {
		e.hooks.ProviderSetRejected(key)
		e.log.Debug("l2 set rejected (pressure)", Fields{"key": key})
	}
	return nil
}

// addDependency appends key to the table's dependency set (idempotent,
// read-modify-write). Failures are logged and skipped; invalidation will
// simply not cover this entry, which is safe because the entry still expires.
func (e *engine) addDependency(ctx context.Context, table, key string) {
	depsKey := keys.Deps(e.ns, table)

	list := []string{}
	raw, ok, err := e.provider.Get(ctx, depsKey)
	if err != nil {
		derr := &DependencyIndexError{Table: table, FetchErr: err}
		e.log.Warn("dependency index fetch failed", Fields{"table": table, "err": derr})
		e.hooks.DependencyIndexError(table, derr)
		return
	}
	if ok {
		if list, err = e.deps.Decode(raw); err != nil {
			list = nil // corrupt; rebuild from here
		}
		for _, k := range list {
			if k == key {
				return
			}
		}
	}
	list = append(list, key)

	enc, err := e.deps.Encode(list)
	if err != nil {
		return
	}
	// dependency sets do not expire; they are consumed by invalidation
	if _, err := e.provider.Set(ctx, depsKey, enc, 0); err != nil {
		derr := &DependencyIndexError{Table: table, StoreErr: err}
		e.log.Warn("dependency index store failed", Fields{"table": table, "err": derr})
		e.hooks.DependencyIndexError(table, derr)
	}
}

func (e *engine) selfHeal(ctx context.Context, key, reason string) {
	_, _ = e.provider.Del(ctx, key)
	e.hooks.SelfHeal(key, reason)
	e.log.Warn("self-healed cache entry", Fields{"key": key, "reason": reason})
}

func remainingTTL(env wire.Envelope) time.Duration {
	if env.TTL <= 0 {
		return 0
	}
	return time.Until(env.CachedAt.Add(env.TTL))
}

// keyDigest extracts the trailing hex digest from a namespaced key.
func keyDigest(key string) string {
	for i := len(key) - 1; i >= 0; i-- {
		if key[i] == ':' {
			return key[i+1:]
		}
	}
	return key
}
