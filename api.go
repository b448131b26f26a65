package querycache

import (
	"context"
	"time"

	c "github.com/unkn0wn-root/querycache/codec"
	pr "github.com/unkn0wn-root/querycache/provider"
)

// Record is one row of a cached result set.
type Record = map[string]any

// Cache is the high-level, provider-agnostic query-result cache API.
// Reads are fail-open: backend errors and corrupt entries are logged and
// reported as misses, never returned to the caller. Writes return errors so
// callers that care (tests, warmers) can observe them; the read-through Store
// swallows them per the fail-open contract.
type Cache interface {
	Enabled() bool
	SetEnabled(bool)
	InvalidationEnabled() bool
	SetInvalidationEnabled(bool)
	Close(context.Context) error

	// Fingerprints (exposed for diagnostics and targeted invalidation).
	Key(query string, params map[string]any, table string) string
	VectorKey(vec []float32, threshold float64, limit int, table string) string

	// Query results
	Get(ctx context.Context, query string, params map[string]any, table string) ([]Record, bool)
	Put(ctx context.Context, query string, params map[string]any, table string, results []Record, ttl time.Duration) error

	// Vector-search results (own namespace and default TTL; table TTL
	// overrides never apply).
	GetVector(ctx context.Context, vec []float32, threshold float64, limit int, table string) ([]Record, bool)
	PutVector(ctx context.Context, vec []float32, threshold float64, limit int, table string, results []Record, ttl time.Duration) error

	// Invalidation by dependency index. Returns keys removed; degraded
	// failures count as zero.
	InvalidateTable(ctx context.Context, table string) int
	InvalidateTables(ctx context.Context, tables ...string) int

	// Warming, statistics, self-optimization.
	Warm(ctx context.Context, entries []WarmupEntry, exec ExecuteFunc) (int, error)
	Stats() Stats
	Optimize() OptimizationReport
}

// KeyFrequency is one row of the "frequent queries" statistic.
type KeyFrequency struct {
	Key       string
	Frequency float64
	Hits      uint64
	Misses    uint64
}

// Stats is a point-in-time snapshot of cache effectiveness.
type Stats struct {
	Hits         uint64
	Misses       uint64
	HitRatio     float64 // rounded to 3 decimals
	L1Size       int
	L1MaxSize    int
	L1Bytes      int64
	FrequentKeys []KeyFrequency
}

// OptimizationReport summarizes one self-optimization pass.
type OptimizationReport struct {
	StalePatternsDropped int
	IdleEntriesEvicted   int
	Recommendations      []string
}

// WarmupEntry is one curated query for the cache warmer.
type WarmupEntry struct {
	Query  string
	Params map[string]any
	Table  string
	TTL    time.Duration // 0 => policy-determined
}

// ExecuteFunc runs a query against the origin on a warmer's behalf.
type ExecuteFunc func(ctx context.Context, query string, params map[string]any) ([]Record, error)

// Options tune the engine. Only Namespace and Provider are required; others
// have sensible defaults.
type Options struct {
	// Required
	Namespace string // logical namespace prefix, e.g. "app:prod"
	Provider  pr.Provider

	Codec       c.Codec[[]Record]    // nil => codec.JSON[[]Record]
	VectorCodec c.Codec[VectorEntry] // nil => codec.JSON[VectorEntry]

	Logger Logger  // nil => NopLogger
	Hooks  Hooks   // nil => NopHooks
	Policy *Policy // nil => DefaultPolicy()

	L1MaxSize            int           // 0 => 1000
	DefaultTTL           time.Duration // overrides Policy.Fallback when set
	VectorTTL            time.Duration // 0 => 30m
	CompressionThreshold int           // bytes; 0 => 10KB

	// Self-optimization thresholds.
	StalePatternAge time.Duration // 0 => 24h
	IdleEntryAge    time.Duration // 0 => 30m

	Disabled bool // default false (enabled)
}

func New(opts Options) (Cache, error) {
	return newEngine(opts)
}
