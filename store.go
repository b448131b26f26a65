package querycache

import (
	"context"
	"strconv"
	"strings"
	"time"
)

// SelectQuery describes the shape of a read. Every shape field participates
// in the fingerprint; TTL and SkipCache do not.
type SelectQuery struct {
	Table   string
	Columns []string
	Filters map[string]any
	OrderBy string
	Limit   int
	Offset  int

	TTL       time.Duration // 0 => policy-determined
	SkipCache bool          // bypass the cache entirely for this call
}

// VectorQuery describes the shape of a vector search.
type VectorQuery struct {
	Table               string
	VectorColumn        string
	QueryVector         []float32
	Limit               int
	SimilarityThreshold float64
	Filters             map[string]any

	TTL       time.Duration
	SkipCache bool
}

// Executor is the origin data path the Store wraps: a generic database-like
// collaborator. Timeouts/retries are its responsibility; the cache treats any
// error from it as the caller's problem and any cache-side error as a miss.
type Executor interface {
	Select(ctx context.Context, q SelectQuery) ([]Record, error)
	Insert(ctx context.Context, table string, rows []Record) ([]Record, error)
	Update(ctx context.Context, table string, data Record, filters map[string]any) ([]Record, error)
	Upsert(ctx context.Context, table string, rows []Record) ([]Record, error)
	Delete(ctx context.Context, table string, filters map[string]any) ([]Record, error)
	VectorSearch(ctx context.Context, q VectorQuery) ([]Record, error)
}

// Store wraps an Executor with transparent read-through caching and
// invalidate-on-write. Cache failures never fail the caller; every path can
// fall through to the origin.
type Store struct {
	db    Executor
	cache Cache
	log   Logger
}

func NewStore(db Executor, cache Cache, log Logger) *Store {
	return &Store{
		db:    db,
		cache: cache,
		log:   coalesce[Logger](log, NopLogger{}),
	}
}

// Cache exposes the underlying engine for administrative operations
// (statistics, optimization, runtime flags).
func (s *Store) Cache() Cache { return s.cache }

// SelectWithCache probes the cache with the query's fingerprint and falls
// back to the executor on a miss, populating both tiers with the result.
func (s *Store) SelectWithCache(ctx context.Context, q SelectQuery) ([]Record, error) {
	if q.SkipCache || s.cache == nil || !s.cache.Enabled() {
		return s.db.Select(ctx, q)
	}

	text := selectText(q)
	if rs, ok := s.cache.Get(ctx, text, q.Filters, q.Table); ok {
		return rs, nil
	}

	rs, err := s.db.Select(ctx, q)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Put(ctx, text, q.Filters, q.Table, rs, q.TTL); err != nil {
		s.log.Warn("cache populate failed; serving origin result", Fields{"table": q.Table, "err": err})
	}
	return rs, nil
}

// VectorSearchWithCache is the read-through contract specialized to
// vector-search results.
func (s *Store) VectorSearchWithCache(ctx context.Context, q VectorQuery) ([]Record, error) {
	if q.SkipCache || s.cache == nil || !s.cache.Enabled() {
		return s.db.VectorSearch(ctx, q)
	}

	if rs, ok := s.cache.GetVector(ctx, q.QueryVector, q.SimilarityThreshold, q.Limit, q.Table); ok {
		return rs, nil
	}

	rs, err := s.db.VectorSearch(ctx, q)
	if err != nil {
		return nil, err
	}
	if err := s.cache.PutVector(ctx, q.QueryVector, q.SimilarityThreshold, q.Limit, q.Table, rs, q.TTL); err != nil {
		s.log.Warn("vector cache populate failed", Fields{"table": q.Table, "err": err})
	}
	return rs, nil
}

// InsertWithInvalidation performs the mutation first; only when at least one
// record was affected (and invalidation is enabled) is the table's cache
// dropped.
func (s *Store) InsertWithInvalidation(ctx context.Context, table string, rows []Record) ([]Record, error) {
	affected, err := s.db.Insert(ctx, table, rows)
	if err != nil {
		return nil, err
	}
	s.invalidateAfterWrite(ctx, table, len(affected))
	return affected, nil
}

func (s *Store) UpdateWithInvalidation(ctx context.Context, table string, data Record, filters map[string]any) ([]Record, error) {
	affected, err := s.db.Update(ctx, table, data, filters)
	if err != nil {
		return nil, err
	}
	s.invalidateAfterWrite(ctx, table, len(affected))
	return affected, nil
}

func (s *Store) UpsertWithInvalidation(ctx context.Context, table string, rows []Record) ([]Record, error) {
	affected, err := s.db.Upsert(ctx, table, rows)
	if err != nil {
		return nil, err
	}
	s.invalidateAfterWrite(ctx, table, len(affected))
	return affected, nil
}

func (s *Store) DeleteWithInvalidation(ctx context.Context, table string, filters map[string]any) ([]Record, error) {
	affected, err := s.db.Delete(ctx, table, filters)
	if err != nil {
		return nil, err
	}
	s.invalidateAfterWrite(ctx, table, len(affected))
	return affected, nil
}

// TableRows is one bulk-insert group.
type TableRows struct {
	Table string
	Rows  []Record
}

// BulkInsertWithInvalidation inserts each group and invalidates every
// affected table exactly once, after all inserts finished.
func (s *Store) BulkInsertWithInvalidation(ctx context.Context, groups []TableRows) ([]Record, error) {
	var all []Record
	touched := make(map[string]bool, len(groups))
	for _, g := range groups {
		affected, err := s.db.Insert(ctx, g.Table, g.Rows)
		if err != nil {
			// invalidate what already changed before reporting the failure
			s.invalidateTouched(ctx, touched)
			return all, err
		}
		if len(affected) > 0 {
			touched[g.Table] = true
		}
		all = append(all, affected...)
	}
	s.invalidateTouched(ctx, touched)
	return all, nil
}

// InvalidateTables drops the cache for each named table. Administrative;
// bypasses the invalidation-enabled flag.
func (s *Store) InvalidateTables(ctx context.Context, tables ...string) int {
	if s.cache == nil {
		return 0
	}
	return s.cache.InvalidateTables(ctx, tables...)
}

func (s *Store) Stats() Stats {
	if s.cache == nil {
		return Stats{}
	}
	return s.cache.Stats()
}

func (s *Store) Optimize() OptimizationReport {
	if s.cache == nil {
		return OptimizationReport{}
	}
	return s.cache.Optimize()
}

func (s *Store) invalidateAfterWrite(ctx context.Context, table string, affected int) {
	if affected == 0 || s.cache == nil || !s.cache.InvalidationEnabled() {
		return
	}
	n := s.cache.InvalidateTable(ctx, table)
	s.log.Debug("write invalidated table cache", Fields{"table": table, "removed": n})
}

func (s *Store) invalidateTouched(ctx context.Context, touched map[string]bool) {
	for table := range touched {
		s.invalidateAfterWrite(ctx, table, 1)
	}
}

// selectText renders a deterministic query text for fingerprinting and TTL
// heuristics. Filters travel separately as the fingerprint's parameter map.
func selectText(q SelectQuery) string {
	var b strings.Builder
	b.WriteString("select ")
	if len(q.Columns) == 0 {
		b.WriteString("*")
	} else {
		b.WriteString(strings.Join(q.Columns, ","))
	}
	b.WriteString(" from ")
	b.WriteString(q.Table)
	if q.OrderBy != "" {
		b.WriteString(" order by ")
		b.WriteString(q.OrderBy)
	}
	if q.Limit > 0 {
		b.WriteString(" limit ")
		b.WriteString(strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		b.WriteString(" offset ")
		b.WriteString(strconv.Itoa(q.Offset))
	}
	return b.String()
}
