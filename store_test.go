package querycache

import (
	"context"
	"errors"
	"testing"

	"github.com/unkn0wn-root/querycache/provider/memory"
)

// fakeExecutor counts origin calls and serves canned rows.
type fakeExecutor struct {
	selects        int
	vectorSearches int
	inserts        map[string]int
	failMutations  bool
}

func newFakeExecutor() *fakeExecutor {
	return &fakeExecutor{inserts: make(map[string]int)}
}

func (f *fakeExecutor) Select(_ context.Context, q SelectQuery) ([]Record, error) {
	f.selects++
	return rows(2), nil
}

func (f *fakeExecutor) Insert(_ context.Context, table string, rs []Record) ([]Record, error) {
	if f.failMutations {
		return nil, errors.New("insert failed")
	}
	f.inserts[table]++
	return rs, nil
}

func (f *fakeExecutor) Update(_ context.Context, table string, data Record, _ map[string]any) ([]Record, error) {
	if f.failMutations {
		return nil, errors.New("update failed")
	}
	return []Record{data}, nil
}

func (f *fakeExecutor) Upsert(_ context.Context, table string, rs []Record) ([]Record, error) {
	return rs, nil
}

func (f *fakeExecutor) Delete(_ context.Context, table string, _ map[string]any) ([]Record, error) {
	return []Record{{"deleted": true}}, nil
}

func (f *fakeExecutor) VectorSearch(_ context.Context, q VectorQuery) ([]Record, error) {
	f.vectorSearches++
	return rows(3), nil
}

func newTestStore(t *testing.T) (*Store, *fakeExecutor, Cache) {
	t.Helper()
	cc := newTestCache(t, memory.New(), nil)
	db := newFakeExecutor()
	return NewStore(db, cc, nil), db, cc
}

func TestSelectWithCacheReadThrough(t *testing.T) {
	ctx := context.Background()
	s, db, _ := newTestStore(t)

	q := SelectQuery{Table: "users", Columns: []string{"id", "name"}}

	if _, err := s.SelectWithCache(ctx, q); err != nil {
		t.Fatalf("first select: %v", err)
	}
	if _, err := s.SelectWithCache(ctx, q); err != nil {
		t.Fatalf("second select: %v", err)
	}
	if db.selects != 1 {
		t.Fatalf("origin executed %d times, want 1 (second call cached)", db.selects)
	}
}

func TestSelectSkipCache(t *testing.T) {
	ctx := context.Background()
	s, db, _ := newTestStore(t)

	q := SelectQuery{Table: "users", SkipCache: true}
	for i := 0; i < 3; i++ {
		if _, err := s.SelectWithCache(ctx, q); err != nil {
			t.Fatalf("select: %v", err)
		}
	}
	if db.selects != 3 {
		t.Fatalf("SkipCache still cached: %d origin calls", db.selects)
	}
}

func TestSelectWithCacheDisabledEngine(t *testing.T) {
	ctx := context.Background()
	s, db, cc := newTestStore(t)
	cc.SetEnabled(false)

	q := SelectQuery{Table: "users"}
	for i := 0; i < 2; i++ {
		if _, err := s.SelectWithCache(ctx, q); err != nil {
			t.Fatalf("select: %v", err)
		}
	}
	if db.selects != 2 {
		t.Fatalf("disabled engine still served cache: %d origin calls", db.selects)
	}
}

func TestWriteInvalidatesRead(t *testing.T) {
	ctx := context.Background()
	s, db, _ := newTestStore(t)

	q := SelectQuery{Table: "users"}
	if _, err := s.SelectWithCache(ctx, q); err != nil {
		t.Fatalf("prime: %v", err)
	}
	if _, err := s.InsertWithInvalidation(ctx, "users", rows(1)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := s.SelectWithCache(ctx, q); err != nil {
		t.Fatalf("reread: %v", err)
	}
	if db.selects != 2 {
		t.Fatalf("select after mutation served stale cache: %d origin calls, want 2", db.selects)
	}
}

func TestMutationWithoutEffectKeepsCache(t *testing.T) {
	ctx := context.Background()
	s, db, _ := newTestStore(t)

	q := SelectQuery{Table: "users"}
	if _, err := s.SelectWithCache(ctx, q); err != nil {
		t.Fatalf("prime: %v", err)
	}
	// zero affected rows must not invalidate
	if _, err := s.InsertWithInvalidation(ctx, "users", nil); err != nil {
		t.Fatalf("no-op insert: %v", err)
	}
	if _, err := s.SelectWithCache(ctx, q); err != nil {
		t.Fatalf("reread: %v", err)
	}
	if db.selects != 1 {
		t.Fatalf("no-op mutation invalidated cache: %d origin calls", db.selects)
	}
}

func TestInvalidationDisabledKeepsCache(t *testing.T) {
	ctx := context.Background()
	s, db, cc := newTestStore(t)
	cc.SetInvalidationEnabled(false)

	q := SelectQuery{Table: "users"}
	if _, err := s.SelectWithCache(ctx, q); err != nil {
		t.Fatalf("prime: %v", err)
	}
	if _, err := s.InsertWithInvalidation(ctx, "users", rows(1)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := s.SelectWithCache(ctx, q); err != nil {
		t.Fatalf("reread: %v", err)
	}
	if db.selects != 1 {
		t.Fatalf("invalidation ran while disabled: %d origin calls", db.selects)
	}
}

func TestBulkInsertInvalidatesEachTableOnce(t *testing.T) {
	ctx := context.Background()
	s, db, cc := newTestStore(t)
	impl := mustImpl(t, cc)

	invalidations := map[string]int{}
	impl.hooks = countingHooks{invalidations}

	groups := []TableRows{
		{Table: "users", Rows: rows(2)},
		{Table: "users", Rows: rows(1)},
		{Table: "orders", Rows: rows(1)},
	}
	if _, err := s.BulkInsertWithInvalidation(ctx, groups); err != nil {
		t.Fatalf("bulk insert: %v", err)
	}
	if db.inserts["users"] != 2 || db.inserts["orders"] != 1 {
		t.Fatalf("insert counts: %v", db.inserts)
	}
	if invalidations["users"] != 1 || invalidations["orders"] != 1 {
		t.Fatalf("per-table invalidations: %v, want exactly one each", invalidations)
	}
}

func TestVectorSearchWithCache(t *testing.T) {
	ctx := context.Background()
	s, db, _ := newTestStore(t)

	q := VectorQuery{
		Table:               "docs",
		VectorColumn:        "embedding",
		QueryVector:         []float32{0.1, 0.2, 0.3},
		Limit:               5,
		SimilarityThreshold: 0.8,
	}
	for i := 0; i < 2; i++ {
		if _, err := s.VectorSearchWithCache(ctx, q); err != nil {
			t.Fatalf("vector search: %v", err)
		}
	}
	if db.vectorSearches != 1 {
		t.Fatalf("origin vector search ran %d times, want 1", db.vectorSearches)
	}
}

func TestMutationErrorPropagates(t *testing.T) {
	ctx := context.Background()
	s, db, _ := newTestStore(t)
	db.failMutations = true

	if _, err := s.InsertWithInvalidation(ctx, "users", rows(1)); err == nil {
		t.Fatalf("origin failure swallowed")
	}
}

type countingHooks struct {
	invalidations map[string]int
}

func (countingHooks) SelfHeal(string, string)            {}
func (countingHooks) ProviderSetRejected(string)         {}
func (countingHooks) DependencyIndexError(string, error) {}
func (h countingHooks) TableInvalidated(table string, _ int) {
	h.invalidations[table]++
}
