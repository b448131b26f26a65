package querycache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	c "github.com/unkn0wn-root/querycache/codec"
	"github.com/unkn0wn-root/querycache/internal/keys"
	pr "github.com/unkn0wn-root/querycache/provider"
)

// SearchCacheVersion is stored with every typed entry; entries written by an
// incompatible release read as misses and are self-healed away.
const SearchCacheVersion = "1"

const defaultSearchTTL = 15 * time.Minute

// searchEnvelope is the persisted form of a typed search response. The
// metadata field names are part of the stored format.
type searchEnvelope struct {
	Response []byte    `json:"response"`
	CachedAt time.Time `json:"_cached_at"`
	Version  string    `json:"_cache_version"`
}

// SearchOptions configure a typed search-result cache.
type SearchOptions[Req, Resp any] struct {
	// Prefix namespaces this service's keys: "<prefix>:search:<16hex>".
	Prefix string

	// KeyFields extracts the subset of request fields that affect results.
	// Pagination-irrelevant or purely cosmetic fields should be left out.
	KeyFields func(Req) map[string]any

	// Provider may be nil: every operation then degrades to a no-op.
	Provider pr.Provider

	Codec  c.Codec[Resp] // nil => codec.JSON[Resp]
	TTL    time.Duration // 0 => 15m
	Logger Logger
}

// SearchCache caches typed request/response pairs for higher-level search
// services. All operations are safe without a backend: they return zero
// values instead of erroring.
type SearchCache[Req, Resp any] struct {
	prefix   string
	fields   func(Req) map[string]any
	provider pr.Provider
	codec    c.Codec[Resp]
	ttl      time.Duration
	log      Logger
}

func NewSearchCache[Req, Resp any](opts SearchOptions[Req, Resp]) (*SearchCache[Req, Resp], error) {
	if opts.Prefix == "" {
		return nil, fmt.Errorf("querycache: search cache prefix is required")
	}
	if opts.KeyFields == nil {
		return nil, fmt.Errorf("querycache: search cache needs a KeyFields func")
	}
	return &SearchCache[Req, Resp]{
		prefix:   opts.Prefix,
		fields:   opts.KeyFields,
		provider: opts.Provider, // nil tolerated
		codec:    coalesce[c.Codec[Resp]](opts.Codec, c.JSON[Resp]{}),
		ttl:      coalesce[time.Duration](opts.TTL, defaultSearchTTL),
		log:      coalesce[Logger](opts.Logger, NopLogger{}),
	}, nil
}

// Key returns the fingerprint for a request.
func (s *SearchCache[Req, Resp]) Key(req Req) string {
	return keys.Search(s.prefix, s.fields(req))
}

// Get returns the cached response for req, or ok=false.
func (s *SearchCache[Req, Resp]) Get(ctx context.Context, req Req) (Resp, bool) {
	var zero Resp
	if s.provider == nil {
		return zero, false
	}
	key := s.Key(req)

	raw, ok, err := s.provider.Get(ctx, key)
	if err != nil {
		s.log.Warn("search cache get failed", Fields{"key": key, "err": err})
		return zero, false
	}
	if !ok {
		return zero, false
	}

	var env searchEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		s.heal(ctx, key, "corrupt")
		return zero, false
	}
	if env.Version != SearchCacheVersion {
		s.heal(ctx, key, "version")
		return zero, false
	}
	resp, err := s.codec.Decode(env.Response)
	if err != nil {
		s.heal(ctx, key, "value_decode")
		return zero, false
	}
	return resp, true
}

// Put caches a response for req. Reports whether the entry was stored.
func (s *SearchCache[Req, Resp]) Put(ctx context.Context, req Req, resp Resp) bool {
	if s.provider == nil {
		return false
	}
	key := s.Key(req)

	payload, err := s.codec.Encode(resp)
	if err != nil {
		s.log.Warn("search cache encode failed", Fields{"key": key, "err": err})
		return false
	}
	raw, err := json.Marshal(searchEnvelope{
		Response: payload,
		CachedAt: time.Now().UTC(),
		Version:  SearchCacheVersion,
	})
	if err != nil {
		return false
	}
	ok, err := s.provider.Set(ctx, key, raw, s.ttl)
	if err != nil {
		s.log.Warn("search cache set failed", Fields{"key": key, "err": err})
		return false
	}
	return ok
}

// Invalidate drops the entry for one request.
func (s *SearchCache[Req, Resp]) Invalidate(ctx context.Context, req Req) bool {
	if s.provider == nil {
		return false
	}
	n, err := s.provider.Del(ctx, s.Key(req))
	if err != nil {
		s.log.Warn("search cache delete failed", Fields{"err": err})
		return false
	}
	return n > 0
}

// InvalidateAll drops every entry under this service's prefix. Returns the
// number removed; backends without key enumeration degrade to 0.
func (s *SearchCache[Req, Resp]) InvalidateAll(ctx context.Context) int {
	if s.provider == nil {
		return 0
	}
	matched, err := s.provider.Keys(ctx, s.prefix+":search:*")
	if err != nil {
		s.log.Warn("search cache pattern scan failed", Fields{"prefix": s.prefix, "err": err})
		return 0
	}
	if len(matched) == 0 {
		return 0
	}
	n, err := s.provider.Del(ctx, matched...)
	if err != nil {
		s.log.Warn("search cache bulk delete failed", Fields{"prefix": s.prefix, "err": err})
		return 0
	}
	return n
}

// SearchStats reports the cached-entry count under the prefix plus
// best-effort backend info.
type SearchStats struct {
	Entries int
	Backend map[string]string
}

func (s *SearchCache[Req, Resp]) Stats(ctx context.Context) SearchStats {
	if s.provider == nil {
		return SearchStats{}
	}
	st := SearchStats{}
	if matched, err := s.provider.Keys(ctx, s.prefix+":search:*"); err == nil {
		st.Entries = len(matched)
	}
	if info, err := s.provider.Info(ctx); err == nil {
		st.Backend = info
	}
	return st
}

func (s *SearchCache[Req, Resp]) heal(ctx context.Context, key, reason string) {
	_, _ = s.provider.Del(ctx, key)
	s.log.Warn("search cache self-healed entry", Fields{"key": key, "reason": reason})
}
