package querycache

import (
	"regexp"
	"strings"
	"time"
)

// TTL defaults per query category. All are starting points, not protocol
// constants; override them on Policy.
const (
	VolatileTTL      = 60 * time.Second
	TimelyTTL        = 300 * time.Second
	HistoricalTTL    = 86400 * time.Second
	AggregateTTL     = 7200 * time.Second
	FallbackTTL      = 900 * time.Second
	VolatileTableCap = 600 * time.Second
	StaticTableFloor = 3600 * time.Second
	LargeResultCap   = 1800 * time.Second

	// LargeResultBytes is the serialized size above which TTLs are capped.
	LargeResultBytes = 1 << 20
)

var yearPattern = regexp.MustCompile(`\b(19|20)\d{2}\b`)

// Policy chooses a cache lifetime from query text, table and result size.
//
// Rules apply first-match in priority order: volatile keywords, time-sensitive
// keywords, historical shape, aggregate shape, then the fallback. Table
// overrides and the large-result cap only tighten whatever an earlier rule
// produced, never loosen it.
type Policy struct {
	VolatileKeywords   []string
	TimelyKeywords     []string
	HistoricalKeywords []string
	AggregateKeywords  []string

	// VolatileTables cap the TTL (user-owned/rapidly mutating tables);
	// StaticTables floor it (reference data).
	VolatileTables []string
	StaticTables   []string

	Volatile   time.Duration
	Timely     time.Duration
	Historical time.Duration
	Aggregate  time.Duration
	Fallback   time.Duration

	TableCap   time.Duration
	TableFloor time.Duration

	ResultCap      time.Duration
	ResultCapBytes int
}

// DefaultPolicy returns the stock heuristics.
func DefaultPolicy() *Policy {
	return &Policy{
		VolatileKeywords:   []string{"price", "quote", "stock", "rate", "ticker", "live"},
		TimelyKeywords:     []string{"today", "news", "current", "latest", "recent"},
		HistoricalKeywords: []string{"archive", "history", "historical", "past"},
		AggregateKeywords:  []string{"count(", "group by", "sum(", "avg(", "min(", "max("},
		VolatileTables:     []string{"sessions", "user_events", "notifications", "queue"},
		StaticTables:       []string{"countries", "currencies", "categories", "languages"},
		Volatile:           VolatileTTL,
		Timely:             TimelyTTL,
		Historical:         HistoricalTTL,
		Aggregate:          AggregateTTL,
		Fallback:           FallbackTTL,
		TableCap:           VolatileTableCap,
		TableFloor:         StaticTableFloor,
		ResultCap:          LargeResultCap,
		ResultCapBytes:     LargeResultBytes,
	}
}

// TTLFor applies the policy to (query, table, resultSize). resultSize is the
// serialized payload length in bytes; pass 0 when unknown.
func (p *Policy) TTLFor(query, table string, resultSize int) time.Duration {
	q := strings.ToLower(query)

	ttl := p.Fallback
	switch {
	case containsAny(q, p.VolatileKeywords):
		ttl = p.Volatile
	case containsAny(q, p.TimelyKeywords):
		ttl = p.Timely
	case containsAny(q, p.HistoricalKeywords) || yearPattern.MatchString(q):
		ttl = p.Historical
	case containsAny(q, p.AggregateKeywords):
		ttl = p.Aggregate
	}

	// Table overrides tighten only.
	t := strings.ToLower(table)
	if t != "" {
		if containsString(p.VolatileTables, t) && ttl > p.TableCap {
			ttl = p.TableCap
		}
		if containsString(p.StaticTables, t) && ttl < p.TableFloor {
			ttl = p.TableFloor
		}
	}

	// Large results expire early regardless of category.
	if resultSize > p.ResultCapBytes && ttl > p.ResultCap {
		ttl = p.ResultCap
	}

	return ttl
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
