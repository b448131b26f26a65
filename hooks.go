package querycache

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking.
// The cache calls them on hot paths.
type Hooks interface {
	// An entry was deleted by the cache on read.
	// reason ∈ {"corrupt", "decompress", "value_decode", "version"}
	SelfHeal(storageKey, reason string)

	// Provider returned ok=false on Set (backpressure/eviction).
	ProviderSetRejected(storageKey string)

	// A dependency-index read or write failed; the append or invalidation
	// degraded instead of propagating.
	DependencyIndexError(table string, err error)

	// A table invalidation sweep finished.
	TableInvalidated(table string, removed int)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) SelfHeal(string, string)            {}
func (NopHooks) ProviderSetRejected(string)         {}
func (NopHooks) DependencyIndexError(string, error) {}
func (NopHooks) TableInvalidated(string, int)       {}
