// Package provider defines the distributed byte-store abstraction used by
// querycache as its L2 tier.
//
// Implementations MUST be byte-for-byte transparent: Get must return exactly
// the same []byte that was previously passed to Set for a key (no
// prepended/appended metadata, no re-encoding, no mutation). If a store
// performs internal transforms, they MUST be fully reversed so that the bytes
// returned by Get are identical to the bytes provided to Set.
//
// Important: the keyspaces "<ns>:query:", "<ns>:vector:", "<ns>:deps:" and
// "<prefix>:search:" are owned by querycache. External code MUST NOT write
// values under these prefixes. Foreign writes may be treated as corruption by
// strict envelope validation and deleted.
package provider

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrPatternUnsupported is returned by Keys when the backing store cannot
// enumerate its keyspace (e.g. ristretto). Callers degrade gracefully.
var ErrPatternUnsupported = errors.New("provider: key patterns unsupported")

// Provider is a minimal byte store with TTLs. Must be safe for concurrent use.
type Provider interface {
	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	// If an IO/remote error happens, return (nil, false, err).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value with the given TTL; ttl <= 0 means no expiry.
	// Returns ok=false when the store rejected the write under pressure.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) (ok bool, err error)

	// Del removes keys (best-effort) and returns how many existed.
	Del(ctx context.Context, keys ...string) (int, error)

	// Keys lists keys matching pattern. Only a trailing '*' is supported and
	// matches by prefix; a pattern without '*' is an exact-key check.
	// Stores that cannot enumerate return ErrPatternUnsupported.
	Keys(ctx context.Context, pattern string) ([]string, error)

	// Info reports best-effort backend metadata (server, memory, entry count).
	Info(ctx context.Context) (map[string]string, error)

	// Close releases resources.
	Close(ctx context.Context) error
}

// Matches implements the shared pattern contract: a trailing '*' matches by
// prefix, anything else is exact.
func Matches(key, pattern string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		return strings.HasPrefix(key, prefix)
	}
	return key == pattern
}
