// Package querycache implements a two-tier query-result cache: a bounded
// in-process LRU tier (L1) in front of a distributed byte store (L2, e.g.
// Redis). Entries are keyed by a deterministic fingerprint of the request
// that produced them and expire under an adaptive TTL policy.
//
// Components:
//   - Provider: byte store with TTL backing L2 (Redis, BigCache, Ristretto,
//     or the in-process memory provider).
//   - Codec[V]: (de)serializes result payloads <-> []byte.
//   - Policy: picks a TTL from query/table heuristics and result size.
//   - Store: read-through/invalidate-on-write wrapper over a data executor.
//   - SearchCache[Req, Resp]: request/response-typed caching for search
//     services with field-selectable fingerprinting.
//
// Keys (stable; other tooling may rely on the format):
//
//	<ns>:query:<16hex>      - query-result entries
//	<ns>:vector:<16hex>     - vector-search entries
//	<ns>:deps:<table>       - table dependency index
//	<prefix>:search:<16hex> - typed search-result entries
//
// Read path: L1 -> L2 (restore to L1 on hit) -> origin. Mutations invalidate
// every key recorded in the mutated table's dependency index, in both tiers.
// The engine is fail-open: backend errors and corrupt entries are logged and
// treated as misses, never surfaced to callers of the read-through adapters.
package querycache
