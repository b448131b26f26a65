// Package keys builds the deterministic cache-key namespace used by querycache.
//
// Key formats are stable and may be relied upon by external tooling:
//
//	<ns>:query:<16hex>   - query-result entries
//	<ns>:vector:<16hex>  - vector-search entries
//	<ns>:deps:<table>    - dependency index per table
//	<prefix>:search:<16hex> - typed search-result entries
package keys

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

const digestLen = 16 // hex chars of the sha256 digest kept in keys

// Normalize case-folds query text and collapses whitespace runs to single
// spaces, so that formatting-only differences map to the same key.
func Normalize(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}

// CanonicalParams serializes a parameter map deterministically: keys sorted,
// values JSON-encoded. A value that cannot be marshaled is coerced via %v
// instead of failing; fingerprinting must accept any input.
func CanonicalParams(params map[string]any) string {
	if len(params) == 0 {
		return ""
	}
	ks := make([]string, 0, len(params))
	for k := range params {
		ks = append(ks, k)
	}
	sort.Strings(ks)

	var b strings.Builder
	for i, k := range ks {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteByte('=')
		enc, err := json.Marshal(params[k])
		if err != nil {
			b.WriteString(fmt.Sprintf("%v", params[k]))
			continue
		}
		b.Write(enc)
	}
	return b.String()
}

// Query fingerprints (query text, params, table) into "<ns>:query:<16hex>".
// The same semantic input always yields the same key; any differing parameter
// value or table yields a different key.
func Query(ns, query string, params map[string]any, table string) string {
	repr := Normalize(query) + "|" + CanonicalParams(params) + "|" + table
	return ns + ":query:" + digest(repr)
}

// Vector fingerprints a query vector together with its search parameters into
// "<ns>:vector:<16hex>". An empty vector is a valid input.
func Vector(ns string, vec []float32, threshold float64, limit int, table string) string {
	repr := VectorHash(vec) +
		"|" + strconv.FormatFloat(threshold, 'g', -1, 64) +
		"|" + strconv.Itoa(limit) +
		"|" + table
	return ns + ":vector:" + digest(repr)
}

// VectorHash returns a short stable hash of the raw vector contents.
func VectorHash(vec []float32) string {
	h := xxhash.New()
	var buf [4]byte
	for _, f := range vec {
		binary.LittleEndian.PutUint32(buf[:], math.Float32bits(f))
		_, _ = h.Write(buf[:])
	}
	return strconv.FormatUint(h.Sum64(), 16)
}

// Deps returns the reserved dependency-index key for a table.
func Deps(ns, table string) string {
	return ns + ":deps:" + table
}

// Search fingerprints the result-affecting fields of a typed search request
// into "<prefix>:search:<16hex>".
func Search(prefix string, fields map[string]any) string {
	return prefix + ":search:" + digest(CanonicalParams(fields))
}

func digest(repr string) string {
	sum := sha256.Sum256([]byte(repr))
	return hex.EncodeToString(sum[:])[:digestLen]
}
