// Package compress gzips large cache payloads before they reach the
// distributed tier. Compression is size-gated: small payloads are stored
// as-is since the gzip header overhead would dominate.
package compress

import (
	"bytes"
	"compress/gzip"
	"io"
)

// DefaultThreshold is the serialized-payload size above which compression
// kicks in. Tunable, not a protocol constant.
const DefaultThreshold = 10 * 1024

// ShouldCompress reports whether a serialized payload is worth compressing
// under the given threshold. Nil/empty payloads are never compressed.
// A threshold <= 0 falls back to DefaultThreshold.
func ShouldCompress(b []byte, threshold int) bool {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return len(b) > threshold
}

// Compress gzips b. Round trip through Decompress is byte-exact.
func Compress(b []byte) ([]byte, error) {
	var buf bytes.Buffer
	// BestSpeed: cache payloads are hot-path, latency beats ratio.
	w, err := gzip.NewWriterLevel(&buf, gzip.BestSpeed)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(b); err != nil {
		_ = w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decompress reverses Compress. Corrupt input returns an error; callers
// treat that as a cache miss.
func Decompress(b []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return out, nil
}
