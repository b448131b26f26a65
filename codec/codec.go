// Package codec defines how cached values are serialized before the engine
// frames and stores them. A codec sees only the value payload; compression
// and envelope framing happen outside, in the engine.
package codec

// Codec encodes/decodes values V to []byte for storage.
// Implementations must be safe for concurrent use.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}
