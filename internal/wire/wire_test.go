package wire

import (
	"bytes"
	"errors"
	"testing"
	"time"
)

func sample() Envelope {
	return Envelope{
		Payload:    []byte(`[{"id":1}]`),
		Compressed: true,
		CachedAt:   time.Unix(1700000000, 0).UTC(),
		TTL:        5 * time.Minute,
		QueryHash:  "a1b2c3d4e5f60718",
		Table:      "users",
	}
}

func TestRoundTrip(t *testing.T) {
	in := sample()
	out, err := Decode(Encode(in))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !bytes.Equal(out.Payload, in.Payload) {
		t.Fatalf("payload mismatch")
	}
	if out.Compressed != in.Compressed || out.TTL != in.TTL ||
		out.QueryHash != in.QueryHash || out.Table != in.Table {
		t.Fatalf("metadata mismatch: %+v", out)
	}
	if !out.CachedAt.Equal(in.CachedAt) {
		t.Fatalf("cachedAt %v != %v", out.CachedAt, in.CachedAt)
	}
}

func TestRoundTripUncompressedEmptyPayload(t *testing.T) {
	in := Envelope{CachedAt: time.Now().UTC().Truncate(time.Second)}
	out, err := Decode(Encode(in))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out.Compressed || len(out.Payload) != 0 || out.Table != "" {
		t.Fatalf("unexpected decode %+v", out)
	}
}

func TestDecodeRejectsCorruption(t *testing.T) {
	good := Encode(sample())
	cases := map[string][]byte{
		"empty":          {},
		"short":          good[:5],
		"bad magic":      append([]byte("XXXX"), good[4:]...),
		"bad version":    append(append([]byte{}, good[:4]...), append([]byte{99}, good[5:]...)...),
		"truncated body": good[:len(good)-3],
		"trailing bytes": append(append([]byte{}, good...), 0xAA),
		"plain json":     []byte(`{"payload":"x"}`),
	}
	for name, b := range cases {
		if _, err := Decode(b); !errors.Is(err, ErrCorrupt) {
			t.Errorf("%s: err = %v, want ErrCorrupt", name, err)
		}
	}
}

func TestDecodeRejectsLyingLengths(t *testing.T) {
	b := Encode(sample())
	// inflate the hash length field past the buffer end
	off := 4 + 1 + 1 + 8 + 4
	b[off] = 0xff
	b[off+1] = 0xff
	if _, err := Decode(b); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("oversized length accepted: %v", err)
	}
}
