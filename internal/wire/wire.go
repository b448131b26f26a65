// Package wire frames cache envelopes for the distributed tier.
//
// Envelope: magic(4) | ver(1) | flags(1) | cachedAt(u64 be, unix sec)
//   - ttl(u32 be, sec)
//   - hlen(u16 be) | queryHash(hlen)
//   - tlen(u16 be) | table(tlen)
//   - plen(u32 be) | payload(plen)
//
// Strict validation: anything that does not parse is ErrCorrupt and the
// caller deletes the entry (self-heal) and treats the read as a miss.
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"time"
)

const (
	version byte = 1

	flagCompressed byte = 1 << 0
)

var (
	ErrCorrupt = errors.New("wire: corrupt envelope")
	magic4     = [...]byte{'Q', 'R', 'Y', 'C'}
)

// Envelope is the persisted form of a cache entry in the distributed tier.
// Payload holds codec-encoded bytes, gzipped when Compressed is set.
type Envelope struct {
	Payload    []byte
	Compressed bool
	CachedAt   time.Time
	TTL        time.Duration // original entry lifetime; lets readers restore L1 with the remainder
	QueryHash  string
	Table      string
}

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

func Encode(e Envelope) []byte {
	var buf bytes.Buffer
	buf.Grow(4 + 1 + 1 + 8 + 4 + 2 + len(e.QueryHash) + 2 + len(e.Table) + 4 + len(e.Payload))

	buf.Write(magic4[:])
	buf.WriteByte(version)

	var flags byte
	if e.Compressed {
		flags |= flagCompressed
	}
	buf.WriteByte(flags)

	var u8 [8]byte
	var u4 [4]byte
	var u2 [2]byte

	binary.BigEndian.PutUint64(u8[:], uint64(e.CachedAt.Unix()))
	buf.Write(u8[:])

	binary.BigEndian.PutUint32(u4[:], uint32(e.TTL/time.Second))
	buf.Write(u4[:])

	binary.BigEndian.PutUint16(u2[:], uint16(len(e.QueryHash)))
	buf.Write(u2[:])
	buf.WriteString(e.QueryHash)

	binary.BigEndian.PutUint16(u2[:], uint16(len(e.Table)))
	buf.Write(u2[:])
	buf.WriteString(e.Table)

	binary.BigEndian.PutUint32(u4[:], uint32(len(e.Payload)))
	buf.Write(u4[:])
	buf.Write(e.Payload)

	return buf.Bytes()
}

func Decode(b []byte) (Envelope, error) {
	const fixed = 4 + 1 + 1 + 8 + 4
	if len(b) < fixed || !hasMagic(b) || b[4] != version {
		return Envelope{}, ErrCorrupt
	}

	e := Envelope{Compressed: b[5]&flagCompressed != 0}
	off := 6

	e.CachedAt = time.Unix(int64(binary.BigEndian.Uint64(b[off:off+8])), 0).UTC()
	off += 8

	e.TTL = time.Duration(binary.BigEndian.Uint32(b[off:off+4])) * time.Second
	off += 4

	hash, off, err := readStr16(b, off)
	if err != nil {
		return Envelope{}, err
	}
	e.QueryHash = hash

	table, off, err := readStr16(b, off)
	if err != nil {
		return Envelope{}, err
	}
	e.Table = table

	if off+4 > len(b) {
		return Envelope{}, ErrCorrupt
	}
	plen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if plen != len(b)-off { // trailing bytes are corruption too
		return Envelope{}, ErrCorrupt
	}
	e.Payload = b[off : off+plen]

	return e, nil
}

func readStr16(b []byte, off int) (string, int, error) {
	if off+2 > len(b) {
		return "", 0, ErrCorrupt
	}
	n := int(binary.BigEndian.Uint16(b[off : off+2]))
	off += 2
	if n > len(b)-off {
		return "", 0, ErrCorrupt
	}
	return string(b[off : off+n]), off + n, nil
}
