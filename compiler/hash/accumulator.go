// Package hash folds the shape-affecting choices of a graph compilation
// into a structural fingerprint.
//
// Only discrete choices that change the generated code are written: node
// kinds, operator codes, dimension counts, feature flags, names that appear
// in the output. Runtime-bound values (constant and injected parameter
// values) are never written, so editing them keeps the fingerprint stable
// and does not force a recompile.
package hash

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	gohash "hash"
)

// ---------------------------------------------------------------------------
// Deterministic streaming encoding of structural tokens.
//
// Encoding conventions:
//   - First byte: HashVersion (0x01)
//   - Tags and small enums: single byte
//   - Integers: big-endian fixed-width (uint16=2B, uint32=4B, int64=8B)
//   - Strings: uint32 big-endian length + UTF-8 bytes
//   - Booleans: single byte (0/1)
// ---------------------------------------------------------------------------

// Sum is a finished structural hash.
type Sum [32]byte

// String returns the lowercase hex form of the hash.
func (s Sum) String() string {
	return hex.EncodeToString(s[:])
}

// Short returns the first 12 hex digits, used in logs and artifact names.
func (s Sum) Short() string {
	return s.String()[:12]
}

// IsZero reports whether the hash is unset.
func (s Sum) IsZero() bool {
	return s == Sum{}
}

// Accumulator is a running structural fingerprint. The zero value is not
// usable; create one with New.
type Accumulator struct {
	h gohash.Hash
	n int // bytes written, including the version prefix
}

// New returns an Accumulator primed with the version prefix.
func New() *Accumulator {
	a := &Accumulator{h: sha256.New()}
	a.write([]byte{HashVersion})
	return a
}

func (a *Accumulator) write(b []byte) {
	// sha256 writes never fail
	_, _ = a.h.Write(b)
	a.n += len(b)
}

// Tag writes a single frozen tag or enum byte.
func (a *Accumulator) Tag(b byte) {
	a.write([]byte{b})
}

// Uint16 writes v big-endian.
func (a *Accumulator) Uint16(v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	a.write(b[:])
}

// Uint32 writes v big-endian.
func (a *Accumulator) Uint32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	a.write(b[:])
}

// Int writes v as a big-endian int64.
func (a *Accumulator) Int(v int) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(int64(v)))
	a.write(b[:])
}

// Str writes a length-prefixed string.
func (a *Accumulator) Str(s string) {
	a.Uint32(uint32(len(s)))
	a.write([]byte(s))
}

// Bool writes a single 0/1 byte.
func (a *Accumulator) Bool(v bool) {
	if v {
		a.Tag(1)
	} else {
		a.Tag(0)
	}
}

// Len returns the number of bytes folded so far.
func (a *Accumulator) Len() int {
	return a.n
}

// Sum returns the fingerprint of everything written so far. Writing may
// continue afterwards.
func (a *Accumulator) Sum() Sum {
	var s Sum
	copy(s[:], a.h.Sum(nil))
	return s
}

// ParseSum decodes a hex string produced by Sum.String.
func ParseSum(s string) (Sum, error) {
	var out Sum
	b, err := hex.DecodeString(s)
	if err != nil {
		return out, err
	}
	if len(b) != len(out) {
		return out, fmt.Errorf("hash: want %d bytes, got %d", len(out), len(b))
	}
	copy(out[:], b)
	return out, nil
}
