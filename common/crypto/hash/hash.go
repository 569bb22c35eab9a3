// Package hash implements the SHA-512/256 hash used for header and state
// commitments.
package hash

import (
	"crypto/sha512"
	"crypto/subtle"
	"encoding"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/encointer/personhood-oracle/common/cbor"
)

// Size is the size of the cryptographic hash in bytes.
const Size = 32

// ErrMalformed is the error returned when a hash is malformed.
var ErrMalformed = errors.New("hash: malformed hash")

var (
	_ encoding.BinaryMarshaler   = Hash{}
	_ encoding.BinaryUnmarshaler = (*Hash)(nil)
	_ encoding.TextMarshaler     = Hash{}
	_ encoding.TextUnmarshaler   = (*Hash)(nil)
)

// Hash is a SHA-512/256 digest.
type Hash [Size]byte

// NewFrom hashes the canonical CBOR encoding of v.
func NewFrom(v interface{}) Hash {
	return NewFromBytes(cbor.Marshal(v))
}

// NewFromBytes hashes the concatenation of the given byte strings.
func NewFromBytes(data ...[]byte) Hash {
	hasher := sha512.New512_256()
	for _, d := range data {
		_, _ = hasher.Write(d)
	}

	var h Hash
	copy(h[:], hasher.Sum(nil))
	return h
}

// From sets the hash to that of the canonical CBOR encoding of v.
func (h *Hash) From(v interface{}) {
	*h = NewFrom(v)
}

// FromBytes sets the hash to that of the concatenated byte strings.
func (h *Hash) FromBytes(data ...[]byte) {
	*h = NewFromBytes(data...)
}

// IsZero returns true iff the hash is all zeroes, as the parent hash of the
// first block is.
func (h *Hash) IsZero() bool {
	var zero Hash
	return h.Equal(&zero)
}

// Equal compares vs another hash for equality in constant time.
func (h *Hash) Equal(cmp *Hash) bool {
	if cmp == nil {
		return false
	}
	return subtle.ConstantTimeCompare(h[:], cmp[:]) == 1
}

// MarshalBinary encodes a hash into binary form.
func (h Hash) MarshalBinary() ([]byte, error) {
	return append([]byte{}, h[:]...), nil
}

// UnmarshalBinary decodes a binary marshaled hash.
func (h *Hash) UnmarshalBinary(data []byte) error {
	if len(data) != Size {
		return ErrMalformed
	}
	copy(h[:], data)
	return nil
}

// MarshalText encodes a hash into hexadecimal text form.
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText decodes a hexadecimal text marshaled hash.
func (h *Hash) UnmarshalText(text []byte) error {
	return h.UnmarshalHex(string(text))
}

// UnmarshalHex decodes an optionally 0x prefixed hexadecimal hash.
func (h *Hash) UnmarshalHex(text string) error {
	b, err := hex.DecodeString(strings.TrimPrefix(text, "0x"))
	if err != nil {
		return ErrMalformed
	}
	return h.UnmarshalBinary(b)
}

// String returns the hexadecimal representation of the hash.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}
