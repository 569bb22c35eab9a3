// Package api implements the chain-side data model of ceremony based
// reputation as consumed by the oracle.
package api

import (
	"bytes"
	"encoding"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
)

const (
	// GeohashSize is the size of the community geohash in bytes.
	GeohashSize = 5
	// DigestSize is the size of the community digest in bytes.
	DigestSize = 4
	// CommunityIdentifierSize is the size of an encoded community identifier.
	CommunityIdentifierSize = GeohashSize + DigestSize

	// AccountIDSize is the size of an account identifier in bytes.
	AccountIDSize = 32

	geohashAlphabet = "0123456789bcdefghjkmnpqrstuvwxyz"
)

var (
	// ErrMalformedCommunityIdentifier is the error returned when a community
	// identifier is malformed.
	ErrMalformedCommunityIdentifier = errors.New("encointer: malformed community identifier")

	// ErrMalformedAccountID is the error returned when an account identifier
	// is malformed.
	ErrMalformedAccountID = errors.New("encointer: malformed account identifier")

	_ encoding.BinaryMarshaler   = CommunityIdentifier{}
	_ encoding.BinaryUnmarshaler = (*CommunityIdentifier)(nil)
	_ encoding.TextMarshaler     = CommunityIdentifier{}
	_ encoding.TextUnmarshaler   = (*CommunityIdentifier)(nil)
	_ encoding.BinaryMarshaler   = AccountID{}
	_ encoding.BinaryUnmarshaler = (*AccountID)(nil)
)

// CommunityIdentifier identifies a reputation issuing community.
type CommunityIdentifier struct {
	Geohash [GeohashSize]byte
	Digest  [DigestSize]byte
}

// MarshalBinary encodes a community identifier into binary form.
func (c CommunityIdentifier) MarshalBinary() ([]byte, error) {
	data := make([]byte, 0, CommunityIdentifierSize)
	data = append(data, c.Geohash[:]...)
	data = append(data, c.Digest[:]...)
	return data, nil
}

// UnmarshalBinary decodes a binary marshaled community identifier.
func (c *CommunityIdentifier) UnmarshalBinary(data []byte) error {
	if len(data) != CommunityIdentifierSize {
		return ErrMalformedCommunityIdentifier
	}
	if !isGeohash(data[:GeohashSize]) {
		return fmt.Errorf("%w: invalid geohash", ErrMalformedCommunityIdentifier)
	}

	copy(c.Geohash[:], data[:GeohashSize])
	copy(c.Digest[:], data[GeohashSize:])
	return nil
}

// MarshalText encodes a community identifier as its geohash followed by the
// base58 encoded digest.
func (c CommunityIdentifier) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText decodes a text marshaled community identifier.
func (c *CommunityIdentifier) UnmarshalText(text []byte) error {
	if len(text) <= GeohashSize {
		return ErrMalformedCommunityIdentifier
	}

	digest, err := base58.Decode(string(text[GeohashSize:]))
	if err != nil || len(digest) != DigestSize {
		return fmt.Errorf("%w: invalid digest", ErrMalformedCommunityIdentifier)
	}

	raw := append(append([]byte{}, text[:GeohashSize]...), digest...)
	return c.UnmarshalBinary(raw)
}

// String returns the string representation of a community identifier.
func (c CommunityIdentifier) String() string {
	return string(c.Geohash[:]) + base58.Encode(c.Digest[:])
}

func isGeohash(data []byte) bool {
	for _, ch := range data {
		if strings.IndexByte(geohashAlphabet, ch) < 0 {
			return false
		}
	}
	return true
}

// CeremonyIndex identifies a completed reputation granting ceremony cycle.
type CeremonyIndex uint32

// AccountID is an on-chain account identifier.
type AccountID [AccountIDSize]byte

// MarshalBinary encodes an account identifier into binary form.
func (a AccountID) MarshalBinary() ([]byte, error) {
	return append([]byte{}, a[:]...), nil
}

// UnmarshalBinary decodes a binary marshaled account identifier.
func (a *AccountID) UnmarshalBinary(data []byte) error {
	if len(data) != AccountIDSize {
		return fmt.Errorf("%w: size %d (expected: %d)", ErrMalformedAccountID, len(data), AccountIDSize)
	}
	copy(a[:], data)
	return nil
}

// UnmarshalText decodes an account identifier given either as (optionally
// 0x prefixed) hex or as an SS58 address.
func (a *AccountID) UnmarshalText(text []byte) error {
	s := string(text)
	if raw, err := hex.DecodeString(strings.TrimPrefix(s, "0x")); err == nil && len(raw) == AccountIDSize {
		return a.UnmarshalBinary(raw)
	}
	return a.UnmarshalSS58(s)
}

// Equal compares vs another account identifier for equality.
func (a AccountID) Equal(cmp AccountID) bool {
	return bytes.Equal(a[:], cmp[:])
}

// String returns the hexadecimal representation of the account identifier.
func (a AccountID) String() string {
	return "0x" + hex.EncodeToString(a[:])
}
