// Package signature provides Ed25519 signing with mandatory domain
// separation. Every message is bound to an 8 byte context registered at
// init time, so a signature made for one purpose can never be replayed as
// another.
package signature

import (
	"crypto/subtle"
	"encoding"
	"encoding/base64"
	"errors"

	"github.com/oasisprotocol/curve25519-voi/primitives/ed25519"
)

const (
	// PublicKeySize is the size of a public key in bytes.
	PublicKeySize = ed25519.PublicKeySize

	// SignatureSize is the size of a signature in bytes.
	SignatureSize = ed25519.SignatureSize
)

var (
	// ErrMalformedPublicKey is the error returned when a public key is
	// malformed.
	ErrMalformedPublicKey = errors.New("signature: malformed public key")

	// ErrMalformedSignature is the error returned when a signature is
	// malformed.
	ErrMalformedSignature = errors.New("signature: malformed signature")

	_ encoding.BinaryMarshaler   = PublicKey{}
	_ encoding.BinaryUnmarshaler = (*PublicKey)(nil)
	_ encoding.TextMarshaler     = PublicKey{}
	_ encoding.TextUnmarshaler   = (*PublicKey)(nil)
	_ encoding.BinaryMarshaler   = RawSignature{}
	_ encoding.BinaryUnmarshaler = (*RawSignature)(nil)

	// ZIP-215 keeps batch and single verification in agreement, which
	// matters as every light client must reach the same verdict.
	verifyOptions = &ed25519.Options{
		Verify: ed25519.VerifyOptionsZIP_215,
	}
)

func copyExact(dst, src []byte, errMalformed error) error {
	if len(src) != len(dst) {
		return errMalformed
	}
	copy(dst, src)
	return nil
}

// PublicKey is an Ed25519 public key. Its text form is standard base64.
type PublicKey [PublicKeySize]byte

// Verify returns true iff sig is a valid signature by k over the message
// in the given context.
func (k PublicKey) Verify(context Context, message, sig []byte) bool {
	if len(sig) != SignatureSize {
		return false
	}
	digest, err := PrepareSignerMessage(context, message)
	if err != nil {
		return false
	}
	return ed25519.VerifyWithOptions(k[:], digest, sig, verifyOptions)
}

// Equal compares vs another public key for equality.
func (k PublicKey) Equal(cmp PublicKey) bool {
	return subtle.ConstantTimeCompare(k[:], cmp[:]) == 1
}

// MarshalBinary encodes a public key into binary form.
func (k PublicKey) MarshalBinary() ([]byte, error) {
	return append([]byte{}, k[:]...), nil
}

// UnmarshalBinary decodes a binary marshaled public key.
func (k *PublicKey) UnmarshalBinary(data []byte) error {
	return copyExact(k[:], data, ErrMalformedPublicKey)
}

// MarshalText encodes a public key into base64.
func (k PublicKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a base64 public key.
func (k *PublicKey) UnmarshalText(text []byte) error {
	b, err := base64.StdEncoding.DecodeString(string(text))
	if err != nil {
		return ErrMalformedPublicKey
	}
	return k.UnmarshalBinary(b)
}

func (k PublicKey) String() string {
	return base64.StdEncoding.EncodeToString(k[:])
}

// RawSignature is a raw Ed25519 signature.
type RawSignature [SignatureSize]byte

// MarshalBinary encodes a signature into binary form.
func (r RawSignature) MarshalBinary() ([]byte, error) {
	return append([]byte{}, r[:]...), nil
}

// UnmarshalBinary decodes a binary marshaled signature.
func (r *RawSignature) UnmarshalBinary(data []byte) error {
	return copyExact(r[:], data, ErrMalformedSignature)
}

// Signature is a signature together with the key that made it.
type Signature struct {
	PublicKey PublicKey    `json:"public_key"`
	Signature RawSignature `json:"signature"`
}

// Verify returns true iff the signature is valid over the message in the
// given context.
func (s *Signature) Verify(context Context, message []byte) bool {
	return s.PublicKey.Verify(context, message, s.Signature[:])
}

// Sign signs the message in the given context and bundles the result with
// the signer's public key.
func Sign(signer Signer, context Context, message []byte) (*Signature, error) {
	raw, err := signer.ContextSign(context, message)
	if err != nil {
		return nil, err
	}

	s := Signature{PublicKey: signer.Public()}
	if err = s.Signature.UnmarshalBinary(raw); err != nil {
		return nil, err
	}
	return &s, nil
}
