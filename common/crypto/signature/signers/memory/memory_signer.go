// Package memory provides an in-memory Ed25519 Signer. The file signer
// builds on it, and tests use NewTestSigner for deterministic keys.
package memory

import (
	"crypto/sha512"
	"crypto/subtle"
	"fmt"
	"io"

	"github.com/oasisprotocol/curve25519-voi/primitives/ed25519"

	"github.com/encointer/personhood-oracle/common/crypto/signature"
)

// SeedSize is the size of an RFC 8032 seed in bytes.
const SeedSize = ed25519.SeedSize

var _ signature.Signer = (*Signer)(nil)

// Signer is a memory backed Signer.
type Signer struct {
	privateKey ed25519.PrivateKey
	publicKey  signature.PublicKey
}

func newSigner(privateKey ed25519.PrivateKey) *Signer {
	s := &Signer{privateKey: privateKey}
	copy(s.publicKey[:], privateKey[SeedSize:])
	return s
}

// Public returns the signer's public key.
func (s *Signer) Public() signature.PublicKey {
	return s.publicKey
}

// ContextSign signs the message in the given context.
func (s *Signer) ContextSign(context signature.Context, message []byte) ([]byte, error) {
	digest, err := signature.PrepareSignerMessage(context, message)
	if err != nil {
		return nil, err
	}
	return ed25519.Sign(s.privateKey, digest), nil
}

func (s *Signer) String() string {
	return "[redacted private key]"
}

// Reset wipes the private key.
func (s *Signer) Reset() {
	for i := range s.privateKey {
		s.privateKey[i] = 0
	}
}

// UnsafeBytes returns the raw RFC 8032 private key, for persisting it.
func (s *Signer) UnsafeBytes() []byte {
	return s.privateKey
}

// Generate creates a new signer using entropy from rng.
func Generate(rng io.Reader) (*Signer, error) {
	_, privateKey, err := ed25519.GenerateKey(rng)
	if err != nil {
		return nil, err
	}
	return newSigner(privateKey), nil
}

// NewFromPrivateKey creates a signer from a raw RFC 8032 private key,
// rejecting keys whose embedded public half does not match the seed.
func NewFromPrivateKey(raw []byte) (*Signer, error) {
	if len(raw) != ed25519.PrivateKeySize {
		return nil, signature.ErrMalformedPrivateKey
	}
	privateKey := ed25519.NewKeyFromSeed(raw[:SeedSize])
	if subtle.ConstantTimeCompare(privateKey, raw) != 1 {
		return nil, signature.ErrMalformedPrivateKey
	}
	return newSigner(privateKey), nil
}

// NewFromSeed creates a new signer from an RFC 8032 seed.
func NewFromSeed(seed []byte) (signature.Signer, error) {
	if len(seed) != SeedSize {
		return nil, fmt.Errorf("signature/signer/memory: bad seed length: %d", len(seed))
	}
	return newSigner(ed25519.NewKeyFromSeed(seed)), nil
}

// NewTestSigner derives a signer from a name. Never use it outside tests.
func NewTestSigner(name string) signature.Signer {
	seed := sha512.Sum512_256([]byte(name))
	return newSigner(ed25519.NewKeyFromSeed(seed[:]))
}
