package credential

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"sort"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/nbd-wtf/go-nostr"
	"golang.org/x/crypto/hkdf"

	"github.com/encointer/personhood-oracle/common/crypto/signature"
)

const (
	// SubjectKeyHRP is the human readable part of bech32 encoded public keys.
	SubjectKeyHRP = "npub"
	// SecretKeyHRP is the human readable part of bech32 encoded secret keys.
	SecretKeyHRP = "nsec"

	keySize = 32

	issuerKeyInfo = "personhood-oracle/issuer-key/v1"
)

// IssuerKeyDerivationContext is the signature context used to derive the
// issuer key from the enclave identity.
var IssuerKeyDerivationContext = signature.NewContext("po/isk01")

// SubjectKey is the x-only secp256k1 public key receiving a credential.
type SubjectKey [keySize]byte

// Hex returns the hex encoding of the key.
func (k SubjectKey) Hex() string {
	return hex.EncodeToString(k[:])
}

// String returns the bech32 encoding of the key.
func (k SubjectKey) String() string {
	s, err := encodeKey(SubjectKeyHRP, k[:])
	if err != nil {
		return k.Hex()
	}
	return s
}

// MarshalText encodes the key into its bech32 form.
func (k SubjectKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a bech32 or hex encoded key.
func (k *SubjectKey) UnmarshalText(text []byte) error {
	raw, err := decodeKey(SubjectKeyHRP, string(text))
	if err != nil {
		return fmt.Errorf("credential: malformed subject key: %w", err)
	}
	if _, err = schnorr.ParsePubKey(raw); err != nil {
		return fmt.Errorf("credential: invalid subject key: %w", err)
	}

	copy(k[:], raw)
	return nil
}

// SigningKey is a secp256k1 issuer key.
type SigningKey struct {
	secret string
	public string
}

// Public returns the hex encoded x-only public key.
func (k *SigningKey) Public() string {
	return k.public
}

// String returns the bech32 encoded public key.
func (k *SigningKey) String() string {
	var pk SubjectKey
	if err := pk.UnmarshalText([]byte(k.public)); err != nil {
		return k.public
	}
	return pk.String()
}

func (k *SigningKey) sign(ev *nostr.Event) error {
	ev.PubKey = k.public
	return ev.Sign(k.secret)
}

// NewSigningKey creates a signing key from a bech32 or hex encoded secret.
func NewSigningKey(secret string) (*SigningKey, error) {
	raw, err := decodeKey(SecretKeyHRP, secret)
	if err != nil {
		return nil, fmt.Errorf("credential: malformed secret key: %w", err)
	}
	return newSigningKey(raw)
}

func newSigningKey(raw []byte) (*SigningKey, error) {
	var scalar btcec.ModNScalar
	if overflow := scalar.SetByteSlice(raw); overflow || scalar.IsZero() {
		return nil, fmt.Errorf("credential: secret key out of range")
	}

	secret := hex.EncodeToString(raw)
	public, err := nostr.GetPublicKey(secret)
	if err != nil {
		return nil, fmt.Errorf("credential: failed to derive public key: %w", err)
	}
	return &SigningKey{
		secret: secret,
		public: public,
	}, nil
}

// DeriveSigningKey deterministically derives an issuer key from the given
// identity signer.
func DeriveSigningKey(signer signature.Signer, label string) (*SigningKey, error) {
	ikm, err := signer.ContextSign(IssuerKeyDerivationContext, []byte(label))
	if err != nil {
		return nil, fmt.Errorf("credential: failed to derive issuer key: %w", err)
	}

	kdf := hkdf.New(sha256.New, ikm, nil, []byte(issuerKeyInfo))
	raw := make([]byte, keySize)
	for {
		if _, err = io.ReadFull(kdf, raw); err != nil {
			return nil, fmt.Errorf("credential: failed to derive issuer key: %w", err)
		}
		if key, err := newSigningKey(raw); err == nil {
			return key, nil
		}
	}
}

// Keyring is a read-only set of named issuer keys.
type Keyring struct {
	defaultKey *SigningKey
	keys       map[string]*SigningKey
}

// Get returns the key with the given name, an empty name selects the default
// key.
func (k *Keyring) Get(name string) (*SigningKey, bool) {
	if name == "" {
		return k.defaultKey, true
	}
	key, ok := k.keys[name]
	return key, ok
}

// Names returns the names of the non-default keys.
func (k *Keyring) Names() []string {
	var names []string
	for name := range k.keys {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewKeyring creates a new keyring.
func NewKeyring(defaultKey *SigningKey, keys map[string]*SigningKey) (*Keyring, error) {
	if defaultKey == nil {
		return nil, fmt.Errorf("credential: missing default issuer key")
	}

	kr := &Keyring{
		defaultKey: defaultKey,
		keys:       make(map[string]*SigningKey, len(keys)),
	}
	for name, key := range keys {
		if name == "" {
			return nil, fmt.Errorf("credential: empty issuer key name")
		}
		kr.keys[name] = key
	}
	return kr, nil
}
