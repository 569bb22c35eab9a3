package signature

import (
	"crypto/sha512"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

// ContextSize is the size of a signature context in bytes.
const ContextSize = 8

var (
	// ErrNotExist is the error returned when a private key does not exist.
	ErrNotExist = os.ErrNotExist

	// ErrMalformedPrivateKey is the error returned when a private key is
	// malformed.
	ErrMalformedPrivateKey = errors.New("signature: malformed private key")

	// ErrRoleMismatch is the error returned when a signer factory is asked
	// for a role it was not configured with.
	ErrRoleMismatch = errors.New("signature: signer factory role mismatch")

	errMalformedContext    = errors.New("signature: malformed context")
	errUnregisteredContext = errors.New("signature: unregistered context")

	contextsLock sync.RWMutex
	contexts     = make(map[Context]struct{})
)

// Context is a domain separation context.
type Context string

// NewContext registers a new context. It panics when the context does not
// have exactly ContextSize bytes or is already registered.
func NewContext(raw string) Context {
	ctx := Context(raw)
	if len(ctx) != ContextSize {
		panic(fmt.Errorf("%w: '%s'", errMalformedContext, raw))
	}

	contextsLock.Lock()
	defer contextsLock.Unlock()

	if _, ok := contexts[ctx]; ok {
		panic(fmt.Errorf("signature: context already registered: '%s'", raw))
	}
	contexts[ctx] = struct{}{}
	return ctx
}

func (ctx Context) registered() bool {
	contextsLock.RLock()
	defer contextsLock.RUnlock()

	_, ok := contexts[ctx]
	return ok
}

// PrepareSignerMessage returns the digest actually signed for a message in
// a context, SHA-512/256(context || message).
func PrepareSignerMessage(context Context, message []byte) ([]byte, error) {
	switch {
	case len(context) != ContextSize:
		return nil, errMalformedContext
	case !context.registered():
		return nil, errUnregisteredContext
	}

	h := sha512.New512_256()
	_, _ = h.Write([]byte(context))
	_, _ = h.Write(message)
	return h.Sum(nil), nil
}

// SignerRole is the purpose a key is held for.
type SignerRole int

const (
	SignerUnknown SignerRole = iota
	// SignerEnclave is the enclave identity key, the root of all credential
	// issuer keys.
	SignerEnclave
	// SignerAuthority is a chain authority key, used to justify headers.
	SignerAuthority
)

var signerRoleNames = [...]string{
	SignerUnknown:   "unknown",
	SignerEnclave:   "enclave",
	SignerAuthority: "authority",
}

func (role SignerRole) String() string {
	if role < 0 || int(role) >= len(signerRoleNames) {
		return signerRoleNames[SignerUnknown]
	}
	return signerRoleNames[role]
}

// SignerFactory creates Signers for a fixed set of roles.
type SignerFactory interface {
	// EnsureRole returns ErrRoleMismatch unless the factory serves role.
	EnsureRole(role SignerRole) error

	// Generate creates and persists a new key for role.
	Generate(role SignerRole, rng io.Reader) (Signer, error)

	// Load loads the existing key for role, returning ErrNotExist when
	// there is none.
	Load(role SignerRole) (Signer, error)
}

// Signer holds a private key, in the spirit of crypto.Signer.
type Signer interface {
	// Public returns the signer's public key.
	Public() PublicKey

	// ContextSign signs the message in the given context.
	ContextSign(context Context, message []byte) ([]byte, error)

	// String must not reveal the private key.
	String() string

	// Reset wipes the private key.
	Reset()
}
