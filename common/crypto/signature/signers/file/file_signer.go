// Package file provides a signer factory persisting keys as PEM files in the
// node's data directory.
package file

import (
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/encointer/personhood-oracle/common/crypto/signature"
	"github.com/encointer/personhood-oracle/common/crypto/signature/signers/memory"
)

const (
	privateKeyPemType = "ED25519 PRIVATE KEY"

	filePerm = 0o600
)

var (
	errMalformedPEM = errors.New("signature/signer/file: malformed PEM")
	errKeyExists    = errors.New("signature/signer/file: key already exists")

	_ signature.SignerFactory = (*Factory)(nil)

	// FileEnclaveKey is the enclave identity key filename.
	FileEnclaveKey = "enclave_identity.pem"
	// FileAuthorityKey is the chain authority key filename.
	FileAuthorityKey = "authority.pem"

	roleFiles = map[signature.SignerRole]string{
		signature.SignerEnclave:   FileEnclaveKey,
		signature.SignerAuthority: FileAuthorityKey,
	}
)

// Factory is a PEM file backed SignerFactory.
type Factory struct {
	dataDir string
	roles   map[signature.SignerRole]struct{}
}

// NewFactory creates a factory serving the given roles from dataDir.
func NewFactory(dataDir string, roles ...signature.SignerRole) *Factory {
	fac := &Factory{
		dataDir: dataDir,
		roles:   make(map[signature.SignerRole]struct{}, len(roles)),
	}
	for _, role := range roles {
		fac.roles[role] = struct{}{}
	}
	return fac
}

// EnsureRole returns ErrRoleMismatch unless the factory serves role.
func (fac *Factory) EnsureRole(role signature.SignerRole) error {
	if _, ok := fac.roles[role]; !ok {
		return signature.ErrRoleMismatch
	}
	return nil
}

func (fac *Factory) path(role signature.SignerRole) (string, error) {
	if err := fac.EnsureRole(role); err != nil {
		return "", err
	}
	fn, ok := roleFiles[role]
	if !ok {
		return "", fmt.Errorf("signature/signer/file: no key file for role %s", role)
	}
	return filepath.Join(fac.dataDir, fn), nil
}

// Generate creates a key for role and writes it out. An existing key is
// never overwritten.
func (fac *Factory) Generate(role signature.SignerRole, rng io.Reader) (signature.Signer, error) {
	fn, err := fac.path(role)
	if err != nil {
		return nil, err
	}

	signer, err := memory.Generate(rng)
	if err != nil {
		return nil, err
	}

	f, err := os.OpenFile(fn, os.O_WRONLY|os.O_CREATE|os.O_EXCL, filePerm)
	switch {
	case errors.Is(err, os.ErrExist):
		return nil, errKeyExists
	case err != nil:
		return nil, err
	}
	defer f.Close()

	if err = pem.Encode(f, encodePEM(signer)); err != nil {
		return nil, err
	}
	return signer, f.Sync()
}

// Load loads the key for role.
func (fac *Factory) Load(role signature.SignerRole) (signature.Signer, error) {
	fn, err := fac.path(role)
	if err != nil {
		return nil, err
	}
	return LoadFile(fn)
}

// LoadOrGenerate loads the key for role, generating it on first use.
func (fac *Factory) LoadOrGenerate(role signature.SignerRole, rng io.Reader) (signature.Signer, error) {
	signer, err := fac.Load(role)
	if errors.Is(err, signature.ErrNotExist) {
		return fac.Generate(role, rng)
	}
	return signer, err
}

// LoadFile loads a PEM encoded private key from an arbitrary path. The file
// must not be readable by anyone but its owner.
func LoadFile(fn string) (signature.Signer, error) {
	fi, err := os.Stat(fn)
	switch {
	case os.IsNotExist(err):
		return nil, signature.ErrNotExist
	case err != nil:
		return nil, err
	case fi.Mode().Perm() != filePerm:
		return nil, fmt.Errorf("signature/signer/file: invalid PEM file permissions %o on %s", fi.Mode().Perm(), fn)
	}

	data, err := os.ReadFile(fn)
	if err != nil {
		return nil, err
	}
	return decodePEM(data)
}

func encodePEM(signer *memory.Signer) *pem.Block {
	return &pem.Block{
		Type:  privateKeyPemType,
		Bytes: signer.UnsafeBytes(),
	}
}

func decodePEM(data []byte) (*memory.Signer, error) {
	blk, rest := pem.Decode(data)
	if blk == nil || len(rest) != 0 || blk.Type != privateKeyPemType {
		return nil, errMalformedPEM
	}
	return memory.NewFromPrivateKey(blk.Bytes)
}
