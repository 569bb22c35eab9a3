package file

import (
	"crypto/rand"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/encointer/personhood-oracle/common/crypto/signature"
	"github.com/encointer/personhood-oracle/common/crypto/signature/signers/memory"
)

func TestFileSigner(t *testing.T) {
	require := require.New(t)

	dataDir := t.TempDir()
	factory := NewFactory(dataDir, signature.SignerEnclave)

	_, err := factory.Load(signature.SignerEnclave)
	require.ErrorIs(err, signature.ErrNotExist, "Load, missing")

	_, err = factory.Load(signature.SignerAuthority)
	require.ErrorIs(err, signature.ErrRoleMismatch, "Load, wrong role")

	signer, err := factory.Generate(signature.SignerEnclave, rand.Reader)
	require.NoError(err, "Generate")
	require.NotEqual(signature.PublicKey{}, signer.Public())

	_, err = factory.Generate(signature.SignerEnclave, rand.Reader)
	require.ErrorIs(err, errKeyExists, "Generate must not overwrite an existing key")

	loaded, err := factory.LoadOrGenerate(signature.SignerEnclave, rand.Reader)
	require.NoError(err, "LoadOrGenerate, exists")
	require.Equal(signer.Public(), loaded.Public(), "Generated = Loaded")

	fi, err := os.Stat(filepath.Join(dataDir, FileEnclaveKey))
	require.NoError(err)
	require.EqualValues(filePerm, fi.Mode().Perm())
}

func TestFileSignerPermissions(t *testing.T) {
	require := require.New(t)

	dataDir := t.TempDir()
	factory := NewFactory(dataDir, signature.SignerAuthority)
	_, err := factory.Generate(signature.SignerAuthority, rand.Reader)
	require.NoError(err, "Generate")

	require.NoError(os.Chmod(filepath.Join(dataDir, FileAuthorityKey), 0o644))
	_, err = factory.Load(signature.SignerAuthority)
	require.Error(err, "Load should reject world readable keys")
}

func TestDecodePEM(t *testing.T) {
	require := require.New(t)

	signer, err := memory.Generate(rand.Reader)
	require.NoError(err)

	decoded, err := decodePEM(pem.EncodeToMemory(encodePEM(signer)))
	require.NoError(err, "round trip")
	require.Equal(signer.Public(), decoded.Public())

	_, err = decodePEM([]byte("not a pem file"))
	require.ErrorIs(err, errMalformedPEM)

	_, err = decodePEM(pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: signer.UnsafeBytes()}))
	require.ErrorIs(err, errMalformedPEM, "wrong block type")

	corrupt := append([]byte{}, signer.UnsafeBytes()...)
	corrupt[len(corrupt)-1] ^= 0xff
	_, err = decodePEM(pem.EncodeToMemory(&pem.Block{Type: privateKeyPemType, Bytes: corrupt}))
	require.ErrorIs(err, signature.ErrMalformedPrivateKey, "public half must match the seed")
}
