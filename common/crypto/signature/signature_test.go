package signature_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/encointer/personhood-oracle/common/cbor"
	"github.com/encointer/personhood-oracle/common/crypto/signature"
	"github.com/encointer/personhood-oracle/common/crypto/signature/signers/memory"
)

var (
	testContext      = signature.NewContext("test/sig")
	testOtherContext = signature.NewContext("test/oth")
)

func TestContext(t *testing.T) {
	require := require.New(t)

	require.Panics(func() { signature.NewContext("test/sig") }, "duplicate context")
	require.Panics(func() { signature.NewContext("too long context") }, "malformed context")

	_, err := signature.PrepareSignerMessage(signature.Context("test/unr"), []byte("message"))
	require.Error(err, "unregistered context")

	msg1, err := signature.PrepareSignerMessage(testContext, []byte("message"))
	require.NoError(err)
	msg2, err := signature.PrepareSignerMessage(testOtherContext, []byte("message"))
	require.NoError(err)
	require.NotEqual(msg1, msg2, "messages for different contexts should be different")
}

func TestSignVerify(t *testing.T) {
	require := require.New(t)

	signer := memory.NewTestSigner("test: signature")
	message := []byte("header")

	sig, err := signature.Sign(signer, testContext, message)
	require.NoError(err, "Sign")
	require.True(sig.Verify(testContext, message), "signature should verify")
	require.False(sig.Verify(testOtherContext, message), "signature must be bound to the context")
	require.False(sig.Verify(testContext, []byte("other")), "signature must be bound to the message")

	other := memory.NewTestSigner("test: other")
	forged := *sig
	forged.PublicKey = other.Public()
	require.False(forged.Verify(testContext, message), "signature must be bound to the key")

	var decoded signature.Signature
	require.NoError(cbor.Unmarshal(cbor.Marshal(sig), &decoded))
	require.Equal(*sig, decoded)
	require.True(decoded.Verify(testContext, message))

	var pk signature.PublicKey
	text, err := signer.Public().MarshalText()
	require.NoError(err)
	require.NoError(pk.UnmarshalText(text))
	require.True(pk.Equal(signer.Public()))
	require.Error(pk.UnmarshalBinary([]byte{1}))
}

func TestSignerReset(t *testing.T) {
	require := require.New(t)

	seed := make([]byte, memory.SeedSize)
	seed[0] = 1
	signer, err := memory.NewFromSeed(seed)
	require.NoError(err)
	pk := signer.Public()

	signer2, err := memory.NewFromSeed(seed)
	require.NoError(err)
	require.Equal(pk, signer2.Public(), "seeded signers are deterministic")

	_, err = memory.NewFromSeed(seed[:4])
	require.Error(err, "bad seed length")

	require.Equal("[redacted private key]", signer.String())
}
