package hash

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/encointer/personhood-oracle/common/cbor"
)

func TestHash(t *testing.T) {
	require := require.New(t)

	var zero Hash
	require.True(zero.IsZero())
	empty := NewFromBytes()
	require.False(empty.IsZero())
	require.Equal("c672b8d1ef56ed28ab87c3622c5114069bdd3ad7b8f9737498d0c01ecef0967a", empty.String())

	h1 := NewFromBytes([]byte("personhood"))
	h2 := NewFromBytes([]byte("person"), []byte("hood"))
	require.True(h1.Equal(&h2), "multi-part hashing should match single part")
	require.False(h1.Equal(nil))

	text, err := h1.MarshalText()
	require.NoError(err)
	var decoded Hash
	require.NoError(decoded.UnmarshalText(text))
	require.Equal(h1, decoded)
	require.Equal(h1.String(), string(text))

	require.Error(decoded.UnmarshalBinary([]byte{1, 2, 3}), "short hash")
	require.ErrorIs(decoded.UnmarshalHex("zz"), ErrMalformed, "invalid hex")
	require.NoError(decoded.UnmarshalHex("0x"+h2.String()), "0x prefix")
	require.Equal(h2, decoded)

	var set Hash
	set.FromBytes([]byte("personhood"))
	require.Equal(h1, set)

	var viaCbor Hash
	require.NoError(cbor.Unmarshal(cbor.Marshal(h1), &viaCbor))
	require.Equal(h1, viaCbor, "hash should serialize as a byte string")
	require.Equal(NewFrom(h1), NewFromBytes(cbor.Marshal(h1)))
}
