package badger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeys(t *testing.T) {
	require := require.New(t)

	require.Equal([]byte{0x01, 0, 0, 0, 0, 0, 0, 0x01, 0x02}, lightBlockKey(0x0102))
	require.Equal([]byte{0x03}, metadataKey())

	k := stateKey(7, []byte("alpha"))
	require.True(bytes.HasPrefix(k, statePrefix(7)))
	require.False(bytes.HasPrefix(k, statePrefix(8)))
	require.Equal(-1, bytes.Compare(stateKey(7, []byte("zzz")), stateKey(8, nil)), "keys sort by height first")

	decoded, ok := decodeStateKey(k)
	require.True(ok)
	require.Equal([]byte("alpha"), decoded)

	_, ok = decodeStateKey(lightBlockKey(7))
	require.False(ok, "light block keys are not state keys")
	_, ok = decodeStateKey([]byte{prefixState, 0})
	require.False(ok, "truncated keys are rejected")
}
