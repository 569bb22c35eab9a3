package cbor

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOutOfMem(t *testing.T) {
	require := require.New(t)

	var f []byte
	err := Unmarshal([]byte("\x9b\x00\x00000000"), &f)
	require.Error(err, "Invalid CBOR input should fail")

	err = Unmarshal([]byte("\x9b\x00\x00\x81112233"), &f)
	require.Error(err, "Invalid CBOR input should fail")
}

func TestEncoderDecoder(t *testing.T) {
	require := require.New(t)

	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	err := enc.Encode(42)
	require.NoError(err, "Encode")

	var x int
	dec := NewDecoder(&buf)
	err = dec.Decode(&x)
	require.NoError(err, "Decode")
	require.EqualValues(42, x, "decoded value should be correct")
}

func TestCanonicalMapOrder(t *testing.T) {
	require := require.New(t)

	a := Marshal(map[string]int{"b": 1, "a": 2, "aa": 3})
	b := Marshal(map[string]int{"aa": 3, "a": 2, "b": 1})
	require.Equal(a, b, "map encoding must not depend on insertion order")

	var m map[string]int
	require.NoError(UnmarshalCanonical(a, &m))
	require.Len(m, 3)
}

func TestUnmarshalCanonical(t *testing.T) {
	require := require.New(t)

	// 42 encoded with a needlessly wide 2-byte argument.
	var x uint64
	err := UnmarshalCanonical([]byte{0x19, 0x00, 0x2a}, &x)
	require.Error(err, "non-canonical integer encoding should be rejected")

	err = UnmarshalCanonical([]byte{0x18, 0x2a}, &x)
	require.NoError(err, "canonical integer encoding")
	require.EqualValues(42, x)
}

func TestDuplicateMapKeys(t *testing.T) {
	require := require.New(t)

	// {"a": 1, "a": 2}
	var m map[string]int
	err := Unmarshal([]byte{0xa2, 0x61, 0x61, 0x01, 0x61, 0x61, 0x02}, &m)
	require.Error(err, "duplicate map keys should be rejected")
}
