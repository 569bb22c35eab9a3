package badger

import "encoding/binary"

// Key prefixes. Heights are big endian so that iteration follows height
// order.
const (
	// prefixLightBlock + height -> CBOR consensus.LightBlock.
	prefixLightBlock byte = 0x01
	// prefixState + height + state key -> raw state value.
	prefixState byte = 0x02
	// prefixMetadata -> CBOR metadata.
	prefixMetadata byte = 0x03

	heightSize = 8
)

func heightKey(prefix byte, height uint64, extra int) []byte {
	key := make([]byte, 1+heightSize, 1+heightSize+extra)
	key[0] = prefix
	binary.BigEndian.PutUint64(key[1:], height)
	return key
}

func lightBlockKey(height uint64) []byte {
	return heightKey(prefixLightBlock, height, 0)
}

// statePrefix returns the prefix shared by all state keys at height.
func statePrefix(height uint64) []byte {
	return heightKey(prefixState, height, 0)
}

func stateKey(height uint64, key []byte) []byte {
	return append(heightKey(prefixState, height, len(key)), key...)
}

// decodeStateKey returns the state key stored under a database key, and
// false when the database key is not a state key.
func decodeStateKey(dbKey []byte) ([]byte, bool) {
	if len(dbKey) < 1+heightSize || dbKey[0] != prefixState {
		return nil, false
	}
	return append([]byte{}, dbKey[1+heightSize:]...), true
}

func metadataKey() []byte {
	return []byte{prefixMetadata}
}
