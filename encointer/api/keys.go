package api

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/crypto/blake2b"
)

const (
	ceremoniesPallet      = "EncointerCeremonies"
	participantReputation = "ParticipantReputation"
	schedulerPallet       = "EncointerScheduler"
	currentCeremonyIndex  = "CurrentCeremonyIndex"
)

// Twox128 is the 128-bit xxhash used for pallet and storage item prefixes.
func Twox128(data []byte) []byte {
	out := make([]byte, 0, 16)
	for seed := uint64(0); seed < 2; seed++ {
		h := xxhash.NewWithSeed(seed)
		_, _ = h.Write(data)
		out = binary.LittleEndian.AppendUint64(out, h.Sum64())
	}
	return out
}

// Blake2_128 is the 128-bit blake2b hash used for opaque map keys.
func Blake2_128(data []byte) []byte {
	h, _ := blake2b.New(16, nil)
	_, _ = h.Write(data)
	return h.Sum(nil)
}

// Blake2_128Concat is the 128-bit blake2b hash followed by the hashed data,
// keeping the key iterable.
func Blake2_128Concat(data []byte) []byte {
	return append(Blake2_128(data), data...)
}

// StoragePrefix returns the storage prefix of a pallet storage item.
func StoragePrefix(pallet, item string) []byte {
	return append(Twox128([]byte(pallet)), Twox128([]byte(item))...)
}

// ReputationKeyPrefix returns the storage key prefix of all reputations of a
// community in a given cycle.
func ReputationKeyPrefix(cid CommunityIdentifier, cindex CeremonyIndex) []byte {
	rawCid, _ := cid.MarshalBinary()
	key1 := binary.LittleEndian.AppendUint32(rawCid, uint32(cindex))

	return append(StoragePrefix(ceremoniesPallet, participantReputation), Blake2_128Concat(key1)...)
}

// ReputationStorageKey derives the storage key of an account's reputation in
// a community for a given cycle.
func ReputationStorageKey(cid CommunityIdentifier, cindex CeremonyIndex, account AccountID) []byte {
	return append(ReputationKeyPrefix(cid, cindex), Blake2_128(account[:])...)
}

// CurrentCeremonyIndexKey returns the storage key of the current ceremony
// index.
func CurrentCeremonyIndexKey() []byte {
	return StoragePrefix(schedulerPallet, currentCeremonyIndex)
}
