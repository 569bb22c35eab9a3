// Package reader implements proven reads of chain state against a trusted
// header snapshot.
package reader

import (
	"bytes"
	"context"
	"fmt"

	"github.com/encointer/personhood-oracle/common/cbor"
	"github.com/encointer/personhood-oracle/common/errors"
	encointer "github.com/encointer/personhood-oracle/encointer/api"
	"github.com/encointer/personhood-oracle/light"
	"github.com/encointer/personhood-oracle/oracle/api"
	storage "github.com/encointer/personhood-oracle/storage/api"
	"github.com/encointer/personhood-oracle/storage/proof"
)

// Reader reads chain state from an untrusted backend and verifies every
// value against the state root of the given snapshot.
type Reader struct {
	backend storage.Backend
}

// Read reads a single key at the given snapshot.
//
// It returns the value and true if the key is proven present, or nil and
// false if the key is proven absent.
func (r *Reader) Read(ctx context.Context, key []byte, snap *light.Snapshot) ([]byte, bool, error) {
	rsp, err := r.backend.Read(ctx, &storage.ReadRequest{
		Height: snap.Height,
		Keys:   [][]byte{key},
	})
	if err != nil {
		return nil, false, errors.WithContext(api.ErrStorageRead, err.Error())
	}
	if len(rsp.Entries) != 1 {
		return nil, false, errors.WithContext(api.ErrStorageRead, fmt.Sprintf("expected 1 entry, got %d", len(rsp.Entries)))
	}

	entry := &rsp.Entries[0]
	if !bytes.Equal(entry.Key, key) {
		return nil, false, errors.WithContext(api.ErrProofVerification, "response for another key")
	}
	value, found, err := proof.Verify(snap.StateRoot, key, entry.Proof)
	if err != nil {
		return nil, false, errors.WithContext(api.ErrProofVerification, fmt.Sprintf("height %d: %s", snap.Height, err))
	}
	if !bytes.Equal(value, entry.Value) {
		return nil, false, errors.WithContext(api.ErrProofVerification, fmt.Sprintf("height %d: value does not match proof", snap.Height))
	}
	return value, found, nil
}

// ReadReputation reads a reputation entry, absence is proven Unverified.
func (r *Reader) ReadReputation(ctx context.Context, key []byte, snap *light.Snapshot) (encointer.Reputation, error) {
	var rep encointer.Reputation

	value, found, err := r.Read(ctx, key, snap)
	if err != nil || !found {
		return rep, err
	}
	if err = cbor.Unmarshal(value, &rep); err != nil {
		return rep, errors.WithContext(api.ErrStorageRead, fmt.Sprintf("malformed reputation: %s", err))
	}
	if err = rep.ValidateBasic(); err != nil {
		return rep, errors.WithContext(api.ErrStorageRead, err.Error())
	}
	return rep, nil
}

// ReadCurrentCycle reads the current ceremony index.
func (r *Reader) ReadCurrentCycle(ctx context.Context, snap *light.Snapshot) (encointer.CeremonyIndex, error) {
	var cindex encointer.CeremonyIndex

	value, found, err := r.Read(ctx, encointer.CurrentCeremonyIndexKey(), snap)
	if err != nil || !found {
		return cindex, err
	}
	if err = cbor.Unmarshal(value, &cindex); err != nil {
		return cindex, errors.WithContext(api.ErrStorageRead, fmt.Sprintf("malformed ceremony index: %s", err))
	}
	return cindex, nil
}

// New creates a new verified reader on top of the given backend.
func New(backend storage.Backend) *Reader {
	return &Reader{
		backend: backend,
	}
}
