package reader

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/encointer/personhood-oracle/common/cbor"
	encointer "github.com/encointer/personhood-oracle/encointer/api"
	"github.com/encointer/personhood-oracle/oracle/api"
	"github.com/encointer/personhood-oracle/oracle/tests"
	storage "github.com/encointer/personhood-oracle/storage/api"
)

func TestReader(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	f := tests.NewFixture(t, 10)
	account := tests.TestAccount(1)
	f.SetReputations(t, account, 9, encointer.VerifiedLinked, encointer.UnverifiedReputable)
	f.Commit(t)

	snap := f.Client.Snapshot()
	r := New(f.Store)

	rep, err := r.ReadReputation(ctx, encointer.ReputationStorageKey(tests.Community, 9, account), snap)
	require.NoError(err, "ReadReputation")
	require.Equal(encointer.VerifiedLinked, rep.Kind)
	require.EqualValues(10, rep.LinkedCycle)

	rep, err = r.ReadReputation(ctx, encointer.ReputationStorageKey(tests.Community, 8, account), snap)
	require.NoError(err, "ReadReputation")
	require.Equal(encointer.UnverifiedReputable, rep.Kind)

	// Proven absence is Unverified.
	rep, err = r.ReadReputation(ctx, encointer.ReputationStorageKey(tests.Community, 7, account), snap)
	require.NoError(err, "ReadReputation absent")
	require.Equal(encointer.Unverified, rep.Kind)

	cindex, err := r.ReadCurrentCycle(ctx, snap)
	require.NoError(err, "ReadCurrentCycle")
	require.EqualValues(10, cindex)

	// Reads are tied to the named snapshot, not to the latest header.
	f.SetReputations(t, account, 7, encointer.VerifiedUnlinked)
	f.Commit(t)
	rep, err = r.ReadReputation(ctx, encointer.ReputationStorageKey(tests.Community, 7, account), snap)
	require.NoError(err, "ReadReputation at old snapshot")
	require.Equal(encointer.Unverified, rep.Kind)
	rep, err = r.ReadReputation(ctx, encointer.ReputationStorageKey(tests.Community, 7, account), f.Client.Snapshot())
	require.NoError(err, "ReadReputation at new snapshot")
	require.Equal(encointer.VerifiedUnlinked, rep.Kind)
}

func TestReaderUntrustedBackend(t *testing.T) {
	f := tests.NewFixture(t, 10)
	account := tests.TestAccount(2)
	f.SetReputations(t, account, 9, encointer.VerifiedUnlinked)
	f.Chain.Set([]byte("garbage"), []byte{0xff})
	f.Commit(t)

	snap := f.Client.Snapshot()
	present := encointer.ReputationStorageKey(tests.Community, 9, account)
	absent := encointer.ReputationStorageKey(tests.Community, 8, account)

	for _, tc := range []struct {
		name        string
		key         []byte
		backend     storage.Backend
		expectedErr error
	}{
		{
			"TransportFailure",
			present,
			&tests.FailingBackend{Err: fmt.Errorf("connection reset")},
			api.ErrStorageRead,
		},
		{
			"ForgedValue",
			present,
			&tests.TamperingBackend{Backend: f.Store, Tamper: func(rsp *storage.ReadResponse) {
				rsp.Entries[0].Value = cbor.Marshal(encointer.Reputation{Kind: encointer.VerifiedLinked, LinkedCycle: 3})
				rsp.Entries[0].Proof.Leaves[0].Value = rsp.Entries[0].Value
			}},
			api.ErrProofVerification,
		},
		{
			"ValueNotMatchingProof",
			present,
			&tests.TamperingBackend{Backend: f.Store, Tamper: func(rsp *storage.ReadResponse) {
				rsp.Entries[0].Value = []byte{0xa0}
			}},
			api.ErrProofVerification,
		},
		{
			"ForgedPresence",
			absent,
			&tests.TamperingBackend{Backend: f.Store, Tamper: func(rsp *storage.ReadResponse) {
				rsp.Entries[0].Value = cbor.Marshal(encointer.Reputation{Kind: encointer.VerifiedUnlinked})
			}},
			api.ErrProofVerification,
		},
		{
			"HiddenValue",
			present,
			&tests.TamperingBackend{Backend: f.Store, Tamper: func(rsp *storage.ReadResponse) {
				rsp.Entries[0].Value = nil
				rsp.Entries[0].Proof = nil
			}},
			api.ErrProofVerification,
		},
		{
			"OtherKey",
			present,
			&tests.TamperingBackend{Backend: f.Store, Tamper: func(rsp *storage.ReadResponse) {
				rsp.Entries[0].Key = absent
			}},
			api.ErrProofVerification,
		},
		{
			"MissingEntry",
			present,
			&tests.TamperingBackend{Backend: f.Store, Tamper: func(rsp *storage.ReadResponse) {
				rsp.Entries = nil
			}},
			api.ErrStorageRead,
		},
		{
			"MalformedValue",
			[]byte("garbage"),
			f.Store,
			api.ErrStorageRead,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			require := require.New(t)

			_, err := New(tc.backend).ReadReputation(context.Background(), tc.key, snap)
			require.ErrorIs(err, tc.expectedErr)
		})
	}
}
