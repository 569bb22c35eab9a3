// Package tests provides a development chain fixture for oracle tests.
package tests

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/encointer/personhood-oracle/common/crypto/signature/signers/memory"
	"github.com/encointer/personhood-oracle/devchain"
	encointer "github.com/encointer/personhood-oracle/encointer/api"
	"github.com/encointer/personhood-oracle/light"
	storage "github.com/encointer/personhood-oracle/storage/api"
	"github.com/encointer/personhood-oracle/storage/badger"
)

// Community is the community used by the fixture.
var Community = encointer.CommunityIdentifier{
	Geohash: [encointer.GeohashSize]byte{'s', 'q', 'm', '1', 'v'},
	Digest:  [encointer.DigestSize]byte{0x4e, 0x8f, 0x2a, 0x11},
}

// Fixture is a committed development chain followed by a light client.
type Fixture struct {
	Store  *badger.ChainStore
	Chain  *devchain.Chain
	Client *light.Client
}

// Commit commits the staged chain state and feeds the block to the light
// client.
func (f *Fixture) Commit(t *testing.T) {
	blk, err := f.Chain.Commit(context.Background())
	require.NoError(t, err, "Commit")
	require.NoError(t, f.Client.Update(blk), "light client Update")
}

// SetReputations stages the given reputations of an account for consecutive
// cycles counting backward from first.
func (f *Fixture) SetReputations(t *testing.T, account encointer.AccountID, first encointer.CeremonyIndex, kinds ...encointer.ReputationKind) {
	for i, kind := range kinds {
		rep := encointer.Reputation{Kind: kind}
		if kind == encointer.VerifiedLinked {
			rep.LinkedCycle = first + 1
		}
		err := f.Chain.SetReputation(Community, first-encointer.CeremonyIndex(i), account, rep)
		require.NoError(t, err, "SetReputation")
	}
}

// NewFixture creates a new fixture with the current cycle set.
func NewFixture(t *testing.T, currentCycle encointer.CeremonyIndex) *Fixture {
	ctx := context.Background()

	store, err := badger.New(&badger.Config{InMemory: true})
	require.NoError(t, err, "badger.New")
	t.Cleanup(store.Close)

	chain, err := devchain.New(ctx, store, memory.NewTestSigner("oracle tests: authority"))
	require.NoError(t, err, "devchain.New")
	chain.SetCurrentCycle(currentCycle)
	_, err = chain.Commit(ctx)
	require.NoError(t, err, "Commit")

	root, err := chain.TrustRoot(ctx)
	require.NoError(t, err, "TrustRoot")
	client, err := light.NewClient(root)
	require.NoError(t, err, "light.NewClient")

	return &Fixture{
		Store:  store,
		Chain:  chain,
		Client: client,
	}
}

// TestAccount returns a deterministic account identifier.
func TestAccount(seed byte) encointer.AccountID {
	var account encointer.AccountID
	for i := range account {
		account[i] = seed ^ byte(i*7)
	}
	return account
}

// CountingBackend is a storage backend wrapper counting read requests.
type CountingBackend struct {
	sync.Mutex

	Backend storage.Backend
	Reads   int
	Keys    [][]byte
}

// Read implements storage.Backend.
func (b *CountingBackend) Read(ctx context.Context, request *storage.ReadRequest) (*storage.ReadResponse, error) {
	b.Lock()
	b.Reads++
	b.Keys = append(b.Keys, request.Keys...)
	b.Unlock()

	return b.Backend.Read(ctx, request)
}

// TamperingBackend is a storage backend wrapper that modifies responses.
type TamperingBackend struct {
	Backend storage.Backend
	Tamper  func(*storage.ReadResponse)
}

// Read implements storage.Backend.
func (b *TamperingBackend) Read(ctx context.Context, request *storage.ReadRequest) (*storage.ReadResponse, error) {
	rsp, err := b.Backend.Read(ctx, request)
	if err != nil {
		return nil, err
	}
	b.Tamper(rsp)
	return rsp, nil
}

// FailingBackend is a storage backend that always fails.
type FailingBackend struct {
	Err error
}

// Read implements storage.Backend.
func (b *FailingBackend) Read(ctx context.Context, request *storage.ReadRequest) (*storage.ReadResponse, error) {
	return nil, b.Err
}
