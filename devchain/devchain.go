// Package devchain implements a development chain writer that commits
// ceremony state into a chain store and finalizes it with local authority
// keys.
package devchain

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/encointer/personhood-oracle/common/cbor"
	"github.com/encointer/personhood-oracle/common/crypto/hash"
	"github.com/encointer/personhood-oracle/common/crypto/signature"
	"github.com/encointer/personhood-oracle/common/logging"
	consensus "github.com/encointer/personhood-oracle/consensus/api"
	encointer "github.com/encointer/personhood-oracle/encointer/api"
	"github.com/encointer/personhood-oracle/light"
	"github.com/encointer/personhood-oracle/storage/badger"
	"github.com/encointer/personhood-oracle/storage/proof"
)

// Chain is a development chain.
//
// State modifications are staged in memory and become visible to readers
// once committed.
type Chain struct {
	logger *logging.Logger

	store   *badger.ChainStore
	signers []signature.Signer
	now     func() time.Time

	state map[string][]byte
}

// SetReputation stages the reputation of an account in a community cycle.
func (c *Chain) SetReputation(cid encointer.CommunityIdentifier, cindex encointer.CeremonyIndex, account encointer.AccountID, rep encointer.Reputation) error {
	if err := rep.ValidateBasic(); err != nil {
		return err
	}

	key := encointer.ReputationStorageKey(cid, cindex, account)
	if rep.Kind == encointer.Unverified {
		// Unverified is the default and is represented by absence.
		delete(c.state, string(key))
		return nil
	}
	c.state[string(key)] = cbor.Marshal(rep)
	return nil
}

// SetCurrentCycle stages the current ceremony index.
func (c *Chain) SetCurrentCycle(cindex encointer.CeremonyIndex) {
	c.state[string(encointer.CurrentCeremonyIndexKey())] = cbor.Marshal(cindex)
}

// Set stages a raw state entry, a nil value removes the key.
func (c *Chain) Set(key, value []byte) {
	if value == nil {
		delete(c.state, string(key))
		return
	}
	c.state[string(key)] = append([]byte{}, value...)
}

// Leaves returns the staged state as sorted leaves.
func (c *Chain) Leaves() []proof.Leaf {
	leaves := make([]proof.Leaf, 0, len(c.state))
	for k, v := range c.state {
		leaves = append(leaves, proof.Leaf{Key: []byte(k), Value: v})
	}
	sort.Slice(leaves, func(i, j int) bool {
		return string(leaves[i].Key) < string(leaves[j].Key)
	})
	return leaves
}

// Commit finalizes the staged state in a new block.
func (c *Chain) Commit(ctx context.Context) (*consensus.LightBlock, error) {
	leaves := c.Leaves()
	tree, err := proof.NewTree(leaves)
	if err != nil {
		return nil, err
	}

	header := consensus.Header{
		Height:    1,
		StateRoot: tree.Root(),
		Timestamp: c.now().Unix(),
	}
	latest, err := c.latest(ctx)
	if err != nil {
		return nil, err
	}
	if latest != nil {
		header.Height = latest.Header.Height + 1
		header.ParentHash = latest.Header.Hash()
		if header.Timestamp < latest.Header.Timestamp {
			header.Timestamp = latest.Header.Timestamp
		}
	}

	justification, err := consensus.Justify(&header, c.signers...)
	if err != nil {
		return nil, err
	}
	blk := &consensus.LightBlock{
		Header:        header,
		Justification: *justification,
	}
	if err = c.store.Commit(ctx, blk, leaves); err != nil {
		return nil, fmt.Errorf("devchain: failed to commit block: %w", err)
	}

	c.logger.Info("committed block",
		"height", header.Height,
		"state_root", header.StateRoot,
		"num_entries", len(leaves),
	)
	return blk, nil
}

func (c *Chain) latest(ctx context.Context) (*consensus.LightBlock, error) {
	height, err := c.store.LatestHeight(ctx)
	switch err {
	case nil:
	case consensus.ErrVersionNotFound:
		return nil, nil
	default:
		return nil, err
	}
	return c.store.LightBlock(ctx, height)
}

// TrustRoot returns a light client trust root for the latest committed block.
func (c *Chain) TrustRoot(ctx context.Context) (*light.TrustRoot, error) {
	latest, err := c.latest(ctx)
	if err != nil {
		return nil, err
	}
	if latest == nil {
		return nil, fmt.Errorf("devchain: no committed blocks")
	}

	root := &light.TrustRoot{
		Header: latest.Header,
	}
	for _, s := range c.signers {
		root.Authorities = append(root.Authorities, s.Public())
	}
	return root, nil
}

// StateRoot returns the root of the staged state.
func (c *Chain) StateRoot() (hash.Hash, error) {
	tree, err := proof.NewTree(c.Leaves())
	if err != nil {
		return hash.Hash{}, err
	}
	return tree.Root(), nil
}

// New creates a development chain on top of the given chain store, resuming
// from the latest committed state.
func New(ctx context.Context, store *badger.ChainStore, signers ...signature.Signer) (*Chain, error) {
	return newChain(ctx, store, time.Now, signers...)
}

func newChain(ctx context.Context, store *badger.ChainStore, now func() time.Time, signers ...signature.Signer) (*Chain, error) {
	if len(signers) == 0 {
		return nil, fmt.Errorf("devchain: no authority signers")
	}

	c := &Chain{
		logger:  logging.GetLogger("devchain"),
		store:   store,
		signers: signers,
		now:     now,
		state:   make(map[string][]byte),
	}

	latest, err := c.latest(ctx)
	if err != nil {
		return nil, err
	}
	if latest != nil {
		leaves, err := store.State(ctx, latest.Header.Height)
		if err != nil {
			return nil, err
		}
		for _, l := range leaves {
			c.state[string(l.Key)] = l.Value
		}
	}
	return c, nil
}
