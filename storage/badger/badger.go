// Package badger implements a BadgerDB backed chain store, keeping finalized
// light blocks together with the full state committed by each of them.
package badger

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/dgraph-io/badger/v3"
	lru "github.com/hashicorp/golang-lru"

	cmnBadger "github.com/encointer/personhood-oracle/common/badger"
	"github.com/encointer/personhood-oracle/common/cbor"
	"github.com/encointer/personhood-oracle/common/logging"
	consensus "github.com/encointer/personhood-oracle/consensus/api"
	"github.com/encointer/personhood-oracle/storage/api"
	"github.com/encointer/personhood-oracle/storage/proof"
)

const (
	// DBFile is the default backing store filename.
	DBFile = "chain_store.badger.db"

	defaultTreeCacheSize = 16
)

var (
	_ api.Backend             = (*ChainStore)(nil)
	_ consensus.LightProvider = (*ChainStore)(nil)
)

type metadata struct {
	LatestHeight uint64 `json:"latest_height"`
}

// Config is the chain store configuration.
type Config struct {
	// DataDir is the directory holding the database, ignored in memory.
	DataDir string
	// InMemory selects an ephemeral in-memory database.
	InMemory bool
	// TreeCacheSize is the number of state commitments kept in memory.
	TreeCacheSize int
}

// ChainStore is a BadgerDB backed chain store.
type ChainStore struct {
	sync.Mutex

	logger *logging.Logger

	db    *badger.DB
	gc    *cmnBadger.GCWorker
	trees *lru.Cache // height -> *proof.Tree
}

// New opens (or creates) a chain store.
func New(cfg *Config) (*ChainStore, error) {
	logger := logging.GetLogger("storage/badger")

	opts := badger.DefaultOptions(filepath.Join(cfg.DataDir, DBFile))
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts = opts.WithLogger(cmnBadger.NewLogAdapter(logger)).
		WithSyncWrites(true).
		WithCompression(0)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("storage/badger: failed to open database: %w", err)
	}

	cacheSize := cfg.TreeCacheSize
	if cacheSize <= 0 {
		cacheSize = defaultTreeCacheSize
	}

	trees, err := lru.New(cacheSize)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &ChainStore{
		logger: logger,
		db:     db,
		trees:  trees,
	}
	if !cfg.InMemory {
		s.gc = cmnBadger.NewGCWorker(logger, db, 0)
	}
	return s, nil
}

// Commit stores a finalized light block and the full state it commits to.
//
// The state must hash to the header state root and the block must extend the
// latest stored block.
func (s *ChainStore) Commit(ctx context.Context, blk *consensus.LightBlock, leaves []proof.Leaf) error {
	tree, err := proof.NewTree(leaves)
	if err != nil {
		return err
	}
	if root := tree.Root(); !root.Equal(&blk.Header.StateRoot) {
		return fmt.Errorf("storage/badger: state root mismatch (expected: %s got: %s)", blk.Header.StateRoot, root)
	}

	s.Lock()
	defer s.Unlock()

	err = s.db.Update(func(tx *badger.Txn) error {
		meta, err := getMetadata(tx)
		switch {
		case err == nil:
			if blk.Header.Height != meta.LatestHeight+1 {
				return fmt.Errorf("storage/badger: non-sequential height %d (latest: %d)", blk.Header.Height, meta.LatestHeight)
			}
			parent, err := getLightBlock(tx, meta.LatestHeight)
			if err != nil {
				return err
			}
			if parentHash := parent.Header.Hash(); !parentHash.Equal(&blk.Header.ParentHash) {
				return fmt.Errorf("storage/badger: parent hash mismatch at height %d", blk.Header.Height)
			}
		case err == badger.ErrKeyNotFound:
		default:
			return err
		}

		height := blk.Header.Height
		if err = tx.Set(lightBlockKey(height), cbor.Marshal(blk)); err != nil {
			return err
		}
		for _, l := range leaves {
			if err = tx.Set(stateKey(height, l.Key), l.Value); err != nil {
				return err
			}
		}
		return tx.Set(metadataKey(), cbor.Marshal(&metadata{LatestHeight: height}))
	})
	if err != nil {
		return err
	}

	s.trees.Add(blk.Header.Height, tree)

	s.logger.Debug("committed block",
		"height", blk.Header.Height,
		"state_root", blk.Header.StateRoot,
		"num_leaves", len(leaves),
	)
	return nil
}

// LatestHeight implements consensus.LightProvider.
func (s *ChainStore) LatestHeight(ctx context.Context) (uint64, error) {
	var height uint64
	err := s.db.View(func(tx *badger.Txn) error {
		meta, err := getMetadata(tx)
		if err != nil {
			return err
		}
		height = meta.LatestHeight
		return nil
	})
	if err == badger.ErrKeyNotFound {
		return 0, consensus.ErrVersionNotFound
	}
	return height, err
}

// LightBlock implements consensus.LightProvider.
func (s *ChainStore) LightBlock(ctx context.Context, height uint64) (*consensus.LightBlock, error) {
	var blk *consensus.LightBlock
	err := s.db.View(func(tx *badger.Txn) error {
		var err error
		blk, err = getLightBlock(tx, height)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return nil, consensus.ErrVersionNotFound
	}
	return blk, err
}

// State returns the full state committed at the given height.
func (s *ChainStore) State(ctx context.Context, height uint64) ([]proof.Leaf, error) {
	var leaves []proof.Leaf
	err := s.db.View(func(tx *badger.Txn) error {
		if _, err := getLightBlock(tx, height); err != nil {
			return err
		}

		it := tx.NewIterator(badger.IteratorOptions{Prefix: statePrefix(height)})
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			key, ok := decodeStateKey(item.Key())
			if !ok {
				break
			}
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			leaves = append(leaves, proof.Leaf{Key: key, Value: value})
		}
		return nil
	})
	if err == badger.ErrKeyNotFound {
		return nil, api.ErrNoVersion
	}
	return leaves, err
}

func (s *ChainStore) tree(ctx context.Context, height uint64) (*proof.Tree, error) {
	if cached, ok := s.trees.Get(height); ok {
		return cached.(*proof.Tree), nil
	}

	leaves, err := s.State(ctx, height)
	if err != nil {
		return nil, err
	}
	tree, err := proof.NewTree(leaves)
	if err != nil {
		return nil, err
	}
	s.trees.Add(height, tree)
	return tree, nil
}

// Read implements api.Backend.
func (s *ChainStore) Read(ctx context.Context, request *api.ReadRequest) (*api.ReadResponse, error) {
	if len(request.Keys) > api.MaxReadKeys {
		return nil, api.ErrTooManyKeys
	}

	tree, err := s.tree(ctx, request.Height)
	if err != nil {
		return nil, err
	}

	rsp := &api.ReadResponse{
		Entries: make([]api.Entry, 0, len(request.Keys)),
	}
	for _, key := range request.Keys {
		value, _ := tree.Get(key)
		rsp.Entries = append(rsp.Entries, api.Entry{
			Key:   key,
			Value: value,
			Proof: tree.Prove(key),
		})
	}
	return rsp, nil
}

// Close closes the chain store.
func (s *ChainStore) Close() {
	if s.gc != nil {
		s.gc.Close()
	}
	if err := s.db.Close(); err != nil {
		s.logger.Error("failed to close database",
			"err", err,
		)
	}
}

func getMetadata(tx *badger.Txn) (*metadata, error) {
	item, err := tx.Get(metadataKey())
	if err != nil {
		return nil, err
	}

	var meta metadata
	err = item.Value(func(data []byte) error {
		return cbor.Unmarshal(data, &meta)
	})
	return &meta, err
}

func getLightBlock(tx *badger.Txn, height uint64) (*consensus.LightBlock, error) {
	item, err := tx.Get(lightBlockKey(height))
	if err != nil {
		return nil, err
	}

	var blk consensus.LightBlock
	err = item.Value(func(data []byte) error {
		return cbor.Unmarshal(data, &blk)
	})
	return &blk, err
}
