// Package proof implements state commitments over sorted key-value leaves
// together with inclusion and absence proofs against a committed root.
package proof

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"sort"

	cmtmerkle "github.com/cometbft/cometbft/crypto/merkle"

	"github.com/encointer/personhood-oracle/common/cbor"
	"github.com/encointer/personhood-oracle/common/crypto/hash"
)

const (
	// maxProofLeaves is the maximum number of leaves an absence proof needs.
	maxProofLeaves = 2
	// maxAunts is the maximum proof path length.
	maxAunts = 64
	// maxTotal is the maximum number of leaves in a tree.
	maxTotal = 1 << 40
)

var (
	// ErrVerifyFailed is the error returned when a proof does not verify
	// against the given root.
	ErrVerifyFailed = errors.New("proof: verification failed")

	leafPrefix = []byte{0}
)

// Leaf is a committed state entry.
type Leaf struct {
	Key   []byte `json:"key"`
	Value []byte `json:"value"`
}

// ProvenLeaf is a leaf together with its merkle path.
type ProvenLeaf struct {
	Leaf

	Index uint64   `json:"index"`
	Aunts [][]byte `json:"aunts,omitempty"`
}

// Proof is a proof of inclusion or absence of a key.
//
// An inclusion proof contains the single leaf with the requested key. An
// absence proof contains the leaves adjacent to where the key would be.
type Proof struct {
	Total  uint64       `json:"total"`
	Leaves []ProvenLeaf `json:"leaves,omitempty"`
}

func encodeLeaf(l *Leaf) []byte {
	return cbor.Marshal(l)
}

// Tree is an immutable commitment over a set of leaves.
type Tree struct {
	leaves []Leaf
	root   hash.Hash
	proofs []*cmtmerkle.Proof
}

// NewTree builds a commitment over the given leaves. Leaves are sorted by key
// and keys must be unique.
func NewTree(leaves []Leaf) (*Tree, error) {
	sorted := append([]Leaf{}, leaves...)
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i].Key, sorted[j].Key) < 0
	})
	for i := 1; i < len(sorted); i++ {
		if bytes.Equal(sorted[i-1].Key, sorted[i].Key) {
			return nil, fmt.Errorf("proof: duplicate key %X", sorted[i].Key)
		}
	}

	items := make([][]byte, 0, len(sorted))
	for i := range sorted {
		items = append(items, encodeLeaf(&sorted[i]))
	}
	rawRoot, proofs := cmtmerkle.ProofsFromByteSlices(items)

	t := &Tree{
		leaves: sorted,
		proofs: proofs,
	}
	if err := t.root.UnmarshalBinary(rawRoot); err != nil {
		return nil, fmt.Errorf("proof: bad root: %w", err)
	}
	return t, nil
}

// Root returns the root commitment.
func (t *Tree) Root() hash.Hash {
	return t.root
}

// Len returns the number of leaves.
func (t *Tree) Len() int {
	return len(t.leaves)
}

// Get returns the value of the given key, if present.
func (t *Tree) Get(key []byte) ([]byte, bool) {
	idx, found := t.search(key)
	if !found {
		return nil, false
	}
	return t.leaves[idx].Value, true
}

func (t *Tree) search(key []byte) (int, bool) {
	idx := sort.Search(len(t.leaves), func(i int) bool {
		return bytes.Compare(t.leaves[i].Key, key) >= 0
	})
	return idx, idx < len(t.leaves) && bytes.Equal(t.leaves[idx].Key, key)
}

func (t *Tree) proven(idx int) ProvenLeaf {
	return ProvenLeaf{
		Leaf:  t.leaves[idx],
		Index: uint64(idx),
		Aunts: t.proofs[idx].Aunts,
	}
}

// Prove generates an inclusion or absence proof for the given key.
func (t *Tree) Prove(key []byte) *Proof {
	p := &Proof{Total: uint64(len(t.leaves))}

	idx, found := t.search(key)
	switch {
	case found:
		p.Leaves = append(p.Leaves, t.proven(idx))
	case len(t.leaves) == 0:
	case idx == 0:
		p.Leaves = append(p.Leaves, t.proven(0))
	case idx == len(t.leaves):
		p.Leaves = append(p.Leaves, t.proven(idx-1))
	default:
		p.Leaves = append(p.Leaves, t.proven(idx-1), t.proven(idx))
	}
	return p
}

// EmptyRoot returns the root of a tree without leaves.
func EmptyRoot() hash.Hash {
	var h hash.Hash
	_ = h.UnmarshalBinary(cmtmerkle.HashFromByteSlices(nil))
	return h
}

func verifyLeaf(root hash.Hash, total uint64, pl *ProvenLeaf) error {
	if pl.Index >= total {
		return fmt.Errorf("%w: leaf index %d out of range", ErrVerifyFailed, pl.Index)
	}
	if len(pl.Aunts) > maxAunts {
		return fmt.Errorf("%w: proof path too long", ErrVerifyFailed)
	}

	leaf := encodeLeaf(&pl.Leaf)
	leafHash := sha256.Sum256(append(append([]byte{}, leafPrefix...), leaf...))
	mp := &cmtmerkle.Proof{
		Total:    int64(total),
		Index:    int64(pl.Index),
		LeafHash: leafHash[:],
		Aunts:    pl.Aunts,
	}
	if err := mp.Verify(root[:], leaf); err != nil {
		return fmt.Errorf("%w: %s", ErrVerifyFailed, err)
	}
	return nil
}

// Verify verifies the proof for the given key against the root. It returns
// the proven value and true if the key is present, or nil and false if the
// key is proven to be absent.
func Verify(root hash.Hash, key []byte, p *Proof) ([]byte, bool, error) {
	if p == nil {
		return nil, false, fmt.Errorf("%w: missing proof", ErrVerifyFailed)
	}
	if p.Total > maxTotal || len(p.Leaves) > maxProofLeaves {
		return nil, false, fmt.Errorf("%w: malformed proof", ErrVerifyFailed)
	}

	if p.Total == 0 {
		emptyRoot := EmptyRoot()
		if len(p.Leaves) != 0 || !root.Equal(&emptyRoot) {
			return nil, false, fmt.Errorf("%w: bad empty tree proof", ErrVerifyFailed)
		}
		return nil, false, nil
	}

	for i := range p.Leaves {
		if err := verifyLeaf(root, p.Total, &p.Leaves[i]); err != nil {
			return nil, false, err
		}
	}

	switch len(p.Leaves) {
	case 1:
		l := &p.Leaves[0]
		cmp := bytes.Compare(l.Key, key)
		switch {
		case cmp == 0:
			return l.Value, true, nil
		case cmp > 0 && l.Index == 0:
			// Key sorts before the first leaf.
			return nil, false, nil
		case cmp < 0 && l.Index == p.Total-1:
			// Key sorts after the last leaf.
			return nil, false, nil
		}
	case 2:
		left, right := &p.Leaves[0], &p.Leaves[1]
		if left.Index+1 == right.Index &&
			bytes.Compare(left.Key, key) < 0 &&
			bytes.Compare(key, right.Key) < 0 {
			return nil, false, nil
		}
	}

	return nil, false, fmt.Errorf("%w: proof does not cover key", ErrVerifyFailed)
}
