package proof

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/encointer/personhood-oracle/common/cbor"
	"github.com/encointer/personhood-oracle/common/crypto/hash"
)

func testLeaves(n int) []Leaf {
	leaves := make([]Leaf, 0, n)
	for i := 0; i < n; i++ {
		leaves = append(leaves, Leaf{
			// Keys "key 01", "key 03", ... leave gaps for absence proofs.
			Key:   []byte(fmt.Sprintf("key %02d", 2*i+1)),
			Value: []byte(fmt.Sprintf("value %d", i)),
		})
	}
	return leaves
}

func TestInclusionAndAbsence(t *testing.T) {
	for _, n := range []int{0, 1, 2, 3, 7, 16} {
		t.Run(fmt.Sprintf("Leaves%d", n), func(t *testing.T) {
			require := require.New(t)

			tree, err := NewTree(testLeaves(n))
			require.NoError(err, "NewTree")
			require.Equal(n, tree.Len())
			root := tree.Root()

			for i := 0; i < n; i++ {
				key := []byte(fmt.Sprintf("key %02d", 2*i+1))
				value, found, err := Verify(root, key, tree.Prove(key))
				require.NoError(err, "inclusion proof for %s", key)
				require.True(found)
				require.Equal([]byte(fmt.Sprintf("value %d", i)), value)
			}

			// Absent keys: before the first, between each pair and after the last leaf.
			for i := 0; i <= n; i++ {
				key := []byte(fmt.Sprintf("key %02d", 2*i))
				value, found, err := Verify(root, key, tree.Prove(key))
				require.NoError(err, "absence proof for %s", key)
				require.False(found)
				require.Nil(value)
			}
		})
	}
}

func TestTreeDeterministic(t *testing.T) {
	require := require.New(t)

	leaves := testLeaves(5)
	reversed := make([]Leaf, len(leaves))
	for i := range leaves {
		reversed[len(leaves)-1-i] = leaves[i]
	}

	a, err := NewTree(leaves)
	require.NoError(err)
	b, err := NewTree(reversed)
	require.NoError(err)
	require.Equal(a.Root(), b.Root(), "root must not depend on input order")

	_, err = NewTree(append(leaves, leaves[0]))
	require.Error(err, "duplicate keys must be rejected")

	empty, err := NewTree(nil)
	require.NoError(err)
	require.Equal(EmptyRoot(), empty.Root())
}

func TestProofTampering(t *testing.T) {
	require := require.New(t)

	tree, err := NewTree(testLeaves(8))
	require.NoError(err)
	root := tree.Root()
	key := []byte("key 05")

	// Tampered value.
	p := tree.Prove(key)
	p.Leaves[0].Value = []byte("forged")
	_, _, err = Verify(root, key, p)
	require.ErrorIs(err, ErrVerifyFailed)

	// Proof for another key.
	_, _, err = Verify(root, key, tree.Prove([]byte("key 07")))
	require.ErrorIs(err, ErrVerifyFailed)

	// Wrong root.
	_, _, err = Verify(hash.NewFromBytes([]byte("other")), key, tree.Prove(key))
	require.ErrorIs(err, ErrVerifyFailed)

	// Missing proof.
	_, _, err = Verify(root, key, nil)
	require.ErrorIs(err, ErrVerifyFailed)

	// Claiming absence with an inclusion proof of a neighbor.
	_, _, err = Verify(root, []byte("key 04"), tree.Prove([]byte("key 05")))
	require.ErrorIs(err, ErrVerifyFailed, "non-boundary neighbor does not prove absence")

	// Non-adjacent leaves do not prove absence.
	wide := &Proof{Total: 8, Leaves: []ProvenLeaf{
		tree.Prove([]byte("key 01")).Leaves[0],
		tree.Prove([]byte("key 05")).Leaves[0],
	}}
	_, _, err = Verify(root, []byte("key 03"), wide)
	require.ErrorIs(err, ErrVerifyFailed)

	// Lying about the tree size.
	p = tree.Prove([]byte("key 99"))
	p.Total = 9
	_, _, err = Verify(root, []byte("key 99"), p)
	require.ErrorIs(err, ErrVerifyFailed)

	// An empty tree proof against a non-empty root.
	_, _, err = Verify(root, key, &Proof{})
	require.ErrorIs(err, ErrVerifyFailed)
}

func TestProofSerialization(t *testing.T) {
	require := require.New(t)

	tree, err := NewTree(testLeaves(5))
	require.NoError(err)
	key := []byte("key 04")

	var decoded Proof
	require.NoError(cbor.Unmarshal(cbor.Marshal(tree.Prove(key)), &decoded))
	_, found, err := Verify(tree.Root(), key, &decoded)
	require.NoError(err)
	require.False(found)
}

func FuzzProof(f *testing.F) {
	tree, err := NewTree(testLeaves(5))
	if err != nil {
		f.Fatal(err)
	}
	f.Add(cbor.Marshal(tree.Prove([]byte("key 03"))))
	f.Add(cbor.Marshal(tree.Prove([]byte("key 04"))))

	root := tree.Root()
	f.Fuzz(func(_ *testing.T, data []byte) {
		var p Proof
		if err := cbor.Unmarshal(data, &p); err != nil {
			return
		}
		_, _, _ = Verify(root, []byte("key 04"), &p)
	})
}
