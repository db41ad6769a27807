package merkle

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func leafHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func TestBuildSingleLeaf(t *testing.T) {
	leaf := leafHash("only")
	tree, err := Build([]string{leaf})
	require.NoError(t, err)

	assert.Equal(t, leaf, tree.Root(), "single-leaf root is the leaf itself")

	proof, err := tree.Proof(0)
	require.NoError(t, err)
	assert.Empty(t, proof)
	assert.True(t, VerifyProof(leaf, proof, tree.Root()))
}

func TestBuildEmpty(t *testing.T) {
	_, err := Build(nil)
	require.Error(t, err)
}

func TestBuildRejectsBadLeaves(t *testing.T) {
	_, err := Build([]string{"not hex"})
	require.Error(t, err)

	_, err = Build([]string{"deadbeef"})
	require.Error(t, err, "short digest must be rejected")
}

func TestOddLeafCountDuplicatesLast(t *testing.T) {
	a, b, c := leafHash("a"), leafHash("b"), leafHash("c")
	tree, err := Build([]string{a, b, c})
	require.NoError(t, err)

	// The last leaf of an odd level pairs with itself.
	padded, err := Build([]string{a, b, c, c})
	require.NoError(t, err)
	assert.Equal(t, padded.Root(), tree.Root())
}

func TestProofVerifiesForEveryLeaf(t *testing.T) {
	for _, count := range []int{1, 2, 3, 4, 5, 7, 8, 13} {
		leaves := make([]string, count)
		for i := range leaves {
			leaves[i] = leafHash(fmt.Sprintf("leaf-%d", i))
		}
		tree, err := Build(leaves)
		require.NoError(t, err)

		for i, leaf := range leaves {
			proof, err := tree.Proof(i)
			require.NoError(t, err)
			assert.True(t, VerifyProof(leaf, proof, tree.Root()),
				"count=%d index=%d", count, i)
		}
	}
}

func TestVerifyProofRejectsTamperedPath(t *testing.T) {
	leaves := []string{leafHash("a"), leafHash("b"), leafHash("c"), leafHash("d")}
	tree, err := Build(leaves)
	require.NoError(t, err)

	proof, err := tree.Proof(1)
	require.NoError(t, err)
	require.NotEmpty(t, proof)

	assert.False(t, VerifyProof(leaves[2], proof, tree.Root()), "wrong leaf")

	flipped := make([]Step, len(proof))
	copy(flipped, proof)
	flipped[0].Left = !flipped[0].Left
	assert.False(t, VerifyProof(leaves[1], flipped, tree.Root()), "flipped side")

	swapped := make([]Step, len(proof))
	copy(swapped, proof)
	swapped[0].Hash = leafHash("somewhere else")
	assert.False(t, VerifyProof(leaves[1], swapped, tree.Root()), "replaced sibling")
}

func TestProofIndexOutOfRange(t *testing.T) {
	tree, err := Build([]string{leafHash("a"), leafHash("b")})
	require.NoError(t, err)

	_, err = tree.Proof(-1)
	require.Error(t, err)
	_, err = tree.Proof(2)
	require.Error(t, err)
}
