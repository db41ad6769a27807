// Package merkle builds the binary hash trees used for batch anchoring.
//
// Pairing rule: leaves are taken in batch order, hashed pairwise left to
// right with sha256 over the concatenated raw digest bytes. A level with an
// odd number of nodes duplicates its last node. This rule is part of the
// external contract: verifiers recompute the root from an inclusion path
// without trusting the service, so it must never change for existing batches.
package merkle

import (
	"crypto/sha256"
	"encoding/hex"

	dErrors "veritas/pkg/domain-errors"
)

// Step is one sibling hash in an inclusion path. Left reports whether the
// sibling sits to the left of the running hash.
type Step struct {
	Hash string
	Left bool
}

// Tree is an immutable merkle tree built from ordered leaf hashes.
type Tree struct {
	// levels[0] is the leaf level; the last level holds the single root.
	levels [][][]byte
}

// Build constructs a tree from hex-encoded leaf hashes.
func Build(leaves []string) (*Tree, error) {
	if len(leaves) == 0 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "merkle tree requires at least one leaf")
	}

	level := make([][]byte, len(leaves))
	for i, leaf := range leaves {
		raw, err := hex.DecodeString(leaf)
		if err != nil {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "leaf hash is not valid hex: "+leaf)
		}
		if len(raw) != sha256.Size {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "leaf hash must be 32 bytes")
		}
		level[i] = raw
	}

	levels := [][][]byte{level}
	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}
		next := make([][]byte, 0, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			next = append(next, parent(level[i], level[i+1]))
		}
		levels = append(levels, next)
		level = next
	}

	return &Tree{levels: levels}, nil
}

// Root returns the hex-encoded merkle root.
func (t *Tree) Root() string {
	top := t.levels[len(t.levels)-1]
	return hex.EncodeToString(top[0])
}

// Proof returns the inclusion path for the leaf at the given index, ordered
// from the leaf's sibling upward.
func (t *Tree) Proof(index int) ([]Step, error) {
	if index < 0 || index >= len(t.levels[0]) {
		return nil, dErrors.New(dErrors.CodeBadRequest, "leaf index out of range")
	}

	var steps []Step
	for _, level := range t.levels[:len(t.levels)-1] {
		// Mirror the build: duplicate the last node of odd levels so the
		// sibling lookup sees the same shape.
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}
		sibling := index ^ 1
		steps = append(steps, Step{
			Hash: hex.EncodeToString(level[sibling]),
			Left: sibling < index,
		})
		index /= 2
	}
	return steps, nil
}

// VerifyProof recombines a leaf hash with an inclusion path and reports
// whether it reproduces the expected root exactly.
func VerifyProof(leaf string, steps []Step, root string) bool {
	running, err := hex.DecodeString(leaf)
	if err != nil {
		return false
	}
	for _, step := range steps {
		sibling, err := hex.DecodeString(step.Hash)
		if err != nil {
			return false
		}
		if step.Left {
			running = parent(sibling, running)
		} else {
			running = parent(running, sibling)
		}
	}
	return hex.EncodeToString(running) == root
}

func parent(left, right []byte) []byte {
	h := sha256.New()
	h.Write(left)
	h.Write(right)
	return h.Sum(nil)
}
