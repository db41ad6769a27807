// Package models defines the anchoring domain types.
package models

import (
	"time"

	"veritas/pkg/domain"
)

// BatchStatus tracks a batch through the anchoring lifecycle.
type BatchStatus string

const (
	StatusPending  BatchStatus = "pending"
	StatusAnchored BatchStatus = "anchored"
	StatusFailed   BatchStatus = "failed"
)

// AnchorBatch groups credential hashes under a single merkle root for one
// ledger submission. CredentialIDs and LeafHashes are parallel slices in
// batch order; the ordering is load-bearing because inclusion proofs are
// positional.
type AnchorBatch struct {
	ID            domain.BatchID
	CredentialIDs []domain.CredentialID
	LeafHashes    []string
	MerkleRoot    string
	Status        BatchStatus
	TxHash        string
	BlockNumber   int64
	AttemptCount  int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// LeafIndex returns the position of a credential inside the batch, or -1.
func (b *AnchorBatch) LeafIndex(id domain.CredentialID) int {
	for i, cid := range b.CredentialIDs {
		if cid == id {
			return i
		}
	}
	return -1
}

// DeadLetterEntry records a batch whose submission exhausted its retry
// budget. Entries stay queued until an operator replays or discards them.
type DeadLetterEntry struct {
	BatchID      domain.BatchID
	Reason       string
	AttemptCount int
	FailedAt     time.Time
}

// Receipt is the ledger's acknowledgement of an anchored root.
type Receipt struct {
	TxHash      string
	BlockNumber int64
}
