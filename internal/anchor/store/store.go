package store

import (
	"context"

	"veritas/internal/anchor/models"
	id "veritas/pkg/domain"
	pkgerrors "veritas/pkg/domain-errors"
)

var (
	// ErrNotFound keeps storage-specific 404s consistent across implementations.
	ErrNotFound = pkgerrors.New(pkgerrors.CodeNotFound, "anchor record not found")
)

// Store persists anchor batches. Write serialization per batch is enforced
// at the service layer, so stores may be simple.
type Store interface {
	SaveBatch(ctx context.Context, batch models.AnchorBatch) error
	FindBatch(ctx context.Context, batchID id.BatchID) (models.AnchorBatch, error)
	// FindBatchByCredential returns the most recently created batch that
	// includes the credential, or ErrNotFound.
	FindBatchByCredential(ctx context.Context, credentialID id.CredentialID) (models.AnchorBatch, error)
	ListByStatus(ctx context.Context, status models.BatchStatus) ([]models.AnchorBatch, error)
}

// DeadLetterStore holds batches whose submission exhausted the retry budget.
type DeadLetterStore interface {
	Push(ctx context.Context, entry models.DeadLetterEntry) error
	Find(ctx context.Context, batchID id.BatchID) (models.DeadLetterEntry, error)
	Remove(ctx context.Context, batchID id.BatchID) error
	List(ctx context.Context) ([]models.DeadLetterEntry, error)
}
