package store

import (
	"context"

	"veritas/internal/credential/models"
	id "veritas/pkg/domain"
	pkgerrors "veritas/pkg/domain-errors"
)

var (
	// ErrNotFound keeps storage-specific 404s consistent across implementations.
	ErrNotFound = pkgerrors.New(pkgerrors.CodeNotFound, "credential not found")
)

// Store persists credential records.
type Store interface {
	Save(ctx context.Context, credential models.CredentialRecord) error
	FindByID(ctx context.Context, credentialID id.CredentialID) (models.CredentialRecord, error)
}
