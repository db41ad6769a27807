package store

import (
	"context"

	"veritas/internal/status/models"
	id "veritas/pkg/domain"
	pkgerrors "veritas/pkg/domain-errors"
)

var (
	// ErrNotFound keeps storage-specific 404s consistent across implementations.
	ErrNotFound = pkgerrors.New(pkgerrors.CodeNotFound, "status record not found")
)

// Store persists status lists and per-credential entries.
//
// Implementations provide durability only; write serialization per list is
// enforced at the service layer, so stores may be simple.
type Store interface {
	SaveList(ctx context.Context, list models.StatusList) error
	FindList(ctx context.Context, listID id.StatusListID) (models.StatusList, error)
	// ActiveList returns the list currently accepting registrations, or
	// ErrNotFound when none exists yet.
	ActiveList(ctx context.Context) (models.StatusList, error)
	SetActiveList(ctx context.Context, listID id.StatusListID) error

	SaveEntry(ctx context.Context, entry models.StatusEntry) error
	FindEntry(ctx context.Context, credentialID id.CredentialID) (models.StatusEntry, error)
}
