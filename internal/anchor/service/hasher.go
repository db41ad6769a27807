package service

import (
	"context"
	"errors"

	"veritas/internal/canonical"
	credstore "veritas/internal/credential/store"
	id "veritas/pkg/domain"
	dErrors "veritas/pkg/domain-errors"
)

// CredentialHasher derives merkle leaves from stored credentials. The leaf
// is the strict canonical sha256 digest over the credential ID and its
// claims, so any later mutation of the claims breaks inclusion proofs.
type CredentialHasher struct {
	credentials credstore.Store
}

// NewCredentialHasher builds a LeafHasher over the credential store.
func NewCredentialHasher(credentials credstore.Store) *CredentialHasher {
	return &CredentialHasher{credentials: credentials}
}

func (h *CredentialHasher) LeafHash(ctx context.Context, credentialID id.CredentialID) (string, error) {
	record, err := h.credentials.FindByID(ctx, credentialID)
	if errors.Is(err, credstore.ErrNotFound) {
		return "", dErrors.New(dErrors.CodeNotFound, "credential not found: "+credentialID.String())
	}
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "load credential")
	}

	payload := map[string]any{
		"credential_id": record.ID.String(),
		"claims":        record.Claims,
	}
	digest, err := canonical.Hash(payload, canonical.AlgorithmSHA256, canonical.ModeStrict)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInvalidInput, "canonicalize credential claims")
	}
	return digest, nil
}
