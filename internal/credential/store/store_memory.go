package store

import (
	"context"
	"sync"

	"veritas/internal/credential/models"
	id "veritas/pkg/domain"
)

// InMemoryStore is an in-memory implementation of Store for tests or local use.
// It is safe for concurrent access but does not persist across process restarts.
type InMemoryStore struct {
	mu          sync.RWMutex
	credentials map[string]models.CredentialRecord
}

// NewInMemoryStore constructs an empty in-memory credential store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{credentials: make(map[string]models.CredentialRecord)}
}

// Save stores or overwrites a credential record by ID.
func (s *InMemoryStore) Save(_ context.Context, credential models.CredentialRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credentials[credential.ID.String()] = credential
	return nil
}

// FindByID retrieves a credential record by ID or returns ErrNotFound.
func (s *InMemoryStore) FindByID(_ context.Context, credentialID id.CredentialID) (models.CredentialRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if record, ok := s.credentials[credentialID.String()]; ok {
		return record, nil
	}
	return models.CredentialRecord{}, ErrNotFound
}
