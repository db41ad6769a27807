package store

import (
	"context"
	"sync"

	"veritas/internal/status/models"
	id "veritas/pkg/domain"
)

// InMemoryStore is an in-memory implementation of Store for tests or local use.
type InMemoryStore struct {
	mu       sync.RWMutex
	lists    map[string]models.StatusList
	entries  map[string]models.StatusEntry
	activeID string
}

// NewInMemoryStore constructs an empty in-memory status store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		lists:   make(map[string]models.StatusList),
		entries: make(map[string]models.StatusEntry),
	}
}

func (s *InMemoryStore) SaveList(_ context.Context, list models.StatusList) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists[list.ID.String()] = list.Clone()
	return nil
}

func (s *InMemoryStore) FindList(_ context.Context, listID id.StatusListID) (models.StatusList, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if list, ok := s.lists[listID.String()]; ok {
		return list.Clone(), nil
	}
	return models.StatusList{}, ErrNotFound
}

func (s *InMemoryStore) ActiveList(_ context.Context) (models.StatusList, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.activeID == "" {
		return models.StatusList{}, ErrNotFound
	}
	if list, ok := s.lists[s.activeID]; ok {
		return list.Clone(), nil
	}
	return models.StatusList{}, ErrNotFound
}

func (s *InMemoryStore) SetActiveList(_ context.Context, listID id.StatusListID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeID = listID.String()
	return nil
}

func (s *InMemoryStore) SaveEntry(_ context.Context, entry models.StatusEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entry.CredentialID.String()] = entry
	return nil
}

func (s *InMemoryStore) FindEntry(_ context.Context, credentialID id.CredentialID) (models.StatusEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if entry, ok := s.entries[credentialID.String()]; ok {
		return entry, nil
	}
	return models.StatusEntry{}, ErrNotFound
}
