package store

import (
	"context"
	"sort"
	"sync"

	"veritas/internal/anchor/models"
	id "veritas/pkg/domain"
)

// InMemoryStore is an in-memory implementation of Store for tests or local use.
type InMemoryStore struct {
	mu      sync.RWMutex
	batches map[string]models.AnchorBatch
	// byCredential maps a credential to the batches containing it, in
	// insertion order.
	byCredential map[string][]string
}

// NewInMemoryStore constructs an empty in-memory anchor store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		batches:      make(map[string]models.AnchorBatch),
		byCredential: make(map[string][]string),
	}
}

func (s *InMemoryStore) SaveBatch(_ context.Context, batch models.AnchorBatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := batch.ID.String()
	if _, exists := s.batches[key]; !exists {
		for _, cid := range batch.CredentialIDs {
			s.byCredential[cid.String()] = append(s.byCredential[cid.String()], key)
		}
	}
	s.batches[key] = cloneBatch(batch)
	return nil
}

func (s *InMemoryStore) FindBatch(_ context.Context, batchID id.BatchID) (models.AnchorBatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if batch, ok := s.batches[batchID.String()]; ok {
		return cloneBatch(batch), nil
	}
	return models.AnchorBatch{}, ErrNotFound
}

func (s *InMemoryStore) FindBatchByCredential(_ context.Context, credentialID id.CredentialID) (models.AnchorBatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := s.byCredential[credentialID.String()]
	if len(keys) == 0 {
		return models.AnchorBatch{}, ErrNotFound
	}
	return cloneBatch(s.batches[keys[len(keys)-1]]), nil
}

func (s *InMemoryStore) ListByStatus(_ context.Context, status models.BatchStatus) ([]models.AnchorBatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.AnchorBatch
	for _, batch := range s.batches {
		if batch.Status == status {
			out = append(out, cloneBatch(batch))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func cloneBatch(b models.AnchorBatch) models.AnchorBatch {
	out := b
	out.CredentialIDs = append([]id.CredentialID(nil), b.CredentialIDs...)
	out.LeafHashes = append([]string(nil), b.LeafHashes...)
	return out
}

// InMemoryDeadLetter is an in-memory DeadLetterStore.
type InMemoryDeadLetter struct {
	mu      sync.RWMutex
	entries map[string]models.DeadLetterEntry
	order   []string
}

// NewInMemoryDeadLetter constructs an empty in-memory dead-letter queue.
func NewInMemoryDeadLetter() *InMemoryDeadLetter {
	return &InMemoryDeadLetter{entries: make(map[string]models.DeadLetterEntry)}
}

func (s *InMemoryDeadLetter) Push(_ context.Context, entry models.DeadLetterEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := entry.BatchID.String()
	if _, exists := s.entries[key]; !exists {
		s.order = append(s.order, key)
	}
	s.entries[key] = entry
	return nil
}

func (s *InMemoryDeadLetter) Find(_ context.Context, batchID id.BatchID) (models.DeadLetterEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if entry, ok := s.entries[batchID.String()]; ok {
		return entry, nil
	}
	return models.DeadLetterEntry{}, ErrNotFound
}

func (s *InMemoryDeadLetter) Remove(_ context.Context, batchID id.BatchID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := batchID.String()
	if _, ok := s.entries[key]; !ok {
		return ErrNotFound
	}
	delete(s.entries, key)
	for i, k := range s.order {
		if k == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *InMemoryDeadLetter) List(_ context.Context) ([]models.DeadLetterEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.DeadLetterEntry, 0, len(s.order))
	for _, key := range s.order {
		out = append(out, s.entries[key])
	}
	return out, nil
}
