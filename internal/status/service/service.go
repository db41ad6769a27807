package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"veritas/internal/status/metrics"
	"veritas/internal/status/models"
	"veritas/internal/status/store"
	id "veritas/pkg/domain"
	dErrors "veritas/pkg/domain-errors"
	"veritas/pkg/platform/audit"
	platformsync "veritas/pkg/platform/sync"
)

// allocationKey serializes registrations, which mutate whichever list is
// active. Revocations lock on the entry's list ID instead, so revokes on
// different lists do not contend with registrations.
const allocationKey = "status:allocate"

// AuditPublisher emits audit events for status lifecycle actions.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Option configures the status service.
type Option func(*Service)

// Service manages bitstring revocation status lists. Per-list writes are
// serialized through a sharded mutex so a bit flip and its digest
// recomputation are atomic with respect to other writers of the same list.
type Service struct {
	store    store.Store
	capacity int
	locks    *platformsync.ShardedMutex
	metrics  *metrics.Metrics
	auditor  AuditPublisher
	logger   *slog.Logger
	now      func() time.Time
}

// NewService creates a status list service.
func NewService(st store.Store, capacity int, opts ...Option) *Service {
	svc := &Service{
		store:    st,
		capacity: capacity,
		locks:    platformsync.NewShardedMutex(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// WithLogger configures a logger for the service.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithMetrics configures Prometheus metrics for the service.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithAuditor configures an audit publisher for the service.
func WithAuditor(auditor AuditPublisher) Option {
	return func(s *Service) { s.auditor = auditor }
}

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Register allocates the next unused bit index in the active list for the
// credential. When the active list is full a new list is opened and the
// credential takes index 0 there. Registration is idempotent: an already
// registered credential returns its existing assignment.
func (s *Service) Register(ctx context.Context, credentialID id.CredentialID) (*models.RegistrationResult, error) {
	if credentialID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "credential_id is required")
	}

	// Fast path outside the allocation lock.
	if entry, err := s.store.FindEntry(ctx, credentialID); err == nil {
		return &models.RegistrationResult{ListID: entry.ListID, Index: entry.Index}, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "lookup status entry")
	}

	s.locks.Lock(allocationKey)
	defer s.locks.Unlock(allocationKey)

	// Re-check under the lock: a concurrent Register may have won.
	if entry, err := s.store.FindEntry(ctx, credentialID); err == nil {
		return &models.RegistrationResult{ListID: entry.ListID, Index: entry.Index}, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "lookup status entry")
	}

	list, err := s.activeListForAllocation(ctx)
	if err != nil {
		return nil, err
	}

	index := list.NextIndex
	list.NextIndex++
	list.UpdatedAt = s.now()
	if err := s.store.SaveList(ctx, list); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "save status list")
	}

	entry := models.StatusEntry{
		CredentialID: credentialID,
		ListID:       list.ID,
		Index:        index,
		UpdatedAt:    s.now(),
	}
	if err := s.store.SaveEntry(ctx, entry); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "save status entry")
	}

	if s.metrics != nil {
		s.metrics.RegistrationsTotal.Inc()
		s.metrics.ActiveListFill.Set(float64(list.NextIndex) / float64(list.Size))
	}
	s.emitAudit(ctx, credentialID, audit.ActionStatusRegistered, "registered", "")

	return &models.RegistrationResult{ListID: list.ID, Index: index}, nil
}

// Revoke flips the credential's bit, increments the revoked count, and
// recomputes the list digest. Revoking an already revoked credential is not
// an error: the existing state comes back with AlreadyRevoked set, and
// neither the count nor the digest changes.
func (s *Service) Revoke(ctx context.Context, credentialID id.CredentialID, reason string) (*models.RevocationResult, error) {
	if credentialID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "credential_id is required")
	}

	entry, err := s.store.FindEntry(ctx, credentialID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "credential is not registered for status tracking")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "lookup status entry")
	}

	listKey := entry.ListID.String()
	s.locks.Lock(listKey)
	defer s.locks.Unlock(listKey)

	// Re-read under the list lock so two concurrent revokes observe each
	// other's writes.
	entry, err = s.store.FindEntry(ctx, credentialID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "lookup status entry")
	}
	if entry.Revoked {
		if s.metrics != nil {
			s.metrics.RevocationsTotal.WithLabelValues("already_revoked").Inc()
		}
		return &models.RevocationResult{Entry: entry, AlreadyRevoked: true}, nil
	}

	list, err := s.store.FindList(ctx, entry.ListID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load status list")
	}

	list.SetBit(entry.Index)
	list.RevokedCount++
	list.UpdatedAt = s.now()
	list.Digest = list.ComputeDigest()
	if err := s.store.SaveList(ctx, list); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "save status list")
	}

	entry.Revoked = true
	entry.UpdatedAt = s.now()
	if err := s.store.SaveEntry(ctx, entry); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "save status entry")
	}

	if s.metrics != nil {
		s.metrics.RevocationsTotal.WithLabelValues("revoked").Inc()
	}
	s.emitAudit(ctx, credentialID, audit.ActionCredentialRevoked, "revoked", reason)

	return &models.RevocationResult{Entry: entry}, nil
}

// GetList returns the list for bit-exact external consumption.
func (s *Service) GetList(ctx context.Context, listID id.StatusListID) (*models.StatusList, error) {
	if listID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "list_id is required")
	}
	list, err := s.store.FindList(ctx, listID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "status list not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load status list")
	}
	return &list, nil
}

// IsRevoked reports the credential's revocation bit. Used by the
// verification engine as a read-only collaborator.
func (s *Service) IsRevoked(ctx context.Context, credentialID id.CredentialID) (bool, error) {
	entry, err := s.store.FindEntry(ctx, credentialID)
	if errors.Is(err, store.ErrNotFound) {
		return false, dErrors.New(dErrors.CodeNotFound, "credential is not registered for status tracking")
	}
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "lookup status entry")
	}
	return entry.Revoked, nil
}

// activeListForAllocation returns the active list, opening the first list or
// rolling over to a fresh one when the current list is at capacity. Caller
// must hold the allocation lock.
func (s *Service) activeListForAllocation(ctx context.Context) (models.StatusList, error) {
	list, err := s.store.ActiveList(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return s.openList(ctx)
	}
	if err != nil {
		return models.StatusList{}, dErrors.Wrap(err, dErrors.CodeInternal, "load active status list")
	}
	if list.Full() {
		return s.openList(ctx)
	}
	return list, nil
}

func (s *Service) openList(ctx context.Context) (models.StatusList, error) {
	list := models.NewStatusList(s.capacity, s.now())
	if err := s.store.SaveList(ctx, list); err != nil {
		return models.StatusList{}, dErrors.Wrap(err, dErrors.CodeInternal, "save new status list")
	}
	if err := s.store.SetActiveList(ctx, list.ID); err != nil {
		return models.StatusList{}, dErrors.Wrap(err, dErrors.CodeInternal, "activate new status list")
	}
	if s.metrics != nil {
		s.metrics.ListsOpenedTotal.Inc()
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "opened new status list",
			"list_id", list.ID,
			"capacity", list.Size,
		)
	}
	return list, nil
}

func (s *Service) emitAudit(ctx context.Context, credentialID id.CredentialID, action, decision, reason string) {
	if s.auditor == nil {
		return
	}
	event := audit.Event{
		Action:       action,
		CredentialID: credentialID,
		Decision:     decision,
		Reason:       reason,
	}
	if err := s.auditor.Emit(ctx, event); err != nil && s.logger != nil {
		s.logger.ErrorContext(ctx, "failed to emit status audit event",
			"error", err,
			"action", action,
			"credential_id", credentialID,
		)
	}
}
