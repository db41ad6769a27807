package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"veritas/internal/credential/models"
	"veritas/internal/credential/store"
	statusmodels "veritas/internal/status/models"
	id "veritas/pkg/domain"
	dErrors "veritas/pkg/domain-errors"
)

// StatusRegistrar assigns a status list bit to newly issued credentials.
type StatusRegistrar interface {
	Register(ctx context.Context, credentialID id.CredentialID) (*statusmodels.RegistrationResult, error)
}

// Option configures the credential service.
type Option func(*Service)

// Service stores credential records and enrolls them for status tracking.
type Service struct {
	store     store.Store
	registrar StatusRegistrar
	logger    *slog.Logger
	now       func() time.Time
}

// NewService creates a credential service. The registrar may be nil when
// status tracking is not wanted.
func NewService(st store.Store, registrar StatusRegistrar, opts ...Option) *Service {
	svc := &Service{store: st, registrar: registrar, now: time.Now}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// WithLogger configures a logger for the service.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// IssueInput carries the fields for a new credential record.
type IssueInput struct {
	TenantID   id.TenantID
	SubjectDID string
	IssuerDID  string
	Claims     map[string]any
	ExpiresAt  time.Time
}

// IssueResult is the stored record plus its status assignment.
type IssueResult struct {
	Credential models.CredentialRecord
	Status     *statusmodels.RegistrationResult
}

// Issue persists a credential and registers it on the active status list.
func (s *Service) Issue(ctx context.Context, input IssueInput) (*IssueResult, error) {
	if input.SubjectDID == "" || input.IssuerDID == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "subject_did and issuer_did are required")
	}
	if len(input.Claims) == 0 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "claims must not be empty")
	}

	record := models.CredentialRecord{
		ID:         id.NewCredentialID(),
		TenantID:   input.TenantID,
		SubjectDID: input.SubjectDID,
		IssuerDID:  input.IssuerDID,
		Claims:     input.Claims,
		IssuedAt:   s.now(),
		ExpiresAt:  input.ExpiresAt,
	}
	if err := s.store.Save(ctx, record); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "save credential")
	}

	result := &IssueResult{Credential: record}
	if s.registrar != nil {
		registration, err := s.registrar.Register(ctx, record.ID)
		if err != nil {
			// The credential exists; status enrollment can be retried by
			// re-registering, so this degrades instead of failing issuance.
			if s.logger != nil {
				s.logger.ErrorContext(ctx, "status registration failed for new credential",
					"error", err,
					"credential_id", record.ID,
				)
			}
		} else {
			result.Status = registration
		}
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "credential issued",
			"credential_id", record.ID,
			"tenant_id", record.TenantID,
		)
	}
	return result, nil
}

// Get returns a credential by ID, scoped to the tenant when one is given.
func (s *Service) Get(ctx context.Context, tenantID id.TenantID, credentialID id.CredentialID) (*models.CredentialRecord, error) {
	record, err := s.store.FindByID(ctx, credentialID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "credential not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load credential")
	}
	if !tenantID.IsNil() && record.TenantID != tenantID {
		return nil, dErrors.New(dErrors.CodeForbidden, "credential belongs to another tenant")
	}
	return &record, nil
}
