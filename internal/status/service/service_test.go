package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"veritas/internal/status/store"
	id "veritas/pkg/domain"
	dErrors "veritas/pkg/domain-errors"
	"veritas/pkg/platform/audit"
)

type ServiceSuite struct {
	suite.Suite
	store   *store.InMemoryStore
	sink    *audit.InMemorySink
	service *Service
}

func (s *ServiceSuite) SetupTest() {
	s.store = store.NewInMemoryStore()
	s.sink = audit.NewInMemorySink()
	auditor := newSyncPublisher(s.sink)
	s.service = NewService(s.store, 8, WithAuditor(auditor))
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) TestRegisterAllocatesSequentialIndexes() {
	ctx := context.Background()

	first, err := s.service.Register(ctx, id.NewCredentialID())
	s.Require().NoError(err)
	second, err := s.service.Register(ctx, id.NewCredentialID())
	s.Require().NoError(err)

	s.Equal(first.ListID, second.ListID)
	s.Equal(0, first.Index)
	s.Equal(1, second.Index)
}

func (s *ServiceSuite) TestRegisterIsIdempotent() {
	ctx := context.Background()
	credID := id.NewCredentialID()

	first, err := s.service.Register(ctx, credID)
	s.Require().NoError(err)
	again, err := s.service.Register(ctx, credID)
	s.Require().NoError(err)

	s.Equal(first, again)
}

func (s *ServiceSuite) TestListRolloverAtCapacity() {
	ctx := context.Background()

	var lastListID id.StatusListID
	for range 8 {
		result, err := s.service.Register(ctx, id.NewCredentialID())
		s.Require().NoError(err)
		lastListID = result.ListID
	}

	// Ninth registration rolls over to a fresh list at index 0.
	rolled, err := s.service.Register(ctx, id.NewCredentialID())
	s.Require().NoError(err)
	s.NotEqual(lastListID, rolled.ListID)
	s.Equal(0, rolled.Index)
}

func (s *ServiceSuite) TestRevokeFlipsBitAndRecomputesDigest() {
	ctx := context.Background()
	credID := id.NewCredentialID()

	reg, err := s.service.Register(ctx, credID)
	s.Require().NoError(err)

	before, err := s.service.GetList(ctx, reg.ListID)
	s.Require().NoError(err)

	result, err := s.service.Revoke(ctx, credID, "compromised")
	s.Require().NoError(err)
	s.False(result.AlreadyRevoked)
	s.True(result.Entry.Revoked)

	after, err := s.service.GetList(ctx, reg.ListID)
	s.Require().NoError(err)
	s.Equal(1, after.RevokedCount)
	s.True(after.Bit(reg.Index))
	s.NotEqual(before.Digest, after.Digest)
	s.Equal(after.ComputeDigest(), after.Digest)
}

func (s *ServiceSuite) TestRevokeIsIdempotent() {
	ctx := context.Background()
	credID := id.NewCredentialID()

	reg, err := s.service.Register(ctx, credID)
	s.Require().NoError(err)

	_, err = s.service.Revoke(ctx, credID, "first")
	s.Require().NoError(err)
	after, err := s.service.GetList(ctx, reg.ListID)
	s.Require().NoError(err)

	second, err := s.service.Revoke(ctx, credID, "second")
	s.Require().NoError(err)
	s.True(second.AlreadyRevoked)

	unchanged, err := s.service.GetList(ctx, reg.ListID)
	s.Require().NoError(err)
	s.Equal(after.RevokedCount, unchanged.RevokedCount)
	s.Equal(after.Digest, unchanged.Digest)
}

func (s *ServiceSuite) TestRevokeUnregisteredCredential() {
	_, err := s.service.Revoke(context.Background(), id.NewCredentialID(), "unknown")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestIsRevoked() {
	ctx := context.Background()
	credID := id.NewCredentialID()

	_, err := s.service.Register(ctx, credID)
	s.Require().NoError(err)

	revoked, err := s.service.IsRevoked(ctx, credID)
	s.Require().NoError(err)
	s.False(revoked)

	_, err = s.service.Revoke(ctx, credID, "test")
	s.Require().NoError(err)

	revoked, err = s.service.IsRevoked(ctx, credID)
	s.Require().NoError(err)
	s.True(revoked)
}

func (s *ServiceSuite) TestConcurrentRevocationsKeepDigestConsistent() {
	ctx := context.Background()

	credIDs := make([]id.CredentialID, 8)
	var listID id.StatusListID
	for i := range credIDs {
		credIDs[i] = id.NewCredentialID()
		reg, err := s.service.Register(ctx, credIDs[i])
		s.Require().NoError(err)
		listID = reg.ListID
	}

	var wg sync.WaitGroup
	for _, credID := range credIDs {
		wg.Go(func() {
			_, err := s.service.Revoke(ctx, credID, "bulk")
			s.NoError(err)
		})
	}
	wg.Wait()

	list, err := s.service.GetList(ctx, listID)
	s.Require().NoError(err)
	s.Equal(8, list.RevokedCount)
	s.Equal(list.ComputeDigest(), list.Digest)
	for i := range 8 {
		s.True(list.Bit(i))
	}
}

func (s *ServiceSuite) TestRevokeEmitsAuditEvent() {
	ctx := context.Background()
	credID := id.NewCredentialID()

	_, err := s.service.Register(ctx, credID)
	s.Require().NoError(err)
	_, err = s.service.Revoke(ctx, credID, "holder request")
	s.Require().NoError(err)

	events := s.sink.Events()
	s.Require().NotEmpty(events)
	last := events[len(events)-1]
	s.Equal(audit.ActionCredentialRevoked, last.Action)
	s.Equal("holder request", last.Reason)
}

func (s *ServiceSuite) TestClockInjection() {
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := NewService(s.store, 8, WithClock(func() time.Time { return fixed }))

	reg, err := svc.Register(context.Background(), id.NewCredentialID())
	s.Require().NoError(err)

	list, err := svc.GetList(context.Background(), reg.ListID)
	s.Require().NoError(err)
	s.Equal(fixed, list.UpdatedAt)
}

// syncPublisher wraps a sink with the AuditPublisher interface without the
// async machinery, keeping test assertions deterministic.
type syncPublisher struct {
	sink audit.Sink
}

func newSyncPublisher(sink audit.Sink) *syncPublisher {
	return &syncPublisher{sink: sink}
}

func (p *syncPublisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	return p.sink.Append(ctx, event)
}
