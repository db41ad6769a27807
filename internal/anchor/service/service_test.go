package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"veritas/internal/anchor/ledger/mocks"
	"veritas/internal/anchor/merkle"
	"veritas/internal/anchor/models"
	"veritas/internal/anchor/store"
	credmodels "veritas/internal/credential/models"
	credstore "veritas/internal/credential/store"
	id "veritas/pkg/domain"
	dErrors "veritas/pkg/domain-errors"
	"veritas/pkg/platform/audit"
)

type ServiceSuite struct {
	suite.Suite
	ctrl        *gomock.Controller
	ledger      *mocks.MockLedger
	store       *store.InMemoryStore
	deadLetters *store.InMemoryDeadLetter
	credentials *credstore.InMemoryStore
	sink        *audit.InMemorySink
	service     *Service
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.ledger = mocks.NewMockLedger(s.ctrl)
	s.store = store.NewInMemoryStore()
	s.deadLetters = store.NewInMemoryDeadLetter()
	s.credentials = credstore.NewInMemoryStore()
	s.sink = audit.NewInMemorySink()

	retry := RetryPolicy{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
	}
	s.service = NewService(s.store, s.deadLetters, s.ledger,
		NewCredentialHasher(s.credentials), retry,
		WithAuditor(newSyncPublisher(s.sink)),
	)
}

func (s *ServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) seedCredential(claims map[string]any) id.CredentialID {
	record := credmodels.CredentialRecord{
		ID:         id.NewCredentialID(),
		TenantID:   id.TenantID{},
		SubjectDID: "did:example:subject",
		IssuerDID:  "did:example:issuer",
		Claims:     claims,
		IssuedAt:   time.Now(),
	}
	s.Require().NoError(s.credentials.Save(context.Background(), record))
	return record.ID
}

func (s *ServiceSuite) seedCredentials(n int) []id.CredentialID {
	ids := make([]id.CredentialID, n)
	for i := range ids {
		ids[i] = s.seedCredential(map[string]any{"seq": float64(i)})
	}
	return ids
}

func (s *ServiceSuite) TestCreateBatchBuildsDeterministicRoot() {
	ctx := context.Background()
	ids := s.seedCredentials(3)

	batch, err := s.service.CreateBatch(ctx, ids)
	s.Require().NoError(err)

	s.Equal(models.StatusPending, batch.Status)
	s.Len(batch.LeafHashes, 3)
	s.NotEmpty(batch.MerkleRoot)
	s.Zero(batch.AttemptCount)

	tree, err := merkle.Build(batch.LeafHashes)
	s.Require().NoError(err)
	s.Equal(tree.Root(), batch.MerkleRoot)
}

func (s *ServiceSuite) TestCreateBatchRejectsEmptyAndDuplicates() {
	ctx := context.Background()

	_, err := s.service.CreateBatch(ctx, nil)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))

	cid := s.seedCredential(map[string]any{"a": float64(1)})
	_, err = s.service.CreateBatch(ctx, []id.CredentialID{cid, cid})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
}

func (s *ServiceSuite) TestCreateBatchUnknownCredential() {
	_, err := s.service.CreateBatch(context.Background(), []id.CredentialID{id.NewCredentialID()})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestAnchorSucceedsFirstAttempt() {
	ctx := context.Background()
	batch, err := s.service.CreateBatch(ctx, s.seedCredentials(2))
	s.Require().NoError(err)

	s.ledger.EXPECT().SubmitRoot(gomock.Any(), batch.MerkleRoot).
		Return(models.Receipt{TxHash: "0xabc", BlockNumber: 42}, nil)

	anchored, err := s.service.Anchor(ctx, batch.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusAnchored, anchored.Status)
	s.Equal("0xabc", anchored.TxHash)
	s.Equal(int64(42), anchored.BlockNumber)
	s.Equal(1, anchored.AttemptCount)
}

func (s *ServiceSuite) TestAnchorRetriesTransientFailures() {
	ctx := context.Background()
	batch, err := s.service.CreateBatch(ctx, s.seedCredentials(2))
	s.Require().NoError(err)

	transient := dErrors.New(dErrors.CodeTransient, "ledger rpc unreachable")
	gomock.InOrder(
		s.ledger.EXPECT().SubmitRoot(gomock.Any(), batch.MerkleRoot).Return(models.Receipt{}, transient),
		s.ledger.EXPECT().SubmitRoot(gomock.Any(), batch.MerkleRoot).Return(models.Receipt{}, transient),
		s.ledger.EXPECT().SubmitRoot(gomock.Any(), batch.MerkleRoot).
			Return(models.Receipt{TxHash: "0xdef", BlockNumber: 7}, nil),
	)

	anchored, err := s.service.Anchor(ctx, batch.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusAnchored, anchored.Status)
	s.Equal(3, anchored.AttemptCount)
}

func (s *ServiceSuite) TestAnchorDeadLettersAfterExhaustedBudget() {
	ctx := context.Background()
	batch, err := s.service.CreateBatch(ctx, s.seedCredentials(2))
	s.Require().NoError(err)

	transient := dErrors.New(dErrors.CodeTransient, "ledger rpc unreachable")
	s.ledger.EXPECT().SubmitRoot(gomock.Any(), batch.MerkleRoot).
		Return(models.Receipt{}, transient).Times(3)

	_, err = s.service.Anchor(ctx, batch.ID)
	s.Require().Error(err)

	failed, err := s.store.FindBatch(ctx, batch.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusFailed, failed.Status)
	s.Equal(3, failed.AttemptCount)

	entry, err := s.deadLetters.Find(ctx, batch.ID)
	s.Require().NoError(err)
	s.Equal(3, entry.AttemptCount)
	s.Contains(entry.Reason, "unreachable")
}

func (s *ServiceSuite) TestAnchorStopsOnPermanentError() {
	ctx := context.Background()
	batch, err := s.service.CreateBatch(ctx, s.seedCredentials(2))
	s.Require().NoError(err)

	permanent := dErrors.New(dErrors.CodePermanent, "ledger rejected root")
	s.ledger.EXPECT().SubmitRoot(gomock.Any(), batch.MerkleRoot).
		Return(models.Receipt{}, permanent).Times(1)

	_, err = s.service.Anchor(ctx, batch.ID)
	s.Require().Error(err)

	entry, err := s.deadLetters.Find(ctx, batch.ID)
	s.Require().NoError(err)
	s.Equal(1, entry.AttemptCount)
}

func (s *ServiceSuite) TestAnchorIsIdempotentOnceAnchored() {
	ctx := context.Background()
	batch, err := s.service.CreateBatch(ctx, s.seedCredentials(2))
	s.Require().NoError(err)

	s.ledger.EXPECT().SubmitRoot(gomock.Any(), batch.MerkleRoot).
		Return(models.Receipt{TxHash: "0xabc", BlockNumber: 1}, nil).Times(1)

	_, err = s.service.Anchor(ctx, batch.ID)
	s.Require().NoError(err)

	again, err := s.service.Anchor(ctx, batch.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusAnchored, again.Status)
	s.Equal(1, again.AttemptCount)
}

func (s *ServiceSuite) TestReplayPreservesAttemptCount() {
	ctx := context.Background()
	batch, err := s.service.CreateBatch(ctx, s.seedCredentials(2))
	s.Require().NoError(err)

	transient := dErrors.New(dErrors.CodeTransient, "ledger rpc unreachable")
	s.ledger.EXPECT().SubmitRoot(gomock.Any(), batch.MerkleRoot).
		Return(models.Receipt{}, transient).Times(3)
	_, err = s.service.Anchor(ctx, batch.ID)
	s.Require().Error(err)

	s.ledger.EXPECT().SubmitRoot(gomock.Any(), batch.MerkleRoot).
		Return(models.Receipt{TxHash: "0xbeef", BlockNumber: 99}, nil).Times(1)

	anchored, err := s.service.Replay(ctx, batch.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusAnchored, anchored.Status)
	s.Equal(4, anchored.AttemptCount, "replay continues the cumulative attempt count")

	_, err = s.deadLetters.Find(ctx, batch.ID)
	s.Require().ErrorIs(err, store.ErrNotFound)
}

func (s *ServiceSuite) TestReplayRequiresDeadLetter() {
	ctx := context.Background()
	batch, err := s.service.CreateBatch(ctx, s.seedCredentials(1))
	s.Require().NoError(err)

	_, err = s.service.Replay(ctx, batch.ID)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestGetProofVerifiesAgainstRoot() {
	ctx := context.Background()
	ids := s.seedCredentials(5)
	batch, err := s.service.CreateBatch(ctx, ids)
	s.Require().NoError(err)

	s.ledger.EXPECT().SubmitRoot(gomock.Any(), batch.MerkleRoot).
		Return(models.Receipt{TxHash: "0xabc", BlockNumber: 5}, nil)
	_, err = s.service.Anchor(ctx, batch.ID)
	s.Require().NoError(err)

	for i, cid := range ids {
		result, err := s.service.GetProof(ctx, cid)
		s.Require().NoError(err)
		s.Equal(i, result.Index)
		s.True(merkle.VerifyProof(batch.LeafHashes[i], result.Steps, batch.MerkleRoot))
	}
}

func (s *ServiceSuite) TestGetProofBeforeAnchoringConflicts() {
	ctx := context.Background()
	ids := s.seedCredentials(2)
	_, err := s.service.CreateBatch(ctx, ids)
	s.Require().NoError(err)

	_, err = s.service.GetProof(ctx, ids[0])
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *ServiceSuite) TestAuditTrailCoversLifecycle() {
	ctx := context.Background()
	batch, err := s.service.CreateBatch(ctx, s.seedCredentials(1))
	s.Require().NoError(err)

	s.ledger.EXPECT().SubmitRoot(gomock.Any(), batch.MerkleRoot).
		Return(models.Receipt{TxHash: "0xabc", BlockNumber: 1}, nil)
	_, err = s.service.Anchor(ctx, batch.ID)
	s.Require().NoError(err)

	events := s.sink.Events()
	s.Require().Len(events, 2)
	s.Equal(audit.ActionBatchCreated, events[0].Action)
	s.Equal(audit.ActionBatchAnchored, events[1].Action)
	s.Equal(batch.ID.String(), events[1].Subject)
}

// syncPublisher adapts a sink to AuditPublisher without the async machinery,
// keeping test assertions deterministic.
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
