package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"veritas/internal/anchor/ledger"
	"veritas/internal/anchor/merkle"
	"veritas/internal/anchor/metrics"
	"veritas/internal/anchor/models"
	"veritas/internal/anchor/store"
	id "veritas/pkg/domain"
	dErrors "veritas/pkg/domain-errors"
	"veritas/pkg/platform/audit"
	platformsync "veritas/pkg/platform/sync"
)

// AuditPublisher emits audit events for anchoring lifecycle actions.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// LeafHasher resolves a credential to its canonical claims digest, which
// becomes the batch's merkle leaf for that credential.
type LeafHasher interface {
	LeafHash(ctx context.Context, credentialID id.CredentialID) (string, error)
}

// RetryPolicy bounds ledger submission retries for a single anchoring run.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// ProofResult carries an inclusion path together with its batch context.
type ProofResult struct {
	Batch models.AnchorBatch
	Index int
	Steps []merkle.Step
}

// Option configures the anchor service.
type Option func(*Service)

// Service batches credential hashes under merkle roots and submits the
// roots to the ledger. Each batch has a single writer at a time, enforced
// through a sharded mutex keyed by batch ID, so the status transition and
// attempt accounting never interleave.
type Service struct {
	store       store.Store
	deadLetters store.DeadLetterStore
	ledger      ledger.Ledger
	hasher      LeafHasher
	retry       RetryPolicy
	locks       *platformsync.ShardedMutex
	metrics     *metrics.Metrics
	auditor     AuditPublisher
	logger      *slog.Logger
	now         func() time.Time
}

// NewService creates an anchoring service.
func NewService(st store.Store, dl store.DeadLetterStore, lg ledger.Ledger, hasher LeafHasher, retry RetryPolicy, opts ...Option) *Service {
	if retry.MaxAttempts < 1 {
		retry.MaxAttempts = 1
	}
	svc := &Service{
		store:       st,
		deadLetters: dl,
		ledger:      lg,
		hasher:      hasher,
		retry:       retry,
		locks:       platformsync.NewShardedMutex(),
		now:         time.Now,
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

// CreateBatch hashes each credential's canonical claims, builds the merkle
// tree over the digests in the given order and persists the batch as
// pending. Submission to the ledger happens separately so callers are never
// blocked on ledger latency.
func (s *Service) CreateBatch(ctx context.Context, credentialIDs []id.CredentialID) (*models.AnchorBatch, error) {
	if len(credentialIDs) == 0 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "batch requires at least one credential")
	}
	seen := make(map[id.CredentialID]struct{}, len(credentialIDs))
	for _, cid := range credentialIDs {
		if cid.IsNil() {
			return nil, dErrors.New(dErrors.CodeBadRequest, "credential_id is required")
		}
		if _, dup := seen[cid]; dup {
			return nil, dErrors.New(dErrors.CodeBadRequest, "duplicate credential in batch: "+cid.String())
		}
		seen[cid] = struct{}{}
	}

	leaves := make([]string, len(credentialIDs))
	for i, cid := range credentialIDs {
		leaf, err := s.hasher.LeafHash(ctx, cid)
		if err != nil {
			return nil, err
		}
		leaves[i] = leaf
	}

	tree, err := merkle.Build(leaves)
	if err != nil {
		return nil, err
	}

	now := s.now()
	batch := models.AnchorBatch{
		ID:            id.NewBatchID(),
		CredentialIDs: credentialIDs,
		LeafHashes:    leaves,
		MerkleRoot:    tree.Root(),
		Status:        models.StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.SaveBatch(ctx, batch); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "save anchor batch")
	}

	if s.metrics != nil {
		s.metrics.BatchesCreatedTotal.Inc()
	}
	s.emitAudit(ctx, batch.ID, audit.ActionBatchCreated, "created", "")
	if s.logger != nil {
		s.logger.InfoContext(ctx, "anchor batch created",
			"batch_id", batch.ID,
			"credentials", len(credentialIDs),
			"merkle_root", batch.MerkleRoot,
		)
	}
	return &batch, nil
}

// Anchor submits the batch's root to the ledger, retrying transient
// failures with exponential backoff up to the configured attempt budget.
// A permanent rejection or an exhausted budget moves the batch to the
// dead-letter queue. Anchoring an already anchored batch is a no-op.
func (s *Service) Anchor(ctx context.Context, batchID id.BatchID) (*models.AnchorBatch, error) {
	lockKey := "anchor:" + batchID.String()
	s.locks.Lock(lockKey)
	defer s.locks.Unlock(lockKey)

	batch, err := s.store.FindBatch(ctx, batchID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "anchor batch not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load anchor batch")
	}

	switch batch.Status {
	case models.StatusAnchored:
		return &batch, nil
	case models.StatusFailed:
		return nil, dErrors.New(dErrors.CodeConflict, "batch is dead-lettered; replay it to retry")
	}

	receipt, attempts, submitErr := s.submitWithRetry(ctx, batch.MerkleRoot)
	batch.AttemptCount += attempts
	batch.UpdatedAt = s.now()

	if submitErr != nil {
		batch.Status = models.StatusFailed
		if err := s.store.SaveBatch(ctx, batch); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "save failed batch")
		}
		entry := models.DeadLetterEntry{
			BatchID:      batch.ID,
			Reason:       submitErr.Error(),
			AttemptCount: batch.AttemptCount,
			FailedAt:     s.now(),
		}
		if err := s.deadLetters.Push(ctx, entry); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "push dead letter")
		}
		if s.metrics != nil {
			s.metrics.AnchorsTotal.WithLabelValues("dead_lettered").Inc()
			s.refreshDeadLetterDepth(ctx)
		}
		s.emitAudit(ctx, batch.ID, audit.ActionBatchDeadLettered, "failed", submitErr.Error())
		if s.logger != nil {
			s.logger.ErrorContext(ctx, "anchor batch dead-lettered",
				"batch_id", batch.ID,
				"attempts", batch.AttemptCount,
				"error", submitErr,
			)
		}
		return nil, dErrors.Wrap(submitErr, dErrors.CodeInternal, "anchor batch")
	}

	batch.Status = models.StatusAnchored
	batch.TxHash = receipt.TxHash
	batch.BlockNumber = receipt.BlockNumber
	if err := s.store.SaveBatch(ctx, batch); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "save anchored batch")
	}

	if s.metrics != nil {
		s.metrics.AnchorsTotal.WithLabelValues("anchored").Inc()
		s.metrics.SubmitAttempts.Observe(float64(attempts))
	}
	s.emitAudit(ctx, batch.ID, audit.ActionBatchAnchored, "anchored", batch.TxHash)
	if s.logger != nil {
		s.logger.InfoContext(ctx, "anchor batch anchored",
			"batch_id", batch.ID,
			"tx_hash", batch.TxHash,
			"block_number", batch.BlockNumber,
			"attempts", attempts,
		)
	}
	return &batch, nil
}

// Replay moves a dead-lettered batch back to pending and submits it again.
// The batch's cumulative attempt count carries over so operators can see
// its full submission history.
func (s *Service) Replay(ctx context.Context, batchID id.BatchID) (*models.AnchorBatch, error) {
	if _, err := s.deadLetters.Find(ctx, batchID); errors.Is(err, store.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "batch is not in the dead-letter queue")
	} else if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load dead letter")
	}

	lockKey := "anchor:" + batchID.String()
	s.locks.Lock(lockKey)
	batch, err := s.store.FindBatch(ctx, batchID)
	if err != nil {
		s.locks.Unlock(lockKey)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load anchor batch")
	}
	batch.Status = models.StatusPending
	batch.UpdatedAt = s.now()
	if err := s.store.SaveBatch(ctx, batch); err != nil {
		s.locks.Unlock(lockKey)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "reset batch status")
	}
	s.locks.Unlock(lockKey)

	if err := s.deadLetters.Remove(ctx, batchID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "remove dead letter")
	}
	if s.metrics != nil {
		s.metrics.AnchorsTotal.WithLabelValues("replayed").Inc()
		s.refreshDeadLetterDepth(ctx)
	}
	s.emitAudit(ctx, batchID, audit.ActionBatchReplayed, "replayed", "")

	return s.Anchor(ctx, batchID)
}

// GetBatch returns a batch by ID.
func (s *Service) GetBatch(ctx context.Context, batchID id.BatchID) (*models.AnchorBatch, error) {
	batch, err := s.store.FindBatch(ctx, batchID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "anchor batch not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load anchor batch")
	}
	return &batch, nil
}

// GetProof returns the merkle inclusion path for a credential from its most
// recent anchored batch. The tree is rebuilt from the stored leaf hashes;
// determinism of the build rule guarantees the same root.
func (s *Service) GetProof(ctx context.Context, credentialID id.CredentialID) (*ProofResult, error) {
	batch, err := s.store.FindBatchByCredential(ctx, credentialID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "credential is not part of any anchor batch")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load anchor batch")
	}
	if batch.Status != models.StatusAnchored {
		return nil, dErrors.New(dErrors.CodeConflict, "anchor batch is not anchored yet")
	}

	index := batch.LeafIndex(credentialID)
	if index < 0 {
		return nil, dErrors.New(dErrors.CodeInternal, "batch membership index missing")
	}
	tree, err := merkle.Build(batch.LeafHashes)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "rebuild merkle tree")
	}
	steps, err := tree.Proof(index)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "build inclusion proof")
	}
	return &ProofResult{Batch: batch, Index: index, Steps: steps}, nil
}

// PendingBatches lists batches that still await ledger submission.
func (s *Service) PendingBatches(ctx context.Context) ([]models.AnchorBatch, error) {
	batches, err := s.store.ListByStatus(ctx, models.StatusPending)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list pending batches")
	}
	return batches, nil
}

// DeadLetters lists the batches awaiting operator attention.
func (s *Service) DeadLetters(ctx context.Context) ([]models.DeadLetterEntry, error) {
	entries, err := s.deadLetters.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list dead letters")
	}
	return entries, nil
}

// submitWithRetry runs the ledger submission under the retry policy and
// reports how many attempts were consumed. Permanent errors stop retrying
// immediately.
func (s *Service) submitWithRetry(ctx context.Context, root string) (models.Receipt, int, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.retry.InitialBackoff
	bo.MaxInterval = s.retry.MaxBackoff

	var (
		receipt  models.Receipt
		attempts int
	)
	operation := func() error {
		attempts++
		r, err := s.ledger.SubmitRoot(ctx, root)
		if err != nil {
			if !dErrors.IsTransient(err) {
				return backoff.Permanent(err)
			}
			if s.logger != nil {
				s.logger.WarnContext(ctx, "ledger submission failed, will retry",
					"attempt", attempts,
					"error", err,
				)
			}
			return err
		}
		receipt = r
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(s.retry.MaxAttempts-1)), ctx)
	err := backoff.Retry(operation, policy)
	return receipt, attempts, err
}

func (s *Service) refreshDeadLetterDepth(ctx context.Context) {
	entries, err := s.deadLetters.List(ctx)
	if err != nil {
		return
	}
	s.metrics.DeadLetterDepth.Set(float64(len(entries)))
}

func (s *Service) emitAudit(ctx context.Context, batchID id.BatchID, action, decision, reason string) {
	if s.auditor == nil {
		return
	}
	event := audit.Event{
		Action:   action,
		Subject:  batchID.String(),
		Decision: decision,
		Reason:   reason,
	}
	if err := s.auditor.Emit(ctx, event); err != nil && s.logger != nil {
		s.logger.ErrorContext(ctx, "failed to emit anchor audit event",
			"error", err,
			"action", action,
			"batch_id", batchID,
		)
	}
}
