// Package workers runs the background anchoring loop.
package workers

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"veritas/internal/anchor/service"
	dErrors "veritas/pkg/domain-errors"
)

const defaultConcurrency = 4

// BatchAnchorer periodically drains pending batches and submits them to the
// ledger. Per-batch write serialization lives in the service, so concurrent
// submissions of different batches are safe while the same batch is never
// anchored twice.
type BatchAnchorer struct {
	service     *service.Service
	interval    time.Duration
	concurrency int
	logger      *slog.Logger
}

// NewBatchAnchorer builds the anchoring worker.
func NewBatchAnchorer(svc *service.Service, interval time.Duration, logger *slog.Logger) *BatchAnchorer {
	return &BatchAnchorer{
		service:     svc,
		interval:    interval,
		concurrency: defaultConcurrency,
		logger:      logger,
	}
}

// Run blocks until the context is cancelled, draining pending batches on
// each tick.
func (w *BatchAnchorer) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.drain(ctx)
		}
	}
}

func (w *BatchAnchorer) drain(ctx context.Context) {
	tracer := otel.Tracer("anchor.worker")
	ctx, span := tracer.Start(ctx, "anchorer.drain")
	defer span.End()

	batches, err := w.service.PendingBatches(ctx)
	if err != nil {
		w.logger.ErrorContext(ctx, "failed to list pending batches", "error", err)
		return
	}
	if len(batches) == 0 {
		return
	}
	span.SetAttributes(attribute.Int("anchor.pending", len(batches)))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)
	for _, batch := range batches {
		g.Go(func() error {
			if _, err := w.service.Anchor(gctx, batch.ID); err != nil {
				// Dead-lettered batches surface through the queue and its
				// metrics; the worker only logs and moves on.
				if !dErrors.HasCode(err, dErrors.CodeConflict) {
					w.logger.ErrorContext(gctx, "background anchoring failed",
						"batch_id", batch.ID,
						"error", err,
					)
				}
			}
			return nil
		})
	}
	g.Wait()
}
