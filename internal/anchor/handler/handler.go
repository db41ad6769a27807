package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	proofcontract "veritas/contracts/proof"
	"veritas/internal/anchor/models"
	"veritas/internal/anchor/service"
	"veritas/internal/platform/middleware"
	id "veritas/pkg/domain"
	dErrors "veritas/pkg/domain-errors"
	"veritas/pkg/platform/httputil"
)

// Service defines the anchoring operations used by the handler.
type Service interface {
	CreateBatch(ctx context.Context, credentialIDs []id.CredentialID) (*models.AnchorBatch, error)
	GetBatch(ctx context.Context, batchID id.BatchID) (*models.AnchorBatch, error)
	Replay(ctx context.Context, batchID id.BatchID) (*models.AnchorBatch, error)
	GetProof(ctx context.Context, credentialID id.CredentialID) (*service.ProofResult, error)
	DeadLetters(ctx context.Context) ([]models.DeadLetterEntry, error)
}

// Handler wires anchoring endpoints to the anchor service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs an anchor handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts anchoring endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/anchors/batches", h.HandleCreateBatch)
	r.Get("/anchors/batches/{batchID}", h.HandleGetBatch)
	r.Post("/anchors/batches/{batchID}/replay", h.HandleReplay)
	r.Get("/anchors/dead-letters", h.HandleDeadLetters)
	r.Get("/anchors/proof/{credentialID}", h.HandleGetProof)
}

// CreateBatchRequest is the request body for batch creation.
type CreateBatchRequest struct {
	CredentialIDs []string `json:"credential_ids"`
}

// Validate requires a non-empty, bounded batch.
func (r *CreateBatchRequest) Validate() error {
	if len(r.CredentialIDs) == 0 {
		return dErrors.New(dErrors.CodeValidation, "credential_ids must not be empty")
	}
	if len(r.CredentialIDs) > 1024 {
		return dErrors.New(dErrors.CodeValidation, "credential_ids must not exceed 1024 entries")
	}
	return nil
}

// HandleCreateBatch creates a pending anchor batch from credential IDs.
func (h *Handler) HandleCreateBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CreateBatchRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	credentialIDs := make([]id.CredentialID, len(req.CredentialIDs))
	for i, raw := range req.CredentialIDs {
		cid, err := id.ParseCredentialID(raw)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		credentialIDs[i] = cid
	}

	batch, err := h.service.CreateBatch(ctx, credentialIDs)
	if err != nil {
		h.logger.WarnContext(ctx, "batch creation failed",
			"error", err,
			"request_id", requestID,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, proofcontract.CreateBatchResponse{
		BatchID:    batch.ID.String(),
		Status:     string(batch.Status),
		MerkleRoot: batch.MerkleRoot,
	})
}

// HandleGetBatch returns the batch's current anchoring state.
func (h *Handler) HandleGetBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	batchID, err := id.ParseBatchID(chi.URLParam(r, "batchID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	batch, err := h.service.GetBatch(ctx, batchID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, batchView(batch))
}

// HandleReplay resubmits a dead-lettered batch.
func (h *Handler) HandleReplay(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	batchID, err := id.ParseBatchID(chi.URLParam(r, "batchID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	batch, err := h.service.Replay(ctx, batchID)
	if err != nil {
		h.logger.WarnContext(ctx, "batch replay failed",
			"error", err,
			"batch_id", batchID,
			"request_id", requestID,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, batchView(batch))
}

// HandleDeadLetters lists batches awaiting operator attention.
func (h *Handler) HandleDeadLetters(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.DeadLetters(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	views := make([]deadLetterView, 0, len(entries))
	for _, entry := range entries {
		views = append(views, deadLetterView{
			BatchID:      entry.BatchID.String(),
			Reason:       entry.Reason,
			AttemptCount: entry.AttemptCount,
			FailedAt:     entry.FailedAt.UTC().Format(time.RFC3339),
		})
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"dead_letters": views})
}

// HandleGetProof returns the merkle inclusion path for an anchored credential.
func (h *Handler) HandleGetProof(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	credentialID, err := id.ParseCredentialID(chi.URLParam(r, "credentialID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.service.GetProof(ctx, credentialID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	steps := make([]proofcontract.ProofStep, len(result.Steps))
	for i, step := range result.Steps {
		steps[i] = proofcontract.ProofStep{Hash: step.Hash, Left: step.Left}
	}
	httputil.WriteJSON(w, http.StatusOK, proofcontract.AnchorProofResponse{
		BatchID: result.Batch.ID.String(),
		Root:    result.Batch.MerkleRoot,
		Proof:   steps,
	})
}

type batchViewBody struct {
	BatchID      string `json:"batch_id"`
	Status       string `json:"status"`
	MerkleRoot   string `json:"merkle_root"`
	TxHash       string `json:"tx_hash,omitempty"`
	BlockNumber  int64  `json:"block_number,omitempty"`
	AttemptCount int    `json:"attempt_count"`
	Credentials  int    `json:"credentials"`
}

type deadLetterView struct {
	BatchID      string `json:"batch_id"`
	Reason       string `json:"reason"`
	AttemptCount int    `json:"attempt_count"`
	FailedAt     string `json:"failed_at"`
}

func batchView(batch *models.AnchorBatch) batchViewBody {
	return batchViewBody{
		BatchID:      batch.ID.String(),
		Status:       string(batch.Status),
		MerkleRoot:   batch.MerkleRoot,
		TxHash:       batch.TxHash,
		BlockNumber:  batch.BlockNumber,
		AttemptCount: batch.AttemptCount,
		Credentials:  len(batch.CredentialIDs),
	}
}
