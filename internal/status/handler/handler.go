package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	proofcontract "veritas/contracts/proof"
	"veritas/internal/platform/middleware"
	"veritas/internal/status/models"
	id "veritas/pkg/domain"
	dErrors "veritas/pkg/domain-errors"
	"veritas/pkg/platform/httputil"
)

// Codes returned on the revocation wire contract.
const (
	codeRevoked        = "CREDENTIAL_REVOKED"
	codeAlreadyRevoked = "CREDENTIAL_ALREADY_REVOKED"
)

// Service defines the status operations used by the handler.
type Service interface {
	Revoke(ctx context.Context, credentialID id.CredentialID, reason string) (*models.RevocationResult, error)
	GetList(ctx context.Context, listID id.StatusListID) (*models.StatusList, error)
}

// Handler wires status list endpoints to the status service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a status handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts status endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/credentials/{credentialID}/revoke", h.HandleRevoke)
	r.Get("/status-lists/{listID}", h.HandleGetList)
}

// RevokeRequest is the request body for credential revocation.
type RevokeRequest struct {
	Reason string `json:"reason"`
}

// Validate bounds the free-text reason.
func (r *RevokeRequest) Validate() error {
	if len(r.Reason) > 500 {
		return dErrors.New(dErrors.CodeValidation, "reason must be at most 500 characters")
	}
	return nil
}

// HandleRevoke revokes a credential's status bit.
func (h *Handler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	credentialID, err := id.ParseCredentialID(chi.URLParam(r, "credentialID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[RevokeRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.service.Revoke(ctx, credentialID, req.Reason)
	if err != nil {
		h.logger.WarnContext(ctx, "revocation failed",
			"error", err,
			"credential_id", credentialID,
			"request_id", requestID,
		)
		httputil.WriteError(w, err)
		return
	}

	code := codeRevoked
	if result.AlreadyRevoked {
		code = codeAlreadyRevoked
	}
	httputil.WriteJSON(w, http.StatusOK, proofcontract.RevokeResponse{
		StatusList: proofcontract.StatusEntry{
			ListID:  result.Entry.ListID.String(),
			Index:   result.Entry.Index,
			Revoked: result.Entry.Revoked,
		},
		Code: code,
	})
}

// HandleGetList exports a status list for bit-exact external consumption.
func (h *Handler) HandleGetList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	listID, err := id.ParseStatusListID(chi.URLParam(r, "listID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	list, err := h.service.GetList(ctx, listID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, proofcontract.StatusListExport{
		ID:           list.ID.String(),
		Type:         proofcontract.StatusListExportType,
		Bitstring:    list.EncodedBitstring(),
		Size:         list.Size,
		RevokedCount: list.RevokedCount,
		Digest:       list.Digest,
		UpdatedAt:    list.UpdatedAt.UTC().Format(time.RFC3339),
	})
}
