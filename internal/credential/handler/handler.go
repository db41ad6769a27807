package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"veritas/internal/credential/models"
	"veritas/internal/credential/service"
	"veritas/internal/platform/middleware"
	id "veritas/pkg/domain"
	dErrors "veritas/pkg/domain-errors"
	"veritas/pkg/platform/httputil"
)

const tenantHeader = "X-Tenant-ID"

// Service defines the credential operations used by the handler.
type Service interface {
	Issue(ctx context.Context, input service.IssueInput) (*service.IssueResult, error)
	Get(ctx context.Context, tenantID id.TenantID, credentialID id.CredentialID) (*models.CredentialRecord, error)
}

// Handler wires credential endpoints to the credential service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a credential handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts credential endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/credentials", h.HandleIssue)
	r.Get("/credentials/{credentialID}", h.HandleGet)
}

// IssueRequest is the request body for credential issuance.
type IssueRequest struct {
	SubjectDID string         `json:"subject_did"`
	IssuerDID  string         `json:"issuer_did"`
	Claims     map[string]any `json:"claims"`
	ExpiresAt  string         `json:"expires_at,omitempty"`
}

// Validate requires the DID pair and claims.
func (r *IssueRequest) Validate() error {
	if r.SubjectDID == "" || r.IssuerDID == "" {
		return dErrors.New(dErrors.CodeValidation, "subject_did and issuer_did are required")
	}
	if len(r.Claims) == 0 {
		return dErrors.New(dErrors.CodeValidation, "claims must not be empty")
	}
	if r.ExpiresAt != "" {
		if _, err := time.Parse(time.RFC3339, r.ExpiresAt); err != nil {
			return dErrors.New(dErrors.CodeValidation, "expires_at must be RFC 3339")
		}
	}
	return nil
}

type credentialView struct {
	CredentialID string         `json:"credential_id"`
	SubjectDID   string         `json:"subject_did"`
	IssuerDID    string         `json:"issuer_did"`
	Claims       map[string]any `json:"claims"`
	IssuedAt     string         `json:"issued_at"`
	ExpiresAt    string         `json:"expires_at,omitempty"`
}

type issueResponse struct {
	credentialView
	StatusList *statusAssignment `json:"status_list,omitempty"`
}

type statusAssignment struct {
	ListID string `json:"list_id"`
	Index  int    `json:"index"`
}

// HandleIssue stores a new credential and enrolls it for status tracking.
func (h *Handler) HandleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[IssueRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	tenantID, err := tenantFromHeader(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var expiresAt time.Time
	if req.ExpiresAt != "" {
		expiresAt, _ = time.Parse(time.RFC3339, req.ExpiresAt)
	}

	result, err := h.service.Issue(ctx, service.IssueInput{
		TenantID:   tenantID,
		SubjectDID: req.SubjectDID,
		IssuerDID:  req.IssuerDID,
		Claims:     req.Claims,
		ExpiresAt:  expiresAt,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "credential issuance failed",
			"error", err,
			"request_id", requestID,
		)
		httputil.WriteError(w, err)
		return
	}

	response := issueResponse{credentialView: toView(&result.Credential)}
	if result.Status != nil {
		response.StatusList = &statusAssignment{
			ListID: result.Status.ListID.String(),
			Index:  result.Status.Index,
		}
	}
	httputil.WriteJSON(w, http.StatusCreated, response)
}

// HandleGet returns a stored credential, tenant-scoped.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	credentialID, err := id.ParseCredentialID(chi.URLParam(r, "credentialID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	tenantID, err := tenantFromHeader(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	record, err := h.service.Get(ctx, tenantID, credentialID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toView(record))
}

func tenantFromHeader(r *http.Request) (id.TenantID, error) {
	raw := r.Header.Get(tenantHeader)
	if raw == "" {
		return id.TenantID{}, nil
	}
	return id.ParseTenantID(raw)
}

func toView(record *models.CredentialRecord) credentialView {
	view := credentialView{
		CredentialID: record.ID.String(),
		SubjectDID:   record.SubjectDID,
		IssuerDID:    record.IssuerDID,
		Claims:       record.Claims,
		IssuedAt:     record.IssuedAt.UTC().Format(time.RFC3339),
	}
	if !record.ExpiresAt.IsZero() {
		view.ExpiresAt = record.ExpiresAt.UTC().Format(time.RFC3339)
	}
	return view
}
