package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	proofcontract "veritas/contracts/proof"
	"veritas/internal/platform/middleware"
	"veritas/internal/verification/engine"
	"veritas/internal/verification/models"
	id "veritas/pkg/domain"
	dErrors "veritas/pkg/domain-errors"
	"veritas/pkg/platform/httputil"
)

// Engine defines the verification operation used by the handler.
type Engine interface {
	Verify(ctx context.Context, input engine.Input) (*models.Report, error)
}

// Handler wires the full-pipeline verification endpoint to the engine.
type Handler struct {
	engine Engine
	logger *slog.Logger
}

// New constructs a verification handler with its dependencies.
func New(eng Engine, logger *slog.Logger) *Handler {
	return &Handler{engine: eng, logger: logger}
}

// Register mounts the verification endpoint on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/verify", h.HandleVerify)
}

// VerifyRequest is the request body for full-pipeline verification.
type VerifyRequest struct {
	CredentialID  string `json:"credential_id"`
	ProofJWT      string `json:"proof_jwt,omitempty"`
	IssuerBaseURL string `json:"issuer_base_url,omitempty"`
}

// Validate requires a credential ID.
func (r *VerifyRequest) Validate() error {
	if r.CredentialID == "" {
		return dErrors.New(dErrors.CodeValidation, "credential_id is required")
	}
	return nil
}

// HandleVerify runs the verification pipeline and returns the risk-scored
// report. A failed trust status is still a 200: the report is the answer.
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[VerifyRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	credentialID, err := id.ParseCredentialID(req.CredentialID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	report, err := h.engine.Verify(ctx, engine.Input{
		CredentialID:  credentialID,
		ProofJWT:      req.ProofJWT,
		IssuerBaseURL: req.IssuerBaseURL,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "verification pipeline failed",
			"error", err,
			"credential_id", credentialID,
			"request_id", requestID,
		)
		httputil.WriteError(w, err)
		return
	}

	checks := make([]proofcontract.VerificationCheck, len(report.Checks))
	for i, check := range report.Checks {
		checks[i] = proofcontract.VerificationCheck{
			Name:    check.Name,
			Status:  string(check.Status),
			Message: check.Message,
			Details: check.Details,
		}
	}
	flags := report.RiskFlags
	if flags == nil {
		flags = []string{}
	}
	httputil.WriteJSON(w, http.StatusOK, proofcontract.VerificationReport{
		Status:    string(report.Status),
		Checks:    checks,
		RiskScore: report.RiskScore,
		RiskFlags: flags,
		Timestamp: report.VerifiedAt.UTC().Format(time.RFC3339),
	})
}
