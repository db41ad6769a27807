package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	proofcontract "veritas/contracts/proof"
	"veritas/internal/platform/middleware"
	"veritas/internal/proof/models"
	id "veritas/pkg/domain"
	dErrors "veritas/pkg/domain-errors"
	"veritas/pkg/platform/httputil"
)

// tenantHeader scopes credential lookups during generation.
const tenantHeader = "X-Tenant-ID"

// Generator defines the proof generation operation used by the handler.
type Generator interface {
	GenerateProof(ctx context.Context, tenantID id.TenantID, input models.GenerateInput) (*models.GenerationResult, error)
}

// VerifierService defines the proof verification operation used by the handler.
type VerifierService interface {
	Verify(ctx context.Context, input models.VerifyInput) (*models.VerifyResult, error)
}

// Handler wires proof endpoints to the generation service and verifier.
type Handler struct {
	generator Generator
	verifier  VerifierService
	logger    *slog.Logger
}

// New constructs a proof handler with its dependencies.
func New(generator Generator, verifier VerifierService, logger *slog.Logger) *Handler {
	return &Handler{generator: generator, verifier: verifier, logger: logger}
}

// Register mounts proof endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/proofs/generate", h.HandleGenerate)
	r.Post("/proofs/verify", h.HandleVerify)
}

// GenerateProofRequest is the request body for proof generation.
type GenerateProofRequest struct {
	proofcontract.GenerateRequest
}

// Validate requires a format and bounds free-text fields.
func (r *GenerateProofRequest) Validate() error {
	if r.Format == "" {
		return dErrors.New(dErrors.CodeValidation, "format is required")
	}
	if len(r.Challenge) > 256 || len(r.Domain) > 256 || len(r.Nonce) > 256 {
		return dErrors.New(dErrors.CodeValidation, "challenge, domain and nonce must be at most 256 characters")
	}
	return nil
}

// HandleGenerate produces a proof envelope. Unsupported formats return 202
// with an unsupported status rather than an error.
func (h *Handler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[GenerateProofRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	var tenantID id.TenantID
	if raw := r.Header.Get(tenantHeader); raw != "" {
		parsed, err := id.ParseTenantID(raw)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		tenantID = parsed
	}

	result, err := h.generator.GenerateProof(ctx, tenantID, models.GenerateInput{
		Format:       proofcontract.Format(req.Format),
		CredentialID: req.CredentialID,
		SubjectDID:   req.SubjectDID,
		IssuerDID:    req.IssuerDID,
		Challenge:    req.Challenge,
		Domain:       req.Domain,
		ClaimsDigest: req.ClaimsDigest,
		Nonce:        req.Nonce,
		Claims:       req.Claims,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "proof generation failed",
			"error", err,
			"format", req.Format,
			"request_id", requestID,
		)
		writeGenerateError(w, err)
		return
	}

	status := http.StatusOK
	if result.Status == proofcontract.GenerationStatusUnsupported {
		status = http.StatusAccepted
	}
	httputil.WriteJSON(w, status, proofcontract.GenerateResponse{
		Status:       string(result.Status),
		Code:         result.Code,
		Format:       string(result.Format),
		ProofPayload: result.ProofPayload,
		LeafHash:     result.LeafHash,
		Challenge:    result.Challenge,
		Domain:       result.Domain,
		IssuerDID:    result.IssuerDID,
		SubjectDID:   result.SubjectDID,
	})
}

// VerifyProofRequest is the request body for proof verification.
type VerifyProofRequest struct {
	proofcontract.VerifyRequest
}

// Validate requires a format and a proof body. Deeper structural checks are
// the verifier's job so they surface as reason codes, not HTTP errors.
func (r *VerifyProofRequest) Validate() error {
	if r.Format == "" {
		return dErrors.New(dErrors.CodeValidation, "format is required")
	}
	if r.Proof == nil {
		return dErrors.New(dErrors.CodeValidation, "proof is required")
	}
	return nil
}

// HandleVerify checks a proof envelope. Replay rejections map to 409; all
// other negative outcomes are 200 responses with valid=false.
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[VerifyProofRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.verifier.Verify(ctx, models.VerifyInput{
		Format:            proofcontract.Format(req.Format),
		Proof:             req.Proof,
		Challenge:         req.Challenge,
		Domain:            req.Domain,
		ExpectedHash:      req.ExpectedHash,
		HashAlgorithm:     req.HashAlgorithm,
		ExpectedIssuerDID: req.ExpectedIssuerDID,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "proof verification failed",
			"error", err,
			"format", req.Format,
			"request_id", requestID,
		)
		httputil.WriteError(w, err)
		return
	}

	status := http.StatusOK
	if result.Code == models.ReasonReplayDetected {
		status = http.StatusConflict
	}
	httputil.WriteJSON(w, status, proofcontract.VerifyResponse{
		Valid:       result.Valid,
		Code:        result.Code,
		ReasonCodes: result.ReasonCodes,
	})
}

// writeGenerateError maps domain errors onto the proof wire code taxonomy.
func writeGenerateError(w http.ResponseWriter, err error) {
	switch {
	case dErrors.HasCode(err, dErrors.CodeNotFound):
		httputil.WriteJSON(w, http.StatusNotFound, map[string]string{
			"code":    models.ReasonCredentialNotFound,
			"message": "credential not found",
		})
	case dErrors.HasCode(err, dErrors.CodeForbidden):
		httputil.WriteJSON(w, http.StatusForbidden, map[string]string{
			"code":    models.ReasonForbidden,
			"message": "credential belongs to another tenant",
		})
	default:
		httputil.WriteError(w, err)
	}
}
