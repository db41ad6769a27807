// Package engine runs the multi-stage credential verification pipeline.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"veritas/internal/anchor/merkle"
	anchorservice "veritas/internal/anchor/service"
	credmodels "veritas/internal/credential/models"
	credstore "veritas/internal/credential/store"
	"veritas/internal/proof/service"
	"veritas/internal/verification/issuer"
	"veritas/internal/verification/metrics"
	"veritas/internal/verification/models"
	"veritas/internal/verification/policy"
	"veritas/internal/verification/resolver"
	id "veritas/pkg/domain"
	dErrors "veritas/pkg/domain-errors"
	"veritas/pkg/platform/audit"
)

// RevocationChecker is the read-only view of the status list service.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, credentialID id.CredentialID) (bool, error)
}

// AnchorProver is the read-only view of the anchor service.
type AnchorProver interface {
	GetProof(ctx context.Context, credentialID id.CredentialID) (*anchorservice.ProofResult, error)
}

// IssuerChecker queries the credential's issuer for revocation state.
type IssuerChecker interface {
	CheckStatus(ctx context.Context, baseURL string, credentialID id.CredentialID) (issuer.Status, error)
}

// AuditPublisher emits audit events for verification decisions.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Input identifies the credential to verify and optional proof material.
type Input struct {
	CredentialID  id.CredentialID
	ProofJWT      string
	IssuerBaseURL string
}

// Option configures the engine.
type Option func(*Engine)

// Engine runs the ordered pipeline Parse, Signature, DID Resolution,
// Expiration, Revocation, Anchor. Network stages degrade to warnings or
// skips; only an unparseable credential short-circuits.
type Engine struct {
	credentials credstore.Store
	revocations RevocationChecker
	anchors     AnchorProver
	issuer      IssuerChecker
	resolver    resolver.Resolver
	policy      *policy.Policy
	signingKey  []byte
	metrics     *metrics.Metrics
	auditor     AuditPublisher
	logger      *slog.Logger
	now         func() time.Time
}

// New creates a verification engine.
func New(
	credentials credstore.Store,
	revocations RevocationChecker,
	anchors AnchorProver,
	issuerClient IssuerChecker,
	didResolver resolver.Resolver,
	pol *policy.Policy,
	signingKey []byte,
	opts ...Option,
) *Engine {
	e := &Engine{
		credentials: credentials,
		revocations: revocations,
		anchors:     anchors,
		issuer:      issuerClient,
		resolver:    didResolver,
		policy:      pol,
		signingKey:  signingKey,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// WithLogger configures a logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithMetrics configures Prometheus metrics for the engine.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithAuditor configures an audit publisher for the engine.
func WithAuditor(auditor AuditPublisher) Option {
	return func(e *Engine) { e.auditor = auditor }
}

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// Verify runs the full pipeline and aggregates stage outcomes into a
// risk-scored trust decision.
func (e *Engine) Verify(ctx context.Context, input Input) (*models.Report, error) {
	tracer := otel.Tracer("verification.engine")
	ctx, span := tracer.Start(ctx, "engine.verify")
	defer span.End()
	started := e.now()

	credential, parseCheck := e.parse(ctx, input.CredentialID)
	if parseCheck.Status == models.CheckFailed {
		// An unparseable credential is the only short-circuit.
		report := e.aggregate(ctx, input.CredentialID, started, []models.CheckResult{parseCheck})
		span.SetAttributes(attribute.String("verification.status", string(report.Status)))
		return report, nil
	}

	signatureCheck := e.checkSignature(credential, input.ProofJWT)
	expirationCheck := e.checkExpiration(credential)

	// The remaining stages are independent network lookups; run them
	// concurrently and keep report ordering fixed afterwards.
	var didCheck, revocationCheck, anchorCheck models.CheckResult
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		didCheck = e.checkDID(gctx, credential)
		return nil
	})
	g.Go(func() error {
		revocationCheck = e.checkRevocation(gctx, credential, input.IssuerBaseURL)
		return nil
	})
	g.Go(func() error {
		anchorCheck = e.checkAnchor(gctx, credential.ID)
		return nil
	})
	g.Wait()

	checks := []models.CheckResult{
		parseCheck, signatureCheck, didCheck, expirationCheck, revocationCheck, anchorCheck,
	}
	report := e.aggregate(ctx, input.CredentialID, started, checks)
	span.SetAttributes(
		attribute.String("verification.status", string(report.Status)),
		attribute.Int("verification.risk_score", report.RiskScore),
	)
	return report, nil
}

func (e *Engine) parse(ctx context.Context, credentialID id.CredentialID) (*credmodels.CredentialRecord, models.CheckResult) {
	fail := func(message string) models.CheckResult {
		return models.CheckResult{
			Name:    models.CheckParse,
			Status:  models.CheckFailed,
			Message: message,
			Flags:   []string{models.FlagParseFailed},
		}
	}

	if credentialID.IsNil() {
		return nil, fail("credential_id is required")
	}
	record, err := e.credentials.FindByID(ctx, credentialID)
	if errors.Is(err, credstore.ErrNotFound) {
		return nil, fail("credential not found")
	}
	if err != nil {
		return nil, fail("credential could not be loaded")
	}
	if !service.ValidDID(record.IssuerDID) {
		return nil, fail("issuer DID is malformed")
	}
	if !service.ValidDID(record.SubjectDID) {
		return nil, fail("subject DID is malformed")
	}
	if len(record.Claims) == 0 {
		return nil, fail("credential carries no claims")
	}

	return &record, models.CheckResult{
		Name:    models.CheckParse,
		Status:  models.CheckPassed,
		Message: "credential is well-formed",
	}
}

func (e *Engine) checkSignature(credential *credmodels.CredentialRecord, proofJWT string) models.CheckResult {
	if proofJWT == "" {
		return models.CheckResult{
			Name:    models.CheckSignature,
			Status:  models.CheckSkipped,
			Message: "no proof token supplied",
		}
	}

	parsed, err := jwt.Parse(proofJWT, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method %s", t.Method.Alg())
		}
		return e.signingKey, nil
	})
	if err != nil || !parsed.Valid {
		return models.CheckResult{
			Name:    models.CheckSignature,
			Status:  models.CheckFailed,
			Message: "proof token signature is invalid",
			Flags:   []string{models.FlagSignatureInvalid},
		}
	}

	if claims, ok := parsed.Claims.(jwt.MapClaims); ok {
		if iss, _ := claims["iss"].(string); iss != "" && iss != credential.IssuerDID {
			return models.CheckResult{
				Name:    models.CheckSignature,
				Status:  models.CheckFailed,
				Message: "proof token issuer does not match the credential",
				Details: map[string]any{"token_issuer": iss},
				Flags:   []string{models.FlagSignatureInvalid},
			}
		}
	}
	return models.CheckResult{
		Name:    models.CheckSignature,
		Status:  models.CheckPassed,
		Message: "proof token signature verified",
	}
}

func (e *Engine) checkDID(ctx context.Context, credential *credmodels.CredentialRecord) models.CheckResult {
	err := e.resolver.Resolve(ctx, credential.IssuerDID)
	if err == nil {
		return models.CheckResult{
			Name:    models.CheckDID,
			Status:  models.CheckPassed,
			Message: "issuer DID resolved",
		}
	}
	if dErrors.IsTransient(err) {
		return models.CheckResult{
			Name:    models.CheckDID,
			Status:  models.CheckWarning,
			Message: "issuer DID resolution unavailable",
			Flags:   []string{models.FlagDIDUnresolved},
		}
	}
	return models.CheckResult{
		Name:    models.CheckDID,
		Status:  models.CheckFailed,
		Message: "issuer DID does not resolve",
		Flags:   []string{models.FlagDIDUnresolved},
	}
}

func (e *Engine) checkExpiration(credential *credmodels.CredentialRecord) models.CheckResult {
	if credential.ExpiresAt.IsZero() {
		return models.CheckResult{
			Name:    models.CheckExpiration,
			Status:  models.CheckPassed,
			Message: "credential does not expire",
		}
	}
	if credential.ExpiresAt.Before(e.now()) {
		return models.CheckResult{
			Name:    models.CheckExpiration,
			Status:  models.CheckFailed,
			Message: "credential expired " + credential.ExpiresAt.UTC().Format(time.RFC3339),
			Flags:   []string{models.FlagCredentialExpired},
		}
	}
	return models.CheckResult{
		Name:    models.CheckExpiration,
		Status:  models.CheckPassed,
		Message: "credential is within its validity window",
	}
}

// checkRevocation consults the local status list first, then the issuer
// when a base URL is known. A 404 from the issuer is a definitive failure,
// an unreachable issuer only degrades the check.
func (e *Engine) checkRevocation(ctx context.Context, credential *credmodels.CredentialRecord, issuerBaseURL string) models.CheckResult {
	revoked, err := e.revocations.IsRevoked(ctx, credential.ID)
	locallyKnown := err == nil
	if locallyKnown && revoked {
		return models.CheckResult{
			Name:    models.CheckRevocation,
			Status:  models.CheckFailed,
			Message: "credential is revoked",
			Flags:   []string{models.FlagCredentialRevoked},
		}
	}

	if issuerBaseURL != "" {
		status, issuerErr := e.issuer.CheckStatus(ctx, issuerBaseURL, credential.ID)
		switch {
		case issuerErr == nil && status.Revoked:
			return models.CheckResult{
				Name:    models.CheckRevocation,
				Status:  models.CheckFailed,
				Message: "issuer reports the credential as revoked",
				Details: map[string]any{"source": status.Source},
				Flags:   []string{models.FlagCredentialRevoked},
			}
		case issuerErr == nil:
			return models.CheckResult{
				Name:    models.CheckRevocation,
				Status:  models.CheckPassed,
				Message: "issuer confirms the credential is not revoked",
				Details: map[string]any{"source": status.Source},
				Flags:   []string{models.FlagRevocationConfirmed},
			}
		case errors.Is(issuerErr, issuer.ErrCredentialNotFound):
			return models.CheckResult{
				Name:    models.CheckRevocation,
				Status:  models.CheckFailed,
				Message: "issuer has no record of the credential",
				Flags:   []string{models.FlagIssuerCredentialMissing},
			}
		default:
			// Issuer unreachable: degrade, never abort.
			result := models.CheckResult{
				Name:    models.CheckRevocation,
				Status:  models.CheckWarning,
				Message: "issuer unreachable, using local status only",
			}
			if locallyKnown {
				result.Flags = []string{models.FlagRevocationConfirmed}
			}
			return result
		}
	}

	if locallyKnown {
		return models.CheckResult{
			Name:    models.CheckRevocation,
			Status:  models.CheckPassed,
			Message: "credential is not revoked",
			Flags:   []string{models.FlagRevocationConfirmed},
		}
	}
	return models.CheckResult{
		Name:    models.CheckRevocation,
		Status:  models.CheckSkipped,
		Message: "credential is not status-tracked and no issuer is known",
	}
}

// checkAnchor treats a missing anchor as a warning; an anchor whose
// inclusion path fails to reproduce the root is a hard failure.
func (e *Engine) checkAnchor(ctx context.Context, credentialID id.CredentialID) models.CheckResult {
	result, err := e.anchors.GetProof(ctx, credentialID)
	switch {
	case err == nil:
		if !verifyInclusion(result) {
			return models.CheckResult{
				Name:    models.CheckAnchor,
				Status:  models.CheckFailed,
				Message: "anchor inclusion proof does not reproduce the merkle root",
				Details: map[string]any{"batch_id": result.Batch.ID.String()},
				Flags:   []string{models.FlagAnchorInvalid},
			}
		}
		return models.CheckResult{
			Name:    models.CheckAnchor,
			Status:  models.CheckPassed,
			Message: "anchor inclusion proof verified",
			Details: map[string]any{
				"batch_id": result.Batch.ID.String(),
				"tx_hash":  result.Batch.TxHash,
			},
		}
	case dErrors.HasCode(err, dErrors.CodeNotFound), dErrors.HasCode(err, dErrors.CodeConflict):
		return models.CheckResult{
			Name:    models.CheckAnchor,
			Status:  models.CheckWarning,
			Message: "credential has no blockchain anchor",
			Flags:   []string{models.FlagNoBlockchainAnchor},
		}
	default:
		return models.CheckResult{
			Name:    models.CheckAnchor,
			Status:  models.CheckSkipped,
			Message: "anchor lookup unavailable",
		}
	}
}

func (e *Engine) aggregate(ctx context.Context, credentialID id.CredentialID, started time.Time, checks []models.CheckResult) *models.Report {
	score := 0
	var flags []string
	for i := range checks {
		checks[i].RiskDelta = e.policy.Delta(checks[i].Name, checks[i].Status)
		score += checks[i].RiskDelta
		flags = append(flags, checks[i].Flags...)
		if e.metrics != nil {
			e.metrics.CheckOutcomesTotal.WithLabelValues(checks[i].Name, string(checks[i].Status)).Inc()
		}
	}

	report := &models.Report{
		CredentialID: credentialID,
		Status:       e.policy.Classify(score),
		RiskScore:    score,
		RiskFlags:    flags,
		Checks:       checks,
		VerifiedAt:   e.now(),
	}

	if e.metrics != nil {
		e.metrics.VerificationsTotal.WithLabelValues(string(report.Status)).Inc()
		e.metrics.RiskScore.Observe(float64(score))
		e.metrics.PipelineDuration.Observe(e.now().Sub(started).Seconds())
	}
	if e.auditor != nil {
		event := audit.Event{
			Action:       audit.ActionProofVerified,
			CredentialID: credentialID,
			Decision:     string(report.Status),
			Reason:       fmt.Sprintf("risk_score=%d", score),
		}
		if err := e.auditor.Emit(ctx, event); err != nil && e.logger != nil {
			e.logger.ErrorContext(ctx, "failed to emit verification audit event", "error", err)
		}
	}
	if e.logger != nil {
		e.logger.InfoContext(ctx, "verification completed",
			"credential_id", credentialID,
			"status", report.Status,
			"risk_score", score,
		)
	}
	return report
}

func verifyInclusion(result *anchorservice.ProofResult) bool {
	if result.Index < 0 || result.Index >= len(result.Batch.LeafHashes) {
		return false
	}
	leaf := result.Batch.LeafHashes[result.Index]
	return merkle.VerifyProof(leaf, result.Steps, result.Batch.MerkleRoot)
}
