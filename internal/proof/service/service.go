package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	proofcontract "veritas/contracts/proof"
	"veritas/internal/canonical"
	credmodels "veritas/internal/credential/models"
	credstore "veritas/internal/credential/store"
	"veritas/internal/proof/metrics"
	"veritas/internal/proof/models"
	id "veritas/pkg/domain"
	dErrors "veritas/pkg/domain-errors"
)

const proofTokenTTL = 10 * time.Minute

// Option configures the proof service.
type Option func(*Service)

// Service generates proof envelopes over stored credentials or raw merkle
// leaves. Unsupported formats are an outcome, not an error.
type Service struct {
	credentials credstore.Store
	signingKey  []byte
	metrics     *metrics.Metrics
	logger      *slog.Logger
	now         func() time.Time
}

// NewService creates a proof generation service. The signing key backs the
// JWT based formats.
func NewService(credentials credstore.Store, signingKey []byte, opts ...Option) *Service {
	svc := &Service{
		credentials: credentials,
		signingKey:  signingKey,
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

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// GenerateProof builds a proof envelope for the requested format. When a
// credential ID is given the credential must exist and belong to the
// requesting tenant.
func (s *Service) GenerateProof(ctx context.Context, tenantID id.TenantID, input models.GenerateInput) (*models.GenerationResult, error) {
	var credential *credmodels.CredentialRecord
	if input.CredentialID != "" {
		credentialID, err := id.ParseCredentialID(input.CredentialID)
		if err != nil {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "credential_id is not a valid UUID")
		}
		record, err := s.credentials.FindByID(ctx, credentialID)
		if errors.Is(err, credstore.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "credential not found")
		}
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load credential")
		}
		if !tenantID.IsNil() && record.TenantID != tenantID {
			return nil, dErrors.New(dErrors.CodeForbidden, "credential belongs to another tenant")
		}
		credential = &record
	}

	result, err := s.generate(ctx, input, credential)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.GenerationsTotal.WithLabelValues(string(result.Format), string(result.Status)).Inc()
	}
	return result, nil
}

func (s *Service) generate(ctx context.Context, input models.GenerateInput, credential *credmodels.CredentialRecord) (*models.GenerationResult, error) {
	switch input.Format {
	case proofcontract.FormatMerkleMembership:
		return s.generateMerkleMembership(input)
	case proofcontract.FormatJWTVP, proofcontract.FormatSDJWTVC:
		return s.generateJWT(ctx, input, credential)
	case proofcontract.FormatLDPVC, proofcontract.FormatLDPVP:
		return s.generateLinkedData(input, credential)
	default:
		return &models.GenerationResult{
			Status: proofcontract.GenerationStatusUnsupported,
			Code:   models.ReasonUnsupportedFormat,
			Format: input.Format,
		}, nil
	}
}

// generateMerkleMembership hashes the leaf payload with the strict mode so
// the verifier's recomputation is bit-exact.
func (s *Service) generateMerkleMembership(input models.GenerateInput) (*models.GenerationResult, error) {
	if input.ClaimsDigest == "" || input.Nonce == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "claims_digest and nonce are required for merkle-membership")
	}

	leaf := map[string]any{
		"credential_id": input.CredentialID,
		"claims_digest": input.ClaimsDigest,
		"nonce":         input.Nonce,
	}
	leafHash, err := canonical.Hash(leaf, canonical.AlgorithmSHA256, canonical.ModeStrict)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "canonicalize leaf payload")
	}

	return &models.GenerationResult{
		Status:   proofcontract.GenerationStatusGenerated,
		Format:   proofcontract.FormatMerkleMembership,
		LeafHash: leafHash,
		ProofPayload: map[string]any{
			"credential_id": input.CredentialID,
			"claims_digest": input.ClaimsDigest,
			"nonce":         input.Nonce,
			"leaf_hash":     leafHash,
			"challenge":     input.Challenge,
			"domain":        input.Domain,
		},
		Challenge:  input.Challenge,
		Domain:     input.Domain,
		IssuerDID:  input.IssuerDID,
		SubjectDID: input.SubjectDID,
	}, nil
}

type proofClaims struct {
	Claims map[string]any `json:"vc,omitempty"`
	Nonce  string         `json:"nonce,omitempty"`
	jwt.RegisteredClaims
}

func (s *Service) generateJWT(ctx context.Context, input models.GenerateInput, credential *credmodels.CredentialRecord) (*models.GenerationResult, error) {
	issuer, subject, claims := resolveSubjects(input, credential)
	now := s.now()

	registered := jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(proofTokenTTL)),
	}
	if input.Domain != "" {
		registered.Audience = []string{input.Domain}
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, proofClaims{
		Claims:           claims,
		Nonce:            input.Challenge,
		RegisteredClaims: registered,
	})
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "sign proof token")
	}

	if s.logger != nil {
		s.logger.DebugContext(ctx, "proof token issued",
			"format", input.Format,
			"issuer", issuer,
		)
	}
	return &models.GenerationResult{
		Status: proofcontract.GenerationStatusGenerated,
		Format: input.Format,
		ProofPayload: map[string]any{
			"jwt":  signed,
			"type": string(input.Format),
		},
		Challenge:  input.Challenge,
		Domain:     input.Domain,
		IssuerDID:  issuer,
		SubjectDID: subject,
	}, nil
}

func (s *Service) generateLinkedData(input models.GenerateInput, credential *credmodels.CredentialRecord) (*models.GenerationResult, error) {
	issuer, subject, claims := resolveSubjects(input, credential)

	document := map[string]any{
		"@context":          []any{"https://www.w3.org/ns/credentials/v2"},
		"type":              string(input.Format),
		"issuer":            issuer,
		"credentialSubject": claims,
	}
	digest, err := canonical.Hash(document, canonical.AlgorithmSHA256, canonical.ModeStrict)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "canonicalize credential document")
	}
	document["proof"] = map[string]any{
		"type":       "DataIntegrityProof",
		"created":    s.now().UTC().Format(time.RFC3339),
		"challenge":  input.Challenge,
		"domain":     input.Domain,
		"proofValue": digest,
	}

	return &models.GenerationResult{
		Status:       proofcontract.GenerationStatusGenerated,
		Format:       input.Format,
		ProofPayload: document,
		Challenge:    input.Challenge,
		Domain:       input.Domain,
		IssuerDID:    issuer,
		SubjectDID:   subject,
	}, nil
}

// resolveSubjects prefers stored credential fields over request echoes.
func resolveSubjects(input models.GenerateInput, credential *credmodels.CredentialRecord) (issuer, subject string, claims map[string]any) {
	issuer = input.IssuerDID
	subject = input.SubjectDID
	claims = input.Claims
	if credential != nil {
		if credential.IssuerDID != "" {
			issuer = credential.IssuerDID
		}
		if credential.SubjectDID != "" {
			subject = credential.SubjectDID
		}
		if len(credential.Claims) > 0 {
			claims = credential.Claims
		}
	}
	return issuer, subject, claims
}

// ValidDID is a cheap structural check shared with the verifier; a DID is
// "did:<method>:<suffix>" with non-empty method and suffix.
func ValidDID(did string) bool {
	parts := strings.SplitN(did, ":", 3)
	return len(parts) == 3 && parts[0] == "did" && parts[1] != "" && parts[2] != ""
}
