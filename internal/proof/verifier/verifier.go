// Package verifier validates proof envelopes against the canonical hash
// rules and the replay guard.
package verifier

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	proofcontract "veritas/contracts/proof"
	"veritas/internal/canonical"
	"veritas/internal/proof/metrics"
	"veritas/internal/proof/models"
	"veritas/internal/proof/replay"
	"veritas/internal/proof/service"
	"veritas/pkg/platform/audit"
)

// maxProofBytes bounds the serialized proof payload. Oversized envelopes
// are rejected before any hashing happens.
const maxProofBytes = 64 * 1024

// AuditPublisher emits audit events for verification outcomes.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Option configures the verifier.
type Option func(*Verifier)

// Verifier checks proof envelopes. Invalid proofs come back as results
// carrying reason codes; an error return means infrastructure failed.
type Verifier struct {
	guard    replay.Guard
	guardTTL time.Duration
	metrics  *metrics.Metrics
	auditor  AuditPublisher
	logger   *slog.Logger
}

// New creates a proof verifier with the given replay guard and entry TTL.
func New(guard replay.Guard, guardTTL time.Duration, opts ...Option) *Verifier {
	v := &Verifier{guard: guard, guardTTL: guardTTL}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// WithLogger configures a logger for the verifier.
func WithLogger(logger *slog.Logger) Option {
	return func(v *Verifier) { v.logger = logger }
}

// WithMetrics configures Prometheus metrics for the verifier.
func WithMetrics(m *metrics.Metrics) Option {
	return func(v *Verifier) { v.metrics = m }
}

// WithAuditor configures an audit publisher for the verifier.
func WithAuditor(auditor AuditPublisher) Option {
	return func(v *Verifier) { v.auditor = auditor }
}

// Verify runs input validation, replay detection and the format-specific
// hash checks, in that order. Only a successful verification inserts the
// replay guard entry, so failed attempts never block a corrected retry.
func (v *Verifier) Verify(ctx context.Context, input models.VerifyInput) (*models.VerifyResult, error) {
	if result := validateInput(input); result != nil {
		return v.finish(ctx, input, result)
	}

	canonicalHash, err := canonical.Hash(input.Proof, canonical.AlgorithmSHA256, canonical.ModeStrict)
	if err != nil {
		// Canonicalization rejecting the payload is a permanent input
		// problem, not an infrastructure failure.
		return v.finish(ctx, input, models.Rejected(models.ReasonInputInvalid))
	}

	fingerprint := replay.Fingerprint(string(input.Format), canonicalHash, input.Challenge, input.Domain)
	seen, err := v.guard.Exists(ctx, fingerprint)
	if err != nil {
		return nil, err
	}
	if seen {
		v.blockReplay(ctx, input)
		return v.finish(ctx, input, models.Rejected(models.ReasonReplayDetected))
	}

	result := v.check(input)
	if !result.Valid {
		return v.finish(ctx, input, result)
	}

	inserted, err := v.guard.Add(ctx, fingerprint, v.guardTTL)
	if err != nil {
		return nil, err
	}
	if !inserted {
		// A concurrent identical request won the insert race.
		v.blockReplay(ctx, input)
		return v.finish(ctx, input, models.Rejected(models.ReasonReplayDetected))
	}

	return v.finish(ctx, input, result)
}

func (v *Verifier) check(input models.VerifyInput) *models.VerifyResult {
	switch input.Format {
	case proofcontract.FormatMerkleMembership:
		return checkMerkleMembership(input)
	case proofcontract.FormatJWTVP, proofcontract.FormatLDPVC, proofcontract.FormatLDPVP, proofcontract.FormatSDJWTVC:
		return checkCanonicalHash(input)
	default:
		return models.Rejected(models.ReasonUnsupportedFormat)
	}
}

// checkMerkleMembership recomputes the leaf hash and requires exact string
// equality on challenge and domain.
func checkMerkleMembership(input models.VerifyInput) *models.VerifyResult {
	var reasons []string

	leaf := map[string]any{
		"credential_id": stringField(input.Proof, "credential_id"),
		"claims_digest": stringField(input.Proof, "claims_digest"),
		"nonce":         stringField(input.Proof, "nonce"),
	}
	recomputed, err := canonical.Hash(leaf, canonical.AlgorithmSHA256, canonical.ModeStrict)
	if err != nil {
		return models.Rejected(models.ReasonInputInvalid)
	}
	if recomputed != stringField(input.Proof, "leaf_hash") {
		reasons = append(reasons, models.ReasonHashMismatch)
	}
	if stringField(input.Proof, "challenge") != input.Challenge ||
		stringField(input.Proof, "domain") != input.Domain {
		reasons = append(reasons, models.ReasonChallengeMismatch)
	}

	if len(reasons) > 0 {
		return models.Rejected(reasons...)
	}
	return models.Verified()
}

// checkCanonicalHash compares the strict canonical hash against the
// expected value, falling back to the legacy top-level hash for proofs
// issued before strict canonicalization existed.
func checkCanonicalHash(input models.VerifyInput) *models.VerifyResult {
	alg, err := canonical.ParseAlgorithm(input.HashAlgorithm)
	if err != nil {
		return models.Rejected(models.ReasonInputInvalid)
	}

	strict, err := canonical.Hash(input.Proof, alg, canonical.ModeStrict)
	if err != nil {
		return models.Rejected(models.ReasonInputInvalid)
	}
	if strict == input.ExpectedHash {
		return models.Verified()
	}

	legacy, err := canonical.Hash(input.Proof, alg, canonical.ModeLegacy)
	if err == nil && legacy == input.ExpectedHash {
		return models.Verified()
	}
	return models.Rejected(models.ReasonHashMismatch)
}

// validateInput fails fast on structural problems. Returns nil when the
// input may proceed to hashing.
func validateInput(input models.VerifyInput) *models.VerifyResult {
	if input.Format == "" || len(input.Proof) == 0 {
		return models.Rejected(models.ReasonInputInvalid)
	}
	if input.ExpectedIssuerDID != "" && !service.ValidDID(input.ExpectedIssuerDID) {
		return models.Rejected(models.ReasonInputInvalid)
	}

	encoded, err := json.Marshal(input.Proof)
	if err != nil || len(encoded) > maxProofBytes {
		return models.Rejected(models.ReasonInputInvalid)
	}

	switch input.Format {
	case proofcontract.FormatMerkleMembership:
		for _, field := range []string{"claims_digest", "nonce", "leaf_hash"} {
			if stringField(input.Proof, field) == "" {
				return models.Rejected(models.ReasonInputInvalid)
			}
		}
	case proofcontract.FormatJWTVP, proofcontract.FormatLDPVC, proofcontract.FormatLDPVP, proofcontract.FormatSDJWTVC:
		if input.ExpectedHash == "" {
			return models.Rejected(models.ReasonInputInvalid)
		}
	}
	return nil
}

func (v *Verifier) finish(ctx context.Context, input models.VerifyInput, result *models.VerifyResult) (*models.VerifyResult, error) {
	if v.metrics != nil {
		v.metrics.VerificationsTotal.WithLabelValues(string(input.Format), result.Code).Inc()
	}
	if v.auditor != nil && result.Code != models.ReasonReplayDetected {
		decision := "rejected"
		if result.Valid {
			decision = "verified"
		}
		v.emit(ctx, audit.Event{
			Action:   audit.ActionProofVerified,
			Subject:  string(input.Format),
			Decision: decision,
			Reason:   result.Code,
		})
	}
	return result, nil
}

func (v *Verifier) blockReplay(ctx context.Context, input models.VerifyInput) {
	if v.metrics != nil {
		v.metrics.ReplaysBlocked.Inc()
	}
	v.emit(ctx, audit.Event{
		Action:   audit.ActionProofReplayBlocked,
		Subject:  string(input.Format),
		Decision: "rejected",
		Reason:   models.ReasonReplayDetected,
	})
	if v.logger != nil {
		v.logger.WarnContext(ctx, "proof replay blocked", "format", input.Format)
	}
}

func (v *Verifier) emit(ctx context.Context, event audit.Event) {
	if v.auditor == nil {
		return
	}
	if err := v.auditor.Emit(ctx, event); err != nil && v.logger != nil {
		v.logger.ErrorContext(ctx, "failed to emit verification audit event", "error", err)
	}
}

// stringField reads a string member from a generic JSON object, returning
// "" when absent or of another type.
func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}
