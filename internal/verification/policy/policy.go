// Package policy holds the risk scoring rules for the verification pipeline.
package policy

import (
	"veritas/internal/platform/config"
	"veritas/internal/verification/models"
)

// Weights assign the risk delta each stage contributes per outcome. Failed
// weights are per stage because a revoked credential is a much stronger
// signal than an unreachable resolver.
type Weights struct {
	Failed  map[string]int
	Warning int
	Skipped int
}

// DefaultWeights are used unless operators override scoring.
func DefaultWeights() Weights {
	return Weights{
		Failed: map[string]int{
			models.CheckParse:      100,
			models.CheckSignature:  60,
			models.CheckDID:        25,
			models.CheckExpiration: 35,
			models.CheckRevocation: 70,
			models.CheckAnchor:     40,
		},
		Warning: 10,
		Skipped: 5,
	}
}

// Policy classifies an aggregate risk score into a trust status using the
// configured band edges.
type Policy struct {
	weights      Weights
	suspiciousAt int
	failedAt     int
}

// New builds a policy from the risk band configuration.
func New(cfg config.RiskConfig) *Policy {
	return &Policy{
		weights:      DefaultWeights(),
		suspiciousAt: cfg.SuspiciousAt,
		failedAt:     cfg.FailedAt,
	}
}

// Delta returns the risk contribution of one stage outcome.
func (p *Policy) Delta(check string, status models.CheckStatus) int {
	switch status {
	case models.CheckFailed:
		return p.weights.Failed[check]
	case models.CheckWarning:
		return p.weights.Warning
	case models.CheckSkipped:
		return p.weights.Skipped
	default:
		return 0
	}
}

// Classify maps a score to a band. Scores below SuspiciousAt are verified,
// scores at or above FailedAt are failed.
func (p *Policy) Classify(score int) models.TrustStatus {
	switch {
	case score >= p.failedAt:
		return models.TrustFailed
	case score >= p.suspiciousAt:
		return models.TrustSuspicious
	default:
		return models.TrustVerified
	}
}
