package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"veritas/internal/platform/config"
	"veritas/internal/verification/models"
)

func newPolicy() *Policy {
	return New(config.RiskConfig{SuspiciousAt: 20, FailedAt: 50})
}

func TestClassifyBands(t *testing.T) {
	p := newPolicy()

	assert.Equal(t, models.TrustVerified, p.Classify(0))
	assert.Equal(t, models.TrustVerified, p.Classify(19))
	assert.Equal(t, models.TrustSuspicious, p.Classify(20))
	assert.Equal(t, models.TrustSuspicious, p.Classify(49))
	assert.Equal(t, models.TrustFailed, p.Classify(50))
	assert.Equal(t, models.TrustFailed, p.Classify(500))
}

func TestDeltaPerOutcome(t *testing.T) {
	p := newPolicy()

	assert.Equal(t, 0, p.Delta(models.CheckRevocation, models.CheckPassed))
	assert.Equal(t, 10, p.Delta(models.CheckAnchor, models.CheckWarning))
	assert.Equal(t, 5, p.Delta(models.CheckDID, models.CheckSkipped))
	assert.Equal(t, 70, p.Delta(models.CheckRevocation, models.CheckFailed))
	assert.Equal(t, 100, p.Delta(models.CheckParse, models.CheckFailed))
}

func TestRevokedCredentialFailsOutright(t *testing.T) {
	p := newPolicy()
	score := p.Delta(models.CheckRevocation, models.CheckFailed)
	assert.Equal(t, models.TrustFailed, p.Classify(score))
}

func TestSingleWarningStaysVerified(t *testing.T) {
	p := newPolicy()
	score := p.Delta(models.CheckAnchor, models.CheckWarning)
	assert.Equal(t, models.TrustVerified, p.Classify(score))
}
