package circuit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	b := New("issuer", WithFailureThreshold(3))

	assert.False(t, b.RecordFailure())
	assert.False(t, b.RecordFailure())
	assert.True(t, b.RecordFailure())
	assert.True(t, b.IsOpen())
}

func TestBreakerSuccessResetsFailureStreak(t *testing.T) {
	b := New("issuer", WithFailureThreshold(3))

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()
	assert.False(t, b.RecordFailure())
	assert.False(t, b.IsOpen())
}

func TestBreakerClosesAfterSuccessThreshold(t *testing.T) {
	b := New("issuer", WithFailureThreshold(1), WithSuccessThreshold(2))

	b.RecordFailure()
	assert.True(t, b.IsOpen())

	assert.False(t, b.RecordSuccess())
	assert.True(t, b.RecordSuccess())
	assert.False(t, b.IsOpen())
}

func TestBreakerStateChangeHook(t *testing.T) {
	var changes []StateChange
	b := New("ledger",
		WithFailureThreshold(1),
		WithSuccessThreshold(1),
		WithStateChangeHook(func(c StateChange) { changes = append(changes, c) }),
	)

	b.RecordFailure()
	b.RecordSuccess()

	assert.Equal(t, []StateChange{{Opened: true}, {Closed: true}}, changes)
}

func TestBreakerReset(t *testing.T) {
	b := New("issuer", WithFailureThreshold(1))
	b.RecordFailure()
	b.Reset()
	assert.False(t, b.IsOpen())
	assert.Equal(t, StateClosed, b.State())
}
