package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	err := New(CodeNotFound, "batch not found")

	var domainErr *Error
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, CodeNotFound, domainErr.Code)
	assert.Equal(t, "batch not found", err.Error())
}

func TestErrorMessageFallsBackToCode(t *testing.T) {
	err := &Error{Code: CodeConflict}
	assert.Equal(t, "conflict", err.Error())
}

func TestWrapPreservesExistingCode(t *testing.T) {
	inner := New(CodePermanent, "payload contains NaN at claims.score")
	wrapped := Wrap(inner, CodeInternal, "canonicalization failed")

	assert.True(t, HasCode(wrapped, CodePermanent))
	assert.False(t, HasCode(wrapped, CodeInternal))
	assert.Equal(t, "canonicalization failed", wrapped.Error())
	assert.ErrorIs(t, wrapped, inner)
}

func TestWrapPlainError(t *testing.T) {
	inner := fmt.Errorf("dial tcp: connection refused")
	wrapped := Wrap(inner, CodeTransient, "ledger rpc unreachable")

	assert.True(t, HasCode(wrapped, CodeTransient))
	assert.ErrorIs(t, wrapped, inner)
}

func TestIsMatchesByCode(t *testing.T) {
	a := New(CodeNotFound, "credential missing")
	b := New(CodeNotFound, "different message")

	assert.ErrorIs(t, a, b)
	assert.NotErrorIs(t, a, New(CodeForbidden, "credential missing"))
}

func TestHasCodeOnNonDomainError(t *testing.T) {
	assert.False(t, HasCode(errors.New("plain"), CodeInternal))
	assert.False(t, HasCode(nil, CodeInternal))
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(New(CodeTransient, "rpc timeout")))
	assert.True(t, IsTransient(New(CodeTimeout, "issuer deadline exceeded")))
	assert.False(t, IsTransient(New(CodePermanent, "bad payload")))
	assert.False(t, IsTransient(errors.New("plain")))
}
