package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "veritas/pkg/domain-errors"
)

func TestParseCredentialID(t *testing.T) {
	raw := uuid.New().String()
	id, err := ParseCredentialID(raw)
	require.NoError(t, err)
	assert.Equal(t, raw, id.String())
	assert.False(t, id.IsNil())
}

func TestParseCredentialIDRejectsEmpty(t *testing.T) {
	_, err := ParseCredentialID("")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func TestParseBatchIDRejectsMalformed(t *testing.T) {
	_, err := ParseBatchID("not-a-uuid")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func TestNilUUIDParsesButIsNil(t *testing.T) {
	id, err := ParseStatusListID(uuid.Nil.String())
	require.NoError(t, err)
	assert.True(t, id.IsNil())
}

func TestNewIDsAreDistinct(t *testing.T) {
	assert.NotEqual(t, NewCredentialID(), NewCredentialID())
	assert.NotEqual(t, NewBatchID().String(), NewStatusListID().String())
}
