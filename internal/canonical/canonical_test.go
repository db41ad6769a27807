package canonical

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStrictSortsKeysRecursively(t *testing.T) {
	out, err := Canonicalize(map[string]any{
		"b": map[string]any{"y": float64(2), "x": float64(1)},
		"a": float64(1),
	}, ModeStrict)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1,"b":{"x":1,"y":2}}`, out)
}

func TestStrictPreservesArrayOrder(t *testing.T) {
	out, err := Canonicalize(map[string]any{
		"items": []any{float64(3), float64(1), float64(2)},
	}, ModeStrict)
	require.NoError(t, err)
	assert.Equal(t, `{"items":[3,1,2]}`, out)
}

func TestStrictHashInvariantUnderKeyReordering(t *testing.T) {
	a := map[string]any{
		"a": float64(1),
		"b": map[string]any{"y": float64(2), "x": float64(1)},
	}
	b := map[string]any{
		"b": map[string]any{"x": float64(1), "y": float64(2)},
		"a": float64(1),
	}

	ha, err := Hash(a, AlgorithmSHA256, ModeStrict)
	require.NoError(t, err)
	hb, err := Hash(b, AlgorithmSHA256, ModeStrict)
	require.NoError(t, err)
	assert.Equal(t, ha, hb)
	assert.Len(t, ha, 64)
}

func TestStrictRejectsNaN(t *testing.T) {
	_, err := Hash(map[string]any{"bad": math.NaN()}, AlgorithmSHA256, ModeStrict)
	require.Error(t, err)

	var pathErr *PathError
	require.True(t, errors.As(err, &pathErr))
	assert.Equal(t, "$.bad", pathErr.Path)
	assert.Contains(t, pathErr.Reason, "NaN")
}

func TestStrictRejectsInfinityInNestedArray(t *testing.T) {
	_, err := Canonicalize(map[string]any{
		"claims": map[string]any{"scores": []any{float64(1), math.Inf(1)}},
	}, ModeStrict)
	require.Error(t, err)

	var pathErr *PathError
	require.True(t, errors.As(err, &pathErr))
	assert.Equal(t, "$.claims.scores[1]", pathErr.Path)
}

func TestStrictRejectsOpaqueTypes(t *testing.T) {
	_, err := Canonicalize(map[string]any{"issued": time.Now()}, ModeStrict)
	require.Error(t, err)

	var pathErr *PathError
	require.True(t, errors.As(err, &pathErr))
	assert.Equal(t, "$.issued", pathErr.Path)
}

func TestLegacyToleratesNaN(t *testing.T) {
	hash, err := Hash(map[string]any{"bad": math.NaN()}, AlgorithmSHA256, ModeLegacy)
	require.NoError(t, err)
	assert.Len(t, hash, 64)

	// NaN degrades to null, the historical serializer behavior.
	out, err := Canonicalize(map[string]any{"bad": math.NaN()}, ModeLegacy)
	require.NoError(t, err)
	assert.Equal(t, `{"bad":null}`, out)
}

func TestStrictAndLegacyDiverge(t *testing.T) {
	// The legacy serializer HTML-escapes strings, so any payload carrying
	// markup-significant characters hashes differently under the two modes.
	payload := map[string]any{
		"claims": map[string]any{"name": "a<b"},
	}
	strict, err := Hash(payload, AlgorithmSHA256, ModeStrict)
	require.NoError(t, err)
	legacy, err := Hash(payload, AlgorithmSHA256, ModeLegacy)
	require.NoError(t, err)
	assert.NotEqual(t, strict, legacy)
}

func TestNumberFormatting(t *testing.T) {
	out, err := Canonicalize(map[string]any{
		"int":   float64(42),
		"frac":  1.5,
		"zero":  float64(0),
		"large": 1e21,
	}, ModeStrict)
	require.NoError(t, err)
	assert.Equal(t, `{"frac":1.5,"int":42,"large":1e+21,"zero":0}`, out)
}

func TestStringEscaping(t *testing.T) {
	out, err := Canonicalize(map[string]any{
		"s": "line1\nline2\t\"quoted\"",
		"u": "",
	}, ModeStrict)
	require.NoError(t, err)
	assert.Equal(t, `{"s":"line1\nline2\t\"quoted\"","u":""}`, out)
}

func TestHashStableAcrossCalls(t *testing.T) {
	payload := map[string]any{
		"credential_id": "0b9d4b3e-9c2f-4503-a37d-21b5f9f1f111",
		"claims":        map[string]any{"degree": "BSc", "year": float64(2024)},
	}
	first, err := Hash(payload, AlgorithmSHA256, ModeStrict)
	require.NoError(t, err)
	for range 10 {
		again, err := Hash(payload, AlgorithmSHA256, ModeStrict)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestKeccak256Digest(t *testing.T) {
	hash, err := Hash(map[string]any{"a": float64(1)}, AlgorithmKeccak256, ModeStrict)
	require.NoError(t, err)
	assert.Len(t, hash, 64)

	sha, err := Hash(map[string]any{"a": float64(1)}, AlgorithmSHA256, ModeStrict)
	require.NoError(t, err)
	assert.NotEqual(t, hash, sha)
}

func TestParseMode(t *testing.T) {
	mode, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeStrict, mode)

	mode, err = ParseMode("JCS-LIKE-V1")
	require.NoError(t, err)
	assert.Equal(t, ModeLegacy, mode)

	_, err = ParseMode("RFC8785-V2")
	assert.Error(t, err)
}

func TestParseAlgorithm(t *testing.T) {
	alg, err := ParseAlgorithm("")
	require.NoError(t, err)
	assert.Equal(t, AlgorithmSHA256, alg)

	alg, err = ParseAlgorithm("keccak256")
	require.NoError(t, err)
	assert.Equal(t, AlgorithmKeccak256, alg)

	_, err = ParseAlgorithm("md5")
	assert.Error(t, err)
}
