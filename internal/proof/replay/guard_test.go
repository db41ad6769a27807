package replay

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGuard(now *time.Time) *InMemoryGuard {
	g := &InMemoryGuard{
		entries: make(map[string]time.Time),
		now:     func() time.Time { return *now },
		stop:    make(chan struct{}),
	}
	return g
}

func TestAddThenExists(t *testing.T) {
	now := time.Now()
	g := newTestGuard(&now)
	ctx := context.Background()

	exists, err := g.Exists(ctx, "fp")
	require.NoError(t, err)
	assert.False(t, exists)

	ok, err := g.Add(ctx, "fp", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	exists, err = g.Exists(ctx, "fp")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestAddIsCheckAndSet(t *testing.T) {
	now := time.Now()
	g := newTestGuard(&now)
	ctx := context.Background()

	ok, err := g.Add(ctx, "fp", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = g.Add(ctx, "fp", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second insert of a live fingerprint must lose")
}

func TestEntryExpiresAfterTTL(t *testing.T) {
	now := time.Now()
	g := newTestGuard(&now)
	ctx := context.Background()

	ok, err := g.Add(ctx, "fp", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	now = now.Add(2 * time.Minute)

	exists, err := g.Exists(ctx, "fp")
	require.NoError(t, err)
	assert.False(t, exists)

	ok, err = g.Add(ctx, "fp", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "expired fingerprint can be inserted again")
}

func TestFingerprintSeparatesFields(t *testing.T) {
	a := Fingerprint("jwt_vp", "abc", "ch", "dom")
	b := Fingerprint("jwt_vp", "abcch", "", "dom")
	assert.NotEqual(t, a, b)

	assert.Equal(t, a, Fingerprint("jwt_vp", "abc", "ch", "dom"), "deterministic")
}
