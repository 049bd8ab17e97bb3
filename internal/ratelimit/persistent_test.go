package ratelimit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/campaign-dashboard/internal/client/localstore"
)

func openSnapshots(t *testing.T, path string) *localstore.Store {
	t.Helper()
	s, err := localstore.Open(path)
	require.NoError(t, err)
	return s
}

func TestPersistent_WindowSurvivesRestart(t *testing.T) {
	clock := newClock()
	path := filepath.Join(t.TempDir(), "storage.toml")
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		limiter := NewPersistent(CheckoutPolicy, openSnapshots(t, path), "checkout").WithClock(clock.Now)
		d, err := limiter.Allow(ctx, "u1")
		require.NoError(t, err)
		assert.True(t, d.Allowed, "request %d should pass", i)
		assert.Equal(t, i, d.Count)
	}

	limiter := NewPersistent(CheckoutPolicy, openSnapshots(t, path), "checkout").WithClock(clock.Now)
	d, err := limiter.Allow(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, clock.Now().Add(time.Minute), d.ResetAt.UTC())

	other, err := limiter.Allow(ctx, "u2")
	require.NoError(t, err)
	assert.True(t, other.Allowed, "limits are per actor")

	clock.Advance(61 * time.Second)
	d, err = limiter.Allow(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, d.Count)
}

func TestPersistent_CanceledContext(t *testing.T) {
	limiter := NewPersistent(CheckoutPolicy, openSnapshots(t, filepath.Join(t.TempDir(), "s.toml")), "checkout")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := limiter.Allow(ctx, "u1")
	require.ErrorIs(t, err, context.Canceled)
}
