package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(func() { mr.Close() })

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedis_FixedWindow(t *testing.T) {
	mr, client := setupRedis(t)
	limiter := NewRedis(client, CheckoutPolicy, "ratelimit:checkout:")
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		d, err := limiter.Allow(ctx, "u1")
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.Equal(t, i, d.Count)
	}

	d, err := limiter.Allow(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 6, d.Count)

	ttl := mr.TTL("ratelimit:checkout:u1")
	assert.True(t, ttl > 0 && ttl <= time.Minute)

	mr.FastForward(61 * time.Second)
	assert.False(t, mr.Exists("ratelimit:checkout:u1"), "expired window is evicted by TTL")

	d, err = limiter.Allow(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, d.Count)
}

func TestRedis_ConnectionError(t *testing.T) {
	mr, client := setupRedis(t)
	limiter := NewRedis(client, CheckoutPolicy, "rl:")
	mr.Close()

	_, err := limiter.Allow(context.Background(), "u1")
	assert.Error(t, err)
}
