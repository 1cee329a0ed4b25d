package infrastructure

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisIdempotencyGuard(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	guard := NewRedisIdempotencyGuard(client.GetClient(), time.Hour)

	ok, err := guard.Claim(ctx, "payment:SUCCESS:7")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, mr.Exists(idempotencyKeyPrefix+"payment:SUCCESS:7"))

	ok, err = guard.Claim(ctx, "payment:SUCCESS:7")
	require.NoError(t, err)
	assert.False(t, ok, "second claim must be rejected")

	require.NoError(t, guard.Release(ctx, "payment:SUCCESS:7"))
	ok, err = guard.Claim(ctx, "payment:SUCCESS:7")
	require.NoError(t, err)
	assert.True(t, ok, "released key can be claimed again")

	mr.FastForward(2 * time.Hour)
	ok, err = guard.Claim(ctx, "payment:SUCCESS:7")
	require.NoError(t, err)
	assert.True(t, ok, "expired key can be claimed again")
}

func TestMemoryIdempotencyGuard(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	guard := NewMemoryIdempotencyGuard(time.Minute)
	guard.now = func() time.Time { return now }

	ok, _ := guard.Claim(ctx, "delivery:FAILED:9")
	assert.True(t, ok)
	ok, _ = guard.Claim(ctx, "delivery:FAILED:9")
	assert.False(t, ok)

	now = now.Add(2 * time.Minute)
	ok, _ = guard.Claim(ctx, "delivery:FAILED:9")
	assert.True(t, ok)

	require.NoError(t, guard.Release(ctx, "delivery:FAILED:9"))
	ok, _ = guard.Claim(ctx, "delivery:FAILED:9")
	assert.True(t, ok)
}

func TestMemoryIdempotencyGuard_EvictsExpiredKeys(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	guard := NewMemoryIdempotencyGuard(time.Minute)
	guard.now = func() time.Time { return now }
	guard.sweepEvery = 3

	for _, key := range []string{"payment:SUCCESS:1", "payment:SUCCESS:2"} {
		ok, err := guard.Claim(ctx, key)
		require.NoError(t, err)
		require.True(t, ok)
	}
	assert.Equal(t, 2, guard.Len())

	now = now.Add(2 * time.Minute)
	ok, err := guard.Claim(ctx, "payment:SUCCESS:3")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, guard.Len(), "expired keys of other orders are removed")

	// 未过期的记录不受清理影响
	for i := 0; i < 3; i++ {
		ok, err = guard.Claim(ctx, "payment:SUCCESS:3")
		require.NoError(t, err)
		assert.False(t, ok)
	}
	assert.Equal(t, 1, guard.Len())
}
