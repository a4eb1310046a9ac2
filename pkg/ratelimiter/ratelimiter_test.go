package ratelimiter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterSpacesCalls(t *testing.T) {
	rl := New(50 * time.Millisecond)
	assert.False(t, rl.Unlimited())

	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, rl.Wait(ctx))
	}
	// The first call passes at once, the next two wait one interval each.
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestRateLimiterDisabled(t *testing.T) {
	rl := New(0)
	assert.True(t, rl.Unlimited())

	start := time.Now()
	for i := 0; i < 100; i++ {
		require.NoError(t, rl.Wait(context.Background()))
	}
	assert.Less(t, time.Since(start), time.Second)
}

func TestRateLimiterHonoursContext(t *testing.T) {
	rl := New(time.Hour)
	require.NoError(t, rl.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Error(t, rl.Wait(ctx))
}
