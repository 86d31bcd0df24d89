package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBandwidthLimiter_BurstThenWait(t *testing.T) {
	limiter := NewBandwidthLimiter(1000, 1000)

	require.NoError(t, limiter.Acquire(context.Background(), 1000))

	start := time.Now()
	require.NoError(t, limiter.Acquire(context.Background(), 500))
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 400*time.Millisecond)
	assert.LessOrEqual(t, elapsed, 700*time.Millisecond)
}

func TestBandwidthLimiter_AvailableTokensClamped(t *testing.T) {
	limiter := NewBandwidthLimiter(1000, 1000)
	assert.InDelta(t, 1000, limiter.AvailableTokens(), 1)

	require.NoError(t, limiter.Acquire(context.Background(), 500))
	time.Sleep(600 * time.Millisecond)

	tokens := limiter.AvailableTokens()
	assert.GreaterOrEqual(t, tokens, 400.0)
	assert.LessOrEqual(t, tokens, 1000.0)
}

func TestBandwidthLimiter_TwoRateTokenBucket(t *testing.T) {
	const rate = 100
	limiter := NewBandwidthLimiter(rate, 2*rate)
	require.NoError(t, limiter.Acquire(context.Background(), rate))

	start := time.Now()
	require.NoError(t, limiter.Acquire(context.Background(), 2*rate))
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 1*time.Second-50*time.Millisecond)
	assert.LessOrEqual(t, elapsed, 2*time.Second)
}

func TestConnectionLimiter_AcquireRelease(t *testing.T) {
	limiter := NewConnectionLimiter(2)
	assert.Equal(t, 2, limiter.Available())

	p1, err := limiter.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, limiter.Available())

	p2, ok := limiter.TryAcquire()
	require.True(t, ok)
	assert.Equal(t, 0, limiter.Available())

	_, ok = limiter.TryAcquire()
	assert.False(t, ok)

	p1.Release()
	assert.Equal(t, 1, limiter.Available())

	p2.Release()
	assert.Equal(t, 2, limiter.Available())
}

func TestConnectionLimiter_AcquireBlocksUntilRelease(t *testing.T) {
	limiter := NewConnectionLimiter(1)
	p, err := limiter.Acquire(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = limiter.Acquire(ctx)
	assert.Error(t, err)

	p.Release()
	p2, err := limiter.Acquire(context.Background())
	require.NoError(t, err)
	p2.Release()
}
