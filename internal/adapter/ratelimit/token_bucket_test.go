package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenBucket_ConsumeZeroIsNoop(t *testing.T) {
	b := New(Config{RateLimit: 1, MaxBurst: 5})
	before := b.Tokens()
	assert.True(t, b.Consume(0))
	assert.InDelta(t, before, b.Tokens(), 0.01)
}

func TestTokenBucket_NeverExceedsMaxBurst(t *testing.T) {
	b := New(Config{RateLimit: 100, MaxBurst: 10})
	time.Sleep(20 * time.Millisecond)
	assert.LessOrEqual(t, b.Tokens(), 10.0)
}

func TestTokenBucket_BurstThenDeny(t *testing.T) {
	// rateLimit=10, windowMs=100, maxBurst=15 per the spec's rate-limit
	// trip scenario: 30 back-to-back calls should admit exactly 15 and
	// deny exactly 15.
	b := New(Config{RateLimit: 10, WindowMs: 100, MaxBurst: 15})

	admitted, denied := 0, 0
	for i := 0; i < 30; i++ {
		if b.Consume(1) {
			admitted++
		} else {
			denied++
		}
	}

	require.Equal(t, 15, admitted)
	require.Equal(t, 15, denied)
	assert.Equal(t, 30, admitted+denied)

	stats := b.Stats()
	assert.Equal(t, uint64(15), stats.Admitted)
	assert.Equal(t, uint64(15), stats.Denied)
}

func TestTokenBucket_RefillsOverTime(t *testing.T) {
	b := New(Config{RateLimit: 1000, MaxBurst: 1})
	require.True(t, b.Consume(1))
	require.False(t, b.Consume(1))

	time.Sleep(5 * time.Millisecond)
	assert.True(t, b.Consume(1))
}

func TestTokenBucket_Reset(t *testing.T) {
	b := New(Config{RateLimit: 1, MaxBurst: 3})
	require.True(t, b.Consume(3))
	require.False(t, b.Consume(1))

	b.Reset(Config{RateLimit: 1, MaxBurst: 5})
	assert.InDelta(t, 5.0, b.Tokens(), 0.01)
}
