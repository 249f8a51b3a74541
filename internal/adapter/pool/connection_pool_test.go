package pool

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rpcchain/internal/core/domain"
)

func TestConnectionPool_AcquireRelease(t *testing.T) {
	p := New(Config{MaxSockets: 10, MaxSocketsPerHost: 2, KeepAlive: true, KeepAliveMs: 1000, MaxFreeSockets: 2})

	h1, err := p.Acquire("http", "a.example.com")
	require.NoError(t, err)
	require.NotNil(t, h1.Client)

	stats := p.Stats()
	assert.Equal(t, 1, stats.Active)
	assert.EqualValues(t, 1, stats.TotalRequests)

	p.Release(h1)
	stats = p.Stats()
	assert.Equal(t, 0, stats.Active)
	assert.Equal(t, 1, stats.Idle)
}

func TestConnectionPool_PerHostCapFailsFast(t *testing.T) {
	p := New(Config{MaxSockets: 10, MaxSocketsPerHost: 1})

	_, err := p.Acquire("http", "a.example.com")
	require.NoError(t, err)

	_, err = p.Acquire("http", "a.example.com")
	require.ErrorIs(t, err, domain.ErrNoConnection)
}

func TestConnectionPool_GlobalCapFailsFast(t *testing.T) {
	p := New(Config{MaxSockets: 1, MaxSocketsPerHost: 5})

	_, err := p.Acquire("http", "a.example.com")
	require.NoError(t, err)

	_, err = p.Acquire("http", "b.example.com")
	require.ErrorIs(t, err, domain.ErrNoConnection)
}

func TestConnectionPool_GlobalCapEnforcedOnFreeHandleReuse(t *testing.T) {
	p := New(Config{MaxSockets: 1, MaxSocketsPerHost: 5, KeepAlive: true, KeepAliveMs: 1000, MaxFreeSockets: 2})

	hA, err := p.Acquire("http", "a.example.com")
	require.NoError(t, err)
	p.Release(hA)

	_, err = p.Acquire("http", "a.example.com")
	require.NoError(t, err)

	_, err = p.Acquire("http", "b.example.com")
	require.ErrorIs(t, err, domain.ErrNoConnection)

	assert.Equal(t, 1, p.Stats().Active)
}

func TestConnectionPool_DifferentHostsIsolated(t *testing.T) {
	p := New(Config{MaxSockets: 10, MaxSocketsPerHost: 1})

	hA, err := p.Acquire("http", "a.example.com")
	require.NoError(t, err)
	_, err = p.Acquire("http", "b.example.com")
	require.NoError(t, err)

	p.Release(hA)
	_, err = p.Acquire("http", "a.example.com")
	require.NoError(t, err)
}

func TestConnectionPool_ReapsExpiredFreeHandles(t *testing.T) {
	p := New(Config{MaxSockets: 10, MaxSocketsPerHost: 1, KeepAlive: true, KeepAliveMs: 5, MaxFreeSockets: 2})

	h, err := p.Acquire("http", "a.example.com")
	require.NoError(t, err)
	p.Release(h)

	time.Sleep(10 * time.Millisecond)

	_, err = p.Acquire("http", "a.example.com")
	require.NoError(t, err)
	assert.Equal(t, 0, p.Stats().Idle)
}
