package selector

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rpcchain/internal/core/domain"
)

func endpoints() []*domain.Endpoint {
	return []*domain.Endpoint{
		{ID: "a", URL: "http://a", Weight: 1},
		{ID: "b", URL: "http://b", Weight: 3},
		{ID: "c", URL: "http://c", Weight: 1},
	}
}

func TestRegistry_FailureThresholdMarksUnhealthy(t *testing.T) {
	reg := NewRegistry(endpoints(), Config{FailureThreshold: 2, RecoveryTime: time.Hour})

	reg.RecordFailure("a")
	assert.Len(t, reg.Routable(), 3)

	reg.RecordFailure("a")
	routable := reg.Routable()
	assert.Len(t, routable, 2)
	for _, ep := range routable {
		assert.NotEqual(t, "a", ep.ID)
	}
}

func TestRegistry_SuccessRestoresHealthy(t *testing.T) {
	reg := NewRegistry(endpoints(), Config{FailureThreshold: 1, RecoveryTime: time.Hour})

	reg.RecordFailure("a")
	assert.Len(t, reg.Routable(), 2)

	reg.RecordSuccess("a", 10)
	assert.Len(t, reg.Routable(), 3)
}

func TestRegistry_PassiveRecoveryAfterWindow(t *testing.T) {
	reg := NewRegistry(endpoints(), Config{FailureThreshold: 1, RecoveryTime: 5 * time.Millisecond})
	reg.RecordFailure("a")
	assert.Len(t, reg.Routable(), 2)

	time.Sleep(10 * time.Millisecond)
	reg.promoteDue(time.Now())

	assert.Len(t, reg.Routable(), 3)
}

func TestRoundRobin_CyclesAndSkipsUnhealthy(t *testing.T) {
	reg := NewRegistry(endpoints(), Config{FailureThreshold: 1, RecoveryTime: time.Hour})
	reg.RecordFailure("b")

	rr := NewRoundRobin(reg)
	seen := map[string]bool{}
	for i := 0; i < 4; i++ {
		ep, err := rr.Select(context.Background())
		require.NoError(t, err)
		seen[ep.ID] = true
	}
	assert.False(t, seen["b"])
	assert.True(t, seen["a"])
	assert.True(t, seen["c"])
}

func TestRoundRobin_NoEndpointAvailable(t *testing.T) {
	reg := NewRegistry([]*domain.Endpoint{{ID: "a"}}, Config{FailureThreshold: 1, RecoveryTime: time.Hour})
	reg.RecordFailure("a")

	rr := NewRoundRobin(reg)
	_, err := rr.Select(context.Background())
	require.ErrorIs(t, err, domain.ErrNoEndpointAvailable)
}

func TestWeighted_PrefersHigherWeightOverManySamples(t *testing.T) {
	reg := NewRegistry(endpoints(), Config{FailureThreshold: 1, RecoveryTime: time.Hour})
	w := NewWeighted(reg)

	counts := map[string]int{}
	for i := 0; i < 500; i++ {
		ep, err := w.Select(context.Background())
		require.NoError(t, err)
		counts[ep.ID]++
	}
	assert.Greater(t, counts["b"], counts["a"])
	assert.Greater(t, counts["b"], counts["c"])
}

func TestLeastLatency_PicksSmallestMean(t *testing.T) {
	reg := NewRegistry(endpoints(), Config{FailureThreshold: 1, RecoveryTime: time.Hour})
	reg.RecordSuccess("a", 50)
	reg.RecordSuccess("b", 10)
	reg.RecordSuccess("c", 30)

	ll := NewLeastLatency(reg)
	ep, err := ll.Select(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "b", ep.ID)
}

func TestRandom_SelectsAmongRoutable(t *testing.T) {
	reg := NewRegistry(endpoints(), Config{FailureThreshold: 1, RecoveryTime: time.Hour})
	r := NewRandom(reg)
	ep, err := r.Select(context.Background())
	require.NoError(t, err)
	assert.Contains(t, []string{"a", "b", "c"}, ep.ID)
}

func TestFactory_New(t *testing.T) {
	reg := NewRegistry(endpoints(), Config{})

	for _, name := range []string{StrategyRoundRobin, StrategyWeighted, StrategyLeastLatency, StrategyRandom, ""} {
		sel, err := New(name, reg)
		require.NoError(t, err)
		assert.NotNil(t, sel)
	}

	_, err := New("bogus", reg)
	require.Error(t, err)
}
