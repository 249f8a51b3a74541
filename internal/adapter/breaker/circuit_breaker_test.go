package breaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rpcchain/internal/core/domain"
)

var errUpstream = errors.New("boom")

func classifyAlwaysInfra(error) domain.ErrorKind { return domain.ErrorKindNetwork }
func classifyAlwaysBusiness(error) domain.ErrorKind { return domain.ErrorKindBusiness }

func TestCircuitBreaker_OpensAfterFailureThreshold(t *testing.T) {
	cb := New(Config{FailureThreshold: 3, SuccessThreshold: 1, CooldownPeriod: time.Hour}, classifyAlwaysInfra)

	for i := 0; i < 3; i++ {
		_, reason, err := cb.Execute(context.Background(), "ep1", func(context.Context) (any, error) {
			return nil, errUpstream
		})
		require.Error(t, err)
		assert.Equal(t, domain.ReasonUpstreamError, reason)
	}

	assert.Equal(t, domain.CircuitOpen, cb.State("ep1"))

	_, reason, err := cb.Execute(context.Background(), "ep1", func(context.Context) (any, error) {
		t.Fatal("operation must not run while circuit is open")
		return nil, nil
	})
	require.ErrorIs(t, err, domain.ErrCircuitOpen)
	assert.Equal(t, domain.ReasonCircuitOpen, reason)
}

func TestCircuitBreaker_BusinessErrorsDoNotOpen(t *testing.T) {
	cb := New(Config{FailureThreshold: 2, CooldownPeriod: time.Hour}, classifyAlwaysBusiness)

	for i := 0; i < 5; i++ {
		_, reason, err := cb.Execute(context.Background(), "ep1", func(context.Context) (any, error) {
			return nil, errUpstream
		})
		require.Error(t, err)
		assert.Equal(t, domain.ReasonBusinessError, reason)
	}

	assert.Equal(t, domain.CircuitClosed, cb.State("ep1"))
}

func TestCircuitBreaker_HalfOpenSingleProbeAndSuccessThreshold(t *testing.T) {
	cb := New(Config{FailureThreshold: 1, SuccessThreshold: 2, CooldownPeriod: 10 * time.Millisecond}, classifyAlwaysInfra)

	_, _, err := cb.Execute(context.Background(), "ep1", func(context.Context) (any, error) {
		return nil, errUpstream
	})
	require.Error(t, err)
	require.Equal(t, domain.CircuitOpen, cb.State("ep1"))

	time.Sleep(15 * time.Millisecond)

	// First call after cooldown becomes the probe and succeeds.
	_, reason, err := cb.Execute(context.Background(), "ep1", func(context.Context) (any, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonNone, reason)
	assert.Equal(t, domain.CircuitHalfOpen, cb.State("ep1"), "single success below successThreshold stays half-open")

	_, reason, err = cb.Execute(context.Background(), "ep1", func(context.Context) (any, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonNone, reason)
	assert.Equal(t, domain.CircuitClosed, cb.State("ep1"))
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb := New(Config{FailureThreshold: 1, SuccessThreshold: 1, CooldownPeriod: 5 * time.Millisecond}, classifyAlwaysInfra)

	_, _, _ = cb.Execute(context.Background(), "ep1", func(context.Context) (any, error) {
		return nil, errUpstream
	})
	time.Sleep(10 * time.Millisecond)

	_, _, err := cb.Execute(context.Background(), "ep1", func(context.Context) (any, error) {
		return nil, errUpstream
	})
	require.Error(t, err)
	assert.Equal(t, domain.CircuitOpen, cb.State("ep1"))
}

func TestCircuitBreaker_ManualOverrides(t *testing.T) {
	cb := New(Config{FailureThreshold: 1, CooldownPeriod: time.Hour}, classifyAlwaysInfra)

	cb.Open("ep1")
	assert.Equal(t, domain.CircuitOpen, cb.State("ep1"))

	cb.Close("ep1")
	assert.Equal(t, domain.CircuitClosed, cb.State("ep1"))

	_, _, _ = cb.Execute(context.Background(), "ep1", func(context.Context) (any, error) {
		return nil, errUpstream
	})
	assert.Equal(t, domain.CircuitOpen, cb.State("ep1"))

	cb.Reset("ep1")
	assert.Equal(t, domain.CircuitClosed, cb.State("ep1"))
}

func TestCircuitBreaker_KeysAreIndependent(t *testing.T) {
	cb := New(Config{FailureThreshold: 1, CooldownPeriod: time.Hour}, classifyAlwaysInfra)

	_, _, _ = cb.Execute(context.Background(), "ep1", func(context.Context) (any, error) {
		return nil, errUpstream
	})
	assert.Equal(t, domain.CircuitOpen, cb.State("ep1"))
	assert.Equal(t, domain.CircuitClosed, cb.State("ep2"))
}

func TestCircuitBreaker_EventsPublishOnTransition(t *testing.T) {
	cb := New(Config{FailureThreshold: 1, CooldownPeriod: time.Hour}, classifyAlwaysInfra)
	events, cancel := cb.Events(context.Background())
	defer cancel()

	_, _, _ = cb.Execute(context.Background(), "ep1", func(context.Context) (any, error) {
		return nil, errUpstream
	})

	select {
	case ev := <-events:
		assert.Equal(t, "ep1", ev.Key)
		assert.Equal(t, domain.CircuitClosed, ev.From)
		assert.Equal(t, domain.CircuitOpen, ev.To)
	case <-time.After(time.Second):
		t.Fatal("expected a transition event")
	}
}

func TestCircuitBreaker_TraceIsBounded(t *testing.T) {
	cb := New(Config{FailureThreshold: 1000, CooldownPeriod: time.Hour, RingSize: 5}, classifyAlwaysInfra)

	for i := 0; i < 20; i++ {
		_, _, _ = cb.Execute(context.Background(), "ep1", func(context.Context) (any, error) {
			return nil, errUpstream
		})
	}

	assert.Len(t, cb.Trace("ep1"), 5)
}
