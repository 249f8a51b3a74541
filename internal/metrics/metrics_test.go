package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"rpcchain/internal/core/domain"
)

func TestRegistry_SnapshotAggregatesCounters(t *testing.T) {
	r := NewRegistry(50)

	r.RecordReason(domain.ReasonNone)
	r.RecordReason(domain.ReasonNone)
	r.RecordReason(domain.ReasonRateLimited)

	r.RecordCacheHit()
	r.RecordCacheHit()
	r.RecordCacheMiss()

	r.RecordStageLatency(StageRate, time.Millisecond)
	r.RecordStageLatency(StagePool, 5*time.Millisecond)
	r.RecordCallLatency(10 * time.Millisecond)

	r.RecordEndpointUse("ep1")
	r.RecordEndpointUse("ep1")
	r.RecordEndpointFailure("ep1")

	snap := r.Snapshot()

	assert.Equal(t, SchemaVersion, snap.SchemaVersion)
	assert.Equal(t, uint64(3), snap.Calls)
	assert.Equal(t, uint64(2), snap.ReasonCounts[domain.ReasonNone])
	assert.Equal(t, uint64(1), snap.ReasonCounts[domain.ReasonRateLimited])
	assert.Equal(t, uint64(2), snap.CacheHits)
	assert.Equal(t, uint64(1), snap.CacheMisses)
	assert.Equal(t, int64(1), snap.StageLatency[StageRate].P50)
	assert.Equal(t, int64(10), snap.CallLatency.P50)

	require := func(cond bool) {
		if !cond {
			t.Fatal("expected endpoint counters for ep1")
		}
	}
	var found bool
	for _, e := range snap.Endpoints {
		if e.ID == "ep1" {
			found = true
			assert.Equal(t, uint64(2), e.Uses)
			assert.Equal(t, uint64(1), e.Failures)
		}
	}
	require(found)
}

func TestRegistry_SnapshotIndependentOfLaterMutation(t *testing.T) {
	r := NewRegistry(10)
	r.RecordReason(domain.ReasonNone)

	snap := r.Snapshot()
	r.RecordReason(domain.ReasonNone)

	assert.Equal(t, uint64(1), snap.Calls, "snapshot must not observe mutation after it was taken")
}
