// Package metrics unifies the per-subcomponent counters spec.md §3 and §9
// ask for into one versioned Snapshot, replacing the source's ad-hoc
// per-subcomponent getMetrics() methods and global.performanceMetrics
// singleton. Grounded on olla's internal/adapter/stats collector: a single
// Registry held by the orchestrator, which records each stage's timings
// and outcomes into it, with Snapshot() returning a read-only copy for observers
// (the monitoring/dashboard collaborator of spec.md §6) rather than a
// mutable shared struct.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"rpcchain/internal/core/domain"
)

// SchemaVersion is bumped whenever Snapshot's shape changes in a way an
// external dashboard collaborator would need to know about.
const SchemaVersion = 1

// StageName identifies one of the five pipeline stages for per-stage
// timing, per spec.md §4.6's "per-stage timings (rate, breaker, cache,
// pool, selector)".
type StageName string

const (
	StageRate     StageName = "rate"
	StageBreaker  StageName = "breaker"
	StageCache    StageName = "cache"
	StagePool     StageName = "pool"
	StageSelector StageName = "selector"
)

var allStages = [...]StageName{StageRate, StageBreaker, StageCache, StagePool, StageSelector}

// Percentiles is the p50/p95/p99 view of a ReservoirSampler, in
// milliseconds.
type Percentiles struct {
	P50 int64
	P95 int64
	P99 int64
}

// EndpointCounters tracks per-endpoint use/failure counts, keyed by
// endpoint ID in the Snapshot.
type EndpointCounters struct {
	ID       string
	Uses     uint64
	Failures uint64
}

// Snapshot is the single, versioned struct every per-component counter
// folds into. It is a value type: copying it never races with further
// mutation of the owning Registry.
type Snapshot struct {
	SchemaVersion int
	Uptime        time.Duration

	Calls        uint64
	ReasonCounts map[domain.Reason]uint64

	CacheHits   uint64
	CacheMisses uint64

	StageLatency map[StageName]Percentiles
	CallLatency  Percentiles

	Endpoints []EndpointCounters

	// DroppedCallEvents counts CallEvents the orchestrator's event bus
	// dropped because a subscriber's buffer or the bus's async publish
	// queue was full, per spec.md §6's
	// requirement that a slow monitoring collaborator degrade by losing
	// events rather than by back-pressuring the call path.
	DroppedCallEvents uint64
}

// Registry accumulates observations for the lifetime of one orchestrator.
// Every method is safe for concurrent use; Snapshot never blocks a writer
// for more than the time it takes to copy a counter.
type Registry struct {
	start time.Time

	calls        atomic.Uint64
	reasonCounts sync.Map // domain.Reason -> *atomic.Uint64

	cacheHits   atomic.Uint64
	cacheMisses atomic.Uint64

	stageSamplers map[StageName]*ReservoirSampler
	callSampler   *ReservoirSampler

	endpointMu sync.Mutex
	endpoints  map[string]*EndpointCounters
}

// NewRegistry builds an empty Registry. sampleSize bounds each reservoir
// (0 defaults to 200 samples, per ReservoirSampler's own default).
func NewRegistry(sampleSize int) *Registry {
	r := &Registry{
		start:         time.Now(),
		stageSamplers: make(map[StageName]*ReservoirSampler, len(allStages)),
		callSampler:   NewReservoirSampler(sampleSize),
		endpoints:     make(map[string]*EndpointCounters),
	}
	for _, s := range allStages {
		r.stageSamplers[s] = NewReservoirSampler(sampleSize)
	}
	return r
}

// RecordReason increments the outcome counter for r, and the total call
// counter. ReasonNone represents a successful call.
func (r *Registry) RecordReason(reason domain.Reason) {
	r.calls.Add(1)
	v, _ := r.reasonCounts.LoadOrStore(reason, new(atomic.Uint64))
	v.(*atomic.Uint64).Add(1)
}

// RecordCacheHit / RecordCacheMiss count cache outcomes in the Registry
// itself. The orchestrator does not call them: its Metrics() overwrites
// CacheHits and CacheMisses with the cache adapter's own Stats.
func (r *Registry) RecordCacheHit()  { r.cacheHits.Add(1) }
func (r *Registry) RecordCacheMiss() { r.cacheMisses.Add(1) }

// RecordStageLatency folds one stage timing observation into that stage's
// reservoir.
func (r *Registry) RecordStageLatency(stage StageName, d time.Duration) {
	if s, ok := r.stageSamplers[stage]; ok {
		s.Add(d.Milliseconds())
	}
}

// RecordCallLatency folds one end-to-end call latency observation.
func (r *Registry) RecordCallLatency(d time.Duration) {
	r.callSampler.Add(d.Milliseconds())
}

// RecordEndpointUse / RecordEndpointFailure track per-endpoint counters for
// capacity-planning dashboards, independent of the selector's own health
// bookkeeping (which drives routing, not reporting).
func (r *Registry) RecordEndpointUse(id string) {
	r.endpointMu.Lock()
	defer r.endpointMu.Unlock()
	c := r.endpointFor(id)
	c.Uses++
}

func (r *Registry) RecordEndpointFailure(id string) {
	r.endpointMu.Lock()
	defer r.endpointMu.Unlock()
	c := r.endpointFor(id)
	c.Failures++
}

// endpointFor must be called with endpointMu held.
func (r *Registry) endpointFor(id string) *EndpointCounters {
	c, ok := r.endpoints[id]
	if !ok {
		c = &EndpointCounters{ID: id}
		r.endpoints[id] = c
	}
	return c
}

// Snapshot returns a point-in-time, versioned copy of every counter. Safe
// to hand to an external observer: nothing in the returned struct aliases
// Registry-owned mutable state.
func (r *Registry) Snapshot() Snapshot {
	reasons := make(map[domain.Reason]uint64)
	r.reasonCounts.Range(func(key, value any) bool {
		reasons[key.(domain.Reason)] = value.(*atomic.Uint64).Load()
		return true
	})

	stageLatency := make(map[StageName]Percentiles, len(allStages))
	for _, s := range allStages {
		p50, p95, p99 := r.stageSamplers[s].Percentiles()
		stageLatency[s] = Percentiles{P50: p50, P95: p95, P99: p99}
	}
	p50, p95, p99 := r.callSampler.Percentiles()

	r.endpointMu.Lock()
	endpoints := make([]EndpointCounters, 0, len(r.endpoints))
	for _, c := range r.endpoints {
		endpoints = append(endpoints, *c)
	}
	r.endpointMu.Unlock()

	return Snapshot{
		SchemaVersion: SchemaVersion,
		Uptime:        time.Since(r.start),
		Calls:         r.calls.Load(),
		ReasonCounts:  reasons,
		CacheHits:     r.cacheHits.Load(),
		CacheMisses:   r.cacheMisses.Load(),
		StageLatency:  stageLatency,
		CallLatency:   Percentiles{P50: p50, P95: p95, P99: p99},
		Endpoints:     endpoints,
	}
}
