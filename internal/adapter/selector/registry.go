// Package selector implements spec.md §4.4's EndpointSelector: a shared
// health-bookkeeping Registry plus pluggable strategies (round-robin,
// weighted, least-latency, random) that each pick from the registry's
// current routable set.
//
// Grounded on olla's internal/adapter/balancer package for the strategy
// shapes (round_robin.go, priority.go's weightedSelect, least_connections.go)
// and on internal/adapter/health/scheduler.go for the heap-based passive
// re-eligibility scan, generalized here to run per-Registry instead of
// being wired to olla's specific health-check job queue.
package selector

import (
	"container/heap"
	"sort"
	"sync"
	"time"

	"rpcchain/internal/core/domain"
)

// Config drives the shared health bookkeeping every strategy reads from.
type Config struct {
	FailureThreshold    int
	RecoveryTime        time.Duration
	HealthCheckInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 3
	}
	if c.RecoveryTime <= 0 {
		c.RecoveryTime = 30 * time.Second
	}
	return c
}

type entry struct {
	mu sync.Mutex
	ep domain.Endpoint
}

// Registry owns the mutable health state for a fixed set of endpoints,
// shared by whichever strategy an Orchestrator is configured with.
// Endpoint records are never exposed directly; Select and Endpoints return
// clones, per spec.md §3's ownership rule.
type Registry struct {
	cfg Config

	mu    sync.RWMutex
	byID  map[string]*entry
	order []string // stable, sorted by ID: ties broken by lower id

	heapMu sync.Mutex
	due    *eligibilityHeap
	stopCh chan struct{}
}

// NewRegistry seeds a Registry from a fixed endpoint list and starts the
// passive re-eligibility scanner if HealthCheckInterval > 0.
func NewRegistry(endpoints []*domain.Endpoint, cfg Config) *Registry {
	cfg = cfg.withDefaults()
	r := &Registry{
		cfg:    cfg,
		byID:   make(map[string]*entry, len(endpoints)),
		due:    &eligibilityHeap{},
		stopCh: make(chan struct{}),
	}
	heap.Init(r.due)

	for _, ep := range endpoints {
		cp := *ep
		if cp.Health == "" {
			cp.Health = domain.HealthHealthy
		}
		r.byID[cp.ID] = &entry{ep: cp}
		r.order = append(r.order, cp.ID)
	}
	sort.Strings(r.order)

	if cfg.HealthCheckInterval > 0 {
		go r.scanLoop(cfg.HealthCheckInterval)
	}
	return r
}

// Close stops the passive re-eligibility scanner.
func (r *Registry) Close() {
	select {
	case <-r.stopCh:
	default:
		close(r.stopCh)
	}
}

// RecordSuccess resets an endpoint's failure tally, folds latencyMs into
// its rolling mean, and restores it to healthy.
func (r *Registry) RecordSuccess(id string, latencyMs float64) {
	r.mu.RLock()
	e, ok := r.byID[id]
	r.mu.RUnlock()
	if !ok {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.ep.ConsecutiveSuccesses++
	e.ep.ConsecutiveFailures = 0
	e.ep.LastProbe = time.Now()
	e.ep.Health = domain.HealthHealthy
	if e.ep.LatencyMeanMs == 0 {
		e.ep.LatencyMeanMs = latencyMs
	} else {
		e.ep.LatencyMeanMs = e.ep.LatencyMeanMs*0.8 + latencyMs*0.2
	}
}

// RecordFailure advances an endpoint's consecutive-failure count; crossing
// FailureThreshold flips it to unhealthy and schedules a passive
// re-eligibility check at now+RecoveryTime.
func (r *Registry) RecordFailure(id string) {
	r.mu.RLock()
	e, ok := r.byID[id]
	r.mu.RUnlock()
	if !ok {
		return
	}

	e.mu.Lock()
	e.ep.ConsecutiveFailures++
	e.ep.ConsecutiveSuccesses = 0
	e.ep.LastProbe = time.Now()
	becameUnhealthy := e.ep.Health != domain.HealthUnhealthy && e.ep.ConsecutiveFailures >= r.cfg.FailureThreshold
	if becameUnhealthy {
		e.ep.Health = domain.HealthUnhealthy
		e.ep.NextEligibleAt = time.Now().Add(r.cfg.RecoveryTime)
	}
	nextEligible := e.ep.NextEligibleAt
	e.mu.Unlock()

	if becameUnhealthy {
		r.heapMu.Lock()
		heap.Push(r.due, &eligibilityItem{id: id, at: nextEligible})
		r.heapMu.Unlock()
	}
}

// Routable returns healthy/degraded endpoints in stable ID order, clones
// safe for a caller to retain.
func (r *Registry) Routable() []*domain.Endpoint {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Endpoint, 0, len(r.order))
	for _, id := range r.order {
		e := r.byID[id]
		e.mu.Lock()
		if e.ep.Health.IsRoutable() {
			cp := e.ep
			out = append(out, &cp)
		}
		e.mu.Unlock()
	}
	return out
}

// Endpoints returns every configured endpoint, routable or not.
func (r *Registry) Endpoints() []*domain.Endpoint {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Endpoint, 0, len(r.order))
	for _, id := range r.order {
		e := r.byID[id]
		e.mu.Lock()
		cp := e.ep
		e.mu.Unlock()
		out = append(out, &cp)
	}
	return out
}

// eligibilityItem and eligibilityHeap implement a min-heap over due times,
// grounded on olla's health/scheduler.go checkHeap.
type eligibilityItem struct {
	at time.Time
	id string
}

type eligibilityHeap []*eligibilityItem

func (h eligibilityHeap) Len() int            { return len(h) }
func (h eligibilityHeap) Less(i, j int) bool  { return h[i].at.Before(h[j].at) }
func (h eligibilityHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *eligibilityHeap) Push(x interface{}) { *h = append(*h, x.(*eligibilityItem)) }
func (h *eligibilityHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// scanLoop pops due re-eligibility items and flips unhealthy endpoints back
// to degraded — eligible for selection again, but not yet proven healthy
// by an actual success.
func (r *Registry) scanLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.promoteDue(time.Now())
		}
	}
}

func (r *Registry) promoteDue(now time.Time) {
	r.heapMu.Lock()
	var due []*eligibilityItem
	for r.due.Len() > 0 && (*r.due)[0].at.Before(now) {
		due = append(due, heap.Pop(r.due).(*eligibilityItem))
	}
	r.heapMu.Unlock()

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, item := range due {
		e, ok := r.byID[item.id]
		if !ok {
			continue
		}
		e.mu.Lock()
		if e.ep.Health == domain.HealthUnhealthy && !e.ep.NextEligibleAt.After(now) {
			e.ep.Health = domain.HealthDegraded
		}
		e.mu.Unlock()
	}
}
