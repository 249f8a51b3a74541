package selector

import (
	"context"
	"sync/atomic"

	"rpcchain/internal/core/domain"
)

// RoundRobin cycles through the registry's routable endpoints by a shared
// atomic counter, grounded on olla's balancer.RoundRobinSelector.
type RoundRobin struct {
	reg     *Registry
	counter atomic.Uint64
}

func NewRoundRobin(reg *Registry) *RoundRobin {
	return &RoundRobin{reg: reg}
}

func (s *RoundRobin) Name() string { return "round-robin" }

func (s *RoundRobin) Select(ctx context.Context) (*domain.Endpoint, error) {
	routable := s.reg.Routable()
	if len(routable) == 0 {
		return nil, domain.ErrNoEndpointAvailable
	}
	idx := s.counter.Add(1) - 1
	return routable[idx%uint64(len(routable))], nil
}

func (s *RoundRobin) RecordSuccess(id string, latencyMs float64) { s.reg.RecordSuccess(id, latencyMs) }
func (s *RoundRobin) RecordFailure(id string)                    { s.reg.RecordFailure(id) }
func (s *RoundRobin) Endpoints() []*domain.Endpoint              { return s.reg.Endpoints() }

// Close stops the registry's passive re-eligibility scanner.
func (s *RoundRobin) Close() { s.reg.Close() }
