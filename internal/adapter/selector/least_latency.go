package selector

import (
	"context"

	"rpcchain/internal/core/domain"
)

// LeastLatency picks the routable endpoint with the smallest rolling-mean
// latency, grounded on olla's balancer.LeastConnectionsSelector (same
// scan-for-minimum shape, over latency instead of connection count).
type LeastLatency struct {
	reg *Registry
}

func NewLeastLatency(reg *Registry) *LeastLatency {
	return &LeastLatency{reg: reg}
}

func (s *LeastLatency) Name() string { return "least-latency" }

func (s *LeastLatency) Select(ctx context.Context) (*domain.Endpoint, error) {
	routable := s.reg.Routable()
	if len(routable) == 0 {
		return nil, domain.ErrNoEndpointAvailable
	}

	best := routable[0]
	for _, ep := range routable[1:] {
		if ep.LatencyMeanMs < best.LatencyMeanMs {
			best = ep
		}
	}
	return best, nil
}

func (s *LeastLatency) RecordSuccess(id string, latencyMs float64) { s.reg.RecordSuccess(id, latencyMs) }
func (s *LeastLatency) RecordFailure(id string)                    { s.reg.RecordFailure(id) }
func (s *LeastLatency) Endpoints() []*domain.Endpoint              { return s.reg.Endpoints() }

// Close stops the registry's passive re-eligibility scanner.
func (s *LeastLatency) Close() { s.reg.Close() }

