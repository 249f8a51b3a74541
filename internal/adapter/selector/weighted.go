package selector

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"rpcchain/internal/core/domain"
)

// Weighted picks among routable endpoints with probability proportional to
// Weight, grounded on olla's balancer.PrioritySelector.weightedSelect.
type Weighted struct {
	reg *Registry
	mu  sync.Mutex
	rnd *rand.Rand
}

func NewWeighted(reg *Registry) *Weighted {
	return &Weighted{reg: reg, rnd: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func (s *Weighted) Name() string { return "weighted" }

func (s *Weighted) Select(ctx context.Context) (*domain.Endpoint, error) {
	routable := s.reg.Routable()
	if len(routable) == 0 {
		return nil, domain.ErrNoEndpointAvailable
	}

	total := 0.0
	for _, ep := range routable {
		total += ep.Weight
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if total <= 0 {
		return routable[s.rnd.Intn(len(routable))], nil
	}

	r := s.rnd.Float64() * total
	sum := 0.0
	for _, ep := range routable {
		sum += ep.Weight
		if r <= sum {
			return ep, nil
		}
	}
	return routable[len(routable)-1], nil
}

func (s *Weighted) RecordSuccess(id string, latencyMs float64) { s.reg.RecordSuccess(id, latencyMs) }
func (s *Weighted) RecordFailure(id string)                    { s.reg.RecordFailure(id) }
func (s *Weighted) Endpoints() []*domain.Endpoint              { return s.reg.Endpoints() }

// Close stops the registry's passive re-eligibility scanner.
func (s *Weighted) Close() { s.reg.Close() }

