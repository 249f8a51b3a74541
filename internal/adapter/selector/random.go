package selector

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"rpcchain/internal/core/domain"
)

// Random picks uniformly among routable endpoints.
type Random struct {
	reg *Registry
	mu  sync.Mutex
	rnd *rand.Rand
}

func NewRandom(reg *Registry) *Random {
	return &Random{reg: reg, rnd: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func (s *Random) Name() string { return "random" }

func (s *Random) Select(ctx context.Context) (*domain.Endpoint, error) {
	routable := s.reg.Routable()
	if len(routable) == 0 {
		return nil, domain.ErrNoEndpointAvailable
	}
	s.mu.Lock()
	idx := s.rnd.Intn(len(routable))
	s.mu.Unlock()
	return routable[idx], nil
}

func (s *Random) RecordSuccess(id string, latencyMs float64) { s.reg.RecordSuccess(id, latencyMs) }
func (s *Random) RecordFailure(id string)                    { s.reg.RecordFailure(id) }
func (s *Random) Endpoints() []*domain.Endpoint              { return s.reg.Endpoints() }

// Close stops the registry's passive re-eligibility scanner.
func (s *Random) Close() { s.reg.Close() }

