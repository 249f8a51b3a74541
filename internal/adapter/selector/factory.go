package selector

import (
	"fmt"

	"rpcchain/internal/core/domain"
)

const (
	StrategyRoundRobin   = "round-robin"
	StrategyWeighted     = "weighted"
	StrategyLeastLatency = "least-latency"
	StrategyRandom       = "random"
)

// New builds the EndpointSelector for the named strategy over a shared
// Registry, grounded on olla's balancer.Factory.Create.
func New(strategy string, reg *Registry) (domain.EndpointSelector, error) {
	switch strategy {
	case StrategyRoundRobin, "":
		return NewRoundRobin(reg), nil
	case StrategyWeighted:
		return NewWeighted(reg), nil
	case StrategyLeastLatency:
		return NewLeastLatency(reg), nil
	case StrategyRandom:
		return NewRandom(reg), nil
	default:
		return nil, fmt.Errorf("unknown endpoint selector strategy: %s", strategy)
	}
}
