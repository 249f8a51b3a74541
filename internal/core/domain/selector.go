package domain

import "context"

// EndpointSelector picks one healthy endpoint per call and tracks the
// feedback the orchestrator reports back after each attempt. Implementations
// own the Endpoint records for their lifetime; nothing outside the selector
// holds a mutable reference to them.
type EndpointSelector interface {
	// Select returns an endpoint deemed usable, or ErrNoEndpointAvailable if
	// every configured endpoint is currently unhealthy.
	Select(ctx context.Context) (*Endpoint, error)
	Name() string

	RecordSuccess(id string, latencyMs float64)
	RecordFailure(id string)

	// Endpoints returns a point-in-time snapshot of all configured
	// endpoints, for metrics and diagnostics.
	Endpoints() []*Endpoint
}

// ErrNoEndpointAvailable is returned by EndpointSelector.Select when every
// configured endpoint is unhealthy.
var ErrNoEndpointAvailable = errSentinel("no routable endpoint available")

type errSentinel string

func (e errSentinel) Error() string { return string(e) }
