// Package breaker isolates downstream failures behind a per-key state
// machine: CLOSED, OPEN, HALF_OPEN. It is grounded on two competing
// implementations in olla — health/circuit_breaker.go's single-probe gate
// and proxy_olla.go's embedded atomic breaker — but fixes their divergent
// half-open semantics to a single contract: HALF_OPEN requires exactly
// SuccessThreshold consecutive probe successes to close, and exactly one
// probe is ever in flight for a key at a time.
package breaker

import (
	"context"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v4"

	"rpcchain/internal/core/domain"
	"rpcchain/pkg/eventbus"
)

// Classifier maps an error to an ErrorKind. Only infrastructure kinds
// advance the failure counter. Nil defaults to domain.ClassifyError.
type Classifier func(err error) domain.ErrorKind

// CircuitBreaker runs operations through a per-key CLOSED/OPEN/HALF_OPEN
// state machine. Keys are typically an endpoint URL or scheme+host pair.
type CircuitBreaker struct {
	cfg      Config
	classify Classifier
	keys     *xsync.Map[string, *keyState]
	events   *eventbus.EventBus[Event]
}

type keyState struct {
	mu                   sync.Mutex
	state                domain.CircuitState
	consecutiveFailures  int
	consecutiveSuccesses int
	totalCalls           int
	totalFailures        int
	lastFailureTime      time.Time
	halfOpenProbeActive  bool
	trace                *ring
}

// New creates a CircuitBreaker. A nil classifier defaults to
// domain.ClassifyError.
func New(cfg Config, classify Classifier) *CircuitBreaker {
	cfg = cfg.withDefaults()
	if classify == nil {
		classify = domain.ClassifyError
	}
	return &CircuitBreaker{
		cfg:      cfg,
		classify: classify,
		keys:     xsync.NewMap[string, *keyState](),
		events:   eventbus.New[Event](),
	}
}

// Events subscribes to state-transition notifications for every key.
func (b *CircuitBreaker) Events(ctx context.Context) (<-chan Event, func()) {
	return b.events.Subscribe(ctx)
}

func (b *CircuitBreaker) stateFor(key string) *keyState {
	actual, _ := b.keys.LoadOrStore(key, &keyState{trace: newRing(b.cfg.RingSize)})
	return actual
}

// Execute runs operation exactly when the state machine permits; otherwise
// it fails fast with ReasonCircuitOpen or ReasonHalfOpenProbeActive without
// invoking operation at all. The per-key critical section is released
// before operation runs, so concurrent keys — and concurrent CLOSED calls
// on the same key — never contend on it.
func (b *CircuitBreaker) Execute(ctx context.Context, key string, operation func(ctx context.Context) (any, error)) (any, domain.Reason, error) {
	ks := b.stateFor(key)

	allowed, reason, probing := b.admit(ks, key)
	if !allowed {
		ks.mu.Lock()
		ks.trace.add(Trace{At: time.Now(), Reason: string(reason), Allowed: false})
		ks.mu.Unlock()
		return nil, reason, domain.ErrCircuitOpen
	}

	callCtx := ctx
	var cancel context.CancelFunc
	if b.cfg.OperationTimeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, b.cfg.OperationTimeout)
		defer cancel()
	}

	start := time.Now()
	value, err := operation(callCtx)
	latency := time.Since(start)

	kind := domain.ErrorKindNone
	if err != nil {
		kind = b.classify(err)
	}

	b.report(ks, key, kind, probing)

	ks.mu.Lock()
	ks.trace.add(Trace{At: start, Reason: kind.String(), Latency: latency, Allowed: true, Failed: kind.IsInfrastructure()})
	ks.mu.Unlock()

	if err != nil {
		switch kind {
		case domain.ErrorKindTimeout:
			return value, domain.ReasonTimeout, err
		case domain.ErrorKindCancelled:
			return value, domain.ReasonCancelled, err
		default:
			if kind.IsInfrastructure() {
				return value, domain.ReasonUpstreamError, err
			}
			return value, domain.ReasonBusinessError, err
		}
	}
	return value, domain.ReasonNone, nil
}

// Peek reports whether a call against key would currently be rejected with
// ReasonCircuitOpen, without registering a half-open probe. It performs the
// same lazy OPEN->HALF_OPEN cooldown transition Execute's admit does (the
// "next call" that arrives after cooldown triggers the transition, per
// spec), but leaves halfOpenProbeActive untouched - the probe slot is only
// claimed by the call that actually runs through Execute. This lets an
// orchestrator gate on circuit state ahead of a cache lookup (spec.md
// §4.6 step 3) without spending the single half-open probe on a request
// that turns out to be a cache hit and never reports back to the breaker.
func (b *CircuitBreaker) Peek(key string) domain.Reason {
	ks := b.stateFor(key)
	ks.mu.Lock()
	defer ks.mu.Unlock()

	switch ks.state {
	case domain.CircuitOpen:
		if time.Since(ks.lastFailureTime) < b.cfg.CooldownPeriod {
			return domain.ReasonCircuitOpen
		}
		b.transition(ks, key, domain.CircuitHalfOpen)
		return domain.ReasonNone
	default:
		return domain.ReasonNone
	}
}

// admit decides whether a call is allowed right now, and whether this call
// is itself the single half-open probe. It holds the per-key lock only for
// the decision, never across the caller's operation.
func (b *CircuitBreaker) admit(ks *keyState, key string) (allowed bool, reason domain.Reason, probing bool) {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	switch ks.state {
	case domain.CircuitClosed:
		return true, domain.ReasonNone, false

	case domain.CircuitOpen:
		if time.Since(ks.lastFailureTime) < b.cfg.CooldownPeriod {
			return false, domain.ReasonCircuitOpen, false
		}
		b.transition(ks, key, domain.CircuitHalfOpen)
		ks.halfOpenProbeActive = true
		return true, domain.ReasonNone, true

	case domain.CircuitHalfOpen:
		if ks.halfOpenProbeActive {
			return false, domain.ReasonHalfOpenProbeActive, false
		}
		ks.halfOpenProbeActive = true
		return true, domain.ReasonNone, true

	default:
		return false, domain.ReasonCircuitOpen, false
	}
}

func (b *CircuitBreaker) report(ks *keyState, key string, kind domain.ErrorKind, probing bool) {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	if probing {
		ks.halfOpenProbeActive = false
	}

	ks.totalCalls++

	if kind == domain.ErrorKindNone {
		b.recordSuccessLocked(ks, key)
		return
	}

	// Business errors and cancellation pass through unchanged: they say
	// nothing about endpoint health, so neither counter moves.
	if !kind.IsInfrastructure() {
		return
	}

	ks.totalFailures++
	ks.lastFailureTime = time.Now()
	ks.consecutiveSuccesses = 0

	switch ks.state {
	case domain.CircuitClosed:
		ks.consecutiveFailures++
		if b.shouldOpen(ks) {
			b.transition(ks, key, domain.CircuitOpen)
		}
	case domain.CircuitHalfOpen:
		b.transition(ks, key, domain.CircuitOpen)
	}
}

func (b *CircuitBreaker) shouldOpen(ks *keyState) bool {
	if ks.consecutiveFailures >= b.cfg.FailureThreshold {
		return true
	}
	if b.cfg.ErrorThresholdPercentage > 0 && ks.totalCalls >= b.cfg.VolumeThreshold && ks.totalCalls > 0 {
		pct := float64(ks.totalFailures) / float64(ks.totalCalls) * 100
		return pct >= b.cfg.ErrorThresholdPercentage
	}
	return false
}

// RecordSuccess/RecordFailure are imperative updates for callers executing
// outside Execute entirely — a cache hit never reaches the breaker, but an
// orchestrator stage that bypasses Execute can use these directly, as the
// orchestrator's pool stage does with RecordFailure when no connection can
// be acquired.
func (b *CircuitBreaker) RecordSuccess(key string) {
	ks := b.stateFor(key)
	ks.mu.Lock()
	defer ks.mu.Unlock()
	b.recordSuccessLocked(ks, key)
}

func (b *CircuitBreaker) recordSuccessLocked(ks *keyState, key string) {
	ks.halfOpenProbeActive = false
	switch ks.state {
	case domain.CircuitClosed:
		ks.consecutiveFailures = 0
	case domain.CircuitHalfOpen:
		ks.consecutiveSuccesses++
		if ks.consecutiveSuccesses >= b.cfg.SuccessThreshold {
			b.transition(ks, key, domain.CircuitClosed)
		}
	}
}

func (b *CircuitBreaker) RecordFailure(key string) {
	ks := b.stateFor(key)
	ks.mu.Lock()
	defer ks.mu.Unlock()

	ks.lastFailureTime = time.Now()
	ks.consecutiveSuccesses = 0
	ks.halfOpenProbeActive = false

	switch ks.state {
	case domain.CircuitClosed:
		ks.consecutiveFailures++
		if b.shouldOpen(ks) {
			b.transition(ks, key, domain.CircuitOpen)
		}
	case domain.CircuitHalfOpen:
		b.transition(ks, key, domain.CircuitOpen)
	}
}

// Open, Close and Reset are the manual overrides the spec requires.
func (b *CircuitBreaker) Open(key string) {
	ks := b.stateFor(key)
	ks.mu.Lock()
	defer ks.mu.Unlock()
	ks.lastFailureTime = time.Now()
	b.transition(ks, key, domain.CircuitOpen)
}

func (b *CircuitBreaker) Close(key string) {
	ks := b.stateFor(key)
	ks.mu.Lock()
	defer ks.mu.Unlock()
	ks.consecutiveFailures = 0
	ks.consecutiveSuccesses = 0
	b.transition(ks, key, domain.CircuitClosed)
}

func (b *CircuitBreaker) Reset(key string) {
	ks := b.stateFor(key)
	ks.mu.Lock()
	defer ks.mu.Unlock()
	ks.consecutiveFailures = 0
	ks.consecutiveSuccesses = 0
	ks.totalCalls = 0
	ks.totalFailures = 0
	ks.halfOpenProbeActive = false
	b.transition(ks, key, domain.CircuitClosed)
}

// transition must be called with ks.mu held.
func (b *CircuitBreaker) transition(ks *keyState, key string, to domain.CircuitState) {
	from := ks.state
	if from == to {
		return
	}
	ks.state = to
	if to == domain.CircuitHalfOpen {
		ks.consecutiveFailures = 0
		ks.consecutiveSuccesses = 0
	}
	if to == domain.CircuitClosed {
		ks.consecutiveFailures = 0
		ks.consecutiveSuccesses = 0
		ks.totalCalls = 0
		ks.totalFailures = 0
	}
	b.events.PublishAsync(Event{At: time.Now(), Key: key, From: from, To: to})
}

// State reports a key's current state; unknown keys are CLOSED.
func (b *CircuitBreaker) State(key string) domain.CircuitState {
	ks, ok := b.keys.Load(key)
	if !ok {
		return domain.CircuitClosed
	}
	ks.mu.Lock()
	defer ks.mu.Unlock()
	return ks.state
}

// Trace returns the bounded diagnostic ring for a key, oldest first.
func (b *CircuitBreaker) Trace(key string) []Trace {
	ks, ok := b.keys.Load(key)
	if !ok {
		return nil
	}
	ks.mu.Lock()
	defer ks.mu.Unlock()
	return ks.trace.snapshot()
}

// Shutdown releases the breaker's event bus resources.
func (b *CircuitBreaker) Shutdown() {
	b.events.Shutdown()
}
