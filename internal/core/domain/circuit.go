package domain

// CircuitState is one of the three states a breaker key can be in. The
// contract is fixed here rather than left to vary between implementations:
// HALF_OPEN requires exactly SuccessThreshold consecutive probe successes
// before closing, and exactly one probe may be in flight at a time.
type CircuitState int32

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

// ErrCircuitOpen is returned by CircuitBreaker.Execute when a call is
// rejected without running, whether the circuit is OPEN or a HALF_OPEN
// probe is already in flight; Reason distinguishes the two.
var ErrCircuitOpen = errSentinel("circuit breaker rejected call")

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}
