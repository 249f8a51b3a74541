package domain

// ErrNoConnection is returned by a connection pool's Acquire when the
// global or per-host socket cap is already exhausted. Acquire never
// blocks to wait for a free slot; callers already arbitrate retries via
// the breaker and selector.
var ErrNoConnection = errSentinel("connection pool exhausted")
