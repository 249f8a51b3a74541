// Package ratelimit admits or denies calls at pipeline entry against a
// refilling token budget.
//
// It wraps golang.org/x/time/rate the way olla's RateLimitValidator wraps
// it for its global/per-IP limiters: Reserve()-and-Cancel() rather than
// Wait(), since the spec requires consume() to never block.
package ratelimit

import (
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Config configures a TokenBucket. MaxBurst defaults to 1.5x RateLimit when
// zero. WindowMs is informational; refill is continuous rather than
// stepped, so any window value yields the same effective rate.
type Config struct {
	RateLimit float64
	WindowMs  int64
	MaxBurst  float64
}

func (c Config) withDefaults() Config {
	if c.MaxBurst <= 0 {
		c.MaxBurst = c.RateLimit * 1.5
	}
	if c.WindowMs <= 0 {
		c.WindowMs = 1000
	}
	return c
}

// TokenBucket admits or denies a call based on a configured steady-state
// rate and burst ceiling. Consume never blocks and never panics; denial is
// a normal outcome, not an error.
type TokenBucket struct {
	limiter atomic.Pointer[rate.Limiter]
	cfg     atomic.Pointer[Config]

	admitted atomic.Uint64
	denied   atomic.Uint64
}

// New creates a TokenBucket starting fully charged (tokens = maxBurst).
func New(cfg Config) *TokenBucket {
	cfg = cfg.withDefaults()
	b := &TokenBucket{}
	b.cfg.Store(&cfg)
	b.limiter.Store(rate.NewLimiter(rate.Limit(cfg.RateLimit), int(cfg.MaxBurst)))
	return b
}

// Consume returns true if n tokens can be deducted at the current instant;
// otherwise the bucket is left unchanged and false is returned. n=0 is
// always a no-op admission.
func (b *TokenBucket) Consume(n int) bool {
	if n == 0 {
		return true
	}

	limiter := b.limiter.Load()
	now := time.Now()
	reservation := limiter.ReserveN(now, n)
	if !reservation.OK() {
		b.denied.Add(1)
		return false
	}
	if reservation.Delay() > 0 {
		reservation.Cancel()
		b.denied.Add(1)
		return false
	}

	b.admitted.Add(1)
	return true
}

// Tokens returns the current, refilled-to-now token count.
func (b *TokenBucket) Tokens() float64 {
	return b.limiter.Load().TokensAt(time.Now())
}

// Stats reports lifetime admission counters.
type Stats struct {
	Admitted uint64
	Denied   uint64
}

func (b *TokenBucket) Stats() Stats {
	return Stats{Admitted: b.admitted.Load(), Denied: b.denied.Load()}
}

// Reset reconfigures the bucket, restarting it fully charged at the new
// maxBurst - matches the spec's "reset on manual reconfigure" invariant.
func (b *TokenBucket) Reset(cfg Config) {
	cfg = cfg.withDefaults()
	b.cfg.Store(&cfg)
	b.limiter.Store(rate.NewLimiter(rate.Limit(cfg.RateLimit), int(cfg.MaxBurst)))
}
