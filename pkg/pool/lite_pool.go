// Package pool is a strongly typed wrapper around sync.Pool with optional
// Reset() support, grounded on olla's pkg/pool.LitePool. The wire fetcher
// uses one instance to reuse the *bytes.Buffer it encodes each JSON-RPC
// request into; Put drops any buffer that grew past maxPooledCap rather
// than pinning that memory in the pool for the lifetime of the process.
//
// Designed for internal use where the constructor guarantees type safety, so the
// type assertion in Get() is safe and explicitly silenced.
//
// Example:
//   pool := NewLitePool(func() *bytes.Buffer { return new(bytes.Buffer) })
//   buf := pool.Get()
//   defer pool.Put(buf)
package pool

import "sync"

// defaultMaxPooledCap bounds how large a *bytes.Buffer can grow before
// Put discards it instead of returning it to the pool, so one
// unusually large value doesn't inflate steady-state memory for every
// future reuse.
const defaultMaxPooledCap = 4 << 20 // 4MiB

type Resettable interface {
	Reset()
}

// Capped is satisfied by pooled values that can report how much memory
// they currently hold, such as *bytes.Buffer's own Cap method.
type Capped interface {
	Cap() int
}

type Pool[T any] struct {
	pool         sync.Pool
	new          func() T
	maxPooledCap int
}

func NewLitePool[T any](newFn func() T) *Pool[T] {
	if newFn == nil {
		panic("litepool: constructor must not be nil")
	}
	// Validate early that the result is non-nil
	test := newFn()
	if any(test) == nil {
		panic("litepool: constructor returned nil")
	}

	return &Pool[T]{
		pool: sync.Pool{
			New: func() any {
				v := newFn()
				if any(v) == nil {
					panic("litepool: constructor returned nil")
				}
				return v
			},
		},
		new:          newFn,
		maxPooledCap: defaultMaxPooledCap,
	}
}

// WithMaxPooledCap overrides the capacity threshold Put uses to decide
// whether to retain or discard a Capped value. Chainable with NewLitePool.
func (p *Pool[T]) WithMaxPooledCap(n int) *Pool[T] {
	p.maxPooledCap = n
	return p
}

func (p *Pool[T]) Get() T {
	//nolint:forcetypeassert // safe due to validated New
	return p.pool.Get().(T)
}

func (p *Pool[T]) Put(v T) {
	if c, ok := any(v).(Capped); ok && c.Cap() > p.maxPooledCap {
		return
	}
	if r, ok := any(v).(Resettable); ok {
		r.Reset()
	}
	p.pool.Put(v)
}
