package cache

import (
	"container/list"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
	"golang.org/x/sync/singleflight"
)

// entry is a stored value plus its expiry and an eviction-list handle.
type entry struct {
	value     any
	expiresAt time.Time
	listElem  *list.Element
}

// RequestCache memoizes (method, normalized params) results for up to
// DefaultTTL, coalescing concurrent misses for the same key into a single
// upstream fetch via golang.org/x/sync/singleflight — the same module the
// orchestrator's batchCall uses for errgroup, so the single-flight and
// fan-out primitives come from one dependency rather than two. Bounded
// eviction is insertion/access order via container/list, the stdlib
// building block for an LRU the pack otherwise has no third-party
// alternative for.
type RequestCache struct {
	cfg   Config
	store *xsync.Map[string, *entry]

	mu    sync.Mutex
	order *list.List // front = most recently touched

	flight *singleflight.Group

	hits   uint64
	misses uint64
	hitMu  sync.Mutex

	stopCh chan struct{}
}

func New(cfg Config) *RequestCache {
	cfg = cfg.withDefaults()
	c := &RequestCache{
		cfg:    cfg,
		store:  xsync.NewMap[string, *entry](),
		order:  list.New(),
		flight: &singleflight.Group{},
		stopCh: make(chan struct{}),
	}
	go c.cleanupLoop()
	return c
}

func (c *RequestCache) Close() {
	select {
	case <-c.stopCh:
	default:
		close(c.stopCh)
	}
}

// Get returns the stored value for key, or (nil, false) if absent or past
// TTL. O(1); touches the eviction list under a small critical section.
func (c *RequestCache) Get(key string) (any, bool) {
	e, ok := c.store.Load(key)
	if !ok {
		c.recordMiss()
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		c.evict(key, e)
		c.recordMiss()
		return nil, false
	}

	c.mu.Lock()
	c.order.MoveToFront(e.listElem)
	c.mu.Unlock()

	c.recordHit()
	return e.value, true
}

// Set stores value under key with ttl, or cfg.DefaultTTL if ttl <= 0.
func (c *RequestCache) Set(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.cfg.DefaultTTL
	}

	if existing, ok := c.store.Load(key); ok {
		existing.value = value
		existing.expiresAt = time.Now().Add(ttl)
		c.mu.Lock()
		c.order.MoveToFront(existing.listElem)
		c.mu.Unlock()
		return
	}

	c.mu.Lock()
	elem := c.order.PushFront(key)
	c.mu.Unlock()

	c.store.Store(key, &entry{value: value, expiresAt: time.Now().Add(ttl), listElem: elem})
	c.evictOverflow()
}

// GetOrFill returns the cached value on hit; on miss it runs fill exactly
// once per key even under concurrent callers (singleflight.Group.Do), then
// caches the result with ttl before returning it to every waiter.
func (c *RequestCache) GetOrFill(key string, ttl time.Duration, fill func() (any, error)) (any, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	if !c.cfg.CoalesceRequests {
		v, err := fill()
		if err != nil {
			return nil, err
		}
		c.Set(key, v, ttl)
		return v, nil
	}

	v, err, _ := c.flight.Do(key, func() (interface{}, error) {
		// Re-check without touching the hit/miss counters: the lookup
		// above has already counted this call as a miss.
		if e, ok := c.store.Load(key); ok && !time.Now().After(e.expiresAt) {
			return e.value, nil
		}
		v, err := fill()
		if err != nil {
			return nil, err
		}
		c.Set(key, v, ttl)
		return v, nil
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (c *RequestCache) evict(key string, e *entry) {
	c.store.Delete(key)
	c.mu.Lock()
	c.order.Remove(e.listElem)
	c.mu.Unlock()
}

func (c *RequestCache) evictOverflow() {
	for {
		c.mu.Lock()
		if c.order.Len() <= c.cfg.MaxSize {
			c.mu.Unlock()
			return
		}
		back := c.order.Back()
		if back == nil {
			c.mu.Unlock()
			return
		}
		c.order.Remove(back)
		c.mu.Unlock()
		c.store.Delete(back.Value.(string))
	}
}

func (c *RequestCache) cleanupLoop() {
	ticker := time.NewTicker(c.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.sweepExpired()
		}
	}
}

func (c *RequestCache) sweepExpired() {
	now := time.Now()
	var expired []string
	c.store.Range(func(key string, e *entry) bool {
		if now.After(e.expiresAt) {
			expired = append(expired, key)
		}
		return true
	})
	for _, key := range expired {
		if e, ok := c.store.Load(key); ok {
			c.evict(key, e)
		}
	}
}

func (c *RequestCache) recordHit() {
	c.hitMu.Lock()
	c.hits++
	c.hitMu.Unlock()
}

func (c *RequestCache) recordMiss() {
	c.hitMu.Lock()
	c.misses++
	c.hitMu.Unlock()
}

// Stats reports cumulative hit/miss counts and current size.
type Stats struct {
	Hits   uint64
	Misses uint64
	Size   int
}

func (c *RequestCache) Stats() Stats {
	c.hitMu.Lock()
	hits, misses := c.hits, c.misses
	c.hitMu.Unlock()

	c.mu.Lock()
	size := c.order.Len()
	c.mu.Unlock()

	return Stats{Hits: hits, Misses: misses, Size: size}
}
