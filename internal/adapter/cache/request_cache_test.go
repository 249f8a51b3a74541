package cache

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestCache_SetGet(t *testing.T) {
	c := New(Config{MaxSize: 10, DefaultTTL: time.Minute})
	c.Set("k", "v", 0)

	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestRequestCache_MissOnAbsent(t *testing.T) {
	c := New(Config{MaxSize: 10, DefaultTTL: time.Minute})
	_, ok := c.Get("nope")
	assert.False(t, ok)
}

func TestRequestCache_TTLExpiry(t *testing.T) {
	c := New(Config{MaxSize: 10, DefaultTTL: time.Minute})
	c.Set("k", "v", 5*time.Millisecond)

	time.Sleep(10 * time.Millisecond)
	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestRequestCache_BoundedEvictionDropsOldest(t *testing.T) {
	c := New(Config{MaxSize: 2, DefaultTTL: time.Minute})
	c.Set("a", 1, 0)
	c.Set("b", 2, 0)
	c.Set("c", 3, 0)

	_, ok := c.Get("a")
	assert.False(t, ok, "oldest entry should have been evicted")

	_, ok = c.Get("c")
	assert.True(t, ok)
	assert.Equal(t, 2, c.Stats().Size)
}

func TestRequestCache_GetOrFillCoalescesConcurrentMisses(t *testing.T) {
	c := New(Config{MaxSize: 10, DefaultTTL: time.Minute, CoalesceRequests: true})

	var calls atomic.Int32
	fill := func() (any, error) {
		calls.Add(1)
		time.Sleep(10 * time.Millisecond)
		return "value", nil
	}

	var wg sync.WaitGroup
	results := make([]any, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := c.GetOrFill("k", 0, fill)
			require.NoError(t, err)
			results[i] = v
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, v := range results {
		assert.Equal(t, "value", v)
	}
}

func TestRequestCache_GetOrFillPropagatesFillError(t *testing.T) {
	c := New(Config{MaxSize: 10, DefaultTTL: time.Minute})
	_, err := c.GetOrFill("k", 0, func() (any, error) {
		return nil, errors.New("upstream down")
	})
	require.Error(t, err)

	_, ok := c.Get("k")
	assert.False(t, ok, "a failed fill must not populate the cache")
}

func TestRequestCache_NoCoalesceRunsFillEveryMiss(t *testing.T) {
	c := New(Config{MaxSize: 10, DefaultTTL: time.Minute, CoalesceRequests: false})

	var calls atomic.Int32
	fill := func() (any, error) {
		calls.Add(1)
		return "v", nil
	}

	_, err := c.GetOrFill("k", time.Millisecond, fill)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	_, err = c.GetOrFill("k", time.Millisecond, fill)
	require.NoError(t, err)

	assert.Equal(t, int32(2), calls.Load())
}

func TestCanonicalKey_OrderIndependent(t *testing.T) {
	k1 := CanonicalKey("getBalance", map[string]any{"a": 1, "b": 2})
	k2 := CanonicalKey("getBalance", map[string]any{"b": 2, "a": 1})
	assert.Equal(t, k1, k2)
}

func TestCanonicalKey_DifferentParamsDiffer(t *testing.T) {
	k1 := CanonicalKey("getBalance", map[string]any{"a": 1})
	k2 := CanonicalKey("getBalance", map[string]any{"a": 2})
	assert.NotEqual(t, k1, k2)
}

func TestCanonicalKey_RawJSONStringNormalizes(t *testing.T) {
	k1 := CanonicalKey("m", `{"x":1,"y":2}`)
	k2 := CanonicalKey("m", `{"y":2,"x":1}`)
	assert.Equal(t, k1, k2)
}
