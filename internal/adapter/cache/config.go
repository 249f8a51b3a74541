package cache

import "time"

// Config drives a RequestCache's size bound, default TTL, and whether
// concurrent misses for the same key coalesce into one upstream fetch.
type Config struct {
	MaxSize          int
	DefaultTTL       time.Duration
	CleanupInterval  time.Duration
	CoalesceRequests bool
}

func (c Config) withDefaults() Config {
	if c.MaxSize <= 0 {
		c.MaxSize = 10_000
	}
	if c.DefaultTTL <= 0 {
		c.DefaultTTL = 30 * time.Second
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = time.Minute
	}
	return c
}
