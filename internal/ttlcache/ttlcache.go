// Package ttlcache holds single-value cache entries with an explicit expiry.
package ttlcache

import (
	"sync"
	"time"
)

// Value is a concurrency-safe {value, expiry} entry. A zero TTL never expires.
type Value[T any] struct {
	mu      sync.Mutex
	value   T
	expires time.Time
	set     bool
	now     func() time.Time
}

// New returns an empty entry using the given clock; nil means time.Now.
func New[T any](now func() time.Time) *Value[T] {
	if now == nil {
		now = time.Now
	}
	return &Value[T]{now: now}
}

// Set stores v for ttl.
func (c *Value[T]) Set(v T, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = v
	c.set = true
	if ttl > 0 {
		c.expires = c.clock().Add(ttl)
	} else {
		c.expires = time.Time{}
	}
}

// Get returns the stored value while it is fresh.
func (c *Value[T]) Get() (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero T
	if !c.set {
		return zero, false
	}
	if !c.expires.IsZero() && !c.clock().Before(c.expires) {
		c.value = zero
		c.set = false
		return zero, false
	}
	return c.value, true
}

// Clear drops the stored value.
func (c *Value[T]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero T
	c.value = zero
	c.set = false
	c.expires = time.Time{}
}

func (c *Value[T]) clock() time.Time {
	if c.now == nil {
		return time.Now()
	}
	return c.now()
}
