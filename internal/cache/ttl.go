package cache

import (
	"context"
	"sync"
	"time"
)

// FetchFunc loads the cached value from its source of truth.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// TTL is a single-value read-through cache with a fixed expiry. Each owner
// (AI config, message templates) holds its own instance; there is no shared
// global cache state.
type TTL[T any] struct {
	mu        sync.Mutex
	value     T
	loaded    bool
	expiresAt time.Time
	ttl       time.Duration
	fetch     FetchFunc[T]
}

// NewTTL builds a read-through cache around fetch with the given expiry.
func NewTTL[T any](ttl time.Duration, fetch FetchFunc[T]) *TTL[T] {
	return &TTL[T]{ttl: ttl, fetch: fetch}
}

// Get returns the cached value, refreshing it from the fetch function when
// expired. A failed refresh returns the error alongside the zero value; the
// caller decides whether to substitute defaults.
func (c *TTL[T]) Get(ctx context.Context) (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.loaded && time.Now().Before(c.expiresAt) {
		return c.value, nil
	}

	value, err := c.fetch(ctx)
	if err != nil {
		var zero T
		return zero, err
	}

	c.value = value
	c.loaded = true
	c.expiresAt = time.Now().Add(c.ttl)
	return value, nil
}

// Invalidate discards the cached value so the next Get refetches.
func (c *TTL[T]) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loaded = false
}
