package secrets

import (
	"sync"
	"time"
)

type entry[T any] struct {
	value   T
	validTo time.Time
}

// Cache keeps resolved secret material in memory between rotations so hot
// paths never block on the secrets backend. Typed so credential and config
// caches stay separate.
type Cache[T any] struct {
	mu      sync.RWMutex
	entries map[string]entry[T]
	ttl     time.Duration
}

// NewCache builds a cache whose entries expire after ttl.
func NewCache[T any](ttl time.Duration) *Cache[T] {
	return &Cache[T]{
		entries: make(map[string]entry[T]),
		ttl:     ttl,
	}
}

// Get returns the live value for key. Expired entries are dropped on read so
// a stale credential is never handed out, even before the cleaner runs.
func (c *Cache[T]) Get(key string) (T, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	var zero T
	if !ok {
		return zero, false
	}
	if time.Now().After(e.validTo) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return zero, false
	}
	return e.value, true
}

// Put stores value under key for the cache TTL.
func (c *Cache[T]) Put(key string, value T) {
	c.mu.Lock()
	c.entries[key] = entry[T]{value: value, validTo: time.Now().Add(c.ttl)}
	c.mu.Unlock()
}

// Bust evicts a single key, forcing the next Get to miss. Used when a
// backend rejects a signature and the credential needs a fresh fetch.
func (c *Cache[T]) Bust(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// StartCleaner sweeps expired entries every interval until stop closes.
// Run it in its own goroutine.
func (c *Cache[T]) StartCleaner(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-stop:
			return
		}
	}
}

func (c *Cache[T]) sweep() {
	now := time.Now()
	c.mu.Lock()
	for key, e := range c.entries {
		if now.After(e.validTo) {
			delete(c.entries, key)
		}
	}
	c.mu.Unlock()
}
