// Package cache provides a small time-bounded in-memory cache.
package cache

import (
	"sync"
	"time"
)

// Clock returns the current time. Tests inject a fake clock.
type Clock func() time.Time

// Entry is a cached value together with its timing metadata.
type Entry[V any] struct {
	Value     V
	FetchedAt time.Time
	ExpiresAt time.Time
}

// Fresh reports whether the entry has not yet expired at now.
func (e Entry[V]) Fresh(now time.Time) bool {
	return now.Before(e.ExpiresAt)
}

// TTL is a keyed cache whose entries expire after a fixed duration.
// Expired entries stay readable through Peek until they exceed the
// retention window, which allows callers to serve stale data on error.
type TTL[K comparable, V any] struct {
	ttl       time.Duration
	retention time.Duration
	now       Clock

	mu      sync.RWMutex
	entries map[K]Entry[V]
}

// Config holds configuration for a TTL cache.
type Config struct {
	// TTL is how long an entry is considered fresh.
	TTL time.Duration

	// Retention is how long an entry is kept after it was stored, fresh or
	// not. Defaults to TTL.
	Retention time.Duration

	// Clock overrides time.Now.
	Clock Clock
}

// NewTTL creates a new TTL cache.
func NewTTL[K comparable, V any](cfg Config) *TTL[K, V] {
	retention := cfg.Retention
	if retention < cfg.TTL {
		retention = cfg.TTL
	}

	now := cfg.Clock
	if now == nil {
		now = time.Now
	}

	return &TTL[K, V]{
		ttl:       cfg.TTL,
		retention: retention,
		now:       now,
		entries:   make(map[K]Entry[V]),
	}
}

// Get returns the value for key if it is still fresh.
func (c *TTL[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || !e.Fresh(c.now()) {
		var zero V
		return zero, false
	}
	return e.Value, true
}

// Peek returns the entry for key regardless of freshness, as long as it is
// within the retention window.
func (c *TTL[K, V]) Peek(key K) (Entry[V], bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || c.now().After(e.FetchedAt.Add(c.retention)) {
		return Entry[V]{}, false
	}
	return e, true
}

// Set stores value under key and drops entries past their retention window.
func (c *TTL[K, V]) Set(key K, value V) Entry[V] {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	e := Entry[V]{
		Value:     value,
		FetchedAt: now,
		ExpiresAt: now.Add(c.ttl),
	}
	c.entries[key] = e

	for k, old := range c.entries {
		if now.After(old.FetchedAt.Add(c.retention)) {
			delete(c.entries, k)
		}
	}

	return e
}

// Delete removes key from the cache.
func (c *TTL[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Clear removes every entry.
func (c *TTL[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[K]Entry[V])
}

// Stats returns entry counts.
func (c *TTL[K, V]) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := c.now()
	stats := Stats{Entries: len(c.entries)}
	for _, e := range c.entries {
		if e.Fresh(now) {
			stats.Fresh++
		}
	}
	return stats
}

// Stats contains cache statistics.
type Stats struct {
	Entries int
	Fresh   int
}
