// Package cache implements the response-memoization cache port: a
// TTL-bounded wrapper around the generic in-process LRU cache, used to
// memoize status/result/list lookups so repeated polling of a running or
// completed job does not re-hit the persistence layer on every call.
package cache

import (
	"time"

	"github.com/codescope-dev/codescope/pkg/alg/lru"
)

// expirable is the value type actually stored in the underlying LRU:
// the caller's value plus the time after which it is considered stale.
type expirable[V any] struct {
	value     V
	expiresAt time.Time
}

// TTLCache is a generic cache that evicts by LRU recency (via the
// underlying cache) and additionally treats entries as absent once their
// TTL has elapsed, without requiring a background sweep.
type TTLCache[K comparable, V any] struct {
	inner *lru.Cache[K, expirable[V]]
	ttl   time.Duration
	now   func() time.Time
}

// New creates a TTL cache holding at most maxEntries values, each valid
// for ttl after insertion.
func New[K comparable, V any](maxEntries int, ttl time.Duration) *TTLCache[K, V] {
	return &TTLCache[K, V]{
		inner: lru.New[K, expirable[V]](lru.WithMaxEntries[K, expirable[V]](maxEntries)),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Get returns the cached value for key if present and not expired.
func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	entry, ok := c.inner.Get(key)
	if !ok {
		var zero V

		return zero, false
	}

	if c.now().After(entry.expiresAt) {
		var zero V

		return zero, false
	}

	return entry.value, true
}

// Put stores value under key with the cache's configured TTL.
func (c *TTLCache[K, V]) Put(key K, value V) {
	c.inner.Put(key, expirable[V]{value: value, expiresAt: c.now().Add(c.ttl)})
}

// Invalidate removes key from the cache. The underlying LRU has no
// delete primitive, so invalidation overwrites the entry with one that
// is already expired; the next Get reports a miss and Put overwrites it.
func (c *TTLCache[K, V]) Invalidate(key K) {
	var zero V

	c.inner.Put(key, expirable[V]{value: zero, expiresAt: c.now().Add(-time.Second)})
}

// Len returns the number of entries currently stored, expired or not.
func (c *TTLCache[K, V]) Len() int {
	return c.inner.Len()
}

// Clear removes every entry. Used where a write can affect an unknown
// subset of cached keys - a list cache keyed by filter tuple has no
// single key to Invalidate when one of the underlying rows changes.
func (c *TTLCache[K, V]) Clear() {
	c.inner.Clear()
}
