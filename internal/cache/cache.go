// Package cache provides small, bounded, process-wide caches shared by
// multiple requests for the lifetime of the process. Every cache here is a simple
// mutex-protected LRU map with a fixed capacity — no reentrant locks,
// no per-request lifetime, deterministic eviction under contention.
package cache

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// LRU wraps github.com/hashicorp/golang-lru/v2 with a mutex, matching
// the reference internal/scanner.Scanner.gitignoreCache usage pattern
// generalized to any key/value pair.
type LRU[K comparable, V any] struct {
	mu    sync.Mutex
	cache *lru.Cache[K, V]
}

// NewLRU creates a bounded LRU cache of the given size.
func NewLRU[K comparable, V any](size int) (*LRU[K, V], error) {
	c, err := lru.New[K, V](size)
	if err != nil {
		return nil, err
	}
	return &LRU[K, V]{cache: c}, nil
}

// Get returns the cached value and whether it was present.
func (l *LRU[K, V]) Get(key K) (V, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cache.Get(key)
}

// Add inserts or updates a value, evicting the least-recently-used
// entry if the cache is at capacity.
func (l *LRU[K, V]) Add(key K, value V) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cache.Add(key, value)
}

// Remove evicts a single key, if present.
func (l *LRU[K, V]) Remove(key K) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cache.Remove(key)
}

// RemoveIf evicts every key for which pred returns true. Used to
// invalidate a partition cache by (project, ref) prefix without
// requiring the caller to enumerate exact keys.
func (l *LRU[K, V]) RemoveIf(pred func(K) bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, k := range l.cache.Keys() {
		if pred(k) {
			l.cache.Remove(k)
		}
	}
}

// Len returns the current number of cached entries.
func (l *LRU[K, V]) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cache.Len()
}

// TTLCache is a single-slot cache that expires after a fixed duration,
// used for the health-payload cache.
type TTLCache[V any] struct {
	mu       sync.Mutex
	ttl      time.Duration
	value    V
	fetchedAt time.Time
	valid    bool
}

// NewTTLCache creates a single-value cache that considers its contents
// stale after ttl has elapsed since the last Set/refresh.
func NewTTLCache[V any](ttl time.Duration) *TTLCache[V] {
	return &TTLCache[V]{ttl: ttl}
}

// Get returns the cached value if it is still within its TTL window.
func (t *TTLCache[V]) Get() (V, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var zero V
	if !t.valid || time.Since(t.fetchedAt) > t.ttl {
		return zero, false
	}
	return t.value, true
}

// Set stores a fresh value and resets the TTL window.
func (t *TTLCache[V]) Set(v V) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.value = v
	t.fetchedAt = time.Now()
	t.valid = true
}

// GetOrCompute returns the cached value, or calls fn to compute and
// cache a fresh one if the TTL has expired. fn errors are not cached.
func (t *TTLCache[V]) GetOrCompute(fn func() (V, error)) (V, error) {
	if v, ok := t.Get(); ok {
		return v, nil
	}
	v, err := fn()
	if err != nil {
		var zero V
		return zero, err
	}
	t.Set(v)
	return v, nil
}
