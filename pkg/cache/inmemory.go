package cache

import (
	"context"
	"sync"
	"time"
)

// entry is a cached value with its lifetime.
type entry[V any] struct {
	value     V
	createdAt time.Time
	expiresAt time.Time
}

// InMemoryCache is a thread-safe, process-lifetime TTL cache.
//
// Expired entries are removed lazily by the next Fetch of their key; there is
// no sweeper and no size bound, so it is only suited to a small, fixed key space.
type InMemoryCache[K comparable, V any] struct {
	mu   sync.Mutex
	data map[K]entry[V]
	now  func() time.Time
}

// NewInMemoryCache creates a new in-memory cache. A nil clock defaults to time.Now.
func NewInMemoryCache[K comparable, V any](now func() time.Time) *InMemoryCache[K, V] {
	if now == nil {
		now = time.Now
	}
	return &InMemoryCache[K, V]{
		data: make(map[K]entry[V]),
		now:  now,
	}
}

// Fetch returns the stored value. An entry observed past its expiry is deleted
// under the same lock and reported as a miss.
func (c *InMemoryCache[K, V]) Fetch(_ context.Context, key K) (V, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.data[key]
	if !ok {
		return zero, ErrCacheMiss
	}
	if c.now().After(e.expiresAt) {
		delete(c.data, key)
		return zero, ErrCacheMiss
	}
	return e.value, nil
}

// Set stores value with expiry now+ttl.
func (c *InMemoryCache[K, V]) Set(_ context.Context, key K, value V, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	c.data[key] = entry[V]{value: value, createdAt: now, expiresAt: now.Add(ttl)}
	return nil
}

// Clear drops all entries.
func (c *InMemoryCache[K, V]) Clear(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[K]entry[V])
	return nil
}

// Len reports the number of indexed entries, including expired ones that have
// not been read since they expired.
func (c *InMemoryCache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data)
}

// Close is a no-op for the in-memory cache.
func (c *InMemoryCache[K, V]) Close() error {
	return nil
}
