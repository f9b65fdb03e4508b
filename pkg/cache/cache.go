// Package cache provides TTL caches that sit in front of the upstream fetcher.
package cache

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrCacheMiss is returned by Fetch when the key is absent or has expired.
var ErrCacheMiss = errors.New("cache miss")

// ErrInvalidTTL is returned by Set when the TTL is not positive.
var ErrInvalidTTL = errors.New("ttl must be greater than 0")

// Cache is a generic, TTL-aware caching layer.
type Cache[K comparable, V any] interface {
	// Fetch retrieves an unexpired value, or ErrCacheMiss.
	Fetch(ctx context.Context, key K) (V, error)
	// Set stores value under key until now+ttl, replacing any prior entry.
	Set(ctx context.Context, key K, value V, ttl time.Duration) error
	// Clear drops every entry owned by the cache.
	Clear(ctx context.Context) error
	io.Closer
}
