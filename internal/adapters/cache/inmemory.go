package cache

import (
	"context"
	"time"

	goCache "github.com/patrickmn/go-cache"

	"quoteflow/internal/domain"
)

// DefaultExpiration applies when Set is called with a non-positive ttl.
const DefaultExpiration = 5 * time.Minute

// DefaultCleanupInterval is how often expired items are removed from the cache.
const DefaultCleanupInterval = 10 * time.Minute

// InMemoryCache implements domain.Cache on top of github.com/patrickmn/go-cache.
type InMemoryCache struct {
	cache *goCache.Cache
}

// NewInMemoryCache returns a process-local cache.
func NewInMemoryCache(defaultExpiration time.Duration) *InMemoryCache {
	if defaultExpiration <= 0 {
		defaultExpiration = DefaultExpiration
	}
	return &InMemoryCache{cache: goCache.New(defaultExpiration, DefaultCleanupInterval)}
}

var _ domain.Cache = (*InMemoryCache)(nil)

// Get retrieves a value from the cache
func (c *InMemoryCache) Get(_ context.Context, key string) (any, bool) {
	return c.cache.Get(key)
}

// Set adds a value to the cache with the specified expiration
func (c *InMemoryCache) Set(_ context.Context, key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = goCache.DefaultExpiration
	}
	c.cache.Set(key, value, ttl)
}

// Delete removes a key from the cache
func (c *InMemoryCache) Delete(_ context.Context, key string) {
	c.cache.Delete(key)
}
