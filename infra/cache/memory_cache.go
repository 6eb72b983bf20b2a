package cache

import (
	"context"
	"sync"
	"time"

	"github.com/travelagency/backoffice/pkg/cache"
	"github.com/travelagency/backoffice/pkg/domain/ledger"
)

// MemoryCache implements cache.RateCache in process memory.
type MemoryCache struct {
	entries map[string]cacheEntry
	mu      sync.RWMutex
	now     func() time.Time
}

type cacheEntry struct {
	rate      ledger.ExchangeRate
	expiresAt time.Time
}

// NewMemoryCache creates an empty in-memory rate cache. Expired entries are
// dropped lazily on read.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

// Get retrieves a rate from cache.
func (c *MemoryCache) Get(_ context.Context, key string) (*ledger.ExchangeRate, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if c.now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, nil
	}
	rate := entry.rate
	return &rate, nil
}

// Set stores a copy of rate with ttl.
func (c *MemoryCache) Set(_ context.Context, key string, rate *ledger.ExchangeRate, ttl time.Duration) error {
	if rate == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{rate: *rate, expiresAt: c.now().Add(ttl)}
	return nil
}

// Clear drops every entry.
func (c *MemoryCache) Clear(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
	return nil
}

var _ cache.RateCache = (*MemoryCache)(nil)
