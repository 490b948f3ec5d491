package pricefeed

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// MemoryCache holds recent quotes for a fixed TTL
type MemoryCache struct {
	mu     sync.RWMutex
	quotes map[string]quoteEntry
	ttl    time.Duration
	now    func() time.Time
}

type quoteEntry struct {
	quote     Quote
	fetchedAt time.Time
}

// NewMemoryCache creates a quote cache
func NewMemoryCache(ttl time.Duration, now func() time.Time) *MemoryCache {
	if now == nil {
		now = time.Now
	}
	return &MemoryCache{
		quotes: make(map[string]quoteEntry),
		ttl:    ttl,
		now:    now,
	}
}

// Get retrieves a cached quote if fresh
func (c *MemoryCache) Get(asset string) (*Quote, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.quotes[asset]
	if !exists {
		return nil, false
	}
	if c.now().Sub(entry.fetchedAt) > c.ttl {
		return nil, false
	}
	q := entry.quote
	return &q, true
}

// Set caches a quote
func (c *MemoryCache) Set(q *Quote) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.quotes[q.Asset] = quoteEntry{
		quote:     *q,
		fetchedAt: c.now(),
	}
}

// Invalidate removes a quote from the cache
func (c *MemoryCache) Invalidate(asset string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.quotes, asset)
}

// Clear removes all cached quotes
func (c *MemoryCache) Clear() {
	c.mu.Lock()
	c.quotes = make(map[string]quoteEntry)
	c.mu.Unlock()
}

// CachedFeed puts a MemoryCache in front of another Feed
type CachedFeed struct {
	feed  Feed
	cache *MemoryCache
}

// NewCachedFeed wraps feed with cache
func NewCachedFeed(feed Feed, cache *MemoryCache) *CachedFeed {
	return &CachedFeed{feed: feed, cache: cache}
}

func (f *CachedFeed) GetPrice(ctx context.Context, asset string) (*Quote, error) {
	if q, ok := f.cache.Get(asset); ok {
		log.Debugf("price cache hit for %s", asset)
		return q, nil
	}
	q, err := f.feed.GetPrice(ctx, asset)
	if err != nil {
		return nil, err
	}
	f.cache.Set(q)
	return q, nil
}
