// Package cache holds recently scraped results in memory.
package cache

import (
	"sync"
	"time"

	"github.com/MrSnakeDoc/mediabot/internal/domain"
)

const (
	// DefaultTTL is how long a result stays servable
	DefaultTTL = 5 * time.Minute
	// DefaultCapacity is the maximum number of results kept
	DefaultCapacity = 200
)

type entry struct {
	result    *domain.ScrapedResult
	createdAt time.Time
}

// ResultCache is a TTL and capacity bounded map of original URL to result.
//
// Eviction is by creation time, not access time. Placeholder results are
// cached exactly like successful ones.
type ResultCache struct {
	mu       sync.Mutex
	ttl      time.Duration
	capacity int
	entries  map[string]entry
	now      func() time.Time
}

// New creates an empty cache. Zero or negative values fall back to defaults.
func New(ttl time.Duration, capacity int) *ResultCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &ResultCache{
		ttl:      ttl,
		capacity: capacity,
		entries:  make(map[string]entry, capacity),
		now:      time.Now,
	}
}

// Get returns the cached result for url. An expired entry is removed and reported absent.
func (c *ResultCache) Get(url string) (*domain.ScrapedResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[url]
	if !ok {
		return nil, false
	}
	if c.expired(e, c.now()) {
		delete(c.entries, url)
		return nil, false
	}
	return e.result, true
}

// Put stores result under url, evicting expired entries first and then the
// oldest entries until there is room.
func (c *ResultCache) Put(url string, result *domain.ScrapedResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.purgeLocked(now)

	for len(c.entries) >= c.capacity {
		c.evictOldestLocked()
	}

	c.entries[url] = entry{result: result, createdAt: now}
}

// Purge removes every expired entry and returns how many were removed.
func (c *ResultCache) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.purgeLocked(c.now())
}

// Flush empties the cache and returns how many entries were dropped.
func (c *ResultCache) Flush() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.entries)
	c.entries = make(map[string]entry, c.capacity)
	return n
}

// Len returns the number of entries, expired ones included.
func (c *ResultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *ResultCache) expired(e entry, now time.Time) bool {
	return now.Sub(e.createdAt) > c.ttl
}

func (c *ResultCache) purgeLocked(now time.Time) int {
	removed := 0
	for k, e := range c.entries {
		if c.expired(e, now) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

func (c *ResultCache) evictOldestLocked() {
	var (
		oldestKey string
		oldestAt  time.Time
		found     bool
	)
	for k, e := range c.entries {
		if !found || e.createdAt.Before(oldestAt) {
			oldestKey, oldestAt, found = k, e.createdAt, true
		}
	}
	if found {
		delete(c.entries, oldestKey)
	}
}
