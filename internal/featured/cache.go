package featured

import (
	"sync"
	"time"

	"reelstream/internal/catalog"
)

type cacheEntry struct {
	movies    []catalog.Movie
	expiresAt time.Time
}

type cacheStore struct {
	mu    sync.Mutex
	items map[string]cacheEntry
}

func newCache() *cacheStore {
	return &cacheStore{items: make(map[string]cacheEntry)}
}

func (c *cacheStore) Get(key string, now time.Time) ([]catalog.Movie, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.items[key]
	if !ok {
		return nil, false
	}
	if !entry.expiresAt.IsZero() && now.After(entry.expiresAt) {
		delete(c.items, key)
		return nil, false
	}
	out := make([]catalog.Movie, len(entry.movies))
	copy(out, entry.movies)
	return out, true
}

func (c *cacheStore) Set(key string, movies []catalog.Movie, ttl time.Duration, now time.Time) {
	if ttl <= 0 {
		return
	}
	out := make([]catalog.Movie, len(movies))
	copy(out, movies)
	c.mu.Lock()
	c.items[key] = cacheEntry{
		movies:    out,
		expiresAt: now.Add(ttl),
	}
	c.mu.Unlock()
}

func (c *cacheStore) Clear() {
	c.mu.Lock()
	c.items = make(map[string]cacheEntry)
	c.mu.Unlock()
}
