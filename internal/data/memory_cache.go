package data

import (
	"container/list"
	"context"
	"errors"
	"sync"
	"time"
)

const defaultMemoryCacheCapacity = 1024

// MemoryCache is a bounded in-process LRU cache with per-entry TTL. It
// implements core.CacheRepository for single-process deployments.
type MemoryCache struct {
	mu    sync.Mutex
	cap   int
	ll    *list.List // front = most-recently used
	items map[string]*list.Element
	now   func() time.Time
}

type cacheEntry struct {
	key    string
	value  []byte
	expiry time.Time // zero means no expiry
}

// MemoryCacheConfig groups constructor options.
type MemoryCacheConfig struct {
	Capacity int
	Now      func() time.Time
}

// NewMemoryCache creates a MemoryCache; a non-positive capacity uses 1024.
func NewMemoryCache(cfg MemoryCacheConfig) *MemoryCache {
	capacity := cfg.Capacity
	if capacity <= 0 {
		capacity = defaultMemoryCacheCapacity
	}
	nowFn := cfg.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	return &MemoryCache{
		cap:   capacity,
		ll:    list.New(),
		items: make(map[string]*list.Element, capacity),
		now:   nowFn,
	}
}

// Get returns the value for key if present and not expired.
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, errors.New("key cannot be empty")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	el, found := c.items[key]
	if !found {
		return nil, nil
	}
	ent := el.Value.(*cacheEntry)
	if c.isExpired(ent) {
		c.removeElement(el)
		return nil, nil
	}
	c.ll.MoveToFront(el)
	return ent.value, nil
}

// Set inserts or updates a value. ttl <= 0 means no expiration.
func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if key == "" {
		return errors.New("key cannot be empty")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	var exp time.Time
	if ttl > 0 {
		exp = c.now().Add(ttl)
	}

	if el, found := c.items[key]; found {
		ent := el.Value.(*cacheEntry)
		ent.value = value
		ent.expiry = exp
		c.ll.MoveToFront(el)
		return nil
	}

	c.items[key] = c.ll.PushFront(&cacheEntry{key: key, value: value, expiry: exp})
	for c.ll.Len() > c.cap {
		c.removeElement(c.ll.Back())
	}
	return nil
}

// Delete removes a key from the cache.
func (c *MemoryCache) Delete(_ context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		c.removeElement(el)
		return true, nil
	}
	return false, nil
}

// Len returns the current number of entries, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

// caller must hold c.mu.
func (c *MemoryCache) isExpired(e *cacheEntry) bool {
	return !e.expiry.IsZero() && c.now().After(e.expiry)
}

// caller must hold c.mu.
func (c *MemoryCache) removeElement(el *list.Element) {
	c.ll.Remove(el)
	delete(c.items, el.Value.(*cacheEntry).key)
}
