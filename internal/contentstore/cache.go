package contentstore

import (
	"context"
	"sync"
	"time"
)

// cacheEntry holds the bytes of one cached object.
type cacheEntry struct {
	data      []byte
	expiresAt time.Time
}

func (e *cacheEntry) expired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// CachedStore wraps a Store with a TTL read cache bounded by total bytes.
// Content behind a CID never changes, so the only reason to expire entries
// is memory.
type CachedStore struct {
	Store

	mu       sync.Mutex
	entries  map[string]*cacheEntry
	size     int64
	maxBytes int64
	ttl      time.Duration
	now      func() time.Time
}

// NewCachedStore wraps next. Objects larger than maxBytes are never cached.
func NewCachedStore(next Store, ttl time.Duration, maxBytes int64) *CachedStore {
	return &CachedStore{
		Store:    next,
		entries:  make(map[string]*cacheEntry),
		maxBytes: maxBytes,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Get implements Store.
func (c *CachedStore) Get(ctx context.Context, cid string) ([]byte, error) {
	if data, ok := c.get(cid); ok {
		return data, nil
	}
	data, err := c.Store.Get(ctx, cid)
	if err != nil {
		return nil, err
	}
	c.set(cid, data)
	return data, nil
}

func (c *CachedStore) get(cid string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[cid]
	if !ok || e.expired(c.now()) {
		return nil, false
	}
	return e.data, true
}

func (c *CachedStore) set(cid string, data []byte) {
	n := int64(len(data))
	if n > c.maxBytes {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if old, ok := c.entries[cid]; ok {
		c.size -= int64(len(old.data))
		delete(c.entries, cid)
	}
	if c.size+n > c.maxBytes {
		c.evictLocked()
	}
	// Still full of live entries: skip rather than grow past the bound.
	if c.size+n > c.maxBytes {
		return
	}
	c.entries[cid] = &cacheEntry{data: data, expiresAt: c.now().Add(c.ttl)}
	c.size += n
}

// Evict removes all expired entries and returns how many were dropped.
func (c *CachedStore) Evict() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evictLocked()
}

func (c *CachedStore) evictLocked() int {
	now := c.now()
	n := 0
	for k, e := range c.entries {
		if e.expired(now) {
			c.size -= int64(len(e.data))
			delete(c.entries, k)
			n++
		}
	}
	return n
}

// Len returns the number of cached objects (including expired).
func (c *CachedStore) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
