package aws

import (
	"strings"
	"sync"
	"time"
)

type cacheEntry struct {
	value    any
	expires  time.Time
	inserted time.Time
}

// ttlCache holds describe results between a create and the next mutation.
// Writers invalidate the entries they touch.
type ttlCache struct {
	mu       sync.RWMutex
	ttl      time.Duration
	capacity int
	data     map[string]cacheEntry
	now      func() time.Time
}

func newTTLCache(ttl time.Duration, capacity int) *ttlCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if capacity <= 0 {
		capacity = 500
	}
	return &ttlCache{
		ttl:      ttl,
		capacity: capacity,
		data:     make(map[string]cacheEntry),
		now:      time.Now,
	}
}

func (c *ttlCache) get(key string) (any, bool) {
	c.mu.RLock()
	entry, ok := c.data[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.now().After(entry.expires) {
		c.mu.Lock()
		delete(c.data, key)
		c.mu.Unlock()
		return nil, false
	}
	return entry.value, true
}

func (c *ttlCache) set(key string, value any) {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.data[key]; !exists && len(c.data) >= c.capacity {
		var oldestKey string
		var oldestTime time.Time
		first := true
		for k, v := range c.data {
			if first || v.inserted.Before(oldestTime) {
				oldestKey = k
				oldestTime = v.inserted
				first = false
			}
		}
		delete(c.data, oldestKey)
	}
	c.data[key] = cacheEntry{
		value:    value,
		expires:  now.Add(c.ttl),
		inserted: now,
	}
}

func (c *ttlCache) invalidate(keys ...string) {
	c.mu.Lock()
	for _, k := range keys {
		delete(c.data, k)
	}
	c.mu.Unlock()
}

// invalidatePrefix drops every entry whose key starts with prefix.
func (c *ttlCache) invalidatePrefix(prefix string) {
	c.mu.Lock()
	for k := range c.data {
		if strings.HasPrefix(k, prefix) {
			delete(c.data, k)
		}
	}
	c.mu.Unlock()
}
