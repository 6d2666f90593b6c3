// Package cache provides a small in-memory TTL cache used by the store to
// absorb repeated reads of derived data such as corpus statistics.
package cache

import (
	"context"
	"sync"
	"time"
)

// Config holds the cache settings.
type Config struct {
	// DefaultTTL is applied by Set. Zero means entries never expire.
	DefaultTTL time.Duration
	// CleanupInterval is how often expired entries are swept. Zero
	// disables the sweeper; expired entries then die lazily on Get.
	CleanupInterval time.Duration
	// MaxItems bounds the cache size. When full, the entry closest to
	// expiry is evicted. Zero means unbounded.
	MaxItems int
	// OnEviction, when set, runs for every evicted or swept entry. It is
	// called without the cache lock held.
	OnEviction func(key string, value any)
}

type item struct {
	value    any
	expireAt time.Time
}

func (i item) expired(now time.Time) bool {
	return !i.expireAt.IsZero() && now.After(i.expireAt)
}

// Cache is a thread-safe map with per-entry expiry and an optional
// background sweeper. Close stops the sweeper.
type Cache struct {
	config Config

	mu    sync.RWMutex
	items map[string]item

	done chan struct{}
	once sync.Once
}

// New creates a cache and starts its sweeper when configured.
func New(config Config) *Cache {
	c := &Cache{
		config: config,
		items:  make(map[string]item),
		done:   make(chan struct{}),
	}
	if config.CleanupInterval > 0 {
		go c.sweep()
	}
	return c
}

// Get returns the cached value for key, if present and not expired.
func (c *Cache) Get(_ context.Context, key string) (any, bool) {
	c.mu.RLock()
	it, ok := c.items[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if !it.expired(time.Now()) {
		return it.value, true
	}

	c.mu.Lock()
	cur, ok := c.items[key]
	if ok && cur.expired(time.Now()) {
		delete(c.items, key)
	} else {
		ok = false
	}
	c.mu.Unlock()
	if ok && c.config.OnEviction != nil {
		c.config.OnEviction(key, cur.value)
	}
	return nil, false
}

// Set stores value under key with the default TTL.
func (c *Cache) Set(ctx context.Context, key string, value any) {
	c.SetWithTTL(ctx, key, value, c.config.DefaultTTL)
}

// SetWithTTL stores value under key with an explicit TTL. A zero TTL means
// the entry never expires.
func (c *Cache) SetWithTTL(_ context.Context, key string, value any, ttl time.Duration) {
	var expireAt time.Time
	if ttl > 0 {
		expireAt = time.Now().Add(ttl)
	}

	var evictedKey string
	var evictedValue any
	var evicted bool

	c.mu.Lock()
	if c.config.MaxItems > 0 && len(c.items) >= c.config.MaxItems {
		if _, exists := c.items[key]; !exists {
			evictedKey, evictedValue, evicted = c.evictOldestLocked()
		}
	}
	c.items[key] = item{value: value, expireAt: expireAt}
	c.mu.Unlock()

	if evicted && c.config.OnEviction != nil {
		c.config.OnEviction(evictedKey, evictedValue)
	}
}

// Delete removes key from the cache.
func (c *Cache) Delete(_ context.Context, key string) {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Close stops the background sweeper. The cache stays usable.
func (c *Cache) Close() {
	c.once.Do(func() {
		close(c.done)
	})
}

// evictOldestLocked drops the entry with the earliest expiry, preferring
// never-expiring entries. Caller holds the write lock.
func (c *Cache) evictOldestLocked() (string, any, bool) {
	var oldestKey string
	var oldestAt time.Time
	found := false
	for key, it := range c.items {
		if !found || it.expireAt.IsZero() || (!oldestAt.IsZero() && it.expireAt.Before(oldestAt)) {
			oldestKey = key
			oldestAt = it.expireAt
			found = true
			if it.expireAt.IsZero() {
				break
			}
		}
	}
	if !found {
		return "", nil, false
	}
	value := c.items[oldestKey].value
	delete(c.items, oldestKey)
	return oldestKey, value, true
}

func (c *Cache) sweep() {
	ticker := time.NewTicker(c.config.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case now := <-ticker.C:
			type expiredEntry struct {
				key   string
				value any
			}
			var expired []expiredEntry
			c.mu.Lock()
			for key, it := range c.items {
				if it.expired(now) {
					expired = append(expired, expiredEntry{key: key, value: it.value})
					delete(c.items, key)
				}
			}
			c.mu.Unlock()
			if c.config.OnEviction != nil {
				for _, e := range expired {
					c.config.OnEviction(e.key, e.value)
				}
			}
		}
	}
}
