package directory

import (
	"context"
	"sync"
	"time"
)

// Cache memoizes directory lookups per key.
type Cache[K comparable, V any] interface {
	// Get returns the cached value for key or calls load and caches its result.
	// Failed loads are not cached.
	Get(ctx context.Context, key K, load func(ctx context.Context) (V, error)) (V, error)
	InvalidateKey(key K)
	InvalidateAll()
}

type cacheEntry[V any] struct {
	value   V
	expires time.Time
}

// TTLCache is a Cache whose entries expire after a fixed time. A zero TTL keeps
// entries until they are invalidated.
type TTLCache[K comparable, V any] struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[K]cacheEntry[V]
}

var _ Cache[string, []string] = (*TTLCache[string, []string])(nil)

func NewTTLCache[K comparable, V any](ttl time.Duration) *TTLCache[K, V] {
	return &TTLCache[K, V]{ttl: ttl, now: time.Now, entries: make(map[K]cacheEntry[V])}
}

func (c *TTLCache[K, V]) Get(ctx context.Context, key K, load func(ctx context.Context) (V, error)) (V, error) {
	c.mu.Lock()
	e, ok := c.entries[key]
	if ok && (c.ttl == 0 || c.now().Before(e.expires)) {
		c.mu.Unlock()
		return e.value, nil
	}
	c.mu.Unlock()

	v, err := load(ctx)
	if err != nil {
		var zero V
		return zero, err
	}

	c.mu.Lock()
	c.entries[key] = cacheEntry[V]{value: v, expires: c.now().Add(c.ttl)}
	c.mu.Unlock()
	return v, nil
}

func (c *TTLCache[K, V]) InvalidateKey(key K) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

func (c *TTLCache[K, V]) InvalidateAll() {
	c.mu.Lock()
	c.entries = make(map[K]cacheEntry[V])
	c.mu.Unlock()
}
