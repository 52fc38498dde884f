package resolver

import (
	"context"
	"sync"
	"time"

	"mediastream/internal/domain"
	"mediastream/internal/domain/ports"
	"mediastream/internal/metrics"
)

type entry struct {
	location domain.ResolvedLocation
	expires  time.Time
}

// Cache wraps a HandleResolver with a TTL-bounded, capacity-bounded
// in-process cache. Entries are evicted in insertion order when the cache
// is full; a re-resolved expired handle re-enters at the back of the queue.
type Cache struct {
	inner    ports.HandleResolver
	ttl      time.Duration
	capacity int
	now      func() time.Time

	mu      sync.Mutex
	entries map[domain.Handle]entry
	order   []domain.Handle
}

type CacheOption func(*Cache)

func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) { c.now = now }
}

func NewCache(inner ports.HandleResolver, ttl time.Duration, capacity int, opts ...CacheOption) *Cache {
	c := &Cache{
		inner:    inner,
		ttl:      ttl,
		capacity: capacity,
		now:      time.Now,
		entries:  make(map[domain.Handle]entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cache) Resolve(ctx context.Context, handle domain.Handle) (domain.ResolvedLocation, error) {
	if loc, ok := c.lookup(handle); ok {
		metrics.ResolveCacheHitsTotal.Inc()
		return loc, nil
	}
	metrics.ResolveCacheMissesTotal.Inc()

	loc, err := c.inner.Resolve(ctx, handle)
	if err != nil {
		return domain.ResolvedLocation{}, err
	}
	c.store(handle, loc)
	return loc, nil
}

func (c *Cache) lookup(handle domain.Handle) (domain.ResolvedLocation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[handle]
	if !ok {
		return domain.ResolvedLocation{}, false
	}
	if !c.now().Before(e.expires) {
		c.remove(handle)
		return domain.ResolvedLocation{}, false
	}
	return e.location, true
}

func (c *Cache) store(handle domain.Handle, loc domain.ResolvedLocation) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[handle]; ok {
		// Lost a race with another resolver for the same handle; keep the
		// existing queue position and just refresh the value.
		c.entries[handle] = entry{location: loc, expires: c.now().Add(c.ttl)}
		return
	}
	for c.capacity > 0 && len(c.entries) >= c.capacity {
		c.remove(c.order[0])
		metrics.ResolveCacheEvictionsTotal.Inc()
	}
	c.entries[handle] = entry{location: loc, expires: c.now().Add(c.ttl)}
	c.order = append(c.order, handle)
	metrics.ResolveCacheSize.Set(float64(len(c.entries)))
}

// remove expects c.mu held.
func (c *Cache) remove(handle domain.Handle) {
	delete(c.entries, handle)
	for i, h := range c.order {
		if h == handle {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	metrics.ResolveCacheSize.Set(float64(len(c.entries)))
}

// Invalidate drops a single handle, forcing the next Resolve upstream.
func (c *Cache) Invalidate(handle domain.Handle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.remove(handle)
}

// Len reports the current number of live entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
