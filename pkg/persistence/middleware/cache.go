package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/ports"
)

type cacheKey struct {
	tenantID string
	configID string
}

type cacheEntry struct {
	def      *domain.Definition
	loadedAt time.Time
}

// Cache is a read-through config cache keyed by (tenant id, config id).
// Writes through Save and Delete drop the entry; other writers must call Invalidate.
type Cache struct {
	next ports.ConfigRepository
	ttl  time.Duration
	now  func() time.Time

	mu      sync.RWMutex
	entries map[cacheKey]cacheEntry
	// gen counts invalidations per key; a load only fills the cache if none ran meanwhile.
	gen map[cacheKey]uint64
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithTTL expires entries after d. Zero keeps them until invalidated.
func WithTTL(d time.Duration) CacheOption {
	return func(c *Cache) { c.ttl = d }
}

// WithCacheClock overrides time.Now.
func WithCacheClock(now func() time.Time) CacheOption {
	return func(c *Cache) { c.now = now }
}

// NewCache wraps next with a config cache.
func NewCache(next ports.ConfigRepository, opts ...CacheOption) *Cache {
	c := &Cache{
		next:    next,
		now:     time.Now,
		entries: make(map[cacheKey]cacheEntry),
		gen:     make(map[cacheKey]uint64),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewCacheMiddleware returns the cache as a Middleware.
func NewCacheMiddleware(opts ...CacheOption) Middleware {
	return func(next ports.ConfigRepository) ports.ConfigRepository {
		return NewCache(next, opts...)
	}
}

// Get returns a copy of the cached definition, loading it on a miss.
func (c *Cache) Get(ctx context.Context, tenantID, configID string) (*domain.Definition, error) {
	key := cacheKey{tenantID, configID}
	c.mu.RLock()
	entry, ok := c.entries[key]
	gen := c.gen[key]
	c.mu.RUnlock()
	if ok && (c.ttl == 0 || c.now().Sub(entry.loadedAt) < c.ttl) {
		return entry.def.Clone(), nil
	}

	def, err := c.next.Get(ctx, tenantID, configID)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	if c.gen[key] == gen {
		c.entries[key] = cacheEntry{def: def.Clone(), loadedAt: c.now()}
	}
	c.mu.Unlock()
	return def, nil
}

// List is never cached.
func (c *Cache) List(ctx context.Context, tenantID string) ([]domain.LifecycleConfig, error) {
	return c.next.List(ctx, tenantID)
}

func (c *Cache) Save(ctx context.Context, def *domain.Definition) error {
	err := c.next.Save(ctx, def)
	c.Invalidate(def.Config.TenantID, def.Config.ID)
	return err
}

func (c *Cache) Delete(ctx context.Context, tenantID, configID string) error {
	err := c.next.Delete(ctx, tenantID, configID)
	c.Invalidate(tenantID, configID)
	return err
}

// Invalidate drops the cached definition of one config.
func (c *Cache) Invalidate(tenantID, configID string) {
	key := cacheKey{tenantID, configID}
	c.mu.Lock()
	delete(c.entries, key)
	c.gen[key]++
	c.mu.Unlock()
}

// Len reports how many definitions are cached.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
