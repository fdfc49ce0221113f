package configcache

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/singleflight"
)

var (
	cacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "game_config_cache_hits_total",
	}, []string{"cache"})
	cacheMiss = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "game_config_cache_miss_total",
	}, []string{"cache"})
)

type item[T any] struct {
	value     *T
	updatedAt time.Time
}

// Cache is a per-tenant TTL cache for game configurations. Concurrent
// misses for the same key are collapsed through singleflight.
type Cache[T any] struct {
	mu    sync.RWMutex
	items map[string]item[T]
	ttl   time.Duration
	group singleflight.Group
	name  string
}

func New[T any](name string, ttl time.Duration) *Cache[T] {
	return &Cache[T]{
		items: make(map[string]item[T]),
		ttl:   ttl,
		name:  name,
	}
}

func (c *Cache[T]) get(key string) (*T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.items[key]
	if !ok || (c.ttl > 0 && time.Since(v.updatedAt) > c.ttl) {
		return nil, false
	}
	return v.value, true
}

func (c *Cache[T]) set(key string, value *T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = item[T]{value: value, updatedAt: time.Now()}
}

// Load returns the cached value for key, falling back to loadFn on miss.
// A nil value from loadFn is not cached.
func (c *Cache[T]) Load(ctx context.Context, key string, loadFn func(ctx context.Context) (*T, error)) (*T, error) {
	if v, ok := c.get(key); ok {
		cacheHits.WithLabelValues(c.name).Inc()
		return v, nil
	}

	cacheMiss.WithLabelValues(c.name).Inc()

	v, err, _ := c.group.Do(key, func() (any, error) {
		if v, ok := c.get(key); ok {
			return v, nil
		}

		loaded, err := loadFn(ctx)
		if err != nil {
			return nil, err
		}

		if loaded != nil {
			c.set(key, loaded)
		}
		return loaded, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*T), nil
}

func (c *Cache[T]) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}
