package storage

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"todo-list/domain"
)

const itemsCacheKey = "items:all"

// CachedBackend wraps a Backend with a Redis snapshot of the full collection.
type CachedBackend struct {
	base  Backend
	redis *redis.Client
	ttl   time.Duration
}

// NewCachedBackend creates a caching wrapper using the provided Redis client and TTL.
func NewCachedBackend(base Backend, client *redis.Client, ttl time.Duration) *CachedBackend {
	if base == nil {
		panic("storage.NewCachedBackend: base backend is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &CachedBackend{base: base, redis: client, ttl: ttl}
}

func (c *CachedBackend) GetAll(ctx context.Context) ([]domain.Item, error) {
	if items, ok := c.loadItems(ctx); ok {
		return items, nil
	}

	items, err := c.base.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	c.storeItems(ctx, items)
	return items, nil
}

func (c *CachedBackend) GetByID(ctx context.Context, id string) (*domain.Item, error) {
	return c.base.GetByID(ctx, id)
}

func (c *CachedBackend) Save(ctx context.Context, item domain.Item) (SaveResult, error) {
	res, err := c.base.Save(ctx, item)
	if err != nil {
		return SaveResult{}, err
	}
	c.evict(ctx)
	return res, nil
}

func (c *CachedBackend) Delete(ctx context.Context, id string) error {
	if err := c.base.Delete(ctx, id); err != nil {
		return err
	}
	c.evict(ctx)
	return nil
}

func (c *CachedBackend) AddMultiple(ctx context.Context, items []domain.Item) ([]domain.Item, error) {
	all, err := c.base.AddMultiple(ctx, items)
	// A compensated remote batch may still have touched the store.
	c.evict(ctx)
	if err != nil {
		return nil, err
	}
	return all, nil
}

func (c *CachedBackend) loadItems(ctx context.Context) ([]domain.Item, bool) {
	if c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, itemsCacheKey).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the backing store without failing.
			_ = c.redis.Del(ctx, itemsCacheKey).Err()
		}
		return nil, false
	}
	var items []domain.Item
	if err := sonic.Unmarshal(data, &items); err != nil {
		_ = c.redis.Del(ctx, itemsCacheKey).Err()
		return nil, false
	}
	if items == nil {
		items = []domain.Item{}
	}
	return items, true
}

func (c *CachedBackend) storeItems(ctx context.Context, items []domain.Item) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := sonic.Marshal(items)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, itemsCacheKey, data, c.ttl).Err()
}

func (c *CachedBackend) evict(ctx context.Context) {
	if c.redis == nil {
		return
	}
	_, _ = c.redis.Del(ctx, itemsCacheKey).Result()
}
