package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"opsboard/domain"
)

const boardCacheKey = "board:tasks"

// Cache wraps a Backend with Redis-backed caching of the full board read.
// The cached value is the complete record set; filtering, ordering and
// pagination are applied after the fact, so every ListTasks call can be
// served from one key. Any mutation evicts it.
type Cache struct {
	base  Backend
	redis *redis.Client
	ttl   time.Duration
}

// NewCache creates a caching Backend wrapper using the provided Redis
// client and TTL.
func NewCache(base Backend, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("storage.NewCache: base backend is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{base: base, redis: client, ttl: ttl}
}

func (c *Cache) ListTasks(ctx context.Context, f domain.Filter) ([]TaskRecord, error) {
	all, ok := c.loadFromCache(ctx)
	if !ok {
		var err error
		all, err = c.base.ListTasks(ctx, domain.Filter{})
		if err != nil {
			return nil, err
		}
		c.store(ctx, all)
	}
	recs := make([]TaskRecord, 0, len(all))
	for _, rec := range all {
		if f.Matches(rec.Task()) {
			recs = append(recs, rec)
		}
	}
	sortNewestFirst(recs)
	return page(recs, f.Limit, f.Offset), nil
}

func (c *Cache) GetTask(ctx context.Context, id int64) (TaskRecord, error) {
	return c.base.GetTask(ctx, id)
}

func (c *Cache) InsertTask(ctx context.Context, rec TaskRecord) error {
	if err := c.base.InsertTask(ctx, rec); err != nil {
		return err
	}
	c.evict(ctx)
	return nil
}

func (c *Cache) UpdateTask(ctx context.Context, rec TaskRecord) error {
	if err := c.base.UpdateTask(ctx, rec); err != nil {
		return err
	}
	c.evict(ctx)
	return nil
}

func (c *Cache) DeleteTask(ctx context.Context, id int64) error {
	if err := c.base.DeleteTask(ctx, id); err != nil {
		return err
	}
	c.evict(ctx)
	return nil
}

func (c *Cache) ReorderTasks(ctx context.Context, statusLabel string, ids []int64) error {
	if err := c.base.ReorderTasks(ctx, statusLabel, ids); err != nil {
		return err
	}
	c.evict(ctx)
	return nil
}

func (c *Cache) loadFromCache(ctx context.Context) ([]TaskRecord, bool) {
	if c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, boardCacheKey).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the backing storage without failing.
			_ = c.redis.Del(ctx, boardCacheKey).Err()
		}
		return nil, false
	}
	var recs []TaskRecord
	if err := json.Unmarshal(data, &recs); err != nil {
		_ = c.redis.Del(ctx, boardCacheKey).Err()
		return nil, false
	}
	return recs, true
}

func (c *Cache) store(ctx context.Context, recs []TaskRecord) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := json.Marshal(recs)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, boardCacheKey, data, c.ttl).Err()
}

func (c *Cache) evict(ctx context.Context) {
	if c.redis == nil {
		return
	}
	_ = c.redis.Del(ctx, boardCacheKey).Err()
}
