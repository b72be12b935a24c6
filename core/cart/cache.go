package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

var ErrCacheMiss = errors.New("cart view not in cache")

// Cache holds projected cart views in Redis so repeated cart screens do
// not hammer the catalog. Display only: checkout always recomputes from
// the store, so a stale cached price can never be charged. Writes to the
// cart invalidate the entry.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	sfg    singleflight.Group
}

func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{
		client: client,
		ttl:    ttl,
	}
}

// Views returns the owner's projected views from cache, or computes
// them with project and caches the result. Concurrent misses for the
// same owner are collapsed into a single projection.
func (c *Cache) Views(ctx context.Context, owner string, project func(context.Context) ([]View, error)) ([]View, error) {
	if c == nil || c.client == nil {
		return project(ctx)
	}

	v, err, _ := c.sfg.Do(owner, func() (interface{}, error) {
		views, err := c.get(ctx, owner)
		if err == nil {
			return views, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			return nil, err
		}

		views, err = project(ctx)
		if err != nil {
			return nil, err
		}

		if err := c.set(ctx, owner, views); err != nil {
			// Serving the projection matters more than caching it.
			return views, nil
		}

		return views, nil
	})

	if err != nil {
		return nil, err
	}

	return v.([]View), nil
}

// Invalidate drops the owner's cached views. Called on every cart write.
func (c *Cache) Invalidate(ctx context.Context, owner string) error {
	if c == nil || c.client == nil {
		return nil
	}

	if err := c.client.Del(ctx, cacheKey(owner)).Err(); err != nil {
		return fmt.Errorf("invalidating cached cart of user[%s]: %w", owner, err)
	}

	return nil
}

func (c *Cache) get(ctx context.Context, owner string) ([]View, error) {
	data, err := c.client.Get(ctx, cacheKey(owner)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("reading cached cart of user[%s]: %w", owner, err)
	}

	var views []View
	if err := json.Unmarshal(data, &views); err != nil {
		return nil, fmt.Errorf("unmarshaling cached cart: %w", err)
	}

	return views, nil
}

func (c *Cache) set(ctx context.Context, owner string, views []View) error {
	data, err := json.Marshal(views)
	if err != nil {
		return fmt.Errorf("marshaling cart views: %w", err)
	}

	if err := c.client.Set(ctx, cacheKey(owner), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("caching cart of user[%s]: %w", owner, err)
	}

	return nil
}

func cacheKey(owner string) string {
	return "cartview:" + owner
}
