package catalog

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"checkout-service/internal/infra/cache"

	"golang.org/x/sync/singleflight"
)

var _ ClientInterface = (*CachedClient)(nil)

// CachedClient puts redis in front of the catalog and collapses concurrent
// misses for one product into a single upstream call.
type CachedClient struct {
	next  ClientInterface
	store cache.Store
	ttl   time.Duration
	group singleflight.Group
}

func NewCachedClient(next ClientInterface, store cache.Store, ttl time.Duration) *CachedClient {
	return &CachedClient{next: next, store: store, ttl: ttl}
}

func (c *CachedClient) GetProduct(ctx context.Context, id string) (*Product, error) {
	key := "product:" + id

	if c.store != nil {
		if cached, err := c.store.Get(ctx, key).Result(); err == nil {
			var p Product
			if err := json.Unmarshal([]byte(cached), &p); err == nil {
				return &p, nil
			}
		}
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		p, err := c.next.GetProduct(ctx, id)
		if err != nil || p == nil {
			return p, err
		}
		if c.store != nil {
			if data, err := json.Marshal(p); err == nil {
				if err := c.store.Set(ctx, key, data, c.ttl).Err(); err != nil {
					slog.WarnContext(ctx, "product cache write failed", "product_id", id, "error", err)
				}
			}
		}
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	p, _ := v.(*Product)
	return p, nil
}

// Warmup preloads products so the first checkouts after a deploy skip the
// catalog round trip.
func (c *CachedClient) Warmup(ctx context.Context, ids []string) {
	for _, id := range ids {
		if _, err := c.GetProduct(ctx, id); err != nil {
			slog.WarnContext(ctx, "failed to warm up product cache", "product_id", id, "error", err)
		}
	}
}
