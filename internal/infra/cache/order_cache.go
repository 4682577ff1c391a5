package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"checkout-service/internal/domain"
	"checkout-service/internal/repository"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

var _ repository.OrderLedger = (*CachedLedger)(nil)

// CachedLedger is a cache-aside decorator over an OrderLedger. Reads go to
// redis first; every mutation deletes the cached copy after the store commits.
// Redis failures degrade to direct store access.
//
// Each mutation also stamps a new generation token for the order. A reader
// that loaded from the store before the mutation sees the token change and
// drops its copy, so a slow read never re-caches a superseded order.
type CachedLedger struct {
	repository.OrderLedger
	store Store
	ttl   time.Duration
}

func NewCachedLedger(inner repository.OrderLedger, store Store, ttl time.Duration) *CachedLedger {
	return &CachedLedger{OrderLedger: inner, store: store, ttl: ttl}
}

func orderKey(id string) string { return "order:" + id }
func refKey(ref string) string  { return "order:ref:" + ref }
func genKey(id string) string   { return "order:gen:" + id }

func (c *CachedLedger) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	if cached, err := c.store.Get(ctx, orderKey(id)).Result(); err == nil {
		var o domain.Order
		if err := json.Unmarshal([]byte(cached), &o); err == nil {
			return &o, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		slog.WarnContext(ctx, "order cache read failed", "order_id", id, "error", err)
		return c.OrderLedger.FindByID(ctx, id)
	}

	gen, ok := c.generation(ctx, id)
	o, err := c.OrderLedger.FindByID(ctx, id)
	if err != nil || o == nil {
		return o, err
	}
	if ok {
		c.put(ctx, o, gen)
	}
	return o, nil
}

// FindByExternalReference caches only the reference to id mapping, which
// never changes once written.
func (c *CachedLedger) FindByExternalReference(ctx context.Context, ref string) (*domain.Order, error) {
	if id, err := c.store.Get(ctx, refKey(ref)).Result(); err == nil && id != "" {
		return c.FindByID(ctx, id)
	}

	o, err := c.OrderLedger.FindByExternalReference(ctx, ref)
	if err != nil || o == nil {
		return o, err
	}
	if err := c.store.Set(ctx, refKey(ref), o.ID, c.ttl).Err(); err != nil {
		slog.WarnContext(ctx, "order cache write failed", "reference", ref, "error", err)
	}
	return c.FindByID(ctx, o.ID)
}

func (c *CachedLedger) BindPaymentReferences(ctx context.Context, orderID, sessionRef, transactionRef string) (repository.BindResult, error) {
	res, err := c.OrderLedger.BindPaymentReferences(ctx, orderID, sessionRef, transactionRef)
	c.evict(ctx, orderID)
	return res, err
}

func (c *CachedLedger) MarkPaymentFailed(ctx context.Context, orderID string) (repository.BindResult, error) {
	res, err := c.OrderLedger.MarkPaymentFailed(ctx, orderID)
	c.evict(ctx, orderID)
	return res, err
}

func (c *CachedLedger) UpdateStatus(ctx context.Context, orderID string, from, to domain.OrderStatus, trackingNumber *string) (*domain.Order, error) {
	o, err := c.OrderLedger.UpdateStatus(ctx, orderID, from, to, trackingNumber)
	c.evict(ctx, orderID)
	return o, err
}

// generation reads the order's current token. ok is false when redis cannot
// answer, in which case nothing is cached.
func (c *CachedLedger) generation(ctx context.Context, id string) (string, bool) {
	gen, err := c.store.Get(ctx, genKey(id)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", false
	}
	return gen, true
}

// put caches o, then re-reads the generation. If a mutation stamped a new
// token since gen was read, o may predate it and is deleted again. The
// mutation stamps before it deletes, so one side always removes the copy.
func (c *CachedLedger) put(ctx context.Context, o *domain.Order, gen string) {
	data, err := json.Marshal(o)
	if err != nil {
		return
	}
	if err := c.store.Set(ctx, orderKey(o.ID), data, c.ttl).Err(); err != nil {
		slog.WarnContext(ctx, "order cache write failed", "order_id", o.ID, "error", err)
		return
	}
	if now, ok := c.generation(ctx, o.ID); !ok || now != gen {
		c.store.Del(ctx, orderKey(o.ID))
	}
}

func (c *CachedLedger) evict(ctx context.Context, orderID string) {
	if err := c.store.Set(ctx, genKey(orderID), uuid.NewString(), c.ttl+time.Minute).Err(); err != nil {
		slog.WarnContext(ctx, "order cache generation bump failed", "order_id", orderID, "error", err)
	}
	if err := c.store.Del(ctx, orderKey(orderID)).Err(); err != nil {
		slog.WarnContext(ctx, "order cache evict failed", "order_id", orderID, "error", err)
	}
}
