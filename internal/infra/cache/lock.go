package cache

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrLockNotAcquired = errors.New("lock not acquired")

const releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then return redis.call("del", KEYS[1]) else return 0 end`

// OrderLock is a best-effort per-order mutex around reconciliation. The
// ledger's conditional update stays authoritative whether or not it is held.
type OrderLock struct {
	store    Store
	ttl      time.Duration
	retry    time.Duration
	attempts int
}

func NewOrderLock(store Store, ttl time.Duration) *OrderLock {
	return &OrderLock{store: store, ttl: ttl, retry: 50 * time.Millisecond, attempts: 20}
}

// Acquire blocks until the lock is held, the attempts run out or ctx ends.
func (l *OrderLock) Acquire(ctx context.Context, orderID string) (func(), error) {
	key := "lock:order:" + orderID
	token := uuid.NewString()

	for i := 0; i < l.attempts; i++ {
		ok, err := l.store.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			return func() {
				ctx, cancel := context.WithTimeout(context.Background(), time.Second)
				defer cancel()
				_ = l.store.Eval(ctx, releaseScript, []string{key}, token).Err()
			}, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retry):
		}
	}
	return nil, ErrLockNotAcquired
}
