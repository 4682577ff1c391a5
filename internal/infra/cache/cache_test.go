package cache_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"checkout-service/internal/domain"
	"checkout-service/internal/infra/cache"
	"checkout-service/internal/mocks"
	"checkout-service/internal/repository"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// memStore is an in-process Store good enough for cache-aside and lock tests.
type memStore struct {
	mu   sync.Mutex
	data map[string]string
	fail bool
}

func newMemStore() *memStore { return &memStore{data: map[string]string{}} }

func (m *memStore) Get(ctx context.Context, key string) *redis.StringCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return redis.NewStringResult("", errors.New("connection refused"))
	}
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *memStore) Set(ctx context.Context, key string, value interface{}, _ time.Duration) *redis.StatusCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return redis.NewStatusResult("", errors.New("connection refused"))
	}
	m.data[key] = toString(value)
	return redis.NewStatusResult("OK", nil)
}

func (m *memStore) SetNX(ctx context.Context, key string, value interface{}, _ time.Duration) *redis.BoolCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	m.data[key] = toString(value)
	return redis.NewBoolResult(true, nil)
}

func (m *memStore) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := m.data[k]; ok {
			delete(m.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func (m *memStore) Eval(ctx context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data[keys[0]] == toString(args[0]) {
		delete(m.data, keys[0])
		return redis.NewCmdResult(int64(1), nil)
	}
	return redis.NewCmdResult(int64(0), nil)
}

func (m *memStore) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok
}

func toString(v interface{}) string {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

func paidOrder() *domain.Order {
	return &domain.Order{
		ID:               "o-1",
		OrderNumber:      "ORD-20261017-ABCDEF0123",
		UserID:           "user-1",
		Total:            decimal.RequireFromString("220"),
		Currency:         "USD",
		Status:           domain.StatusPending,
		PaymentStatus:    domain.PaymentPending,
		PaymentReference: "chk_o-1",
	}
}

func TestCachedLedger_FindByID(t *testing.T) {
	tests := []struct {
		name       string
		setupStore func(*memStore)
		setupMocks func(*mocks.MockOrderLedger)
		wantNil    bool
		wantCached bool
	}{
		{
			name: "miss loads from store and caches",
			setupMocks: func(m *mocks.MockOrderLedger) {
				m.On("FindByID", mock.Anything, "o-1").Return(paidOrder(), nil).Once()
			},
			wantCached: true,
		},
		{
			name: "hit skips the store",
			setupStore: func(s *memStore) {
				s.data["order:o-1"] = `{"id":"o-1","orderNumber":"ORD-20261017-ABCDEF0123","total":"220","currency":"USD"}`
			},
			setupMocks: func(m *mocks.MockOrderLedger) {},
			wantCached: true,
		},
		{
			name: "missing order is not cached",
			setupMocks: func(m *mocks.MockOrderLedger) {
				m.On("FindByID", mock.Anything, "o-1").Return(nil, nil).Once()
			},
			wantNil: true,
		},
		{
			name:       "redis down falls back to store",
			setupStore: func(s *memStore) { s.fail = true },
			setupMocks: func(m *mocks.MockOrderLedger) {
				m.On("FindByID", mock.Anything, "o-1").Return(paidOrder(), nil).Once()
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			if tt.setupStore != nil {
				tt.setupStore(store)
			}
			inner := new(mocks.MockOrderLedger)
			tt.setupMocks(inner)

			c := cache.NewCachedLedger(inner, store, time.Minute)
			got, err := c.FindByID(context.Background(), "o-1")
			require.NoError(t, err)
			if tt.wantNil {
				assert.Nil(t, got)
			} else {
				require.NotNil(t, got)
				assert.Equal(t, "ORD-20261017-ABCDEF0123", got.OrderNumber)
				assert.True(t, decimal.NewFromInt(220).Equal(got.Total))
			}
			store.fail = false
			assert.Equal(t, tt.wantCached, store.has("order:o-1"))
			inner.AssertExpectations(t)
		})
	}
}

func TestCachedLedger_MutationsEvict(t *testing.T) {
	store := newMemStore()
	inner := new(mocks.MockOrderLedger)
	c := cache.NewCachedLedger(inner, store, time.Minute)
	ctx := context.Background()

	inner.On("FindByID", mock.Anything, "o-1").Return(paidOrder(), nil).Once()
	_, err := c.FindByID(ctx, "o-1")
	require.NoError(t, err)
	require.True(t, store.has("order:o-1"))

	paid := paidOrder()
	paid.PaymentStatus = domain.PaymentPaid
	paid.Status = domain.StatusProcessing
	inner.On("BindPaymentReferences", mock.Anything, "o-1", "FLW-1", "9001").
		Return(repository.BindResult{Order: paid, Applied: true}, nil)

	res, err := c.BindPaymentReferences(ctx, "o-1", "FLW-1", "9001")
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.False(t, store.has("order:o-1"))

	inner.On("FindByID", mock.Anything, "o-1").Return(paid, nil).Once()
	got, err := c.FindByID(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPaid, got.PaymentStatus)

	inner.On("UpdateStatus", mock.Anything, "o-1", domain.StatusProcessing, domain.StatusCancelled, (*string)(nil)).
		Return(nil, domain.ErrInvalidTransition)
	_, err = c.UpdateStatus(ctx, "o-1", domain.StatusProcessing, domain.StatusCancelled, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.False(t, store.has("order:o-1"), "evicted even when the store rejects the change")
	inner.AssertExpectations(t)
}

func TestCachedLedger_FindByExternalReference(t *testing.T) {
	store := newMemStore()
	inner := new(mocks.MockOrderLedger)
	inner.On("FindByExternalReference", mock.Anything, "chk_o-1").Return(paidOrder(), nil).Once()
	inner.On("FindByID", mock.Anything, "o-1").Return(paidOrder(), nil).Once()

	c := cache.NewCachedLedger(inner, store, time.Minute)
	for i := 0; i < 3; i++ {
		got, err := c.FindByExternalReference(context.Background(), "chk_o-1")
		require.NoError(t, err)
		assert.Equal(t, "o-1", got.ID)
	}
	assert.Equal(t, "o-1", store.data["order:ref:chk_o-1"])
	inner.AssertExpectations(t)
}

func TestCachedLedger_SlowReadAfterPaymentIsNotCached(t *testing.T) {
	store := newMemStore()
	inner := new(mocks.MockOrderLedger)
	c := cache.NewCachedLedger(inner, store, time.Minute)
	ctx := context.Background()

	loaded := make(chan struct{})
	resume := make(chan struct{})
	inner.On("FindByID", mock.Anything, "o-1").Return(paidOrder(), nil).Run(func(mock.Arguments) {
		close(loaded)
		<-resume
	}).Once()

	done := make(chan *domain.Order, 1)
	go func() {
		o, _ := c.FindByID(ctx, "o-1")
		done <- o
	}()
	<-loaded

	paid := paidOrder()
	paid.PaymentStatus = domain.PaymentPaid
	paid.Status = domain.StatusProcessing
	inner.On("BindPaymentReferences", mock.Anything, "o-1", "FLW-1", "9001").
		Return(repository.BindResult{Order: paid, Applied: true}, nil)
	_, err := c.BindPaymentReferences(ctx, "o-1", "FLW-1", "9001")
	require.NoError(t, err)

	close(resume)
	slow := <-done
	require.NotNil(t, slow)
	assert.Equal(t, domain.PaymentPending, slow.PaymentStatus)
	assert.False(t, store.has("order:o-1"), "order loaded before the payment must not stay cached")

	inner.On("FindByID", mock.Anything, "o-1").Return(paid, nil).Once()
	got, err := c.FindByID(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPaid, got.PaymentStatus)
	assert.Equal(t, domain.StatusProcessing, got.Status)
	inner.AssertExpectations(t)
}

func TestOrderLock(t *testing.T) {
	store := newMemStore()
	lock := cache.NewOrderLock(store, time.Second)
	ctx := context.Background()

	release, err := lock.Acquire(ctx, "o-1")
	require.NoError(t, err)

	_, err = lock.Acquire(ctx, "o-1")
	assert.ErrorIs(t, err, cache.ErrLockNotAcquired)

	other, err := lock.Acquire(ctx, "o-2")
	require.NoError(t, err)
	other()

	release()
	again, err := lock.Acquire(ctx, "o-1")
	require.NoError(t, err)
	again()
}
