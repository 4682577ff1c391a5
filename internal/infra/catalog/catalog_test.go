package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockRedisClient struct {
	mock.Mock
}

func (m *MockRedisClient) Get(ctx context.Context, key string) *redis.StringCmd {
	args := m.Called(ctx, key)
	return args.Get(0).(*redis.StringCmd)
}

func (m *MockRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	args := m.Called(ctx, key, value, expiration)
	return args.Get(0).(*redis.StatusCmd)
}

func (m *MockRedisClient) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd {
	args := m.Called(ctx, key, value, expiration)
	return args.Get(0).(*redis.BoolCmd)
}

func (m *MockRedisClient) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	args := m.Called(ctx, keys)
	return args.Get(0).(*redis.IntCmd)
}

func (m *MockRedisClient) Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	a := m.Called(ctx, script, keys, args)
	return a.Get(0).(*redis.Cmd)
}

type countingClient struct {
	calls   atomic.Int32
	product *Product
	delay   time.Duration
}

func (c *countingClient) GetProduct(ctx context.Context, id string) (*Product, error) {
	c.calls.Add(1)
	time.Sleep(c.delay)
	return c.product, nil
}

func TestClient_GetProduct(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/products/prod-1":
			_, _ = w.Write([]byte(`{"id":"prod-1","name":"Mug","price":"100.00","active":true}`))
		case "/products/broken":
			w.WriteHeader(http.StatusBadGateway)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)

	p, err := c.GetProduct(context.Background(), "prod-1")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "Mug", p.Name)
	assert.True(t, decimal.RequireFromString("100").Equal(p.Price))

	p, err = c.GetProduct(context.Background(), "missing")
	assert.NoError(t, err)
	assert.Nil(t, p)

	_, err = c.GetProduct(context.Background(), "broken")
	assert.ErrorContains(t, err, "502")
}

func TestCachedClient_GetProduct(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(*MockRedisClient)
		wantCalls int32
	}{
		{
			name: "cache hit",
			setup: func(r *MockRedisClient) {
				r.On("Get", mock.Anything, "product:prod-1").
					Return(redis.NewStringResult(`{"id":"prod-1","name":"Mug","price":"100"}`, nil))
			},
			wantCalls: 0,
		},
		{
			name: "cache miss writes through",
			setup: func(r *MockRedisClient) {
				r.On("Get", mock.Anything, "product:prod-1").Return(redis.NewStringResult("", redis.Nil))
				r.On("Set", mock.Anything, "product:prod-1", mock.Anything, time.Minute).Return(redis.NewStatusResult("OK", nil))
			},
			wantCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rdb := new(MockRedisClient)
			tt.setup(rdb)
			next := &countingClient{product: &Product{ID: "prod-1", Name: "Mug", Price: decimal.NewFromInt(100)}}

			c := NewCachedClient(next, rdb, time.Minute)
			p, err := c.GetProduct(context.Background(), "prod-1")
			require.NoError(t, err)
			assert.Equal(t, "Mug", p.Name)
			assert.Equal(t, tt.wantCalls, next.calls.Load())
			rdb.AssertExpectations(t)
		})
	}
}

func TestCachedClient_CoalescesConcurrentMisses(t *testing.T) {
	next := &countingClient{product: &Product{ID: "prod-1"}, delay: 50 * time.Millisecond}
	c := NewCachedClient(next, nil, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := c.GetProduct(context.Background(), "prod-1")
			assert.NoError(t, err)
			assert.Equal(t, "prod-1", p.ID)
		}()
	}
	wg.Wait()
	assert.Less(t, next.calls.Load(), int32(20))
}

func TestCachedClient_UnknownProduct(t *testing.T) {
	c := NewCachedClient(&countingClient{}, nil, time.Minute)
	p, err := c.GetProduct(context.Background(), "nope")
	assert.NoError(t, err)
	assert.Nil(t, p)
}
