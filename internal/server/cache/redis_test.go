package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRedis struct {
	data    map[string]string
	ttls    map[string]time.Duration
	err     error
	pingErr error
	closed  bool
	opts    *redis.Options
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	if f.err != nil {
		return redis.NewStringResult("", f.err)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value any, ttl time.Duration) *redis.StatusCmd {
	if f.err != nil {
		return redis.NewStatusResult("", f.err)
	}
	f.data[key] = string(value.([]byte))
	f.ttls[key] = ttl
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func (f *fakeRedis) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", f.pingErr)
}

func (f *fakeRedis) Close() error {
	f.closed = true
	return nil
}

func withFakeClient(t *testing.T, fake *fakeRedis) {
	t.Helper()
	orig := newRedisClient
	newRedisClient = func(o *redis.Options) redisClient {
		fake.opts = o
		return fake
	}
	t.Cleanup(func() { newRedisClient = orig })
}

type listing struct {
	IDs   []string `json:"ids"`
	Count int      `json:"count"`
}

func TestRedisCache_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	withFakeClient(t, fake)

	c, err := NewRedisCache(ctx, RedisOptions{Addr: "cache:6379", Password: "pw", DB: 2})
	require.NoError(t, err)
	assert.Equal(t, "cache:6379", fake.opts.Addr)
	assert.Equal(t, 2, fake.opts.DB)

	key := DashboardKey("u1")
	require.NoError(t, c.Set(ctx, key, listing{IDs: []string{"a", "b"}, Count: 2}, time.Minute))
	assert.Equal(t, time.Minute, fake.ttls[key])

	var got listing
	ok, err := c.Get(ctx, key, &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, listing{IDs: []string{"a", "b"}, Count: 2}, got)

	require.NoError(t, c.Delete(ctx, key, UserLogsKey("u1")))
	ok, err = c.Get(ctx, key, &got)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Delete(ctx))
	require.NoError(t, c.Close())
	assert.True(t, fake.closed)
}

func TestRedisCache_Errors(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	withFakeClient(t, fake)

	c, err := NewRedisCache(ctx, RedisOptions{Addr: "x"})
	require.NoError(t, err)

	fake.data["bad"] = "{not json"
	var v listing
	ok, err := c.Get(ctx, "bad", &v)
	assert.False(t, ok)
	assert.ErrorContains(t, err, "decode cached value")

	fake.err = errors.New("connection refused")
	_, err = c.Get(ctx, "k", &v)
	assert.ErrorContains(t, err, "redis get")
	assert.ErrorContains(t, c.Set(ctx, "k", v, time.Second), "redis set")
	assert.ErrorContains(t, c.Delete(ctx, "k"), "redis del")

	assert.ErrorContains(t, c.Set(ctx, "k", make(chan int), time.Second), "encode cached value")
}

func TestNewRedisCache_PingFailureStillReturnsCache(t *testing.T) {
	fake := newFakeRedis()
	fake.pingErr = errors.New("dial tcp: refused")
	withFakeClient(t, fake)

	c, err := NewRedisCache(context.Background(), RedisOptions{Addr: "nowhere:1"})
	assert.ErrorContains(t, err, "failed to connect to redis")
	require.NotNil(t, c)
}

func TestNopCache(t *testing.T) {
	var c Cache = NopCache{}
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", 1, time.Second))
	var v int
	ok, err := c.Get(ctx, "k", &v)
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, c.Delete(ctx, "k"))
	assert.NoError(t, c.Close())
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "sealbox:dashboard:u1", DashboardKey("u1"))
	assert.Equal(t, "sealbox:logs:u1", UserLogsKey("u1"))
	assert.Equal(t, "sealbox:all-logs", AllLogsKey())
}
