package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Processed int `json:"processed"`
}

func TestNewDisabledIsNoop(t *testing.T) {
	c, err := New(Config{Enabled: false})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k", sample{Processed: 1}, 0))
	got, err := c.Get(ctx, "k")
	assert.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, c.Ping(ctx))
	assert.NoError(t, c.Close())
}

func TestNewUnknownDriver(t *testing.T) {
	_, err := New(Config{Enabled: true, Driver: "memcached"})
	assert.Error(t, err)
}

func TestNewRedisUnreachable(t *testing.T) {
	_, err := New(Config{Enabled: true, Driver: DriverRedis, Host: "127.0.0.1", Port: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to redis")
}

func TestMemoryCacheRoundTrip(t *testing.T) {
	c, err := New(Config{Enabled: true, Driver: DriverMemory})
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "invocation:1", sample{Processed: 3}, 0))

	data, err := c.Get(ctx, "invocation:1")
	require.NoError(t, err)
	var got sample
	require.NoError(t, c.Unmarshal(data, &got))
	assert.Equal(t, 3, got.Processed)

	require.NoError(t, c.Delete(ctx, "invocation:1"))
	data, err = c.Get(ctx, "invocation:1")
	assert.NoError(t, err)
	assert.Nil(t, data)
}

func TestMemoryCacheStoresRawBytes(t *testing.T) {
	c := NewMemory(0)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "raw", []byte(`{"a":1}`), 0))
	data, err := c.Get(ctx, "raw")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(data))
}

func TestMemoryCacheExpiry(t *testing.T) {
	mc := NewMemory(time.Minute).(*memoryCache)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mc.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, "short", sample{}, time.Second))
	require.NoError(t, mc.Set(ctx, "default", sample{}, 0))

	now = now.Add(2 * time.Second)
	data, _ := mc.Get(ctx, "short")
	assert.Nil(t, data)
	data, _ = mc.Get(ctx, "default")
	assert.NotNil(t, data)

	now = now.Add(time.Minute)
	data, _ = mc.Get(ctx, "default")
	assert.Nil(t, data)
}

func TestMemoryCacheEvictsExpiredOnSet(t *testing.T) {
	mc := NewMemory(time.Hour).(*memoryCache)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mc.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 1000; i++ {
		require.NoError(t, mc.Set(ctx, fmt.Sprintf("k%d", i), []byte("v"), time.Millisecond))
	}
	require.NoError(t, mc.Set(ctx, "kept", []byte("v"), 0))
	assert.Equal(t, 1001, mc.Len())

	now = now.Add(10 * time.Millisecond)
	require.NoError(t, mc.Set(ctx, "last", []byte("v"), time.Millisecond))

	assert.Equal(t, 2, mc.Len())
	assert.Equal(t, 1, mc.expiry.Len())
}

func TestMemoryCacheOverwriteKeepsNewExpiry(t *testing.T) {
	mc := NewMemory(0).(*memoryCache)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mc.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, "k", []byte("old"), time.Second))
	require.NoError(t, mc.Set(ctx, "k", []byte("new"), time.Hour))

	now = now.Add(2 * time.Second)
	require.NoError(t, mc.Set(ctx, "other", []byte("v"), 0))

	data, err := mc.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}
