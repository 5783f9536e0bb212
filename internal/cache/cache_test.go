package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, Store) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewRedisStore(client, time.Minute)
}

func TestRedisStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	mr, store := newTestRedis(t)

	_, err := store.Get(ctx, "orders:1")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, store.Set(ctx, "orders:1", []byte(`{"id":1}`), 0))
	got, err := store.Get(ctx, "orders:1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":1}`, string(got))
	assert.Equal(t, time.Minute, mr.TTL("orders:1"))

	mr.FastForward(2 * time.Minute)
	_, err = store.Get(ctx, "orders:1")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestRedisStoreDeleteMany(t *testing.T) {
	ctx := context.Background()
	mr, store := newTestRedis(t)

	for _, key := range []string{"orders:1", "orders:2", "orders:3"} {
		require.NoError(t, store.Set(ctx, key, []byte("x"), time.Hour))
	}

	require.NoError(t, store.Delete(ctx, "orders:1", "", "orders:3"))
	assert.False(t, mr.Exists("orders:1"))
	assert.True(t, mr.Exists("orders:2"))
	assert.False(t, mr.Exists("orders:3"))

	assert.NoError(t, store.Delete(ctx))
}

func TestRedisStoreRejectsEmptyKey(t *testing.T) {
	_, store := newTestRedis(t)
	assert.Error(t, store.Set(context.Background(), "", []byte("x"), 0))
}

func TestNoopStoreAlwaysMisses(t *testing.T) {
	ctx := context.Background()
	var store Store = noopStore{}

	require.NoError(t, store.Set(ctx, "k", []byte("v"), time.Second))
	_, err := store.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.NoError(t, store.Delete(ctx, "k"))
}

func TestRedisStoreSetNXKeepsExistingValue(t *testing.T) {
	ctx := context.Background()
	mr, store := newTestRedis(t)

	ok, err := store.SetNX(ctx, "orders:1", []byte("first"), 0)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, time.Minute, mr.TTL("orders:1"))

	ok, err = store.SetNX(ctx, "orders:1", []byte("second"), time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := store.Get(ctx, "orders:1")
	require.NoError(t, err)
	assert.Equal(t, "first", string(got))

	_, err = store.SetNX(ctx, "", []byte("x"), 0)
	assert.Error(t, err)
}
