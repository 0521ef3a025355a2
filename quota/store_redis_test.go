package quota

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupMiniRedis creates a miniredis instance and a store on top of it
func setupMiniRedis(t *testing.T) (*miniredis.Miniredis, *RedisStore) {
	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { _ = client.Close() })

	return mr, NewRedisStore(client, "quota:", time.Second)
}

func TestRedisStore_Increment(t *testing.T) {
	mr, store := setupMiniRedis(t)
	ctx := context.Background()

	st, err := store.Increment(ctx, "api:u1", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), st.Count)
	assert.WithinDuration(t, time.Now().Add(time.Minute), st.ResetAt, time.Second)

	st, err = store.Increment(ctx, "api:u1", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), st.Count)

	assert.True(t, mr.Exists("quota:api:u1"))
	assert.Equal(t, time.Minute, mr.TTL("quota:api:u1"))
}

func TestRedisStore_WindowExpires(t *testing.T) {
	mr, store := setupMiniRedis(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := store.Increment(ctx, "k", time.Minute)
		require.NoError(t, err)
	}

	mr.FastForward(time.Minute + time.Second)

	_, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	st, err := store.Increment(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), st.Count)
}

func TestRedisStore_Get(t *testing.T) {
	_, store := setupMiniRedis(t)
	ctx := context.Background()

	_, ok, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = store.Increment(ctx, "k", time.Minute)
	require.NoError(t, err)

	st, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(1), st.Count)
	assert.WithinDuration(t, time.Now().Add(time.Minute), st.ResetAt, time.Second)
}

func TestRedisStore_DecrementNotSupported(t *testing.T) {
	_, store := setupMiniRedis(t)
	err := store.Decrement(context.Background(), "k")
	assert.ErrorIs(t, err, ErrStoreNotSupported)
}

func TestRedisStore_Reset(t *testing.T) {
	mr, store := setupMiniRedis(t)
	ctx := context.Background()

	_, err := store.Increment(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.NoError(t, store.Reset(ctx, "k"))
	assert.False(t, mr.Exists("quota:k"))
}

func TestRedisStore_CleanupIsNoop(t *testing.T) {
	_, store := setupMiniRedis(t)
	removed, err := store.Cleanup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
	assert.NoError(t, store.Close())
}

func TestRedisStore_Unavailable(t *testing.T) {
	mr, store := setupMiniRedis(t)
	mr.Close()

	ctx := context.Background()
	_, err := store.Increment(ctx, "k", time.Minute)
	assert.ErrorIs(t, err, ErrStoreUnavailable)

	_, _, err = store.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrStoreUnavailable)

	err = store.Reset(ctx, "k")
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestRedisStore_ConcurrentIncrements(t *testing.T) {
	_, store := setupMiniRedis(t)
	ctx := context.Background()

	const n = 100
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Increment(ctx, "hot", time.Minute)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	st, ok, err := store.Get(ctx, "hot")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(n), st.Count)
}

func TestNewRedisStore_Defaults(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()

	store := NewRedisStore(client, "", 0)
	assert.Equal(t, "quota:", store.keyPrefix)
	assert.Equal(t, 50*time.Millisecond, store.timeout)
	assert.Equal(t, "quota:api:u1", store.buildKey("api:u1"))
}
