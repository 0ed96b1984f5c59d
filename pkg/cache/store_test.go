package cache

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Expiry(t *testing.T) {
	ctx := context.Background()
	clk := clockwork.NewFakeClockAt(time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC))
	store := NewMemoryStore(clk)

	require.NoError(t, store.Put(ctx, "a", "1", time.Minute))
	require.NoError(t, store.Put(ctx, "b", "2", 10*time.Minute))

	v, ok, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "1", v)

	clk.Advance(time.Minute)
	_, ok, err = store.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok, "entries expire exactly at their TTL")

	require.NoError(t, store.Put(ctx, "c", "3", time.Second))
	clk.Advance(5 * time.Second)
	assert.Equal(t, 1, store.Purge())
	assert.Equal(t, 1, store.Len())

	clk.Advance(10 * time.Minute)
	assert.Equal(t, 1, store.Purge())
	assert.Zero(t, store.Len())
}

func TestRedisStore_Expiry(t *testing.T) {
	ctx := context.Background()
	client, mr := setupTestRedis(t)
	store := NewRedisStore(client, "test:")

	require.NoError(t, store.Put(ctx, "a", "1", time.Minute))
	assert.True(t, mr.Exists("test:a"))

	v, ok, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "1", v)

	mr.FastForward(time.Minute)
	_, ok, err = store.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Put(ctx, "b", "2", time.Minute))
	require.NoError(t, store.Delete(ctx, "b"))
	_, ok, err = store.Get(ctx, "b")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStore_Incr(t *testing.T) {
	ctx := context.Background()
	clk := clockwork.NewFakeClockAt(time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC))
	store := NewMemoryStore(clk)

	for want := int64(1); want <= 3; want++ {
		n, err := store.Incr(ctx, "hits", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, want, n)
	}

	clk.Advance(time.Minute)
	n, err := store.Incr(ctx, "hits", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "an expired counter starts over")

	require.NoError(t, store.Put(ctx, "word", "abc", time.Minute))
	_, err = store.Incr(ctx, "word", time.Minute)
	assert.Error(t, err)
}

func TestRedisStore_Incr(t *testing.T) {
	ctx := context.Background()
	client, mr := setupTestRedis(t)
	store := NewRedisStore(client, "test:")

	for want := int64(1); want <= 3; want++ {
		n, err := store.Incr(ctx, "hits", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, want, n)
	}
	assert.Equal(t, time.Minute, mr.TTL("test:hits"))

	mr.FastForward(time.Minute)
	n, err := store.Incr(ctx, "hits", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
