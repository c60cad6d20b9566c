package kvstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedisStore(t *testing.T, ttl time.Duration) (*RedisStore, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, ttl), s
}

func exerciseStore(t *testing.T, store Store) {
	ctx := context.Background()

	_, err := store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Set(ctx, "session", `{"role":"student"}`))
	got, err := store.Get(ctx, "session")
	require.NoError(t, err)
	assert.Equal(t, `{"role":"student"}`, got)

	require.NoError(t, store.Set(ctx, "session", "overwritten"))
	got, err = store.Get(ctx, "session")
	require.NoError(t, err)
	assert.Equal(t, "overwritten", got)

	require.NoError(t, store.Set(ctx, "other", "x"))
	require.NoError(t, store.Delete(ctx, "session", "never-set"))
	_, err = store.Get(ctx, "session")
	assert.ErrorIs(t, err, ErrNotFound)

	got, err = store.Get(ctx, "other")
	require.NoError(t, err)
	assert.Equal(t, "x", got)

	require.NoError(t, store.Delete(ctx))
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestRedisStore(t *testing.T) {
	store, _ := setupRedisStore(t, 0)
	exerciseStore(t, store)
}

func TestRedisStoreTTL(t *testing.T) {
	store, s := setupRedisStore(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", "v"))
	s.FastForward(2 * time.Hour)

	_, err := store.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNamespaceIsolation(t *testing.T) {
	inner := NewMemoryStore()
	a := Namespace(inner, "device:a")
	b := Namespace(inner, "device:b")
	ctx := context.Background()

	require.NoError(t, a.Set(ctx, "session", "alice"))
	require.NoError(t, b.Set(ctx, "session", "bob"))

	got, err := inner.Get(ctx, "device:a:session")
	require.NoError(t, err)
	assert.Equal(t, "alice", got)

	require.NoError(t, a.Delete(ctx, "session"))
	_, err = a.Get(ctx, "session")
	assert.ErrorIs(t, err, ErrNotFound)

	got, err = b.Get(ctx, "session")
	require.NoError(t, err)
	assert.Equal(t, "bob", got)
}
