package tiercache_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/cacheforge/tiercache/pkg/tiercache"
)

func newMiniredisStore(t *testing.T) (*tiercache.RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return tiercache.NewRedisStoreFromClient(client, nil, nil), mr
}

func TestRedisStore_SetExThenGetRoundTrips(t *testing.T) {
	store, _ := newMiniredisStore(t)
	ctx := context.Background()

	require.NoError(t, store.SetEx(ctx, "k1", []byte("v1"), time.Minute))

	data, found, err := store.Get(ctx, "k1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("v1"), data)
}

func TestRedisStore_GetMissingKeyReportsNotFoundWithoutError(t *testing.T) {
	store, _ := newMiniredisStore(t)
	ctx := context.Background()

	_, found, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	require.False(t, found)
}

func TestRedisStore_DeleteReportsCount(t *testing.T) {
	store, _ := newMiniredisStore(t)
	ctx := context.Background()

	require.NoError(t, store.SetEx(ctx, "a", []byte("1"), time.Minute))
	require.NoError(t, store.SetEx(ctx, "b", []byte("2"), time.Minute))

	count, err := store.Delete(ctx, "a", "b", "missing")
	require.NoError(t, err)
	require.Equal(t, 2, count)
}

func TestRedisStore_KeysMatchesGlobPattern(t *testing.T) {
	store, _ := newMiniredisStore(t)
	ctx := context.Background()

	require.NoError(t, store.SetEx(ctx, "ai_cache:op:summarize|txt:A", []byte("v"), time.Minute))
	require.NoError(t, store.SetEx(ctx, "ai_cache:op:sentiment|txt:B", []byte("v"), time.Minute))

	keys, err := store.Keys(ctx, "*summarize*")
	require.NoError(t, err)
	require.Len(t, keys, 1)
}

func TestRedisStore_ExistsReflectsPresence(t *testing.T) {
	store, _ := newMiniredisStore(t)
	ctx := context.Background()

	exists, err := store.Exists(ctx, "nope")
	require.NoError(t, err)
	require.False(t, exists)

	require.NoError(t, store.SetEx(ctx, "k", []byte("v"), time.Minute))
	exists, err = store.Exists(ctx, "k")
	require.NoError(t, err)
	require.True(t, exists)
}

func TestRedisStore_PingFailsWhenServerUnreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond})
	store := tiercache.NewRedisStoreFromClient(client, nil, nil)

	err := store.Ping(context.Background())
	require.Error(t, err)
}

func TestRedisStore_GetSanitizesGlobMetacharactersInKey(t *testing.T) {
	store, _ := newMiniredisStore(t)
	ctx := context.Background()

	require.NoError(t, store.SetEx(ctx, "weird key*[x]", []byte("v"), time.Minute))

	data, found, err := store.Get(ctx, "weird key*[x]")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("v"), data)
}

func TestSanitizeRedisKey(t *testing.T) {
	require.Equal(t, "a_b_c_d", tiercache.SanitizeRedisKey("a*b[c]d"))
	require.Equal(t, "no_tabs_or_newlines", tiercache.SanitizeRedisKey("no\ttabs\nor\rnewlines"))
	require.Equal(t, "ai_cache:op:summarize|txt:A", tiercache.SanitizeRedisKey("ai_cache:op:summarize|txt:A"))
}
