package tiercache_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cacheforge/tiercache/pkg/monitor"
	"github.com/cacheforge/tiercache/pkg/tiercache"
)

func newTestCache(t *testing.T, l1MaxSize int) (*tiercache.Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	remote := tiercache.NewRedisStoreFromClient(client, nil, nil)

	c := tiercache.NewCache(
		tiercache.NewL1Store(l1MaxSize),
		remote,
		tiercache.NewCodec(1024, 6),
		monitor.NewDefault(),
		time.Hour,
		nil,
	)
	require.True(t, c.Connect(context.Background()))
	return c, mr
}

// Scenario A — basic read/write round-trip.
func TestCache_BasicRoundTrip(t *testing.T) {
	c, _ := newTestCache(t, 10)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k1", map[string]interface{}{"a": float64(1)}, time.Hour))

	value, ok := c.Get(ctx, "k1")
	require.True(t, ok)
	assert.Equal(t, map[string]interface{}{"a": float64(1)}, value)

	stats := c.Monitor().PerformanceStats()
	assert.Equal(t, 100.0, stats["cache_hit_rate"])
}

// Scenario B — L1 eviction under FIFO.
func TestCache_L1EvictionUnderFIFO(t *testing.T) {
	c, _ := newTestCache(t, 2)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", 1, time.Hour))
	require.NoError(t, c.Set(ctx, "b", 2, time.Hour))
	require.NoError(t, c.Set(ctx, "c", 3, time.Hour))

	_, aOK := c.L1().Get("a")
	assert.False(t, aOK)

	bVal, bOK := c.L1().Get("b")
	assert.True(t, bOK)
	assert.EqualValues(t, 2, bVal)

	cVal, cOK := c.L1().Get("c")
	assert.True(t, cOK)
	assert.EqualValues(t, 3, cVal)
}

// Scenario C — degraded mode.
func TestCache_DegradedModeServesFromL1Only(t *testing.T) {
	remote := tiercache.NewRedisStoreFromClient(
		redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond}),
		nil, nil,
	)
	c := tiercache.NewCache(tiercache.NewL1Store(10), remote, tiercache.NewCodec(1024, 6), monitor.NewDefault(), time.Hour, nil)
	ctx := context.Background()

	connected := c.Connect(ctx)
	assert.False(t, connected)
	assert.True(t, c.Degraded())

	require.NoError(t, c.Set(ctx, "k", "v", time.Hour))
	value, ok := c.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "v", value)
}

func TestCache_DegradedModeAfterRestartLosesL1(t *testing.T) {
	remote := tiercache.NewRedisStoreFromClient(
		redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond}),
		nil, nil,
	)
	ctx := context.Background()
	c := tiercache.NewCache(tiercache.NewL1Store(10), remote, tiercache.NewCodec(1024, 6), monitor.NewDefault(), time.Hour, nil)
	c.Connect(ctx)
	require.NoError(t, c.Set(ctx, "k", "v", time.Hour))

	restarted := tiercache.NewCache(tiercache.NewL1Store(10), remote, tiercache.NewCodec(1024, 6), monitor.NewDefault(), time.Hour, nil)
	restarted.Connect(ctx)

	_, ok := restarted.Get(ctx, "k")
	assert.False(t, ok)
}

// Scenario D — compression threshold crossing.
func TestCache_CompressionThresholdCrossing(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	remote := tiercache.NewRedisStoreFromClient(client, nil, nil)

	mon := monitor.NewDefault()
	codec := tiercache.NewCodec(1000, 6)
	c := tiercache.NewCache(tiercache.NewL1Store(10), remote, codec, mon, time.Hour, nil)
	ctx := context.Background()
	require.True(t, c.Connect(ctx))

	small := make([]byte, 500)
	for i := range small {
		small[i] = 'x'
	}
	require.NoError(t, c.Set(ctx, "small", string(small), time.Hour))

	big := make([]byte, 2000)
	for i := range big {
		big[i] = 'x'
	}
	require.NoError(t, c.Set(ctx, "big", string(big), time.Hour))

	smallPayload, _, err := remote.Get(ctx, "small")
	require.NoError(t, err)
	assert.True(t, string(smallPayload[:5]) == "rawj:" || string(smallPayload[:4]) == "raw:")

	bigPayload, _, err := remote.Get(ctx, "big")
	require.NoError(t, err)
	assert.Equal(t, "compressed:", string(bigPayload[:11]))

	stats := mon.PerformanceStats()
	compression := stats["compression"].(map[string]interface{})
	assert.Equal(t, 1, compression["count"])
}

// Scenario E — pattern invalidation.
func TestCache_PatternInvalidation(t *testing.T) {
	c, _ := newTestCache(t, 10)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "ai_cache:op:summarize|txt:A", "v1", time.Hour))
	require.NoError(t, c.Set(ctx, "ai_cache:op:summarize|txt:B", "v2", time.Hour))
	require.NoError(t, c.Set(ctx, "ai_cache:op:sentiment|txt:C", "v3", time.Hour))

	count := c.InvalidatePattern(ctx, "op:summarize", "")
	assert.GreaterOrEqual(t, count, 2)

	_, aOK := c.Get(ctx, "ai_cache:op:summarize|txt:A")
	_, bOK := c.Get(ctx, "ai_cache:op:summarize|txt:B")
	cVal, cOK := c.Get(ctx, "ai_cache:op:sentiment|txt:C")

	assert.False(t, aOK)
	assert.False(t, bOK)
	require.True(t, cOK)
	assert.Equal(t, "v3", cVal)
}

func TestCache_SetThenSetOverwritesValue(t *testing.T) {
	c, _ := newTestCache(t, 10)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", "v1", time.Hour))
	require.NoError(t, c.Set(ctx, "k", "v2", time.Hour))

	value, ok := c.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "v2", value)
}

func TestCache_DeleteThenGetIsAbsent(t *testing.T) {
	c, _ := newTestCache(t, 10)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", "v", time.Hour))
	assert.True(t, c.Delete(ctx, "k"))

	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestCache_DeleteReportsFalseWhenKeyNeverExisted(t *testing.T) {
	c, _ := newTestCache(t, 10)
	assert.False(t, c.Delete(context.Background(), "never-set"))
}

func TestCache_CallbacksFireOnGetAndSet(t *testing.T) {
	c, _ := newTestCache(t, 10)
	ctx := context.Background()

	var gotSetCallback, gotGetCallback bool
	c.RegisterCallback(tiercache.EventSetSuccess, func(key string, extra map[string]interface{}) {
		gotSetCallback = true
	})
	c.RegisterCallback(tiercache.EventGetSuccess, func(key string, extra map[string]interface{}) {
		gotGetCallback = true
	})

	require.NoError(t, c.Set(ctx, "k", "v", time.Hour))
	_, _ = c.Get(ctx, "k")

	assert.True(t, gotSetCallback)
	assert.True(t, gotGetCallback)
}

func TestCache_PanickingCallbackDoesNotFailOperation(t *testing.T) {
	c, _ := newTestCache(t, 10)
	ctx := context.Background()

	c.RegisterCallback(tiercache.EventSetSuccess, func(key string, extra map[string]interface{}) {
		panic("boom")
	})

	err := c.Set(ctx, "k", "v", time.Hour)
	assert.NoError(t, err)

	value, ok := c.Get(ctx, "k")
	assert.True(t, ok)
	assert.Equal(t, "v", value)
}

func TestCache_ExistsChecksL1ThenRemote(t *testing.T) {
	c, _ := newTestCache(t, 10)
	ctx := context.Background()

	assert.False(t, c.Exists(ctx, "k"))
	require.NoError(t, c.Set(ctx, "k", "v", time.Hour))
	assert.True(t, c.Exists(ctx, "k"))
}
