package aicache_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cacheforge/tiercache/pkg/aicache"
	"github.com/cacheforge/tiercache/pkg/monitor"
	"github.com/cacheforge/tiercache/pkg/tiercache"
)

func newTestAICache(t *testing.T) *aicache.AICache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	remote := tiercache.NewRedisStoreFromClient(client, nil, nil)

	cfg := tiercache.DefaultConfig()
	cache := tiercache.NewCache(
		tiercache.NewL1Store(cfg.L1MaxSize),
		remote,
		tiercache.NewCodec(cfg.CompressionThreshold, cfg.CompressionLevel),
		monitor.NewDefault(),
		cfg.DefaultTTL,
		nil,
	)
	require.True(t, cache.Connect(context.Background()))

	return aicache.New(cache, cfg)
}

func TestBuildKey_EmbedsOperationAndTier(t *testing.T) {
	a := newTestAICache(t)

	key, err := a.BuildKey("short text", "summarize", nil)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "ai_cache:op:summarize|tier:small|"))
	assert.Equal(t, "summarize", aicache.ExtractOperation(key))
	assert.Equal(t, "small", aicache.ExtractTier(key))
}

func TestBuildKey_HashesTextAboveThreshold(t *testing.T) {
	a := newTestAICache(t)

	longText := strings.Repeat("a", 600)
	key, err := a.BuildKey(longText, "summarize", nil)
	require.NoError(t, err)
	assert.Contains(t, key, "txt:hash:")
	assert.NotContains(t, key, longText)
}

func TestBuildKey_SameOptionsDifferentOrderProduceSameKey(t *testing.T) {
	a := newTestAICache(t)

	k1, err := a.BuildKey("text", "qa", map[string]interface{}{"a": 1, "b": 2})
	require.NoError(t, err)
	k2, err := a.BuildKey("text", "qa", map[string]interface{}{"b": 2, "a": 1})
	require.NoError(t, err)
	assert.Equal(t, k1, k2)
}

func TestBuildKey_RejectsEmptyText(t *testing.T) {
	a := newTestAICache(t)
	_, err := a.BuildKey("", "summarize", nil)
	assert.ErrorIs(t, err, aicache.ErrInvalidText)
}

func TestBuildKey_RejectsMalformedOperation(t *testing.T) {
	a := newTestAICache(t)
	_, err := a.BuildKey("text", "not an operation!", nil)
	assert.ErrorIs(t, err, aicache.ErrInvalidOperation)
}

func TestGetSet_RoundTripsThroughOperationTTL(t *testing.T) {
	a := newTestAICache(t)
	ctx := context.Background()

	require.NoError(t, a.Set(ctx, "some document text", "summarize", nil, "the summary"))

	value, ok, err := a.Get(ctx, "some document text", "summarize", nil)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "the summary", value)
}

func TestGetSet_DifferentOperationsAreDistinctEntries(t *testing.T) {
	a := newTestAICache(t)
	ctx := context.Background()

	require.NoError(t, a.Set(ctx, "text", "summarize", nil, "summary result"))
	require.NoError(t, a.Set(ctx, "text", "sentiment", nil, "positive"))

	_, ok, err := a.Get(ctx, "text", "sentiment", nil)
	require.NoError(t, err)
	require.True(t, ok)

	summaryValue, ok, err := a.Get(ctx, "text", "summarize", nil)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "summary result", summaryValue)
}

func TestInvalidateByOperation_RemovesOnlyThatOperationAcrossTiers(t *testing.T) {
	a := newTestAICache(t)
	ctx := context.Background()

	require.NoError(t, a.Set(ctx, "doc A", "summarize", nil, "v1"))
	require.NoError(t, a.Set(ctx, "doc B", "summarize", nil, "v2"))
	require.NoError(t, a.Set(ctx, "doc C", "sentiment", nil, "v3"))

	removed := a.InvalidateByOperation(ctx, "summarize", "test")
	assert.Equal(t, 2, removed)

	_, aOK, _ := a.Get(ctx, "doc A", "summarize", nil)
	_, bOK, _ := a.Get(ctx, "doc B", "summarize", nil)
	cVal, cOK, _ := a.Get(ctx, "doc C", "sentiment", nil)

	assert.False(t, aOK)
	assert.False(t, bOK)
	require.True(t, cOK)
	assert.Equal(t, "v3", cVal)
}

func TestInvalidateByOperation_DoesNotDoubleCountKeysPresentInBothTiers(t *testing.T) {
	a := newTestAICache(t)
	ctx := context.Background()

	require.NoError(t, a.Set(ctx, "doc", "summarize", nil, "v"))
	// The entry now lives in both L1 and remote; invalidation must
	// report it once, not twice.
	removed := a.InvalidateByOperation(ctx, "summarize", "test")
	assert.Equal(t, 1, removed)
}

func TestClear_RemovesEverythingThisCacheOwns(t *testing.T) {
	a := newTestAICache(t)
	ctx := context.Background()

	require.NoError(t, a.Set(ctx, "doc A", "summarize", nil, "v1"))
	require.NoError(t, a.Set(ctx, "doc B", "sentiment", nil, "v2"))

	removed := a.Clear(ctx, "test")
	assert.Equal(t, 2, removed)

	_, ok, _ := a.Get(ctx, "doc A", "summarize", nil)
	assert.False(t, ok)
}

func TestShouldPromoteToMemory_SmallAlwaysPromotes(t *testing.T) {
	a := newTestAICache(t)
	assert.True(t, a.ShouldPromoteToMemory(aicache.TierSmall, "qa"))
}

func TestShouldPromoteToMemory_MediumPromotesOnlyStableOperations(t *testing.T) {
	a := newTestAICache(t)
	assert.True(t, a.ShouldPromoteToMemory(aicache.TierMedium, "sentiment"))
	assert.True(t, a.ShouldPromoteToMemory(aicache.TierMedium, "summarize"))
	assert.True(t, a.ShouldPromoteToMemory(aicache.TierMedium, "key_points"))
	assert.False(t, a.ShouldPromoteToMemory(aicache.TierMedium, "qa"))
}

func TestShouldPromoteToMemory_LargeOnlyPromotesSentiment(t *testing.T) {
	a := newTestAICache(t)
	assert.True(t, a.ShouldPromoteToMemory(aicache.TierLarge, "sentiment"))
	assert.False(t, a.ShouldPromoteToMemory(aicache.TierLarge, "summarize"))
}

func TestShouldPromoteToMemory_XLargeNeverPromotesWithoutHitHistory(t *testing.T) {
	a := newTestAICache(t)
	assert.False(t, a.ShouldPromoteToMemory(aicache.TierXLarge, "sentiment"))
}

func TestShouldPromoteToMemory_HighHitCountOverridesForSmallAndMedium(t *testing.T) {
	a := newTestAICache(t)
	ctx := context.Background()

	require.NoError(t, a.Set(ctx, "text", "qa", nil, "answer"))
	for i := 0; i < 10; i++ {
		_, _, err := a.Get(ctx, "text", "qa", nil)
		require.NoError(t, err)
	}

	assert.True(t, a.ShouldPromoteToMemory(aicache.TierMedium, "qa"))
}

func TestShouldPromoteToMemory_HitCountDoesNotOverrideForXLarge(t *testing.T) {
	a := newTestAICache(t)
	ctx := context.Background()

	require.NoError(t, a.Set(ctx, "text", "qa", nil, "answer"))
	for i := 0; i < 10; i++ {
		_, _, err := a.Get(ctx, "text", "qa", nil)
		require.NoError(t, err)
	}

	assert.False(t, a.ShouldPromoteToMemory(aicache.TierXLarge, "qa"))
}

func TestPerformanceSummary_ReportsPerOperationHitRates(t *testing.T) {
	a := newTestAICache(t)
	ctx := context.Background()

	require.NoError(t, a.Set(ctx, "text", "summarize", nil, "result"))
	_, _, err := a.Get(ctx, "text", "summarize", nil)
	require.NoError(t, err)
	_, _, err = a.Get(ctx, "missing text", "summarize", nil)
	require.NoError(t, err)

	summary := a.PerformanceSummary()
	rates := summary["operation_hit_rates"].(map[string]float64)
	assert.InDelta(t, 50.0, rates["summarize"], 0.01)
}

func TestPerformanceSummary_LowHitRateProducesWarningRecommendation(t *testing.T) {
	a := newTestAICache(t)
	ctx := context.Background()

	require.NoError(t, a.Set(ctx, "text", "summarize", nil, "result"))
	for i := 0; i < 5; i++ {
		_, _, err := a.Get(ctx, "nonexistent text", "summarize", nil)
		require.NoError(t, err)
	}

	summary := a.PerformanceSummary()
	recs := summary["recommendations"].([]aicache.Recommendation)
	require.NotEmpty(t, recs)
	assert.Equal(t, "low_hit_rate", recs[0].Issue)
}

func TestPerformanceSummary_TracksTierDistributionFromWrites(t *testing.T) {
	a := newTestAICache(t)
	ctx := context.Background()

	require.NoError(t, a.Set(ctx, "short", "summarize", nil, "v"))
	require.NoError(t, a.Set(ctx, strings.Repeat("x", 600), "summarize", nil, "v"))

	summary := a.PerformanceSummary()
	dist := summary["tier_distribution"].(map[aicache.Tier]int)
	assert.Equal(t, 1, dist[aicache.TierSmall])
	assert.Equal(t, 1, dist[aicache.TierMedium])
}

func TestOperationTTL_FallsBackToDefaultForUnknownOperation(t *testing.T) {
	a := newTestAICache(t)
	assert.Equal(t, tiercache.DefaultConfig().DefaultTTL, a.TTLForOperation("an_operation_without_a_configured_ttl"))
}

func TestOperationTTL_UsesConfiguredValueForKnownOperation(t *testing.T) {
	a := newTestAICache(t)
	assert.Equal(t, 24*time.Hour, a.TTLForOperation("sentiment"))
}

func TestTopOperations_RanksByAccumulatedHitsDescending(t *testing.T) {
	a := newTestAICache(t)
	ctx := context.Background()

	require.NoError(t, a.Set(ctx, "a", "summarize", nil, "v"))
	require.NoError(t, a.Set(ctx, "b", "sentiment", nil, "v"))
	require.NoError(t, a.Set(ctx, "c", "qa", nil, "v"))

	for i := 0; i < 3; i++ {
		_, _, err := a.Get(ctx, "a", "summarize", nil)
		require.NoError(t, err)
	}
	_, _, err := a.Get(ctx, "b", "sentiment", nil)
	require.NoError(t, err)

	top := a.TopOperations(2)
	require.Len(t, top, 2)
	assert.Equal(t, "summarize", top[0].Operation)
	assert.Equal(t, 3, top[0].Hits)
	assert.Equal(t, "sentiment", top[1].Operation)
	assert.Equal(t, 1, top[1].Hits)
}

func TestTopOperations_ZeroLimitReturnsNil(t *testing.T) {
	a := newTestAICache(t)
	assert.Nil(t, a.TopOperations(0))
}
