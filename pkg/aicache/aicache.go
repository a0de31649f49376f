package aicache

import (
	"container/heap"
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cacheforge/tiercache/pkg/tiercache"
)

// maxRecentOperations bounds the recentOperations activity log kept
// by the hit/miss callbacks. Promotion decisions and the performance
// summary read the accumulated per-operation counters, not this log.
const maxRecentOperations = 1000

// stableOperations are the operation kinds spec.md §4.6 names as
// cheap to recompute and worth keeping in memory at the medium tier.
var stableOperations = map[string]bool{
	"sentiment":  true,
	"summarize":  true,
	"key_points": true,
	"classify":   true,
}

// recentOperation is one bounded sample of AI-cache activity.
type recentOperation struct {
	Operation string
	Tier      Tier
	Hit       bool
	Timestamp time.Time
}

// AICache layers content-addressed key construction, tier
// classification, per-operation TTLs, and hit-driven promotion over a
// generic tiercache.Cache, the way the teacher's SemanticCache layers
// query-specific behavior over a Redis-backed cache without
// reimplementing storage itself.
type AICache struct {
	cache      *tiercache.Cache
	keygen     *KeyGenerator
	classifier *TierClassifier
	validator  *InputValidator

	operationTTLs map[string]time.Duration
	defaultTTL    time.Duration

	mu                sync.Mutex
	hitsByOperation   map[string]int
	missesByOperation map[string]int
	tierDistribution  map[Tier]int
	recentOperations  []recentOperation
}

// New builds an AICache wrapping cache, configured from cfg. cache's
// namespace is scoped to "ai_cache" so the remote-tier half of
// InvalidatePattern and of the invalidation helpers below only
// matches ai_cache: keys; their L1 half matches by substring across
// every L1 key.
func New(cache *tiercache.Cache, cfg tiercache.Config) *AICache {
	cache.SetNamespace("ai_cache")

	a := &AICache{
		cache:             cache,
		keygen:            NewKeyGenerator(cfg.TextHashThreshold),
		classifier:        NewTierClassifier(cfg.TextSizeTiers.Small, cfg.TextSizeTiers.Medium, cfg.TextSizeTiers.Large),
		validator:         NewInputValidator(),
		operationTTLs:     cfg.OperationTTLs,
		defaultTTL:        cfg.DefaultTTL,
		hitsByOperation:   make(map[string]int),
		missesByOperation: make(map[string]int),
		tierDistribution:  make(map[Tier]int),
	}

	cache.RegisterCallback(tiercache.EventGetSuccess, a.onGetResult(true))
	cache.RegisterCallback(tiercache.EventGetMiss, a.onGetResult(false))
	cache.RegisterCallback(tiercache.EventSetSuccess, a.onSet)
	cache.SetPromotionPredicate(a.shouldPromoteKey)

	return a
}

// Cache exposes the wrapped generic cache for callers that need
// direct tier/monitor access beyond the AI-aware surface.
func (a *AICache) Cache() *tiercache.Cache {
	return a.cache
}

// onGetResult records an AI-level hit or miss against the operation
// embedded in the key, parsed with ExtractOperation.
func (a *AICache) onGetResult(hit bool) tiercache.Callback {
	return func(key string, extra map[string]interface{}) {
		operation := ExtractOperation(key)
		tier := Tier(ExtractTier(key))

		a.mu.Lock()
		defer a.mu.Unlock()

		if hit {
			a.hitsByOperation[operation]++
		} else {
			a.missesByOperation[operation]++
		}
		a.recentOperations = append(a.recentOperations, recentOperation{
			Operation: operation, Tier: tier, Hit: hit, Timestamp: time.Now(),
		})
		if len(a.recentOperations) > maxRecentOperations {
			a.recentOperations = a.recentOperations[len(a.recentOperations)-maxRecentOperations:]
		}
	}
}

// onSet updates the tier distribution whenever a new AI cache entry is
// written; unlike hits/misses, population distribution is naturally
// measured at write time rather than read time.
func (a *AICache) onSet(key string, extra map[string]interface{}) {
	tier := Tier(ExtractTier(key))

	a.mu.Lock()
	defer a.mu.Unlock()
	a.tierDistribution[tier]++
}

// BuildKey classifies text's tier and composes the content-addressed
// key BuildKey's callers use for get/set/exists, validating text and
// operation first per spec.md §4.5. The construction work is timed and
// recorded against the monitor's key_generation category (spec.md
// §2's read data-flow, §4.3's key_generation stats section), covering
// both the validation and the hashing/fingerprinting work.
func (a *AICache) BuildKey(text, operation string, options map[string]interface{}) (string, error) {
	start := time.Now()

	if err := a.validator.ValidateText(text); err != nil {
		return "", err
	}
	if err := a.validator.ValidateOperation(operation); err != nil {
		return "", err
	}
	tier := a.classifier.Classify(len(text))
	key := a.keygen.BuildKey(text, operation, tier, options)

	a.cache.Monitor().RecordKeyGeneration(time.Since(start), len(text), operation, nil)
	return key, nil
}

// TTLForOperation returns the configured TTL for operation, falling
// back to the cache's default TTL when the operation has none.
func (a *AICache) TTLForOperation(operation string) time.Duration {
	if ttl, ok := a.operationTTLs[operation]; ok && ttl > 0 {
		return ttl
	}
	return a.defaultTTL
}

// Get retrieves the cached result for (text, operation, options),
// building the key and recording AI-level hit/miss metrics via the
// callbacks registered in New.
func (a *AICache) Get(ctx context.Context, text, operation string, options map[string]interface{}) (interface{}, bool, error) {
	key, err := a.BuildKey(text, operation, options)
	if err != nil {
		return nil, false, err
	}
	value, ok := a.cache.Get(ctx, key)
	return value, ok, nil
}

// Set caches value for (text, operation, options) using operation's
// configured TTL.
func (a *AICache) Set(ctx context.Context, text, operation string, options map[string]interface{}, value interface{}) error {
	key, err := a.BuildKey(text, operation, options)
	if err != nil {
		return err
	}
	return a.cache.Set(ctx, key, value, a.TTLForOperation(operation))
}

// Exists reports whether a cached result exists for (text, operation,
// options).
func (a *AICache) Exists(ctx context.Context, text, operation string, options map[string]interface{}) (bool, error) {
	key, err := a.BuildKey(text, operation, options)
	if err != nil {
		return false, err
	}
	return a.cache.Exists(ctx, key), nil
}

// InvalidateByOperation removes every cached entry for operation
// across both tiers, de-duplicating keys present in both before
// reporting a distinct count, per spec.md §4.6.
func (a *AICache) InvalidateByOperation(ctx context.Context, operation, invalidationContext string) int {
	return a.invalidateByPattern(ctx, fmt.Sprintf("op:%s|", operation), invalidationContext, "operation")
}

// Clear removes every entry this AICache owns, across both tiers.
func (a *AICache) Clear(ctx context.Context, invalidationContext string) int {
	return a.invalidateByPattern(ctx, "ai_cache:", invalidationContext, "clear")
}

// invalidateByPattern finds every key containing pattern in L1 and
// (namespace-scoped) in the remote tier, de-duplicates across tiers,
// deletes each, and records a single invalidation event for the
// distinct count removed.
func (a *AICache) invalidateByPattern(ctx context.Context, pattern, invalidationContext, kind string) int {
	start := time.Now()
	if invalidationContext == "" {
		invalidationContext = uuid.NewString()
	}

	var l1Keys []string
	if l1 := a.cache.L1(); l1 != nil {
		for _, key := range l1.Keys() {
			if strings.Contains(key, pattern) {
				l1Keys = append(l1Keys, key)
			}
		}
	}

	remoteKeys, _ := a.cache.KeysContaining(ctx, pattern)

	removed := 0
	for _, key := range tiercache.DedupeKeys(l1Keys, remoteKeys) {
		if a.cache.Delete(ctx, key) {
			removed++
		}
	}

	a.cache.Monitor().RecordInvalidation(pattern, removed, time.Since(start), kind, invalidationContext, nil)
	return removed
}

// HitCountForOperation returns the number of recorded hits for
// operation, used by ShouldPromoteToMemory's hit-driven branch.
func (a *AICache) HitCountForOperation(operation string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.hitsByOperation[operation]
}

// ShouldPromoteToMemory implements spec.md §4.6's promotion policy: a
// small entry is always worth keeping in L1; a medium entry is worth
// it only for operations cheap to recompute; a large entry is worth
// it only for sentiment; and any small-or-medium entry whose operation
// has accumulated ten or more hits earns promotion regardless of the
// rules above. xlarge entries are never promoted.
func (a *AICache) ShouldPromoteToMemory(tier Tier, operation string) bool {
	switch tier {
	case TierSmall:
		return true
	case TierMedium:
		if stableOperations[operation] {
			return true
		}
	case TierLarge:
		if operation == "sentiment" {
			return true
		}
	}

	if (tier == TierSmall || tier == TierMedium) && a.HitCountForOperation(operation) >= 10 {
		return true
	}
	return false
}

// shouldPromoteKey adapts ShouldPromoteToMemory into the
// tiercache.PromotionPredicate shape Cache.Get consults on every
// remote hit, parsing tier and operation back out of the key the same
// way the hit/miss callbacks above do.
func (a *AICache) shouldPromoteKey(key string) bool {
	tier := Tier(ExtractTier(key))
	operation := ExtractOperation(key)
	return a.ShouldPromoteToMemory(tier, operation)
}

// PerformanceSummary surfaces per-operation hit rates, tier
// distribution, the inherited generic-cache statistics, and sorted
// actionable recommendations, per spec.md §4.6.
func (a *AICache) PerformanceSummary() map[string]interface{} {
	a.mu.Lock()
	hitsByOp := make(map[string]int, len(a.hitsByOperation))
	for op, n := range a.hitsByOperation {
		hitsByOp[op] = n
	}
	missesByOp := make(map[string]int, len(a.missesByOperation))
	for op, n := range a.missesByOperation {
		missesByOp[op] = n
	}
	tierDist := make(map[Tier]int, len(a.tierDistribution))
	for tier, n := range a.tierDistribution {
		tierDist[tier] = n
	}
	a.mu.Unlock()

	operationHitRates := make(map[string]float64, len(hitsByOp)+len(missesByOp))
	for op, hits := range hitsByOp {
		total := hits + missesByOp[op]
		if total > 0 {
			operationHitRates[op] = float64(hits) / float64(total) * 100
		}
	}
	for op, misses := range missesByOp {
		if _, ok := operationHitRates[op]; !ok && misses > 0 {
			operationHitRates[op] = 0
		}
	}

	cacheStats := a.cache.Monitor().PerformanceStats()

	return map[string]interface{}{
		"operation_hit_rates": operationHitRates,
		"tier_distribution":   tierDist,
		"cache":               cacheStats,
		"recommendations":     a.recommendations(operationHitRates, tierDist, cacheStats),
	}
}

var severityRank = map[string]int{"critical": 0, "warning": 1, "info": 2}

// recommendations derives actionable suggestions from per-operation
// hit rates, tier distribution, and the generic cache's own
// statistics, per spec.md §4.6's recommendation rules.
func (a *AICache) recommendations(operationHitRates map[string]float64, tierDist map[Tier]int, cacheStats map[string]interface{}) []Recommendation {
	var recs []Recommendation

	for op, rate := range operationHitRates {
		switch {
		case rate < 30:
			recs = append(recs, Recommendation{
				Severity: "warning", Issue: "low_hit_rate",
				Message:     fmt.Sprintf("Operation %q has a hit rate of %.1f%%, below 30%%", op, rate),
				Suggestions: []string{"Increase this operation's TTL", "Check whether inputs vary more than expected"},
			})
		case rate > 90:
			recs = append(recs, Recommendation{
				Severity: "info", Issue: "excellent_hit_rate",
				Message:     fmt.Sprintf("Operation %q has a hit rate of %.1f%%", op, rate),
				Suggestions: []string{"Consider increasing this operation's TTL further to reduce recomputation"},
			})
		}
	}

	totalTiered := 0
	for _, n := range tierDist {
		totalTiered += n
	}
	if totalTiered > 0 && float64(tierDist[TierXLarge])/float64(totalTiered) > 0.4 {
		recs = append(recs, Recommendation{
			Severity: "warning", Issue: "xlarge_proportion",
			Message:     "More than 40% of cached entries fall in the xlarge tier",
			Suggestions: []string{"Raise the text size tier thresholds", "Confirm xlarge inputs are genuinely expected for this workload"},
		})
	}

	if l1 := a.cache.L1(); l1 != nil {
		if maxSize := l1.MaxSize(); maxSize > 0 {
			utilization := float64(l1.Len()) / float64(maxSize)
			if utilization >= 0.9 {
				recs = append(recs, Recommendation{
					Severity: "warning", Issue: "l1_near_capacity",
					Message:     fmt.Sprintf("L1 is at %.0f%% of its configured capacity", utilization*100),
					Suggestions: []string{"Increase l1_max_size to reduce FIFO eviction pressure"},
				})
			} else if utilization < 0.1 && l1.Len() > 0 {
				recs = append(recs, Recommendation{
					Severity: "info", Issue: "l1_underused",
					Message:     fmt.Sprintf("L1 is at %.0f%% of its configured capacity", utilization*100),
					Suggestions: []string{"Consider lowering l1_max_size to free up memory"},
				})
			}
		}
	}

	if compression, ok := cacheStats["compression"].(map[string]interface{}); ok {
		if meanRatio, ok := compression["mean_ratio"].(float64); ok && meanRatio > 0.9 {
			recs = append(recs, Recommendation{
				Severity: "info", Issue: "poor_compression_ratio",
				Message:     fmt.Sprintf("Compressed entries are only averaging a %.0f%% size reduction", (1-meanRatio)*100),
				Suggestions: []string{"Raise the compression threshold so only genuinely compressible payloads pay the CPU cost"},
			})
		}
	}

	sort.SliceStable(recs, func(i, j int) bool {
		return severityRank[recs[i].Severity] < severityRank[recs[j].Severity]
	})
	return recs
}

// OperationHits pairs an operation with its accumulated hit count, the
// element type TopOperations returns.
type OperationHits struct {
	Operation string
	Hits      int
}

// opHitsHeap is a min-heap by Hits, letting TopOperations keep only
// the top `limit` operations in memory while scanning every recorded
// operation once, grounded on the teacher's stats.go GetTopQueries.
type opHitsHeap []OperationHits

func (h opHitsHeap) Len() int           { return len(h) }
func (h opHitsHeap) Less(i, j int) bool { return h[i].Hits < h[j].Hits }
func (h opHitsHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *opHitsHeap) Push(x interface{}) { *h = append(*h, x.(OperationHits)) }
func (h *opHitsHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// TopOperations reports the limit operations with the most recorded
// hits, highest first. Supplements the distilled spec with the
// original Python source's top-query accounting (GetTopQueries in the
// teacher's stats.go), useful for deciding which operations most
// deserve a longer TTL or eager L1 promotion.
func (a *AICache) TopOperations(limit int) []OperationHits {
	if limit <= 0 {
		return nil
	}

	a.mu.Lock()
	snapshot := make([]OperationHits, 0, len(a.hitsByOperation))
	for op, hits := range a.hitsByOperation {
		snapshot = append(snapshot, OperationHits{Operation: op, Hits: hits})
	}
	a.mu.Unlock()

	h := &opHitsHeap{}
	heap.Init(h)
	for _, oh := range snapshot {
		heap.Push(h, oh)
		if h.Len() > limit {
			heap.Pop(h)
		}
	}

	result := make([]OperationHits, h.Len())
	for i := len(result) - 1; i >= 0; i-- {
		result[i] = heap.Pop(h).(OperationHits)
	}
	return result
}

// Recommendation mirrors monitor.Recommendation's shape so AICache's
// own recommendations slot into the same JSON contract without
// importing the monitor package's type for what is, here, an
// AI-specific finding.
type Recommendation struct {
	Severity    string   `json:"severity"`
	Issue       string   `json:"issue"`
	Message     string   `json:"message"`
	Suggestions []string `json:"suggestions,omitempty"`
}
