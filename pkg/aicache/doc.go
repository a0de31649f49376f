// Package aicache layers AI-aware key construction, text-length tier
// classification, per-operation TTLs, and hit-driven promotion on top
// of the generic tiered cache in pkg/tiercache.
//
// # Overview
//
// AICache wraps a tiercache.Cache rather than reimplementing storage:
// every get/set/delete still goes through the L1 store and Redis the
// generic cache already manages. What this package adds is entirely
// about shaping keys and interpreting outcomes for AI workloads —
// content-addressed keys built from (text, operation, options),
// operation-specific TTLs, tier-aware promotion heuristics, and
// per-operation hit-rate analytics.
//
// Basic usage:
//
//	cfg := tiercache.DefaultConfig()
//	ai := aicache.New(cache, cfg)
//
//	key, err := ai.BuildKey(document, "summarize", map[string]interface{}{"max_tokens": 256})
//	if err != nil {
//	    return nil, err
//	}
//	if cached, ok := ai.Cache().Get(ctx, key); ok {
//	    return cached, nil
//	}
//
// # Invalidation
//
// InvalidateByOperation removes every cached entry for an operation
// across both the L1 store and Redis, de-duplicating keys found in
// both tiers before reporting a count.
package aicache
