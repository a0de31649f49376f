package tiercache

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cacheforge/tiercache/pkg/monitor"
	"github.com/cacheforge/tiercache/pkg/observability"
)

// CallbackEvent names one of the post-operation hooks C4 exposes.
type CallbackEvent string

// Callback events, per spec.md §4.4.
const (
	EventGetSuccess    CallbackEvent = "get_success"
	EventGetMiss       CallbackEvent = "get_miss"
	EventSetSuccess    CallbackEvent = "set_success"
	EventDeleteSuccess CallbackEvent = "delete_success"
)

// Callback is a post-operation hook. key is the cache key the
// operation concerned; extra carries operation-specific context such
// as the serving tier ("cache_tier") or a miss reason ("reason"), and
// may be nil or empty.
type Callback func(key string, extra map[string]interface{})

// PromotionPredicate decides whether a remote hit for key should be
// copied into L1. When nil, every remote hit is promoted
// unconditionally. AICache registers one via SetPromotionPredicate so
// spec.md §4.6's tier/operation-aware promotion policy governs the
// generic cache's own read path instead of living only as dead code
// the AI layer never calls.
type PromotionPredicate func(key string) bool

// Cache is the generic tiered cache (C4): L1 + remote store + codec +
// monitor, composed the way the teacher's internal/cache.MultiLevelCache
// composes an lru.Cache with a Redis-backed Cache, generalized with
// TTL-aware L1 entries, graceful degraded-mode operation, and the
// monitor/callback contract spec.md §4.4 requires.
type Cache struct {
	l1      *L1Store
	remote  RemoteStore
	codec   *Codec
	monitor *monitor.Monitor
	logger  observability.Logger

	defaultTTL time.Duration
	namespace  string

	promotionMu sync.RWMutex
	promotion   PromotionPredicate

	mu        sync.RWMutex
	connected bool
	degraded  bool

	callbackMu sync.Mutex
	callbacks  map[CallbackEvent][]Callback
}

// NewCache composes a Cache from its parts. l1 may be nil to disable
// the in-process tier (spec.md's l1_enabled=false); remote may be nil
// for an L1-only deployment.
func NewCache(l1 *L1Store, remote RemoteStore, codec *Codec, mon *monitor.Monitor, defaultTTL time.Duration, logger observability.Logger) *Cache {
	if mon == nil {
		mon = monitor.NewDefault()
	}
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	if codec == nil {
		codec = NewCodec(1024, 6)
	}
	c := &Cache{
		l1:         l1,
		remote:     remote,
		codec:      codec,
		monitor:    mon,
		logger:     logger,
		defaultTTL: defaultTTL,
		callbacks:  make(map[CallbackEvent][]Callback),
	}
	codec.OnCompression = func(originalSize, compressedSize int, elapsed time.Duration) {
		mon.RecordCompression(originalSize, compressedSize, elapsed, "set")
	}
	return c
}

// RegisterCallback registers fn to run after operations matching
// event. Callbacks fire in registration order; a panicking or
// erroring callback is caught and logged, never propagated.
func (c *Cache) RegisterCallback(event CallbackEvent, fn Callback) {
	c.callbackMu.Lock()
	defer c.callbackMu.Unlock()
	c.callbacks[event] = append(c.callbacks[event], fn)
}

func (c *Cache) fire(event CallbackEvent, key string, extra map[string]interface{}) {
	c.callbackMu.Lock()
	fns := append([]Callback(nil), c.callbacks[event]...)
	c.callbackMu.Unlock()

	for _, fn := range fns {
		c.runCallbackSafely(fn, key, extra)
	}
}

func (c *Cache) runCallbackSafely(fn Callback, key string, extra map[string]interface{}) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("cache callback panicked", map[string]interface{}{"key": key, "panic": fmt.Sprint(r)})
		}
	}()
	fn(key, extra)
}

// Connect establishes remote connectivity. On failure the cache
// degrades to memory-only mode and still returns false, per spec.md
// §4.4.
func (c *Cache) Connect(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.remote == nil {
		c.connected = false
		c.degraded = true
		return false
	}

	if err := c.remote.Ping(ctx); err != nil {
		c.logger.Warn("remote connect failed, operating in degraded mode", map[string]interface{}{"error": err.Error()})
		c.connected = false
		c.degraded = true
		return false
	}

	c.connected = true
	c.degraded = false
	return true
}

// Disconnect releases the remote connection. L1 is unaffected and
// outlives the connect/disconnect cycle.
func (c *Cache) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.connected = false
	if c.remote == nil {
		return nil
	}
	return c.remote.Close()
}

// remoteAvailable reports whether the remote tier should be
// consulted, without holding mu across the call.
func (c *Cache) remoteAvailable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.remote != nil && c.connected
}

// Get retrieves key, checking L1 first and falling through to the
// remote tier on miss. Remote errors never propagate; they are
// recorded and treated as a miss.
func (c *Cache) Get(ctx context.Context, key string) (interface{}, bool) {
	start := time.Now()

	if c.l1 != nil {
		if value, ok := c.l1.Get(key); ok {
			c.monitor.RecordOperationTime("get", time.Since(start), true, estimateSize(value), map[string]interface{}{"cache_tier": "l1"})
			c.fire(EventGetSuccess, key, map[string]interface{}{"cache_tier": "l1"})
			return value, true
		}
	}

	if !c.remoteAvailable() {
		c.monitor.RecordOperationTime("get", time.Since(start), false, 0, map[string]interface{}{"reason": "connection_failed"})
		c.fire(EventGetMiss, key, map[string]interface{}{"reason": "connection_failed"})
		return nil, false
	}

	payload, found, err := c.remote.Get(ctx, key)
	if err != nil {
		c.logger.Warn("remote get failed", map[string]interface{}{"key": key, "error": err.Error()})
		c.monitor.RecordOperationTime("get", time.Since(start), false, 0, map[string]interface{}{"reason": "error", "error": err.Error()})
		c.fire(EventGetMiss, key, map[string]interface{}{"reason": "error"})
		return nil, false
	}
	if !found {
		c.monitor.RecordOperationTime("get", time.Since(start), false, 0, map[string]interface{}{"reason": "key_not_found"})
		c.fire(EventGetMiss, key, map[string]interface{}{"reason": "key_not_found"})
		return nil, false
	}

	value, err := c.codec.Decode(payload)
	if err != nil {
		c.logger.Warn("codec decode failed, treating as miss", map[string]interface{}{"key": key, "error": err.Error()})
		c.monitor.RecordOperationTime("get", time.Since(start), false, len(payload), map[string]interface{}{"reason": "decode_error"})
		c.fire(EventGetMiss, key, map[string]interface{}{"reason": "decode_error"})
		return nil, false
	}

	if c.l1 != nil && c.shouldPromote(key) {
		c.l1.Set(key, value, c.defaultTTL)
	}

	c.monitor.RecordOperationTime("get", time.Since(start), true, len(payload), map[string]interface{}{"cache_tier": "remote"})
	c.fire(EventGetSuccess, key, map[string]interface{}{"cache_tier": "remote"})
	return value, true
}

// Set writes key to L1 immediately, then attempts a remote write with
// the same TTL. A remote failure is recorded but never undoes the L1
// write. ttl <= 0 selects the cache's default TTL.
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	start := time.Now()
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	if c.l1 != nil {
		c.l1.Set(key, value, ttl)
	}

	if c.remoteAvailable() {
		payload, err := c.codec.Encode(value)
		if err != nil {
			return fmt.Errorf("tiercache: encode failed: %w", err)
		}
		if err := c.remote.SetEx(ctx, key, payload, ttl); err != nil {
			c.logger.Warn("remote set failed", map[string]interface{}{"key": key, "error": err.Error()})
			c.monitor.RecordOperationTime("set", time.Since(start), false, len(payload), map[string]interface{}{"reason": "error", "error": err.Error()})
			c.fire(EventSetSuccess, key, map[string]interface{}{"cache_tier": "l1_only"})
			return nil
		}
		c.monitor.RecordOperationTime("set", time.Since(start), true, len(payload), map[string]interface{}{"cache_tier": "both"})
	} else {
		c.monitor.RecordOperationTime("set", time.Since(start), true, estimateSize(value), map[string]interface{}{"cache_tier": "l1_only"})
	}

	c.fire(EventSetSuccess, key, map[string]interface{}{})
	return nil
}

// Delete removes key from both tiers, reporting whether either tier
// held it.
func (c *Cache) Delete(ctx context.Context, key string) bool {
	start := time.Now()
	existed := false

	if c.l1 != nil {
		existed = c.l1.Delete(key) || existed
	}

	if c.remoteAvailable() {
		count, err := c.remote.Delete(ctx, key)
		if err != nil {
			c.logger.Warn("remote delete failed", map[string]interface{}{"key": key, "error": err.Error()})
		} else if count > 0 {
			existed = true
		}
	}

	c.monitor.RecordOperationTime("delete", time.Since(start), existed, 0, nil)
	if existed {
		c.fire(EventDeleteSuccess, key, nil)
	}
	return existed
}

// Exists checks L1 first, falling through to the remote tier on miss.
func (c *Cache) Exists(ctx context.Context, key string) bool {
	if c.l1 != nil && c.l1.Exists(key) {
		return true
	}
	if !c.remoteAvailable() {
		return false
	}
	exists, err := c.remote.Exists(ctx, key)
	if err != nil {
		c.logger.Warn("remote exists failed", map[string]interface{}{"key": key, "error": err.Error()})
		return false
	}
	return exists
}

// InvalidatePattern removes every L1 key containing pattern as a
// substring, then, if the remote is reachable, every remote key
// matching the glob `<namespace>:*<pattern>*`. It returns the union
// count and always records an invalidation metric, even when only
// the L1 half succeeded.
func (c *Cache) InvalidatePattern(ctx context.Context, pattern, invalidationContext string) int {
	start := time.Now()
	count := 0

	if invalidationContext == "" {
		invalidationContext = uuid.NewString()
	}

	if c.l1 != nil {
		count += c.l1.DeleteContaining(pattern)
	}

	kind := "pattern"
	if c.remoteAvailable() {
		glob := namespacedGlob(c.globPrefix(), pattern)
		keys, err := c.remote.Keys(ctx, glob)
		if err != nil {
			c.logger.Warn("remote scan failed during invalidation", map[string]interface{}{"pattern": pattern, "error": err.Error()})
		} else if len(keys) > 0 {
			removed, err := c.remote.Delete(ctx, keys...)
			if err != nil {
				c.logger.Warn("remote delete failed during invalidation", map[string]interface{}{"pattern": pattern, "error": err.Error()})
			} else {
				count += removed
			}
		}
	} else {
		kind = "pattern_l1_only"
	}

	c.monitor.RecordInvalidation(pattern, count, time.Since(start), kind, invalidationContext, nil)
	return count
}

// globPrefix returns the namespace prefix used when building the
// remote glob for pattern invalidation. The generic cache imposes no
// namespace on caller keys (spec.md §6.3), so it is empty here;
// AICache overrides this via SetNamespace to scope to ai_cache:.
func (c *Cache) globPrefix() string {
	return c.namespace
}

// SetPromotionPredicate installs fn to decide whether a remote hit is
// copied into L1, per spec.md §4.6. A nil fn restores the default of
// promoting every remote hit.
func (c *Cache) SetPromotionPredicate(fn PromotionPredicate) {
	c.promotionMu.Lock()
	defer c.promotionMu.Unlock()
	c.promotion = fn
}

// shouldPromote reports whether a remote hit for key should be copied
// into L1, consulting the registered PromotionPredicate if any.
func (c *Cache) shouldPromote(key string) bool {
	c.promotionMu.RLock()
	fn := c.promotion
	c.promotionMu.RUnlock()
	if fn == nil {
		return true
	}
	return fn(key)
}

// SetNamespace scopes InvalidatePattern's remote glob to
// "<namespace>:*<pattern>*" instead of the bare "*<pattern>*". Used by
// AICache to confine invalidation to ai_cache: keys.
func (c *Cache) SetNamespace(namespace string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.namespace = namespace
}

// Monitor exposes the underlying performance monitor for callers (and
// AICache) that need to record additional metrics or query stats.
func (c *Cache) Monitor() *monitor.Monitor {
	return c.monitor
}

// L1 exposes the underlying L1 store, primarily so AICache can scope
// namespace-wide clears.
func (c *Cache) L1() *L1Store {
	return c.l1
}

// Remote exposes the underlying remote store for callers that need
// direct access beyond Get/Set.
func (c *Cache) Remote() RemoteStore {
	return c.remote
}

// Connected reports whether the cache currently believes the remote
// tier is reachable.
func (c *Cache) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// Degraded reports whether the cache is operating in L1-only mode
// because the remote tier could not be reached.
func (c *Cache) Degraded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.degraded
}

func estimateSize(value interface{}) int {
	switch v := value.(type) {
	case string:
		return len(v)
	case []byte:
		return len(v)
	default:
		return 0
	}
}

// KeysContaining lists every namespace-scoped remote key containing
// substr, used by AICache for cross-tier de-duplication when
// invalidating by operation.
func (c *Cache) KeysContaining(ctx context.Context, substr string) ([]string, error) {
	if !c.remoteAvailable() {
		return nil, nil
	}
	return c.remote.Keys(ctx, namespacedGlob(c.globPrefix(), substr))
}

// DedupeKeys merges any number of key lists, counting each distinct
// key once. Exported for AICache's cross-tier invalidation counting.
func DedupeKeys(lists ...[]string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, list := range lists {
		for _, key := range list {
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, key)
		}
	}
	return out
}

// namespacedGlob builds the `<namespace>:*<pattern>*` remote glob
// shape spec.md §6.3 specifies for AI cache invalidation. A pattern
// that already starts with `<namespace>:` becomes `<pattern>*`, so
// the namespace prefix is not required to appear twice.
func namespacedGlob(namespace, pattern string) string {
	prefix := namespace
	if prefix != "" && !strings.HasSuffix(prefix, ":") {
		prefix += ":"
	}
	if prefix != "" && strings.HasPrefix(pattern, prefix) {
		return pattern + "*"
	}
	return fmt.Sprintf("%s*%s*", prefix, pattern)
}
