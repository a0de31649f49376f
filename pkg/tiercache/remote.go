package tiercache

import (
	"context"
	"strings"
	"time"
	"unicode"

	"github.com/redis/go-redis/v9"

	"github.com/cacheforge/tiercache/pkg/observability"
	"github.com/cacheforge/tiercache/pkg/resilience"
	"github.com/cacheforge/tiercache/pkg/retry"
)

// SanitizeRedisKey replaces characters unsafe or ambiguous in a Redis
// key — glob metacharacters, whitespace, and control characters — with
// an underscore, grounded on the teacher's validator.go
// sanitizeRedisKey. AI cache keys from pkg/aicache.KeyGenerator are
// already well-formed and never need this; it exists for callers of
// the generic tier (spec.md §6.3 imposes no namespace or character
// constraint on caller-provided keys, so a caller can hand the cache
// anything).
func SanitizeRedisKey(key string) string {
	var b strings.Builder
	b.Grow(len(key))
	for _, r := range key {
		switch {
		case r == '*' || r == '?' || r == '[' || r == ']':
			b.WriteByte('_')
		case unicode.IsSpace(r) || unicode.IsControl(r):
			b.WriteByte('_')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// RemoteStore is the external collaborator contract from spec.md
// §6.1: a Redis-compatible key-value store. The generic cache depends
// only on this interface, never on *redis.Client directly, so tests
// can substitute a fake.
type RemoteStore interface {
	Ping(ctx context.Context) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	SetEx(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) (int, error)
	Exists(ctx context.Context, key string) (bool, error)
	Keys(ctx context.Context, globPattern string) ([]string, error)
	Info(ctx context.Context) (map[string]interface{}, error)
	Close() error
}

// RedisStore implements RemoteStore atop go-redis/v9, guarding every
// call with a circuit breaker and retry policy the way the teacher's
// ResilientRedisClient (pkg/aicache/redis_client.go) guards its own
// Redis calls.
type RedisStore struct {
	client  *redis.Client
	breaker *resilience.CircuitBreaker
	retrier retry.Policy
}

// RedisStoreConfig configures the underlying go-redis client.
// Field names mirror the teacher's pkg/cache.RedisConfig.
type RedisStoreConfig struct {
	Address      string
	Username     string
	Password     string
	Database     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
	MinIdleConns int
}

// NewRedisStore dials Redis and wraps the resulting client with
// resilience. Dialing is lazy: go-redis only opens a connection on
// first use, so construction cannot fail on network address alone.
func NewRedisStore(cfg RedisStoreConfig, logger observability.Logger, metrics observability.MetricsClient) *RedisStore {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 5 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 10
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.Database,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	})

	cbConfig := resilience.DefaultCircuitBreakerConfig("tiercache_remote")
	retryConfig := retry.Config{
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		MaxRetries:      3,
		Multiplier:      2.0,
		MaxElapsedTime:  30 * time.Second,
	}

	return &RedisStore{
		client:  client,
		breaker: resilience.NewCircuitBreaker(cbConfig, logger, metrics),
		retrier: retry.NewExponentialBackoff(retryConfig),
	}
}

// NewRedisStoreFromClient wraps a caller-provided *redis.Client
// (useful for pointing at a miniredis instance in tests) with the
// same resilience wrapping NewRedisStore applies.
func NewRedisStoreFromClient(client *redis.Client, logger observability.Logger, metrics observability.MetricsClient) *RedisStore {
	cbConfig := resilience.DefaultCircuitBreakerConfig("tiercache_remote")
	retryConfig := retry.Config{
		InitialInterval: 50 * time.Millisecond,
		MaxInterval:     time.Second,
		MaxRetries:      2,
		Multiplier:      2.0,
		MaxElapsedTime:  5 * time.Second,
	}
	return &RedisStore{
		client:  client,
		breaker: resilience.NewCircuitBreaker(cbConfig, logger, metrics),
		retrier: retry.NewExponentialBackoff(retryConfig),
	}
}

func (r *RedisStore) execute(ctx context.Context, fn func() (interface{}, error)) (interface{}, error) {
	return r.breaker.Execute(ctx, func() (interface{}, error) {
		var result interface{}
		err := r.retrier.Execute(ctx, func(ctx context.Context) error {
			var opErr error
			result, opErr = fn()
			return opErr
		})
		return result, err
	})
}

// Ping checks connectivity.
func (r *RedisStore) Ping(ctx context.Context) error {
	_, err := r.execute(ctx, func() (interface{}, error) {
		return nil, r.client.Ping(ctx).Err()
	})
	return err
}

// Get returns the raw payload for key. Absence (redis.Nil) is
// reported as (nil, false, nil), never as an error.
func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	key = SanitizeRedisKey(key)
	result, err := r.execute(ctx, func() (interface{}, error) {
		data, err := r.client.Get(ctx, key).Bytes()
		if err == redis.Nil {
			return nil, nil
		}
		return data, err
	})
	if err != nil {
		return nil, false, err
	}
	if result == nil {
		return nil, false, nil
	}
	return result.([]byte), true, nil
}

// SetEx stores value under key with the given TTL.
func (r *RedisStore) SetEx(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	key = SanitizeRedisKey(key)
	_, err := r.execute(ctx, func() (interface{}, error) {
		return nil, r.client.Set(ctx, key, value, ttl).Err()
	})
	return err
}

// Delete removes the given keys, returning how many existed.
func (r *RedisStore) Delete(ctx context.Context, keys ...string) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	sanitized := make([]string, len(keys))
	for i, k := range keys {
		sanitized[i] = SanitizeRedisKey(k)
	}
	result, err := r.execute(ctx, func() (interface{}, error) {
		return r.client.Del(ctx, sanitized...).Result()
	})
	if err != nil {
		return 0, err
	}
	return int(result.(int64)), nil
}

// Exists reports whether key is present.
func (r *RedisStore) Exists(ctx context.Context, key string) (bool, error) {
	key = SanitizeRedisKey(key)
	result, err := r.execute(ctx, func() (interface{}, error) {
		return r.client.Exists(ctx, key).Result()
	})
	if err != nil {
		return false, err
	}
	return result.(int64) > 0, nil
}

// Keys returns every key matching globPattern. Uses SCAN rather than
// KEYS to avoid blocking the remote store on large keyspaces.
func (r *RedisStore) Keys(ctx context.Context, globPattern string) ([]string, error) {
	result, err := r.execute(ctx, func() (interface{}, error) {
		var keys []string
		var cursor uint64
		for {
			batch, next, err := r.client.Scan(ctx, cursor, globPattern, 250).Result()
			if err != nil {
				return nil, err
			}
			keys = append(keys, batch...)
			cursor = next
			if cursor == 0 {
				break
			}
		}
		return keys, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]string), nil
}

// Info returns the subset of INFO fields spec.md §6.1 requires.
func (r *RedisStore) Info(ctx context.Context) (map[string]interface{}, error) {
	result, err := r.execute(ctx, func() (interface{}, error) {
		raw, err := r.client.Info(ctx, "memory", "clients").Result()
		if err != nil {
			return nil, err
		}
		return parseRedisInfo(raw), nil
	})
	if err != nil {
		return nil, err
	}
	return result.(map[string]interface{}), nil
}

// Close releases the underlying connection pool.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
