// Package resilience guards the remote tier against a flapping or
// unreachable Redis instance. It wraps github.com/sony/gobreaker rather
// than hand-rolling circuit breaker state (the teacher's own
// pkg/resilience.CircuitBreaker did exactly that, tracking state in
// atomic.Value fields) — gobreaker is a published dependency already
// in the teacher's go.mod and covers the same state machine, so this
// is a case of finishing the wiring the teacher started.
package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"

	"github.com/cacheforge/tiercache/pkg/observability"
)

// CircuitBreakerState mirrors gobreaker's three states under names that
// match the rest of the cache's vocabulary.
type CircuitBreakerState int

const (
	StateClosed CircuitBreakerState = iota
	StateOpen
	StateHalfOpen
)

func (s CircuitBreakerState) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// ErrCircuitOpen is returned by Execute when the breaker is open and
// has not yet reached its reset timeout.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreakerConfig configures the breaker guarding a remote call.
type CircuitBreakerConfig struct {
	Name                string
	FailureThreshold    uint32        // consecutive failures before tripping
	FailureRatio        float64       // failure ratio threshold (0.0-1.0)
	ResetTimeout        time.Duration // time before attempting a half-open probe
	SuccessThreshold    uint32        // successes needed in half-open to close
	MinimumRequestCount uint32        // requests before evaluating failure ratio
}

// DefaultCircuitBreakerConfig matches the teacher's ResilientRedisClient
// defaults (5 consecutive failures, 60% failure ratio, 30s reset).
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:                name,
		FailureThreshold:    5,
		FailureRatio:        0.6,
		ResetTimeout:        30 * time.Second,
		SuccessThreshold:    2,
		MinimumRequestCount: 10,
	}
}

// CircuitBreaker executes calls to an unreliable remote dependency,
// tripping open after repeated failures and periodically probing for
// recovery.
type CircuitBreaker struct {
	breaker *gobreaker.CircuitBreaker
	logger  observability.Logger
	metrics observability.MetricsClient
}

// NewCircuitBreaker builds a CircuitBreaker from config, logging state
// transitions through logger and mirroring them as a gauge on metrics.
func NewCircuitBreaker(config CircuitBreakerConfig, logger observability.Logger, metrics observability.MetricsClient) *CircuitBreaker {
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	if metrics == nil {
		metrics = observability.NewNoopMetrics()
	}
	if config.FailureThreshold == 0 {
		config = DefaultCircuitBreakerConfig(config.Name)
	}

	cb := &CircuitBreaker{logger: logger, metrics: metrics}

	settings := gobreaker.Settings{
		Name:        config.Name,
		MaxRequests: config.SuccessThreshold,
		Interval:    0,
		Timeout:     config.ResetTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < config.MinimumRequestCount {
				return counts.ConsecutiveFailures >= config.FailureThreshold
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.ConsecutiveFailures >= config.FailureThreshold || ratio >= config.FailureRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			cb.logger.Warn("circuit breaker state change", map[string]interface{}{
				"name": name, "from": from.String(), "to": to.String(),
			})
			cb.metrics.RecordGauge("circuit_breaker_state", stateToFloat(to), map[string]string{"name": name})
		},
	}

	cb.breaker = gobreaker.NewCircuitBreaker(settings)
	return cb
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateOpen:
		return 1
	case gobreaker.StateHalfOpen:
		return 2
	default:
		return 0
	}
}

// Execute runs fn under circuit breaker protection. If the breaker is
// open, fn is not called and ErrCircuitOpen is returned.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func() (interface{}, error)) (interface{}, error) {
	result, err := cb.breaker.Execute(func() (interface{}, error) {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, ErrCircuitOpen
	}
	return result, err
}

// State reports the breaker's current state.
func (cb *CircuitBreaker) State() CircuitBreakerState {
	switch cb.breaker.State() {
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateClosed
	}
}
