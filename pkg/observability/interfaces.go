// Package observability provides the structured logging and metrics
// interfaces shared by every cache component. It deliberately stops at
// logging and metrics: tracing, HTTP instrumentation, and config-file
// loading belong to the service that embeds this module, not the core.
package observability

import "time"

// LogLevel defines log message severity.
type LogLevel string

// Log levels, ordered from most to least verbose.
const (
	LogLevelDebug LogLevel = "DEBUG"
	LogLevelInfo  LogLevel = "INFO"
	LogLevelWarn  LogLevel = "WARN"
	LogLevelError LogLevel = "ERROR"
	LogLevelFatal LogLevel = "FATAL"
)

// Logger defines the structured logging interface used throughout the
// cache. Every method takes a message and a flat field map rather than
// a format string so that fields remain greppable in log aggregators.
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})

	// WithPrefix returns a logger that prefixes every message, used to
	// scope a logger to a specific component (e.g. "tiercache.redis").
	WithPrefix(prefix string) Logger
}

// MetricsClient defines the metrics surface the cache records against.
// The cache's own Monitor (pkg/monitor) is the source of truth for
// in-process statistics; MetricsClient exists so the same events can
// also reach an external system such as Prometheus.
type MetricsClient interface {
	RecordCacheOperation(operation string, success bool, durationSeconds float64)
	RecordCompression(ratio float64, durationSeconds float64, operation string)
	RecordEviction(reason string)
	IncrementCounter(name string, labels map[string]string)
	RecordGauge(name string, value float64, labels map[string]string)
	RecordHistogram(name string, value float64, labels map[string]string)
	StartTimer(name string, labels map[string]string) func()
	RecordDuration(name string, duration time.Duration, labels map[string]string)
}
