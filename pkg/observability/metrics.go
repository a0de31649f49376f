package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics implements MetricsClient against a dedicated
// prometheus.Registerer, grounded on the teacher's package-level
// promauto metrics in pkg/embedding/cache/metrics.go. Unlike the
// teacher's global vars, the vectors here are instance fields so that
// multiple cache instances in the same process (e.g. in tests) don't
// collide on metric registration.
type PrometheusMetrics struct {
	hits        *prometheus.CounterVec
	misses      *prometheus.CounterVec
	opLatency   *prometheus.HistogramVec
	compression *prometheus.HistogramVec
	compressDur *prometheus.HistogramVec
	evictions   *prometheus.CounterVec
	counters    *prometheus.CounterVec
	gauges      *prometheus.GaugeVec
	histograms  *prometheus.HistogramVec
}

// NewPrometheusMetrics registers a cache's metric family under the
// given namespace/subsystem and returns a ready MetricsClient.
func NewPrometheusMetrics(registry prometheus.Registerer, namespace, subsystem string) *PrometheusMetrics {
	factory := promauto.With(registry)

	m := &PrometheusMetrics{
		hits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem, Name: "hits_total",
			Help: "Total number of cache hits.",
		}, []string{"tier"}),
		misses: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem, Name: "misses_total",
			Help: "Total number of cache misses.",
		}, []string{"reason"}),
		opLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: subsystem, Name: "operation_duration_seconds",
			Help:    "Cache operation latency.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
		}, []string{"operation", "status"}),
		compression: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: subsystem, Name: "compression_ratio",
			Help:    "Compressed size over original size.",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}, []string{"operation"}),
		compressDur: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: subsystem, Name: "compression_duration_seconds",
			Help:    "Time spent compressing or decompressing a payload.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 10),
		}, []string{"operation"}),
		evictions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem, Name: "evictions_total",
			Help: "Total number of L1 evictions.",
		}, []string{"reason"}),
		counters: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem, Name: "events_total",
			Help: "Generic named counter events.",
		}, []string{"name"}),
		gauges: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: subsystem, Name: "gauge",
			Help: "Generic named gauge values.",
		}, []string{"name"}),
		histograms: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: subsystem, Name: "histogram",
			Help:    "Generic named histogram values.",
			Buckets: prometheus.DefBuckets,
		}, []string{"name"}),
	}
	return m
}

func (m *PrometheusMetrics) RecordCacheOperation(operation string, success bool, durationSeconds float64) {
	status := "success"
	if !success {
		status = "error"
	}
	m.opLatency.WithLabelValues(operation, status).Observe(durationSeconds)
	if operation == "get" {
		if success {
			m.hits.WithLabelValues("l1_or_remote").Inc()
		} else {
			m.misses.WithLabelValues("miss").Inc()
		}
	}
}

func (m *PrometheusMetrics) RecordCompression(ratio float64, durationSeconds float64, operation string) {
	m.compression.WithLabelValues(operation).Observe(ratio)
	m.compressDur.WithLabelValues(operation).Observe(durationSeconds)
}

func (m *PrometheusMetrics) RecordEviction(reason string) {
	m.evictions.WithLabelValues(reason).Inc()
}

func (m *PrometheusMetrics) IncrementCounter(name string, labels map[string]string) {
	m.counters.WithLabelValues(name).Inc()
}

func (m *PrometheusMetrics) RecordGauge(name string, value float64, labels map[string]string) {
	m.gauges.WithLabelValues(name).Set(value)
}

func (m *PrometheusMetrics) RecordHistogram(name string, value float64, labels map[string]string) {
	m.histograms.WithLabelValues(name).Observe(value)
}

func (m *PrometheusMetrics) StartTimer(name string, labels map[string]string) func() {
	start := time.Now()
	return func() {
		m.RecordHistogram(name, time.Since(start).Seconds(), labels)
	}
}

func (m *PrometheusMetrics) RecordDuration(name string, duration time.Duration, labels map[string]string) {
	m.RecordHistogram(name, duration.Seconds(), labels)
}

// NoopMetrics discards every recording. Used when metrics are disabled
// in configuration.
type NoopMetrics struct{}

func NewNoopMetrics() MetricsClient { return &NoopMetrics{} }

func (n *NoopMetrics) RecordCacheOperation(string, bool, float64)          {}
func (n *NoopMetrics) RecordCompression(float64, float64, string)         {}
func (n *NoopMetrics) RecordEviction(string)                              {}
func (n *NoopMetrics) IncrementCounter(string, map[string]string)         {}
func (n *NoopMetrics) RecordGauge(string, float64, map[string]string)     {}
func (n *NoopMetrics) RecordHistogram(string, float64, map[string]string) {}
func (n *NoopMetrics) StartTimer(string, map[string]string) func()        { return func() {} }
func (n *NoopMetrics) RecordDuration(string, time.Duration, map[string]string) {}
