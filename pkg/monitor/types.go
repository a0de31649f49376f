// Package monitor implements the cache's performance telemetry: every
// recording method is O(1) amortized and never blocks on an external
// system, matching the teacher's pkg/embedding/cache stats/metrics
// split but consolidated into a single bounded, in-process recorder
// (the teacher scattered this across Prometheus vectors, atomic
// counters, and Redis SCAN-based analytics; the cache core needs a
// self-contained answer that works without a Prometheus server).
package monitor

import "time"

// OperationMetric records a single timed cache operation (a "get", a
// "set" or a "delete"), mirroring the source's PerformanceMetric
// dataclass.
type OperationMetric struct {
	OperationTag  string                 `json:"operation_tag"`
	Duration      time.Duration          `json:"duration"`
	PayloadLength int                    `json:"payload_length"`
	Timestamp     time.Time              `json:"timestamp"`
	Hit           bool                   `json:"hit"`
	Extra         map[string]interface{} `json:"extra,omitempty"`
}

// KeyGenMetric records how long key construction took for a given text
// length, kept separate from OperationMetric because its slow
// threshold (100ms) differs from a cache operation's (50ms).
type KeyGenMetric struct {
	Duration      time.Duration          `json:"duration"`
	PayloadLength int                    `json:"payload_length"`
	Timestamp     time.Time              `json:"timestamp"`
	OperationTag  string                 `json:"operation_tag"`
	Extra         map[string]interface{} `json:"extra,omitempty"`
}

// CompressionMetric records one compression event and its achieved
// ratio, matching spec.md's compression_ratio = compressed/original.
type CompressionMetric struct {
	OriginalSize      int           `json:"original_size"`
	CompressedSize    int           `json:"compressed_size"`
	CompressionRatio  float64       `json:"compression_ratio"`
	CompressionTime   time.Duration `json:"compression_duration"`
	Timestamp         time.Time     `json:"timestamp"`
	OperationTag      string        `json:"operation_tag"`
}

// MemorySnapshot records the L1/remote memory footprint at a point in
// time.
type MemorySnapshot struct {
	TotalBytes        int64                  `json:"total_bytes"`
	EntryCount        int                    `json:"entry_count"`
	L1Bytes           int64                  `json:"l1_bytes"`
	L1EntryCount      int                    `json:"l1_entry_count"`
	ProcessMemoryMB   float64                `json:"process_memory_mb"`
	Timestamp         time.Time              `json:"timestamp"`
	UtilizationPct    float64                `json:"utilization_percent"`
	WarningReached    bool                   `json:"warning_reached"`
	Extra             map[string]interface{} `json:"extra,omitempty"`
}

// InvalidationMetric records one invalidation event (by pattern,
// operation, or full clear).
type InvalidationMetric struct {
	Pattern          string                 `json:"pattern"`
	KeysInvalidated  int                    `json:"keys_invalidated"`
	Duration         time.Duration          `json:"duration"`
	Timestamp        time.Time              `json:"timestamp"`
	InvalidationKind string                 `json:"invalidation_kind"`
	Context          string                 `json:"context,omitempty"`
	Extra            map[string]interface{} `json:"extra,omitempty"`
}

// Thresholds bundles every tunable alerting threshold. Exposed as a
// struct (rather than package constants) per spec.md §9's note that
// the source's heuristic constants should be tunables.
type Thresholds struct {
	MemoryWarningBytes       int64
	MemoryCriticalBytes      int64
	SlowKeyGeneration        time.Duration
	SlowCacheOperation       time.Duration
	InvalidationWarningRate  int // per hour
	InvalidationCriticalRate int // per hour
	RetentionWindow          time.Duration
	MaxMeasurements          int
}

// DefaultThresholds matches spec.md §4.3's default table.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MemoryWarningBytes:       50 * 1024 * 1024,
		MemoryCriticalBytes:      100 * 1024 * 1024,
		SlowKeyGeneration:        100 * time.Millisecond,
		SlowCacheOperation:       50 * time.Millisecond,
		InvalidationWarningRate:  50,
		InvalidationCriticalRate: 100,
		RetentionWindow:          time.Hour,
		MaxMeasurements:          1000,
	}
}

// Recommendation is one actionable suggestion surfaced by the monitor.
type Recommendation struct {
	Severity    string   `json:"severity"` // critical | warning | info
	Issue       string   `json:"issue"`
	Message     string   `json:"message"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// Warning is a memory-pressure alert.
type Warning struct {
	Severity        string   `json:"severity"`
	Message         string   `json:"message"`
	Recommendations []string `json:"recommendations"`
}

var severityRank = map[string]int{"critical": 0, "warning": 1, "info": 2}
