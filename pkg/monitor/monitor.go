package monitor

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Monitor accumulates cache telemetry under a single mutex. Every
// recording method is O(1) amortized (append + bounded cleanup); every
// query method triggers cleanup once before computing its answer, per
// spec's cleanup-on-every-statistics-computation contract.
type Monitor struct {
	mu sync.Mutex

	thresholds Thresholds

	hits                 int
	misses               int
	totalOps             int
	totalInvalidations   int
	totalKeysInvalidated int

	keyGenTimes       []KeyGenMetric
	cacheOpTimes      []OperationMetric
	compressionRatios []CompressionMetric
	memoryUsage       []MemorySnapshot
	invalidationEvent []InvalidationMetric
}

// New creates a Monitor with the given thresholds.
func New(thresholds Thresholds) *Monitor {
	return &Monitor{thresholds: thresholds}
}

// NewDefault creates a Monitor using spec.md's default thresholds.
func NewDefault() *Monitor {
	return New(DefaultThresholds())
}

// RecordOperationTime appends a cache operation timing. If opTag is
// "get", it increments hits or misses. Every call increments total_ops.
func (m *Monitor) RecordOperationTime(opTag string, duration time.Duration, hit bool, payloadLength int, extra map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cacheOpTimes = append(m.cacheOpTimes, OperationMetric{
		OperationTag: opTag, Duration: duration, PayloadLength: payloadLength,
		Timestamp: time.Now(), Hit: hit, Extra: extra,
	})
	m.totalOps++
	if opTag == "get" {
		if hit {
			m.hits++
		} else {
			m.misses++
		}
	}
	m.cleanupLocked(&m.cacheOpTimes)
}

// RecordKeyGeneration appends a key-construction timing sample.
func (m *Monitor) RecordKeyGeneration(duration time.Duration, textLength int, operationTag string, extra map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.keyGenTimes = append(m.keyGenTimes, KeyGenMetric{
		Duration: duration, PayloadLength: textLength, Timestamp: time.Now(),
		OperationTag: operationTag, Extra: extra,
	})
	m.cleanupLocked(&m.keyGenTimes)
}

// RecordCompression appends a compression metric, computing the ratio
// as compressed_size / original_size (0 when original_size is 0).
func (m *Monitor) RecordCompression(originalSize, compressedSize int, elapsed time.Duration, opTag string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var ratio float64
	if originalSize > 0 {
		ratio = float64(compressedSize) / float64(originalSize)
	}

	m.compressionRatios = append(m.compressionRatios, CompressionMetric{
		OriginalSize: originalSize, CompressedSize: compressedSize, CompressionRatio: ratio,
		CompressionTime: elapsed, Timestamp: time.Now(), OperationTag: opTag,
	})
	m.cleanupLocked(&m.compressionRatios)
}

// RecordMemory appends a memory snapshot, computing utilization percent
// relative to the warning threshold and whether that threshold has
// been reached.
func (m *Monitor) RecordMemory(l1Bytes int64, l1Count int, remoteBytes int64, remoteCount int, processMemoryMB float64, extra map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()

	totalBytes := l1Bytes + remoteBytes
	entryCount := l1Count + remoteCount

	var utilization float64
	if m.thresholds.MemoryWarningBytes > 0 {
		utilization = float64(totalBytes) / float64(m.thresholds.MemoryWarningBytes) * 100
	}

	m.memoryUsage = append(m.memoryUsage, MemorySnapshot{
		TotalBytes: totalBytes, EntryCount: entryCount, L1Bytes: l1Bytes, L1EntryCount: l1Count,
		ProcessMemoryMB: processMemoryMB, Timestamp: time.Now(), UtilizationPct: utilization,
		WarningReached: totalBytes >= m.thresholds.MemoryWarningBytes, Extra: extra,
	})
	m.cleanupLocked(&m.memoryUsage)
}

// RecordInvalidation appends an invalidation event and increments the
// running invalidation counters.
func (m *Monitor) RecordInvalidation(pattern string, keysInvalidated int, duration time.Duration, kind string, context string, extra map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.invalidationEvent = append(m.invalidationEvent, InvalidationMetric{
		Pattern: pattern, KeysInvalidated: keysInvalidated, Duration: duration,
		Timestamp: time.Now(), InvalidationKind: kind, Context: context, Extra: extra,
	})
	m.totalInvalidations++
	m.totalKeysInvalidated += keysInvalidated
	m.cleanupLocked(&m.invalidationEvent)
}

// cleanup trims a sequence to entries within the retention window then
// truncates to the most recent max_measurements. Idempotent: calling it
// twice in a row on the same slice is a no-op the second time.
func cleanup[T any](items []T, timestampOf func(T) time.Time, retention time.Duration, maxLen int) []T {
	if len(items) == 0 {
		return items
	}
	cutoff := time.Now().Add(-retention)
	start := 0
	for start < len(items) && timestampOf(items[start]).Before(cutoff) {
		start++
	}
	items = items[start:]
	if maxLen > 0 && len(items) > maxLen {
		items = items[len(items)-maxLen:]
	}
	return items
}

func (m *Monitor) cleanupLocked(slice interface{}) {
	switch s := slice.(type) {
	case *[]KeyGenMetric:
		*s = cleanup(*s, func(x KeyGenMetric) time.Time { return x.Timestamp }, m.thresholds.RetentionWindow, m.thresholds.MaxMeasurements)
	case *[]OperationMetric:
		*s = cleanup(*s, func(x OperationMetric) time.Time { return x.Timestamp }, m.thresholds.RetentionWindow, m.thresholds.MaxMeasurements)
	case *[]CompressionMetric:
		*s = cleanup(*s, func(x CompressionMetric) time.Time { return x.Timestamp }, m.thresholds.RetentionWindow, m.thresholds.MaxMeasurements)
	case *[]MemorySnapshot:
		*s = cleanup(*s, func(x MemorySnapshot) time.Time { return x.Timestamp }, m.thresholds.RetentionWindow, m.thresholds.MaxMeasurements)
	case *[]InvalidationMetric:
		*s = cleanup(*s, func(x InvalidationMetric) time.Time { return x.Timestamp }, m.thresholds.RetentionWindow, m.thresholds.MaxMeasurements)
	}
}

// cleanupAllLocked runs cleanup across every sequence. Called before
// any aggregate statistic is computed.
func (m *Monitor) cleanupAllLocked() {
	m.cleanupLocked(&m.keyGenTimes)
	m.cleanupLocked(&m.cacheOpTimes)
	m.cleanupLocked(&m.compressionRatios)
	m.cleanupLocked(&m.memoryUsage)
	m.cleanupLocked(&m.invalidationEvent)
}

// durationStats bundles the mean/median/min/max/count/slow-count
// computation shared by every category section in PerformanceStats.
type durationStats struct {
	Mean     float64 `json:"mean"`
	Median   float64 `json:"median"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Count    int     `json:"count"`
	SlowOps  int     `json:"slow_operations"`
}

func computeDurationStats(durations []time.Duration, slowThreshold time.Duration) durationStats {
	if len(durations) == 0 {
		return durationStats{}
	}
	sorted := make([]float64, len(durations))
	for i, d := range durations {
		sorted[i] = d.Seconds()
	}
	sort.Float64s(sorted)

	var sum float64
	slow := 0
	for i, d := range durations {
		sum += sorted[i]
		if d > slowThreshold {
			slow++
		}
	}

	n := len(sorted)
	median := sorted[n/2]
	if n%2 == 0 {
		median = (sorted[n/2-1] + sorted[n/2]) / 2
	}

	return durationStats{
		Mean:    sum / float64(n),
		Median:  median,
		Min:     sorted[0],
		Max:     sorted[n-1],
		Count:   n,
		SlowOps: slow,
	}
}

// PerformanceStats returns the aggregate statistics required by
// spec.md §4.3: overall counters plus a section per category that has
// at least one recorded measurement.
func (m *Monitor) PerformanceStats() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleanupAllLocked()

	stats := map[string]interface{}{
		"timestamp":               time.Now(),
		"cache_hit_rate":          m.hitRateLocked(),
		"total_cache_operations":  m.totalOps,
		"cache_hits":              m.hits,
		"cache_misses":            m.misses,
	}

	if len(m.keyGenTimes) > 0 {
		durations := make([]time.Duration, len(m.keyGenTimes))
		for i, k := range m.keyGenTimes {
			durations[i] = k.Duration
		}
		stats["key_generation"] = computeDurationStats(durations, m.thresholds.SlowKeyGeneration)
	}

	if len(m.cacheOpTimes) > 0 {
		durations := make([]time.Duration, len(m.cacheOpTimes))
		byOp := map[string][]time.Duration{}
		for i, o := range m.cacheOpTimes {
			durations[i] = o.Duration
			byOp[o.OperationTag] = append(byOp[o.OperationTag], o.Duration)
		}
		byOperationType := map[string]durationStats{}
		for op, ds := range byOp {
			byOperationType[op] = computeDurationStats(ds, m.thresholds.SlowCacheOperation)
		}
		section := computeDurationStats(durations, m.thresholds.SlowCacheOperation)
		stats["cache_operations"] = map[string]interface{}{
			"mean":              section.Mean,
			"median":            section.Median,
			"min":               section.Min,
			"max":               section.Max,
			"count":             section.Count,
			"slow_operations":   section.SlowOps,
			"by_operation_type": byOperationType,
		}
	}

	if len(m.compressionRatios) > 0 {
		var sumRatio float64
		durations := make([]time.Duration, len(m.compressionRatios))
		for i, c := range m.compressionRatios {
			sumRatio += c.CompressionRatio
			durations[i] = c.CompressionTime
		}
		section := computeDurationStats(durations, m.thresholds.SlowCacheOperation)
		stats["compression"] = map[string]interface{}{
			"mean_ratio": sumRatio / float64(len(m.compressionRatios)),
			"count":      len(m.compressionRatios),
			"duration":   section,
		}
	}

	if len(m.memoryUsage) > 0 {
		last := m.memoryUsage[len(m.memoryUsage)-1]
		stats["memory_usage"] = map[string]interface{}{
			"total_bytes":         last.TotalBytes,
			"entry_count":         last.EntryCount,
			"utilization_percent": last.UtilizationPct,
			"warning_reached":     last.WarningReached,
			"count":               len(m.memoryUsage),
		}
	}

	if len(m.invalidationEvent) > 0 {
		durations := make([]time.Duration, len(m.invalidationEvent))
		for i, inv := range m.invalidationEvent {
			durations[i] = inv.Duration
		}
		stats["invalidation"] = map[string]interface{}{
			"total_invalidations":     m.totalInvalidations,
			"total_keys_invalidated": m.totalKeysInvalidated,
			"duration":                computeDurationStats(durations, m.thresholds.SlowCacheOperation),
		}
	}

	return stats
}

func (m *Monitor) hitRateLocked() float64 {
	total := m.hits + m.misses
	if total == 0 {
		return 0.0
	}
	return float64(m.hits) / float64(total) * 100
}

// MemoryUsageStats returns current usage, threshold status, and, when
// at least two samples span a nonzero time window, a growth-rate
// trend in MB/hour.
func (m *Monitor) MemoryUsageStats() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleanupAllLocked()

	result := map[string]interface{}{
		"thresholds": map[string]interface{}{
			"warning_bytes":  m.thresholds.MemoryWarningBytes,
			"critical_bytes": m.thresholds.MemoryCriticalBytes,
		},
	}

	if len(m.memoryUsage) == 0 {
		result["current"] = nil
		return result
	}

	last := m.memoryUsage[len(m.memoryUsage)-1]
	warningReached := last.TotalBytes >= m.thresholds.MemoryWarningBytes
	criticalReached := last.TotalBytes >= m.thresholds.MemoryCriticalBytes

	result["current"] = map[string]interface{}{
		"total_bytes":     last.TotalBytes,
		"total_mb":        float64(last.TotalBytes) / (1024 * 1024),
		"entry_count":     last.EntryCount,
		"warning_reached":  warningReached,
		"critical_reached": criticalReached,
	}

	if len(m.memoryUsage) >= 2 {
		first := m.memoryUsage[0]
		elapsed := last.Timestamp.Sub(first.Timestamp)
		if elapsed > 0 {
			deltaMB := float64(last.TotalBytes-first.TotalBytes) / (1024 * 1024)
			hours := elapsed.Hours()
			result["trends"] = map[string]interface{}{
				"growth_rate_mb_per_hour": deltaMB / hours,
				"sample_count":            len(m.memoryUsage),
			}
		}
	}

	return result
}

// MemoryWarnings emits at most one critical and one warning alert,
// ordered critical before warning.
func (m *Monitor) MemoryWarnings() []Warning {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleanupAllLocked()

	if len(m.memoryUsage) == 0 {
		return nil
	}
	last := m.memoryUsage[len(m.memoryUsage)-1]

	var warnings []Warning
	if last.TotalBytes >= m.thresholds.MemoryCriticalBytes {
		warnings = append(warnings, Warning{
			Severity: "critical",
			Message:  "Cache memory usage has reached the critical threshold",
			Recommendations: []string{
				"Reduce l1_max_size or compression_threshold",
				"Investigate unexpectedly large cached values",
			},
		})
	} else if last.TotalBytes >= m.thresholds.MemoryWarningBytes {
		warnings = append(warnings, Warning{
			Severity: "warning",
			Message:  "Cache memory usage is approaching the critical threshold",
			Recommendations: []string{
				"Monitor growth trend",
				"Consider lowering default TTLs",
			},
		})
	}
	return warnings
}

// InvalidationFrequencyStats returns totals, windowed rates, per
// pattern/kind counts, efficiency figures, and the current alert
// level.
func (m *Monitor) InvalidationFrequencyStats() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleanupAllLocked()

	now := time.Now()
	lastHour, last24h := 0, 0
	patternCounts := map[string]int{}
	kindCounts := map[string]int{}
	var totalKeys int
	var totalDuration time.Duration
	var maxDuration time.Duration

	for _, ev := range m.invalidationEvent {
		age := now.Sub(ev.Timestamp)
		if age <= time.Hour {
			lastHour++
		}
		if age <= 24*time.Hour {
			last24h++
		}
		patternCounts[ev.Pattern]++
		kindCounts[ev.InvalidationKind]++
		totalKeys += ev.KeysInvalidated
		totalDuration += ev.Duration
		if ev.Duration > maxDuration {
			maxDuration = ev.Duration
		}
	}

	n := len(m.invalidationEvent)
	var avgKeys, avgDuration, avgPerHour float64
	if n > 0 {
		avgKeys = float64(totalKeys) / float64(n)
		avgDuration = totalDuration.Seconds() / float64(n)

		oldest := m.invalidationEvent[0].Timestamp
		hoursSpan := now.Sub(oldest).Hours()
		if hoursSpan > 0 {
			avgPerHour = float64(n) / hoursSpan
		}
	}

	alertLevel := "normal"
	if lastHour >= m.thresholds.InvalidationCriticalRate {
		alertLevel = "critical"
	} else if lastHour >= m.thresholds.InvalidationWarningRate {
		alertLevel = "warning"
	}

	return map[string]interface{}{
		"total_invalidations":      m.totalInvalidations,
		"total_keys_invalidated":   m.totalKeysInvalidated,
		"rate_last_hour":           lastHour,
		"rate_last_24h":            last24h,
		"average_per_hour":         avgPerHour,
		"pattern_counts":           patternCounts,
		"kind_counts":              kindCounts,
		"efficiency": map[string]interface{}{
			"avg_keys_per_invalidation": avgKeys,
			"avg_duration":              avgDuration,
			"max_duration":              maxDuration.Seconds(),
		},
		"thresholds": map[string]interface{}{
			"warning_per_hour":    m.thresholds.InvalidationWarningRate,
			"critical_per_hour":   m.thresholds.InvalidationCriticalRate,
			"current_alert_level": alertLevel,
		},
	}
}

// InvalidationRecommendations surfaces actionable suggestions, sorted
// critical < warning < info.
func (m *Monitor) InvalidationRecommendations() []Recommendation {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleanupAllLocked()

	var recs []Recommendation
	if len(m.invalidationEvent) == 0 {
		return recs
	}

	now := time.Now()
	lastHour := 0
	patternCounts := map[string]int{}
	var totalKeys int

	for _, ev := range m.invalidationEvent {
		if now.Sub(ev.Timestamp) <= time.Hour {
			lastHour++
		}
		patternCounts[ev.Pattern]++
		totalKeys += ev.KeysInvalidated
	}

	if lastHour >= m.thresholds.InvalidationCriticalRate {
		recs = append(recs, Recommendation{
			Severity: "critical", Issue: "invalidation_rate",
			Message:     "Invalidation rate has exceeded the critical threshold",
			Suggestions: []string{"Batch invalidations", "Widen TTLs to reduce churn"},
		})
	} else if lastHour >= m.thresholds.InvalidationWarningRate {
		recs = append(recs, Recommendation{
			Severity: "warning", Issue: "invalidation_rate",
			Message:     "Invalidation rate is elevated",
			Suggestions: []string{"Review which patterns trigger invalidation most often"},
		})
	}

	n := len(m.invalidationEvent)
	for pattern, count := range patternCounts {
		if float64(count)/float64(n) > 0.5 {
			recs = append(recs, Recommendation{
				Severity: "info", Issue: "dominant_pattern",
				Message:     "A single invalidation pattern accounts for most recent events: " + pattern,
				Suggestions: []string{"Consider a more targeted invalidation key for this pattern"},
			})
			break
		}
	}

	avgKeys := float64(totalKeys) / float64(n)
	if avgKeys < 1.0 {
		recs = append(recs, Recommendation{
			Severity: "info", Issue: "low_yield_invalidation",
			Message:     "Invalidations are removing fewer than one key on average",
			Suggestions: []string{"Verify pattern specificity matches intent"},
		})
	} else if avgKeys > 100 {
		recs = append(recs, Recommendation{
			Severity: "warning", Issue: "broad_invalidation",
			Message:     "Invalidations are removing very large numbers of keys on average",
			Suggestions: []string{"Narrow invalidation patterns to avoid over-invalidating"},
		})
	}

	sort.SliceStable(recs, func(i, j int) bool {
		return severityRank[recs[i].Severity] < severityRank[recs[j].Severity]
	})
	return recs
}

// SlowOperation is one sample flagged by RecentSlowOperations.
type SlowOperation struct {
	OperationTag string        `json:"operation_tag"`
	Duration     time.Duration `json:"duration"`
	Timestamp    time.Time     `json:"timestamp"`
	TimesSlower  float64       `json:"times_slower"`
}

// RecentSlowOperations compares every sample in key_generation,
// cache_operations, and compression against that category's mean
// duration, returning any sample slower than mean*multiplier. A
// category with fewer than two measurements has no statistical basis
// for comparison and is omitted.
func (m *Monitor) RecentSlowOperations(multiplier float64) map[string][]SlowOperation {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleanupAllLocked()

	if multiplier <= 0 {
		multiplier = 2.0
	}

	result := map[string][]SlowOperation{}

	if len(m.keyGenTimes) >= 2 {
		var sum time.Duration
		for _, k := range m.keyGenTimes {
			sum += k.Duration
		}
		mean := sum / time.Duration(len(m.keyGenTimes))
		var slow []SlowOperation
		for _, k := range m.keyGenTimes {
			if float64(k.Duration) > float64(mean)*multiplier {
				slow = append(slow, SlowOperation{
					OperationTag: k.OperationTag, Duration: k.Duration, Timestamp: k.Timestamp,
					TimesSlower: float64(k.Duration) / float64(mean),
				})
			}
		}
		result["key_generation"] = slow
	}

	if len(m.cacheOpTimes) >= 2 {
		var sum time.Duration
		for _, o := range m.cacheOpTimes {
			sum += o.Duration
		}
		mean := sum / time.Duration(len(m.cacheOpTimes))
		var slow []SlowOperation
		for _, o := range m.cacheOpTimes {
			if float64(o.Duration) > float64(mean)*multiplier {
				slow = append(slow, SlowOperation{
					OperationTag: o.OperationTag, Duration: o.Duration, Timestamp: o.Timestamp,
					TimesSlower: float64(o.Duration) / float64(mean),
				})
			}
		}
		result["cache_operations"] = slow
	}

	if len(m.compressionRatios) >= 2 {
		var sum time.Duration
		for _, c := range m.compressionRatios {
			sum += c.CompressionTime
		}
		mean := sum / time.Duration(len(m.compressionRatios))
		var slow []SlowOperation
		for _, c := range m.compressionRatios {
			if float64(c.CompressionTime) > float64(mean)*multiplier {
				slow = append(slow, SlowOperation{
					OperationTag: c.OperationTag, Duration: c.CompressionTime, Timestamp: c.Timestamp,
					TimesSlower: float64(c.CompressionTime) / float64(mean),
				})
			}
		}
		result["compression"] = slow
	}

	return result
}

// Export returns a flat, JSON-serializable dump of every retained
// metric plus counters, per spec.md §6.5.
func (m *Monitor) Export() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleanupAllLocked()

	return map[string]interface{}{
		"key_generation_times":       append([]KeyGenMetric{}, m.keyGenTimes...),
		"cache_operation_times":      append([]OperationMetric{}, m.cacheOpTimes...),
		"compression_ratios":         append([]CompressionMetric{}, m.compressionRatios...),
		"memory_usage_measurements":  append([]MemorySnapshot{}, m.memoryUsage...),
		"invalidation_events":        append([]InvalidationMetric{}, m.invalidationEvent...),
		"cache_hits":                 m.hits,
		"cache_misses":               m.misses,
		"total_operations":           m.totalOps,
		"total_invalidations":        m.totalInvalidations,
		"total_keys_invalidated":     m.totalKeysInvalidated,
		"export_timestamp":           time.Now().Format(time.RFC3339),
	}
}

// Reset zeroes counters and clears every sequence, preserving
// thresholds.
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.hits, m.misses, m.totalOps = 0, 0, 0
	m.totalInvalidations, m.totalKeysInvalidated = 0, 0
	m.keyGenTimes = nil
	m.cacheOpTimes = nil
	m.compressionRatios = nil
	m.memoryUsage = nil
	m.invalidationEvent = nil
}

// ExportPrometheus renders the same aggregate state Export returns as
// Prometheus text-exposition-format lines, grounded on the teacher's
// stats.go exportPrometheusMetrics. This is a presentation-layer
// convenience over Export's data, not an additional subsystem; a
// deployment that only needs a scrape target doesn't need to stand up
// pkg/observability's registered collectors for it.
func (m *Monitor) ExportPrometheus() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleanupAllLocked()

	var b strings.Builder
	writeCounter := func(name, help string, value int) {
		fmt.Fprintf(&b, "# HELP %s %s\n# TYPE %s counter\n%s %d\n", name, help, name, name, value)
	}

	writeCounter("tiercache_cache_hits_total", "Total number of cache hits.", m.hits)
	writeCounter("tiercache_cache_misses_total", "Total number of cache misses.", m.misses)
	writeCounter("tiercache_cache_operations_total", "Total number of cache operations.", m.totalOps)
	writeCounter("tiercache_invalidations_total", "Total number of invalidation operations.", m.totalInvalidations)
	writeCounter("tiercache_keys_invalidated_total", "Total number of keys invalidated.", m.totalKeysInvalidated)

	fmt.Fprintf(&b, "# HELP tiercache_cache_hit_rate Current cache hit rate as a percentage.\n# TYPE tiercache_cache_hit_rate gauge\ntiercache_cache_hit_rate %f\n", m.hitRateLocked())

	if len(m.compressionRatios) > 0 {
		var sumRatio float64
		for _, c := range m.compressionRatios {
			sumRatio += c.CompressionRatio
		}
		fmt.Fprintf(&b, "# HELP tiercache_compression_ratio_mean Mean compressed/original size ratio.\n# TYPE tiercache_compression_ratio_mean gauge\ntiercache_compression_ratio_mean %f\n", sumRatio/float64(len(m.compressionRatios)))
	}

	if len(m.memoryUsage) > 0 {
		last := m.memoryUsage[len(m.memoryUsage)-1]
		fmt.Fprintf(&b, "# HELP tiercache_memory_total_bytes Total bytes across L1 and remote tiers at the last snapshot.\n# TYPE tiercache_memory_total_bytes gauge\ntiercache_memory_total_bytes %d\n", last.TotalBytes)
	}

	return []byte(b.String())
}

// StaleSince reports how many of the retained samples (across every
// category) are older than d. Supplements the distilled spec with the
// original Python source's stale-entry accounting
// (GetStaleEntries in the teacher's stats.go).
func (m *Monitor) StaleSince(d time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleanupAllLocked()

	cutoff := time.Now().Add(-d)
	count := 0
	for _, k := range m.keyGenTimes {
		if k.Timestamp.Before(cutoff) {
			count++
		}
	}
	for _, o := range m.cacheOpTimes {
		if o.Timestamp.Before(cutoff) {
			count++
		}
	}
	for _, c := range m.compressionRatios {
		if c.Timestamp.Before(cutoff) {
			count++
		}
	}
	for _, s := range m.memoryUsage {
		if s.Timestamp.Before(cutoff) {
			count++
		}
	}
	for _, ev := range m.invalidationEvent {
		if ev.Timestamp.Before(cutoff) {
			count++
		}
	}
	return count
}
