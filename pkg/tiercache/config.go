package tiercache

import (
	"fmt"
	"strings"
	"time"
)

// Config is the validated configuration shape from spec.md §6.4.
type Config struct {
	RemoteURL            string
	DefaultTTL           time.Duration
	L1Enabled            bool
	L1MaxSize            int
	CompressionThreshold int
	CompressionLevel     int
	TextHashThreshold    int
	TextSizeTiers        TextSizeTiers
	OperationTTLs        map[string]time.Duration
	RetentionWindow      time.Duration
	MaxMeasurements      int
	MemoryWarningBytes   int64
	MemoryCriticalBytes  int64
}

// TextSizeTiers holds the three ascending thresholds the tier
// classifier (C5) maps text length onto.
type TextSizeTiers struct {
	Small  int
	Medium int
	Large  int
}

// DefaultConfig matches spec.md's stated defaults across every
// component, for callers that only need to override a field or two.
func DefaultConfig() Config {
	return Config{
		RemoteURL:            "redis://localhost:6379",
		DefaultTTL:           time.Hour,
		L1Enabled:            true,
		L1MaxSize:            1000,
		CompressionThreshold: 1024,
		CompressionLevel:     6,
		TextHashThreshold:    500,
		TextSizeTiers:        TextSizeTiers{Small: 500, Medium: 5000, Large: 50000},
		OperationTTLs: map[string]time.Duration{
			"summarize":  2 * time.Hour,
			"sentiment":  24 * time.Hour,
			"key_points": 2 * time.Hour,
			"questions":  time.Hour,
			"qa":         30 * time.Minute,
		},
		RetentionWindow:     time.Hour,
		MaxMeasurements:     1000,
		MemoryWarningBytes:  50 * 1024 * 1024,
		MemoryCriticalBytes: 100 * 1024 * 1024,
	}
}

// ValidationReport accumulates every configuration violation rather
// than failing on the first one, per spec.md §6.4 ("Validation errors
// accumulate; an invalid config fails with a structured report
// enumerating every violation").
type ValidationReport struct {
	Violations []string
}

// Valid reports whether the configuration had no violations.
func (r ValidationReport) Valid() bool {
	return len(r.Violations) == 0
}

// Error satisfies the error interface so a ValidationReport can be
// returned and checked with errors.As.
func (r ValidationReport) Error() string {
	return fmt.Sprintf("invalid configuration: %s", strings.Join(r.Violations, "; "))
}

// Validate checks cfg against every constraint in spec.md §6.4,
// accumulating every violation found.
func Validate(cfg Config) ValidationReport {
	var report ValidationReport
	add := func(format string, args ...interface{}) {
		report.Violations = append(report.Violations, fmt.Sprintf(format, args...))
	}

	if !hasAnyPrefix(cfg.RemoteURL, "redis://", "rediss://", "unix://") {
		add("remote_url must start with redis://, rediss://, or unix:// (got %q)", cfg.RemoteURL)
	}

	ttlSeconds := cfg.DefaultTTL.Seconds()
	if ttlSeconds < 1 || ttlSeconds > 31_536_000 {
		add("default_ttl must be between 1 and 31536000 seconds (got %v)", cfg.DefaultTTL)
	}

	if cfg.L1MaxSize < 0 || cfg.L1MaxSize > 10_000 {
		add("l1_max_size must be between 0 and 10000 (got %d)", cfg.L1MaxSize)
	}

	if cfg.CompressionThreshold < 0 || cfg.CompressionThreshold > 1_048_576 {
		add("compression_threshold must be between 0 and 1048576 bytes (got %d)", cfg.CompressionThreshold)
	}

	if cfg.CompressionLevel < 1 || cfg.CompressionLevel > 9 {
		add("compression_level must be between 1 and 9 (got %d)", cfg.CompressionLevel)
	}

	if cfg.TextHashThreshold < 1 || cfg.TextHashThreshold > 100_000 {
		add("text_hash_threshold must be between 1 and 100000 characters (got %d)", cfg.TextHashThreshold)
	}

	if !(cfg.TextSizeTiers.Small > 0 && cfg.TextSizeTiers.Small < cfg.TextSizeTiers.Medium && cfg.TextSizeTiers.Medium < cfg.TextSizeTiers.Large) {
		add("text_size_tiers must be strictly ascending positive integers (got small=%d medium=%d large=%d)",
			cfg.TextSizeTiers.Small, cfg.TextSizeTiers.Medium, cfg.TextSizeTiers.Large)
	}

	for op, ttl := range cfg.OperationTTLs {
		if ttl.Seconds() <= 0 || ttl.Seconds() > 31_536_000 {
			add("operation_ttls[%s] must be positive and at most one year (got %v)", op, ttl)
		}
	}

	if cfg.RetentionWindow <= 0 {
		add("retention_hours must be positive (got %v)", cfg.RetentionWindow)
	}
	if cfg.MaxMeasurements <= 0 {
		add("max_measurements must be positive (got %d)", cfg.MaxMeasurements)
	}
	if cfg.MemoryWarningBytes <= 0 {
		add("memory_warning_bytes must be positive (got %d)", cfg.MemoryWarningBytes)
	}
	if cfg.MemoryCriticalBytes <= 0 {
		add("memory_critical_bytes must be positive (got %d)", cfg.MemoryCriticalBytes)
	}

	return report
}

func hasAnyPrefix(s string, prefixes ...string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
