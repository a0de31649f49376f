package aicache

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/cacheforge/tiercache/pkg/tiercache"
)

// LoadConfigFromViper builds a tiercache.Config from viper, overlaying
// spec.md §6.4 defaults with whatever keys are set under "cache.ai.*",
// grounded on the teacher's LoadConfigFromViper
// (pkg/aicache/config_loader.go in the source tree) with the
// multi-tenancy and warmup keys dropped since this core has neither.
func LoadConfigFromViper() (tiercache.Config, error) {
	cfg := tiercache.DefaultConfig()

	if url := viper.GetString("cache.ai.remote_url"); url != "" {
		cfg.RemoteURL = url
	}
	if ttl := viper.GetDuration("cache.ai.default_ttl"); ttl > 0 {
		cfg.DefaultTTL = ttl
	}
	if viper.IsSet("cache.ai.l1_enabled") {
		cfg.L1Enabled = viper.GetBool("cache.ai.l1_enabled")
	}
	if maxSize := viper.GetInt("cache.ai.l1_max_size"); maxSize > 0 {
		cfg.L1MaxSize = maxSize
	}
	if threshold := viper.GetInt("cache.ai.compression_threshold"); threshold > 0 {
		cfg.CompressionThreshold = threshold
	}
	if level := viper.GetInt("cache.ai.compression_level"); level > 0 {
		cfg.CompressionLevel = level
	}
	if threshold := viper.GetInt("cache.ai.text_hash_threshold"); threshold > 0 {
		cfg.TextHashThreshold = threshold
	}
	if small := viper.GetInt("cache.ai.text_size_tiers.small"); small > 0 {
		cfg.TextSizeTiers.Small = small
	}
	if medium := viper.GetInt("cache.ai.text_size_tiers.medium"); medium > 0 {
		cfg.TextSizeTiers.Medium = medium
	}
	if large := viper.GetInt("cache.ai.text_size_tiers.large"); large > 0 {
		cfg.TextSizeTiers.Large = large
	}

	loadOperationTTLs(cfg.OperationTTLs)

	if window := viper.GetDuration("cache.ai.retention_window"); window > 0 {
		cfg.RetentionWindow = window
	}
	if maxMeasurements := viper.GetInt("cache.ai.max_measurements"); maxMeasurements > 0 {
		cfg.MaxMeasurements = maxMeasurements
	}
	if warning := viper.GetInt64("cache.ai.memory_warning_bytes"); warning > 0 {
		cfg.MemoryWarningBytes = warning
	}
	if critical := viper.GetInt64("cache.ai.memory_critical_bytes"); critical > 0 {
		cfg.MemoryCriticalBytes = critical
	}

	report := tiercache.Validate(cfg)
	if !report.Valid() {
		return tiercache.Config{}, fmt.Errorf("ai cache config: %w", report)
	}
	return cfg, nil
}

// loadOperationTTLs overlays any "cache.ai.operation_ttls.<op>" keys
// viper knows about onto ttls in place, leaving defaults untouched for
// operations that aren't configured.
func loadOperationTTLs(ttls map[string]time.Duration) {
	raw, ok := viper.Get("cache.ai.operation_ttls").(map[string]interface{})
	if !ok {
		return
	}
	for op := range raw {
		if d := viper.GetDuration("cache.ai.operation_ttls." + op); d > 0 {
			ttls[op] = d
		}
	}
}
