// Package config holds the configuration surface for the tiered caching
// subsystem. All knobs are optional: zero values are replaced with defaults
// when a Config passes through ApplyDefaults, which New-style constructors
// call on their own.
package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// L1Config bounds the in-process tier.
type L1Config struct {
	MaxEntries      int      `yaml:"max_entries"`
	TTL             Duration `yaml:"ttl"`
	CleanupInterval Duration `yaml:"cleanup_interval"`
}

// L2Config configures the remote cache tier.
type L2Config struct {
	TTL                  Duration `yaml:"ttl"`
	KeyPrefix            string   `yaml:"key_prefix"`
	Compression          bool     `yaml:"compression"`
	CompressionThreshold int      `yaml:"compression_threshold"`
	QueryTimeout         Duration `yaml:"query_timeout"`
}

// L3Config configures the persistent tier.
type L3Config struct {
	TTL          Duration `yaml:"ttl"`
	TableName    string   `yaml:"table_name"`
	QueryTimeout Duration `yaml:"query_timeout"`
}

// WriteBackConfig bounds the deferred write queue.
type WriteBackConfig struct {
	MaxQueueSize  int      `yaml:"max_queue_size"`
	BatchSize     int      `yaml:"batch_size"`
	ThrottleDelay Duration `yaml:"throttle_delay"`
}

// EngineConfig covers engine-wide behavior not tied to a single tier.
type EngineConfig struct {
	MetricsInterval Duration `yaml:"metrics_interval"`
	TimeBucket      Duration `yaml:"time_bucket"`
}

// AnalyticsConfig holds detector thresholds and cycle timing.
type AnalyticsConfig struct {
	AnalysisInterval Duration `yaml:"analysis_interval"`
	Retention        Duration `yaml:"retention"`
	MinConfidence    float64  `yaml:"min_confidence"`
	LowHitRate       float64  `yaml:"low_hit_rate"`
	HighErrorRate    float64  `yaml:"high_error_rate"`
	HighLatency      Duration `yaml:"high_latency"`
	HighMemoryUsage  float64  `yaml:"high_memory_usage"`
}

// WarmingConfig holds prediction and execution knobs.
type WarmingConfig struct {
	WarmingInterval         Duration           `yaml:"warming_interval"`
	PatternAnalysisInterval Duration           `yaml:"pattern_analysis_interval"`
	LookAhead               Duration           `yaml:"look_ahead"`
	Horizon                 Duration           `yaml:"horizon"`
	MinConfidence           float64            `yaml:"min_confidence"`
	MaxBatchSize            int                `yaml:"max_batch_size"`
	MaxConcurrentWarmups    int                `yaml:"max_concurrent_warmups"`
	Retention               Duration           `yaml:"retention"`
	StrategyWeights         map[string]float64 `yaml:"strategy_weights"`
	Adaptive                bool               `yaml:"adaptive"`
	AdaptiveHitRate         float64            `yaml:"adaptive_hit_rate"`
}

// Config is the root configuration for the caching subsystem.
type Config struct {
	L1        L1Config        `yaml:"l1"`
	L2        L2Config        `yaml:"l2"`
	L3        L3Config        `yaml:"l3"`
	WriteBack WriteBackConfig `yaml:"write_back"`
	Engine    EngineConfig    `yaml:"engine"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	Warming   WarmingConfig   `yaml:"warming"`
}

// Default returns a Config with every knob set to its default.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills zero-valued fields in place.
func (c *Config) ApplyDefaults() {
	if c.L1.MaxEntries <= 0 {
		c.L1.MaxEntries = 10000
	}
	if c.L1.TTL <= 0 {
		c.L1.TTL = Duration(5 * time.Minute)
	}
	if c.L1.CleanupInterval <= 0 {
		c.L1.CleanupInterval = Duration(time.Minute)
	}
	if c.L2.TTL <= 0 {
		c.L2.TTL = Duration(30 * time.Minute)
	}
	if c.L2.CompressionThreshold <= 0 {
		c.L2.CompressionThreshold = 1024
	}
	if c.L2.QueryTimeout <= 0 {
		c.L2.QueryTimeout = Duration(5 * time.Second)
	}
	if c.L3.TTL <= 0 {
		c.L3.TTL = Duration(24 * time.Hour)
	}
	if c.L3.TableName == "" {
		c.L3.TableName = "cache_entries"
	}
	if c.L3.QueryTimeout <= 0 {
		c.L3.QueryTimeout = Duration(5 * time.Second)
	}
	if c.WriteBack.MaxQueueSize <= 0 {
		c.WriteBack.MaxQueueSize = 1000
	}
	if c.WriteBack.BatchSize <= 0 {
		c.WriteBack.BatchSize = 50
	}
	if c.WriteBack.ThrottleDelay <= 0 {
		c.WriteBack.ThrottleDelay = Duration(100 * time.Millisecond)
	}
	if c.Engine.MetricsInterval <= 0 {
		c.Engine.MetricsInterval = Duration(time.Minute)
	}
	if c.Engine.TimeBucket <= 0 {
		c.Engine.TimeBucket = Duration(time.Hour)
	}
	if c.Analytics.AnalysisInterval <= 0 {
		c.Analytics.AnalysisInterval = Duration(time.Minute)
	}
	if c.Analytics.Retention <= 0 {
		c.Analytics.Retention = Duration(7 * 24 * time.Hour)
	}
	if c.Analytics.MinConfidence <= 0 {
		c.Analytics.MinConfidence = 0.8
	}
	if c.Analytics.LowHitRate <= 0 {
		c.Analytics.LowHitRate = 0.7
	}
	if c.Analytics.HighErrorRate <= 0 {
		c.Analytics.HighErrorRate = 0.05
	}
	if c.Analytics.HighLatency <= 0 {
		c.Analytics.HighLatency = Duration(100 * time.Millisecond)
	}
	if c.Analytics.HighMemoryUsage <= 0 {
		c.Analytics.HighMemoryUsage = 0.85
	}
	if c.Warming.WarmingInterval <= 0 {
		c.Warming.WarmingInterval = Duration(time.Minute)
	}
	if c.Warming.PatternAnalysisInterval <= 0 {
		c.Warming.PatternAnalysisInterval = Duration(time.Minute)
	}
	if c.Warming.LookAhead <= 0 {
		c.Warming.LookAhead = Duration(time.Hour)
	}
	if c.Warming.Horizon <= 0 {
		c.Warming.Horizon = Duration(5 * time.Minute)
	}
	if c.Warming.MinConfidence <= 0 {
		c.Warming.MinConfidence = 0.6
	}
	if c.Warming.MaxBatchSize <= 0 {
		c.Warming.MaxBatchSize = 20
	}
	if c.Warming.MaxConcurrentWarmups <= 0 {
		c.Warming.MaxConcurrentWarmups = 5
	}
	if c.Warming.Retention <= 0 {
		c.Warming.Retention = Duration(7 * 24 * time.Hour)
	}
	if c.Warming.AdaptiveHitRate <= 0 {
		c.Warming.AdaptiveHitRate = 0.7
	}
	if c.Warming.StrategyWeights == nil {
		c.Warming.StrategyWeights = map[string]float64{
			"temporal":  0.3,
			"frequency": 0.3,
			"reactive":  0.4,
		}
	}
}

// Validate rejects values that defaults cannot repair.
func (c *Config) Validate() error {
	if c.Analytics.MinConfidence > 1 {
		return errors.Newf("config: analytics min_confidence %f out of range (0,1]", c.Analytics.MinConfidence)
	}
	if c.Warming.MinConfidence > 1 {
		return errors.Newf("config: warming min_confidence %f out of range (0,1]", c.Warming.MinConfidence)
	}
	if c.Analytics.LowHitRate > 1 {
		return errors.Newf("config: low_hit_rate %f out of range (0,1]", c.Analytics.LowHitRate)
	}
	if c.Analytics.HighMemoryUsage > 1 {
		return errors.Newf("config: high_memory_usage %f out of range (0,1]", c.Analytics.HighMemoryUsage)
	}
	for name, weight := range c.Warming.StrategyWeights {
		if weight < 0 || weight > 1 {
			return errors.Newf("config: strategy weight %q = %f out of range [0,1]", name, weight)
		}
	}
	return nil
}

// Load reads a YAML config file, applies defaults, and validates.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "config: read")
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "config: parse")
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
