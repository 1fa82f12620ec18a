// Package analytics aggregates cache activity into per-minute time series,
// detects access patterns, and derives recommendations, alerts, and a
// scalar optimization score. Everything except the time series is stateless
// across cycles: patterns, recommendations, and alerts are re-derived from
// scratch every analysis interval.
package analytics

import (
	"time"
)

// AccessEvent is one observed cache operation, recorded from the engine's
// event stream.
type AccessEvent struct {
	Key     string
	Op      string
	Size    int
	Latency time.Duration
	Time    time.Time
}

// PatternType classifies a detected pattern.
type PatternType string

const (
	PatternTemporal     PatternType = "temporal"
	PatternPeriodicity  PatternType = "periodicity"
	PatternHotKey       PatternType = "hot-key"
	PatternContentType  PatternType = "content-type"
	PatternSizeBand     PatternType = "size-distribution"
	PatternGeographic   PatternType = "geographic"
	PatternUserBehavior PatternType = "user-behavior"
)

// Pattern is one detected access pattern, re-derived each cycle.
type Pattern struct {
	Type        PatternType
	Description string
	Confidence  float64
	Keys        []string
	Data        map[string]float64
}

// Snapshot is the input handed to each detector: the retained access events
// plus the wall-clock time of the cycle.
type Snapshot struct {
	Events []AccessEvent
	Now    time.Time
}

// Detector examines a snapshot and reports zero or more patterns.
type Detector interface {
	Name() string
	Detect(snap Snapshot) []Pattern
}

// RecommendationType classifies a tuning recommendation.
type RecommendationType string

const (
	RecommendTTL          RecommendationType = "ttl-optimization"
	RecommendCacheSize    RecommendationType = "cache-size-optimization"
	RecommendEviction     RecommendationType = "eviction-policy-optimization"
	RecommendPrefetch     RecommendationType = "prefetch-strategy-optimization"
	RecommendCompression  RecommendationType = "compression-strategy-optimization"
	RecommendDistribution RecommendationType = "level-distribution-optimization"
)

// Recommendation is a stateless tuning suggestion for the current cycle.
type Recommendation struct {
	Type        RecommendationType
	Description string
	Confidence  float64
}

// AlertKind names the threshold an alert fired on.
type AlertKind string

const (
	AlertLowHitRate  AlertKind = "low-hit-rate"
	AlertHighErrors  AlertKind = "high-error-rate"
	AlertHighLatency AlertKind = "high-latency"
	AlertHighMemory  AlertKind = "high-memory-usage"
)

// Alert records a threshold breach observed in the most recent slot.
// Alerts are not deduplicated: a sustained breach produces one alert per
// cycle.
type Alert struct {
	Kind      AlertKind
	Message   string
	Value     float64
	Threshold float64
	Time      time.Time
}

// Report is the output of one analysis cycle.
type Report struct {
	Slot            TimeSeriesSlot
	Patterns        []Pattern
	Recommendations []Recommendation
	Alerts          []Alert
	Score           float64
	Time            time.Time
}
