package analytics

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// minDataPoints is the floor below which detectors stay silent rather than
// report on noise.
const minDataPoints = 10

// temporalDetector buckets operations by hour-of-day and flags peak hours
// and daily periodicity.
type temporalDetector struct{}

func (temporalDetector) Name() string { return "temporal" }

func (temporalDetector) Detect(snap Snapshot) []Pattern {
	if len(snap.Events) < minDataPoints {
		return nil
	}
	var hourCounts [24]float64
	var dayCounts [7]float64
	for _, evt := range snap.Events {
		hourCounts[evt.Time.Hour()]++
		dayCounts[int(evt.Time.Weekday())]++
	}

	var total float64
	for _, c := range hourCounts {
		total += c
	}
	// Cross-hour average over all 24 buckets, so traffic concentrated in a
	// single hour still stands out against the quiet ones.
	mean := total / 24

	var patterns []Pattern
	for hour, count := range hourCounts {
		if count > mean*1.5 {
			patterns = append(patterns, Pattern{
				Type:        PatternTemporal,
				Description: fmt.Sprintf("peak activity at hour %02d (%.0f ops vs %.1f average)", hour, count, mean),
				Confidence:  min1(count / (mean * 2)),
				Data:        map[string]float64{"hour": float64(hour), "count": count, "mean": mean},
			})
		}
	}

	// Daily periodicity: high variance across the 24 hourly buckets
	// relative to the mean indicates activity concentrated in a few hours.
	var variance float64
	for _, c := range hourCounts {
		d := c - mean
		variance += d * d
	}
	variance /= 24
	if mean > 0 && variance > mean*mean {
		patterns = append(patterns, Pattern{
			Type:        PatternPeriodicity,
			Description: "daily periodicity detected across hourly buckets",
			Confidence:  min1(variance / (mean * mean * 2)),
			Data:        map[string]float64{"variance": variance, "mean": mean},
		})
	}
	return patterns
}

// frequencyDetector flags keys accessed more than hotKeyThreshold times in
// the trailing hour.
type frequencyDetector struct{}

const hotKeyThreshold = 5

func (frequencyDetector) Name() string { return "frequency" }

func (frequencyDetector) Detect(snap Snapshot) []Pattern {
	if len(snap.Events) < minDataPoints {
		return nil
	}
	cutoff := snap.Now.Add(-time.Hour)
	counts := make(map[string]int)
	for _, evt := range snap.Events {
		if evt.Time.After(cutoff) {
			counts[evt.Key]++
		}
	}
	var hot []string
	maxCount := 0
	for key, n := range counts {
		if n > hotKeyThreshold {
			hot = append(hot, key)
			if n > maxCount {
				maxCount = n
			}
		}
	}
	if len(hot) == 0 {
		return nil
	}
	sort.Strings(hot)
	return []Pattern{{
		Type:        PatternHotKey,
		Description: fmt.Sprintf("%d hot keys with >%d accesses in the trailing hour", len(hot), hotKeyThreshold),
		Confidence:  min1(float64(maxCount) / 20),
		Keys:        hot,
	}}
}

// contentTypeDetector reports the distribution of key namespaces, taken as
// the prefix before the first colon.
type contentTypeDetector struct{}

func (contentTypeDetector) Name() string { return "content-type" }

func (contentTypeDetector) Detect(snap Snapshot) []Pattern {
	if len(snap.Events) < minDataPoints {
		return nil
	}
	dist := make(map[string]float64)
	for _, evt := range snap.Events {
		ns := "other"
		if idx := strings.IndexByte(evt.Key, ':'); idx > 0 {
			ns = evt.Key[:idx]
		}
		dist[ns]++
	}
	total := float64(len(snap.Events))
	for ns := range dist {
		dist[ns] /= total
	}
	return []Pattern{{
		Type:        PatternContentType,
		Description: fmt.Sprintf("key namespace distribution over %d namespaces", len(dist)),
		Confidence:  1,
		Data:        dist,
	}}
}

// sizeDetector buckets observed value sizes into bands.
type sizeDetector struct{}

const (
	sizeSmall  = 1 << 10
	sizeMedium = 10 << 10
	sizeLarge  = 100 << 10
)

func (sizeDetector) Name() string { return "size-distribution" }

func (sizeDetector) Detect(snap Snapshot) []Pattern {
	var sized float64
	bands := map[string]float64{}
	for _, evt := range snap.Events {
		if evt.Size <= 0 {
			continue
		}
		sized++
		switch {
		case evt.Size < sizeSmall:
			bands["small"]++
		case evt.Size < sizeMedium:
			bands["medium"]++
		case evt.Size < sizeLarge:
			bands["large"]++
		default:
			bands["extra-large"]++
		}
	}
	if sized < minDataPoints {
		return nil
	}
	for band := range bands {
		bands[band] /= sized
	}
	return []Pattern{{
		Type:        PatternSizeBand,
		Description: fmt.Sprintf("size band distribution over %.0f sized values", sized),
		Confidence:  1,
		Data:        bands,
	}}
}

// geographicDetector is an extension point. Until a locality data source is
// attached it reports nothing.
type geographicDetector struct{}

func (geographicDetector) Name() string { return "geographic" }

func (geographicDetector) Detect(Snapshot) []Pattern { return nil }

// userBehaviorDetector is an extension point mirroring geographicDetector.
type userBehaviorDetector struct{}

func (userBehaviorDetector) Name() string { return "user-behavior" }

func (userBehaviorDetector) Detect(Snapshot) []Pattern { return nil }

func defaultDetectors() []Detector {
	return []Detector{
		temporalDetector{},
		frequencyDetector{},
		contentTypeDetector{},
		sizeDetector{},
		geographicDetector{},
		userBehaviorDetector{},
	}
}

func min1(v float64) float64 {
	if v > 1 {
		return 1
	}
	return v
}
