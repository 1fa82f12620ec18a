package analytics

import (
	"fmt"
	"time"
)

// recommendInput gathers everything the generators look at for one cycle.
type recommendInput struct {
	slot     TimeSeriesSlot
	patterns []Pattern
	snap     Snapshot
	lowHit   float64
	minConf  float64
}

type recommendFunc func(in recommendInput) *Recommendation

// recommend runs every generator and keeps the suggestions that clear the
// configured confidence floor.
func recommend(in recommendInput) []Recommendation {
	generators := []recommendFunc{
		recommendTTL,
		recommendCacheSize,
		recommendEviction,
		recommendPrefetch,
		recommendCompression,
		recommendDistribution,
	}
	var out []Recommendation
	for _, gen := range generators {
		if rec := gen(in); rec != nil && rec.Confidence >= in.minConf {
			out = append(out, *rec)
		}
	}
	return out
}

func recommendTTL(in recommendInput) *Recommendation {
	if in.slot.HitRate == NoData || in.slot.HitRate >= in.lowHit {
		return nil
	}
	return &Recommendation{
		Type:        RecommendTTL,
		Description: fmt.Sprintf("hit rate %.2f below %.2f, consider longer TTLs for stable values", in.slot.HitRate, in.lowHit),
		Confidence:  min1(0.8 + (in.lowHit - in.slot.HitRate)),
	}
}

func recommendCacheSize(in recommendInput) *Recommendation {
	if in.slot.MemoryUsedPercent == NoData || in.slot.MemoryUsedPercent <= 0.8 {
		return nil
	}
	return &Recommendation{
		Type:        RecommendCacheSize,
		Description: fmt.Sprintf("memory usage %.0f%%, consider lowering max entries or shortening TTLs", in.slot.MemoryUsedPercent*100),
		Confidence:  min1(in.slot.MemoryUsedPercent + 0.1),
	}
}

func recommendEviction(in recommendInput) *Recommendation {
	for _, p := range in.patterns {
		if p.Type == PatternHotKey {
			return &Recommendation{
				Type:        RecommendEviction,
				Description: fmt.Sprintf("%d hot keys detected, a frequency-aware eviction policy would protect them", len(p.Keys)),
				Confidence:  min1(p.Confidence + 0.3),
			}
		}
	}
	return nil
}

// recommendPrefetch fires when some key shows a sustained mean inter-access
// interval under ten seconds.
func recommendPrefetch(in recommendInput) *Recommendation {
	lastSeen := make(map[string]time.Time)
	sums := make(map[string]time.Duration)
	counts := make(map[string]int)
	for _, evt := range in.snap.Events {
		if prev, ok := lastSeen[evt.Key]; ok {
			sums[evt.Key] += evt.Time.Sub(prev)
			counts[evt.Key]++
		}
		lastSeen[evt.Key] = evt.Time
	}
	for key, n := range counts {
		if n < minDataPoints {
			continue
		}
		if sums[key]/time.Duration(n) < 10*time.Second {
			return &Recommendation{
				Type:        RecommendPrefetch,
				Description: fmt.Sprintf("key %q accessed at sub-10s intervals, a prefetch strategy would keep it resident", key),
				Confidence:  min1(0.7 + float64(n)/50),
			}
		}
	}
	return nil
}

func recommendCompression(in recommendInput) *Recommendation {
	for _, p := range in.patterns {
		if p.Type != PatternSizeBand {
			continue
		}
		share := p.Data["large"] + p.Data["extra-large"]
		if share > 0.25 {
			return &Recommendation{
				Type:        RecommendCompression,
				Description: fmt.Sprintf("%.0f%% of values are large, enabling compression would cut remote tier traffic", share*100),
				Confidence:  min1(0.6 + share),
			}
		}
	}
	return nil
}

func recommendDistribution(in recommendInput) *Recommendation {
	if in.slot.L1HitRate == NoData || in.slot.L2HitRate == NoData {
		return nil
	}
	if in.slot.L1HitRate < 0.5 && in.slot.L2HitRate > 0.7 {
		return &Recommendation{
			Type:        RecommendDistribution,
			Description: fmt.Sprintf("L1 hit rate %.2f while L2 is %.2f, L1 looks under-sized", in.slot.L1HitRate, in.slot.L2HitRate),
			Confidence:  min1(0.6 + in.slot.L2HitRate - in.slot.L1HitRate),
		}
	}
	return nil
}
