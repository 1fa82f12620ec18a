package analytics

import "time"

// Sub-score weights for the optimization score. When a sub-score has no
// data for the slot its weight is dropped and the rest are renormalized.
const (
	weightHitRate = 0.40
	weightLatency = 0.25
	weightErrors  = 0.20
	weightMemory  = 0.15
)

// latencyCeiling is the latency at which the latency sub-score reaches
// zero; anything instantaneous scores 1.
const latencyCeiling = 500 * time.Millisecond

// optimizationScore condenses a slot into a [0,100] health number.
func optimizationScore(slot TimeSeriesSlot) float64 {
	var weighted, totalWeight float64

	if slot.HitRate != NoData && slot.Operations > 0 {
		weighted += clamp01(slot.HitRate) * weightHitRate
		totalWeight += weightHitRate
	}
	if slot.AvgLatency > 0 {
		health := 1 - float64(slot.AvgLatency)/float64(latencyCeiling)
		weighted += clamp01(health) * weightLatency
		totalWeight += weightLatency
	}
	if slot.ErrorRate != NoData {
		weighted += clamp01(1-slot.ErrorRate*10) * weightErrors
		totalWeight += weightErrors
	}
	if slot.MemoryUsedPercent != NoData {
		weighted += clamp01(1-slot.MemoryUsedPercent) * weightMemory
		totalWeight += weightMemory
	}

	if totalWeight == 0 {
		return 0
	}
	return weighted / totalWeight * 100
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
