package analytics

import (
	"fmt"
	"time"

	"github.com/Punky2280/dat-bitch-cartrita-sub015/config"
)

// evaluateAlerts checks the most recent slot against the four configured
// thresholds. Each breach yields one alert for this cycle; there is no
// suppression across cycles.
func evaluateAlerts(slot TimeSeriesSlot, cfg *config.AnalyticsConfig) []Alert {
	var alerts []Alert
	now := slot.Time

	if slot.HitRate != NoData && slot.Operations > 0 && slot.HitRate < cfg.LowHitRate {
		alerts = append(alerts, Alert{
			Kind:      AlertLowHitRate,
			Message:   fmt.Sprintf("hit rate %.2f below threshold %.2f", slot.HitRate, cfg.LowHitRate),
			Value:     slot.HitRate,
			Threshold: cfg.LowHitRate,
			Time:      now,
		})
	}
	if slot.ErrorRate != NoData && slot.ErrorRate > cfg.HighErrorRate {
		alerts = append(alerts, Alert{
			Kind:      AlertHighErrors,
			Message:   fmt.Sprintf("error rate %.3f above threshold %.3f", slot.ErrorRate, cfg.HighErrorRate),
			Value:     slot.ErrorRate,
			Threshold: cfg.HighErrorRate,
			Time:      now,
		})
	}
	if slot.AvgLatency > 0 && slot.AvgLatency > cfg.HighLatency.D() {
		alerts = append(alerts, Alert{
			Kind:      AlertHighLatency,
			Message:   fmt.Sprintf("average latency %s above threshold %s", slot.AvgLatency, cfg.HighLatency.D()),
			Value:     float64(slot.AvgLatency) / float64(time.Millisecond),
			Threshold: float64(cfg.HighLatency.D()) / float64(time.Millisecond),
			Time:      now,
		})
	}
	if slot.MemoryUsedPercent != NoData && slot.MemoryUsedPercent > cfg.HighMemoryUsage {
		alerts = append(alerts, Alert{
			Kind:      AlertHighMemory,
			Message:   fmt.Sprintf("memory usage %.0f%% above threshold %.0f%%", slot.MemoryUsedPercent*100, cfg.HighMemoryUsage*100),
			Value:     slot.MemoryUsedPercent,
			Threshold: cfg.HighMemoryUsage,
			Time:      now,
		})
	}
	return alerts
}
