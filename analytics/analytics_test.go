package analytics

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Punky2280/dat-bitch-cartrita-sub015/config"
	"github.com/Punky2280/dat-bitch-cartrita-sub015/engine"
	"github.com/Punky2280/dat-bitch-cartrita-sub015/logger"
)

func eventsAt(base time.Time, key string, n int, spacing time.Duration) []AccessEvent {
	out := make([]AccessEvent, n)
	for i := range out {
		out[i] = AccessEvent{Key: key, Op: "hit", Time: base.Add(time.Duration(i) * spacing)}
	}
	return out
}

func TestTemporalDetectorFlagsPeakHour(t *testing.T) {
	now := time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)
	var events []AccessEvent
	// One access in each of four quiet hours, twenty in the peak hour.
	for _, h := range []int{8, 9, 10, 11} {
		events = append(events, AccessEvent{Key: "k", Time: now.Add(time.Duration(h-14) * time.Hour)})
	}
	events = append(events, eventsAt(now.Add(-10*time.Minute), "k", 20, time.Second)...)

	patterns := temporalDetector{}.Detect(Snapshot{Events: events, Now: now})
	require.NotEmpty(t, patterns)

	var sawPeak bool
	for _, p := range patterns {
		if p.Type == PatternTemporal {
			sawPeak = true
			assert.Equal(t, float64(14), p.Data["hour"])
		}
	}
	assert.True(t, sawPeak)
}

func TestTemporalDetectorFlagsSingleConcentratedHour(t *testing.T) {
	// All traffic in one hour, every other hour silent. The hour must still
	// stand out against the cross-hour average.
	now := time.Date(2026, 3, 10, 3, 45, 0, 0, time.UTC)
	events := eventsAt(now.Add(-30*time.Minute), "cron:nightly", 30, time.Second)

	patterns := temporalDetector{}.Detect(Snapshot{Events: events, Now: now})

	var sawPeak bool
	for _, p := range patterns {
		if p.Type == PatternTemporal {
			sawPeak = true
			assert.Equal(t, float64(3), p.Data["hour"])
		}
	}
	assert.True(t, sawPeak)
}

func TestTemporalDetectorNeedsMinimumData(t *testing.T) {
	now := time.Now()
	patterns := temporalDetector{}.Detect(Snapshot{Events: eventsAt(now, "k", 5, time.Second), Now: now})
	assert.Empty(t, patterns)
}

func TestFrequencyDetectorFlagsHotKeys(t *testing.T) {
	now := time.Now()
	events := eventsAt(now.Add(-30*time.Minute), "user:42", 8, time.Minute)
	events = append(events, eventsAt(now.Add(-30*time.Minute), "user:7", 3, time.Minute)...)

	patterns := frequencyDetector{}.Detect(Snapshot{Events: events, Now: now})
	require.Len(t, patterns, 1)
	assert.Equal(t, PatternHotKey, patterns[0].Type)
	assert.Equal(t, []string{"user:42"}, patterns[0].Keys)
}

func TestFrequencyDetectorIgnoresStaleAccesses(t *testing.T) {
	now := time.Now()
	// Heavy access, but all of it two hours ago.
	events := eventsAt(now.Add(-2*time.Hour), "user:42", 20, time.Second)
	patterns := frequencyDetector{}.Detect(Snapshot{Events: events, Now: now})
	assert.Empty(t, patterns)
}

func TestContentTypeDetectorDistribution(t *testing.T) {
	now := time.Now()
	var events []AccessEvent
	for i := 0; i < 6; i++ {
		events = append(events, AccessEvent{Key: fmt.Sprintf("user:%d", i), Time: now})
	}
	for i := 0; i < 4; i++ {
		events = append(events, AccessEvent{Key: fmt.Sprintf("session:%d", i), Time: now})
	}

	patterns := contentTypeDetector{}.Detect(Snapshot{Events: events, Now: now})
	require.Len(t, patterns, 1)
	assert.InDelta(t, 0.6, patterns[0].Data["user"], 0.001)
	assert.InDelta(t, 0.4, patterns[0].Data["session"], 0.001)
}

func TestSizeDetectorBands(t *testing.T) {
	now := time.Now()
	var events []AccessEvent
	for i := 0; i < 5; i++ {
		events = append(events, AccessEvent{Key: "s", Size: 100, Time: now})
	}
	for i := 0; i < 5; i++ {
		events = append(events, AccessEvent{Key: "xl", Size: 200 << 10, Time: now})
	}

	patterns := sizeDetector{}.Detect(Snapshot{Events: events, Now: now})
	require.Len(t, patterns, 1)
	assert.InDelta(t, 0.5, patterns[0].Data["small"], 0.001)
	assert.InDelta(t, 0.5, patterns[0].Data["extra-large"], 0.001)
}

func TestExtensionDetectorsReturnNothing(t *testing.T) {
	now := time.Now()
	snap := Snapshot{Events: eventsAt(now, "k", 50, time.Second), Now: now}
	assert.Empty(t, geographicDetector{}.Detect(snap))
	assert.Empty(t, userBehaviorDetector{}.Detect(snap))
}

func TestOptimizationScoreBounds(t *testing.T) {
	cases := []TimeSeriesSlot{
		{Operations: 100, HitRate: 1, AvgLatency: time.Millisecond, ErrorRate: 0, MemoryUsedPercent: 0.1},
		{Operations: 100, HitRate: 0, AvgLatency: time.Second, ErrorRate: 1, MemoryUsedPercent: 1},
		{Operations: 0, HitRate: NoData, ErrorRate: NoData, MemoryUsedPercent: NoData},
		{Operations: 100, HitRate: 0.5, ErrorRate: NoData, MemoryUsedPercent: NoData},
	}
	for i, slot := range cases {
		score := optimizationScore(slot)
		assert.GreaterOrEqual(t, score, 0.0, "case %d", i)
		assert.LessOrEqual(t, score, 100.0, "case %d", i)
	}
}

func TestOptimizationScoreRenormalizes(t *testing.T) {
	// Perfect hit rate with every other sub-score missing must still reach
	// the full scale, not be dragged down by absent weights.
	slot := TimeSeriesSlot{Operations: 10, HitRate: 1, ErrorRate: NoData, MemoryUsedPercent: NoData}
	assert.InDelta(t, 100, optimizationScore(slot), 0.001)
}

func TestEvaluateAlerts(t *testing.T) {
	cfg := &config.Default().Analytics
	slot := TimeSeriesSlot{
		Time:              time.Now(),
		Operations:        100,
		HitRate:           0.2,
		ErrorRate:         0.5,
		AvgLatency:        300 * time.Millisecond,
		MemoryUsedPercent: 0.95,
	}
	alerts := evaluateAlerts(slot, cfg)
	require.Len(t, alerts, 4)

	kinds := make(map[AlertKind]bool)
	for _, a := range alerts {
		kinds[a.Kind] = true
	}
	assert.True(t, kinds[AlertLowHitRate])
	assert.True(t, kinds[AlertHighErrors])
	assert.True(t, kinds[AlertHighLatency])
	assert.True(t, kinds[AlertHighMemory])
}

func TestEvaluateAlertsQuietSlot(t *testing.T) {
	cfg := &config.Default().Analytics
	slot := TimeSeriesSlot{
		Time:              time.Now(),
		Operations:        100,
		HitRate:           0.9,
		ErrorRate:         0,
		AvgLatency:        time.Millisecond,
		MemoryUsedPercent: 0.3,
	}
	assert.Empty(t, evaluateAlerts(slot, cfg))
}

func TestRecommendationsRespectConfidenceFloor(t *testing.T) {
	in := recommendInput{
		slot:    TimeSeriesSlot{Operations: 100, HitRate: 0.69, ErrorRate: NoData, L1HitRate: NoData, L2HitRate: NoData, MemoryUsedPercent: NoData},
		lowHit:  0.7,
		minConf: 0.99,
	}
	// The TTL generator fires with confidence ~0.81, below the 0.99 floor.
	assert.Empty(t, recommend(in))

	in.minConf = 0.8
	recs := recommend(in)
	require.Len(t, recs, 1)
	assert.Equal(t, RecommendTTL, recs[0].Type)
}

func TestRecommendDistributionUndersizedL1(t *testing.T) {
	in := recommendInput{
		slot:    TimeSeriesSlot{Operations: 100, HitRate: 0.8, ErrorRate: NoData, L1HitRate: 0.3, L2HitRate: 0.9, MemoryUsedPercent: NoData},
		lowHit:  0.7,
		minConf: 0.8,
	}
	recs := recommend(in)
	require.Len(t, recs, 1)
	assert.Equal(t, RecommendDistribution, recs[0].Type)
}

func TestTimeSeriesRetention(t *testing.T) {
	ts := newTimeSeries(time.Hour)
	now := time.Now()
	ts.append(TimeSeriesSlot{Time: now.Add(-2 * time.Hour)})
	ts.append(TimeSeriesSlot{Time: now.Add(-30 * time.Minute)})
	ts.append(TimeSeriesSlot{Time: now})

	assert.Equal(t, 2, ts.len())
	latest, ok := ts.latest()
	require.True(t, ok)
	assert.Equal(t, now, latest.Time)
}

func TestServiceRecordsDeleteAndInvalidate(t *testing.T) {
	eng, err := engine.New(context.Background(), nil, engine.WithLogger(logger.NewTestLogger()))
	require.NoError(t, err)
	defer eng.Close()

	svc := NewService(eng, WithLogger(logger.NewTestLogger()))
	defer svc.Close()

	ctx := context.Background()
	_, err = eng.Set(ctx, "user:1", "v", nil)
	require.NoError(t, err)
	_, err = eng.Delete(ctx, "user:1", nil)
	require.NoError(t, err)
	_, err = eng.Invalidate(ctx, "user:*", nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		ops := make(map[string]int)
		svc.mu.RLock()
		for _, evt := range svc.events {
			ops[evt.Op]++
		}
		svc.mu.RUnlock()
		return ops["set"] >= 1 && ops["delete"] >= 1 && ops["invalidate"] >= 1
	}, 2*time.Second, 10*time.Millisecond)

	// The invalidation record carries the pattern in the key slot so the
	// temporal buckets still see the activity.
	svc.mu.RLock()
	defer svc.mu.RUnlock()
	var sawPattern bool
	for _, evt := range svc.events {
		if evt.Op == "invalidate" && evt.Key == "user:*" {
			sawPattern = true
		}
	}
	assert.True(t, sawPattern)
}

func TestServiceCycleEndToEnd(t *testing.T) {
	eng, err := engine.New(context.Background(), nil, engine.WithLogger(logger.NewTestLogger()))
	require.NoError(t, err)
	defer eng.Close()

	svc := NewService(eng, WithLogger(logger.NewTestLogger()))
	defer svc.Close()

	ctx := context.Background()
	_, err = eng.Set(ctx, "user:1", "v", nil)
	require.NoError(t, err)
	var got string
	for i := 0; i < 8; i++ {
		found, err := eng.Get(ctx, "user:1", &got, nil)
		require.NoError(t, err)
		require.True(t, found)
	}
	found, err := eng.Get(ctx, "user:404", &got, nil)
	require.NoError(t, err)
	require.False(t, found)

	// Give the bus a moment to deliver the access events, then run one
	// cycle on demand. The slot counters come from engine stat deltas, so
	// they are visible regardless of event delivery.
	time.Sleep(50 * time.Millisecond)
	report := svc.Analyze()
	require.NotNil(t, report)
	assert.Equal(t, uint64(9), report.Slot.Operations)
	assert.Equal(t, uint64(8), report.Slot.Hits)
	assert.Equal(t, report.Slot.Hits+report.Slot.Misses, report.Slot.Operations)
	assert.GreaterOrEqual(t, report.Score, 0.0)
	assert.LessOrEqual(t, report.Score, 100.0)
	assert.Equal(t, 1, svc.series.len())
}
