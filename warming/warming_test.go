package warming

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Punky2280/dat-bitch-cartrita-sub015/config"
	"github.com/Punky2280/dat-bitch-cartrita-sub015/engine"
	"github.com/Punky2280/dat-bitch-cartrita-sub015/logger"
)

func patternWith(key string, events ...AccessEvent) AccessPattern {
	p := AccessPattern{Key: key, Events: events, Frequency: uint64(len(events))}
	if len(events) > 0 {
		p.LastAccess = events[len(events)-1].Time
	}
	return p
}

func hitsEvery(base time.Time, n int, spacing time.Duration) []AccessEvent {
	out := make([]AccessEvent, n)
	for i := range out {
		out[i] = AccessEvent{Op: "hit", Time: base.Add(time.Duration(i) * spacing)}
	}
	return out
}

func TestFrequencyAnalyzerPredictsFromMeanInterval(t *testing.T) {
	now := time.Now()
	// Five accesses, one per minute, the last one just now.
	events := hitsEvery(now.Add(-4*time.Minute), 5, time.Minute)
	p := patternWith("user:1", events...)

	pred := frequencyAnalyzer{}.Predict(p, now, time.Hour)
	require.NotNil(t, pred)
	assert.Equal(t, "frequency", pred.Strategy)
	assert.WithinDuration(t, now.Add(time.Minute), pred.PredictedTime, 2*time.Second)
	assert.InDelta(t, 0.5, pred.Confidence, 0.001)
}

func TestFrequencyAnalyzerRespectsLookAhead(t *testing.T) {
	now := time.Now()
	// Two accesses forty minutes apart predict a next access outside a
	// ten-minute look-ahead.
	events := []AccessEvent{
		{Op: "hit", Time: now.Add(-41 * time.Minute)},
		{Op: "hit", Time: now.Add(-time.Minute)},
	}
	p := patternWith("user:1", events...)
	assert.Nil(t, frequencyAnalyzer{}.Predict(p, now, 10*time.Minute))
}

func TestFrequencyAnalyzerNeedsTwoSamples(t *testing.T) {
	now := time.Now()
	p := patternWith("user:1", AccessEvent{Op: "hit", Time: now})
	assert.Nil(t, frequencyAnalyzer{}.Predict(p, now, time.Hour))
}

func TestReactiveAnalyzerWarmsRepeatedMisses(t *testing.T) {
	now := time.Now()
	p := patternWith("user:1",
		AccessEvent{Op: "miss", Time: now.Add(-10 * time.Minute)},
		AccessEvent{Op: "miss", Time: now.Add(-5 * time.Minute)},
		AccessEvent{Op: "miss", Time: now.Add(-time.Minute)},
	)
	pred := reactiveAnalyzer{}.Predict(p, now, time.Hour)
	require.NotNil(t, pred)
	assert.Equal(t, "reactive", pred.Strategy)
	assert.InDelta(t, 1.0, pred.Confidence, 0.001)
	assert.True(t, pred.PredictedTime.After(now))
}

func TestReactiveAnalyzerIgnoresSingleMiss(t *testing.T) {
	now := time.Now()
	p := patternWith("user:1", AccessEvent{Op: "miss", Time: now.Add(-time.Minute)})
	assert.Nil(t, reactiveAnalyzer{}.Predict(p, now, time.Hour))
}

func TestTemporalAnalyzerPredictsActiveHour(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	// All historical accesses happened around 10:00.
	var events []AccessEvent
	for day := 1; day <= 5; day++ {
		events = append(events, AccessEvent{
			Op:   "hit",
			Time: time.Date(2026, 3, day, 10, 15, 0, 0, time.UTC),
		})
	}
	p := patternWith("report:daily", events...)

	pred := temporalAnalyzer{}.Predict(p, now, 2*time.Hour)
	require.NotNil(t, pred)
	assert.Equal(t, 10, pred.PredictedTime.Hour())
	assert.True(t, pred.PredictedTime.After(now))
	assert.InDelta(t, 0.5, pred.Confidence, 0.001)
}

func TestExtensionAnalyzersReturnNothing(t *testing.T) {
	now := time.Now()
	p := patternWith("user:1", hitsEvery(now.Add(-time.Hour), 50, time.Minute)...)
	assert.Nil(t, userBehaviorAnalyzer{}.Predict(p, now, time.Hour))
	assert.Nil(t, contextualAnalyzer{}.Predict(p, now, time.Hour))
}

func TestSelectCandidatesGates(t *testing.T) {
	now := time.Now()
	preds := []Prediction{
		{Key: "in", Strategy: "reactive", PredictedTime: now.Add(time.Minute), Confidence: 0.9},
		{Key: "low-confidence", Strategy: "reactive", PredictedTime: now.Add(time.Minute), Confidence: 0.3},
		{Key: "too-far", Strategy: "reactive", PredictedTime: now.Add(time.Hour), Confidence: 0.9},
	}
	out := selectCandidates(preds, nil, now, 5*time.Minute, 0.6, nil, 10)
	require.Len(t, out, 1)
	assert.Equal(t, "in", out[0].Key)
}

func TestSelectCandidatesPriorityOrdering(t *testing.T) {
	now := time.Now()
	patterns := map[string]AccessPattern{
		"a": {Key: "a", Frequency: 50},
		"b": {Key: "b", Frequency: 5},
	}
	preds := []Prediction{
		{Key: "b", Strategy: "reactive", PredictedTime: now.Add(time.Minute), Confidence: 0.5},
		{Key: "a", Strategy: "reactive", PredictedTime: now.Add(time.Minute), Confidence: 0.9},
	}
	weights := map[string]float64{"reactive": 0.4}

	out := selectCandidates(preds, patterns, now, 5*time.Minute, 0.5, weights, 10)
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].Key)
	assert.Equal(t, "b", out[1].Key)
	assert.Greater(t, out[0].Priority, out[1].Priority)
}

func TestSelectCandidatesTruncatesAndCaps(t *testing.T) {
	now := time.Now()
	var preds []Prediction
	patterns := map[string]AccessPattern{}
	for _, key := range []string{"a", "b", "c", "d"} {
		preds = append(preds, Prediction{Key: key, Strategy: "x", PredictedTime: now, Confidence: 1})
		patterns[key] = AccessPattern{Key: key, Frequency: 100000}
	}
	weights := map[string]float64{"x": 1}

	out := selectCandidates(preds, patterns, now, 5*time.Minute, 0.6, weights, 2)
	require.Len(t, out, 2)
	for _, cand := range out {
		assert.LessOrEqual(t, cand.Priority, maxPriority)
	}
}

func TestPatternStoreRetentionAndGC(t *testing.T) {
	store := newPatternStore(time.Hour)
	now := time.Now()

	store.record("old", AccessEvent{Op: "hit", Time: now.Add(-2 * time.Hour)})
	store.record("fresh", AccessEvent{Op: "hit", Time: now.Add(-30 * time.Minute)})
	store.record("fresh", AccessEvent{Op: "hit", Time: now})
	require.Equal(t, 2, store.len())

	removed := store.gc(now)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, store.len())

	snap := store.snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "fresh", snap[0].Key)
	assert.Equal(t, uint64(2), snap[0].Frequency)
}

func TestPatternStorePrunesEventsOnUpdate(t *testing.T) {
	store := newPatternStore(time.Hour)
	now := time.Now()
	store.record("k", AccessEvent{Op: "hit", Time: now.Add(-3 * time.Hour)})
	store.record("k", AccessEvent{Op: "hit", Time: now})

	snap := store.snapshot()
	require.Len(t, snap, 1)
	// The stale event is gone but the lifetime frequency counter remains.
	assert.Len(t, snap[0].Events, 1)
	assert.Equal(t, uint64(2), snap[0].Frequency)
}

func newWarmingFixture(t *testing.T, gen Generator, mutate func(*config.Config)) (*engine.Engine, *Service) {
	t.Helper()
	cfg := config.Default()
	if mutate != nil {
		mutate(cfg)
	}
	eng, err := engine.New(context.Background(), cfg, engine.WithLogger(logger.NewTestLogger()))
	require.NoError(t, err)
	svc, err := NewService(context.Background(), eng, gen, WithLogger(logger.NewTestLogger()))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, svc.Close())
		assert.NoError(t, eng.Close())
	})
	return eng, svc
}

func TestServiceWarmsMissedKey(t *testing.T) {
	var calls atomic.Int64
	gen := func(_ context.Context, key string) (any, error) {
		calls.Add(1)
		return "warmed:" + key, nil
	}
	eng, svc := newWarmingFixture(t, gen, nil)
	now := time.Now()

	// Two recent misses qualify the key for a reactive warm.
	svc.store.record("user:9", AccessEvent{Op: "miss", Time: now.Add(-2 * time.Minute)})
	svc.store.record("user:9", AccessEvent{Op: "miss", Time: now.Add(-time.Minute)})

	preds := svc.Analyze(now)
	require.NotEmpty(t, preds)
	svc.warmCycle(now)

	assert.EqualValues(t, 1, calls.Load())
	assert.InDelta(t, 1.0, svc.Accuracy(), 0.001)

	var got string
	found, err := eng.Get(context.Background(), "user:9", &got, nil)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "warmed:user:9", got)
}

func TestServiceSkipsResidentKey(t *testing.T) {
	var calls atomic.Int64
	gen := func(_ context.Context, key string) (any, error) {
		calls.Add(1)
		return key, nil
	}
	eng, svc := newWarmingFixture(t, gen, nil)
	ctx := context.Background()
	now := time.Now()

	_, err := eng.Set(ctx, "user:9", "already here", nil)
	require.NoError(t, err)

	svc.store.record("user:9", AccessEvent{Op: "miss", Time: now.Add(-2 * time.Minute)})
	svc.store.record("user:9", AccessEvent{Op: "miss", Time: now.Add(-time.Minute)})
	svc.Analyze(now)
	svc.warmCycle(now)

	assert.EqualValues(t, 0, calls.Load())
	assert.Zero(t, svc.Accuracy())
}

func TestServiceCountsGenerationFailure(t *testing.T) {
	gen := func(_ context.Context, key string) (any, error) {
		return nil, errors.New("backend down")
	}
	eng, svc := newWarmingFixture(t, gen, nil)
	now := time.Now()

	svc.store.record("user:9", AccessEvent{Op: "miss", Time: now.Add(-2 * time.Minute)})
	svc.store.record("user:9", AccessEvent{Op: "miss", Time: now.Add(-time.Minute)})
	svc.Analyze(now)
	svc.warmCycle(now)

	assert.Zero(t, svc.Accuracy())
	assert.False(t, eng.L1Has("user:9"))
}

func TestServiceAdaptiveSkipsOnHighHitRate(t *testing.T) {
	var calls atomic.Int64
	gen := func(_ context.Context, key string) (any, error) {
		calls.Add(1)
		return key, nil
	}
	eng, svc := newWarmingFixture(t, gen, func(cfg *config.Config) {
		cfg.Warming.Adaptive = true
	})
	ctx := context.Background()
	now := time.Now()

	// Drive the engine hit rate above the adaptive bar.
	_, err := eng.Set(ctx, "hot", "v", nil)
	require.NoError(t, err)
	var got string
	for i := 0; i < 10; i++ {
		found, err := eng.Get(ctx, "hot", &got, nil)
		require.NoError(t, err)
		require.True(t, found)
	}

	svc.store.record("user:9", AccessEvent{Op: "miss", Time: now.Add(-2 * time.Minute)})
	svc.store.record("user:9", AccessEvent{Op: "miss", Time: now.Add(-time.Minute)})
	svc.Analyze(now)
	svc.warmCycle(now)

	assert.EqualValues(t, 0, calls.Load())
}

func TestLowConfidencePredictionsNeverExecute(t *testing.T) {
	var calls atomic.Int64
	gen := func(_ context.Context, key string) (any, error) {
		calls.Add(1)
		return key, nil
	}
	_, svc := newWarmingFixture(t, gen, func(cfg *config.Config) {
		cfg.Warming.MinConfidence = 0.9
	})
	now := time.Now()

	// Two misses give the reactive analyzer confidence ~0.67, below 0.9.
	svc.store.record("user:9", AccessEvent{Op: "miss", Time: now.Add(-2 * time.Minute)})
	svc.store.record("user:9", AccessEvent{Op: "miss", Time: now.Add(-time.Minute)})
	preds := svc.Analyze(now)
	require.NotEmpty(t, preds)
	svc.warmCycle(now)

	assert.EqualValues(t, 0, calls.Load())
}
