package warming

import (
	"time"
)

// Prediction is one analyzer's forecast for a key. Predictions are
// recomputed every analysis cycle; a new cycle's output supersedes the
// previous one entirely.
type Prediction struct {
	Key           string
	Strategy      string
	PredictedTime time.Time
	Confidence    float64
	SuggestedTTL  time.Duration
}

// Analyzer inspects one key's access pattern and optionally forecasts its
// next access. lookAhead bounds how far into the future a forecast may
// reach.
type Analyzer interface {
	Name() string
	Predict(p AccessPattern, now time.Time, lookAhead time.Duration) *Prediction
}

// temporalAnalyzer forecasts renewed access at the next occurrence of the
// key's historically most active hour.
type temporalAnalyzer struct{}

func (temporalAnalyzer) Name() string { return "temporal" }

func (temporalAnalyzer) Predict(p AccessPattern, now time.Time, lookAhead time.Duration) *Prediction {
	if len(p.Events) == 0 {
		return nil
	}
	var hourCounts [24]int
	for _, evt := range p.Events {
		hourCounts[evt.Time.Hour()]++
	}
	bestHour, bestCount := 0, 0
	for hour, count := range hourCounts {
		if count > bestCount {
			bestHour, bestCount = hour, count
		}
	}
	if bestCount == 0 {
		return nil
	}

	next := time.Date(now.Year(), now.Month(), now.Day(), bestHour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	if next.After(now.Add(lookAhead)) {
		return nil
	}
	return &Prediction{
		Key:           p.Key,
		Strategy:      "temporal",
		PredictedTime: next,
		Confidence:    capConfidence(float64(bestCount) / 10),
		SuggestedTTL:  time.Hour,
	}
}

// frequencyAnalyzer forecasts the next access from the mean inter-access
// interval over the trailing hour.
type frequencyAnalyzer struct{}

func (frequencyAnalyzer) Name() string { return "frequency" }

func (frequencyAnalyzer) Predict(p AccessPattern, now time.Time, lookAhead time.Duration) *Prediction {
	cutoff := now.Add(-time.Hour)
	var times []time.Time
	for _, evt := range p.Events {
		if evt.Time.After(cutoff) {
			times = append(times, evt.Time)
		}
	}
	if len(times) < 2 {
		return nil
	}
	var sum time.Duration
	for i := 1; i < len(times); i++ {
		sum += times[i].Sub(times[i-1])
	}
	mean := sum / time.Duration(len(times)-1)
	if mean <= 0 {
		return nil
	}

	predicted := p.LastAccess.Add(mean)
	if predicted.After(now.Add(lookAhead)) {
		return nil
	}
	return &Prediction{
		Key:           p.Key,
		Strategy:      "frequency",
		PredictedTime: predicted,
		Confidence:    capConfidence(float64(len(times)) / 10),
		SuggestedTTL:  2 * mean,
	}
}

// reactiveAnalyzer forecasts a near-term warm for keys that keep missing.
type reactiveAnalyzer struct{}

const (
	reactiveMissFloor = 2
	reactiveLead      = time.Minute
)

func (reactiveAnalyzer) Name() string { return "reactive" }

func (reactiveAnalyzer) Predict(p AccessPattern, now time.Time, _ time.Duration) *Prediction {
	misses := p.missCount(now, time.Hour)
	if misses < reactiveMissFloor {
		return nil
	}
	return &Prediction{
		Key:           p.Key,
		Strategy:      "reactive",
		PredictedTime: now.Add(reactiveLead),
		Confidence:    capConfidence(float64(misses) / 3),
		SuggestedTTL:  5 * time.Minute,
	}
}

// userBehaviorAnalyzer is an extension point. It yields nothing until a
// session data source is attached.
type userBehaviorAnalyzer struct{}

func (userBehaviorAnalyzer) Name() string { return "user-behavior" }

func (userBehaviorAnalyzer) Predict(AccessPattern, time.Time, time.Duration) *Prediction { return nil }

// contextualAnalyzer is an extension point mirroring userBehaviorAnalyzer.
type contextualAnalyzer struct{}

func (contextualAnalyzer) Name() string { return "contextual" }

func (contextualAnalyzer) Predict(AccessPattern, time.Time, time.Duration) *Prediction { return nil }

func defaultAnalyzers() []Analyzer {
	return []Analyzer{
		temporalAnalyzer{},
		frequencyAnalyzer{},
		reactiveAnalyzer{},
		userBehaviorAnalyzer{},
		contextualAnalyzer{},
	}
}

func capConfidence(v float64) float64 {
	if v > 1 {
		return 1
	}
	return v
}
