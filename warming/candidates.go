package warming

import (
	"sort"
	"time"
)

// Candidate is a prediction that qualified for execution this cycle. It is
// derived fresh each cycle and never stored.
type Candidate struct {
	Key        string
	Prediction Prediction
	Priority   float64
}

// maxPriority caps the scaled priority so one strategy weight cannot
// dominate the batch unboundedly.
const maxPriority = 2.0

// priority ranks a prediction by confidence, historical frequency, and
// recent activity, scaled by the configured weight for the strategy that
// produced it.
func priority(pred Prediction, frequency uint64, recent int, strategyWeight float64) float64 {
	p := pred.Confidence +
		float64(frequency)/1000*0.2 +
		float64(recent)/10*0.1
	p *= 1 + strategyWeight
	if p > maxPriority {
		p = maxPriority
	}
	return p
}

// selectCandidates filters predictions down to those confident enough and
// near enough to act on, ranks them, and truncates to the batch size.
func selectCandidates(
	predictions []Prediction,
	patterns map[string]AccessPattern,
	now time.Time,
	horizon time.Duration,
	minConfidence float64,
	weights map[string]float64,
	maxBatch int,
) []Candidate {
	var out []Candidate
	deadline := now.Add(horizon)
	for _, pred := range predictions {
		if pred.Confidence < minConfidence {
			continue
		}
		if pred.PredictedTime.After(deadline) {
			continue
		}
		p := patterns[pred.Key]
		out = append(out, Candidate{
			Key:        pred.Key,
			Prediction: pred,
			Priority:   priority(pred, p.Frequency, p.recentCount(now, time.Hour), weights[pred.Strategy]),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	if maxBatch > 0 && len(out) > maxBatch {
		out = out[:maxBatch]
	}
	return out
}
