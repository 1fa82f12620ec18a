package analytics

import (
	"sync"
	"time"
)

// TimeSeriesSlot is one per-minute aggregation bucket. Fields without data
// for the slot carry the negative sentinel so downstream consumers can tell
// "no data" from a genuine zero.
type TimeSeriesSlot struct {
	Time              time.Time
	Operations        uint64
	Hits              uint64
	Misses            uint64
	HitRate           float64
	L1HitRate         float64
	L2HitRate         float64
	AvgLatency        time.Duration
	Errors            uint64
	ErrorRate         float64
	MemoryUsedPercent float64
}

// NoData marks a slot field that had no observations this cycle.
const NoData = -1

// timeSeries holds the retained slots, newest last.
type timeSeries struct {
	mu        sync.RWMutex
	slots     []TimeSeriesSlot
	retention time.Duration
}

func newTimeSeries(retention time.Duration) *timeSeries {
	return &timeSeries{retention: retention}
}

// append adds a slot and prunes everything older than the retention window.
func (ts *timeSeries) append(slot TimeSeriesSlot) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.slots = append(ts.slots, slot)
	cutoff := slot.Time.Add(-ts.retention)
	idx := 0
	for idx < len(ts.slots) && ts.slots[idx].Time.Before(cutoff) {
		idx++
	}
	if idx > 0 {
		ts.slots = append(ts.slots[:0], ts.slots[idx:]...)
	}
}

// latest returns the most recent slot, if any.
func (ts *timeSeries) latest() (TimeSeriesSlot, bool) {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	if len(ts.slots) == 0 {
		return TimeSeriesSlot{}, false
	}
	return ts.slots[len(ts.slots)-1], true
}

// recent returns up to n most recent slots, oldest first.
func (ts *timeSeries) recent(n int) []TimeSeriesSlot {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	if n <= 0 || n > len(ts.slots) {
		n = len(ts.slots)
	}
	out := make([]TimeSeriesSlot, n)
	copy(out, ts.slots[len(ts.slots)-n:])
	return out
}

func (ts *timeSeries) len() int {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return len(ts.slots)
}
