// Package warming predicts which keys will be requested soon and populates
// the cache ahead of demand. Per-key access history feeds a set of
// analyzers; confident, near-term predictions become warming candidates
// executed under a bounded concurrency budget.
package warming

import (
	"sync"
	"time"
)

// AccessEvent is one observed operation on a key.
type AccessEvent struct {
	Op      string
	Tier    string
	Latency time.Duration
	Time    time.Time
}

// AccessPattern is the retained history for one key. Events are pruned to
// the retention window on every update.
type AccessPattern struct {
	Key        string
	Events     []AccessEvent
	Frequency  uint64
	LastAccess time.Time
}

// recentCount returns the number of events in the trailing window ending
// at now.
func (p *AccessPattern) recentCount(now time.Time, window time.Duration) int {
	cutoff := now.Add(-window)
	n := 0
	for _, evt := range p.Events {
		if evt.Time.After(cutoff) {
			n++
		}
	}
	return n
}

// missCount returns the number of misses in the trailing window.
func (p *AccessPattern) missCount(now time.Time, window time.Duration) int {
	cutoff := now.Add(-window)
	n := 0
	for _, evt := range p.Events {
		if evt.Op == "miss" && evt.Time.After(cutoff) {
			n++
		}
	}
	return n
}

// patternStore holds per-key patterns plus one aggregate pattern under the
// empty key. Stale patterns are garbage-collected, not just their events.
type patternStore struct {
	mu        sync.RWMutex
	patterns  map[string]*AccessPattern
	global    *AccessPattern
	retention time.Duration
}

func newPatternStore(retention time.Duration) *patternStore {
	return &patternStore{
		patterns:  make(map[string]*AccessPattern),
		global:    &AccessPattern{},
		retention: retention,
	}
}

// record appends an event to the key's pattern and the global pattern,
// pruning both to the retention window.
func (ps *patternStore) record(key string, evt AccessEvent) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	p, ok := ps.patterns[key]
	if !ok {
		p = &AccessPattern{Key: key}
		ps.patterns[key] = p
	}
	appendPruned(p, evt, ps.retention)
	appendPruned(ps.global, evt, ps.retention)
}

func appendPruned(p *AccessPattern, evt AccessEvent, retention time.Duration) {
	p.Events = append(p.Events, evt)
	p.Frequency++
	p.LastAccess = evt.Time
	cutoff := evt.Time.Add(-retention)
	idx := 0
	for idx < len(p.Events) && p.Events[idx].Time.Before(cutoff) {
		idx++
	}
	if idx > 0 {
		p.Events = append(p.Events[:0], p.Events[idx:]...)
	}
}

// snapshot returns copies of all live patterns so analyzers can work
// without holding the store lock.
func (ps *patternStore) snapshot() []AccessPattern {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	out := make([]AccessPattern, 0, len(ps.patterns))
	for _, p := range ps.patterns {
		cp := *p
		cp.Events = make([]AccessEvent, len(p.Events))
		copy(cp.Events, p.Events)
		out = append(out, cp)
	}
	return out
}

// gc drops patterns whose last access fell out of the retention window.
func (ps *patternStore) gc(now time.Time) int {
	cutoff := now.Add(-ps.retention)
	ps.mu.Lock()
	defer ps.mu.Unlock()
	removed := 0
	for key, p := range ps.patterns {
		if p.LastAccess.Before(cutoff) {
			delete(ps.patterns, key)
			removed++
		}
	}
	return removed
}

func (ps *patternStore) len() int {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return len(ps.patterns)
}
