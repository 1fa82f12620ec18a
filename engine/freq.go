package engine

import (
	"sync"
	"time"
)

type keyFreq struct {
	count      uint64
	lastAccess time.Time
}

// freqTracker counts per-key accesses for the frequency-based strategy and
// engine stats. Entries untouched for longer than maxAge are pruned by the
// engine's background loop so the map stays bounded.
type freqTracker struct {
	mu     sync.Mutex
	counts map[string]*keyFreq
	maxAge time.Duration
}

func newFreqTracker(maxAge time.Duration) *freqTracker {
	return &freqTracker{
		counts: make(map[string]*keyFreq),
		maxAge: maxAge,
	}
}

func (f *freqTracker) record(key string) {
	f.mu.Lock()
	if entry, ok := f.counts[key]; ok {
		entry.count++
		entry.lastAccess = time.Now()
	} else {
		f.counts[key] = &keyFreq{count: 1, lastAccess: time.Now()}
	}
	f.mu.Unlock()
}

func (f *freqTracker) count(key string) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if entry, ok := f.counts[key]; ok {
		return entry.count
	}
	return 0
}

func (f *freqTracker) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.counts)
}

func (f *freqTracker) prune(now time.Time) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	var pruned int
	for key, entry := range f.counts {
		if now.Sub(entry.lastAccess) > f.maxAge {
			delete(f.counts, key)
			pruned++
		}
	}
	return pruned
}
