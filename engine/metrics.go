package engine

import (
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/mem"
)

type tierCounters struct {
	hits     uint64
	misses   uint64
	sets     uint64
	deletes  uint64
	errors   uint64
	latCount uint64
	latSum   time.Duration
	latMin   time.Duration
	latMax   time.Duration
}

func (c *tierCounters) recordLatency(d time.Duration) {
	c.latCount++
	c.latSum += d
	if c.latMin == 0 || d < c.latMin {
		c.latMin = d
	}
	if d > c.latMax {
		c.latMax = d
	}
}

// metrics holds process-wide per-tier counters, reset only on restart.
// A single mutex guards the aggregate; every record call is a short
// critical section so in-flight reads never observe a torn update.
type metrics struct {
	mu         sync.Mutex
	tiers      [tierCount]tierCounters
	fullMisses uint64
}

func newMetrics() *metrics {
	return &metrics{}
}

func (m *metrics) recordHit(tier TierID, d time.Duration) {
	m.mu.Lock()
	m.tiers[tier].hits++
	m.tiers[tier].recordLatency(d)
	m.mu.Unlock()
}

func (m *metrics) recordMiss(tier TierID, d time.Duration) {
	m.mu.Lock()
	m.tiers[tier].misses++
	m.tiers[tier].recordLatency(d)
	m.mu.Unlock()
}

// recordFullMiss counts a get that missed every consulted tier. Exactly one
// of recordHit/recordFullMiss fires per Get, so hits + full misses equals
// total operations.
func (m *metrics) recordFullMiss() {
	m.mu.Lock()
	m.fullMisses++
	m.mu.Unlock()
}

func (m *metrics) recordSet(tier TierID, d time.Duration) {
	m.mu.Lock()
	m.tiers[tier].sets++
	m.tiers[tier].recordLatency(d)
	m.mu.Unlock()
}

func (m *metrics) recordDelete(tier TierID) {
	m.mu.Lock()
	m.tiers[tier].deletes++
	m.mu.Unlock()
}

func (m *metrics) recordError(tier TierID) {
	m.mu.Lock()
	m.tiers[tier].errors++
	m.mu.Unlock()
}

// TierStats is a read-only snapshot of one tier's counters.
type TierStats struct {
	Hits       uint64
	Misses     uint64
	Sets       uint64
	Deletes    uint64
	Errors     uint64
	AvgLatency time.Duration
	MinLatency time.Duration
	MaxLatency time.Duration
}

// HitRate is the tier-local hit ratio in [0,1].
func (s TierStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Stats is a point-in-time snapshot of engine-wide state.
type Stats struct {
	// Hits across all tiers; Misses counts gets that missed everywhere.
	Hits       uint64
	Misses     uint64
	Operations uint64
	HitRate    float64

	L1 TierStats
	L2 TierStats
	L3 TierStats

	L1Entries   int
	L1SizeBytes int64
	TrackedKeys int
	QueueDepth  int

	// MemoryUsedPercent is the host memory utilization at snapshot time,
	// in [0,1]. Negative when unavailable.
	MemoryUsedPercent float64
}

func (m *metrics) snapshot() (l1, l2, l3 TierStats, hits, fullMisses uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := [tierCount]TierStats{}
	for i := range m.tiers {
		c := &m.tiers[i]
		stats[i] = TierStats{
			Hits:       c.hits,
			Misses:     c.misses,
			Sets:       c.sets,
			Deletes:    c.deletes,
			Errors:     c.errors,
			MinLatency: c.latMin,
			MaxLatency: c.latMax,
		}
		if c.latCount > 0 {
			stats[i].AvgLatency = c.latSum / time.Duration(c.latCount)
		}
		hits += c.hits
	}
	return stats[L1], stats[L2], stats[L3], hits, m.fullMisses
}

// memoryUsedPercent samples host memory utilization. Returns -1 when the
// platform probe fails so callers can distinguish "no data" from 0%.
func memoryUsedPercent() float64 {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return -1
	}
	return vm.UsedPercent / 100
}
