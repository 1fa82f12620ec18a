package analytics

import (
	"sync"
	"time"

	"github.com/Punky2280/dat-bitch-cartrita-sub015/config"
	"github.com/Punky2280/dat-bitch-cartrita-sub015/engine"
	"github.com/Punky2280/dat-bitch-cartrita-sub015/eventing"
	"github.com/Punky2280/dat-bitch-cartrita-sub015/logger"
)

// Service observes the engine's event stream and metric snapshots, and
// re-derives patterns, recommendations, alerts, and the optimization score
// every analysis interval. A failing cycle is logged and does not stop the
// loop.
type Service struct {
	engine    *engine.Engine
	cfg       *config.AnalyticsConfig
	log       logger.Logger
	detectors []Detector
	series    *timeSeries

	mu         sync.RWMutex
	events     []AccessEvent
	lastReport *Report
	prevStats  engine.Stats

	sub       eventing.Subscriber
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the service logger.
func WithLogger(log logger.Logger) ServiceOption {
	return func(s *Service) { s.log = log }
}

// WithDetectors replaces the default detector set.
func WithDetectors(detectors ...Detector) ServiceOption {
	return func(s *Service) { s.detectors = detectors }
}

// NewService attaches an analytics service to a running engine and starts
// its analysis loop.
func NewService(eng *engine.Engine, opts ...ServiceOption) *Service {
	cfg := &eng.Config().Analytics
	s := &Service{
		engine:    eng,
		cfg:       cfg,
		detectors: defaultDetectors(),
		series:    newTimeSeries(cfg.Retention.D()),
		prevStats: eng.Stats(),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.NewConsoleLogger()
	}
	s.log = s.log.WithPrefix("[analytics]")

	s.sub = eng.Bus().Subscribe(s.onEvent,
		eventing.CacheAccessed, eventing.CacheUpdated,
		eventing.CacheDeleted, eventing.CacheInvalidated)

	s.wg.Add(1)
	go s.loop()
	return s
}

func (s *Service) onEvent(evt eventing.Event) {
	record := AccessEvent{
		Key:     evt.Key,
		Size:    evt.Size,
		Latency: evt.Latency,
		Time:    evt.Time,
	}
	switch evt.Type {
	case eventing.CacheAccessed:
		record.Op = string(evt.Operation)
	case eventing.CacheUpdated:
		record.Op = string(eventing.OpSet)
	case eventing.CacheDeleted:
		record.Op = string(eventing.OpDelete)
	case eventing.CacheInvalidated:
		record.Op = "invalidate"
		record.Key = evt.Pattern
	default:
		return
	}
	s.mu.Lock()
	s.events = append(s.events, record)
	s.mu.Unlock()
}

func (s *Service) loop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.AnalysisInterval.D())
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.runCycle(time.Now())
		}
	}
}

// runCycle executes one full analysis pass: snapshot, prune, detect,
// recommend, alert, score.
func (s *Service) runCycle(now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("analysis cycle panicked: %v", r)
		}
	}()

	stats := s.engine.Stats()
	snap := s.pruneAndSnapshot(now)
	slot := s.buildSlot(now, stats, snap)
	s.series.append(slot)

	var patterns []Pattern
	for _, det := range s.detectors {
		patterns = append(patterns, det.Detect(snap)...)
	}

	recs := recommend(recommendInput{
		slot:     slot,
		patterns: patterns,
		snap:     snap,
		lowHit:   s.cfg.LowHitRate,
		minConf:  s.cfg.MinConfidence,
	})
	alerts := evaluateAlerts(slot, s.cfg)
	score := optimizationScore(slot)

	report := &Report{
		Slot:            slot,
		Patterns:        patterns,
		Recommendations: recs,
		Alerts:          alerts,
		Score:           score,
		Time:            now,
	}
	s.mu.Lock()
	s.lastReport = report
	s.prevStats = stats
	s.mu.Unlock()

	evt := eventing.NewEvent(eventing.AnalyticsComplete)
	evt.Count = len(patterns)
	s.engine.Bus().Publish(evt)

	s.log.Debug("cycle complete: %d patterns, %d recommendations, %d alerts, score %.1f",
		len(patterns), len(recs), len(alerts), score)
}

// pruneAndSnapshot drops events older than the retention window and copies
// the survivors for detector use outside the lock.
func (s *Service) pruneAndSnapshot(now time.Time) Snapshot {
	cutoff := now.Add(-s.cfg.Retention.D())
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.events[:0]
	for _, evt := range s.events {
		if evt.Time.After(cutoff) {
			kept = append(kept, evt)
		}
	}
	s.events = kept
	out := make([]AccessEvent, len(kept))
	copy(out, kept)
	return Snapshot{Events: out, Now: now}
}

// buildSlot derives the per-cycle slot from the delta between cumulative
// engine counters.
func (s *Service) buildSlot(now time.Time, stats engine.Stats, snap Snapshot) TimeSeriesSlot {
	s.mu.RLock()
	prev := s.prevStats
	s.mu.RUnlock()

	slot := TimeSeriesSlot{
		Time:              now,
		Hits:              stats.Hits - prev.Hits,
		Misses:            stats.Misses - prev.Misses,
		HitRate:           NoData,
		L1HitRate:         NoData,
		L2HitRate:         NoData,
		ErrorRate:         NoData,
		MemoryUsedPercent: NoData,
	}
	slot.Operations = slot.Hits + slot.Misses
	if slot.Operations > 0 {
		slot.HitRate = float64(slot.Hits) / float64(slot.Operations)
	}

	if rate, ok := tierRateDelta(stats.L1, prev.L1); ok {
		slot.L1HitRate = rate
	}
	if rate, ok := tierRateDelta(stats.L2, prev.L2); ok {
		slot.L2HitRate = rate
	}

	slot.Errors = (stats.L1.Errors + stats.L2.Errors + stats.L3.Errors) -
		(prev.L1.Errors + prev.L2.Errors + prev.L3.Errors)
	if slot.Operations > 0 {
		slot.ErrorRate = float64(slot.Errors) / float64(slot.Operations)
	}

	var latSum time.Duration
	var latN int
	cycleStart := now.Add(-s.cfg.AnalysisInterval.D())
	for _, evt := range snap.Events {
		if evt.Latency > 0 && evt.Time.After(cycleStart) {
			latSum += evt.Latency
			latN++
		}
	}
	if latN > 0 {
		slot.AvgLatency = latSum / time.Duration(latN)
	}

	if stats.MemoryUsedPercent >= 0 {
		slot.MemoryUsedPercent = stats.MemoryUsedPercent
	}
	return slot
}

func tierRateDelta(cur, prev engine.TierStats) (float64, bool) {
	hits := cur.Hits - prev.Hits
	misses := cur.Misses - prev.Misses
	if hits+misses == 0 {
		return 0, false
	}
	return float64(hits) / float64(hits+misses), true
}

// Report returns the output of the most recent cycle, or nil before the
// first cycle has run.
func (s *Service) Report() *Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastReport
}

// Series returns up to n recent time series slots, oldest first.
func (s *Service) Series(n int) []TimeSeriesSlot {
	return s.series.recent(n)
}

// Analyze runs one cycle immediately, outside the timer. Used by callers
// that want fresh output on demand.
func (s *Service) Analyze() *Report {
	s.runCycle(time.Now())
	return s.Report()
}

// Close stops the loop and detaches from the event bus.
func (s *Service) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.wg.Wait()
		s.sub.Close()
	})
	return nil
}
