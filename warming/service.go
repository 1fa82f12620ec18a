package warming

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/semaphore"

	"github.com/Punky2280/dat-bitch-cartrita-sub015/config"
	"github.com/Punky2280/dat-bitch-cartrita-sub015/engine"
	"github.com/Punky2280/dat-bitch-cartrita-sub015/eventing"
	"github.com/Punky2280/dat-bitch-cartrita-sub015/logger"
)

// ErrGeneration marks a value-generation hook failure during warming.
var ErrGeneration = errors.New("warming: value generation failed")

// Generator produces the value for a key being warmed. It is supplied by
// the application; the service never invents values.
type Generator func(ctx context.Context, key string) (any, error)

// Service watches the engine's access stream, maintains per-key access
// patterns, and warms confident near-term predictions. Cycle failures are
// logged and do not stop subsequent cycles.
type Service struct {
	engine    *engine.Engine
	cfg       *config.WarmingConfig
	log       logger.Logger
	analyzers []Analyzer
	store     *patternStore
	gen       Generator
	sem       *semaphore.Weighted

	mu          sync.RWMutex
	predictions []Prediction
	total       uint64
	successful  uint64

	ctx       context.Context
	cancel    context.CancelFunc
	sub       eventing.Subscriber
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the service logger.
func WithLogger(log logger.Logger) ServiceOption {
	return func(s *Service) { s.log = log }
}

// WithAnalyzers replaces the default analyzer set.
func WithAnalyzers(analyzers ...Analyzer) ServiceOption {
	return func(s *Service) { s.analyzers = analyzers }
}

// NewService attaches a warming service to a running engine and starts its
// analysis and warming loops. gen is required: warming without a value
// source has nothing to write.
func NewService(parent context.Context, eng *engine.Engine, gen Generator, opts ...ServiceOption) (*Service, error) {
	if gen == nil {
		return nil, errors.New("warming: generator is required")
	}
	cfg := &eng.Config().Warming
	ctx, cancel := context.WithCancel(parent)
	s := &Service{
		engine:    eng,
		cfg:       cfg,
		analyzers: defaultAnalyzers(),
		store:     newPatternStore(cfg.Retention.D()),
		gen:       gen,
		sem:       semaphore.NewWeighted(int64(cfg.MaxConcurrentWarmups)),
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.NewConsoleLogger()
	}
	s.log = s.log.WithPrefix("[warming]")

	s.sub = eng.Bus().Subscribe(s.onEvent,
		eventing.CacheAccessed, eventing.CacheUpdated)

	s.wg.Add(2)
	go s.analysisLoop()
	go s.warmingLoop()
	return s, nil
}

func (s *Service) onEvent(evt eventing.Event) {
	record := AccessEvent{
		Tier:    evt.Tier,
		Latency: evt.Latency,
		Time:    evt.Time,
	}
	switch evt.Type {
	case eventing.CacheAccessed:
		record.Op = string(evt.Operation)
	case eventing.CacheUpdated:
		record.Op = string(eventing.OpSet)
	default:
		return
	}
	s.store.record(evt.Key, record)
}

func (s *Service) analysisLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.PatternAnalysisInterval.D())
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.Analyze(time.Now())
		}
	}
}

func (s *Service) warmingLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.WarmingInterval.D())
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.warmCycle(time.Now())
		}
	}
}

// Analyze runs every analyzer over every live pattern and replaces the
// prediction set wholesale. Superseded predictions are discarded, not
// merged. It also garbage-collects stale patterns.
func (s *Service) Analyze(now time.Time) []Prediction {
	if removed := s.store.gc(now); removed > 0 {
		s.log.Debug("dropped %d stale access patterns", removed)
	}

	lookAhead := s.cfg.LookAhead.D()
	var predictions []Prediction
	for _, p := range s.store.snapshot() {
		for _, a := range s.analyzers {
			if pred := a.Predict(p, now, lookAhead); pred != nil {
				predictions = append(predictions, *pred)
			}
		}
	}

	s.mu.Lock()
	s.predictions = predictions
	s.mu.Unlock()
	return predictions
}

// warmCycle selects and executes this cycle's candidates. Under adaptive
// mode the whole cycle is skipped while the engine's hit rate is already
// above the configured bar.
func (s *Service) warmCycle(now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("warming cycle panicked: %v", r)
		}
	}()

	if s.cfg.Adaptive {
		if rate := s.engine.HitRate(); rate > s.cfg.AdaptiveHitRate {
			s.log.Trace("hit rate %.2f above %.2f, skipping warming cycle", rate, s.cfg.AdaptiveHitRate)
			return
		}
	}

	s.mu.RLock()
	predictions := s.predictions
	s.mu.RUnlock()
	if len(predictions) == 0 {
		return
	}

	patterns := make(map[string]AccessPattern)
	for _, p := range s.store.snapshot() {
		patterns[p.Key] = p
	}
	candidates := selectCandidates(predictions, patterns, now,
		s.cfg.Horizon.D(), s.cfg.MinConfidence, s.cfg.StrategyWeights, s.cfg.MaxBatchSize)
	if len(candidates) == 0 {
		return
	}

	var wg sync.WaitGroup
	warmed := 0
	for _, cand := range candidates {
		evt := eventing.NewEvent(eventing.PrefetchSuggested)
		evt.Key = cand.Key
		s.engine.Bus().Publish(evt)

		if err := s.sem.Acquire(s.ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		warmed++
		go func(cand Candidate) {
			defer wg.Done()
			defer s.sem.Release(1)
			s.warmOne(cand)
		}(cand)
	}
	wg.Wait()

	done := eventing.NewEvent(eventing.WarmingComplete)
	done.Count = warmed
	s.engine.Bus().Publish(done)
	s.log.Debug("warming cycle complete: %d candidates executed, accuracy %.2f", warmed, s.Accuracy())
}

// warmOne loads and stores a single candidate unless the key is already
// resident. A generation failure is counted against accuracy and not
// retried within the cycle.
func (s *Service) warmOne(cand Candidate) {
	if s.engine.L1Has(cand.Key) {
		return
	}

	val, err := s.gen(s.ctx, cand.Key)
	s.mu.Lock()
	s.total++
	s.mu.Unlock()
	if err != nil {
		s.log.Warn("warmup of %q failed: %v", cand.Key, errors.Mark(err, ErrGeneration))
		return
	}

	ttl := cand.Prediction.SuggestedTTL
	result, serr := s.engine.Set(s.ctx, cand.Key, val, &engine.SetOptions{
		Strategy: engine.Predictive,
		L1TTL:    ttl,
		L2TTL:    ttl,
		L3TTL:    ttl,
	})
	if serr != nil || result.AllFailed() {
		s.log.Warn("warmup store of %q failed: %v", cand.Key, serr)
		return
	}

	s.mu.Lock()
	s.successful++
	s.mu.Unlock()
}

// Accuracy is the running ratio of successful warmups to attempts, in
// [0,1]. Zero before any warmup has run.
func (s *Service) Accuracy() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.total == 0 {
		return 0
	}
	return float64(s.successful) / float64(s.total)
}

// Predictions returns the most recent analysis cycle's output.
func (s *Service) Predictions() []Prediction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Prediction, len(s.predictions))
	copy(out, s.predictions)
	return out
}

// TrackedKeys reports how many per-key patterns are currently live.
func (s *Service) TrackedKeys() int {
	return s.store.len()
}

// Close stops both loops and detaches from the event bus.
func (s *Service) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		s.wg.Wait()
		s.sub.Close()
	})
	return nil
}
