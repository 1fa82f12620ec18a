// Package engine composes the in-process L1 tier with optional remote (L2)
// and persistent (L3) tiers behind a single get/set/delete/invalidate
// surface. Per-tier failures degrade the call, never fail it: callers see
// either a value or an explicit miss, and operators see tier health and
// error counters through HealthCheck and Stats.
package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"

	"github.com/Punky2280/dat-bitch-cartrita-sub015/cache"
	"github.com/Punky2280/dat-bitch-cartrita-sub015/config"
	"github.com/Punky2280/dat-bitch-cartrita-sub015/eventing"
	"github.com/Punky2280/dat-bitch-cartrita-sub015/logger"
)

// Engine is the tiered cache. L1 is always present; L2 and L3 are each
// either enabled for the lifetime of the process or disabled, with the
// boolean re-evaluated only by an explicit HealthCheck call.
type Engine struct {
	ctx     context.Context
	cancel  context.CancelFunc
	cfg     *config.Config
	log     logger.Logger
	bus     *eventing.Bus
	ownsBus bool
	codec   *cache.Codec

	l1 *cache.Memory
	l2 cache.Tier
	l3 cache.Tier

	l2Enabled atomic.Bool
	l3Enabled atomic.Bool

	metrics   *metrics
	freq      *freqTracker
	writeBack *writeBackQueue

	wg        sync.WaitGroup
	closeOnce sync.Once
}

// Option configures an Engine at construction.
type Option func(*Engine)

// WithLogger sets the engine's logger. Defaults to a console logger.
func WithLogger(log logger.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithBus sets the event bus lifecycle events are published to. The caller
// owns the bus; Close does not touch it.
func WithBus(bus *eventing.Bus) Option {
	return func(e *Engine) { e.bus = bus }
}

// WithL2 attaches a remote cache tier.
func WithL2(tier cache.Tier) Option {
	return func(e *Engine) { e.l2 = tier }
}

// WithL3 attaches a persistent tier.
func WithL3(tier cache.Tier) Option {
	return func(e *Engine) { e.l3 = tier }
}

// New returns a running Engine. Attached remote tiers are pinged once: a
// tier that is unreachable at initialization starts disabled and stays
// disabled until a HealthCheck observes it responding again.
func New(parent context.Context, cfg *config.Config, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	} else {
		cfg.ApplyDefaults()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(parent)
	e := &Engine{
		ctx:     ctx,
		cancel:  cancel,
		cfg:     cfg,
		metrics: newMetrics(),
		freq:    newFreqTracker(cfg.Analytics.Retention.D()),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = logger.NewConsoleLogger()
	}
	e.log = e.log.WithPrefix("[engine]")
	if e.bus == nil {
		e.bus = eventing.NewBus()
		e.ownsBus = true
	}

	var compressor cache.Compressor = cache.Identity{}
	if cfg.L2.Compression {
		compressor = cache.Gzip{}
	}
	e.codec = cache.NewCodec(compressor, cfg.L2.CompressionThreshold)

	e.l1 = cache.NewMemory(ctx,
		cache.WithMaxEntries(cfg.L1.MaxEntries),
		cache.WithDefaultTTL(cfg.L1.TTL.D()),
		cache.WithExpiryCheck(cfg.L1.CleanupInterval.D()),
	)

	if e.l2 != nil {
		if err := e.pingTier(e.l2, cfg.L2.QueryTimeout.D()); err != nil {
			e.log.Warn("l2 unreachable at init, starting disabled: %v", err)
		} else {
			e.l2Enabled.Store(true)
		}
	}
	if e.l3 != nil {
		if err := e.pingTier(e.l3, cfg.L3.QueryTimeout.D()); err != nil {
			e.log.Warn("l3 unreachable at init, starting disabled: %v", err)
		} else {
			e.l3Enabled.Store(true)
		}
	}

	e.writeBack = newWriteBackQueue(
		cfg.WriteBack.MaxQueueSize,
		cfg.WriteBack.BatchSize,
		cfg.WriteBack.ThrottleDelay.D(),
		e.flushWriteBack,
	)
	e.wg.Add(2)
	go func() {
		defer e.wg.Done()
		e.writeBack.run(ctx)
	}()
	go func() {
		defer e.wg.Done()
		e.housekeeping()
	}()

	return e, nil
}

// Bus exposes the engine's event bus so satellite services can subscribe.
func (e *Engine) Bus() *eventing.Bus { return e.bus }

// Config returns the engine's resolved configuration.
func (e *Engine) Config() *config.Config { return e.cfg }

func (e *Engine) pingTier(tier cache.Tier, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(e.ctx, timeout)
	defer cancel()
	return tier.Ping(ctx)
}

// housekeeping prunes the frequency tracker so per-key state stays bounded
// by the retention window.
func (e *Engine) housekeeping() {
	ticker := time.NewTicker(e.cfg.Engine.MetricsInterval.D())
	defer ticker.Stop()
	for {
		select {
		case <-e.ctx.Done():
			return
		case <-ticker.C:
			if pruned := e.freq.prune(time.Now()); pruned > 0 {
				e.log.Debug("pruned %d stale frequency entries", pruned)
			}
		}
	}
}

func (e *Engine) effectiveKey(key string, strategy Strategy) string {
	if strategy == TimeBased {
		return bucketKey(key, e.cfg.Engine.TimeBucket.D(), time.Now())
	}
	return key
}

// Get consults L1, then L2, then L3, honoring options. A hit in a slower
// tier is promoted into every faster enabled tier before returning. A miss
// across all consulted tiers yields found=false with a nil error; tier
// failures are recovered locally and never surface here.
func (e *Engine) Get(ctx context.Context, key string, out any, opts *GetOptions) (bool, error) {
	if key == "" {
		return false, errors.Mark(errors.New("empty key"), cache.ErrValidation)
	}
	if opts == nil {
		opts = &GetOptions{}
	}
	storeKey := e.effectiveKey(key, opts.Strategy)
	e.freq.record(key)

	// L1
	start := time.Now()
	found, data, err := e.l1.Get(ctx, storeKey)
	elapsed := time.Since(start)
	if err != nil {
		e.tierFailed(L1, "get", storeKey, err)
	} else if found {
		if derr := e.codec.Decode(data, out); derr != nil {
			e.tierFailed(L1, "decode", storeKey, derr)
		} else {
			e.metrics.recordHit(L1, elapsed)
			e.publishAccess(key, eventing.OpHit, L1, len(data), elapsed)
			return true, nil
		}
	} else {
		e.metrics.recordMiss(L1, elapsed)
	}

	// L2
	if e.l2 != nil && e.l2Enabled.Load() {
		start = time.Now()
		found, data, err = e.l2.Get(ctx, storeKey)
		elapsed = time.Since(start)
		if err != nil {
			e.tierFailed(L2, "get", storeKey, err)
		} else if found {
			if derr := e.codec.Decode(data, out); derr != nil {
				e.tierFailed(L2, "decode", storeKey, derr)
			} else {
				e.metrics.recordHit(L2, elapsed)
				e.promote(ctx, storeKey, data, opts, L2)
				e.publishAccess(key, eventing.OpHit, L2, len(data), elapsed)
				return true, nil
			}
		} else {
			e.metrics.recordMiss(L2, elapsed)
		}
	}

	// L3
	if e.l3 != nil && e.l3Enabled.Load() && !opts.SkipL3 {
		start = time.Now()
		found, data, err = e.l3.Get(ctx, storeKey)
		elapsed = time.Since(start)
		if err != nil {
			e.tierFailed(L3, "get", storeKey, err)
		} else if found {
			if derr := e.codec.Decode(data, out); derr != nil {
				e.tierFailed(L3, "decode", storeKey, derr)
			} else {
				e.metrics.recordHit(L3, elapsed)
				e.promote(ctx, storeKey, data, opts, L3)
				e.publishAccess(key, eventing.OpHit, L3, len(data), elapsed)
				return true, nil
			}
		} else {
			e.metrics.recordMiss(L3, elapsed)
		}
	}

	e.metrics.recordFullMiss()
	e.publishAccess(key, eventing.OpMiss, L1, 0, 0)
	return false, nil
}

// GetAs is a type-safe wrapper around Get.
func GetAs[T any](ctx context.Context, e *Engine, key string, opts *GetOptions) (bool, T, error) {
	var out T
	found, err := e.Get(ctx, key, &out, opts)
	if !found || err != nil {
		var zero T
		return false, zero, err
	}
	return true, out, nil
}

// promote copies a value found at source into every faster enabled tier,
// best effort: a promotion failure is counted and logged, nothing more.
func (e *Engine) promote(ctx context.Context, storeKey string, data []byte, opts *GetOptions, source TierID) {
	l1TTL := opts.L1TTL
	if l1TTL <= 0 {
		l1TTL = e.cfg.L1.TTL.D()
	}
	if err := e.l1.Set(ctx, storeKey, data, l1TTL); err != nil {
		e.tierFailed(L1, "promote", storeKey, err)
	}
	if source == L3 && e.l2 != nil && e.l2Enabled.Load() {
		l2TTL := opts.L2TTL
		if l2TTL <= 0 {
			l2TTL = e.cfg.L2.TTL.D()
		}
		if err := e.l2.Set(ctx, storeKey, data, l2TTL); err != nil {
			e.tierFailed(L2, "promote", storeKey, err)
		}
	}
}

// Set encodes the value once and dispatches to the selected strategy. The
// returned SetResult reports each tier's outcome; tier failures never make
// Set itself fail. The only error paths are validation and encoding.
func (e *Engine) Set(ctx context.Context, key string, val any, opts *SetOptions) (*SetResult, error) {
	if key == "" {
		return nil, errors.Mark(errors.New("empty key"), cache.ErrValidation)
	}
	if opts == nil {
		opts = &SetOptions{}
	}
	if opts.Strategy < 0 || opts.Strategy >= strategyCount {
		return nil, errors.Mark(errors.Newf("invalid strategy %d", int(opts.Strategy)), cache.ErrValidation)
	}

	data, err := e.codec.Encode(val)
	if err != nil {
		return nil, err
	}

	e.freq.record(key)
	storeKey := e.effectiveKey(key, opts.Strategy)

	result := setDispatch[opts.Strategy](e, ctx, storeKey, data, opts)
	result.Key = storeKey

	if opts.Strategy == RefreshAhead {
		e.scheduleRefresh(key, e.minAttemptedTTL(opts))
	}

	evt := eventing.NewEvent(eventing.CacheUpdated)
	evt.Key = key
	evt.Operation = eventing.OpSet
	evt.Size = len(data)
	e.bus.Publish(evt)

	return result, nil
}

func (e *Engine) ttls(opts *SetOptions) (l1, l2, l3 time.Duration) {
	l1 = opts.L1TTL
	if l1 <= 0 {
		l1 = e.cfg.L1.TTL.D()
	}
	l2 = opts.L2TTL
	if l2 <= 0 {
		l2 = e.cfg.L2.TTL.D()
	}
	l3 = opts.L3TTL
	if l3 <= 0 {
		l3 = e.cfg.L3.TTL.D()
	}
	return l1, l2, l3
}

// minAttemptedTTL is the smallest TTL across the tiers a write-through
// touches, used to time the refresh-ahead signal.
func (e *Engine) minAttemptedTTL(opts *SetOptions) time.Duration {
	l1TTL, l2TTL, l3TTL := e.ttls(opts)
	min := l1TTL
	if e.l2 != nil && e.l2Enabled.Load() && l2TTL < min {
		min = l2TTL
	}
	if e.l3 != nil && e.l3Enabled.Load() && !opts.SkipL3 && l3TTL < min {
		min = l3TTL
	}
	return min
}

func (e *Engine) setWriteThrough(ctx context.Context, key string, data []byte, opts *SetOptions) *SetResult {
	l1TTL, l2TTL, l3TTL := e.ttls(opts)
	result := &SetResult{}

	result.L1.Attempted = true
	start := time.Now()
	if err := e.l1.Set(ctx, key, data, l1TTL); err != nil {
		result.L1.Err = err
		e.tierFailed(L1, "set", key, err)
	} else {
		result.L1.Written = true
		e.metrics.recordSet(L1, time.Since(start))
	}

	e.writeSlowerTiers(ctx, key, data, l2TTL, l3TTL, opts.SkipL3, result)
	return result
}

// writeSlowerTiers writes L2 and L3 in parallel, each fault-isolated: a
// failure in one tier neither aborts the other nor the overall set.
func (e *Engine) writeSlowerTiers(ctx context.Context, key string, data []byte, l2TTL, l3TTL time.Duration, skipL3 bool, result *SetResult) {
	g, gctx := errgroup.WithContext(ctx)
	if e.l2 != nil && e.l2Enabled.Load() {
		result.L2.Attempted = true
		g.Go(func() error {
			start := time.Now()
			if err := e.l2.Set(gctx, key, data, l2TTL); err != nil {
				result.L2.Err = err
				e.tierFailed(L2, "set", key, err)
				return nil
			}
			result.L2.Written = true
			e.metrics.recordSet(L2, time.Since(start))
			return nil
		})
	}
	if e.l3 != nil && e.l3Enabled.Load() && !skipL3 {
		result.L3.Attempted = true
		g.Go(func() error {
			start := time.Now()
			if err := e.l3.Set(gctx, key, data, l3TTL); err != nil {
				result.L3.Err = err
				e.tierFailed(L3, "set", key, err)
				return nil
			}
			result.L3.Written = true
			e.metrics.recordSet(L3, time.Since(start))
			return nil
		})
	}
	_ = g.Wait()
}

func (e *Engine) setWriteBack(ctx context.Context, key string, data []byte, opts *SetOptions) *SetResult {
	l1TTL, l2TTL, l3TTL := e.ttls(opts)
	result := &SetResult{}

	result.L1.Attempted = true
	start := time.Now()
	if err := e.l1.Set(ctx, key, data, l1TTL); err != nil {
		result.L1.Err = err
		e.tierFailed(L1, "set", key, err)
	} else {
		result.L1.Written = true
		e.metrics.recordSet(L1, time.Since(start))
	}

	if (e.l2 != nil && e.l2Enabled.Load()) || (e.l3 != nil && e.l3Enabled.Load() && !opts.SkipL3) {
		item := writeBackItem{key: key, data: data, l2TTL: l2TTL, l3TTL: l3TTL}
		if opts.SkipL3 {
			item.l3TTL = 0
		}
		if err := e.writeBack.enqueue(item); err != nil {
			e.log.Warn("write-back rejected for %s: %v", key, err)
			if e.l2 != nil && e.l2Enabled.Load() {
				result.L2.Attempted = true
				result.L2.Err = err
			}
			if e.l3 != nil && e.l3Enabled.Load() && !opts.SkipL3 {
				result.L3.Attempted = true
				result.L3.Err = err
			}
		} else {
			if e.l2 != nil && e.l2Enabled.Load() {
				result.L2.Attempted = true
				result.L2.Queued = true
			}
			if e.l3 != nil && e.l3Enabled.Load() && !opts.SkipL3 {
				result.L3.Attempted = true
				result.L3.Queued = true
			}
		}
	}
	return result
}

func (e *Engine) setWriteAround(ctx context.Context, key string, data []byte, opts *SetOptions) *SetResult {
	_, l2TTL, l3TTL := e.ttls(opts)
	result := &SetResult{}
	e.writeSlowerTiers(ctx, key, data, l2TTL, l3TTL, opts.SkipL3, result)
	return result
}

func (e *Engine) setCacheAside(ctx context.Context, key string, data []byte, opts *SetOptions) *SetResult {
	l1TTL, _, _ := e.ttls(opts)
	result := &SetResult{}
	result.L1.Attempted = true
	start := time.Now()
	if err := e.l1.Set(ctx, key, data, l1TTL); err != nil {
		result.L1.Err = err
		e.tierFailed(L1, "set", key, err)
	} else {
		result.L1.Written = true
		e.metrics.recordSet(L1, time.Since(start))
	}
	return result
}

func (e *Engine) setFrequencyBased(ctx context.Context, key string, data []byte, opts *SetOptions) *SetResult {
	accesses := e.freq.count(key)
	scaled := *opts
	l1TTL, l2TTL, l3TTL := e.ttls(opts)
	scaled.L1TTL = frequencyScale(l1TTL, accesses)
	scaled.L2TTL = frequencyScale(l2TTL, accesses)
	scaled.L3TTL = frequencyScale(l3TTL, accesses)
	return e.setWriteThrough(ctx, key, data, &scaled)
}

// flushWriteBack drains one batch to the slower tiers. Items carry their
// own TTLs; a zero l3TTL means the item excluded L3.
func (e *Engine) flushWriteBack(ctx context.Context, items []writeBackItem) {
	for _, item := range items {
		if e.l2 != nil && e.l2Enabled.Load() {
			start := time.Now()
			if err := e.l2.Set(ctx, item.key, item.data, item.l2TTL); err != nil {
				e.tierFailed(L2, "write-back", item.key, err)
			} else {
				e.metrics.recordSet(L2, time.Since(start))
			}
		}
		if e.l3 != nil && e.l3Enabled.Load() && item.l3TTL > 0 {
			start := time.Now()
			if err := e.l3.Set(ctx, item.key, item.data, item.l3TTL); err != nil {
				e.tierFailed(L3, "write-back", item.key, err)
			} else {
				e.metrics.recordSet(L3, time.Since(start))
			}
		}
	}
	e.log.Trace("write-back flushed %d items", len(items))
}

// scheduleRefresh emits a refresh-needed event at 80% of the entry's
// minimum TTL so the owner can repopulate before expiry.
func (e *Engine) scheduleRefresh(key string, minTTL time.Duration) {
	if minTTL <= 0 {
		return
	}
	delay := time.Duration(float64(minTTL) * 0.8)
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-e.ctx.Done():
		case <-timer.C:
			evt := eventing.NewEvent(eventing.RefreshNeeded)
			evt.Key = key
			e.bus.Publish(evt)
		}
	}()
}

// Delete removes the key from all enabled tiers (cascade, the default) or
// exactly one tier. Deleting an absent key is a no-op success; the result
// reports which tiers actually held it.
func (e *Engine) Delete(ctx context.Context, key string, opts *DeleteOptions) (*DeleteResult, error) {
	if key == "" {
		return nil, errors.Mark(errors.New("empty key"), cache.ErrValidation)
	}
	if opts == nil {
		opts = &DeleteOptions{}
	}
	result := &DeleteResult{}

	deleteOne := func(id TierID, tier cache.Tier) bool {
		found, err := tier.Delete(ctx, key)
		if err != nil {
			e.tierFailed(id, "delete", key, err)
			return false
		}
		e.metrics.recordDelete(id)
		return found
	}

	if opts.NoCascade {
		switch opts.Tier {
		case L1:
			result.L1 = deleteOne(L1, e.l1)
		case L2:
			if e.l2 != nil && e.l2Enabled.Load() {
				result.L2 = deleteOne(L2, e.l2)
			}
		case L3:
			if e.l3 != nil && e.l3Enabled.Load() {
				result.L3 = deleteOne(L3, e.l3)
			}
		default:
			return nil, errors.Mark(errors.Newf("invalid tier %d", int(opts.Tier)), cache.ErrValidation)
		}
	} else {
		result.L1 = deleteOne(L1, e.l1)
		if e.l2 != nil && e.l2Enabled.Load() {
			result.L2 = deleteOne(L2, e.l2)
		}
		if e.l3 != nil && e.l3Enabled.Load() && !opts.SkipL3 {
			result.L3 = deleteOne(L3, e.l3)
		}
	}

	evt := eventing.NewEvent(eventing.CacheDeleted)
	evt.Key = key
	evt.Operation = eventing.OpDelete
	e.bus.Publish(evt)

	return result, nil
}

// Invalidate removes every key matching the glob from each enabled tier,
// or from exactly one tier when NoCascade is set. Tiers are processed
// independently and non-atomically: a concurrent set may survive in one
// tier and not another.
func (e *Engine) Invalidate(ctx context.Context, pattern string, opts *InvalidateOptions) (*InvalidateResult, error) {
	if pattern == "" {
		return nil, errors.Mark(errors.New("empty pattern"), cache.ErrValidation)
	}
	if opts == nil {
		opts = &InvalidateOptions{}
	}
	if opts.NoCascade && (opts.Tier < L1 || opts.Tier > L3) {
		return nil, errors.Mark(errors.Newf("invalid tier %d", int(opts.Tier)), cache.ErrValidation)
	}
	result := &InvalidateResult{}

	if e.invalidateTouches(L1, opts) {
		keys, n, err := e.l1.DeletePattern(ctx, pattern)
		if err != nil {
			e.tierFailed(L1, "invalidate", pattern, err)
		} else {
			result.L1Keys = keys
			result.Total += n
		}
	}

	if e.invalidateTouches(L2, opts) && e.l2 != nil && e.l2Enabled.Load() {
		keys, n, err := e.l2.DeletePattern(ctx, pattern)
		if err != nil {
			e.tierFailed(L2, "invalidate", pattern, err)
		} else {
			result.L2Keys = keys
			result.Total += n
		}
	}

	if e.invalidateTouches(L3, opts) && e.l3 != nil && e.l3Enabled.Load() {
		_, n, err := e.l3.DeletePattern(ctx, pattern)
		if err != nil {
			e.tierFailed(L3, "invalidate", pattern, err)
		} else {
			result.L3Count = n
			result.Total += n
		}
	}

	evt := eventing.NewEvent(eventing.CacheInvalidated)
	evt.Pattern = pattern
	evt.Count = result.Total
	e.bus.Publish(evt)

	return result, nil
}

func (e *Engine) invalidateTouches(tier TierID, opts *InvalidateOptions) bool {
	if opts.NoCascade {
		return opts.Tier == tier
	}
	return tier != L3 || !opts.SkipL3
}

// HealthCheck pings each configured tier and updates its enabled flag.
// This is the only place the per-tier boolean is re-evaluated. It never
// returns an error.
func (e *Engine) HealthCheck(ctx context.Context) *Health {
	health := &Health{Overall: "healthy", L1: TierHealthy, L2: TierNotConfigured, L3: TierNotConfigured}

	if e.l2 != nil {
		if err := e.l2.Ping(ctx); err != nil {
			e.l2Enabled.Store(false)
			health.L2 = TierUnhealthy
			health.Overall = "degraded"
			e.log.Warn("l2 health check failed: %v", err)
		} else {
			e.l2Enabled.Store(true)
			health.L2 = TierHealthy
		}
	}
	if e.l3 != nil {
		if err := e.l3.Ping(ctx); err != nil {
			e.l3Enabled.Store(false)
			health.L3 = TierUnhealthy
			health.Overall = "degraded"
			e.log.Warn("l3 health check failed: %v", err)
		} else {
			e.l3Enabled.Store(true)
			health.L3 = TierHealthy
		}
	}
	return health
}

// Stats snapshots the engine's counters and sizes.
func (e *Engine) Stats() Stats {
	l1, l2, l3, hits, fullMisses := e.metrics.snapshot()
	stats := Stats{
		Hits:              hits,
		Misses:            fullMisses,
		Operations:        hits + fullMisses,
		L1:                l1,
		L2:                l2,
		L3:                l3,
		L1Entries:         e.l1.Len(),
		L1SizeBytes:       e.l1.SizeBytes(),
		TrackedKeys:       e.freq.len(),
		QueueDepth:        e.writeBack.depth(),
		MemoryUsedPercent: memoryUsedPercent(),
	}
	if stats.Operations > 0 {
		stats.HitRate = float64(stats.Hits) / float64(stats.Operations)
	}
	return stats
}

// HitRate is a convenience accessor for the aggregate hit rate in [0,1].
func (e *Engine) HitRate() float64 {
	return e.Stats().HitRate
}

// L1Has reports whether the key is currently resident in L1, without
// recording an access. The warming service uses this to skip keys that
// need no warming.
func (e *Engine) L1Has(key string) bool {
	return e.l1.Has(key)
}

func (e *Engine) tierFailed(tier TierID, op, key string, err error) {
	e.metrics.recordError(tier)
	e.log.Warn("%s %s failed for %q: %v", tier, op, key, err)
}

// Close stops background work and releases the tiers. A bus supplied via
// WithBus is left to its owner; one the engine created itself is closed.
func (e *Engine) Close() error {
	var firstErr error
	e.closeOnce.Do(func() {
		e.cancel()
		e.wg.Wait()
		if e.ownsBus {
			_ = e.bus.Close()
		}
		if err := e.l1.Close(); err != nil {
			firstErr = err
		}
		if e.l2 != nil {
			if err := e.l2.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		if e.l3 != nil {
			if err := e.l3.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	})
	return firstErr
}

func (e *Engine) publishAccess(key string, op eventing.Operation, tier TierID, size int, latency time.Duration) {
	evt := eventing.NewEvent(eventing.CacheAccessed)
	evt.Key = key
	evt.Operation = op
	evt.Tier = tier.String()
	evt.Size = size
	evt.Latency = latency
	e.bus.Publish(evt)
}
