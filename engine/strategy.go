package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/Punky2280/dat-bitch-cartrita-sub015/cache"
)

// Strategy selects how a Set distributes a value across tiers. The set of
// strategies is closed: dispatch goes through a table indexed by the enum,
// so an unhandled strategy is a programming error caught at Set time.
type Strategy int

const (
	// WriteThrough writes L1 synchronously, then L2 and L3 synchronously in
	// parallel, each independently fault-tolerant.
	WriteThrough Strategy = iota
	// WriteBack writes L1 synchronously and defers L2/L3 to the batched
	// write-back queue.
	WriteBack
	// WriteAround skips L1, writing only the slower tiers. Used for cold or
	// bulk values that should not evict hot L1 entries.
	WriteAround
	// CacheAside writes L1 only; the caller owns backing-store writes.
	CacheAside
	// RefreshAhead is write-through plus a refresh signal scheduled at 80%
	// of the minimum TTL across tiers.
	RefreshAhead
	// TimeBased is write-through under a key namespaced by the current
	// coarse time bucket, enabling periodic invalidation.
	TimeBased
	// FrequencyBased is write-through with TTLs scaled upward in proportion
	// to the key's historical access frequency.
	FrequencyBased
	// ReadThrough is an alias of write-through used when populating the
	// cache in response to a miss.
	ReadThrough
	// Predictive is an alias of write-through used by the warming service.
	Predictive
	strategyCount
)

var strategyNames = [strategyCount]string{
	WriteThrough:   "write-through",
	WriteBack:      "write-back",
	WriteAround:    "write-around",
	CacheAside:     "cache-aside",
	RefreshAhead:   "refresh-ahead",
	TimeBased:      "time-based",
	FrequencyBased: "frequency-based",
	ReadThrough:    "read-through",
	Predictive:     "predictive",
}

func (s Strategy) String() string {
	if s < 0 || s >= strategyCount {
		return fmt.Sprintf("strategy(%d)", int(s))
	}
	return strategyNames[s]
}

// ParseStrategy resolves a strategy name. Unknown names are a validation
// error.
func ParseStrategy(name string) (Strategy, error) {
	for s, n := range strategyNames {
		if n == name {
			return Strategy(s), nil
		}
	}
	return 0, errors.Mark(errors.Newf("unknown strategy %q", name), cache.ErrValidation)
}

type setFunc func(e *Engine, ctx context.Context, key string, data []byte, opts *SetOptions) *SetResult

// setDispatch maps each strategy to its implementation. Aliases share an
// implementation; TimeBased and FrequencyBased rewrite their inputs before
// delegating to write-through.
var setDispatch = [strategyCount]setFunc{
	WriteThrough:   (*Engine).setWriteThrough,
	WriteBack:      (*Engine).setWriteBack,
	WriteAround:    (*Engine).setWriteAround,
	CacheAside:     (*Engine).setCacheAside,
	RefreshAhead:   (*Engine).setWriteThrough,
	TimeBased:      (*Engine).setWriteThrough,
	FrequencyBased: (*Engine).setFrequencyBased,
	ReadThrough:    (*Engine).setWriteThrough,
	Predictive:     (*Engine).setWriteThrough,
}

// bucketKey namespaces a key by the current coarse time bucket.
func bucketKey(key string, bucket time.Duration, now time.Time) string {
	return fmt.Sprintf("%s:t%d", key, now.Truncate(bucket).Unix())
}

// frequencyScale grows a TTL with observed access frequency: an often-read
// key earns up to a 3x TTL. The curve is linear in the access count,
// capped at 200 accesses.
func frequencyScale(ttl time.Duration, accesses uint64) time.Duration {
	if ttl <= 0 {
		return ttl
	}
	if accesses > 200 {
		accesses = 200
	}
	return ttl + time.Duration(float64(ttl)*float64(accesses)/100)
}
