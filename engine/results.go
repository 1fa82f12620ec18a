package engine

import "time"

// TierID identifies a layer of the cache hierarchy.
type TierID int

const (
	L1 TierID = iota
	L2
	L3
	tierCount
)

func (t TierID) String() string {
	switch t {
	case L1:
		return "l1"
	case L2:
		return "l2"
	case L3:
		return "l3"
	default:
		return "unknown"
	}
}

// GetOptions tunes a single Get call. The zero value consults every
// enabled tier with the engine's configured TTLs for promotion.
type GetOptions struct {
	// Strategy must match the strategy the value was written with when that
	// strategy rewrites the key (TimeBased). Other strategies do not affect
	// reads.
	Strategy Strategy
	// L1TTL / L2TTL override the promotion TTLs for values found in slower
	// tiers.
	L1TTL time.Duration
	L2TTL time.Duration
	// SkipL3 leaves the persistent tier out of the lookup chain.
	SkipL3 bool
}

// SetOptions tunes a single Set call. The zero value is a write-through
// with the engine's configured per-tier TTLs.
type SetOptions struct {
	Strategy Strategy
	L1TTL    time.Duration
	L2TTL    time.Duration
	L3TTL    time.Duration
	SkipL3   bool
}

// DeleteOptions selects which tiers a Delete touches. The zero value
// cascades across all enabled tiers.
type DeleteOptions struct {
	// Tier restricts the delete to a single tier when Cascade is false.
	Tier TierID
	// NoCascade limits the delete to exactly Tier.
	NoCascade bool
	// SkipL3 leaves the persistent tier out of a cascading delete.
	SkipL3 bool
}

// InvalidateOptions selects which tiers a pattern invalidation touches.
// The zero value cascades across all enabled tiers.
type InvalidateOptions struct {
	// Tier restricts the invalidation to a single tier when NoCascade is
	// set.
	Tier TierID
	// NoCascade limits the invalidation to exactly Tier.
	NoCascade bool
	// SkipL3 leaves the persistent tier out of a cascading invalidation.
	SkipL3 bool
}

// TierOutcome is the per-tier result of one write.
type TierOutcome struct {
	// Attempted is false when the tier is disabled or excluded by options
	// or strategy.
	Attempted bool
	// Written is true when the tier accepted the write synchronously.
	Written bool
	// Queued is true when the write was deferred to the write-back queue.
	Queued bool
	// Err carries the tier-local failure, if any. Errors here never abort
	// the overall operation.
	Err error
}

// SetResult reports what happened in each tier during a Set. A Set that
// fails in every tier still returns normally; callers who care inspect
// the per-tier outcomes.
type SetResult struct {
	Key string
	L1  TierOutcome
	L2  TierOutcome
	L3  TierOutcome
}

// AllFailed reports whether no tier accepted or queued the write.
func (r *SetResult) AllFailed() bool {
	for _, o := range []TierOutcome{r.L1, r.L2, r.L3} {
		if o.Written || o.Queued {
			return false
		}
	}
	return true
}

// DeleteResult reports per-tier delete outcomes. A tier that did not hold
// the key reports false; that is not an error.
type DeleteResult struct {
	L1 bool
	L2 bool
	L3 bool
}

// InvalidateResult reports per-tier invalidation outcomes. L1 and L2 can
// enumerate the matched keys; the persistent tier reports only a count.
type InvalidateResult struct {
	L1Keys  []string
	L2Keys  []string
	L3Count int
	Total   int
}

// TierHealth is one tier's view in a health check.
type TierHealth string

const (
	TierHealthy       TierHealth = "healthy"
	TierUnhealthy     TierHealth = "unhealthy"
	TierNotConfigured TierHealth = "not_configured"
)

// Health is the composite health report. Overall is "healthy" when every
// configured tier responds, "degraded" otherwise.
type Health struct {
	Overall string
	L1      TierHealth
	L2      TierHealth
	L3      TierHealth
}
