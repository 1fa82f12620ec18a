package eventing

import (
	"time"

	"github.com/google/uuid"
)

// Type identifies a class of cache lifecycle event.
type Type string

const (
	// CacheAccessed is emitted on every get, hit or miss.
	CacheAccessed Type = "cache.accessed"
	// CacheUpdated is emitted after a set has been applied.
	CacheUpdated Type = "cache.updated"
	// CacheDeleted is emitted after a delete.
	CacheDeleted Type = "cache.deleted"
	// CacheInvalidated is emitted after a pattern invalidation.
	CacheInvalidated Type = "cache.invalidated"
	// PrefetchSuggested is emitted when a warming candidate qualifies for execution.
	PrefetchSuggested Type = "prefetch.suggested"
	// AnalyticsComplete is emitted at the end of each analytics cycle.
	AnalyticsComplete Type = "analytics.complete"
	// WarmingComplete is emitted at the end of each warming cycle.
	WarmingComplete Type = "warming.complete"
	// RefreshNeeded is emitted when a refresh-ahead entry reaches 80% of its TTL.
	RefreshNeeded Type = "refresh.needed"
)

// Operation classifies what happened to the key carried by an event.
type Operation string

const (
	OpHit    Operation = "hit"
	OpMiss   Operation = "miss"
	OpSet    Operation = "set"
	OpDelete Operation = "delete"
)

// Event is a single cache lifecycle notification.
type Event struct {
	ID        string
	Type      Type
	Key       string
	Pattern   string
	Operation Operation
	Tier      string
	Size      int
	Latency   time.Duration
	Count     int
	Time      time.Time
}

// NewEvent constructs an event with a fresh ID and the current time.
func NewEvent(typ Type) Event {
	return Event{
		ID:   uuid.NewString(),
		Type: typ,
		Time: time.Now(),
	}
}
