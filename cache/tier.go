package cache

import (
	"context"
	"path"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// Sentinel errors for the caching subsystem's failure taxonomy. Callers
// should test with errors.Is since tier implementations wrap these with
// backend detail.
var (
	// ErrTierUnavailable indicates a remote tier could not be reached.
	ErrTierUnavailable = errors.New("cache: tier unavailable")
	// ErrSerialization indicates a value could not be encoded or decoded.
	ErrSerialization = errors.New("cache: serialization failed")
	// ErrQueueFull indicates a bounded queue rejected new work.
	ErrQueueFull = errors.New("cache: queue full")
	// ErrValidation indicates a malformed key, pattern, or option.
	ErrValidation = errors.New("cache: invalid argument")
)

// Tier is a single layer of the cache hierarchy. Implementations store raw
// bytes; value encoding is handled above the tier by a Codec so a value
// found in one tier can be copied into another verbatim.
type Tier interface {
	// Name identifies the tier in logs and metrics ("l1", "l2", "l3").
	Name() string
	// Get returns the stored bytes for key, or found=false on a miss.
	// Expired entries are treated as misses.
	Get(ctx context.Context, key string) (found bool, data []byte, err error)
	// Set stores data under key with the given TTL. A non-positive TTL uses
	// the tier's default.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	// Delete removes key, reporting whether it was present. Deleting an
	// absent key is not an error.
	Delete(ctx context.Context, key string) (bool, error)
	// DeletePattern removes every key matching the glob pattern. The
	// matched keys are returned where the backend can enumerate them
	// (in-process, Redis); otherwise keys is nil and only the count is
	// reported.
	DeletePattern(ctx context.Context, pattern string) (keys []string, n int, err error)
	// Ping verifies the tier is reachable.
	Ping(ctx context.Context) error
	// Close releases the tier's resources.
	Close() error
}

// matchKey reports whether key matches a glob pattern using * wildcards.
func matchKey(pattern, key string) bool {
	ok, err := path.Match(pattern, key)
	return err == nil && ok
}

// globToLike translates a glob pattern into a SQL LIKE expression,
// escaping LIKE metacharacters in the literal portions.
func globToLike(pattern string) string {
	var sb strings.Builder
	for _, r := range pattern {
		switch r {
		case '*':
			sb.WriteByte('%')
		case '%', '_', '\\':
			sb.WriteByte('\\')
			sb.WriteRune(r)
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
