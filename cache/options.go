package cache

import "time"

// DefaultTTL is used when Set is called with a non-positive TTL and no
// default was configured for the tier.
const DefaultTTL = 5 * time.Minute

// DefaultQueryTimeout bounds each operation against an I/O-backed tier
// (Redis, SQLite) so slow storage cannot stall a lookup chain.
const DefaultQueryTimeout = 5 * time.Second

type config struct {
	defaultTTL   time.Duration
	queryTimeout time.Duration
	expiryCheck  time.Duration
	prefix       string
	table        string
	maxEntries   int
}

// Option configures a tier implementation.
type Option func(*config)

func defaultConfig() config {
	return config{
		defaultTTL:   DefaultTTL,
		queryTimeout: DefaultQueryTimeout,
		expiryCheck:  time.Minute,
		table:        "cache_entries",
		maxEntries:   10000,
	}
}

func applyOptions(opts []Option) config {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithDefaultTTL sets the TTL used when Set is called with ttl <= 0.
func WithDefaultTTL(d time.Duration) Option {
	return func(c *config) { c.defaultTTL = d }
}

// WithQueryTimeout sets the per-operation timeout for I/O-backed tiers.
func WithQueryTimeout(d time.Duration) Option {
	return func(c *config) { c.queryTimeout = d }
}

// WithExpiryCheck sets the interval for background expired entry cleanup.
// Applies to the in-memory and SQLite tiers.
func WithExpiryCheck(d time.Duration) Option {
	return func(c *config) { c.expiryCheck = d }
}

// WithPrefix sets the key prefix for namespacing keys on a shared Redis.
func WithPrefix(p string) Option {
	return func(c *config) { c.prefix = p }
}

// WithTable sets the SQLite table name.
func WithTable(name string) Option {
	return func(c *config) {
		if name != "" {
			c.table = name
		}
	}
}

// WithMaxEntries bounds the in-memory tier's entry count.
func WithMaxEntries(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxEntries = n
		}
	}
}
