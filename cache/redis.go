package cache

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
)

// Redis is the remote L2 tier. The caller owns the redis.Client lifecycle;
// Close is a no-op on the client. Every operation runs under the configured
// query timeout so a slow Redis cannot stall the tiered lookup chain.
type Redis struct {
	client *redis.Client
	cfg    config
}

var _ Tier = (*Redis)(nil)

// NewRedis returns a new Redis-backed tier.
func NewRedis(client *redis.Client, opts ...Option) *Redis {
	return &Redis{
		client: client,
		cfg:    applyOptions(opts),
	}
}

func (r *Redis) Name() string { return "l2" }

func (r *Redis) queryCtx(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, r.cfg.queryTimeout)
}

func (r *Redis) prefixKey(key string) string {
	if r.cfg.prefix == "" {
		return key
	}
	return r.cfg.prefix + ":" + key
}

func (r *Redis) stripPrefix(key string) string {
	if r.cfg.prefix == "" {
		return key
	}
	return strings.TrimPrefix(key, r.cfg.prefix+":")
}

func (r *Redis) Get(ctx context.Context, key string) (bool, []byte, error) {
	qctx, cancel := r.queryCtx(ctx)
	defer cancel()
	data, err := r.client.Get(qctx, r.prefixKey(key)).Bytes()
	if err == redis.Nil {
		return false, nil, nil
	}
	if err != nil {
		return false, nil, errors.Mark(errors.Wrap(err, "redis get"), ErrTierUnavailable)
	}
	return true, data, nil
}

func (r *Redis) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = r.cfg.defaultTTL
	}
	qctx, cancel := r.queryCtx(ctx)
	defer cancel()
	if err := r.client.Set(qctx, r.prefixKey(key), data, ttl).Err(); err != nil {
		return errors.Mark(errors.Wrap(err, "redis set"), ErrTierUnavailable)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, key string) (bool, error) {
	qctx, cancel := r.queryCtx(ctx)
	defer cancel()
	n, err := r.client.Del(qctx, r.prefixKey(key)).Result()
	if err != nil {
		return false, errors.Mark(errors.Wrap(err, "redis del"), ErrTierUnavailable)
	}
	return n > 0, nil
}

// DeletePattern enumerates matching keys with SCAN and removes them in one
// pipelined DEL. The glob is applied server-side under the tier's prefix.
func (r *Redis) DeletePattern(ctx context.Context, pattern string) ([]string, int, error) {
	qctx, cancel := r.queryCtx(ctx)
	defer cancel()

	var matched []string
	iter := r.client.Scan(qctx, 0, r.prefixKey(pattern), 100).Iterator()
	for iter.Next(qctx) {
		matched = append(matched, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, 0, errors.Mark(errors.Wrap(err, "redis scan"), ErrTierUnavailable)
	}
	if len(matched) == 0 {
		return nil, 0, nil
	}

	pipe := r.client.Pipeline()
	for _, key := range matched {
		pipe.Del(qctx, key)
	}
	if _, err := pipe.Exec(qctx); err != nil {
		return nil, 0, errors.Mark(errors.Wrap(err, "redis pattern delete"), ErrTierUnavailable)
	}

	keys := make([]string, len(matched))
	for i, key := range matched {
		keys[i] = r.stripPrefix(key)
	}
	return keys, len(keys), nil
}

func (r *Redis) Ping(ctx context.Context) error {
	qctx, cancel := r.queryCtx(ctx)
	defer cancel()
	if err := r.client.Ping(qctx).Err(); err != nil {
		return errors.Mark(errors.Wrap(err, "redis ping"), ErrTierUnavailable)
	}
	return nil
}

// Close is a no-op — the caller owns the redis.Client lifecycle.
func (r *Redis) Close() error { return nil }
