package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	return mr, client
}

func TestRedisSetGet(t *testing.T) {
	_, client := newTestRedis(t)
	defer client.Close()
	r := NewRedis(client, WithPrefix("test"))
	ctx := context.Background()

	found, data, err := r.Get(ctx, "key")
	assert.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, data)

	require.NoError(t, r.Set(ctx, "key", []byte("value"), time.Minute))
	found, data, err = r.Get(ctx, "key")
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("value"), data)
}

func TestRedisTTLExpiry(t *testing.T) {
	mr, client := newTestRedis(t)
	defer client.Close()
	r := NewRedis(client)
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, "key", []byte("value"), time.Second))
	// Use miniredis FastForward to simulate time passing.
	mr.FastForward(2 * time.Second)

	found, _, err := r.Get(ctx, "key")
	assert.NoError(t, err)
	assert.False(t, found)
}

func TestRedisDeleteIdempotent(t *testing.T) {
	_, client := newTestRedis(t)
	defer client.Close()
	r := NewRedis(client)
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, "key", []byte("value"), time.Minute))
	found, err := r.Delete(ctx, "key")
	assert.NoError(t, err)
	assert.True(t, found)

	found, err = r.Delete(ctx, "key")
	assert.NoError(t, err)
	assert.False(t, found)
}

func TestRedisDeletePattern(t *testing.T) {
	_, client := newTestRedis(t)
	defer client.Close()
	r := NewRedis(client, WithPrefix("app"))
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, "user:1", []byte("a"), time.Minute))
	require.NoError(t, r.Set(ctx, "user:2", []byte("b"), time.Minute))
	require.NoError(t, r.Set(ctx, "session:1", []byte("c"), time.Minute))

	keys, n, err := r.DeletePattern(ctx, "user:*")
	assert.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.ElementsMatch(t, []string{"user:1", "user:2"}, keys)

	found, _, err := r.Get(ctx, "session:1")
	assert.NoError(t, err)
	assert.True(t, found)
}

func TestRedisDeletePatternNoMatches(t *testing.T) {
	_, client := newTestRedis(t)
	defer client.Close()
	r := NewRedis(client)

	keys, n, err := r.DeletePattern(context.Background(), "nope:*")
	assert.NoError(t, err)
	assert.Zero(t, n)
	assert.Nil(t, keys)
}

func TestRedisPing(t *testing.T) {
	mr, client := newTestRedis(t)
	defer client.Close()
	r := NewRedis(client)

	assert.NoError(t, r.Ping(context.Background()))

	mr.Close()
	err := r.Ping(context.Background())
	assert.Error(t, err)
	assert.ErrorIs(t, err, ErrTierUnavailable)
}

func TestRedisUnavailableIsMarked(t *testing.T) {
	mr, client := newTestRedis(t)
	defer client.Close()
	r := NewRedis(client)
	mr.Close()

	_, _, err := r.Get(context.Background(), "key")
	assert.ErrorIs(t, err, ErrTierUnavailable)

	err = r.Set(context.Background(), "key", []byte("v"), time.Minute)
	assert.ErrorIs(t, err, ErrTierUnavailable)
}
