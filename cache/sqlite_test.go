package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T, opts ...Option) *SQLite {
	t.Helper()
	s, err := NewSQLite(context.Background(), ":memory:", opts...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteSetGet(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	found, data, err := s.Get(ctx, "key")
	assert.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, data)

	require.NoError(t, s.Set(ctx, "key", []byte("value"), time.Minute))
	found, data, err = s.Get(ctx, "key")
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("value"), data)
}

func TestSQLiteOverwrite(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "key", []byte("one"), time.Minute))
	require.NoError(t, s.Set(ctx, "key", []byte("two"), time.Minute))

	found, data, err := s.Get(ctx, "key")
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("two"), data)
}

func TestSQLiteLazyExpiry(t *testing.T) {
	s := newTestSQLite(t, WithExpiryCheck(time.Hour))
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "key", []byte("value"), 5*time.Millisecond))
	time.Sleep(6 * time.Millisecond)

	found, _, err := s.Get(ctx, "key")
	assert.NoError(t, err)
	assert.False(t, found)
}

func TestSQLiteDeleteIdempotent(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "key", []byte("value"), time.Minute))
	found, err := s.Delete(ctx, "key")
	assert.NoError(t, err)
	assert.True(t, found)

	found, err = s.Delete(ctx, "key")
	assert.NoError(t, err)
	assert.False(t, found)
}

func TestSQLiteDeletePattern(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "user:1", []byte("a"), time.Minute))
	require.NoError(t, s.Set(ctx, "user:2", []byte("b"), time.Minute))
	require.NoError(t, s.Set(ctx, "session:1", []byte("c"), time.Minute))

	keys, n, err := s.DeletePattern(ctx, "user:*")
	assert.NoError(t, err)
	assert.Equal(t, 2, n)
	// The relational tier reports counts only.
	assert.Nil(t, keys)

	found, _, err := s.Get(ctx, "session:1")
	assert.NoError(t, err)
	assert.True(t, found)
}

func TestSQLiteDeletePatternEscapesLikeMeta(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "a_b", []byte("x"), time.Minute))
	require.NoError(t, s.Set(ctx, "acb", []byte("y"), time.Minute))

	// "_" must match literally, not as a LIKE wildcard.
	_, n, err := s.DeletePattern(ctx, "a_b")
	assert.NoError(t, err)
	assert.Equal(t, 1, n)

	found, _, err := s.Get(ctx, "acb")
	assert.NoError(t, err)
	assert.True(t, found)
}

func TestSQLiteCustomTable(t *testing.T) {
	s, err := NewSQLite(context.Background(), ":memory:", WithTable("agent_cache"))
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "key", []byte("value"), time.Minute))
	found, data, err := s.Get(ctx, "key")
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("value"), data)
}

func TestSQLitePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	ctx := context.Background()

	s, err := NewSQLite(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "key", []byte("survives"), time.Hour))
	require.NoError(t, s.Close())

	s2, err := NewSQLite(ctx, path)
	require.NoError(t, err)
	defer s2.Close()

	found, data, err := s2.Get(ctx, "key")
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("survives"), data)
}

func TestSQLitePing(t *testing.T) {
	s := newTestSQLite(t)
	assert.NoError(t, s.Ping(context.Background()))
}
