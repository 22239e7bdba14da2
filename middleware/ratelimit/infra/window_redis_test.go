package infra

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniredis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestRedisWindowStore_ExceedsAfterLimit(t *testing.T) {
	_, rdb := newMiniredis(t)
	s := NewRedisWindowStore(rdb, 3, 15*time.Minute)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		w, err := s.Hit(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.False(t, w.Exceeded(), "hit %d", i)
		assert.Equal(t, i, w.Count)
	}

	w, err := s.Hit(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, w.Exceeded())
	assert.Equal(t, 0, w.Remaining())
}

func TestRedisWindowStore_ExpiresWithWindow(t *testing.T) {
	mr, rdb := newMiniredis(t)
	s := NewRedisWindowStore(rdb, 1, time.Minute)
	ctx := context.Background()

	_, err := s.Hit(ctx, "k")
	require.NoError(t, err)
	w, err := s.Hit(ctx, "k")
	require.NoError(t, err)
	require.True(t, w.Exceeded())

	mr.FastForward(time.Minute + time.Millisecond)

	w, err = s.Hit(ctx, "k")
	require.NoError(t, err)
	assert.False(t, w.Exceeded())
	assert.Equal(t, 1, w.Count)
}

func TestRedisWindowStore_DoesNotStoreRawKey(t *testing.T) {
	mr, rdb := newMiniredis(t)
	s := NewRedisWindowStore(rdb, 5, time.Minute, WithWindowPrefix("fb:rl:"))

	_, err := s.Hit(context.Background(), "203.0.113.9")
	require.NoError(t, err)

	keys := mr.Keys()
	require.Len(t, keys, 1)
	assert.True(t, strings.HasPrefix(keys[0], "fb:rl:"))
	assert.NotContains(t, keys[0], "203.0.113.9")
	assert.Greater(t, mr.TTL(keys[0]), time.Duration(0))
}

func TestRedisWindowStore_ReportsConnectionErrors(t *testing.T) {
	mr, rdb := newMiniredis(t)
	s := NewRedisWindowStore(rdb, 5, time.Minute)
	mr.Close()

	_, err := s.Hit(context.Background(), "k")
	assert.Error(t, err)
}
