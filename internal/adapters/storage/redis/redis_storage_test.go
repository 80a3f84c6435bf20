package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T) (*Storage, *miniredis.Miniredis) {
	t.Helper()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewWithClient(client), server
}

func TestStorage_IncrementKeepsWindowStart(t *testing.T) {
	storage, server := newTestStorage(t)
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	count, resetAt, err := storage.Increment(ctx, "ratelimit:status:1.2.3.4", time.Second, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, now.Add(time.Second), resetAt)

	server.FastForward(400 * time.Millisecond)
	count, resetAt, err = storage.Increment(ctx, "ratelimit:status:1.2.3.4", time.Second, now.Add(400*time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
	assert.Equal(t, now.Add(time.Second), resetAt, "later hits must not extend the window")

	server.FastForward(700 * time.Millisecond)
	count, _, err = storage.Increment(ctx, "ratelimit:status:1.2.3.4", time.Second, now.Add(1100*time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestStorage_ReplayFirstWriterWins(t *testing.T) {
	storage, server := newTestStorage(t)
	ctx := context.Background()
	first := time.UnixMilli(1_700_000_000_000)

	require.NoError(t, storage.Record(ctx, "code", first, time.Minute))
	require.NoError(t, storage.Record(ctx, "code", first.Add(time.Second), time.Minute))

	seenAt, ok, err := storage.Get(ctx, "code")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, seenAt.Equal(first))

	require.NoError(t, storage.Prune(ctx, first, time.Minute))
	server.FastForward(61 * time.Second)
	_, ok, err = storage.Get(ctx, "code")
	require.NoError(t, err)
	assert.False(t, ok)
}
