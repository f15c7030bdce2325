package cache

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unreachableClient points at a closed port so every command fails fast.
func unreachableClient(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestVerdictKeys(t *testing.T) {
	assert.Equal(t, "integrity:verdict:42", VerdictKey(42))
	assert.Equal(t, "integrity:verdict:*", VerdictPattern())
}

func TestRedisCacheReportsConnectionErrors(t *testing.T) {
	c := NewRedisCache(unreachableClient(t), slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()

	var dst map[string]any
	err := c.Get(ctx, VerdictKey(1), &dst)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)

	assert.Error(t, c.Set(ctx, VerdictKey(1), map[string]int{"a": 1}, time.Minute))
	assert.Error(t, c.Delete(ctx, VerdictKey(1)))
}

func TestRedisCacheRejectsUnmarshalableValues(t *testing.T) {
	c := NewRedisCache(unreachableClient(t), slog.New(slog.NewTextHandler(io.Discard, nil)))
	err := c.Set(context.Background(), "k", make(chan int), time.Minute)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "marshal")
}

func TestNoopCache(t *testing.T) {
	var c CacheService = NoopCache{}
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k", 1, time.Minute))
	var v int
	assert.ErrorIs(t, c.Get(ctx, "k", &v), ErrCacheMiss)
	assert.NoError(t, c.DeletePattern(ctx, "*"))
}

func TestRedisLocker(t *testing.T) {
	l := NewRedisLocker(unreachableClient(t))
	ctx := context.Background()

	ok, err := l.Acquire(ctx, "lock", time.Minute)
	assert.Error(t, err)
	assert.False(t, ok)

	// Releasing a lock we never held is a no-op.
	assert.NoError(t, l.Release(ctx, "lock"))
}
