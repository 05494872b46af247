package store

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"proctor/internal/correlation"
	"proctor/pkg/platform/circuit"
	"proctor/pkg/platform/sentinel"
)

func TestRedisCache_UnreachableOpensBreaker(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })

	breaker := circuit.New("test-cache", circuit.WithFailureThreshold(2), circuit.WithCooldown(time.Hour))
	cache := NewRedisCache(client, time.Minute,
		WithCacheBreaker(breaker),
		WithCacheLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	ctx := context.Background()

	_, err := cache.Get(ctx)
	require.ErrorIs(t, err, sentinel.ErrUnavailable)
	assert.False(t, breaker.IsOpen())

	err = cache.Set(ctx, &correlation.Result{})
	require.ErrorIs(t, err, sentinel.ErrUnavailable)
	assert.True(t, breaker.IsOpen())

	_, err = cache.Get(ctx)
	assert.ErrorIs(t, err, sentinel.ErrUnavailable, "open breaker short-circuits")
}

func TestRedisCache_SetNilIsNoop(t *testing.T) {
	cache := NewRedisCache(redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"}), time.Minute)
	assert.NoError(t, cache.Set(context.Background(), nil))
}
