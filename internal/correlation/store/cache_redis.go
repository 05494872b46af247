package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"proctor/internal/correlation"
	"proctor/pkg/platform/circuit"
	"proctor/pkg/platform/sentinel"
)

const resultKey = "proctor:correlation:result"

// RedisCache shares the last correlation result between instances. Calls are
// guarded by a circuit breaker so an unreachable Redis degrades to a miss
// instead of stalling every read.
type RedisCache struct {
	client  *redis.Client
	ttl     time.Duration
	breaker *circuit.Breaker
	logger  *slog.Logger
}

type RedisCacheOption func(*RedisCache)

func WithCacheBreaker(b *circuit.Breaker) RedisCacheOption {
	return func(c *RedisCache) {
		c.breaker = b
	}
}

func WithCacheLogger(logger *slog.Logger) RedisCacheOption {
	return func(c *RedisCache) {
		c.logger = logger
	}
}

func NewRedisCache(client *redis.Client, ttl time.Duration, opts ...RedisCacheOption) *RedisCache {
	c := &RedisCache{
		client:  client,
		ttl:     ttl,
		breaker: circuit.New("correlation-cache"),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

func (c *RedisCache) Get(ctx context.Context) (*correlation.Result, error) {
	if !c.breaker.Allow() {
		return nil, fmt.Errorf("redis cache: %w", sentinel.ErrUnavailable)
	}
	raw, err := c.client.Get(ctx, resultKey).Bytes()
	if errors.Is(err, redis.Nil) {
		c.record(nil)
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		c.record(err)
		return nil, fmt.Errorf("get correlation result: %w: %v", sentinel.ErrUnavailable, err)
	}
	c.record(nil)

	var result correlation.Result
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decode correlation result: %w", sentinel.ErrInvalidState)
	}
	return &result, nil
}

func (c *RedisCache) Set(ctx context.Context, result *correlation.Result) error {
	if result == nil {
		return nil
	}
	if !c.breaker.Allow() {
		return fmt.Errorf("redis cache: %w", sentinel.ErrUnavailable)
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode correlation result: %w", err)
	}
	err = c.client.Set(ctx, resultKey, raw, c.ttl).Err()
	c.record(err)
	if err != nil {
		return fmt.Errorf("set correlation result: %w: %v", sentinel.ErrUnavailable, err)
	}
	return nil
}

func (c *RedisCache) Invalidate(ctx context.Context) error {
	err := c.client.Del(ctx, resultKey).Err()
	c.record(err)
	if err != nil {
		return fmt.Errorf("delete correlation result: %w: %v", sentinel.ErrUnavailable, err)
	}
	return nil
}

func (c *RedisCache) record(err error) {
	if err == nil {
		if _, change := c.breaker.RecordSuccess(); change.Closed {
			c.logger.Info("redis cache recovered", "breaker", c.breaker.Name())
		}
		return
	}
	if _, change := c.breaker.RecordFailure(); change.Opened {
		c.logger.Warn("redis cache unavailable, bypassing", "breaker", c.breaker.Name(), "error", err)
	}
}
