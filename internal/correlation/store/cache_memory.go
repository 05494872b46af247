package store

import (
	"context"
	"sync"
	"time"

	"proctor/internal/correlation"
	"proctor/pkg/platform/sentinel"
)

// MemoryCache keeps the last correlation result in process memory. It is used
// when Redis is not configured.
type MemoryCache struct {
	mu       sync.RWMutex
	result   *correlation.Result
	storedAt time.Time
	ttl      time.Duration
	now      func() time.Time
}

// NewMemoryCache constructs a cache whose entry expires after ttl. A zero ttl
// keeps the entry until invalidated.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{ttl: ttl, now: time.Now}
}

func (c *MemoryCache) Get(_ context.Context) (*correlation.Result, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.result == nil {
		return nil, sentinel.ErrNotFound
	}
	if c.ttl > 0 && c.now().Sub(c.storedAt) > c.ttl {
		return nil, sentinel.ErrNotFound
	}
	return c.result, nil
}

func (c *MemoryCache) Set(_ context.Context, result *correlation.Result) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.result = result
	c.storedAt = c.now()
	return nil
}

func (c *MemoryCache) Invalidate(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.result = nil
	return nil
}
