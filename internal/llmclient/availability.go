package llmclient

import (
	"context"
	"sync"
	"time"
)

// AvailabilityCache memoizes a Client's IsAvailable probe for ttl, so the
// hybrid orchestrator does not re-probe the finalizer on every turn.
type AvailabilityCache struct {
	client  Client
	timeout time.Duration
	ttl     time.Duration

	now func() time.Time

	mu        sync.Mutex
	checkedAt time.Time
	available bool
}

// NewAvailabilityCache builds a cache probing client with timeout and
// memoizing the result for ttl.
func NewAvailabilityCache(client Client, timeout, ttl time.Duration) *AvailabilityCache {
	return &AvailabilityCache{client: client, timeout: timeout, ttl: ttl, now: time.Now}
}

// WithClock overrides the cache's clock for deterministic tests.
func (c *AvailabilityCache) WithClock(now func() time.Time) *AvailabilityCache {
	c.now = now
	return c
}

// Available reports whether the underlying client is reachable, reusing the
// last probe result if it is still within ttl.
func (c *AvailabilityCache) Available(ctx context.Context) bool {
	if c.client == nil {
		return false
	}

	c.mu.Lock()
	now := c.now()
	if !c.checkedAt.IsZero() && now.Sub(c.checkedAt) < c.ttl {
		available := c.available
		c.mu.Unlock()
		return available
	}
	c.mu.Unlock()

	available := c.client.IsAvailable(ctx, c.timeout)

	c.mu.Lock()
	c.available = available
	c.checkedAt = c.now()
	c.mu.Unlock()

	return available
}

// Invalidate forces the next Available call to re-probe.
func (c *AvailabilityCache) Invalidate() {
	c.mu.Lock()
	c.checkedAt = time.Time{}
	c.mu.Unlock()
}
