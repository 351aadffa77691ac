package cache

import (
	"context"
	"time"
)

// NoOpCache is a cache implementation that does nothing.
// Used as the default when Redis is not configured - all operations succeed
// but no actual caching occurs (always cache miss).
type NoOpCache struct{}

// NewNoOpCache creates a new no-op cache instance
func NewNoOpCache() *NoOpCache {
	return &NoOpCache{}
}

// GetQueryResult always returns nil (cache miss)
func (c *NoOpCache) GetQueryResult(ctx context.Context, key string) (*QueryResult, error) {
	return nil, nil
}

// SetQueryResult does nothing and always succeeds
func (c *NoOpCache) SetQueryResult(ctx context.Context, key string, result *QueryResult, ttl time.Duration) error {
	return nil
}

// Invalidate does nothing and always succeeds
func (c *NoOpCache) Invalidate(ctx context.Context) error {
	return nil
}

// Close does nothing and always succeeds
func (c *NoOpCache) Close() error {
	return nil
}
