// Package cache wraps the teacher's retry-decorated Redis client
// (wb-go/wbf/redis) with a typed status-cache surface, mirroring how the
// teacher's service.go used the raw client's SetWithRetry/GetWithRetry as
// its cache collaborator.
package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/wb-go/wbf/retry"

	"github.com/mksenin/notifyhub/internal/model"
)

// ErrMiss is returned when the status key is not present in the cache.
var ErrMiss = errors.New("status not cached")

// client is the subset of wb-go/wbf/redis.Client's surface this package uses.
type client interface {
	SetWithRetry(ctx context.Context, strategy retry.Strategy, key string, value interface{}) error
	GetWithRetry(ctx context.Context, strategy retry.Strategy, key string) (string, error)
}

// StatusCache caches a notification's current status keyed by its ID.
type StatusCache struct {
	client   client
	strategy retry.Strategy
}

// NewStatusCache builds a StatusCache over the given client (normally a
// *wb-go/wbf/redis.Client), decorated with strategy for transient failures.
func NewStatusCache(c client, strategy retry.Strategy) *StatusCache {
	return &StatusCache{client: c, strategy: strategy}
}

// Set stores the notification's current status.
func (c *StatusCache) Set(ctx context.Context, id string, status model.Status) error {
	if err := c.client.SetWithRetry(ctx, c.strategy, id, string(status)); err != nil {
		return fmt.Errorf("failed to cache status: %w", err)
	}
	return nil
}

// Get returns the cached status for id, or ErrMiss if not present.
func (c *StatusCache) Get(ctx context.Context, id string) (model.Status, error) {
	raw, err := c.client.GetWithRetry(ctx, c.strategy, id)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrMiss
		}
		return "", fmt.Errorf("failed to read cached status: %w", err)
	}
	return model.Status(raw), nil
}
