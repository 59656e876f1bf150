package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	statusKeyPrefix = "task:status:"
	statusTTL       = 10 * time.Minute
)

// StatusCache fronts the task registry on the status read path. Keys are
// scoped by owner so a cache hit never leaks another user's task.
type StatusCache struct {
	client *redis.Client
}

func NewStatusCache(client *redis.Client) *StatusCache {
	return &StatusCache{client: client}
}

func (sc *StatusCache) Get(ctx context.Context, ownerID, taskID string) (string, error) {
	return sc.client.Get(ctx, statusKey(ownerID, taskID)).Result()
}

func (sc *StatusCache) Set(ctx context.Context, ownerID, taskID, status string) error {
	return sc.client.Set(ctx, statusKey(ownerID, taskID), status, statusTTL).Err()
}

func statusKey(ownerID, taskID string) string {
	return fmt.Sprintf("%s%s:%s", statusKeyPrefix, ownerID, taskID)
}
