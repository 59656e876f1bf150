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

// StatusCache mirrors every task transition into redis so the API's status
// reads stay off the registry. Keys are owner-scoped, matching the API side.
type StatusCache struct {
	client *redis.Client
}

func NewStatusCache(client *redis.Client) *StatusCache {
	return &StatusCache{client: client}
}

func (c *StatusCache) Set(ctx context.Context, ownerID, taskID, status string) error {
	key := fmt.Sprintf("%s%s:%s", statusKeyPrefix, ownerID, taskID)
	return c.client.Set(ctx, key, status, statusTTL).Err()
}
