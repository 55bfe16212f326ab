package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/abdojat/fbcloneapi/internal/models"
	"github.com/redis/go-redis/v9"
)

// UserCache stores user display snapshots keyed by id.
type UserCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewUserCache(client *redis.Client, ttl time.Duration) *UserCache {
	return &UserCache{client: client, ttl: ttl}
}

func userKey(id uint) string {
	return fmt.Sprintf("user:summary:%d", id)
}

// GetMany returns the cached snapshots and the ids that were not cached.
// Undecodable entries count as misses.
func (c *UserCache) GetMany(ctx context.Context, ids []uint) (map[uint]models.UserSummary, []uint, error) {
	found := make(map[uint]models.UserSummary, len(ids))
	if len(ids) == 0 {
		return found, nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = userKey(id)
	}

	vals, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return found, ids, err
	}

	missing := make([]uint, 0)
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			missing = append(missing, ids[i])
			continue
		}
		var snap models.UserSummary
		if err := json.Unmarshal([]byte(str), &snap); err != nil {
			missing = append(missing, ids[i])
			continue
		}
		found[ids[i]] = snap
	}
	return found, missing, nil
}

func (c *UserCache) SetMany(ctx context.Context, snaps []models.UserSummary) error {
	if len(snaps) == 0 {
		return nil
	}
	pipe := c.client.Pipeline()
	for _, s := range snaps {
		payload, err := json.Marshal(s)
		if err != nil {
			return err
		}
		pipe.Set(ctx, userKey(s.ID), payload, c.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (c *UserCache) Invalidate(ctx context.Context, id uint) error {
	return c.client.Del(ctx, userKey(id)).Err()
}
