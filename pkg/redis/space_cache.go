package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/music-spaces/pkg/models"
)

const spaceCacheTTL = 24 * time.Hour

// SpaceCache keeps read-mostly space rows close to the handlers. A miss is
// reported as (nil, nil).
type SpaceCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSpaceCache(client *redis.Client) *SpaceCache {
	return &SpaceCache{client: client, ttl: spaceCacheTTL}
}

func spaceKey(id string) string {
	return fmt.Sprintf("space:%s", id)
}

func (c *SpaceCache) Get(ctx context.Context, id string) (*models.Space, error) {
	data, err := c.client.Get(ctx, spaceKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get cached space: %w", err)
	}

	var space models.Space
	if err := json.Unmarshal(data, &space); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached space: %w", err)
	}
	return &space, nil
}

func (c *SpaceCache) Set(ctx context.Context, space *models.Space) error {
	data, err := json.Marshal(space)
	if err != nil {
		return fmt.Errorf("failed to marshal space: %w", err)
	}
	if err := c.client.Set(ctx, spaceKey(space.ID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache space: %w", err)
	}
	return nil
}

func (c *SpaceCache) Delete(ctx context.Context, id string) error {
	return c.client.Del(ctx, spaceKey(id)).Err()
}
