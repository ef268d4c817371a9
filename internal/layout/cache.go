package layout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/invoica/backend/internal/models"
)

const cacheTTL = time.Hour

var cachedRoles = []string{models.RoleSuperadmin, models.RoleAdmin, models.RoleEmployee}

// Cache stores built navigation per organization and role.
type Cache interface {
	// Get returns nil, nil on a miss.
	Get(ctx context.Context, orgID uuid.UUID, role string) (*Navigation, error)
	Set(ctx context.Context, orgID uuid.UUID, nav Navigation) error
	Invalidate(ctx context.Context, orgID uuid.UUID) error
}

// RedisCache keeps navigation under layout:<org>:<role>.
type RedisCache struct {
	client redis.Cmdable
}

// NewRedisCache creates a Redis-backed navigation cache.
func NewRedisCache(client redis.Cmdable) *RedisCache {
	return &RedisCache{client: client}
}

func cacheKey(orgID uuid.UUID, role string) string {
	return fmt.Sprintf("layout:%s:%s", orgID, role)
}

func (c *RedisCache) Get(ctx context.Context, orgID uuid.UUID, role string) (*Navigation, error) {
	b, err := c.client.Get(ctx, cacheKey(orgID, role)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var nav Navigation
	if err := json.Unmarshal(b, &nav); err != nil {
		return nil, fmt.Errorf("decode cached layout: %w", err)
	}
	return &nav, nil
}

func (c *RedisCache) Set(ctx context.Context, orgID uuid.UUID, nav Navigation) error {
	b, err := json.Marshal(nav)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, cacheKey(orgID, nav.Role), b, cacheTTL).Err()
}

func (c *RedisCache) Invalidate(ctx context.Context, orgID uuid.UUID) error {
	keys := make([]string, 0, len(cachedRoles))
	for _, role := range cachedRoles {
		keys = append(keys, cacheKey(orgID, role))
	}
	return c.client.Del(ctx, keys...).Err()
}
