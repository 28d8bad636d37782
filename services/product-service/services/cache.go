package services

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// CacheVersionKey is read by catalog readers to build list cache keys;
// bumping it orphans every cached product list.
const CacheVersionKey = "products:version"

// CacheInvalidator drops cached catalog reads after products change.
type CacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

// CacheManager invalidates product caches held in Redis.
type CacheManager struct {
	redis *redis.Client
}

func NewCacheManager(rdb *redis.Client) *CacheManager {
	return &CacheManager{redis: rdb}
}

// Invalidate invalidates all product list caches by bumping the version.
func (cm *CacheManager) Invalidate(ctx context.Context) error {
	newVersion, err := cm.redis.Incr(ctx, CacheVersionKey).Result()
	if err != nil {
		return fmt.Errorf("failed to invalidate cache: %w", err)
	}
	zap.L().Info("Cache invalidated", zap.Int64("new_version", newVersion))
	return nil
}

type nopCache struct{}

func (nopCache) Invalidate(context.Context) error { return nil }
