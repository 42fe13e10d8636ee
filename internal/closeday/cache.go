package closeday

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// reportsCacheKey is versioned so a schema change invalidates stale
	// entries on deploy instead of failing to decode them.
	reportsCacheKey = "closeday:reports:v1"
	reportsCacheTTL = 10 * time.Minute
)

// RedisCache keeps the closure report listing in Redis. Cache failures are
// logged and treated as misses.
type RedisCache struct {
	rdb    *redis.Client
	logger *slog.Logger
}

func NewRedisCache(rdb *redis.Client, logger *slog.Logger) *RedisCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisCache{rdb: rdb, logger: logger}
}

func (c *RedisCache) GetReports(ctx context.Context) ([]Report, bool) {
	raw, err := c.rdb.Get(ctx, reportsCacheKey).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.logger.Warn("closure cache read", slog.Any("error", err))
		return nil, false
	}
	var reports []Report
	if err := json.Unmarshal(raw, &reports); err != nil {
		c.logger.Warn("closure cache decode", slog.Any("error", err))
		return nil, false
	}
	return reports, true
}

func (c *RedisCache) SetReports(ctx context.Context, reports []Report) {
	raw, err := json.Marshal(reports)
	if err != nil {
		c.logger.Warn("closure cache encode", slog.Any("error", err))
		return
	}
	if err := c.rdb.Set(ctx, reportsCacheKey, raw, reportsCacheTTL).Err(); err != nil {
		c.logger.Warn("closure cache write", slog.Any("error", err))
	}
}

func (c *RedisCache) Invalidate(ctx context.Context) {
	if err := c.rdb.Del(ctx, reportsCacheKey).Err(); err != nil {
		c.logger.Warn("closure cache invalidate", slog.Any("error", err))
	}
}
