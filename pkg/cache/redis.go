package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/go-research/deepresearch/pkg/logger"
)

// RedisCache is the distributed alternative to MemoryCache, selected at
// process start whenever OrchestratorConfig.RedisURL is non-empty.
// Grounded on pkg/discovery's redis.ParseURL/redis.NewClient construction.
type RedisCache struct {
	client *redis.Client
	logger logger.Logger
}

// NewRedisCache parses redisURL, pings the server once to fail fast, and
// returns a ready RedisCache.
func NewRedisCache(redisURL string, log logger.Logger) (*RedisCache, error) {
	if log == nil {
		log = logger.NewDefaultLogger()
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("cache: invalid redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("cache: redis ping failed: %w", err)
	}

	return &RedisCache{client: client, logger: log}, nil
}

func (c *RedisCache) Get(ctx context.Context, query string) (string, bool) {
	val, err := c.client.Get(ctx, redisKey(query)).Result()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("cache: redis get failed", "error", err)
		}
		return "", false
	}
	return val, true
}

func (c *RedisCache) Set(ctx context.Context, query, rewordedQuery string, ttl time.Duration) {
	if err := c.client.Set(ctx, redisKey(query), rewordedQuery, ttl).Err(); err != nil {
		c.logger.Warn("cache: redis set failed", "error", err)
	}
}

func redisKey(query string) string {
	return "deepresearch:reword:" + hashQuery(query)
}
