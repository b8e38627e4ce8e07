package cache

import (
	"context"
	"encoding/json"
	"time"

	redis "github.com/redis/go-redis/v9"

	"tokosync/backend/internal/importer"
)

type RedisPreviewCache struct {
	client *redis.Client
}

func NewRedisPreviewCache(addr string, password string, db int) *RedisPreviewCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisPreviewCache{client: client}
}

func (c *RedisPreviewCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisPreviewCache) Close() error {
	return c.client.Close()
}

func (c *RedisPreviewCache) Get(ctx context.Context, key string) (*importer.PreviewResult, bool, error) {
	val, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var preview importer.PreviewResult
	if err := json.Unmarshal([]byte(val), &preview); err != nil {
		return nil, false, err
	}
	return &preview, true, nil
}

func (c *RedisPreviewCache) Set(ctx context.Context, key string, value *importer.PreviewResult, ttl time.Duration) error {
	if value == nil {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, payload, ttl).Err()
}

func (c *RedisPreviewCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}
