package feedcache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const genKey = "feed:gen"

// Redis is a Cache backed by a shared Redis instance. Invalidation bumps a
// generation counter instead of scanning keys, so stale pages simply age out
// via their TTL.
type Redis struct {
	client *redis.Client
}

// NewRedis wraps the given client.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (r *Redis) versionedKey(ctx context.Context, key string) (string, error) {
	gen, err := r.client.Get(ctx, genKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", err
	}
	return fmt.Sprintf("feed:%d:%s", gen, key), nil
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	vk, err := r.versionedKey(ctx, key)
	if err != nil {
		return nil, false, err
	}
	value, err := r.client.Get(ctx, vk).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	vk, err := r.versionedKey(ctx, key)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, vk, value, ttl).Err()
}

func (r *Redis) InvalidateAll(ctx context.Context) error {
	return r.client.Incr(ctx, genKey).Err()
}
