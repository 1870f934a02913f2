package guest

import (
	"context"
	"errors"

	pkgredis "github.com/angelmondragon/packfinderz-storefront/pkg/redis"
	"github.com/redis/go-redis/v9"
)

// RedisKV persists ledger state in redis, for kiosk deployments where the
// guest session outlives a single device process.
type RedisKV struct {
	client *pkgredis.Client
}

func NewRedisKV(client *pkgredis.Client) *RedisKV {
	return &RedisKV{client: client}
}

func (r *RedisKV) Get(ctx context.Context, key string) (string, error) {
	value, err := r.client.Get(ctx, key)
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

func (r *RedisKV) Set(ctx context.Context, key, value string) error {
	return r.client.Set(ctx, key, value, 0)
}

func (r *RedisKV) Del(ctx context.Context, key string) error {
	return r.client.Del(ctx, key)
}
