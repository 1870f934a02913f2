package guest

import (
	"context"
	"fmt"

	"github.com/angelmondragon/packfinderz-storefront/pkg/config"
	pkgredis "github.com/angelmondragon/packfinderz-storefront/pkg/redis"
)

// OpenKV builds the ledger storage selected by configuration.
func OpenKV(ctx context.Context, storage config.StorageConfig, redisCfg config.RedisConfig) (KV, error) {
	switch storage.Backend {
	case config.StorageBackendSQLite:
		return NewSQLiteKV(storage.SQLitePath)
	case config.StorageBackendRedis:
		client, err := pkgredis.New(ctx, redisCfg)
		if err != nil {
			return nil, err
		}
		return NewRedisKV(client), nil
	case config.StorageBackendMemory:
		return NewMemoryKV(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", storage.Backend)
	}
}
