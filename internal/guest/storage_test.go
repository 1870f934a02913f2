package guest

import (
	"context"
	"testing"

	"github.com/angelmondragon/packfinderz-storefront/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenKVSelectsBackend(t *testing.T) {
	ctx := context.Background()

	kv, err := OpenKV(ctx, config.StorageConfig{
		Backend:    config.StorageBackendSQLite,
		SQLitePath: "file::memory:",
	}, config.RedisConfig{})
	require.NoError(t, err)
	_, isSQLite := kv.(*SQLiteKV)
	assert.True(t, isSQLite)

	kv, err = OpenKV(ctx, config.StorageConfig{Backend: config.StorageBackendMemory}, config.RedisConfig{})
	require.NoError(t, err)
	_, isMemory := kv.(*MemoryKV)
	assert.True(t, isMemory)

	_, err = OpenKV(ctx, config.StorageConfig{Backend: "cookie"}, config.RedisConfig{})
	require.Error(t, err)
}
