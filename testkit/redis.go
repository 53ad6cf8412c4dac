package testkit

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/ceyewan/storekit/store"
)

// NewMiniRedisConfig 启动进程内的 miniredis 并返回键值存储配置
func NewMiniRedisConfig(t *testing.T) (*store.KeyValueConfig, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	return &store.KeyValueConfig{
		Name: "test-miniredis",
		Addr: mr.Addr(),
	}, mr
}

// NewRedisContainerConfig 使用 testcontainers 创建 Redis 容器并返回配置
// 生命周期由 t.Cleanup 管理
func NewRedisContainerConfig(t *testing.T) *store.KeyValueConfig {
	t.Helper()
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err, "failed to start Redis container")
	t.Cleanup(func() {
		_ = container.Terminate(ctx)
	})

	url, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	return &store.KeyValueConfig{
		Name:     "testcontainer-redis",
		URL:      url,
		PoolSize: 10,
	}
}

// NewKeyValue 创建并连接键值存储门面
// 生命周期由 t.Cleanup 管理
func NewKeyValue(t *testing.T, cfg *store.KeyValueConfig, opts ...store.Option) *store.KeyValue {
	t.Helper()
	kv, err := store.NewKeyValue(cfg, append([]store.Option{store.WithLogger(NewLogger())}, opts...)...)
	require.NoError(t, err, "failed to create keyvalue facade")
	require.NoError(t, kv.Connect(context.Background()), "failed to connect keyvalue facade")
	t.Cleanup(func() {
		_ = kv.Disconnect(context.Background())
	})
	return kv
}
