package testkit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"

	"github.com/ceyewan/storekit/store"
)

// NewMongoContainerConfig 使用 testcontainers 创建 MongoDB 容器并返回配置，
// 每次调用使用独立的数据库名
// 生命周期由 t.Cleanup 管理
func NewMongoContainerConfig(t *testing.T) *store.DocumentConfig {
	t.Helper()
	ctx := context.Background()

	container, err := mongodb.Run(ctx, "mongo:7")
	require.NoError(t, err, "failed to start MongoDB container")
	t.Cleanup(func() {
		_ = container.Terminate(ctx)
	})

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	return &store.DocumentConfig{
		Name:        "testcontainer-mongo",
		URI:         uri,
		Database:    "storekit_" + NewID(),
		MaxPoolSize: 10,
		MinPoolSize: 1,
		MaxIdleTime: 30 * time.Second,
	}
}

// NewDocument 创建并连接文档存储门面
// 生命周期由 t.Cleanup 管理
func NewDocument(t *testing.T, cfg *store.DocumentConfig, opts ...store.Option) *store.Document {
	t.Helper()
	d, err := store.NewDocument(cfg, append([]store.Option{store.WithLogger(NewLogger())}, opts...)...)
	require.NoError(t, err, "failed to create document facade")
	require.NoError(t, d.Connect(context.Background()), "failed to connect document facade")
	t.Cleanup(func() {
		_ = d.Disconnect(context.Background())
	})
	return d
}
