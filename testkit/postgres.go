package testkit

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/ceyewan/storekit/store"
)

// NewPostgresContainerConfig 使用 testcontainers 创建 PostgreSQL 容器并返回配置
// 生命周期由 t.Cleanup 管理
func NewPostgresContainerConfig(t *testing.T) *store.RelationalConfig {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:17-alpine",
		postgres.WithDatabase("storekit_db"),
		postgres.WithUsername("storekit_user"),
		postgres.WithPassword("storekit_password"),
		postgres.BasicWaitStrategies(), // 等待 PostgreSQL 完全启动
	)
	require.NoError(t, err, "failed to start PostgreSQL container")
	t.Cleanup(func() {
		_ = container.Terminate(ctx)
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)

	mappedPort, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	port, err := strconv.Atoi(mappedPort.Port())
	require.NoError(t, err)

	return &store.RelationalConfig{
		Name:            "testcontainer-postgres",
		Driver:          store.DriverPostgres,
		Host:            host,
		Port:            port,
		Username:        "storekit_user",
		Password:        "storekit_password",
		Database:        "storekit_db",
		SSLMode:         "disable",
		MaxIdleConns:    2,
		MaxOpenConns:    10,
		ConnMaxLifetime: time.Hour,
	}
}
