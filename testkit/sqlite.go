package testkit

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ceyewan/storekit/store"
)

// NewSQLiteConfig 返回 SQLite 内存数据库配置，测试结束后数据自动消失
func NewSQLiteConfig() *store.RelationalConfig {
	return &store.RelationalConfig{
		Name:   "test-sqlite",
		Driver: store.DriverSQLite,
		Path:   ":memory:",
	}
}

// NewPersistentSQLiteConfig 返回持久化 SQLite 测试配置
// 数据库文件存储在 t.TempDir() 中
func NewPersistentSQLiteConfig(t *testing.T) *store.RelationalConfig {
	t.Helper()
	return &store.RelationalConfig{
		Name:   "test-sqlite-file",
		Driver: store.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "test.db"),
	}
}

// NewRelational 创建并连接关系型存储门面
// 生命周期由 t.Cleanup 管理
func NewRelational(t *testing.T, cfg *store.RelationalConfig, opts ...store.Option) *store.Relational {
	t.Helper()
	r, err := store.NewRelational(cfg, append([]store.Option{store.WithLogger(NewLogger())}, opts...)...)
	require.NoError(t, err, "failed to create relational facade")
	require.NoError(t, r.Connect(context.Background()), "failed to connect relational facade")
	t.Cleanup(func() {
		_ = r.Disconnect(context.Background())
	})
	return r
}
