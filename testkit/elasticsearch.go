package testkit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/elasticsearch"

	"github.com/ceyewan/storekit/store"
)

const elasticPassword = "storekit_password"

// NewElasticsearchContainerConfig 使用 testcontainers 创建 Elasticsearch 容器并返回配置，
// 8.x 镜像默认开启 TLS，CA 证书从容器中读取
// 生命周期由 t.Cleanup 管理
func NewElasticsearchContainerConfig(t *testing.T) *store.SearchConfig {
	t.Helper()
	ctx := context.Background()

	container, err := elasticsearch.Run(ctx,
		"docker.elastic.co/elasticsearch/elasticsearch:8.15.3",
		elasticsearch.WithPassword(elasticPassword),
	)
	require.NoError(t, err, "failed to start Elasticsearch container")
	t.Cleanup(func() {
		_ = container.Terminate(ctx)
	})

	return &store.SearchConfig{
		Name:      "testcontainer-elasticsearch",
		Addresses: []string{container.Settings.Address},
		Username:  "elastic",
		Password:  container.Settings.Password,
		CACert:    container.Settings.CACert,
	}
}

// NewSearch 创建并连接搜索索引门面
// 生命周期由 t.Cleanup 管理
func NewSearch(t *testing.T, cfg *store.SearchConfig, opts ...store.Option) *store.Search {
	t.Helper()
	s, err := store.NewSearch(cfg, append([]store.Option{store.WithLogger(NewLogger())}, opts...)...)
	require.NoError(t, err, "failed to create search facade")
	require.NoError(t, s.Connect(context.Background()), "failed to connect search facade")
	t.Cleanup(func() {
		_ = s.Disconnect(context.Background())
	})
	return s
}
