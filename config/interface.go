// Package config 为使用 storekit 的应用提供配置加载能力，基于 Viper 实现。
//
// store 包本身不读取任何文件，各后端的连接配置由应用构造后传入。
// 本包负责把 YAML/JSON 文件、.env 文件和环境变量合并后反序列化到这些配置结构体中。
//
// 配置优先级：环境变量 > .env > 环境特定配置（config.<env>.yaml）> 基础配置
//
// 基本使用：
//
//	loader := config.MustLoad(
//		config.WithConfigName("storekit"),
//		config.WithConfigPaths("./configs"),
//		config.WithEnvPrefix("STOREKIT"),
//	)
//
//	var kvCfg store.KeyValueConfig
//	if err := loader.UnmarshalKey("keyvalue", &kvCfg); err != nil {
//		panic(err)
//	}
package config

import (
	"context"
	"time"
)

// Loader 定义配置加载器的核心行为
type Loader interface {
	// Load 加载配置并开始监听文件变化
	Load(ctx context.Context) error

	// Get 获取原始配置值
	Get(key string) any

	// Unmarshal 将整个配置反序列化到结构体
	Unmarshal(v any) error

	// UnmarshalKey 将指定 Key 的配置反序列化到结构体
	UnmarshalKey(key string, v any) error

	// Watch 监听配置变化，ctx 取消后通道关闭
	Watch(ctx context.Context, key string) (<-chan Event, error)
}

// Event 配置变更事件
type Event struct {
	Key       string
	Value     any
	OldValue  any
	Source    string // "file"
	Timestamp time.Time
}
