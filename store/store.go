// Package store 为 storekit 提供统一的多后端数据访问层。
//
// 每种后端对应一个连接管理门面（Facade），门面独占一个带连接池的客户端句柄：
//   - Document: 文档存储（MongoDB）
//   - KeyValue: 键值存储（Redis）
//   - Search: 搜索索引（Elasticsearch）
//   - Relational: 关系型存储（PostgreSQL / MySQL / SQLite，基于 GORM）
//
// 生命周期：
//
//	NewXXX() 只校验配置，不建立连接
//	Connect() 建立连接池并执行一次存活探测，成功后进入已连接状态
//	Disconnect() 释放连接池，幂等
//
// 错误约定：
//   - Connect 失败返回 ErrConnection，驱动原始错误保留在错误链中
//   - 未连接时调用数据操作返回 ErrNotConnected
//   - 数据操作的后端错误在门面边界被吸收：记录日志和指标后返回安全默认值（false、0、nil、空切片），error 为 nil
//   - HealthCheck 从不返回错误，也不会 panic
//
// 基本使用：
//
//	kv, err := store.NewKeyValue(&store.KeyValueConfig{Addr: "127.0.0.1:6379"},
//		store.WithLogger(logger),
//		store.WithMeter(meter),
//	)
//	if err != nil {
//		panic(err)
//	}
//	if err := kv.Connect(ctx); err != nil {
//		panic(err)
//	}
//	defer kv.Disconnect(context.Background())
//
//	kv.Set(ctx, "user:1", map[string]any{"name": "alice"}, time.Hour)
//	v, _ := kv.Get(ctx, "user:1") // map[string]any{"name": "alice"}
//
// 门面之间互不调用，需要同时管理多个后端时使用 Group 聚合。
package store

import (
	"context"
	"time"
)

// Kind 后端类型
type Kind string

const (
	KindDocument   Kind = "document"
	KindKeyValue   Kind = "keyvalue"
	KindSearch     Kind = "search"
	KindRelational Kind = "relational"
)

// Record 透传的逻辑记录（文档、行、搜索命中）
type Record = map[string]any

// Facade 定义所有连接管理门面的通用行为。
//
// 所有方法均为并发安全。门面只在 Connect/Disconnect 切换句柄时加锁，
// 数据操作不持有锁，并发控制和背压完全由驱动的连接池负责。
type Facade interface {
	// Connect 建立连接池并执行存活探测。
	//
	// 已连接时直接返回 nil。失败时返回 ErrConnection，门面保持未连接状态。
	// 本层不做任何自动重试，重试策略由调用方决定。
	Connect(ctx context.Context) error

	// Disconnect 释放连接池及所有底层连接。
	//
	// 幂等，未连接时调用是空操作。无论释放是否出错都会清除已连接标记。
	Disconnect(ctx context.Context) error

	// HealthCheck 执行一次存活探测。
	//
	// 未连接或探测失败时返回 false，错误只记录日志。结果会缓存到 IsHealthy。
	HealthCheck(ctx context.Context) bool

	// IsConnected 返回是否持有后端句柄
	IsConnected() bool

	// IsHealthy 返回最后一次 Connect 或 HealthCheck 的结果
	IsHealthy() bool

	// Name 返回实例名称，用于日志和指标
	Name() string

	// Kind 返回后端类型
	Kind() Kind
}

// intervalProvider 由内置门面实现，Group.Watch 用它读取配置的健康检查间隔
type intervalProvider interface {
	healthCheckInterval() time.Duration
}
