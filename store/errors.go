package store

import "github.com/ceyewan/storekit/xerrors"

// Sentinel Errors
var (
	// ErrConnection 建立连接或首次存活探测失败
	ErrConnection = xerrors.New("store: connection failed")

	// ErrNotConnected 在 Connect 之前或 Disconnect 之后调用了数据操作
	ErrNotConnected = xerrors.New("store: not connected")

	// ErrBackendOperation 后端操作失败。数据操作内部吸收此错误，
	// 只有索引/表结构初始化这类非稳态操作会把它返回给调用方。
	ErrBackendOperation = xerrors.New("store: backend operation failed")

	// ErrConfig 配置无效
	ErrConfig = xerrors.New("store: invalid config")
)

// 日志中的错误码
const (
	CodeConnection       = "STORE_CONNECTION"
	CodeBackendOperation = "STORE_BACKEND_OPERATION"
)
