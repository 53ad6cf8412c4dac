package config

import "github.com/ceyewan/storekit/xerrors"

var (
	// ErrValidationFailed 配置为空或验证失败
	ErrValidationFailed = xerrors.New("config: validation failed")

	// ErrNotLoaded 在 Load 之前调用了 Watch
	ErrNotLoaded = xerrors.New("config: not loaded")
)
