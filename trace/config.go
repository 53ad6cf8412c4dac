package trace

import "github.com/ceyewan/storekit/xerrors"

// ErrInvalidConfig 链路追踪配置无效
var ErrInvalidConfig = xerrors.New("trace: invalid config")

// Config 链路追踪配置
type Config struct {
	ServiceName string  `mapstructure:"service_name"`
	Endpoint    string  `mapstructure:"endpoint"`
	Sampler     float64 `mapstructure:"sampler"`
	Batcher     string  `mapstructure:"batcher"`
	Insecure    bool    `mapstructure:"insecure"`
	// Disabled 为 true 时只在进程内生成 TraceID，不导出 Span
	Disabled bool `mapstructure:"disabled"`
}

// DefaultConfig 返回默认配置
func DefaultConfig(serviceName string) *Config {
	return &Config{
		ServiceName: serviceName,
		Endpoint:    "localhost:4317",
		Sampler:     1.0,
		Batcher:     "batch",
		Insecure:    true,
	}
}

func (c *Config) validate() error {
	if c == nil {
		return xerrors.Wrap(ErrInvalidConfig, "配置不能为空")
	}
	if c.ServiceName == "" {
		return xerrors.Wrap(ErrInvalidConfig, "服务名不能为空")
	}
	if c.Disabled {
		return nil
	}
	if c.Endpoint == "" {
		return xerrors.Wrap(ErrInvalidConfig, "导出地址不能为空")
	}
	if c.Sampler < 0 || c.Sampler > 1 {
		return xerrors.Wrapf(ErrInvalidConfig, "采样率必须在 0 到 1 之间，当前为 %v", c.Sampler)
	}
	if c.Batcher != "" && c.Batcher != "batch" && c.Batcher != "simple" {
		return xerrors.Wrapf(ErrInvalidConfig, "batcher 只能是 batch 或 simple，当前为 %q", c.Batcher)
	}
	return nil
}
