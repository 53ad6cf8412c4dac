package store

import (
	"github.com/ceyewan/storekit/clog"
	"github.com/ceyewan/storekit/metrics"
)

type options struct {
	logger  clog.Logger
	meter   metrics.Meter
	tracing bool
}

// Option 配置门面的选项
type Option func(*options)

// WithLogger 设置日志记录器
func WithLogger(logger clog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger.WithNamespace("store")
		}
	}
}

// WithMeter 设置指标收集器
func WithMeter(meter metrics.Meter) Option {
	return func(o *options) {
		o.meter = meter
	}
}

// WithTracing 为支持的驱动启用 OpenTelemetry 埋点。
//
// KeyValue 通过 redisotel 注册 tracing 和 metrics hook，Relational 通过 otelgorm 注册插件。
// 使用全局的 TracerProvider 和 MeterProvider。
func WithTracing() Option {
	return func(o *options) {
		o.tracing = true
	}
}

func applyOptions(opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = clog.Discard()
	}
	if o.meter == nil {
		o.meter = metrics.Discard()
	}
	return o
}
