package store

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ceyewan/storekit/clog"
	"github.com/ceyewan/storekit/metrics"
	"github.com/ceyewan/storekit/xerrors"
)

const (
	outcomeSuccess = "success"
	outcomeError   = "error"
)

// instruments 门面共用的指标
type instruments struct {
	operations metrics.Counter
	duration   metrics.Histogram
	connected  metrics.Gauge
}

func newInstruments(meter metrics.Meter) (*instruments, error) {
	operations, err := meter.Counter("storekit_operations_total", "Total number of backend operations")
	if err != nil {
		return nil, err
	}
	duration, err := meter.Histogram("storekit_operation_duration_seconds", "Backend operation latency",
		metrics.WithUnit("s"),
		metrics.WithBuckets(0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5),
	)
	if err != nil {
		return nil, err
	}
	connected, err := meter.Gauge("storekit_connected", "Whether the facade holds a backend handle")
	if err != nil {
		return nil, err
	}
	return &instruments{operations: operations, duration: duration, connected: connected}, nil
}

// base 保存所有门面共有的状态：名称、日志、指标和连接标记。
// 具体门面自己持有类型化的句柄，并用 mu 保护句柄的切换。
type base struct {
	kind      Kind
	name      string
	interval  time.Duration
	logger    clog.Logger
	inst      *instruments
	connected atomic.Bool
	healthy   atomic.Bool
	mu        sync.RWMutex
}

func (b *base) init(kind Kind, name string, interval time.Duration, opt *options) error {
	inst, err := newInstruments(opt.meter)
	if err != nil {
		return xerrors.Wrapf(err, "%s[%s]: failed to create metrics", kind, name)
	}
	b.kind = kind
	b.name = name
	b.interval = interval
	b.inst = inst
	b.logger = opt.logger.With(clog.String("backend", string(kind)), clog.String("name", name))
	return nil
}

// IsConnected 返回是否持有后端句柄
func (b *base) IsConnected() bool {
	return b.connected.Load()
}

// IsHealthy 返回缓存的健康状态
func (b *base) IsHealthy() bool {
	return b.healthy.Load()
}

// Name 返回实例名称
func (b *base) Name() string {
	return b.name
}

// Kind 返回后端类型
func (b *base) Kind() Kind {
	return b.kind
}

func (b *base) healthCheckInterval() time.Duration {
	return b.interval
}

func (b *base) labels() []metrics.Label {
	return []metrics.Label{metrics.L("backend", string(b.kind)), metrics.L("name", b.name)}
}

// markConnected 在持有 mu 写锁时调用
func (b *base) markConnected(ctx context.Context, connected bool) {
	b.connected.Store(connected)
	b.healthy.Store(connected)
	val := 0.0
	if connected {
		val = 1
	}
	b.inst.connected.Set(ctx, val, b.labels()...)
}

// connectFailed 记录并翻译 Connect 阶段的错误
func (b *base) connectFailed(ctx context.Context, msg string, err error) error {
	b.logger.ErrorContext(ctx, msg, clog.ErrorWithCode(err, CodeConnection))
	return xerrors.Wrapf(xerrors.Mark(ErrConnection, err), "%s[%s]", b.kind, b.name)
}

// notConnected 返回带实例信息的 ErrNotConnected
func (b *base) notConnected() error {
	return xerrors.Wrapf(ErrNotConnected, "%s[%s]", b.kind, b.name)
}

// healthResult 更新健康缓存，探测失败只记录日志
func (b *base) healthResult(ctx context.Context, err error) bool {
	if err != nil {
		b.healthy.Store(false)
		b.logger.WarnContext(ctx, "health check failed", clog.Error(err))
		return false
	}
	b.healthy.Store(true)
	return true
}

// record 记录一次数据操作的结果。
//
// 操作失败时调用 absorb 完成错误翻译，返回值只用于判断是否失败，
// 调用方据此返回安全默认值，不会把错误交给上层。
func (b *base) record(ctx context.Context, op string, start time.Time, err error) error {
	outcome := outcomeSuccess
	if err != nil {
		outcome = outcomeError
	}
	labels := append(b.labels(), metrics.L("operation", op))
	b.inst.duration.Record(ctx, time.Since(start).Seconds(), labels...)
	b.inst.operations.Inc(ctx, append(labels, metrics.L("outcome", outcome))...)
	if err != nil {
		return b.absorb(ctx, op, err)
	}
	return nil
}

// absorb 是后端错误的唯一翻译边界：任何驱动错误都被归类为 ErrBackendOperation，
// 并以错误码记录日志。
func (b *base) absorb(ctx context.Context, op string, err error) error {
	translated := xerrors.Mark(ErrBackendOperation, err)
	b.logger.ErrorContext(ctx, "backend operation failed",
		clog.String("operation", op),
		clog.ErrorWithCode(err, CodeBackendOperation),
	)
	return translated
}
