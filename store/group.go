package store

import (
	"context"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ceyewan/storekit/clog"
	"github.com/ceyewan/storekit/xerrors"
)

// Group 聚合多个门面，统一管理连接和健康检查。
//
// 门面按传入顺序连接，按相反顺序断开。Group 不拥有任何后端句柄，只转发调用。
type Group struct {
	facades []Facade
	keys    []string
	logger  clog.Logger
}

// healthCheckConcurrency 是 HealthCheckAll 同时进行的检查数上限
const healthCheckConcurrency = 8

// NewGroup 创建门面组。
//
// 同类型同名的门面（例如两个都使用默认名称）在 HealthCheckAll 中以
// "kind/name#2"、"kind/name#3" 区分。
func NewGroup(facades ...Facade) *Group {
	return &Group{
		facades: facades,
		keys:    facadeKeys(facades),
		logger:  clog.Discard(),
	}
}

// WithLogger 设置 Watch 使用的日志记录器
func (g *Group) WithLogger(logger clog.Logger) *Group {
	if logger != nil {
		g.logger = logger.WithNamespace("store", "group")
	}
	return g
}

// Facades 返回组内的门面
func (g *Group) Facades() []Facade {
	return append([]Facade(nil), g.facades...)
}

// ConnectAll 按顺序连接所有门面。任一失败时，已连接的门面按相反顺序断开，
// 并返回第一个连接错误。
func (g *Group) ConnectAll(ctx context.Context) error {
	for i, f := range g.facades {
		if err := f.Connect(ctx); err != nil {
			for j := i - 1; j >= 0; j-- {
				if derr := g.facades[j].Disconnect(ctx); derr != nil {
					g.logger.WarnContext(ctx, "rollback disconnect failed",
						clog.String("name", g.facades[j].Name()),
						clog.Error(derr),
					)
				}
			}
			return xerrors.Wrapf(err, "connect %s %s", f.Kind(), f.Name())
		}
	}
	return nil
}

// DisconnectAll 按相反顺序断开所有门面，返回合并后的错误。可重复调用。
func (g *Group) DisconnectAll(ctx context.Context) error {
	var errs []error
	for i := len(g.facades) - 1; i >= 0; i-- {
		errs = append(errs, g.facades[i].Disconnect(ctx))
	}
	return xerrors.Combine(errs...)
}

// HealthCheckAll 并发检查所有门面，返回 "kind/name" 到健康状态的映射。
// 单个门面的检查失败不会中断其他检查。
func (g *Group) HealthCheckAll(ctx context.Context) map[string]bool {
	status := make([]bool, len(g.facades))
	var eg errgroup.Group
	eg.SetLimit(healthCheckConcurrency)
	for i, f := range g.facades {
		eg.Go(func() error {
			status[i] = f.HealthCheck(ctx)
			return nil
		})
	}
	_ = eg.Wait()

	result := make(map[string]bool, len(g.facades))
	for i, key := range g.keys {
		result[key] = status[i]
	}
	return result
}

// Healthy 所有门面均健康时返回 true
func (g *Group) Healthy(ctx context.Context) bool {
	for _, ok := range g.HealthCheckAll(ctx) {
		if !ok {
			return false
		}
	}
	return true
}

// Watch 周期性检查健康状态并记录状态变化，直到 ctx 取消。
//
// interval <= 0 时每个门面使用自己配置的健康检查间隔。
func (g *Group) Watch(ctx context.Context, interval time.Duration) {
	var wg sync.WaitGroup
	for _, f := range g.facades {
		every := interval
		if every <= 0 {
			every = defaultHealthCheckInterval
			if p, ok := f.(intervalProvider); ok && p.healthCheckInterval() > 0 {
				every = p.healthCheckInterval()
			}
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			g.watch(ctx, f, every)
		}()
	}
	wg.Wait()
}

func (g *Group) watch(ctx context.Context, f Facade, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	last := f.IsHealthy()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ok := f.HealthCheck(ctx)
			if ok == last {
				continue
			}
			fields := []clog.Field{
				clog.String("backend", string(f.Kind())),
				clog.String("name", f.Name()),
			}
			if ok {
				g.logger.InfoContext(ctx, "backend recovered", fields...)
			} else {
				g.logger.WarnContext(ctx, "backend unhealthy", fields...)
			}
			last = ok
		}
	}
}

// facadeKeys 为每个门面生成唯一的 "kind/name" 键，重复的键追加 "#序号"
func facadeKeys(facades []Facade) []string {
	keys := make([]string, len(facades))
	seen := make(map[string]int, len(facades))
	for i, f := range facades {
		key := string(f.Kind()) + "/" + f.Name()
		seen[key]++
		if n := seen[key]; n > 1 {
			key += "#" + strconv.Itoa(n)
		}
		keys[i] = key
	}
	return keys
}
