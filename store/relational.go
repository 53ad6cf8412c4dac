package store

import (
	"context"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ceyewan/storekit/clog"
	"github.com/ceyewan/storekit/xerrors"
)

// Relational 关系型存储门面，基于 GORM，支持 PostgreSQL、MySQL 和 SQLite
type Relational struct {
	base
	cfg     RelationalConfig
	tracing bool
	db      *gorm.DB
}

var _ Facade = (*Relational)(nil)

// NewRelational 创建关系型存储门面，连接在 Connect 时建立
func NewRelational(cfg *RelationalConfig, opts ...Option) (*Relational, error) {
	if cfg == nil {
		return nil, xerrors.Wrap(ErrConfig, "relational config is nil")
	}
	c := *cfg
	if err := c.validate(); err != nil {
		return nil, xerrors.Wrapf(xerrors.Mark(ErrConfig, err), "invalid relational config")
	}

	opt := applyOptions(opts)
	r := &Relational{cfg: c, tracing: opt.tracing}
	if err := r.init(KindRelational, c.Name, c.HealthCheckInterval, opt); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Relational) dialector() gorm.Dialector {
	dsn := r.cfg.dsn()
	switch r.cfg.Driver {
	case DriverMySQL:
		return mysql.Open(dsn)
	case DriverSQLite:
		return sqlite.Open(dsn)
	default:
		return postgres.Open(dsn)
	}
}

// Connect 打开连接池并执行 PingContext
func (r *Relational) Connect(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.db != nil {
		return nil
	}

	r.logger.InfoContext(ctx, "attempting to connect to database", clog.String("driver", r.cfg.Driver))

	db, err := gorm.Open(r.dialector(), &gorm.Config{
		Logger:                 newGormLogger(r.logger, r.cfg.SlowThreshold, r.cfg.LogSQL),
		SkipDefaultTransaction: true,
		// 连通性由下面的 PingContext 检查，gorm 自带的 Ping 不接受 ctx
		DisableAutomaticPing: true,
	})
	if err != nil {
		return r.connectFailed(ctx, "failed to open database", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return r.connectFailed(ctx, "failed to get database instance", err)
	}
	sqlDB.SetMaxOpenConns(r.cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(r.cfg.MaxIdleConns)
	sqlDB.SetConnMaxIdleTime(r.cfg.ConnMaxIdleTime)
	sqlDB.SetConnMaxLifetime(r.cfg.ConnMaxLifetime)

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return r.connectFailed(ctx, "failed to ping database", err)
	}

	if r.tracing {
		if err := db.Use(otelgorm.NewPlugin()); err != nil {
			_ = sqlDB.Close()
			return r.connectFailed(ctx, "failed to register otelgorm plugin", err)
		}
	}

	r.db = db
	r.markConnected(ctx, true)
	r.logger.InfoContext(ctx, "successfully connected to database",
		clog.String("driver", r.cfg.Driver),
		clog.Int("max_open_conns", r.cfg.MaxOpenConns),
	)
	return nil
}

// Disconnect 关闭连接池
func (r *Relational) Disconnect(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.db == nil {
		r.markConnected(ctx, false)
		return nil
	}

	r.logger.InfoContext(ctx, "closing database connection")
	db := r.db
	r.db = nil
	r.markConnected(ctx, false)

	sqlDB, err := db.DB()
	if err == nil {
		err = sqlDB.Close()
	}
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to close database connection", clog.Error(err))
		return xerrors.Wrapf(err, "relational[%s]: close failed", r.name)
	}
	r.logger.InfoContext(ctx, "database connection closed successfully")
	return nil
}

// HealthCheck 执行 PingContext
func (r *Relational) HealthCheck(ctx context.Context) bool {
	db, err := r.acquire()
	if err != nil {
		r.healthy.Store(false)
		return false
	}
	sqlDB, err := db.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	return r.healthResult(ctx, err)
}

func (r *Relational) acquire() (*gorm.DB, error) {
	r.mu.RLock()
	db := r.db
	r.mu.RUnlock()
	if db == nil {
		return nil, r.notConnected()
	}
	return db, nil
}

// Exec 执行写语句，返回受影响的行数
func (r *Relational) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	db, err := r.acquire()
	if err != nil {
		return 0, err
	}
	start := time.Now()
	res := db.WithContext(ctx).Exec(sql, args...)
	if r.record(ctx, "exec", start, res.Error) != nil {
		return 0, nil
	}
	return res.RowsAffected, nil
}

// Query 执行查询，每一行转换为一条 Record。失败时返回空切片。
func (r *Relational) Query(ctx context.Context, sql string, args ...any) ([]Record, error) {
	db, err := r.acquire()
	if err != nil {
		return nil, err
	}
	start := time.Now()
	var rows []map[string]any
	res := db.WithContext(ctx).Raw(sql, args...).Scan(&rows)
	if r.record(ctx, "query", start, res.Error) != nil {
		return []Record{}, nil
	}
	out := make([]Record, 0, len(rows))
	for _, row := range rows {
		out = append(out, row)
	}
	return out, nil
}

// Insert 向 table 插入一行，返回是否写入成功
func (r *Relational) Insert(ctx context.Context, table string, rec Record) (bool, error) {
	db, err := r.acquire()
	if err != nil {
		return false, err
	}
	start := time.Now()
	res := db.WithContext(ctx).Table(table).Create(map[string]any(rec))
	if r.record(ctx, "insert", start, res.Error) != nil {
		return false, nil
	}
	return res.RowsAffected > 0, nil
}

// EnsureSchema 依次执行 DDL 语句，语句应当是幂等的（如 CREATE TABLE IF NOT EXISTS）。
//
// 这是初始化操作，后端错误以 ErrBackendOperation 返回。
func (r *Relational) EnsureSchema(ctx context.Context, statements ...string) error {
	db, err := r.acquire()
	if err != nil {
		return err
	}
	for i, stmt := range statements {
		start := time.Now()
		if err := r.record(ctx, "ensure_schema", start, db.WithContext(ctx).Exec(stmt).Error); err != nil {
			return xerrors.Wrapf(err, "relational[%s]: statement %d", r.name, i)
		}
	}
	return nil
}
