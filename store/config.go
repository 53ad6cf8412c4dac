package store

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// 通用默认值
const (
	defaultName                = "default"
	defaultHealthCheckInterval = 30 * time.Second
)

// DocumentConfig 文档存储（MongoDB）连接配置
type DocumentConfig struct {
	// 基础配置
	Name                string        `mapstructure:"name"`                  // 实例名称 (默认: "default")
	HealthCheckInterval time.Duration `mapstructure:"health_check_interval"` // 健康检查间隔 (默认: 30s)

	// 核心配置
	URI      string `mapstructure:"uri"`      // [必填] 连接地址，如 "mongodb://127.0.0.1:27017"
	Database string `mapstructure:"database"` // [必填] 数据库名

	// 连接池配置
	MaxPoolSize            uint64        `mapstructure:"max_pool_size"`            // 最大连接数 (默认: 50)
	MinPoolSize            uint64        `mapstructure:"min_pool_size"`            // 最小连接数 (默认: 10)
	MaxIdleTime            time.Duration `mapstructure:"max_idle_time"`            // 连接最大空闲时间 (默认: 30s)
	WaitQueueTimeout       time.Duration `mapstructure:"wait_queue_timeout"`       // 单次操作等待上限 (默认: 5s)
	ServerSelectionTimeout time.Duration `mapstructure:"server_selection_timeout"` // 服务器选择超时 (默认: 5s)
	ConnectTimeout         time.Duration `mapstructure:"connect_timeout"`          // 建连超时 (默认: 10s)
	SocketTimeout          time.Duration `mapstructure:"socket_timeout"`           // socket 读写超时 (默认: 10s)

	// Indexes 由 EnsureIndexes 声明的索引，为空时使用 DefaultIndexPlan()
	Indexes IndexPlan `mapstructure:"-"`
}

func (c *DocumentConfig) setDefaults() {
	if c.Name == "" {
		c.Name = defaultName
	}
	if c.HealthCheckInterval == 0 {
		c.HealthCheckInterval = defaultHealthCheckInterval
	}
	if c.MaxPoolSize == 0 {
		c.MaxPoolSize = 50
	}
	if c.MinPoolSize == 0 {
		c.MinPoolSize = min(10, c.MaxPoolSize)
	}
	if c.MaxIdleTime == 0 {
		c.MaxIdleTime = 30 * time.Second
	}
	if c.WaitQueueTimeout == 0 {
		c.WaitQueueTimeout = 5 * time.Second
	}
	if c.ServerSelectionTimeout == 0 {
		c.ServerSelectionTimeout = 5 * time.Second
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 10 * time.Second
	}
	if c.SocketTimeout == 0 {
		c.SocketTimeout = 10 * time.Second
	}
	if len(c.Indexes) == 0 {
		c.Indexes = DefaultIndexPlan()
	}
}

func (c *DocumentConfig) validate() error {
	c.setDefaults()
	if c.URI == "" {
		return fmt.Errorf("连接地址不能为空")
	}
	if c.Database == "" {
		return fmt.Errorf("数据库名不能为空")
	}
	if c.MinPoolSize > c.MaxPoolSize {
		return fmt.Errorf("最小连接数不能大于最大连接数")
	}
	return nil
}

// KeyValueConfig 键值存储（Redis）连接配置
type KeyValueConfig struct {
	// 基础配置
	Name                string        `mapstructure:"name"`                  // 实例名称 (默认: "default")
	HealthCheckInterval time.Duration `mapstructure:"health_check_interval"` // 健康检查间隔 (默认: 30s)

	// 核心配置，URL 与 Addr 二选一，URL 优先
	URL      string `mapstructure:"url"`      // 如 "redis://:password@127.0.0.1:6379/0"
	Addr     string `mapstructure:"addr"`     // 如 "127.0.0.1:6379"
	Password string `mapstructure:"password"` // [可选] 认证密码
	DB       int    `mapstructure:"db"`       // [可选] 数据库编号 (默认: 0)

	// 连接池配置
	PoolSize        int           `mapstructure:"pool_size"`          // 最大连接数 (默认: 20)
	MinIdleConns    int           `mapstructure:"min_idle_conns"`     // 最小空闲连接数 (默认: 0)
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"` // 连接最大空闲时间 (默认: 30s)
	PoolTimeout     time.Duration `mapstructure:"pool_timeout"`       // 连接池耗尽时的等待上限 (默认: 5s)
	DialTimeout     time.Duration `mapstructure:"dial_timeout"`       // 建连超时 (默认: 5s)
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`       // 读取超时 (默认: 3s)
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`      // 写入超时 (默认: 3s)
}

func (c *KeyValueConfig) setDefaults() {
	if c.Name == "" {
		c.Name = defaultName
	}
	if c.HealthCheckInterval == 0 {
		c.HealthCheckInterval = defaultHealthCheckInterval
	}
	if c.PoolSize <= 0 {
		c.PoolSize = 20
	}
	if c.ConnMaxIdleTime == 0 {
		c.ConnMaxIdleTime = 30 * time.Second
	}
	if c.PoolTimeout == 0 {
		c.PoolTimeout = 5 * time.Second
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 3 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 3 * time.Second
	}
}

func (c *KeyValueConfig) validate() error {
	c.setDefaults()
	if c.URL == "" && c.Addr == "" {
		return fmt.Errorf("地址不能为空")
	}
	if c.URL != "" {
		if _, err := redis.ParseURL(c.URL); err != nil {
			return fmt.Errorf("连接 URL 无效: %w", err)
		}
	}
	if c.DB < 0 {
		return fmt.Errorf("数据库编号不能小于0")
	}
	if c.MinIdleConns < 0 {
		return fmt.Errorf("最小空闲连接数不能小于0")
	}
	if c.MinIdleConns > c.PoolSize {
		return fmt.Errorf("最小空闲连接数不能大于连接池大小")
	}
	return nil
}

// redisOptions 将配置转换为 go-redis 选项
func (c *KeyValueConfig) redisOptions() *redis.Options {
	opt := &redis.Options{
		Addr:     c.Addr,
		Password: c.Password,
		DB:       c.DB,
	}
	if c.URL != "" {
		// validate 已经校验过 URL
		opt, _ = redis.ParseURL(c.URL)
	}
	opt.PoolSize = c.PoolSize
	opt.MinIdleConns = c.MinIdleConns
	opt.ConnMaxIdleTime = c.ConnMaxIdleTime
	opt.PoolTimeout = c.PoolTimeout
	opt.DialTimeout = c.DialTimeout
	opt.ReadTimeout = c.ReadTimeout
	opt.WriteTimeout = c.WriteTimeout
	// 本层不做自动重试
	opt.MaxRetries = -1
	return opt
}

// SearchConfig 搜索索引（Elasticsearch）连接配置
type SearchConfig struct {
	// 基础配置
	Name                string        `mapstructure:"name"`                  // 实例名称 (默认: "default")
	HealthCheckInterval time.Duration `mapstructure:"health_check_interval"` // 健康检查间隔 (默认: 30s)

	// 核心配置
	Addresses []string `mapstructure:"addresses"` // [必填] 节点地址，如 ["http://127.0.0.1:9200"]
	Username  string   `mapstructure:"username"`  // [可选] 用户名
	Password  string   `mapstructure:"password"`  // [可选] 密码
	APIKey    string   `mapstructure:"api_key"`   // [可选] API Key，与用户名密码二选一

	// TLS 配置，CACert 优先于 CACertFile
	CACertFile string `mapstructure:"ca_cert_file"` // [可选] PEM 格式的 CA 证书路径
	CACert     []byte `mapstructure:"-"`            // [可选] PEM 格式的 CA 证书内容

	// 连接池配置
	MaxIdleConnsPerHost   int           `mapstructure:"max_idle_conns_per_host"` // 每个节点的最大空闲连接数 (默认: 20)
	IdleConnTimeout       time.Duration `mapstructure:"idle_conn_timeout"`       // 连接最大空闲时间 (默认: 30s)
	DialTimeout           time.Duration `mapstructure:"dial_timeout"`            // 建连超时 (默认: 5s)
	ResponseHeaderTimeout time.Duration `mapstructure:"response_header_timeout"` // 响应超时 (默认: 10s)
}

func (c *SearchConfig) setDefaults() {
	if c.Name == "" {
		c.Name = defaultName
	}
	if c.HealthCheckInterval == 0 {
		c.HealthCheckInterval = defaultHealthCheckInterval
	}
	if c.MaxIdleConnsPerHost <= 0 {
		c.MaxIdleConnsPerHost = 20
	}
	if c.IdleConnTimeout == 0 {
		c.IdleConnTimeout = 30 * time.Second
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.ResponseHeaderTimeout == 0 {
		c.ResponseHeaderTimeout = 10 * time.Second
	}
}

func (c *SearchConfig) validate() error {
	c.setDefaults()
	if len(c.Addresses) == 0 {
		return fmt.Errorf("地址不能为空")
	}
	if c.APIKey != "" && c.Username != "" {
		return fmt.Errorf("API Key 与用户名密码不能同时配置")
	}
	if len(c.CACert) == 0 && c.CACertFile != "" {
		pem, err := os.ReadFile(c.CACertFile)
		if err != nil {
			return fmt.Errorf("读取 CA 证书失败: %w", err)
		}
		c.CACert = pem
	}
	return nil
}

// tlsConfig 根据 CA 证书构造 TLS 配置，未配置证书时返回 nil
func (c *SearchConfig) tlsConfig() (*tls.Config, error) {
	if len(c.CACert) == 0 {
		return nil, nil
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(c.CACert) {
		return nil, fmt.Errorf("CA 证书无效")
	}
	return &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}

// 关系型存储支持的驱动
const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite"
)

// RelationalConfig 关系型存储连接配置
type RelationalConfig struct {
	// 基础配置
	Name                string        `mapstructure:"name"`                  // 实例名称 (默认: "default")
	HealthCheckInterval time.Duration `mapstructure:"health_check_interval"` // 健康检查间隔 (默认: 30s)

	// 核心配置
	Driver   string `mapstructure:"driver"`   // postgres | mysql | sqlite (默认: "postgres")
	DSN      string `mapstructure:"dsn"`      // 完整 DSN，若提供则忽略 Host/Port 等字段
	Host     string `mapstructure:"host"`     // 主机地址
	Port     int    `mapstructure:"port"`     // 端口 (默认: postgres 5432, mysql 3306)
	Username string `mapstructure:"username"` // 用户名
	Password string `mapstructure:"password"` // 密码
	Database string `mapstructure:"database"` // 数据库名
	SSLMode  string `mapstructure:"sslmode"`  // postgres sslmode (默认: "disable")
	Charset  string `mapstructure:"charset"`  // mysql 字符集 (默认: "utf8mb4")
	Path     string `mapstructure:"path"`     // sqlite 文件路径，":memory:" 表示内存数据库

	// 连接池配置
	MaxOpenConns    int           `mapstructure:"max_open_conns"`     // 最大连接数 (默认: 20)
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`     // 最大空闲连接数 (默认: 10)
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"` // 连接最大空闲时间 (默认: 30s)
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`  // 连接最大生命周期 (默认: 1h)

	// 日志配置
	SlowThreshold time.Duration `mapstructure:"slow_threshold"` // 慢查询阈值 (默认: 200ms)
	LogSQL        bool          `mapstructure:"log_sql"`        // 以 Debug 级别记录所有 SQL
}

func (c *RelationalConfig) setDefaults() {
	if c.Name == "" {
		c.Name = defaultName
	}
	if c.HealthCheckInterval == 0 {
		c.HealthCheckInterval = defaultHealthCheckInterval
	}
	if c.Driver == "" {
		c.Driver = DriverPostgres
	}
	if c.Port == 0 {
		switch c.Driver {
		case DriverPostgres:
			c.Port = 5432
		case DriverMySQL:
			c.Port = 3306
		}
	}
	if c.SSLMode == "" {
		c.SSLMode = "disable"
	}
	if c.Charset == "" {
		c.Charset = "utf8mb4"
	}
	if c.MaxOpenConns <= 0 {
		c.MaxOpenConns = 20
	}
	if c.MaxIdleConns <= 0 {
		c.MaxIdleConns = min(10, c.MaxOpenConns)
	}
	// 内存数据库的每个连接是独立的库，只能使用单连接
	if c.inMemory() {
		c.MaxOpenConns = 1
		c.MaxIdleConns = 1
	}
	if c.ConnMaxIdleTime == 0 {
		c.ConnMaxIdleTime = 30 * time.Second
	}
	if c.ConnMaxLifetime == 0 {
		c.ConnMaxLifetime = time.Hour
	}
	if c.SlowThreshold == 0 {
		c.SlowThreshold = 200 * time.Millisecond
	}
}

func (c *RelationalConfig) validate() error {
	c.setDefaults()
	switch c.Driver {
	case DriverPostgres, DriverMySQL:
		if c.DSN != "" {
			break
		}
		if c.Host == "" {
			return fmt.Errorf("主机地址不能为空")
		}
		if c.Username == "" {
			return fmt.Errorf("用户名不能为空")
		}
		if c.Database == "" {
			return fmt.Errorf("数据库名不能为空")
		}
	case DriverSQLite:
		if c.DSN == "" && c.Path == "" {
			return fmt.Errorf("数据库路径不能为空")
		}
	default:
		return fmt.Errorf("不支持的驱动: %s", c.Driver)
	}
	if c.MaxIdleConns > c.MaxOpenConns {
		return fmt.Errorf("最大空闲连接数不能大于最大连接数")
	}
	return nil
}

// inMemory 判断是否为 SQLite 内存数据库，DSN 与 Path 两种写法都识别
func (c *RelationalConfig) inMemory() bool {
	if c.Driver != DriverSQLite {
		return false
	}
	dsn := c.dsn()
	return strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
}

// dsn 返回驱动使用的连接串
func (c *RelationalConfig) dsn() string {
	if c.DSN != "" {
		return c.DSN
	}
	switch c.Driver {
	case DriverMySQL:
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=True&loc=Local",
			c.Username, c.Password, c.Host, c.Port, c.Database, c.Charset)
	case DriverSQLite:
		return c.Path
	default:
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.Username, c.Password, c.Database, c.SSLMode)
	}
}
