package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestKeyValueConfigValidation 测试键值存储配置验证
func TestKeyValueConfigValidation(t *testing.T) {
	tests := []struct {
		name        string
		cfg         *KeyValueConfig
		wantErr     bool
		errContains string
	}{
		{name: "addr with defaults", cfg: &KeyValueConfig{Addr: "localhost:6379"}},
		{name: "url", cfg: &KeyValueConfig{URL: "redis://:secret@localhost:6379/2"}},
		{name: "empty address", cfg: &KeyValueConfig{}, wantErr: true, errContains: "地址不能为空"},
		{name: "bad url", cfg: &KeyValueConfig{URL: "http://localhost"}, wantErr: true, errContains: "连接 URL 无效"},
		{name: "negative db", cfg: &KeyValueConfig{Addr: "localhost:6379", DB: -1}, wantErr: true, errContains: "数据库编号不能小于0"},
		{
			name:        "min idle above pool size",
			cfg:         &KeyValueConfig{Addr: "localhost:6379", PoolSize: 5, MinIdleConns: 10},
			wantErr:     true,
			errContains: "最小空闲连接数不能大于连接池大小",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errContains)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "default", tt.cfg.Name)
			assert.Equal(t, 20, tt.cfg.PoolSize)
			assert.Equal(t, 30*time.Second, tt.cfg.HealthCheckInterval)
		})
	}
}

func TestKeyValueRedisOptions(t *testing.T) {
	cfg := &KeyValueConfig{URL: "redis://:secret@cache:6380/3", PoolSize: 7, PoolTimeout: time.Second}
	require.NoError(t, cfg.validate())

	opt := cfg.redisOptions()
	assert.Equal(t, "cache:6380", opt.Addr)
	assert.Equal(t, "secret", opt.Password)
	assert.Equal(t, 3, opt.DB)
	assert.Equal(t, 7, opt.PoolSize)
	assert.Equal(t, time.Second, opt.PoolTimeout)
	assert.Equal(t, -1, opt.MaxRetries)
}

// TestDocumentConfigValidation 测试文档存储配置验证
func TestDocumentConfigValidation(t *testing.T) {
	tests := []struct {
		name        string
		cfg         *DocumentConfig
		wantErr     bool
		errContains string
	}{
		{name: "valid", cfg: &DocumentConfig{URI: "mongodb://localhost:27017", Database: "social"}},
		{name: "empty uri", cfg: &DocumentConfig{Database: "social"}, wantErr: true, errContains: "连接地址不能为空"},
		{name: "empty database", cfg: &DocumentConfig{URI: "mongodb://localhost"}, wantErr: true, errContains: "数据库名不能为空"},
		{
			name:        "min pool above max",
			cfg:         &DocumentConfig{URI: "mongodb://localhost", Database: "social", MaxPoolSize: 5, MinPoolSize: 6},
			wantErr:     true,
			errContains: "最小连接数不能大于最大连接数",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errContains)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, uint64(50), tt.cfg.MaxPoolSize)
			assert.Equal(t, uint64(10), tt.cfg.MinPoolSize)
			assert.Equal(t, 30*time.Second, tt.cfg.MaxIdleTime)
			assert.Equal(t, 5*time.Second, tt.cfg.WaitQueueTimeout)
			assert.Equal(t, 5*time.Second, tt.cfg.ServerSelectionTimeout)
			assert.NotEmpty(t, tt.cfg.Indexes)
		})
	}
}

// TestSearchConfigValidation 测试搜索配置验证
func TestSearchConfigValidation(t *testing.T) {
	cfg := &SearchConfig{}
	err := cfg.validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "地址不能为空")

	cfg = &SearchConfig{Addresses: []string{"http://localhost:9200"}, APIKey: "k", Username: "u"}
	err = cfg.validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "不能同时配置")

	cfg = &SearchConfig{Addresses: []string{"http://localhost:9200"}}
	require.NoError(t, cfg.validate())
	assert.Equal(t, 20, cfg.MaxIdleConnsPerHost)
	assert.Equal(t, 10*time.Second, cfg.ResponseHeaderTimeout)
}

// TestRelationalConfigValidation 测试关系型存储配置验证
func TestRelationalConfigValidation(t *testing.T) {
	tests := []struct {
		name        string
		cfg         *RelationalConfig
		wantErr     bool
		errContains string
	}{
		{name: "postgres fields", cfg: &RelationalConfig{Host: "localhost", Username: "u", Database: "d"}},
		{name: "mysql dsn", cfg: &RelationalConfig{Driver: DriverMySQL, DSN: "u:p@tcp(localhost:3306)/d"}},
		{name: "sqlite memory", cfg: &RelationalConfig{Driver: DriverSQLite, Path: ":memory:"}},
		{name: "missing host", cfg: &RelationalConfig{Username: "u", Database: "d"}, wantErr: true, errContains: "主机地址不能为空"},
		{name: "missing user", cfg: &RelationalConfig{Host: "h", Database: "d"}, wantErr: true, errContains: "用户名不能为空"},
		{name: "missing database", cfg: &RelationalConfig{Host: "h", Username: "u"}, wantErr: true, errContains: "数据库名不能为空"},
		{name: "sqlite without path", cfg: &RelationalConfig{Driver: DriverSQLite}, wantErr: true, errContains: "数据库路径不能为空"},
		{name: "unknown driver", cfg: &RelationalConfig{Driver: "oracle"}, wantErr: true, errContains: "不支持的驱动"},
		{
			name:        "idle above open",
			cfg:         &RelationalConfig{Host: "h", Username: "u", Database: "d", MaxOpenConns: 2, MaxIdleConns: 5},
			wantErr:     true,
			errContains: "最大空闲连接数不能大于最大连接数",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errContains)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, tt.cfg.dsn())
		})
	}
}

func TestRelationalDSN(t *testing.T) {
	pg := &RelationalConfig{Host: "db", Username: "u", Password: "p", Database: "social"}
	require.NoError(t, pg.validate())
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=social sslmode=disable", pg.dsn())

	my := &RelationalConfig{Driver: DriverMySQL, Host: "db", Username: "u", Password: "p", Database: "social"}
	require.NoError(t, my.validate())
	assert.Equal(t, "u:p@tcp(db:3306)/social?charset=utf8mb4&parseTime=True&loc=Local", my.dsn())

	lite := &RelationalConfig{Driver: DriverSQLite, Path: ":memory:", MaxOpenConns: 10}
	require.NoError(t, lite.validate())
	assert.Equal(t, ":memory:", lite.dsn())
	assert.Equal(t, 1, lite.MaxOpenConns)
}

// TestConstructorsRejectInvalidConfig 测试构造函数返回 ErrConfig
func TestConstructorsRejectInvalidConfig(t *testing.T) {
	_, err := NewKeyValue(&KeyValueConfig{})
	assert.ErrorIs(t, err, ErrConfig)
	_, err = NewKeyValue(nil)
	assert.ErrorIs(t, err, ErrConfig)

	_, err = NewDocument(&DocumentConfig{})
	assert.ErrorIs(t, err, ErrConfig)

	_, err = NewSearch(&SearchConfig{})
	assert.ErrorIs(t, err, ErrConfig)
	_, err = NewSearch(&SearchConfig{Addresses: []string{"https://localhost:9200"}, CACert: []byte("not a pem")})
	assert.ErrorIs(t, err, ErrConfig)
	_, err = NewSearch(&SearchConfig{Addresses: []string{"https://localhost:9200"}, CACertFile: "/nonexistent/ca.pem"})
	assert.ErrorIs(t, err, ErrConfig)

	_, err = NewRelational(&RelationalConfig{Driver: "oracle"})
	assert.ErrorIs(t, err, ErrConfig)
}

// TestConfigNotMutated 测试构造函数复制配置，调用方的结构体不被修改
func TestConfigNotMutated(t *testing.T) {
	cfg := &KeyValueConfig{Addr: "localhost:6379"}
	kv, err := NewKeyValue(cfg)
	require.NoError(t, err)
	assert.Equal(t, "", cfg.Name)
	assert.Equal(t, 0, cfg.PoolSize)
	assert.Equal(t, "default", kv.Name())
}

// TestPoolDefaultsFollowCeiling 测试只调低连接上限时，下限默认值随之收紧
func TestPoolDefaultsFollowCeiling(t *testing.T) {
	doc := &DocumentConfig{URI: "mongodb://localhost", Database: "social", MaxPoolSize: 5}
	require.NoError(t, doc.validate())
	assert.Equal(t, uint64(5), doc.MinPoolSize)

	rel := &RelationalConfig{Driver: DriverSQLite, Path: "/tmp/social.db", MaxOpenConns: 5}
	require.NoError(t, rel.validate())
	assert.Equal(t, 5, rel.MaxIdleConns)

	_, err := NewDocument(&DocumentConfig{URI: "mongodb://localhost", Database: "social", MaxPoolSize: 5})
	assert.NoError(t, err)
	_, err = NewRelational(&RelationalConfig{Driver: DriverSQLite, Path: "/tmp/social.db", MaxOpenConns: 5})
	assert.NoError(t, err)
}

// TestSQLiteMemorySingleConnection 测试各种内存库写法都被限制为单连接
func TestSQLiteMemorySingleConnection(t *testing.T) {
	tests := []struct {
		name   string
		cfg    *RelationalConfig
		memory bool
	}{
		{name: "path", cfg: &RelationalConfig{Driver: DriverSQLite, Path: ":memory:"}, memory: true},
		{name: "dsn", cfg: &RelationalConfig{Driver: DriverSQLite, DSN: ":memory:"}, memory: true},
		{name: "uri mode", cfg: &RelationalConfig{Driver: DriverSQLite, DSN: "file:social?mode=memory&cache=shared"}, memory: true},
		{name: "file", cfg: &RelationalConfig{Driver: DriverSQLite, Path: "/tmp/social.db"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, tt.cfg.validate())
			if tt.memory {
				assert.Equal(t, 1, tt.cfg.MaxOpenConns)
				assert.Equal(t, 1, tt.cfg.MaxIdleConns)
				return
			}
			assert.Equal(t, 20, tt.cfg.MaxOpenConns)
		})
	}
}
