package config

import (
	"context"
	"strings"

	"github.com/ceyewan/storekit/clog"
)

// Config 加载器配置
type Config struct {
	Name      string   // 配置文件名称（不含扩展名），默认 "config"
	Paths     []string // 配置文件搜索路径，默认 [".", "./config"]
	FileType  string   // 配置文件类型，默认 "yaml"
	EnvPrefix string   // 环境变量前缀，默认 "STOREKIT"
	Logger    clog.Logger
}

// Option 配置选项
type Option func(*Config)

// WithConfigName 设置配置文件名称（不带扩展名）
func WithConfigName(name string) Option {
	return func(c *Config) {
		c.Name = name
	}
}

// WithConfigPaths 设置配置文件搜索路径（覆盖默认值）
func WithConfigPaths(paths ...string) Option {
	return func(c *Config) {
		c.Paths = paths
	}
}

// WithConfigType 设置配置文件类型 (yaml, json, toml)
func WithConfigType(typ string) Option {
	return func(c *Config) {
		c.FileType = typ
	}
}

// WithEnvPrefix 设置环境变量前缀
func WithEnvPrefix(prefix string) Option {
	return func(c *Config) {
		c.EnvPrefix = prefix
	}
}

// WithLogger 注入日志记录器
func WithLogger(logger clog.Logger) Option {
	return func(c *Config) {
		if logger != nil {
			c.Logger = logger.WithNamespace("config")
		}
	}
}

func (c *Config) setDefaults() {
	if c.Name == "" {
		c.Name = "config"
	}
	if c.Paths == nil {
		c.Paths = []string{".", "./config"}
	}
	if c.FileType == "" {
		c.FileType = "yaml"
	}
	if c.EnvPrefix == "" {
		c.EnvPrefix = "STOREKIT"
	}
	c.EnvPrefix = strings.ToUpper(c.EnvPrefix)
	if c.Logger == nil {
		c.Logger = clog.Discard()
	}
}

// New 创建配置加载器，需要调用 Load 后才能读取配置
func New(opts ...Option) Loader {
	cfg := &Config{}
	for _, opt := range opts {
		opt(cfg)
	}
	cfg.setDefaults()
	return newLoader(cfg)
}

// MustLoad 创建并加载配置，失败时 panic。仅用于初始化阶段。
func MustLoad(opts ...Option) Loader {
	loader := New(opts...)
	if err := loader.Load(context.Background()); err != nil {
		panic(err)
	}
	return loader
}
