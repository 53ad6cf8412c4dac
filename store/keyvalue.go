package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"github.com/redis/go-redis/v9/maintnotifications"

	"github.com/ceyewan/storekit/clog"
	"github.com/ceyewan/storekit/xerrors"
)

// KeyValue 键值存储门面，基于 go-redis。
//
// 写入时复合值被编码为 JSON，读取时尽力解码，详见 Set 和 Get。
type KeyValue struct {
	base
	cfg     KeyValueConfig
	tracing bool
	client  *redis.Client
}

var _ Facade = (*KeyValue)(nil)

// NewKeyValue 创建键值存储门面，连接在 Connect 时建立
func NewKeyValue(cfg *KeyValueConfig, opts ...Option) (*KeyValue, error) {
	if cfg == nil {
		return nil, xerrors.Wrap(ErrConfig, "keyvalue config is nil")
	}
	c := *cfg
	if err := c.validate(); err != nil {
		return nil, xerrors.Wrapf(xerrors.Mark(ErrConfig, err), "invalid keyvalue config")
	}

	opt := applyOptions(opts)
	kv := &KeyValue{cfg: c, tracing: opt.tracing}
	if err := kv.init(KindKeyValue, c.Name, c.HealthCheckInterval, opt); err != nil {
		return nil, err
	}
	return kv, nil
}

// Connect 建立连接池并执行 PING
func (k *KeyValue) Connect(ctx context.Context) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.client != nil {
		return nil
	}

	ropt := k.cfg.redisOptions()
	ropt.MaintNotificationsConfig = &maintnotifications.Config{
		Mode: maintnotifications.ModeDisabled,
	}
	k.logger.InfoContext(ctx, "attempting to connect to redis", clog.String("addr", ropt.Addr))

	client := redis.NewClient(ropt)
	if k.tracing {
		if err := redisotel.InstrumentTracing(client); err != nil {
			_ = client.Close()
			return k.connectFailed(ctx, "failed to instrument redis tracing", err)
		}
		if err := redisotel.InstrumentMetrics(client); err != nil {
			_ = client.Close()
			return k.connectFailed(ctx, "failed to instrument redis metrics", err)
		}
	}

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return k.connectFailed(ctx, "failed to connect to redis", err)
	}

	k.client = client
	k.markConnected(ctx, true)
	k.logger.InfoContext(ctx, "successfully connected to redis", clog.String("addr", ropt.Addr))
	return nil
}

// Disconnect 关闭连接池
func (k *KeyValue) Disconnect(ctx context.Context) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.client == nil {
		k.markConnected(ctx, false)
		return nil
	}

	k.logger.InfoContext(ctx, "closing redis connection")
	err := k.client.Close()
	k.client = nil
	k.markConnected(ctx, false)
	if err != nil {
		k.logger.ErrorContext(ctx, "failed to close redis connection", clog.Error(err))
		return xerrors.Wrapf(err, "keyvalue[%s]: close failed", k.name)
	}
	k.logger.InfoContext(ctx, "redis connection closed successfully")
	return nil
}

// HealthCheck 执行 PING
func (k *KeyValue) HealthCheck(ctx context.Context) bool {
	client, err := k.acquire()
	if err != nil {
		k.healthy.Store(false)
		return false
	}
	return k.healthResult(ctx, client.Ping(ctx).Err())
}

func (k *KeyValue) acquire() (*redis.Client, error) {
	k.mu.RLock()
	client := k.client
	k.mu.RUnlock()
	if client == nil {
		return nil, k.notConnected()
	}
	return client, nil
}

// Client 返回底层客户端，未连接时返回 nil。
// 仅用于门面没有覆盖的命令，绕过门面的操作不做错误翻译。
func (k *KeyValue) Client() *redis.Client {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.client
}

// Set 写入 key。复合值编码为 JSON，ttl <= 0 表示不过期。
func (k *KeyValue) Set(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	client, err := k.acquire()
	if err != nil {
		return false, err
	}
	start := time.Now()
	encoded, err := encodeValue(value)
	if err != nil {
		_ = k.record(ctx, "set", start, err)
		return false, nil
	}
	if ttl < 0 {
		ttl = 0
	}
	res, err := client.Set(ctx, key, encoded, ttl).Result()
	if k.record(ctx, "set", start, err) != nil {
		return false, nil
	}
	return res == "OK", nil
}

// Get 读取 key，key 不存在时返回 nil。
//
// 形如 JSON 对象或数组的值会被解码为 map[string]any 或 []any，
// 解码失败时返回原始文本。
func (k *KeyValue) Get(ctx context.Context, key string) (any, error) {
	client, err := k.acquire()
	if err != nil {
		return nil, err
	}
	start := time.Now()
	raw, err := client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		_ = k.record(ctx, "get", start, nil)
		return nil, nil
	}
	if k.record(ctx, "get", start, err) != nil {
		return nil, nil
	}
	return decodeValue(raw), nil
}

// Delete 删除 key，返回实际删除的数量
func (k *KeyValue) Delete(ctx context.Context, keys ...string) (int64, error) {
	client, err := k.acquire()
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}
	start := time.Now()
	n, err := client.Del(ctx, keys...).Result()
	if k.record(ctx, "delete", start, err) != nil {
		return 0, nil
	}
	return n, nil
}

// Exists 判断 key 是否存在
func (k *KeyValue) Exists(ctx context.Context, key string) (bool, error) {
	client, err := k.acquire()
	if err != nil {
		return false, err
	}
	start := time.Now()
	n, err := client.Exists(ctx, key).Result()
	if k.record(ctx, "exists", start, err) != nil {
		return false, nil
	}
	return n > 0, nil
}

// Expire 设置过期时间，key 不存在时返回 false
func (k *KeyValue) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	client, err := k.acquire()
	if err != nil {
		return false, err
	}
	start := time.Now()
	ok, err := client.Expire(ctx, key, ttl).Result()
	if k.record(ctx, "expire", start, err) != nil {
		return false, nil
	}
	return ok, nil
}

// Incr 将 key 增加 amount，返回增加后的值
func (k *KeyValue) Incr(ctx context.Context, key string, amount int64) (int64, error) {
	client, err := k.acquire()
	if err != nil {
		return 0, err
	}
	start := time.Now()
	n, err := client.IncrBy(ctx, key, amount).Result()
	if k.record(ctx, "incr", start, err) != nil {
		return 0, nil
	}
	return n, nil
}

// LPush 从列表头部插入，返回插入后的列表长度
func (k *KeyValue) LPush(ctx context.Context, key string, values ...any) (int64, error) {
	client, err := k.acquire()
	if err != nil {
		return 0, err
	}
	if len(values) == 0 {
		return 0, nil
	}
	start := time.Now()
	encoded := make([]any, 0, len(values))
	for _, v := range values {
		e, err := encodeValue(v)
		if err != nil {
			_ = k.record(ctx, "lpush", start, err)
			return 0, nil
		}
		encoded = append(encoded, e)
	}
	n, err := client.LPush(ctx, key, encoded...).Result()
	if k.record(ctx, "lpush", start, err) != nil {
		return 0, nil
	}
	return n, nil
}

// RPop 从列表尾部弹出，列表为空时返回 nil
func (k *KeyValue) RPop(ctx context.Context, key string) (any, error) {
	client, err := k.acquire()
	if err != nil {
		return nil, err
	}
	start := time.Now()
	raw, err := client.RPop(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		_ = k.record(ctx, "rpop", start, nil)
		return nil, nil
	}
	if k.record(ctx, "rpop", start, err) != nil {
		return nil, nil
	}
	return decodeValue(raw), nil
}

// Publish 发布消息，返回收到消息的订阅者数量
func (k *KeyValue) Publish(ctx context.Context, channel string, message any) (int64, error) {
	client, err := k.acquire()
	if err != nil {
		return 0, err
	}
	start := time.Now()
	encoded, err := encodeValue(message)
	if err != nil {
		_ = k.record(ctx, "publish", start, err)
		return 0, nil
	}
	n, err := client.Publish(ctx, channel, encoded).Result()
	if k.record(ctx, "publish", start, err) != nil {
		return 0, nil
	}
	return n, nil
}

// Message 订阅收到的消息，Payload 按 Get 的规则解码
type Message struct {
	Channel string
	Payload any
}

// Subscription 频道订阅
type Subscription struct {
	pubsub *redis.PubSub
	ch     chan Message
	done   chan struct{}
	once   sync.Once
}

// Subscribe 订阅频道。
//
// 与其他数据操作不同，订阅失败会返回 ErrBackendOperation，因为消息流没有可用的默认值。
// 调用方负责 Close。
func (k *KeyValue) Subscribe(ctx context.Context, channels ...string) (*Subscription, error) {
	client, err := k.acquire()
	if err != nil {
		return nil, err
	}
	start := time.Now()
	pubsub := client.Subscribe(ctx, channels...)
	// 等待订阅确认，确保返回时订阅已经生效
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, k.record(ctx, "subscribe", start, err)
	}
	_ = k.record(ctx, "subscribe", start, nil)

	sub := &Subscription{
		pubsub: pubsub,
		ch:     make(chan Message),
		done:   make(chan struct{}),
	}
	go sub.forward(pubsub.Channel())
	return sub, nil
}

func (s *Subscription) forward(in <-chan *redis.Message) {
	defer close(s.ch)
	for {
		select {
		case msg, ok := <-in:
			if !ok {
				return
			}
			select {
			case s.ch <- Message{Channel: msg.Channel, Payload: decodeValue(msg.Payload)}:
			case <-s.done:
				return
			}
		case <-s.done:
			return
		}
	}
}

// Messages 返回消息通道，Close 后通道关闭
func (s *Subscription) Messages() <-chan Message {
	return s.ch
}

// Close 取消订阅并释放连接，可重复调用
func (s *Subscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.pubsub.Close()
	})
	return err
}
