package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	mongoopts "go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ceyewan/storekit/clog"
	"github.com/ceyewan/storekit/xerrors"
)

// Document 文档存储门面，基于 MongoDB 官方驱动
type Document struct {
	base
	cfg    DocumentConfig
	client *mongo.Client
	db     *mongo.Database
}

var _ Facade = (*Document)(nil)

// NewDocument 创建文档存储门面，连接在 Connect 时建立
func NewDocument(cfg *DocumentConfig, opts ...Option) (*Document, error) {
	if cfg == nil {
		return nil, xerrors.Wrap(ErrConfig, "document config is nil")
	}
	c := *cfg
	if err := c.validate(); err != nil {
		return nil, xerrors.Wrapf(xerrors.Mark(ErrConfig, err), "invalid document config")
	}

	d := &Document{cfg: c}
	if err := d.init(KindDocument, c.Name, c.HealthCheckInterval, applyOptions(opts)); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Document) clientOptions() *mongoopts.ClientOptions {
	return mongoopts.Client().
		ApplyURI(d.cfg.URI).
		SetMaxPoolSize(d.cfg.MaxPoolSize).
		SetMinPoolSize(d.cfg.MinPoolSize).
		SetMaxConnIdleTime(d.cfg.MaxIdleTime).
		SetServerSelectionTimeout(d.cfg.ServerSelectionTimeout).
		SetConnectTimeout(d.cfg.ConnectTimeout).
		SetSocketTimeout(d.cfg.SocketTimeout).
		SetTimeout(d.cfg.WaitQueueTimeout).
		SetRetryReads(false).
		SetRetryWrites(false)
}

// Connect 建立连接池并在 admin 库上执行 ping
func (d *Document) Connect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.client != nil {
		return nil
	}

	d.logger.InfoContext(ctx, "attempting to connect to mongodb", clog.String("database", d.cfg.Database))

	client, err := mongo.Connect(ctx, d.clientOptions())
	if err != nil {
		return d.connectFailed(ctx, "failed to create mongodb client", err)
	}
	if err := ping(ctx, client); err != nil {
		_ = client.Disconnect(context.WithoutCancel(ctx))
		return d.connectFailed(ctx, "failed to connect to mongodb", err)
	}

	d.client = client
	d.db = client.Database(d.cfg.Database)
	d.markConnected(ctx, true)
	d.logger.InfoContext(ctx, "successfully connected to mongodb",
		clog.String("database", d.cfg.Database),
		clog.Int64("max_pool_size", int64(d.cfg.MaxPoolSize)),
	)
	return nil
}

func ping(ctx context.Context, client *mongo.Client) error {
	return client.Database("admin").RunCommand(ctx, bson.D{{Key: "ping", Value: 1}}).Err()
}

// Disconnect 关闭连接池
func (d *Document) Disconnect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.client == nil {
		d.markConnected(ctx, false)
		return nil
	}

	d.logger.InfoContext(ctx, "closing mongodb connection")
	err := d.client.Disconnect(ctx)
	d.client = nil
	d.db = nil
	d.markConnected(ctx, false)
	if err != nil {
		d.logger.ErrorContext(ctx, "failed to close mongodb connection", clog.Error(err))
		return xerrors.Wrapf(err, "document[%s]: close failed", d.name)
	}
	d.logger.InfoContext(ctx, "mongodb connection closed successfully")
	return nil
}

// HealthCheck 执行 ping
func (d *Document) HealthCheck(ctx context.Context) bool {
	d.mu.RLock()
	client := d.client
	d.mu.RUnlock()
	if client == nil {
		d.healthy.Store(false)
		return false
	}
	return d.healthResult(ctx, ping(ctx, client))
}

func (d *Document) acquire() (*mongo.Database, error) {
	d.mu.RLock()
	db := d.db
	d.mu.RUnlock()
	if db == nil {
		return nil, d.notConnected()
	}
	return db, nil
}

// Insert 插入一条文档，返回插入的 _id（ObjectID 转为十六进制字符串），失败时返回空字符串
func (d *Document) Insert(ctx context.Context, collection string, rec Record) (string, error) {
	db, err := d.acquire()
	if err != nil {
		return "", err
	}
	start := time.Now()
	res, err := db.Collection(collection).InsertOne(ctx, rec)
	if d.record(ctx, "insert", start, err) != nil {
		return "", nil
	}
	return idString(res.InsertedID), nil
}

// Find 查询文档。limit <= 0 表示不限制数量，失败时返回空切片。
func (d *Document) Find(ctx context.Context, collection string, filter Record, limit, skip int64) ([]Record, error) {
	db, err := d.acquire()
	if err != nil {
		return nil, err
	}
	if filter == nil {
		filter = Record{}
	}
	findOpts := mongoopts.Find()
	if limit > 0 {
		findOpts.SetLimit(limit)
	}
	if skip > 0 {
		findOpts.SetSkip(skip)
	}

	start := time.Now()
	cursor, err := db.Collection(collection).Find(ctx, filter, findOpts)
	return d.readAll(ctx, start, cursor, err), nil
}

// documentCursor 是 *mongo.Cursor 中 readAll 用到的部分
type documentCursor interface {
	All(ctx context.Context, results any) error
}

// readAll 读取游标中的全部文档。Find 与 All 任一失败都只记录一次 find 操作。
func (d *Document) readAll(ctx context.Context, start time.Time, cursor documentCursor, err error) []Record {
	var docs []bson.M
	if err == nil {
		err = cursor.All(ctx, &docs)
	}
	if d.record(ctx, "find", start, err) != nil {
		return []Record{}
	}

	out := make([]Record, 0, len(docs))
	for _, doc := range docs {
		out = append(out, normalizeDocument(doc))
	}
	return out
}

// Update 对 _id 等于 id 的文档执行 $set，返回是否有文档被修改。
// 合法的十六进制 id 会转换为 ObjectID。
func (d *Document) Update(ctx context.Context, collection, id string, fields Record) (bool, error) {
	db, err := d.acquire()
	if err != nil {
		return false, err
	}
	start := time.Now()
	res, err := db.Collection(collection).UpdateOne(ctx,
		bson.M{"_id": documentID(id)},
		bson.M{"$set": fields},
	)
	if d.record(ctx, "update", start, err) != nil {
		return false, nil
	}
	return res.ModifiedCount > 0, nil
}

// ActiveCampaigns 返回所有 status 为 active 的 campaign
func (d *Document) ActiveCampaigns(ctx context.Context) ([]Record, error) {
	return d.Find(ctx, CollectionCampaigns, Record{"status": "active"}, 0, 0)
}

// EnsureIndexes 创建配置中声明的索引，已存在的同名同定义索引不会重复创建。
//
// 这是初始化操作而不是稳态操作，后端错误以 ErrBackendOperation 返回。
func (d *Document) EnsureIndexes(ctx context.Context) error {
	db, err := d.acquire()
	if err != nil {
		return err
	}
	order, grouped := d.cfg.Indexes.models()
	for _, collection := range order {
		start := time.Now()
		names, err := db.Collection(collection).Indexes().CreateMany(ctx, grouped[collection])
		if err := d.record(ctx, "ensure_indexes", start, err); err != nil {
			return xerrors.Wrapf(err, "document[%s]: create indexes on %s", d.name, collection)
		}
		d.logger.InfoContext(ctx, "indexes ensured",
			clog.String("collection", collection),
			clog.Strings("indexes", names),
		)
	}
	return nil
}

func documentID(id string) any {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return oid
	}
	return id
}

func idString(id any) string {
	switch v := id.(type) {
	case primitive.ObjectID:
		return v.Hex()
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// normalizeDocument 将驱动类型转换为普通的 Go 值：
// 嵌套文档转为 Record，数组转为 []any，ObjectID 转为十六进制字符串
func normalizeDocument(doc bson.M) Record {
	out := make(Record, len(doc))
	for k, v := range doc {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v any) any {
	switch val := v.(type) {
	case primitive.ObjectID:
		return val.Hex()
	case bson.M:
		return normalizeDocument(val)
	case bson.D:
		out := make(Record, len(val))
		for _, e := range val {
			out[e.Key] = normalizeValue(e.Value)
		}
		return out
	case bson.A:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalizeValue(item)
		}
		return out
	case primitive.DateTime:
		return val.Time()
	default:
		return v
	}
}
