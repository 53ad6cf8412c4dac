package store

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const postsTable = `CREATE TABLE IF NOT EXISTS posts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	platform TEXT NOT NULL,
	content TEXT,
	risk_score INTEGER
)`

func newTestRelational(t *testing.T, opts ...Option) *Relational {
	t.Helper()
	r, err := NewRelational(&RelationalConfig{Name: "test-sql", Driver: DriverSQLite, Path: ":memory:"}, opts...)
	require.NoError(t, err)
	require.NoError(t, r.Connect(context.Background()))
	t.Cleanup(func() { _ = r.Disconnect(context.Background()) })
	return r
}

func asString(v any) string {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return fmt.Sprint(v)
}

// TestRelationalNotConnected 测试未连接时的行为
func TestRelationalNotConnected(t *testing.T) {
	ctx := context.Background()
	r, err := NewRelational(&RelationalConfig{Driver: DriverSQLite, Path: ":memory:"})
	require.NoError(t, err)

	assert.False(t, r.HealthCheck(ctx))
	_, err = r.Exec(ctx, "SELECT 1")
	assert.ErrorIs(t, err, ErrNotConnected)
	_, err = r.Query(ctx, "SELECT 1")
	assert.ErrorIs(t, err, ErrNotConnected)
	_, err = r.Insert(ctx, "posts", Record{"platform": "x"})
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.ErrorIs(t, r.EnsureSchema(ctx, postsTable), ErrNotConnected)

	assert.NoError(t, r.Disconnect(ctx))
	assert.NoError(t, r.Disconnect(ctx))
}

// TestRelationalRoundTrip 测试建表、插入、查询、更新
func TestRelationalRoundTrip(t *testing.T) {
	ctx := context.Background()
	r := newTestRelational(t)

	assert.True(t, r.HealthCheck(ctx))
	assert.Equal(t, KindRelational, r.Kind())

	require.NoError(t, r.EnsureSchema(ctx, postsTable))
	// 重复执行是安全的
	require.NoError(t, r.EnsureSchema(ctx, postsTable))

	ok, err := r.Insert(ctx, "posts", Record{"platform": "twitter", "content": "hello", "risk_score": 7})
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = r.Insert(ctx, "posts", Record{"platform": "reddit", "content": "world", "risk_score": 2})
	require.NoError(t, err)
	assert.True(t, ok)

	rows, err := r.Query(ctx, "SELECT platform, content, risk_score FROM posts WHERE risk_score > ? ORDER BY id", 5)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "twitter", asString(rows[0]["platform"]))
	assert.Equal(t, "hello", asString(rows[0]["content"]))
	assert.EqualValues(t, 7, rows[0]["risk_score"])

	affected, err := r.Exec(ctx, "UPDATE posts SET risk_score = risk_score + 1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), affected)

	rows, err = r.Query(ctx, "SELECT platform FROM posts WHERE platform = ?", "nobody")
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

// TestRelationalAbsorbsBackendErrors 测试 SQL 错误被吸收
func TestRelationalAbsorbsBackendErrors(t *testing.T) {
	ctx := context.Background()
	logger, buf := newTestLogger(t)
	r := newTestRelational(t, WithLogger(logger))

	rows, err := r.Query(ctx, "SELECT * FROM missing_table")
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)

	n, err := r.Exec(ctx, "DELETE FROM missing_table")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	ok, err := r.Insert(ctx, "missing_table", Record{"a": 1})
	require.NoError(t, err)
	assert.False(t, ok)

	entry := findEntry(t, buf, "backend operation failed")
	require.NotNil(t, entry)
	assert.Equal(t, "query", entry["operation"])

	// 初始化操作返回错误
	err = r.EnsureSchema(ctx, "CREATE TABLE broken (")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBackendOperation)
}

// TestRelationalConnectFailure 测试无法打开的数据库
func TestRelationalConnectFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing-dir", "db.sqlite")
	r, err := NewRelational(&RelationalConfig{Driver: DriverSQLite, Path: path})
	require.NoError(t, err)

	err = r.Connect(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConnection)
	assert.False(t, r.IsConnected())
}

// TestRelationalConnectHonorsContext 测试连接检查使用调用方的 ctx
func TestRelationalConnectHonorsContext(t *testing.T) {
	r, err := NewRelational(&RelationalConfig{Driver: DriverSQLite, Path: ":memory:"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = r.Connect(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConnection)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, r.IsConnected())

	require.NoError(t, r.Connect(context.Background()))
	t.Cleanup(func() { _ = r.Disconnect(context.Background()) })
	assert.True(t, r.db.Config.DisableAutomaticPing)
}

// TestRelationalFileDatabase 测试文件数据库在断开后数据仍然保留
func TestRelationalFileDatabase(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "store.db")
	cfg := &RelationalConfig{Driver: DriverSQLite, Path: path}

	r, err := NewRelational(cfg)
	require.NoError(t, err)
	require.NoError(t, r.Connect(ctx))
	require.NoError(t, r.EnsureSchema(ctx, postsTable))
	_, err = r.Insert(ctx, "posts", Record{"platform": "mastodon"})
	require.NoError(t, err)
	require.NoError(t, r.Disconnect(ctx))

	require.NoError(t, r.Connect(ctx))
	defer r.Disconnect(ctx)
	rows, err := r.Query(ctx, "SELECT platform FROM posts")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "mastodon", asString(rows[0]["platform"]))
}

// TestRelationalMemoryDSNSharesSchema 测试通过 DSN 指定内存库时，表结构对后续所有操作可见
func TestRelationalMemoryDSNSharesSchema(t *testing.T) {
	ctx := context.Background()
	r, err := NewRelational(&RelationalConfig{Driver: DriverSQLite, DSN: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, r.Connect(ctx))
	t.Cleanup(func() { _ = r.Disconnect(ctx) })

	require.NoError(t, r.EnsureSchema(ctx, postsTable))

	var wg sync.WaitGroup
	results := make([]bool, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], _ = r.Insert(ctx, "posts", Record{"platform": "twitter", "risk_score": i})
		}()
	}
	wg.Wait()
	for i, ok := range results {
		assert.True(t, ok, "insert %d", i)
	}

	rows, err := r.Query(ctx, "SELECT COUNT(*) AS total FROM posts")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "8", asString(rows[0]["total"]))
}
