package store

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	mongoopts "go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ceyewan/storekit/metrics"
)

// TestDocumentNotConnected 测试未连接时的行为
func TestDocumentNotConnected(t *testing.T) {
	ctx := context.Background()
	d, err := NewDocument(&DocumentConfig{URI: "mongodb://127.0.0.1:27017", Database: "social"})
	require.NoError(t, err)

	assert.False(t, d.IsConnected())
	assert.False(t, d.HealthCheck(ctx))

	_, err = d.Insert(ctx, CollectionPosts, Record{"content": "x"})
	assert.ErrorIs(t, err, ErrNotConnected)
	_, err = d.Find(ctx, CollectionPosts, nil, 10, 0)
	assert.ErrorIs(t, err, ErrNotConnected)
	_, err = d.Update(ctx, CollectionPosts, "id", Record{"a": 1})
	assert.ErrorIs(t, err, ErrNotConnected)
	_, err = d.ActiveCampaigns(ctx)
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.ErrorIs(t, d.EnsureIndexes(ctx), ErrNotConnected)

	assert.NoError(t, d.Disconnect(ctx))
	assert.NoError(t, d.Disconnect(ctx))
}

// TestDocumentConnectFailure 测试服务器不可达
func TestDocumentConnectFailure(t *testing.T) {
	d, err := NewDocument(&DocumentConfig{
		URI:                    "mongodb://127.0.0.1:1/?directConnection=true",
		Database:               "social",
		ServerSelectionTimeout: 200 * time.Millisecond,
		ConnectTimeout:         200 * time.Millisecond,
	})
	require.NoError(t, err)

	err = d.Connect(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConnection)
	assert.False(t, d.IsConnected())
	assert.False(t, d.HealthCheck(context.Background()))
}

func TestDocumentClientOptions(t *testing.T) {
	d, err := NewDocument(&DocumentConfig{URI: "mongodb://127.0.0.1:27017", Database: "social"})
	require.NoError(t, err)

	opts := d.clientOptions()
	require.NotNil(t, opts.MaxPoolSize)
	assert.Equal(t, uint64(50), *opts.MaxPoolSize)
	assert.Equal(t, uint64(10), *opts.MinPoolSize)
	assert.Equal(t, 30*time.Second, *opts.MaxConnIdleTime)
	assert.Equal(t, 5*time.Second, *opts.ServerSelectionTimeout)
	assert.Equal(t, 5*time.Second, *opts.Timeout)
	assert.False(t, *opts.RetryWrites)
	assert.False(t, *opts.RetryReads)
}

func TestDefaultIndexPlan(t *testing.T) {
	order, grouped := DefaultIndexPlan().models()
	assert.Equal(t, []string{CollectionPosts, CollectionCampaigns, CollectionUserProfiles}, order)
	assert.Len(t, grouped[CollectionPosts], 6)
	assert.Len(t, grouped[CollectionCampaigns], 3)
	assert.Len(t, grouped[CollectionUserProfiles], 3)

	assert.Equal(t, bson.D{{Key: "platform", Value: 1}, {Key: "timestamp", Value: -1}}, grouped[CollectionPosts][0].Keys)
	assert.Equal(t, bson.D{{Key: "content", Value: "text"}}, grouped[CollectionPosts][4].Keys)
	assert.Equal(t, bson.D{{Key: "geolocation.coordinates", Value: "2dsphere"}}, grouped[CollectionPosts][5].Keys)

	unique := grouped[CollectionUserProfiles][0]
	require.NotNil(t, unique.Options)
	assert.Equal(t, &mongoopts.IndexOptions{Unique: boolPtr(true)}, unique.Options)
	assert.Nil(t, grouped[CollectionUserProfiles][1].Options)
}

func boolPtr(b bool) *bool { return &b }

func TestDocumentIDConversion(t *testing.T) {
	oid := primitive.NewObjectID()
	assert.Equal(t, oid, documentID(oid.Hex()))
	assert.Equal(t, "custom-id", documentID("custom-id"))

	assert.Equal(t, oid.Hex(), idString(oid))
	assert.Equal(t, "x", idString("x"))
	assert.Equal(t, "42", idString(int32(42)))
	assert.Equal(t, "", idString(nil))
}

func TestNormalizeDocument(t *testing.T) {
	oid := primitive.NewObjectID()
	when := time.UnixMilli(1700000000000).UTC()
	doc := bson.M{
		"_id":  oid,
		"user": bson.M{"name": "alice", "ref": oid},
		"tags": bson.A{"a", bson.D{{Key: "k", Value: 1}}},
		"at":   primitive.NewDateTimeFromTime(when),
	}

	got := normalizeDocument(doc)
	assert.Equal(t, oid.Hex(), got["_id"])
	assert.Equal(t, Record{"name": "alice", "ref": oid.Hex()}, got["user"])
	assert.Equal(t, []any{"a", Record{"k": 1}}, got["tags"])
	assert.True(t, when.Equal(got["at"].(time.Time)))
}

// failingCursor 在读取结果时返回错误
type failingCursor struct{ err error }

func (c failingCursor) All(context.Context, any) error { return c.err }

// TestDocumentReadAllCountsCursorErrors 测试游标读取失败时 find 只记录一次且结果为 error
func TestDocumentReadAllCountsCursorErrors(t *testing.T) {
	ctx := context.Background()
	logger, buf := newTestLogger(t)
	meter, err := metrics.New(metrics.NewDevDefaultConfig("store-test"))
	require.NoError(t, err)
	defer meter.Shutdown(ctx)

	d, err := NewDocument(&DocumentConfig{URI: "mongodb://127.0.0.1:27017", Database: "social"},
		WithLogger(logger), WithMeter(meter))
	require.NoError(t, err)

	docs := d.readAll(ctx, time.Now(), failingCursor{err: errors.New("cursor killed")}, nil)
	assert.Equal(t, []Record{}, docs)

	entry := findEntry(t, buf, "backend operation failed")
	require.NotNil(t, entry)
	assert.Equal(t, "find", entry["operation"])

	rec := httptest.NewRecorder()
	meter.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	var findLines []string
	for _, line := range strings.Split(string(body), "\n") {
		if strings.HasPrefix(line, "storekit_operations_total{") && strings.Contains(line, `operation="find"`) {
			findLines = append(findLines, line)
		}
	}
	require.Len(t, findLines, 1)
	assert.Contains(t, findLines[0], `outcome="error"`)
	assert.True(t, strings.HasSuffix(findLines[0], " 1"), findLines[0])
}
