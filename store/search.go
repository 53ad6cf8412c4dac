package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/ceyewan/storekit/clog"
	"github.com/ceyewan/storekit/xerrors"
)

// Search 搜索索引门面，基于 Elasticsearch 官方客户端
type Search struct {
	base
	cfg       SearchConfig
	client    *elasticsearch.Client
	transport *http.Transport
}

var _ Facade = (*Search)(nil)

// NewSearch 创建搜索索引门面，连接在 Connect 时建立
func NewSearch(cfg *SearchConfig, opts ...Option) (*Search, error) {
	if cfg == nil {
		return nil, xerrors.Wrap(ErrConfig, "search config is nil")
	}
	c := *cfg
	c.Addresses = append([]string(nil), cfg.Addresses...)
	if err := c.validate(); err != nil {
		return nil, xerrors.Wrapf(xerrors.Mark(ErrConfig, err), "invalid search config")
	}
	if _, err := c.tlsConfig(); err != nil {
		return nil, xerrors.Wrapf(xerrors.Mark(ErrConfig, err), "invalid search config")
	}

	s := &Search{cfg: c}
	if err := s.init(KindSearch, c.Name, c.HealthCheckInterval, applyOptions(opts)); err != nil {
		return nil, err
	}
	return s, nil
}

// Connect 创建 HTTP 连接池并执行 Ping
func (s *Search) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		return nil
	}

	s.logger.InfoContext(ctx, "attempting to connect to elasticsearch", clog.Strings("addresses", s.cfg.Addresses))

	tlsConfig, _ := s.cfg.tlsConfig()
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		TLSClientConfig:       tlsConfig,
		DialContext:           (&net.Dialer{Timeout: s.cfg.DialTimeout}).DialContext,
		MaxIdleConnsPerHost:   s.cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:       s.cfg.IdleConnTimeout,
		ResponseHeaderTimeout: s.cfg.ResponseHeaderTimeout,
	}
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:    s.cfg.Addresses,
		Username:     s.cfg.Username,
		Password:     s.cfg.Password,
		APIKey:       s.cfg.APIKey,
		Transport:    transport,
		DisableRetry: true,
	})
	if err != nil {
		return s.connectFailed(ctx, "failed to create elasticsearch client", err)
	}
	if err := pingCluster(ctx, client); err != nil {
		transport.CloseIdleConnections()
		return s.connectFailed(ctx, "failed to connect to elasticsearch", err)
	}

	s.client = client
	s.transport = transport
	s.markConnected(ctx, true)
	s.logger.InfoContext(ctx, "successfully connected to elasticsearch")
	return nil
}

func pingCluster(ctx context.Context, client *elasticsearch.Client) error {
	res, err := client.Ping(client.Ping.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError(res)
	}
	return nil
}

// Disconnect 释放空闲连接并丢弃客户端
func (s *Search) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		s.logger.InfoContext(ctx, "closing elasticsearch connection")
		s.transport.CloseIdleConnections()
		s.client = nil
		s.transport = nil
	}
	s.markConnected(ctx, false)
	return nil
}

// HealthCheck 执行 Ping
func (s *Search) HealthCheck(ctx context.Context) bool {
	client, err := s.acquire()
	if err != nil {
		s.healthy.Store(false)
		return false
	}
	return s.healthResult(ctx, pingCluster(ctx, client))
}

func (s *Search) acquire() (*elasticsearch.Client, error) {
	s.mu.RLock()
	client := s.client
	s.mu.RUnlock()
	if client == nil {
		return nil, s.notConnected()
	}
	return client, nil
}

// Index 写入一篇文档，id 为空时由集群生成。返回文档 id，失败时返回空字符串。
func (s *Search) Index(ctx context.Context, index, id string, doc Record) (string, error) {
	client, err := s.acquire()
	if err != nil {
		return "", err
	}
	start := time.Now()
	body, err := json.Marshal(doc)
	if err != nil {
		_ = s.record(ctx, "index", start, err)
		return "", nil
	}

	opts := []func(*esapi.IndexRequest){client.Index.WithContext(ctx)}
	if id != "" {
		opts = append(opts, client.Index.WithDocumentID(id))
	}
	var out struct {
		ID string `json:"_id"`
	}
	err = do(func() (*esapi.Response, error) {
		return client.Index(index, bytes.NewReader(body), opts...)
	}, &out)
	if s.record(ctx, "index", start, err) != nil {
		return "", nil
	}
	return out.ID, nil
}

// Search 执行查询，query 为 Query DSL 中 "query" 字段的内容，为 nil 时匹配全部文档。
// 返回命中文档的 _source，并注入 _id。失败时返回空切片。
func (s *Search) Search(ctx context.Context, index string, query Record, size, from int) ([]Record, error) {
	client, err := s.acquire()
	if err != nil {
		return nil, err
	}
	if query == nil {
		query = Record{"match_all": Record{}}
	}
	req := Record{"query": query}
	if size > 0 {
		req["size"] = size
	}
	if from > 0 {
		req["from"] = from
	}

	start := time.Now()
	body, err := json.Marshal(req)
	if err != nil {
		_ = s.record(ctx, "search", start, err)
		return []Record{}, nil
	}
	var out struct {
		Hits struct {
			Hits []struct {
				ID     string `json:"_id"`
				Source Record `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	err = do(func() (*esapi.Response, error) {
		return client.Search(
			client.Search.WithContext(ctx),
			client.Search.WithIndex(index),
			client.Search.WithBody(bytes.NewReader(body)),
		)
	}, &out)
	if s.record(ctx, "search", start, err) != nil {
		return []Record{}, nil
	}

	records := make([]Record, 0, len(out.Hits.Hits))
	for _, hit := range out.Hits.Hits {
		rec := hit.Source
		if rec == nil {
			rec = Record{}
		}
		rec["_id"] = hit.ID
		records = append(records, rec)
	}
	return records, nil
}

// Delete 删除文档，文档不存在时返回 false
func (s *Search) Delete(ctx context.Context, index, id string) (bool, error) {
	client, err := s.acquire()
	if err != nil {
		return false, err
	}
	start := time.Now()
	res, err := client.Delete(index, id, client.Delete.WithContext(ctx))
	if err != nil {
		_ = s.record(ctx, "delete", start, err)
		return false, nil
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		_ = s.record(ctx, "delete", start, nil)
		return false, nil
	}
	if res.IsError() {
		_ = s.record(ctx, "delete", start, responseError(res))
		return false, nil
	}
	var out struct {
		Result string `json:"result"`
	}
	err = json.NewDecoder(res.Body).Decode(&out)
	if s.record(ctx, "delete", start, err) != nil {
		return false, nil
	}
	return out.Result == "deleted", nil
}

// EnsureIndex 创建索引，索引已存在时不做任何事。
//
// 这是初始化操作，后端错误以 ErrBackendOperation 返回。
func (s *Search) EnsureIndex(ctx context.Context, index string, mapping Record) error {
	client, err := s.acquire()
	if err != nil {
		return err
	}
	start := time.Now()
	exists, err := client.Indices.Exists([]string{index}, client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return xerrors.Wrapf(s.record(ctx, "ensure_index", start, err), "search[%s]: check index %s", s.name, index)
	}
	exists.Body.Close()
	switch {
	case exists.StatusCode == http.StatusOK:
		_ = s.record(ctx, "ensure_index", start, nil)
		return nil
	case exists.StatusCode != http.StatusNotFound:
		err := fmt.Errorf("elasticsearch: unexpected status %d checking index", exists.StatusCode)
		return xerrors.Wrapf(s.record(ctx, "ensure_index", start, err), "search[%s]: check index %s", s.name, index)
	}

	opts := []func(*esapi.IndicesCreateRequest){client.Indices.Create.WithContext(ctx)}
	if mapping != nil {
		body, err := json.Marshal(mapping)
		if err != nil {
			return xerrors.Wrapf(s.record(ctx, "ensure_index", start, err), "search[%s]: encode mapping", s.name)
		}
		opts = append(opts, client.Indices.Create.WithBody(bytes.NewReader(body)))
	}
	res, err := client.Indices.Create(index, opts...)
	if err != nil {
		return xerrors.Wrapf(s.record(ctx, "ensure_index", start, err), "search[%s]: create index %s", s.name, index)
	}
	defer res.Body.Close()
	if res.IsError() {
		body := errorBody(res)
		if !isAlreadyExists(res.StatusCode, body) {
			err := statusError(res.StatusCode, body)
			return xerrors.Wrapf(s.record(ctx, "ensure_index", start, err), "search[%s]: create index %s", s.name, index)
		}
	}

	_ = s.record(ctx, "ensure_index", start, nil)
	s.logger.InfoContext(ctx, "index ensured", clog.String("index", index))
	return nil
}

// do 执行请求并把成功响应解码到 out
func do(call func() (*esapi.Response, error), out any) error {
	res, err := call()
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError(res)
	}
	return json.NewDecoder(res.Body).Decode(out)
}

func responseError(res *esapi.Response) error {
	return statusError(res.StatusCode, errorBody(res))
}

// errorBody 读取错误响应体，最多 4KB
func errorBody(res *esapi.Response) []byte {
	body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
	return bytes.TrimSpace(body)
}

func statusError(status int, body []byte) error {
	return fmt.Errorf("elasticsearch: status %d: %s", status, body)
}

// isAlreadyExists 并发创建同一索引时，后到的请求会收到 resource_already_exists_exception
func isAlreadyExists(status int, body []byte) bool {
	if status != http.StatusBadRequest {
		return false
	}
	var out struct {
		Error struct {
			Type string `json:"type"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return false
	}
	return out.Error.Type == "resource_already_exists_exception"
}
