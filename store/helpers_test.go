package store

import (
	"bytes"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ceyewan/storekit/clog"
)

// syncBuffer 并发安全的日志缓冲区
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// newTestLogger 创建输出 JSON 到缓冲区的 logger
func newTestLogger(t *testing.T) (clog.Logger, *syncBuffer) {
	t.Helper()
	buf := &syncBuffer{}
	logger, err := clog.New(&clog.Config{Level: "debug", Format: "json"}, clog.WithWriter(buf))
	require.NoError(t, err)
	return logger, buf
}

// logEntries 解析缓冲区中的 JSON 日志
func logEntries(t *testing.T, buf *syncBuffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

// findEntry 返回第一条消息为 msg 的日志
func findEntry(t *testing.T, buf *syncBuffer, msg string) map[string]any {
	t.Helper()
	for _, e := range logEntries(t, buf) {
		if e["msg"] == msg {
			return e
		}
	}
	return nil
}
