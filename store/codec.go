package store

import (
	"encoding"
	"encoding/json"
	"reflect"
	"strings"
	"time"
)

// encodeValue 将复合值（map、切片、数组、结构体）编码为 JSON 文本，标量原样返回。
// []byte、time.Time 以及实现了 encoding.BinaryMarshaler 的类型交给驱动处理。
func encodeValue(v any) (any, error) {
	switch v.(type) {
	case nil, string, []byte, time.Time, encoding.BinaryMarshaler:
		return v, nil
	}
	if !isComposite(reflect.ValueOf(v)) {
		return v, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func isComposite(rv reflect.Value) bool {
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return false
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct:
		return true
	default:
		return false
	}
}

// decodeValue 尽力解码：只有形如 JSON 对象或数组的文本才尝试解码，
// 解码失败时原样返回存储的文本。
func decodeValue(raw string) any {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || (trimmed[0] != '{' && trimmed[0] != '[') {
		return raw
	}
	var v any
	if err := json.Unmarshal([]byte(trimmed), &v); err != nil {
		return raw
	}
	return v
}
