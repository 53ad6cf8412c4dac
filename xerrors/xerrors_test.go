package xerrors

import (
	"errors"
	"testing"
)

func TestWrap(t *testing.T) {
	if err := Wrap(nil, "context"); err != nil {
		t.Errorf("Wrap(nil) = %v，期望 nil", err)
	}

	base := errors.New("base error")
	wrapped := Wrap(base, "context")
	if wrapped.Error() != "context: base error" {
		t.Errorf("Wrap(err).Error() = %q，期望 %q", wrapped.Error(), "context: base error")
	}
	if !errors.Is(wrapped, base) {
		t.Error("errors.Is(wrapped, base) = false，期望 true")
	}
}

func TestWrapf(t *testing.T) {
	if err := Wrapf(nil, "key %s", "k"); err != nil {
		t.Errorf("Wrapf(nil) = %v，期望 nil", err)
	}

	base := errors.New("not found")
	wrapped := Wrapf(base, "key %s", "k")
	if wrapped.Error() != "key k: not found" {
		t.Errorf("Wrapf(err).Error() = %q，期望 %q", wrapped.Error(), "key k: not found")
	}
}

func TestMark(t *testing.T) {
	kind := New("store: connection failed")
	cause := errors.New("dial tcp: refused")

	marked := Mark(kind, cause)
	if !Is(marked, kind) {
		t.Error("Is(marked, kind) = false，期望 true")
	}
	if !Is(marked, cause) {
		t.Error("Is(marked, cause) = false，期望 true")
	}
	if marked.Error() != "store: connection failed: dial tcp: refused" {
		t.Errorf("Mark().Error() = %q", marked.Error())
	}

	// cause 为 nil 时直接返回 kind
	if Mark(kind, nil) != kind {
		t.Error("Mark(kind, nil) 应返回 kind 本身")
	}
}

func TestWithCode(t *testing.T) {
	if err := WithCode(nil, "CODE"); err != nil {
		t.Errorf("WithCode(nil) = %v，期望 nil", err)
	}

	base := errors.New("redis timeout")
	coded := WithCode(base, "BACKEND_OPERATION")
	if coded.Error() != "[BACKEND_OPERATION] redis timeout" {
		t.Errorf("WithCode(err).Error() = %q", coded.Error())
	}
	if code := GetCode(Wrap(coded, "outer")); code != "BACKEND_OPERATION" {
		t.Errorf("GetCode() = %q，期望 %q", code, "BACKEND_OPERATION")
	}
	if code := GetCode(base); code != "" {
		t.Errorf("GetCode(plain) = %q，期望空字符串", code)
	}
}

func TestCollector(t *testing.T) {
	var c Collector
	if c.Err() != nil {
		t.Error("空 Collector 应返回 nil")
	}

	first := errors.New("first")
	c.Collect(nil)
	c.Collect(first)
	c.Collect(errors.New("second"))

	if c.Err() != first {
		t.Errorf("Collector.Err() = %v，期望 %v", c.Err(), first)
	}
}

func TestCombine(t *testing.T) {
	if err := Combine(nil, nil); err != nil {
		t.Errorf("Combine(nil, nil) = %v，期望 nil", err)
	}

	a := errors.New("a")
	if err := Combine(nil, a); err != a {
		t.Errorf("Combine(nil, a) = %v，期望 a", err)
	}

	b := errors.New("b")
	combined := Combine(a, nil, b)
	if !errors.Is(combined, a) || !errors.Is(combined, b) {
		t.Error("Combine(a, b) 应同时包含 a 和 b")
	}
}
