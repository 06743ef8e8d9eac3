package codec

import (
	"strings"
	"testing"
)

type sample struct {
	Name string
	Tags []string
	N    int
}

func TestJSONRoundTrip(t *testing.T) {
	c := NewJSON()
	in := sample{Name: "widget", Tags: []string{"a", "b"}, N: 7}

	data, err := c.Encode(in)
	if err != nil {
		t.Fatalf("unexpected encode error: %v", err)
	}

	var out sample
	if err := c.Decode(data, &out); err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if out != in {
		t.Errorf("expected %+v, got %+v", in, out)
	}
	if c.Name() != "json" {
		t.Errorf("expected name json, got %s", c.Name())
	}
}

func TestMsgPackRoundTrip(t *testing.T) {
	c := NewMsgPack()
	in := sample{Name: "widget", Tags: []string{"a", "b"}, N: 7}

	data, err := c.Encode(in)
	if err != nil {
		t.Fatalf("unexpected encode error: %v", err)
	}

	var out sample
	if err := c.Decode(data, &out); err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if out != in {
		t.Errorf("expected %+v, got %+v", in, out)
	}
	if c.Name() != "msgpack" {
		t.Errorf("expected name msgpack, got %s", c.Name())
	}
}

func TestEncodeRejectsCyclicMap(t *testing.T) {
	m := make(map[string]any)
	m["self"] = m

	if _, err := NewJSON().Encode(m); err == nil || !strings.Contains(err.Error(), "cyclic") {
		t.Errorf("expected a cyclic reference error, got %v", err)
	}
	if _, err := NewMsgPack().Encode(m); err == nil || !strings.Contains(err.Error(), "cyclic") {
		t.Errorf("expected a cyclic reference error, got %v", err)
	}
}

type node struct {
	Name string
	Next *node
}

func TestEncodeRejectsCyclicPointer(t *testing.T) {
	a := &node{Name: "a"}
	b := &node{Name: "b", Next: a}
	a.Next = b

	if _, err := NewJSON().Encode(a); err == nil || !strings.Contains(err.Error(), "cyclic") {
		t.Errorf("expected a cyclic reference error, got %v", err)
	}
}

func TestEncodeAllowsSharedNonCyclicReference(t *testing.T) {
	shared := []string{"x", "y"}
	payload := map[string]any{
		"first":  shared,
		"second": shared,
	}

	if _, err := NewJSON().Encode(payload); err != nil {
		t.Errorf("a shared but acyclic reference should encode fine, got %v", err)
	}
}
