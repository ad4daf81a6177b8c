package codec

import (
	"encoding/json"
	"reflect"
	"testing"

	"google.golang.org/protobuf/types/known/structpb"
)

// asInt reads any decoded integer representation.
func asInt(t *testing.T, v any) int64 {
	t.Helper()
	if n, ok := v.(json.Number); ok {
		i, err := n.Int64()
		if err != nil {
			t.Fatalf("json number %q: %v", n, err)
		}
		return i
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return int64(rv.Float())
	}
	t.Fatalf("not a number: %#v", v)
	return 0
}

func tree() map[string]any {
	return map[string]any{
		"obj": map[string]any{
			"__tuple__": []any{int64(1), "x", nil, true},
			"weights":   []any{0.5, int64(-3)},
		},
		"mode": "acquire",
	}
}

func checkTree(t *testing.T, out any) {
	t.Helper()
	m, ok := out.(map[string]any)
	if !ok {
		t.Fatalf("top level is %T, want map[string]any", out)
	}
	if m["mode"] != "acquire" {
		t.Fatalf("mode = %#v", m["mode"])
	}
	obj := m["obj"].(map[string]any)
	tup := obj["__tuple__"].([]any)
	if asInt(t, tup[0]) != 1 || tup[1] != "x" || tup[2] != nil || tup[3] != true {
		t.Fatalf("tuple mismatch: %#v", tup)
	}
	w := obj["weights"].([]any)
	if asInt(t, w[1]) != -3 {
		t.Fatalf("weights mismatch: %#v", w)
	}
}

func roundTrip(t *testing.T, c Codec) any {
	t.Helper()
	b, err := c.Marshal(tree())
	if err != nil {
		t.Fatalf("%s marshal: %v", c.ContentType(), err)
	}
	var out any
	if err := c.Unmarshal(b, &out); err != nil {
		t.Fatalf("%s unmarshal: %v", c.ContentType(), err)
	}
	return out
}

func TestJSONCodec(t *testing.T) {
	out := roundTrip(t, JSON())
	checkTree(t, out)
	n := out.(map[string]any)["obj"].(map[string]any)["weights"].([]any)[1]
	if _, ok := n.(json.Number); !ok {
		t.Fatalf("json integers should decode as json.Number, got %T", n)
	}
}

func TestJSONKeepsIntegralFloats(t *testing.T) {
	b, err := JSON().Marshal(map[string]any{"f": []any{2.0, 0.5, int64(2)}})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if got, want := string(b), `{"f":[2.0,0.5,2]}`; got != want {
		t.Fatalf("got %s want %s", got, want)
	}
}

func TestCBORCodec(t *testing.T) {
	c, err := CBOR()
	if err != nil {
		t.Fatalf("new cbor: %v", err)
	}
	checkTree(t, roundTrip(t, c))

	a, _ := c.Marshal(tree())
	b, _ := c.Marshal(tree())
	if string(a) != string(b) {
		t.Fatalf("cbor output is not deterministic")
	}
}

func TestMsgPackCodec(t *testing.T) {
	checkTree(t, roundTrip(t, MsgPack()))
}

func TestProtoCodec(t *testing.T) {
	c := Proto()
	s, err := structpb.NewStruct(map[string]any{"k": "v"})
	if err != nil {
		t.Fatalf("struct: %v", err)
	}
	b, err := c.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out structpb.Struct
	if err := c.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Fields["k"].GetStringValue() != "v" {
		t.Fatalf("roundtrip mismatch")
	}
}

func TestProtoCodecTree(t *testing.T) {
	out := roundTrip(t, Proto())
	checkTree(t, out)
	n := out.(map[string]any)["obj"].(map[string]any)["weights"].([]any)[1]
	if _, ok := n.(float64); !ok {
		t.Fatalf("proto numbers should decode as float64, got %T", n)
	}

	var wrong int
	if err := Proto().Unmarshal(nil, &wrong); err == nil {
		t.Fatalf("expected an error for a non-tree target")
	}
}

func TestZstdCodec(t *testing.T) {
	c := Zstd(JSON())
	if c.ContentType() != "application/json+zstd" {
		t.Fatalf("content type = %q", c.ContentType())
	}
	checkTree(t, roundTrip(t, c))

	var out any
	if err := c.Unmarshal([]byte("not zstd"), &out); err == nil {
		t.Fatalf("expected a decompression error")
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"json", "CBOR", "msgpack", "proto", "application/cbor"} {
		if _, err := r.ByName(name); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
	}
	if _, err := r.ByName("yaml"); err == nil {
		t.Fatalf("expected unknown format error")
	}
	r.Register(Zstd(MsgPack()))
	if r.Get("application/msgpack+zstd") == nil {
		t.Fatalf("zstd codec not registered")
	}
}
