package graph

import (
	"errors"
	"reflect"
	"slices"
	"testing"
)

func TestRangeMaterializes(t *testing.T) {
	r := Range(1, 10, 3)
	want := []Value{Int(1), Int(4), Int(7)}
	if !reflect.DeepEqual(r.Items, want) {
		t.Fatalf("range items = %v", r.Items)
	}
	if got := Range(5, 0, -2).Items; !reflect.DeepEqual(got, []Value{Int(5), Int(3), Int(1)}) {
		t.Fatalf("descending range = %v", got)
	}
	if got := Range(0, 5, 0).Items; len(got) != 0 {
		t.Fatalf("zero step should be empty, got %v", got)
	}
}

func TestSetDropsDuplicates(t *testing.T) {
	s := Set(Int(1), Text("a"), Int(1), List{Int(1)})
	if len(s.Items) != 3 {
		t.Fatalf("set items = %v", s.Items)
	}
}

func TestByteArrayBytes(t *testing.T) {
	b, ok := ByteArray([]byte("hi")).Bytes()
	if !ok || string(b) != "hi" {
		t.Fatalf("bytes = %q %v", b, ok)
	}
	if _, ok := Tuple(Int(300)).Bytes(); ok {
		t.Fatalf("tuple is not a bytearray")
	}
}

func TestFromNative(t *testing.T) {
	v, err := FromNative(map[string]any{
		"n":    3,
		"f":    1.5,
		"s":    "x",
		"list": []any{true, nil},
		"strs": []string{"a", "b"},
		"raw":  []byte{1},
	})
	if err != nil {
		t.Fatalf("from native: %v", err)
	}
	d := v.(Dict)
	if d["n"] != Int(3) || d["f"] != Float(1.5) || d["s"] != Text("x") {
		t.Fatalf("scalars = %v", d)
	}
	if !reflect.DeepEqual(d["list"], List{Bool(true), Null{}}) {
		t.Fatalf("list = %v", d["list"])
	}
	if !reflect.DeepEqual(d["strs"], List{Text("a"), Text("b")}) {
		t.Fatalf("strs = %v", d["strs"])
	}
	if d["raw"].(Iterable).Kind != KindByteArray {
		t.Fatalf("raw = %v", d["raw"])
	}
	if !slices.Equal(d.SortedKeys(), []string{"f", "list", "n", "raw", "s", "strs"}) {
		t.Fatalf("keys = %v", d.SortedKeys())
	}
}

func TestFromNativeRejectsUnknown(t *testing.T) {
	type opaque struct{ x int }
	_, err := FromNative(opaque{1})
	var ute *UnsupportedTypeError
	if !errors.As(err, &ute) || ute.TypeName != "graph.opaque" {
		t.Fatalf("want UnsupportedTypeError naming graph.opaque, got %v", err)
	}
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("errors.Is should match ErrUnsupportedType")
	}
	if _, err := FromNative(map[int]any{1: 2}); err == nil {
		t.Fatalf("int-keyed map should be rejected")
	}
}

func TestToNative(t *testing.T) {
	got := ToNative(Dict{"a": List{Int(1), Ellipsis{}}, "b": Null{}})
	want := map[string]any{"a": []any{int64(1), "..."}, "b": nil}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ToNative = %#v", got)
	}
}
