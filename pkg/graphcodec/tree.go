package graphcodec

import (
	"encoding/json"
	"math"
	"reflect"
	"strings"

	"meshgraph/pkg/graph"
)

// Helpers for reading tagged trees produced by any of the wire codecs.
// JSON yields json.Number, CBOR and MessagePack yield sized integers,
// structpb yields float64 for every number.

func asMap(x any) (map[string]any, bool) {
	switch m := x.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, v := range m {
			ks, ok := k.(string)
			if !ok {
				return nil, false
			}
			out[ks] = v
		}
		return out, true
	}
	rv := reflect.ValueOf(x)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	out := make(map[string]any, rv.Len())
	it := rv.MapRange()
	for it.Next() {
		out[it.Key().String()] = it.Value().Interface()
	}
	return out, true
}

func asList(x any) ([]any, bool) {
	if l, ok := x.([]any); ok {
		return l, true
	}
	rv := reflect.ValueOf(x)
	if rv.Kind() != reflect.Slice || rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// scalar converts a wire primitive. ok is false for non-primitives.
func scalar(x any) (graph.Value, bool) {
	switch t := x.(type) {
	case nil:
		return graph.Null{}, true
	case bool:
		return graph.Bool(t), true
	case string:
		return graph.Text(t), true
	case float64:
		return graph.Float(t), true
	case float32:
		return graph.Float(t), true
	case json.Number:
		if !strings.ContainsAny(t.String(), ".eE") {
			if i, err := t.Int64(); err == nil {
				return graph.Int(i), true
			}
		}
		f, err := t.Float64()
		if err != nil {
			return nil, false
		}
		return graph.Float(f), true
	}
	if i, ok := integer(x); ok {
		return graph.Int(i), true
	}
	if u, ok := x.(uint64); ok {
		return graph.Float(u), true
	}
	if u, ok := x.(uint); ok {
		return graph.Float(u), true
	}
	return nil, false
}

// integer converts every Go integer kind that fits in int64.
func integer(x any) (int64, bool) {
	switch t := x.(type) {
	case int:
		return int64(t), true
	case int8:
		return int64(t), true
	case int16:
		return int64(t), true
	case int32:
		return int64(t), true
	case int64:
		return t, true
	case uint8:
		return int64(t), true
	case uint16:
		return int64(t), true
	case uint32:
		return int64(t), true
	case uint64:
		if t > math.MaxInt64 {
			return 0, false
		}
		return int64(t), true
	case uint:
		if uint64(t) > math.MaxInt64 {
			return 0, false
		}
		return int64(t), true
	}
	return 0, false
}

// asInt64 also accepts integral floats and json.Number.
func asInt64(x any) (int64, bool) {
	if i, ok := integer(x); ok {
		return i, true
	}
	switch t := x.(type) {
	case float64:
		if t == math.Trunc(t) && math.Abs(t) <= 1<<53 {
			return int64(t), true
		}
	case float32:
		return asInt64(float64(t))
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i, true
		}
		if f, err := t.Float64(); err == nil {
			return asInt64(f)
		}
	}
	return 0, false
}

func asFloat64(x any) (float64, bool) {
	switch t := x.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	}
	if i, ok := integer(x); ok {
		return float64(i), true
	}
	return 0, false
}

// field helpers over a decoded body map.

func objectID(m map[string]any, key string) (graph.ObjectID, error) {
	raw, ok := m[key]
	if !ok || raw == nil {
		return 0, nil
	}
	id, ok := asInt64(raw)
	if !ok {
		return 0, invalid(raw, "field %q is not an object id", key)
	}
	return graph.ObjectID(id), nil
}

func nodeID(m map[string]any, key string) (graph.NodeID, error) {
	raw, ok := m[key]
	if !ok || raw == nil {
		return "", nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", invalid(raw, "field %q is not a node id", key)
	}
	return graph.NodeID(s), nil
}

func shape(m map[string]any) ([]int, error) {
	raw, ok := m["shape"]
	if !ok || raw == nil {
		return nil, nil
	}
	l, ok := asList(raw)
	if !ok {
		return nil, invalid(raw, "shape is not a list")
	}
	out := make([]int, len(l))
	for i, e := range l {
		n, ok := asInt64(e)
		if !ok || n < 0 {
			return nil, invalid(e, "shape[%d] is not a dimension", i)
		}
		out[i] = int(n)
	}
	return out, nil
}

// floats reads an optional numeric buffer; ok is false when absent.
func floats(m map[string]any, key string) ([]float64, bool, error) {
	raw, present := m[key]
	if !present || raw == nil {
		return nil, false, nil
	}
	l, ok := asList(raw)
	if !ok {
		return nil, false, invalid(raw, "field %q is not a numeric list", key)
	}
	out := make([]float64, len(l))
	for i, e := range l {
		f, ok := asFloat64(e)
		if !ok {
			return nil, false, invalid(e, "%s[%d] is not a number", key, i)
		}
		out[i] = f
	}
	return out, true, nil
}

func boolField(m map[string]any, key string) bool {
	b, _ := m[key].(bool)
	return b
}

// encoding side helpers.

func intsToAny(in []int) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = int64(v)
	}
	return out
}

func floatsToAny(in []float64) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}
