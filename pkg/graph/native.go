package graph

import (
	"fmt"
	"iter"
	"math"
	"reflect"
	"sort"
)

// FromNative converts plain Go data into a Value. Maps need string
// keys; []byte becomes a bytearray; iter.Seq[any] becomes a Generator.
// Any other type yields an *UnsupportedTypeError naming it.
func FromNative(x any) (Value, error) {
	switch v := x.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return v, nil
	case bool:
		return Bool(v), nil
	case int:
		return Int(v), nil
	case int8:
		return Int(v), nil
	case int16:
		return Int(v), nil
	case int32:
		return Int(v), nil
	case int64:
		return Int(v), nil
	case uint8:
		return Int(v), nil
	case uint16:
		return Int(v), nil
	case uint32:
		return Int(v), nil
	case uint:
		return fromUint(uint64(v))
	case uint64:
		return fromUint(v)
	case float32:
		return Float(v), nil
	case float64:
		return Float(v), nil
	case string:
		return Text(v), nil
	case []byte:
		return ByteArray(v), nil
	case []any:
		out := make(List, len(v))
		for i, e := range v {
			ev, err := FromNative(e)
			if err != nil {
				return nil, err
			}
			out[i] = ev
		}
		return out, nil
	case map[string]any:
		out := make(Dict, len(v))
		for k, e := range v {
			ev, err := FromNative(e)
			if err != nil {
				return nil, err
			}
			out[k] = ev
		}
		return out, nil
	case iter.Seq[any]:
		return Generator{Seq: func(yield func(Value) bool) {
			for e := range v {
				ev, err := FromNative(e)
				if err != nil || !yield(ev) {
					return
				}
			}
		}}, nil
	}
	return fromReflect(reflect.ValueOf(x))
}

func fromUint(u uint64) (Value, error) {
	if u > math.MaxInt64 {
		return Float(u), nil
	}
	return Int(u), nil
}

func fromReflect(rv reflect.Value) (Value, error) {
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make(List, rv.Len())
		for i := range out {
			ev, err := FromNative(rv.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			out[i] = ev
		}
		return out, nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			break
		}
		out := make(Dict, rv.Len())
		mi := rv.MapRange()
		for mi.Next() {
			ev, err := FromNative(mi.Value().Interface())
			if err != nil {
				return nil, err
			}
			out[mi.Key().String()] = ev
		}
		return out, nil
	}
	return nil, &UnsupportedTypeError{TypeName: fmt.Sprintf("%T", rv.Interface())}
}

// ToNative renders v as plain Go data suitable for printing or JSON.
// Arrays, tensors, chains and references become descriptive maps keyed
// by their type name. Generators are not consumed and render as nil.
func ToNative(v Value) any {
	switch t := v.(type) {
	case nil, Null:
		return nil
	case Bool:
		return bool(t)
	case Int:
		return int64(t)
	case Float:
		return float64(t)
	case Text:
		return string(t)
	case Ellipsis:
		return "..."
	case List:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = ToNative(e)
		}
		return out
	case Dict:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = ToNative(e)
		}
		return out
	case Iterable:
		if b, ok := t.Bytes(); ok {
			return b
		}
		out := make([]any, len(t.Items))
		for i, e := range t.Items {
			out[i] = ToNative(e)
		}
		return map[string]any{t.TypeName(): out}
	case Slice:
		return map[string]any{"slice": []any{ToNative(t.Start), ToNative(t.Stop), ToNative(t.Step)}}
	case NodeRef:
		return map[string]any{"worker": string(t.ID)}
	case *Array:
		return map[string]any{t.TypeName(): map[string]any{
			"id": int64(t.ID), "owner": string(t.Owner), "dtype": t.DType, "shape": t.Shape, "data": t.Data,
		}}
	case *ArrayRef:
		return map[string]any{t.TypeName(): map[string]any{
			"id": int64(t.ID), "owner": string(t.Owner), "location": string(t.Location), "id_at_location": int64(t.IDAtLocation),
		}}
	case *Ref:
		return map[string]any{t.TypeName(): map[string]any{
			"id": int64(t.ID), "owner": string(t.Owner), "location": string(t.Location), "id_at_location": int64(t.IDAtLocation),
		}}
	case *Tensor:
		body := map[string]any{"id": int64(t.ID), "owner": string(t.Owner), "shape": t.Shape}
		if t.Data != nil {
			body["data"] = t.Data
		}
		if c := t.Unwrap(); c != nil {
			body["child"] = ToNative(c)
		}
		return map[string]any{t.TypeName(): body}
	case *Variable:
		body := map[string]any{"id": int64(t.ID), "owner": string(t.Owner), "requires_grad": t.RequiresGrad}
		if t.Data != nil {
			body["data"] = ToNative(t.Data)
		}
		if t.Grad != nil {
			body["grad"] = ToNative(t.Grad)
		}
		if c := t.Unwrap(); c != nil {
			body["child"] = ToNative(c)
		}
		return map[string]any{t.TypeName(): body}
	case *Chain:
		body := map[string]any{"id": int64(t.ID), "owner": string(t.Owner)}
		if c := t.Unwrap(); c != nil {
			body["child"] = ToNative(c)
		}
		return map[string]any{t.TypeName(): body}
	case Generator:
		return nil
	}
	return fmt.Sprintf("<%s>", v.TypeName())
}

// SortedKeys returns d's keys in lexical order.
func (d Dict) SortedKeys() []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
