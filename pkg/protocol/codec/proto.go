package codec

import (
	"encoding/json"
	"fmt"
	"reflect"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

type protoCodec struct {
	mo proto.MarshalOptions
	uo proto.UnmarshalOptions
}

// Proto returns a Protocol Buffers codec with deterministic marshaling.
// Content-Type: application/x-protobuf
//
// proto.Message values are marshaled as they are. Any other tagged tree
// travels as a google.protobuf.Value; unmarshaling into *any yields the
// tree back with every number as float64.
func Proto() Codec {
	return protoCodec{
		mo: proto.MarshalOptions{Deterministic: true},
		uo: proto.UnmarshalOptions{},
	}
}

func (p protoCodec) ContentType() string { return "application/x-protobuf" }

func (p protoCodec) Marshal(v any) ([]byte, error) {
	if msg, ok := v.(proto.Message); ok {
		return p.mo.Marshal(msg)
	}
	sv, err := ToStructValue(v)
	if err != nil {
		return nil, err
	}
	return p.mo.Marshal(sv)
}

func (p protoCodec) Unmarshal(data []byte, v any) error {
	switch t := v.(type) {
	case proto.Message:
		return p.uo.Unmarshal(data, t)
	case *any:
		var sv structpb.Value
		if err := p.uo.Unmarshal(data, &sv); err != nil {
			return err
		}
		*t = sv.AsInterface()
		return nil
	}
	return fmt.Errorf("protobuf: target must be proto.Message or *any, got %T", v)
}

// ToStructValue converts a tagged tree to a structpb.Value.
func ToStructValue(v any) (*structpb.Value, error) {
	norm, err := normalize(v)
	if err != nil {
		return nil, err
	}
	return structpb.NewValue(norm)
}

// normalize rewrites the numeric and container types structpb.NewValue
// does not accept.
func normalize(v any) (any, error) {
	switch t := v.(type) {
	case nil, bool, string, float64, float32, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return t, nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return nil, fmt.Errorf("protobuf: number %q: %w", t, err)
		}
		return f, nil
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			n, err := normalize(e)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			n, err := normalize(e)
			if err != nil {
				return nil, err
			}
			out[k] = n
		}
		return out, nil
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			ks, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("protobuf: map key %v (%T) is not a string", k, k)
			}
			n, err := normalize(e)
			if err != nil {
				return nil, err
			}
			out[ks] = n
		}
		return out, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice {
		out := make([]any, rv.Len())
		for i := range out {
			n, err := normalize(rv.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	}
	return nil, fmt.Errorf("protobuf: unsupported tree node %T", v)
}
