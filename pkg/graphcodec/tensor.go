package graphcodec

import (
	"meshgraph/pkg/graph"
	"meshgraph/pkg/typereg"
)

// tensorRule handles dtype-tagged tensor heads:
//
//	{"__Float32Tensor__": {"id": 1, "owner": "a", "shape": [2], "data": [1, 2], "child": ...}}
//
// "data" is omitted when encoding privately.
type tensorRule struct{}

func (tensorRule) Tags() []typereg.Tag {
	tags := make([]typereg.Tag, len(graph.DTypes))
	for i, d := range graph.DTypes {
		tags[i] = typereg.Tag(d.TensorName())
	}
	return tags
}

func (tensorRule) Category() typereg.Category { return typereg.NumericArray }

func (tensorRule) Match(v graph.Value) bool {
	_, ok := v.(*graph.Tensor)
	return ok
}

func (tensorRule) Encode(v graph.Value, ec EncodeContext) (any, error) {
	return encodeTensor(v.(*graph.Tensor), ec)
}

func encodeTensor(t *graph.Tensor, ec EncodeContext) (any, error) {
	body := map[string]any{"id": int64(t.ID), "owner": string(t.Owner)}
	if t.Shape != nil {
		body["shape"] = intsToAny(t.Shape)
	}
	if !ec.Private() && t.Data != nil {
		body["data"] = floatsToAny(t.Data)
	}
	if child := t.Unwrap(); child != nil {
		enc, err := ec.EncodeChild(child)
		if err != nil {
			return nil, err
		}
		body["child"] = enc
	}
	return map[string]any{typereg.KeyFor(t): body}, nil
}

func (tensorRule) Decode(tag typereg.Tag, body any, dc DecodeContext) (graph.Value, error) {
	dtype, ok := graph.ParseTensorName(string(tag))
	if !ok {
		return nil, &UnsupportedEncodedTypeError{TypeName: string(tag), Category: typereg.NumericArray}
	}
	m, ok := asMap(body)
	if !ok {
		return nil, invalid(body, "%s body is not a map", tag)
	}
	id, err := objectID(m, "id")
	if err != nil {
		return nil, err
	}
	owner, err := nodeID(m, "owner")
	if err != nil {
		return nil, err
	}
	dims, err := shape(m)
	if err != nil {
		return nil, err
	}
	child, err := decodeChild(m, dc)
	if err != nil {
		return nil, err
	}
	// A pointer back to this node resolved to the object itself.
	if local, ok := child.(*graph.Tensor); ok {
		return local, nil
	}

	t := &graph.Tensor{DType: dtype, Owner: dc.Local(), SourceID: id, Shape: dims}
	if dc.Acquire() {
		data, _, err := floats(m, "data")
		if err != nil {
			return nil, err
		}
		t.Data = data
		if child, err = acquireChild(child); err != nil {
			return nil, err
		}
	} else if child, err = subscribeChild(dc, child, owner, id); err != nil {
		return nil, err
	}
	if child != nil {
		if err := t.SetChild(child); err != nil {
			return nil, err
		}
	}
	if err := dc.Adopt(t); err != nil {
		return nil, err
	}
	return t, nil
}

// acquireChild drops a chain ending in a remote reference: the copy
// owns its data and points nowhere.
func acquireChild(child graph.Value) (graph.Value, error) {
	if child == nil {
		return nil, nil
	}
	_, remote, err := graph.RemoteTail(child)
	if err != nil || remote {
		return nil, err
	}
	return child, nil
}

func decodeChild(m map[string]any, dc DecodeContext) (graph.Value, error) {
	raw, ok := m["child"]
	if !ok || raw == nil {
		return nil, nil
	}
	return dc.Decode(raw)
}

// variableRule handles variables:
//
//	{"__Variable__": {"id": 3, "owner": "a", "requires_grad": true,
//	                  "data": {"__Float32Tensor__": ...}, "grad": ..., "child": ...}}
type variableRule struct{}

func (variableRule) Tags() []typereg.Tag        { return []typereg.Tag{typereg.VariableTag} }
func (variableRule) Category() typereg.Category { return typereg.NumericArray }

func (variableRule) Match(v graph.Value) bool {
	_, ok := v.(*graph.Variable)
	return ok
}

func (variableRule) Encode(v graph.Value, ec EncodeContext) (any, error) {
	vr := v.(*graph.Variable)
	body := map[string]any{
		"id":            int64(vr.ID),
		"owner":         string(vr.Owner),
		"requires_grad": vr.RequiresGrad,
	}
	for _, part := range []struct {
		key string
		t   *graph.Tensor
	}{{"data", vr.Data}, {"grad", vr.Grad}} {
		if part.t == nil {
			continue
		}
		enc, err := ec.EncodeChild(part.t)
		if err != nil {
			return nil, err
		}
		body[part.key] = enc
	}
	if child := vr.Unwrap(); child != nil {
		enc, err := ec.EncodeChild(child)
		if err != nil {
			return nil, err
		}
		body["child"] = enc
	}
	return map[string]any{typereg.KeyFor(vr): body}, nil
}

func (variableRule) Decode(tag typereg.Tag, body any, dc DecodeContext) (graph.Value, error) {
	m, ok := asMap(body)
	if !ok {
		return nil, invalid(body, "%s body is not a map", tag)
	}
	id, err := objectID(m, "id")
	if err != nil {
		return nil, err
	}
	owner, err := nodeID(m, "owner")
	if err != nil {
		return nil, err
	}
	child, err := decodeChild(m, dc)
	if err != nil {
		return nil, err
	}
	if local, ok := child.(*graph.Variable); ok {
		return local, nil
	}

	vr := &graph.Variable{Owner: dc.Local(), SourceID: id, RequiresGrad: boolField(m, "requires_grad")}
	if vr.Data, err = tensorField(m, "data", dc); err != nil {
		return nil, err
	}
	if vr.Grad, err = tensorField(m, "grad", dc); err != nil {
		return nil, err
	}
	if dc.Acquire() {
		child, err = acquireChild(child)
	} else {
		child, err = subscribeChild(dc, child, owner, id)
	}
	if err != nil {
		return nil, err
	}
	if child != nil {
		if err := vr.SetChild(child); err != nil {
			return nil, err
		}
	}
	if err := dc.Adopt(vr); err != nil {
		return nil, err
	}
	return vr, nil
}

func tensorField(m map[string]any, key string, dc DecodeContext) (*graph.Tensor, error) {
	raw, ok := m[key]
	if !ok || raw == nil {
		return nil, nil
	}
	v, err := dc.Decode(raw)
	if err != nil {
		return nil, err
	}
	t, ok := v.(*graph.Tensor)
	if !ok {
		return nil, invalid(raw, "variable %s is a %s, not a tensor", key, v.TypeName())
	}
	return t, nil
}
