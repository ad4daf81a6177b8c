package graphcodec

import (
	"meshgraph/pkg/graph"
)

// Dense arrays travel in a structural form distinguished by a "type"
// field instead of a special-form key.
const (
	keyType         = "type"
	typeArray       = "ndarray"
	typeArrayRef    = "ndarray_ptr"
	keyID           = "id"
	keyOwner        = "owner"
	keyLocation     = "location"
	keyIDAtLocation = "id_at_location"
)

func encodeArray(a *graph.Array, private bool) map[string]any {
	out := map[string]any{
		keyType:  typeArray,
		keyID:    int64(a.ID),
		keyOwner: string(a.Owner),
		"dtype":  a.DType,
	}
	if a.Shape != nil {
		out["shape"] = intsToAny(a.Shape)
	}
	if !private && a.Data != nil {
		out["data"] = floatsToAny(a.Data)
	}
	return out
}

func encodeArrayRef(r *graph.ArrayRef) map[string]any {
	return map[string]any{
		keyType:         typeArrayRef,
		keyID:           int64(r.ID),
		keyOwner:        string(r.Owner),
		keyLocation:     string(r.Location),
		keyIDAtLocation: int64(r.IDAtLocation),
	}
}

// structural reports whether m is an array form and decodes it.
func (w *decodeWalk) structural(m map[string]any) (graph.Value, bool, error) {
	kind, ok := m[keyType].(string)
	if !ok {
		return nil, false, nil
	}
	switch kind {
	case typeArray:
		v, err := w.decodeArray(m)
		return v, true, err
	case typeArrayRef:
		v, err := w.decodeArrayRef(m)
		return v, true, err
	}
	return nil, false, nil
}

func (w *decodeWalk) decodeArray(m map[string]any) (graph.Value, error) {
	id, err := objectID(m, keyID)
	if err != nil {
		return nil, err
	}
	owner, err := nodeID(m, keyOwner)
	if err != nil {
		return nil, err
	}
	if !w.acquire {
		node, err := w.LookupNode(owner)
		if err != nil {
			return nil, err
		}
		ref := &graph.ArrayRef{Owner: w.local, Location: node.ID, IDAtLocation: id}
		if err := w.Adopt(ref); err != nil {
			return nil, err
		}
		return ref, nil
	}

	dims, err := shape(m)
	if err != nil {
		return nil, err
	}
	data, _, err := floats(m, "data")
	if err != nil {
		return nil, err
	}
	dtype, _ := m["dtype"].(string)
	a := &graph.Array{Owner: w.local, SourceID: id, DType: dtype, Shape: dims, Data: data}
	if err := w.Adopt(a); err != nil {
		return nil, err
	}
	return a, nil
}

// decodeArrayRef resolves a pointer at this node to the stored array.
// A pointer elsewhere is kept as a forwarded handle.
func (w *decodeWalk) decodeArrayRef(m map[string]any) (graph.Value, error) {
	loc, err := nodeID(m, keyLocation)
	if err != nil {
		return nil, err
	}
	target, err := objectID(m, keyIDAtLocation)
	if err != nil {
		return nil, err
	}
	if loc == "" || loc == w.local {
		return w.LookupObject(w.local, target)
	}
	node, err := w.LookupNode(loc)
	if err != nil {
		return nil, err
	}
	ref := &graph.ArrayRef{Owner: w.local, Location: node.ID, IDAtLocation: target}
	if err := w.Adopt(ref); err != nil {
		return nil, err
	}
	return ref, nil
}
