package graphcodec

import (
	"fmt"
	"maps"
	"slices"

	"go.uber.org/zap"

	"meshgraph/pkg/graph"
	"meshgraph/pkg/typereg"
)

// Resolver gives the decoder read access to the receiving node's
// object store and node directory. Implementations wrap
// ErrObjectNotFound and ErrNodeNotFound.
type Resolver interface {
	LookupObject(node graph.NodeID, id graph.ObjectID) (graph.Value, error)
	LookupNode(id graph.NodeID) (graph.NodeRef, error)
}

// Registrar is implemented by resolvers that take ownership of objects
// built during decoding. RegisterObject assigns the local id.
type Registrar interface {
	RegisterObject(v graph.Identified) error
}

// ResolverFuncs adapts two functions to a Resolver. A nil function
// reports every lookup as missing.
type ResolverFuncs struct {
	Object func(node graph.NodeID, id graph.ObjectID) (graph.Value, error)
	Node   func(id graph.NodeID) (graph.NodeRef, error)
}

func (f ResolverFuncs) LookupObject(node graph.NodeID, id graph.ObjectID) (graph.Value, error) {
	if f.Object == nil {
		return nil, fmt.Errorf("object %s on %q: %w", id, node, ErrObjectNotFound)
	}
	return f.Object(node, id)
}

func (f ResolverFuncs) LookupNode(id graph.NodeID) (graph.NodeRef, error) {
	if f.Node == nil {
		return graph.NodeRef{}, fmt.Errorf("node %q: %w", id, ErrNodeNotFound)
	}
	return f.Node(id)
}

// Unmarshaler is the subset of a wire codec DecodeBytes needs.
type Unmarshaler interface {
	Unmarshal(data []byte, v any) error
}

// Decoder rebuilds graph values on the node it is bound to. Like the
// Encoder it keeps no per-call state.
type Decoder struct {
	local    graph.NodeID
	resolver Resolver
	opts     options
}

// NewDecoder binds a decoder to the receiving node. resolver may be nil
// when the input holds no references.
func NewDecoder(local graph.NodeID, resolver Resolver, opts ...Option) *Decoder {
	if resolver == nil {
		resolver = ResolverFuncs{}
	}
	return &Decoder{local: local, resolver: resolver, opts: applyOptions(opts)}
}

// Local returns the node the decoder is bound to.
func (d *Decoder) Local() graph.NodeID { return d.local }

// Decode rebuilds a bare tagged tree under Subscribe, or under the
// policy fixed by WithAcquire.
func (d *Decoder) Decode(tagged any) (graph.Value, error) {
	return d.DecodeAs(tagged, Subscribe)
}

// DecodeAs rebuilds a bare tagged tree under mode unless WithAcquire
// fixed the policy.
func (d *Decoder) DecodeAs(tagged any, mode Mode) (graph.Value, error) {
	w := &decodeWalk{dec: d, local: d.local, acquire: d.policy(mode) == Acquire}
	return w.Decode(tagged)
}

func (d *Decoder) policy(mode Mode) Mode {
	if d.opts.acquire == nil {
		return mode
	}
	if *d.opts.acquire {
		return Acquire
	}
	return Subscribe
}

// DecodeMessage decodes an envelope.
//
//   - {"obj": x, "mode": m} decodes x under m and returns it.
//   - {"message": {"obj": x, "mode": m}, ...} returns a Dict holding the
//     decoded inner value under "message" and the other fields as plain
//     data.
//   - anything else is a bare tagged tree.
//
// The returned mode is the policy that was applied.
func (d *Decoder) DecodeMessage(msg any) (graph.Value, Mode, error) {
	m, ok := asMap(msg)
	if !ok {
		mode := d.policy(Subscribe)
		v, err := d.DecodeAs(msg, mode)
		return v, mode, err
	}
	if inner, ok := m[keyMessage]; ok {
		if _, isMap := asMap(inner); isMap {
			v, mode, err := d.DecodeMessage(inner)
			if err != nil {
				return nil, mode, err
			}
			out := make(graph.Dict, len(m))
			for k, x := range m {
				if k == keyMessage {
					continue
				}
				pv, err := plain(x)
				if err != nil {
					return nil, mode, err
				}
				out[k] = pv
			}
			out[keyMessage] = v
			return out, mode, nil
		}
	}
	obj, hasObj := m[keyObj]
	rawMode, hasMode := m[keyMode]
	if !hasObj || !hasMode || len(m) != 2 {
		mode := d.policy(Subscribe)
		v, err := d.DecodeAs(msg, mode)
		return v, mode, err
	}
	s, ok := rawMode.(string)
	if !ok {
		return nil, Subscribe, invalid(rawMode, "envelope mode is not a string")
	}
	mode, err := ParseMode(s)
	if err != nil {
		return nil, Subscribe, &InvalidEncodingError{GoType: "string", Reason: err.Error()}
	}
	mode = d.policy(mode)
	v, err := d.DecodeAs(obj, mode)
	return v, mode, err
}

// DecodeBytes unmarshals data with u and decodes the envelope.
func (d *Decoder) DecodeBytes(data []byte, u Unmarshaler) (graph.Value, Mode, error) {
	var tree any
	if err := u.Unmarshal(data, &tree); err != nil {
		return nil, Subscribe, fmt.Errorf("graphcodec: unmarshal: %w", err)
	}
	return d.DecodeMessage(tree)
}

// Decode is a shorthand for NewDecoder(local, resolver, opts...).DecodeMessage.
func Decode(msg any, local graph.NodeID, resolver Resolver, opts ...Option) (graph.Value, error) {
	v, _, err := NewDecoder(local, resolver, opts...).DecodeMessage(msg)
	return v, err
}

// plain converts wire data without interpreting special forms.
func plain(x any) (graph.Value, error) {
	if v, ok := scalar(x); ok {
		return v, nil
	}
	if l, ok := asList(x); ok {
		out := make(graph.List, len(l))
		for i, e := range l {
			v, err := plain(e)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	}
	if m, ok := asMap(x); ok {
		out := make(graph.Dict, len(m))
		for k, e := range m {
			v, err := plain(e)
			if err != nil {
				return nil, err
			}
			out[k] = v
		}
		return out, nil
	}
	return nil, invalid(x, "unexpected value")
}

// decodeWalk carries one decode call and implements DecodeContext.
type decodeWalk struct {
	dec     *Decoder
	local   graph.NodeID
	acquire bool
	depth   int
}

func (w *decodeWalk) Acquire() bool       { return w.acquire }
func (w *decodeWalk) Local() graph.NodeID { return w.local }

func (w *decodeWalk) LookupObject(node graph.NodeID, id graph.ObjectID) (graph.Value, error) {
	v, err := w.dec.resolver.LookupObject(node, id)
	if err != nil {
		return nil, fmt.Errorf("graphcodec: resolve object %s on %q: %w", id, node, err)
	}
	return v, nil
}

func (w *decodeWalk) LookupNode(id graph.NodeID) (graph.NodeRef, error) {
	n, err := w.dec.resolver.LookupNode(id)
	if err != nil {
		return graph.NodeRef{}, fmt.Errorf("graphcodec: resolve node %q: %w", id, err)
	}
	return n, nil
}

func (w *decodeWalk) Adopt(v graph.Identified) error {
	reg, ok := w.dec.resolver.(Registrar)
	if !ok {
		return nil
	}
	if err := reg.RegisterObject(v); err != nil {
		return fmt.Errorf("graphcodec: register %T: %w", v, err)
	}
	if ce := w.dec.opts.logger.Check(zap.DebugLevel, "adopted object"); ce != nil {
		ce.Write(zap.String("node", string(w.local)), zap.Int64("id", int64(v.ObjectID())), zap.Bool("acquire", w.acquire))
	}
	return nil
}

func (w *decodeWalk) Decode(x any) (graph.Value, error) {
	w.depth++
	defer func() { w.depth-- }()
	if w.depth > w.dec.opts.maxDepth {
		return nil, fmt.Errorf("graphcodec: decode: %w (limit %d)", ErrTooDeep, w.dec.opts.maxDepth)
	}

	if s, ok := x.(string); ok && s == "..." {
		return graph.Ellipsis{}, nil
	}
	if v, ok := scalar(x); ok {
		return v, nil
	}
	if l, ok := asList(x); ok {
		return w.decodeItems(l)
	}
	m, ok := asMap(x)
	if !ok {
		return nil, invalid(x, "unexpected value")
	}
	if v, ok, err := w.structural(m); ok || err != nil {
		return v, err
	}
	if len(m) == 1 {
		for key, body := range m {
			if tag, ok := w.dec.opts.registry.TagFor(key); ok {
				return w.special(tag, body)
			}
		}
	}

	out := make(graph.Dict, len(m))
	for _, k := range slices.Sorted(maps.Keys(m)) {
		v, err := w.Decode(m[k])
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}

func (w *decodeWalk) decodeItems(l []any) (graph.List, error) {
	out := make(graph.List, len(l))
	for i, e := range l {
		v, err := w.Decode(e)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (w *decodeWalk) special(tag typereg.Tag, body any) (graph.Value, error) {
	cat := w.dec.opts.registry.CategoryOf(tag)
	switch cat {
	case typereg.NumericArray, typereg.ChainDecorator, typereg.RemoteReference:
		if r, ok := w.dec.opts.rules.forTag(tag); ok {
			return r.Decode(tag, body, w)
		}
	case typereg.CompoundIterable:
		if kind, ok := graph.ParseIterableKind(string(tag)); ok {
			return w.iterable(kind, body)
		}
	case typereg.Slice:
		return w.slice(body)
	case typereg.ComputeNode:
		id, ok := body.(string)
		if !ok {
			return nil, invalid(body, "%s body is not a node id", tag)
		}
		return w.LookupNode(graph.NodeID(id))
	}
	return nil, &UnsupportedEncodedTypeError{TypeName: string(tag), Category: cat}
}

func (w *decodeWalk) iterable(kind graph.IterableKind, body any) (graph.Value, error) {
	l, ok := asList(body)
	if !ok {
		return nil, invalid(body, "%s body is not a list", kind)
	}
	items, err := w.decodeItems(l)
	if err != nil {
		return nil, err
	}
	switch kind {
	case graph.KindSet:
		return graph.Set(items...), nil
	case graph.KindByteArray:
		it := graph.Iterable{Kind: kind, Items: items}
		if _, ok := it.Bytes(); !ok {
			return nil, invalid(body, "bytearray holds a non-byte item")
		}
		return it, nil
	}
	return graph.Iterable{Kind: kind, Items: items}, nil
}

// slice accepts one to three bounds, read like slice(stop),
// slice(start, stop) and slice(start, stop, step).
func (w *decodeWalk) slice(body any) (graph.Value, error) {
	m, ok := asMap(body)
	if !ok {
		return nil, invalid(body, "slice body is not a map")
	}
	args, ok := asList(m["args"])
	if !ok || len(args) < 1 || len(args) > 3 {
		return nil, invalid(m["args"], "slice takes 1 to 3 args")
	}
	bounds := make([]graph.Value, len(args))
	for i, a := range args {
		if a == nil {
			bounds[i] = graph.Null{}
			continue
		}
		n, ok := asInt64(a)
		if !ok {
			return nil, invalid(a, "slice bound %d is not an integer", i)
		}
		bounds[i] = graph.Int(n)
	}
	s := graph.Slice{Start: graph.Null{}, Stop: graph.Null{}, Step: graph.Null{}}
	switch len(bounds) {
	case 1:
		s.Stop = bounds[0]
	case 2:
		s.Start, s.Stop = bounds[0], bounds[1]
	case 3:
		s.Start, s.Stop, s.Step = bounds[0], bounds[1], bounds[2]
	}
	return s, nil
}
