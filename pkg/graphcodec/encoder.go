package graphcodec

import (
	"fmt"

	"go.uber.org/zap"

	"meshgraph/pkg/graph"
	"meshgraph/pkg/typereg"
)

// Encoder turns graph values into tagged trees. An Encoder holds no
// per-call state and may be shared between goroutines.
type Encoder struct {
	opts options
}

// NewEncoder returns an encoder using the default registry and rules
// unless overridden.
func NewEncoder(opts ...Option) *Encoder {
	return &Encoder{opts: applyOptions(opts)}
}

// Encode converts v into a Message carrying policy. When collect is
// set, the remote references found at the tail of chains are returned
// in pre-order, first-encounter order, duplicates included.
//
// Under Subscribe the raw data of arrays and tensors is withheld.
func (e *Encoder) Encode(v graph.Value, collect bool, policy Mode) (Message, []graph.Remote, error) {
	w := &encodeWalk{
		enc:     e,
		private: policy == Subscribe,
		collect: collect,
	}
	obj, err := w.Encode(v)
	if err != nil {
		return Message{}, nil, err
	}
	return Message{Obj: obj, Mode: policy}, w.refs, nil
}

// Encode is a shorthand for NewEncoder(opts...).Encode.
func Encode(v graph.Value, collect bool, policy Mode, opts ...Option) (Message, []graph.Remote, error) {
	return NewEncoder(opts...).Encode(v, collect, policy)
}

type encodeWalk struct {
	enc      *Encoder
	private  bool
	collect  bool
	suppress int
	depth    int
	refs     []graph.Remote
}

func (w *encodeWalk) Private() bool { return w.private }

func (w *encodeWalk) EncodeChild(v graph.Value) (any, error) {
	w.suppress++
	defer func() { w.suppress-- }()
	return w.Encode(v)
}

func (w *encodeWalk) Encode(v graph.Value) (any, error) {
	w.depth++
	defer func() { w.depth-- }()
	if w.depth > w.enc.opts.maxDepth {
		return nil, fmt.Errorf("graphcodec: encode: %w (limit %d)", ErrTooDeep, w.enc.opts.maxDepth)
	}
	if v == nil {
		return nil, nil
	}
	if graph.IsNil(v) {
		return nil, &UnsupportedTypeError{TypeName: fmt.Sprintf("nil %T", v)}
	}

	if d, ok := v.(graph.Dict); ok {
		out := make(map[string]any, len(d))
		for _, k := range d.SortedKeys() {
			enc, err := w.Encode(d[k])
			if err != nil {
				return nil, err
			}
			out[k] = enc
		}
		return out, nil
	}
	if r := w.enc.opts.rules.match(v, true); r != nil {
		return w.viaRule(r, v)
	}

	switch t := v.(type) {
	case graph.Null:
		return nil, nil
	case graph.Bool:
		return bool(t), nil
	case graph.Int:
		return int64(t), nil
	case graph.Float:
		return float64(t), nil
	case graph.Text:
		return string(t), nil
	case graph.List:
		return w.encodeItems(t)
	case graph.Iterable:
		tag := typereg.Tag(t.Kind.String())
		if !w.registered(tag, typereg.CompoundIterable) {
			return nil, &UnsupportedTypeError{TypeName: t.TypeName()}
		}
		items, err := w.encodeItems(t.Items)
		if err != nil {
			return nil, err
		}
		return map[string]any{typereg.WireKey(tag): items}, nil
	}

	if r := w.enc.opts.rules.match(v, false); r != nil {
		return w.viaRule(r, v)
	}

	switch t := v.(type) {
	case graph.Ellipsis:
		return "...", nil
	case *graph.Array:
		return encodeArray(t, w.private), nil
	case *graph.ArrayRef:
		return encodeArrayRef(t), nil
	case graph.Slice:
		args := make([]any, 3)
		for i, b := range []graph.Value{t.Start, t.Stop, t.Step} {
			enc, err := w.encodeBound(b)
			if err != nil {
				return nil, err
			}
			args[i] = enc
		}
		return map[string]any{typereg.WireKey(typereg.SliceTag): map[string]any{"args": args}}, nil
	case graph.Generator:
		w.enc.opts.logger.Warn("generator cannot be serialized, sending an empty list")
		return []any{}, nil
	case graph.NodeRef:
		return map[string]any{typereg.WireKey(typereg.WorkerTag): string(t.ID)}, nil
	}
	return nil, &UnsupportedTypeError{TypeName: fmt.Sprintf("%T", v)}
}

func (w *encodeWalk) encodeItems(items []graph.Value) ([]any, error) {
	out := make([]any, len(items))
	for i, item := range items {
		enc, err := w.Encode(item)
		if err != nil {
			return nil, err
		}
		out[i] = enc
	}
	return out, nil
}

func (w *encodeWalk) encodeBound(b graph.Value) (any, error) {
	switch b.(type) {
	case nil, graph.Null:
		return nil, nil
	case graph.Int:
		return w.Encode(b)
	}
	return nil, &UnsupportedTypeError{TypeName: "slice bound " + b.TypeName()}
}

// viaRule resolves the chain tail for reference collection, then hands
// the whole value to the rule.
func (w *encodeWalk) viaRule(r Rule, v graph.Value) (any, error) {
	if !w.registered(typereg.Tag(v.TypeName()), r.Category()) {
		return nil, &UnsupportedTypeError{TypeName: v.TypeName()}
	}
	remote, ok, err := graph.RemoteTail(v)
	if err != nil {
		return nil, err
	}
	if ok && w.collect && w.suppress == 0 {
		w.refs = append(w.refs, remote)
	}
	out, err := r.Encode(v, w)
	if err != nil {
		return nil, err
	}
	if ce := w.enc.opts.logger.Check(zap.DebugLevel, "encoded chain"); ce != nil {
		ce.Write(zap.String("type", v.TypeName()), zap.Bool("remote_tail", ok), zap.Bool("private", w.private))
	}
	return out, nil
}

func (w *encodeWalk) registered(tag typereg.Tag, want typereg.Category) bool {
	got, ok := w.enc.opts.registry.TagFor(typereg.WireKey(tag))
	return ok && got == tag && w.enc.opts.registry.CategoryOf(tag) == want
}
