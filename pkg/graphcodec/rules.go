package graphcodec

import (
	"fmt"

	"meshgraph/pkg/graph"
	"meshgraph/pkg/typereg"
)

// Rule delegates encoding and decoding of one family of values to the
// family's own serializer. Rules are the extension point for numeric
// and chain types: adding a type means registering its tags in the
// type registry and a Rule here, without touching the core dispatch.
type Rule interface {
	// Tags lists the type tags the rule decodes.
	Tags() []typereg.Tag
	// Category places the rule in the encoder's dispatch order.
	// ChainDecorator and RemoteReference rules are tried before
	// primitives; every other category after iterables.
	Category() typereg.Category
	// Match reports whether the rule encodes v.
	Match(v graph.Value) bool
	// Encode returns the special form for v, usually a single-key map
	// keyed by typereg.KeyFor(v).
	Encode(v graph.Value, ec EncodeContext) (any, error)
	// Decode rebuilds one layer from the body found under tag.
	Decode(tag typereg.Tag, body any, dc DecodeContext) (graph.Value, error)
}

// EncodeContext is the encoder state a Rule may use.
type EncodeContext interface {
	// Private reports whether raw values must be withheld.
	Private() bool
	// Encode encodes a nested value through the full dispatch.
	Encode(v graph.Value) (any, error)
	// EncodeChild encodes a member of the current chain. Remote
	// references met below are not collected again.
	EncodeChild(v graph.Value) (any, error)
}

// DecodeContext is the decoder state a Rule may use.
type DecodeContext interface {
	// Acquire reports whether data is copied (true) or subscribed to.
	Acquire() bool
	// Local is the identity of the decoding node.
	Local() graph.NodeID
	// Decode decodes a nested tagged value.
	Decode(x any) (graph.Value, error)
	LookupObject(node graph.NodeID, id graph.ObjectID) (graph.Value, error)
	LookupNode(id graph.NodeID) (graph.NodeRef, error)
	// Adopt hands a freshly built object to the local store, if the
	// resolver accepts registrations.
	Adopt(v graph.Identified) error
}

// Rules is an immutable set of rules indexed by tag.
type Rules struct {
	list  []Rule
	byTag map[typereg.Tag]Rule
}

// NewRules indexes rs. Two rules claiming one tag is an error.
func NewRules(rs ...Rule) (*Rules, error) {
	out := &Rules{list: rs, byTag: make(map[typereg.Tag]Rule)}
	for _, r := range rs {
		for _, tag := range r.Tags() {
			if _, dup := out.byTag[tag]; dup {
				return nil, fmt.Errorf("graphcodec: tag %q claimed by two rules", tag)
			}
			out.byTag[tag] = r
		}
	}
	return out, nil
}

// With returns a new set holding the receiver's rules plus extra.
func (rs *Rules) With(extra ...Rule) (*Rules, error) {
	all := make([]Rule, 0, len(rs.list)+len(extra))
	all = append(all, rs.list...)
	return NewRules(append(all, extra...)...)
}

func (rs *Rules) forTag(tag typereg.Tag) (Rule, bool) {
	r, ok := rs.byTag[tag]
	return r, ok
}

// match returns the first rule accepting v in the given dispatch stage.
func (rs *Rules) match(v graph.Value, early bool) Rule {
	for _, r := range rs.list {
		if isEarly(r.Category()) != early {
			continue
		}
		if r.Match(v) {
			return r
		}
	}
	return nil
}

func isEarly(c typereg.Category) bool {
	return c == typereg.ChainDecorator || c == typereg.RemoteReference
}

var defaultRules = mustRules(
	chainRule{kinds: []typereg.Tag{typereg.ChainLocal, typereg.ChainLog, typereg.ChainFixedPrecision, typereg.ChainShared}},
	pointerRule{},
	variableRule{},
	tensorRule{},
)

func mustRules(rs ...Rule) *Rules {
	r, err := NewRules(rs...)
	if err != nil {
		panic(err)
	}
	return r
}

// DefaultRules covers tensors, variables, decorator chains and
// pointers.
func DefaultRules() *Rules { return defaultRules }

// chainRule handles plain decorator layers. A layer carries no data, so
// both policies rebuild it the same way.
type chainRule struct {
	kinds []typereg.Tag
}

func (r chainRule) Tags() []typereg.Tag      { return r.kinds }
func (chainRule) Category() typereg.Category { return typereg.ChainDecorator }

func (chainRule) Match(v graph.Value) bool {
	_, ok := v.(*graph.Chain)
	return ok
}

func (chainRule) Encode(v graph.Value, ec EncodeContext) (any, error) {
	c := v.(*graph.Chain)
	body := map[string]any{"id": int64(c.ID), "owner": string(c.Owner)}
	if child := c.Unwrap(); child != nil {
		enc, err := ec.EncodeChild(child)
		if err != nil {
			return nil, err
		}
		body["child"] = enc
	}
	return map[string]any{typereg.KeyFor(c): body}, nil
}

func (chainRule) Decode(tag typereg.Tag, body any, dc DecodeContext) (graph.Value, error) {
	m, ok := asMap(body)
	if !ok {
		return nil, invalid(body, "%s body is not a map", tag)
	}
	id, err := objectID(m, "id")
	if err != nil {
		return nil, err
	}
	if _, err := nodeID(m, "owner"); err != nil {
		return nil, err
	}
	c := &graph.Chain{Kind: string(tag), Owner: dc.Local(), SourceID: id}
	if raw, ok := m["child"]; ok && raw != nil {
		child, err := dc.Decode(raw)
		if err != nil {
			return nil, err
		}
		if err := c.SetChild(child); err != nil {
			return nil, err
		}
	}
	if err := dc.Adopt(c); err != nil {
		return nil, err
	}
	return c, nil
}

// pointerRule handles remote references. A pointer that names the
// decoding node resolves to the local object it points at.
type pointerRule struct{}

func (pointerRule) Tags() []typereg.Tag        { return []typereg.Tag{typereg.PointerTag} }
func (pointerRule) Category() typereg.Category { return typereg.RemoteReference }

func (pointerRule) Match(v graph.Value) bool {
	_, ok := v.(*graph.Ref)
	return ok
}

func (pointerRule) Encode(v graph.Value, _ EncodeContext) (any, error) {
	r := v.(*graph.Ref)
	return map[string]any{typereg.KeyFor(r): map[string]any{
		"id":             int64(r.ID),
		"owner":          string(r.Owner),
		"location":       string(r.Location),
		"id_at_location": int64(r.IDAtLocation),
	}}, nil
}

func (pointerRule) Decode(tag typereg.Tag, body any, dc DecodeContext) (graph.Value, error) {
	m, ok := asMap(body)
	if !ok {
		return nil, invalid(body, "%s body is not a map", tag)
	}
	loc, err := nodeID(m, "location")
	if err != nil {
		return nil, err
	}
	target, err := objectID(m, "id_at_location")
	if err != nil {
		return nil, err
	}
	if loc == dc.Local() {
		return dc.LookupObject(loc, target)
	}
	node, err := dc.LookupNode(loc)
	if err != nil {
		return nil, err
	}
	ref := &graph.Ref{Owner: dc.Local(), Location: node.ID, IDAtLocation: target}
	if err := dc.Adopt(ref); err != nil {
		return nil, err
	}
	return ref, nil
}

// subscribeChild returns the child a subscribed head should carry: the
// decoded chain when it already ends in a remote reference, otherwise a
// fresh pointer at the head's origin object.
func subscribeChild(dc DecodeContext, child graph.Value, origin graph.NodeID, id graph.ObjectID) (graph.Value, error) {
	if child != nil {
		if _, remote, err := graph.RemoteTail(child); err != nil {
			return nil, err
		} else if remote {
			return child, nil
		}
	}
	node, err := dc.LookupNode(origin)
	if err != nil {
		return nil, err
	}
	ref := &graph.Ref{Owner: dc.Local(), Location: node.ID, IDAtLocation: id}
	if err := dc.Adopt(ref); err != nil {
		return nil, err
	}
	return ref, nil
}
