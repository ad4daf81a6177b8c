package graph

import (
	"reflect"
	"strings"
)

// MaxChainDepth bounds every walk down a decorator chain.
const MaxChainDepth = 1024

// Wrapper is implemented by values that decorate exactly one inner
// value. Unwrap returns nil at the end of a chain. Implementations must
// be pointer types so chain walks can compare node identity.
type Wrapper interface {
	Value
	Unwrap() Value
}

// Remote is implemented by handles naming an object on another node.
type Remote interface {
	Value
	// Origin is the node that holds the object.
	Origin() NodeID
	// Target is the object's id on Origin.
	Target() ObjectID
}

// DType is the element type of a tensor.
type DType string

const (
	Float16 DType = "float16"
	Float32 DType = "float32"
	Float64 DType = "float64"
	Uint8   DType = "uint8"
	Int8    DType = "int8"
	Int16   DType = "int16"
	Int32   DType = "int32"
	Int64   DType = "int64"
	BoolT   DType = "bool"
)

// DTypes lists every tensor element type.
var DTypes = []DType{Float16, Float32, Float64, Uint8, Int8, Int16, Int32, Int64, BoolT}

// TensorName is the type name of a tensor with this element type,
// e.g. "Float32Tensor".
func (d DType) TensorName() string {
	s := string(d)
	if s == "" {
		return "Tensor"
	}
	return strings.ToUpper(s[:1]) + s[1:] + "Tensor"
}

// ParseTensorName is the inverse of DType.TensorName.
func ParseTensorName(name string) (DType, bool) {
	for _, d := range DTypes {
		if d.TensorName() == name {
			return d, true
		}
	}
	return "", false
}

// Tensor is the head of a numeric chain. Data is nil when the values
// are not held locally, e.g. when the chain ends in a Ref.
type Tensor struct {
	DType    DType
	ID       ObjectID
	Owner    NodeID
	SourceID ObjectID
	Shape    []int
	Data     []float64

	child Value
}

func (t *Tensor) TypeName() string { return t.DType.TensorName() }
func (t *Tensor) Unwrap() Value    { return t.child }

// SetChild attaches the chain below t.
func (t *Tensor) SetChild(v Value) error { return link(t, &t.child, v) }

// Variable couples a data tensor with an optional gradient.
type Variable struct {
	ID           ObjectID
	Owner        NodeID
	SourceID     ObjectID
	Data         *Tensor
	Grad         *Tensor
	RequiresGrad bool

	child Value
}

func (*Variable) TypeName() string { return "Variable" }
func (v *Variable) Unwrap() Value  { return v.child }

func (v *Variable) SetChild(c Value) error { return link(v, &v.child, c) }

// Chain is one decorator layer. Kind is the decorator type name, e.g.
// "_Log" or "_FixedPrecision".
type Chain struct {
	Kind     string
	ID       ObjectID
	Owner    NodeID
	SourceID ObjectID

	child Value
}

// NewChain builds a decorator layer around child.
func NewChain(kind string, id ObjectID, owner NodeID, child Value) (*Chain, error) {
	c := &Chain{Kind: kind, ID: id, Owner: owner}
	if err := c.SetChild(child); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Chain) TypeName() string { return c.Kind }
func (c *Chain) Unwrap() Value    { return c.child }

func (c *Chain) SetChild(v Value) error { return link(c, &c.child, v) }

// Ref points at an object held by another node. It owns nothing; the
// object is reached by asking Location for IDAtLocation.
type Ref struct {
	ID           ObjectID
	Owner        NodeID
	Location     NodeID
	IDAtLocation ObjectID
}

func (*Ref) TypeName() string   { return "_Pointer" }
func (r *Ref) Origin() NodeID   { return r.Location }
func (r *Ref) Target() ObjectID { return r.IDAtLocation }

// IsNil reports whether v is nil or a nil pointer held in a Value.
func IsNil(v Value) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}

// link stores child in *slot after checking that the chain below child
// does not contain parent. A nil pointer child clears the slot.
func link(parent Wrapper, slot *Value, child Value) error {
	if IsNil(child) {
		*slot = nil
		return nil
	}
	cur := child
	for depth := 0; cur != nil; depth++ {
		if depth >= MaxChainDepth {
			return ErrChainTooDeep
		}
		w, ok := cur.(Wrapper)
		if !ok {
			break
		}
		if w == parent {
			return ErrChainCycle
		}
		cur = w.Unwrap()
	}
	*slot = child
	return nil
}

// TailOf follows the wrap relation from v to the innermost value. A
// value that wraps nothing is its own tail.
func TailOf(v Value) (Value, error) {
	seen := make(map[Wrapper]struct{})
	cur := v
	for depth := 0; ; depth++ {
		w, ok := cur.(Wrapper)
		if !ok || IsNil(cur) {
			return cur, nil
		}
		if depth >= MaxChainDepth {
			return nil, ErrChainTooDeep
		}
		if _, dup := seen[w]; dup {
			return nil, ErrChainCycle
		}
		seen[w] = struct{}{}
		next := w.Unwrap()
		if IsNil(next) {
			return cur, nil
		}
		cur = next
	}
}

// RemoteTail reports the remote reference at the end of v's chain.
func RemoteTail(v Value) (Remote, bool, error) {
	tail, err := TailOf(v)
	if err != nil {
		return nil, false, err
	}
	r, ok := tail.(Remote)
	return r, ok, nil
}
