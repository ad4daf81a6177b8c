// Package graph defines the values the object-graph codec can carry:
// plain data (scalars, lists, dictionaries), non-JSON iterables, slices,
// numeric arrays and tensors, decorator chains, remote references and
// compute-node identifiers.
//
// The built-in variants form a closed set. Types outside the package may
// implement Value too; the codec only encodes them when a rule has been
// registered for their type name.
package graph

import (
	"iter"
	"strconv"
)

// Value is any node of an object graph.
type Value interface {
	// TypeName is the runtime type name used for wire keys and errors.
	TypeName() string
}

// NodeID identifies a compute node.
type NodeID string

// ObjectID identifies an object inside one node's object store.
type ObjectID int64

func (id ObjectID) String() string { return strconv.FormatInt(int64(id), 10) }

type (
	Null  struct{}
	Bool  bool
	Int   int64
	Float float64
	Text  string

	// List is an ordered sequence.
	List []Value

	// Dict is a user dictionary. Iteration order is not significant.
	Dict map[string]Value

	// Ellipsis is the "..." marker used in indexing expressions.
	Ellipsis struct{}
)

func (Null) TypeName() string     { return "NoneType" }
func (Bool) TypeName() string     { return "bool" }
func (Int) TypeName() string      { return "int" }
func (Float) TypeName() string    { return "float" }
func (Text) TypeName() string     { return "str" }
func (List) TypeName() string     { return "list" }
func (Dict) TypeName() string     { return "dict" }
func (Ellipsis) TypeName() string { return "ellipsis" }

// IterableKind names the non-JSON-native container kinds.
type IterableKind uint8

const (
	KindTuple IterableKind = iota + 1
	KindSet
	KindByteArray
	KindRange
)

func (k IterableKind) String() string {
	switch k {
	case KindTuple:
		return "tuple"
	case KindSet:
		return "set"
	case KindByteArray:
		return "bytearray"
	case KindRange:
		return "range"
	default:
		return "iterable(" + strconv.Itoa(int(k)) + ")"
	}
}

// ParseIterableKind maps a container name back to its kind.
func ParseIterableKind(name string) (IterableKind, bool) {
	switch name {
	case "tuple":
		return KindTuple, true
	case "set":
		return KindSet, true
	case "bytearray":
		return KindByteArray, true
	case "range":
		return KindRange, true
	}
	return 0, false
}

// Iterable is a container with no JSON counterpart. Items keep the
// order they were produced in; for sets that order carries no meaning.
type Iterable struct {
	Kind  IterableKind
	Items []Value
}

func (it Iterable) TypeName() string { return it.Kind.String() }

func Tuple(items ...Value) Iterable { return Iterable{Kind: KindTuple, Items: items} }

// Set builds a set, dropping repeated scalar members.
func Set(items ...Value) Iterable {
	out := make([]Value, 0, len(items))
	seen := make(map[Value]struct{}, len(items))
	for _, v := range items {
		if isHashable(v) {
			if _, dup := seen[v]; dup {
				continue
			}
			seen[v] = struct{}{}
		}
		out = append(out, v)
	}
	return Iterable{Kind: KindSet, Items: out}
}

// ByteArray wraps b as a bytearray of Int items.
func ByteArray(b []byte) Iterable {
	items := make([]Value, len(b))
	for i, c := range b {
		items[i] = Int(c)
	}
	return Iterable{Kind: KindByteArray, Items: items}
}

// Range materializes the arithmetic progression start, start+step, ...
// stopping before stop. A zero step yields an empty range.
func Range(start, stop, step int64) Iterable {
	var items []Value
	switch {
	case step > 0:
		for i := start; i < stop; i += step {
			items = append(items, Int(i))
		}
	case step < 0:
		for i := start; i > stop; i += step {
			items = append(items, Int(i))
		}
	}
	return Iterable{Kind: KindRange, Items: items}
}

// Bytes returns the byte content of a bytearray iterable.
func (it Iterable) Bytes() ([]byte, bool) {
	if it.Kind != KindByteArray {
		return nil, false
	}
	out := make([]byte, len(it.Items))
	for i, v := range it.Items {
		n, ok := v.(Int)
		if !ok || n < 0 || n > 255 {
			return nil, false
		}
		out[i] = byte(n)
	}
	return out, true
}

func isHashable(v Value) bool {
	switch v.(type) {
	case Null, Bool, Int, Float, Text, Ellipsis, NodeRef:
		return true
	}
	return false
}

// Slice mirrors a start:stop:step index expression. Each bound is Null
// or Int.
type Slice struct {
	Start, Stop, Step Value
}

func (Slice) TypeName() string { return "slice" }

// NewSlice builds a slice with all three bounds set.
func NewSlice(start, stop, step int64) Slice {
	return Slice{Start: Int(start), Stop: Int(stop), Step: Int(step)}
}

// Generator is a lazily produced sequence. It cannot travel over the
// wire without being consumed, so the encoder degrades it to an empty
// list.
type Generator struct {
	Seq iter.Seq[Value]
}

func (Generator) TypeName() string { return "generator" }

// NodeRef names a compute node.
type NodeRef struct {
	ID NodeID
}

func (NodeRef) TypeName() string { return "worker" }
