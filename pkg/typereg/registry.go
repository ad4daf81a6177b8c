// Package typereg maps type tags to the special-form wire keys used by
// the graph codec and classifies tags into categories.
//
// A wire key is "__" + tag + "__". A Registry is immutable once built
// and may be shared between goroutines without locking.
package typereg

import (
	"fmt"
	"sort"
	"strings"

	"meshgraph/pkg/graph"
)

// Tag is a type name as it appears inside a wire key.
type Tag string

// Category groups tags by how the decoder rebuilds them.
type Category uint8

const (
	Other Category = iota
	NumericArray
	ChainDecorator
	RemoteReference
	CompoundIterable
	Slice
	ComputeNode
)

func (c Category) String() string {
	switch c {
	case NumericArray:
		return "numeric-array"
	case ChainDecorator:
		return "chain-decorator"
	case RemoteReference:
		return "remote-reference"
	case CompoundIterable:
		return "compound-iterable"
	case Slice:
		return "slice"
	case ComputeNode:
		return "compute-node"
	default:
		return "other"
	}
}

const (
	keyPrefix = "__"
	keySuffix = "__"
)

// WireKey returns the special-form key for tag.
func WireKey(tag Tag) string { return keyPrefix + string(tag) + keySuffix }

// KeyFor returns the special-form key for a value's runtime type.
func KeyFor(v graph.Value) string { return WireKey(Tag(v.TypeName())) }

// Entry registers one tag.
type Entry struct {
	Tag      Tag
	Category Category
}

// Registry is a read-only tag table.
type Registry struct {
	byKey map[string]Entry
}

// New builds a registry from entries. Empty and duplicate tags are
// rejected.
func New(entries ...Entry) (*Registry, error) {
	r := &Registry{byKey: make(map[string]Entry, len(entries))}
	for _, e := range entries {
		if strings.TrimSpace(string(e.Tag)) == "" {
			return nil, fmt.Errorf("typereg: empty tag")
		}
		k := WireKey(e.Tag)
		if prev, dup := r.byKey[k]; dup {
			return nil, fmt.Errorf("typereg: tag %q registered twice (%s, %s)", e.Tag, prev.Category, e.Category)
		}
		r.byKey[k] = e
	}
	return r, nil
}

// MustNew is New that panics on error, for package-level tables.
func MustNew(entries ...Entry) *Registry {
	r, err := New(entries...)
	if err != nil {
		panic(err)
	}
	return r
}

// TagFor resolves a wire key. ok is false for keys that do not name a
// registered special form; such keys are ordinary dictionary keys.
func (r *Registry) TagFor(wireKey string) (Tag, bool) {
	e, ok := r.byKey[wireKey]
	return e.Tag, ok
}

// CategoryOf classifies tag. Unregistered tags are Other.
func (r *Registry) CategoryOf(tag Tag) Category {
	return r.byKey[WireKey(tag)].Category
}

// Entries returns the registered tags sorted by name.
func (r *Registry) Entries() []Entry {
	out := make([]Entry, 0, len(r.byKey))
	for _, e := range r.byKey {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Tag < out[j].Tag })
	return out
}

// Extend returns a new registry holding r's entries plus extra.
func (r *Registry) Extend(extra ...Entry) (*Registry, error) {
	return New(append(r.Entries(), extra...)...)
}

// Chain decorator kinds known to the default registry.
const (
	ChainLocal          = "_Local"
	ChainLog            = "_Log"
	ChainFixedPrecision = "_FixedPrecision"
	ChainShared         = "_Shared"
	PointerTag          = "_Pointer"
	WorkerTag           = "worker"
	SliceTag            = "slice"
	VariableTag         = "Variable"
)

// DefaultEntries lists the tags of the default registry.
func DefaultEntries() []Entry {
	entries := []Entry{
		{Tag: Tag(graph.KindTuple.String()), Category: CompoundIterable},
		{Tag: Tag(graph.KindSet.String()), Category: CompoundIterable},
		{Tag: Tag(graph.KindByteArray.String()), Category: CompoundIterable},
		{Tag: Tag(graph.KindRange.String()), Category: CompoundIterable},
		{Tag: SliceTag, Category: Slice},
		{Tag: WorkerTag, Category: ComputeNode},
		{Tag: VariableTag, Category: NumericArray},
		{Tag: ChainLocal, Category: ChainDecorator},
		{Tag: ChainLog, Category: ChainDecorator},
		{Tag: ChainFixedPrecision, Category: ChainDecorator},
		{Tag: ChainShared, Category: ChainDecorator},
		{Tag: PointerTag, Category: RemoteReference},
	}
	for _, d := range graph.DTypes {
		entries = append(entries, Entry{Tag: Tag(d.TensorName()), Category: NumericArray})
	}
	return entries
}

var defaultRegistry = MustNew(DefaultEntries()...)

// Default returns the shared registry built from DefaultEntries.
func Default() *Registry { return defaultRegistry }
