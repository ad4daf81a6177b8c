package graph

import "errors"

var (
	// ErrChainCycle reports a decorator chain that loops back on itself.
	ErrChainCycle = errors.New("graph: chain cycle")
	// ErrChainTooDeep reports a chain longer than MaxChainDepth.
	ErrChainTooDeep = errors.New("graph: chain too deep")
	// ErrUnsupportedType is matched by every *UnsupportedTypeError.
	ErrUnsupportedType = errors.New("unsupported type")
	// ErrObjectNotFound is returned by object lookups for unknown ids.
	ErrObjectNotFound = errors.New("object not found")
	// ErrNodeNotFound is returned by node lookups for unknown nodes.
	ErrNodeNotFound = errors.New("node not found")
)

// UnsupportedTypeError names a runtime type that has no encoding rule.
type UnsupportedTypeError struct {
	TypeName string
}

func (e *UnsupportedTypeError) Error() string {
	return "unsupported type: " + e.TypeName
}

func (e *UnsupportedTypeError) Is(target error) bool { return target == ErrUnsupportedType }
