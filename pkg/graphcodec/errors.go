package graphcodec

import (
	"errors"
	"fmt"

	"meshgraph/pkg/graph"
	"meshgraph/pkg/typereg"
)

var (
	// ErrUnsupportedType is matched by *UnsupportedTypeError.
	ErrUnsupportedType = graph.ErrUnsupportedType
	// ErrInvalidEncoding is matched by *InvalidEncodingError.
	ErrInvalidEncoding = errors.New("invalid encoding")
	// ErrUnsupportedEncodedType is matched by *UnsupportedEncodedTypeError.
	ErrUnsupportedEncodedType = errors.New("unsupported encoded type")
	// ErrObjectNotFound should be wrapped by resolvers for unknown objects.
	ErrObjectNotFound = graph.ErrObjectNotFound
	// ErrNodeNotFound should be wrapped by resolvers for unknown nodes.
	ErrNodeNotFound = graph.ErrNodeNotFound
	// ErrTooDeep reports a graph nested deeper than the configured limit.
	ErrTooDeep = errors.New("graph nested too deep")
)

// UnsupportedTypeError is returned when the encoder meets a value with
// no encoding rule.
type UnsupportedTypeError = graph.UnsupportedTypeError

// InvalidEncodingError is returned when a tagged tree does not follow
// the wire grammar.
type InvalidEncodingError struct {
	// GoType is the dynamic type of the offending node.
	GoType string
	Reason string
}

func (e *InvalidEncodingError) Error() string {
	if e.Reason == "" {
		return "invalid encoding: unexpected " + e.GoType
	}
	return fmt.Sprintf("invalid encoding: %s (%s)", e.Reason, e.GoType)
}

func (e *InvalidEncodingError) Is(target error) bool { return target == ErrInvalidEncoding }

func invalid(x any, format string, args ...any) error {
	return &InvalidEncodingError{GoType: fmt.Sprintf("%T", x), Reason: fmt.Sprintf(format, args...)}
}

// UnsupportedEncodedTypeError is returned when a special-form key is
// recognized but nothing can rebuild it.
type UnsupportedEncodedTypeError struct {
	TypeName string
	Category typereg.Category
}

func (e *UnsupportedEncodedTypeError) Error() string {
	return fmt.Sprintf("the special object type %q (%s) is not supported", e.TypeName, e.Category)
}

func (e *UnsupportedEncodedTypeError) Is(target error) bool {
	return target == ErrUnsupportedEncodedType
}
