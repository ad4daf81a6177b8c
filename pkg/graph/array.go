package graph

// Array is a dense numeric buffer. Values are held as float64
// regardless of DType; DType and Shape travel as metadata.
type Array struct {
	ID    ObjectID
	Owner NodeID
	// SourceID is the id the array had on the node it was copied from.
	// It is kept for tracing only and never used as a local key.
	SourceID ObjectID
	DType    string
	Shape    []int
	Data     []float64
}

func (*Array) TypeName() string { return "ndarray" }

// Len is the element count implied by Shape.
func (a *Array) Len() int {
	if len(a.Shape) == 0 {
		return len(a.Data)
	}
	n := 1
	for _, d := range a.Shape {
		n *= d
	}
	return n
}

// ArrayRef points at an Array stored on another node.
type ArrayRef struct {
	ID           ObjectID
	Owner        NodeID
	Location     NodeID
	IDAtLocation ObjectID
}

func (*ArrayRef) TypeName() string { return "ndarray_ptr" }

func (r *ArrayRef) Origin() NodeID   { return r.Location }
func (r *ArrayRef) Target() ObjectID { return r.IDAtLocation }

// Identified is implemented by values that live in an object store
// under an ObjectID.
type Identified interface {
	Value
	ObjectID() ObjectID
	SetObjectID(ObjectID)
}

func (a *Array) ObjectID() ObjectID        { return a.ID }
func (a *Array) SetObjectID(id ObjectID)   { a.ID = id }
func (r *ArrayRef) ObjectID() ObjectID     { return r.ID }
func (r *ArrayRef) SetObjectID(id ObjectID) { r.ID = id }
func (t *Tensor) ObjectID() ObjectID       { return t.ID }
func (t *Tensor) SetObjectID(id ObjectID)  { t.ID = id }
func (v *Variable) ObjectID() ObjectID     { return v.ID }
func (v *Variable) SetObjectID(id ObjectID) { v.ID = id }
func (c *Chain) ObjectID() ObjectID        { return c.ID }
func (c *Chain) SetObjectID(id ObjectID)   { c.ID = id }
func (r *Ref) ObjectID() ObjectID          { return r.ID }
func (r *Ref) SetObjectID(id ObjectID)     { r.ID = id }
