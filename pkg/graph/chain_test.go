package graph

import (
	"errors"
	"testing"
)

func TestTailOfFollowsChain(t *testing.T) {
	ref := &Ref{ID: 2, Owner: "a", Location: "b", IDAtLocation: 40}
	logLayer, err := NewChain("_Log", 3, "a", ref)
	if err != nil {
		t.Fatalf("new chain: %v", err)
	}
	head := &Tensor{DType: Float32, ID: 1, Owner: "a"}
	if err := head.SetChild(logLayer); err != nil {
		t.Fatalf("set child: %v", err)
	}

	tail, err := TailOf(head)
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	if tail != Value(ref) {
		t.Fatalf("tail = %#v, want the pointer", tail)
	}
	r, ok, err := RemoteTail(head)
	if err != nil || !ok || r.Origin() != "b" || r.Target() != 40 {
		t.Fatalf("remote tail = %v %v %v", r, ok, err)
	}
}

func TestTailOfTerminals(t *testing.T) {
	if tail, err := TailOf(Int(4)); err != nil || tail != Value(Int(4)) {
		t.Fatalf("plain value should be its own tail: %v %v", tail, err)
	}
	head := &Tensor{DType: Int64, ID: 1}
	if tail, err := TailOf(head); err != nil || tail != Value(head) {
		t.Fatalf("childless tensor should be its own tail: %v %v", tail, err)
	}
	if _, ok, _ := RemoteTail(head); ok {
		t.Fatalf("local tensor must not report a remote tail")
	}
}

func TestSetChildRejectsCycle(t *testing.T) {
	a := &Chain{Kind: "_Log", ID: 1}
	b, err := NewChain("_Log", 2, "", a)
	if err != nil {
		t.Fatalf("new chain: %v", err)
	}
	if err := a.SetChild(b); !errors.Is(err, ErrChainCycle) {
		t.Fatalf("want ErrChainCycle, got %v", err)
	}
	if err := a.SetChild(a); !errors.Is(err, ErrChainCycle) {
		t.Fatalf("self link: want ErrChainCycle, got %v", err)
	}
}

func TestTailOfDetectsHandBuiltCycle(t *testing.T) {
	a := &Chain{Kind: "_Log", ID: 1}
	b := &Chain{Kind: "_Log", ID: 2, child: a}
	a.child = b
	if _, err := TailOf(a); !errors.Is(err, ErrChainCycle) {
		t.Fatalf("want ErrChainCycle, got %v", err)
	}
}

func TestTailOfDepthBound(t *testing.T) {
	var cur Value = Int(0)
	for i := 0; i <= MaxChainDepth; i++ {
		cur = &Chain{Kind: "_Log", ID: ObjectID(i), child: cur}
	}
	if _, err := TailOf(cur); !errors.Is(err, ErrChainTooDeep) {
		t.Fatalf("want ErrChainTooDeep, got %v", err)
	}
}

func TestTensorNames(t *testing.T) {
	if got := Float32.TensorName(); got != "Float32Tensor" {
		t.Fatalf("TensorName = %q", got)
	}
	for _, d := range DTypes {
		back, ok := ParseTensorName(d.TensorName())
		if !ok || back != d {
			t.Fatalf("ParseTensorName(%q) = %q %v", d.TensorName(), back, ok)
		}
	}
	if _, ok := ParseTensorName("Variable"); ok {
		t.Fatalf("Variable is not a tensor dtype")
	}
}
