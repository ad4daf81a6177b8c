package typereg

import (
	"testing"

	"meshgraph/pkg/graph"
)

func TestWireKeyConvention(t *testing.T) {
	cases := map[Tag]string{
		"tuple":         "__tuple__",
		"slice":         "__slice__",
		"worker":        "__worker__",
		"_Pointer":      "___Pointer__",
		"Float32Tensor": "__Float32Tensor__",
	}
	for tag, want := range cases {
		if got := WireKey(tag); got != want {
			t.Fatalf("WireKey(%q) = %q, want %q", tag, got, want)
		}
	}
	if got := KeyFor(graph.Tuple()); got != "__tuple__" {
		t.Fatalf("KeyFor(tuple) = %q", got)
	}
	if got := KeyFor(graph.NewSlice(1, 2, 3)); got != "__slice__" {
		t.Fatalf("KeyFor(slice) = %q", got)
	}
}

func TestDefaultLookups(t *testing.T) {
	r := Default()
	for _, e := range DefaultEntries() {
		tag, ok := r.TagFor(WireKey(e.Tag))
		if !ok || tag != e.Tag {
			t.Fatalf("TagFor(%q) = %q %v", WireKey(e.Tag), tag, ok)
		}
		if c := r.CategoryOf(e.Tag); c != e.Category {
			t.Fatalf("CategoryOf(%q) = %s, want %s", e.Tag, c, e.Category)
		}
	}
	if _, ok := r.TagFor("name"); ok {
		t.Fatalf("plain key must not resolve")
	}
	if _, ok := r.TagFor("__unknown__"); ok {
		t.Fatalf("unregistered special key must not resolve")
	}
	if c := r.CategoryOf("nope"); c != Other {
		t.Fatalf("unknown tag category = %s", c)
	}
}

func TestNewRejectsDuplicates(t *testing.T) {
	if _, err := New(Entry{Tag: "a", Category: Slice}, Entry{Tag: "a", Category: Other}); err == nil {
		t.Fatalf("duplicate tag should fail")
	}
	if _, err := New(Entry{Tag: " "}); err == nil {
		t.Fatalf("blank tag should fail")
	}
}

func TestExtendKeepsDefaultUntouched(t *testing.T) {
	ext, err := Default().Extend(Entry{Tag: "frozenset", Category: CompoundIterable})
	if err != nil {
		t.Fatalf("extend: %v", err)
	}
	if _, ok := ext.TagFor("__frozenset__"); !ok {
		t.Fatalf("extended registry misses new tag")
	}
	if _, ok := Default().TagFor("__frozenset__"); ok {
		t.Fatalf("default registry must not change")
	}
	if len(ext.Entries()) != len(Default().Entries())+1 {
		t.Fatalf("entry counts: %d vs %d", len(ext.Entries()), len(Default().Entries()))
	}
}
