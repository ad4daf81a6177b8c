package nodes

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meshgraph/pkg/graph"
)

func TestLookupKnownAndUnknown(t *testing.T) {
	d := New("a", Options{})
	defer d.Close()

	ref, err := d.Lookup("a")
	require.NoError(t, err)
	assert.Equal(t, graph.NodeRef{ID: "a"}, ref)

	_, err = d.Lookup("b")
	require.ErrorIs(t, err, graph.ErrNodeNotFound)

	require.NoError(t, d.Upsert(Record{ID: " b ", Addr: "pipe", Labels: map[string]string{"zone": "x"}}))
	ref, err = d.Lookup("b")
	require.NoError(t, err)
	assert.Equal(t, graph.NodeID("b"), ref.ID)

	require.Error(t, d.Upsert(Record{ID: "  "}))
}

func TestTrafficCountersSurviveUpsert(t *testing.T) {
	d := New("a", Options{})
	defer d.Close()

	d.RecordIn("b", 10)
	d.RecordIn("b", 5)
	d.RecordOut("b", 7)
	require.NoError(t, d.Upsert(Record{ID: "b", Addr: "tcp://b"}))

	r, ok := d.Get("b")
	require.True(t, ok)
	assert.Equal(t, "tcp://b", r.Addr)
	assert.EqualValues(t, 2, r.MsgsIn)
	assert.EqualValues(t, 15, r.BytesIn)
	assert.EqualValues(t, 1, r.MsgsOut)
	assert.EqualValues(t, 7, r.BytesOut)
}

func TestListIsSortedAndCopied(t *testing.T) {
	d := New("b", Options{})
	defer d.Close()

	require.NoError(t, d.Upsert(Record{ID: "c", Labels: map[string]string{"k": "v"}}))
	require.NoError(t, d.Upsert(Record{ID: "a"}))

	list := d.List()
	require.Len(t, list, 3)
	assert.Equal(t, []graph.NodeID{"a", "b", "c"}, []graph.NodeID{list[0].ID, list[1].ID, list[2].ID})

	list[2].Labels["k"] = "changed"
	r, _ := d.Get("c")
	assert.Equal(t, "v", r.Labels["k"])
}

func TestExpiryKeepsSelf(t *testing.T) {
	d := New("a", Options{TTL: 30 * time.Millisecond})
	defer d.Close()

	d.Touch("b")
	_, err := d.Lookup("b")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, err := d.Lookup("b")
		return err != nil
	}, time.Second, 10*time.Millisecond)
	_, err = d.Lookup("a")
	require.NoError(t, err)
	assert.False(t, d.Delete("a"))
}
