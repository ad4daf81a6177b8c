package objstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meshgraph/pkg/graph"
)

func TestPutAssignsIncreasingIDs(t *testing.T) {
	s := New("a", Options{})
	defer s.Close()

	x := &graph.Array{DType: "float32", Data: []float64{1, 2}}
	y := &graph.Ref{Location: "b", IDAtLocation: 9}
	idx, err := s.Put(x)
	require.NoError(t, err)
	idy, err := s.Put(y)
	require.NoError(t, err)

	assert.Equal(t, graph.ObjectID(1), idx)
	assert.Equal(t, graph.ObjectID(2), idy)
	assert.Equal(t, idx, x.ID)
	assert.Equal(t, []graph.ObjectID{1, 2}, s.IDs())
	assert.Equal(t, 2, s.Len())

	got, err := s.Get(idx)
	require.NoError(t, err)
	assert.Same(t, x, got)
}

func TestLookupMissing(t *testing.T) {
	s := New("a", Options{})
	defer s.Close()

	_, err := s.Get(42)
	require.ErrorIs(t, err, graph.ErrObjectNotFound)

	id, err := s.Put(&graph.Ref{})
	require.NoError(t, err)
	_, err = s.Lookup("b", id)
	require.ErrorIs(t, err, graph.ErrObjectNotFound)
	v, err := s.Lookup("a", id)
	require.NoError(t, err)
	assert.IsType(t, &graph.Ref{}, v)

	assert.True(t, s.Delete(id))
	assert.False(t, s.Delete(id))
	_, err = s.Lookup("a", id)
	require.ErrorIs(t, err, graph.ErrObjectNotFound)
}

func TestByteLimit(t *testing.T) {
	s := New("a", Options{MaxBytes: 32})
	defer s.Close()

	_, err := s.Put(&graph.Array{Data: make([]float64, 3)})
	require.NoError(t, err)
	rejected := &graph.Array{ID: 7, Data: make([]float64, 3)}
	_, err = s.Put(rejected)
	require.ErrorIs(t, err, ErrFull)
	assert.EqualValues(t, 24, s.Stats().Bytes)
	assert.Equal(t, graph.ObjectID(7), rejected.ID)
}

func TestObjectTTL(t *testing.T) {
	s := New("a", Options{TTL: 40 * time.Millisecond})
	defer s.Close()

	id, err := s.Put(&graph.Ref{})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(s.IDs()) == 0 }, time.Second, 10*time.Millisecond)
	_, err = s.Get(id)
	require.ErrorIs(t, err, graph.ErrObjectNotFound)
}
