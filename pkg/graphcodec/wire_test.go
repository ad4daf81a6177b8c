package graphcodec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meshgraph/pkg/graph"
	"meshgraph/pkg/protocol/codec"
)

func TestWireFormatsRoundTrip(t *testing.T) {
	v := graph.Dict{
		"plain": plainGraph(),
		"pair":  graph.Tuple(graph.Int(-4), graph.Text("b")),
		"cut":   graph.NewSlice(1, 10, 2),
		"whole": graph.List{graph.Float(2), graph.Float(0), graph.Float(1e21), graph.Int(2)},
	}
	msg, _, err := Encode(v, false, Acquire)
	require.NoError(t, err)

	for _, c := range []codec.Codec{codec.JSON(), codec.MustCBOR(), codec.MsgPack(), codec.Zstd(codec.JSON())} {
		t.Run(c.ContentType(), func(t *testing.T) {
			data, err := c.Marshal(msg.Map())
			require.NoError(t, err)
			got, mode, err := NewDecoder("b", nil).DecodeBytes(data, c)
			require.NoError(t, err)
			assert.Equal(t, Acquire, mode)
			assert.Equal(t, v, got)
		})
	}
}

// structpb carries every number as a float64.
func TestProtoWireNumbersBecomeFloats(t *testing.T) {
	msg, _, err := Encode(graph.List{graph.Int(3), graph.NewSlice(0, 4, 1)}, false, Acquire)
	require.NoError(t, err)
	data, err := codec.Proto().Marshal(msg.Map())
	require.NoError(t, err)

	got, _, err := NewDecoder("b", nil).DecodeBytes(data, codec.Proto())
	require.NoError(t, err)
	assert.Equal(t, graph.List{graph.Float(3), graph.NewSlice(0, 4, 1)}, got)
}

func TestDecodeBytesRejectsGarbage(t *testing.T) {
	_, _, err := NewDecoder("b", nil).DecodeBytes([]byte("{"), codec.JSON())
	require.Error(t, err)
}
