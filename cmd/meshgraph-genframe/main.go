// meshgraph-genframe writes sample object frames, one per wire format,
// for inspecting the frame layout or feeding decoders in other tools.
package main

import (
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"

	"meshgraph/pkg/graph"
	"meshgraph/pkg/graphcodec"
	"meshgraph/pkg/node"
	"meshgraph/pkg/protocol"
)

func main() {
	outDir := pflag.String("out", "testdata/frame", "output directory for binary frames")
	chunk := pflag.Int("chunk", 32, "fragment size for the fragmented sample")
	pflag.Parse()
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Fatal(err)
	}

	for _, f := range []protocol.Format{protocol.FormatJSON, protocol.FormatCBOR, protocol.FormatMsgPack, protocol.FormatProto} {
		for _, compress := range []bool{false, true} {
			n := mustNode(f, compress)
			frame, _, err := n.Send("receiver", sample(n), graphcodec.Acquire)
			if err != nil {
				log.Fatal(err)
			}
			name := "frame_" + shortName(f)
			if compress {
				name += "_zstd"
			}
			writeOut(*outDir, name+".bin", frame)
			n.Close()
		}
	}

	// Subscribe frame: data withheld, reference count set
	n := mustNode(protocol.FormatJSON, false)
	defer n.Close()
	env, _, err := n.Envelope("receiver", sample(n), graphcodec.Subscribe)
	if err != nil {
		log.Fatal(err)
	}
	writeOut(*outDir, "frame_json_subscribe.bin", mustFrame(&env))

	frags, err := env.Fragments(*chunk)
	if err != nil {
		log.Fatal(err)
	}
	for i := range frags {
		writeOut(*outDir, fmt.Sprintf("frame_frag_%02d.bin", i), mustFrame(&frags[i]))
	}

	fmt.Println("Generated frames in", *outDir)
}

func mustNode(f protocol.Format, compress bool) *node.Node {
	n, err := node.New(node.Options{ID: "sender", Format: f, Compress: compress})
	if err != nil {
		log.Fatal(err)
	}
	return n
}

// sample is a small graph: a tensor wrapped in a chain layer, a set,
// a slice and plain data.
func sample(n *node.Node) graph.Value {
	w := &graph.Tensor{DType: graph.Float32, Owner: n.ID(), Shape: []int{2, 2}, Data: []float64{1, 0, 0, 1}}
	if _, err := n.Put(w); err != nil {
		log.Fatal(err)
	}
	return graph.Dict{
		"weights": w,
		"labels":  graph.Set(graph.Text("a"), graph.Text("b")),
		"window":  graph.NewSlice(0, 8, 2),
		"step":    graph.Int(3),
		"worker":  n.Ref(),
	}
}

func shortName(f protocol.Format) string {
	switch f {
	case protocol.FormatCBOR:
		return "cbor"
	case protocol.FormatMsgPack:
		return "msgpack"
	case protocol.FormatProto:
		return "proto"
	}
	return "json"
}

func mustFrame(e *protocol.Envelope) []byte {
	b, err := e.EncodeFrame()
	if err != nil {
		log.Fatal(err)
	}
	return b
}

func writeOut(dir, name string, b []byte) {
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, b, 0o644); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("%-28s %5d bytes  head: %s\n", name, len(b), shortHex(b, 32))
}

func shortHex(b []byte, n int) string {
	if len(b) == 0 {
		return ""
	}
	n = min(n, len(b))
	enc := hex.EncodeToString(b[:n])
	if len(b) > n {
		enc += "..."
	}
	var out []string
	for i := 0; i < len(enc); i += 4 {
		out = append(out, enc[i:min(i+4, len(enc))])
	}
	return strings.Join(out, " ")
}
