// Package node binds the graph codec to a compute node: its object
// store, its directory of other nodes and the frames it exchanges.
package node

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"

	"meshgraph/pkg/graph"
	"meshgraph/pkg/graphcodec"
	"meshgraph/pkg/nodes"
	"meshgraph/pkg/objstore"
	"meshgraph/pkg/protocol"
	"meshgraph/pkg/protocol/codec"
)

const protoVersion = 1

// Body keys of an object frame.
const (
	keyFrom = "from"
	keyTo   = "to"
)

var (
	ErrMisrouted  = errors.New("node: frame addressed to another node")
	ErrBadFrame   = errors.New("node: malformed frame")
	ErrWrongFrame = errors.New("node: unexpected message type")
)

type Options struct {
	ID       graph.NodeID
	Format   protocol.Format // FormatJSON when unset
	Compress bool
	// Fragment splits payloads larger than this many bytes (0 = never).
	Fragment  int
	Codecs    *codec.Registry
	Store     objstore.Options
	Directory nodes.Options
	Codec     []graphcodec.Option
	Logger    *zap.Logger
}

// Node owns objects and exchanges encoded graphs with other nodes.
// It is the Resolver and the Registrar of its own decoder.
type Node struct {
	id    graph.NodeID
	opts  Options
	log   *zap.Logger
	store *objstore.Store
	dir   *nodes.Directory
	enc   *graphcodec.Encoder
	dec   *graphcodec.Decoder
	seq   atomic.Uint64
}

func New(o Options) (*Node, error) {
	id := graph.NodeID(strings.TrimSpace(string(o.ID)))
	if id == "" {
		return nil, fmt.Errorf("node: empty id")
	}
	if o.Format == protocol.FormatUnknown {
		o.Format = protocol.FormatJSON
	}
	if o.Codecs == nil {
		o.Codecs = codec.NewRegistry()
	}
	if _, err := protocol.CodecFor(o.Codecs, o.Format); err != nil {
		return nil, fmt.Errorf("node: %w", err)
	}
	if o.Logger == nil {
		o.Logger = zap.L()
	}
	n := &Node{
		id:    id,
		opts:  o,
		log:   o.Logger.With(zap.String("node", string(id))),
		store: objstore.New(id, o.Store),
		dir:   nodes.New(id, o.Directory),
	}
	copts := append([]graphcodec.Option{graphcodec.WithLogger(n.log.Named("graphcodec"))}, o.Codec...)
	n.enc = graphcodec.NewEncoder(copts...)
	n.dec = graphcodec.NewDecoder(id, n, copts...)
	return n, nil
}

func (n *Node) Close() {
	n.store.Close()
	n.dir.Close()
}

func (n *Node) ID() graph.NodeID             { return n.id }
func (n *Node) Store() *objstore.Store       { return n.store }
func (n *Node) Directory() *nodes.Directory  { return n.dir }
func (n *Node) Ref() graph.NodeRef           { return graph.NodeRef{ID: n.id} }
func (n *Node) Encoder() *graphcodec.Encoder { return n.enc }
func (n *Node) Decoder() *graphcodec.Decoder { return n.dec }

// Put stores v under a fresh local id.
func (n *Node) Put(v graph.Identified) (graph.ObjectID, error) { return n.store.Put(v) }

func (n *Node) LookupObject(node graph.NodeID, id graph.ObjectID) (graph.Value, error) {
	return n.store.Lookup(node, id)
}

func (n *Node) LookupNode(id graph.NodeID) (graph.NodeRef, error) { return n.dir.Lookup(id) }

func (n *Node) RegisterObject(v graph.Identified) error { return n.store.RegisterObject(v) }

// Delivery is a graph received from another node.
type Delivery struct {
	From   graph.NodeID
	Value  graph.Value
	Mode   graphcodec.Mode
	Refs   int
	Header protocol.Header
}

// Envelope encodes v for node to. The remote references found in v are
// returned and counted in the header.
func (n *Node) Envelope(to graph.NodeID, v graph.Value, policy graphcodec.Mode) (protocol.Envelope, []graph.Remote, error) {
	msg, refs, err := n.enc.Encode(v, true, policy)
	if err != nil {
		return protocol.Envelope{}, nil, err
	}
	body := msg.Nest(map[string]any{keyFrom: string(n.id), keyTo: string(to)})
	h := protocol.Header{
		Version:  protoVersion,
		Type:     protocol.MsgObject,
		Mode:     uint8(policy),
		Source:   protocol.NodeKey(string(n.id)),
		Dest:     protocol.NodeKey(string(to)),
		Seq:      n.seq.Add(1),
		RefCount: uint32(len(refs)),
	}
	e, err := protocol.NewEnvelopeWithBody(h, n.opts.Format, body, n.opts.Compress, n.opts.Codecs)
	if err != nil {
		return protocol.Envelope{}, nil, fmt.Errorf("node: encode body: %w", err)
	}
	e.SetFlag(protocol.FlagRefs, len(refs) > 0)
	n.dir.RecordOut(to, len(e.Payload))
	n.log.Debug("graph encoded", zap.String("to", string(to)), zap.Stringer("mode", policy), zap.Int("refs", len(refs)), zap.Int("bytes", len(e.Payload)))
	return e, refs, nil
}

// Send encodes v for node to as a single frame.
func (n *Node) Send(to graph.NodeID, v graph.Value, policy graphcodec.Mode) ([]byte, []graph.Remote, error) {
	e, refs, err := n.Envelope(to, v, policy)
	if err != nil {
		return nil, nil, err
	}
	frame, err := e.EncodeFrame()
	if err != nil {
		return nil, nil, err
	}
	return frame, refs, nil
}

// Receive decodes a frame produced by Send.
func (n *Node) Receive(frame []byte) (Delivery, error) {
	var e protocol.Envelope
	if err := e.DecodeFrame(frame); err != nil {
		return Delivery{}, fmt.Errorf("%w: %v", ErrBadFrame, err)
	}
	return n.ReceiveEnvelope(&e)
}

// ReceiveEnvelope rebuilds the graph carried by e on this node. The
// sender is added to the directory before decoding so that handles
// pointing back at it resolve.
func (n *Node) ReceiveEnvelope(e *protocol.Envelope) (Delivery, error) {
	if e.Header.Type != protocol.MsgObject && e.Header.Type != protocol.MsgObjectReply {
		return Delivery{}, fmt.Errorf("%w: %d", ErrWrongFrame, e.Header.Type)
	}
	if e.Header.Dest != 0 && e.Header.Dest != protocol.NodeKey(string(n.id)) {
		return Delivery{}, ErrMisrouted
	}
	var tree any
	if _, err := protocol.DecodeEnvelopeBody(e, &tree, n.opts.Codecs); err != nil {
		return Delivery{}, fmt.Errorf("%w: %v", ErrBadFrame, err)
	}
	outer, ok := tree.(map[string]any)
	if !ok {
		return Delivery{}, fmt.Errorf("%w: body is %T", ErrBadFrame, tree)
	}
	from, _ := outer[keyFrom].(string)
	if from == "" {
		return Delivery{}, fmt.Errorf("%w: missing sender", ErrBadFrame)
	}
	if e.Header.Source != 0 && e.Header.Source != protocol.NodeKey(from) {
		return Delivery{}, fmt.Errorf("%w: sender %q does not match header", ErrBadFrame, from)
	}
	n.dir.RecordIn(graph.NodeID(from), len(e.Payload))

	v, mode, err := n.dec.DecodeMessage(tree)
	if err != nil {
		n.log.Warn("graph decode failed", zap.String("from", from), zap.Error(err))
		return Delivery{}, err
	}
	if d, ok := v.(graph.Dict); ok {
		if inner, ok := d["message"]; ok {
			v = inner
		}
	}
	n.log.Debug("graph received", zap.String("from", from), zap.Stringer("mode", mode), zap.Uint32("refs", e.Header.RefCount))
	return Delivery{
		From:   graph.NodeID(from),
		Value:  v,
		Mode:   mode,
		Refs:   int(e.Header.RefCount),
		Header: e.Header,
	}, nil
}
