package node

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"meshgraph/pkg/graph"
	"meshgraph/pkg/graphcodec"
	"meshgraph/pkg/nodes"
	"meshgraph/pkg/protocol"
	"meshgraph/pkg/protocol/stream"
)

// Hello introduces a node on a freshly opened stream.
type Hello struct {
	Version   uint32            `json:"ver"`
	NodeID    string            `json:"node_id"`
	Addr      string            `json:"addr,omitempty"`
	Labels    map[string]string `json:"labels,omitempty"`
	Nonce     []byte            `json:"nonce"`
	Timestamp int64             `json:"ts_unix_ms"`
}

const maxHelloSkew = 5 * time.Minute

func (n *Node) buildHello(addr string, labels map[string]string) (Hello, error) {
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return Hello{}, err
	}
	return Hello{
		Version:   protoVersion,
		NodeID:    string(n.id),
		Addr:      addr,
		Labels:    labels,
		Nonce:     nonce,
		Timestamp: time.Now().UnixMilli(),
	}, nil
}

func verifyHello(h Hello) error {
	if h.Version != protoVersion {
		return fmt.Errorf("unsupported hello version: %d", h.Version)
	}
	if h.NodeID == "" {
		return errors.New("hello without node id")
	}
	if len(h.Nonce) == 0 {
		return errors.New("hello without nonce")
	}
	skew := time.Duration(time.Now().UnixMilli()-h.Timestamp) * time.Millisecond
	if skew > maxHelloSkew || skew < -maxHelloSkew {
		return errors.New("hello timestamp out of bounds")
	}
	return nil
}

// Handshake exchanges Hello frames over c and records the peer in the
// directory. Both sides call it; it returns the peer's id.
func (n *Node) Handshake(c *stream.Conn, addr string, labels map[string]string) (graph.NodeID, error) {
	h, err := n.buildHello(addr, labels)
	if err != nil {
		return "", err
	}
	out, err := protocol.NewEnvelopeWithBody(protocol.Header{
		Version: protoVersion,
		Type:    protocol.MsgControl,
		Source:  protocol.NodeKey(string(n.id)),
	}, protocol.FormatJSON, h, false, n.opts.Codecs)
	if err != nil {
		return "", err
	}
	errc := make(chan error, 1)
	go func() { errc <- c.Send(&out) }()

	var in protocol.Envelope
	if err := c.Recv(&in); err != nil {
		return "", fmt.Errorf("node: recv hello: %w", err)
	}
	if err := <-errc; err != nil {
		return "", fmt.Errorf("node: send hello: %w", err)
	}
	if in.Header.Type != protocol.MsgControl {
		return "", fmt.Errorf("%w: expected hello, got %d", ErrWrongFrame, in.Header.Type)
	}
	var peer Hello
	if _, err := protocol.DecodeEnvelopeBody(&in, &peer, n.opts.Codecs); err != nil {
		return "", fmt.Errorf("%w: hello: %v", ErrBadFrame, err)
	}
	if err := verifyHello(peer); err != nil {
		n.log.Warn("hello rejected", zap.String("peer", peer.NodeID), zap.Error(err))
		return "", err
	}
	if in.Header.Source != protocol.NodeKey(peer.NodeID) {
		return "", fmt.Errorf("%w: hello source mismatch", ErrBadFrame)
	}
	pid := graph.NodeID(peer.NodeID)
	if err := n.dir.Upsert(nodes.Record{ID: pid, Addr: peer.Addr, Labels: peer.Labels, LastSeenUnixMs: peer.Timestamp}); err != nil {
		return "", err
	}
	n.log.Info("hello accepted", zap.String("peer", peer.NodeID), zap.String("addr", peer.Addr))
	return pid, nil
}

// Transmit encodes v for node to and writes it to c, fragmented when
// Options.Fragment is set.
func (n *Node) Transmit(c *stream.Conn, to graph.NodeID, v graph.Value, policy graphcodec.Mode) ([]graph.Remote, error) {
	e, refs, err := n.Envelope(to, v, policy)
	if err != nil {
		return nil, err
	}
	frags := []protocol.Envelope{e}
	if n.opts.Fragment > 0 {
		if frags, err = e.Fragments(n.opts.Fragment); err != nil {
			return nil, err
		}
	}
	for i := range frags {
		if err := c.Send(&frags[i]); err != nil {
			return nil, fmt.Errorf("node: send to %q: %w", to, err)
		}
	}
	return refs, nil
}

// Serve reads object frames from c until ctx is done or the stream
// ends, calling handle for every delivery. A frame that fails to
// decode is logged and skipped.
func (n *Node) Serve(ctx context.Context, c *stream.Conn, handle func(Delivery)) error {
	stop := context.AfterFunc(ctx, func() { _ = c.Close() })
	defer stop()
	var pending []protocol.Envelope
	for {
		var e protocol.Envelope
		if err := c.Recv(&e); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
				return nil
			}
			return err
		}
		switch e.Header.Type {
		case protocol.MsgHeartbeat:
			continue
		case protocol.MsgControl:
			n.log.Debug("control frame ignored", zap.Uint64("seq", e.Header.Seq))
			continue
		}
		if e.HasFlag(protocol.FlagFragment) {
			pending = append(pending, e)
			if !e.HasFlag(protocol.FlagLastFrag) {
				continue
			}
			whole, err := protocol.Reassemble(pending)
			pending = nil
			if err != nil {
				n.log.Warn("reassemble failed", zap.Error(err))
				continue
			}
			e = whole
		}
		d, err := n.ReceiveEnvelope(&e)
		if err != nil {
			n.log.Warn("frame dropped", zap.Uint64("seq", e.Header.Seq), zap.Error(err))
			continue
		}
		handle(d)
	}
}
