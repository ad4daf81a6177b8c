package stream

import (
	"bytes"
	"net"
	"testing"

	"meshgraph/pkg/protocol"
)

func TestSendRecvOverPipe(t *testing.T) {
	a, b := net.Pipe()
	ca, cb := NewNetConn(a), NewNetConn(b)
	defer ca.Close()
	defer cb.Close()

	out := protocol.Envelope{Header: protocol.Header{Version: 1, Type: protocol.MsgObject, Seq: 9}}
	out.Payload = []byte("graph")

	errc := make(chan error, 1)
	go func() { errc <- ca.Send(&out) }()

	var in protocol.Envelope
	if err := cb.Recv(&in); err != nil {
		t.Fatalf("recv: %v", err)
	}
	if err := <-errc; err != nil {
		t.Fatalf("send: %v", err)
	}
	if in.Header.Seq != 9 || in.Header.Type != protocol.MsgObject || !bytes.Equal(in.Payload, out.Payload) {
		t.Fatalf("frame mismatch: %#v", in)
	}
}
