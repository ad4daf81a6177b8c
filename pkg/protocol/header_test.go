package protocol

import (
	"testing"
)

func TestHeaderRoundtrip(t *testing.T) {
	var h Header
	h.Version = 1
	h.Type = MsgObjectReply
	h.Flags = FlagCompressed | FlagAck
	h.Mode = 1
	h.PayloadLen = 1234
	for i := 0; i < len(h.Correlation); i++ {
		h.Correlation[i] = byte(i)
	}
	h.Source = 0x1122334455667788
	h.Dest = 0x8877665544332211
	h.Seq = 0x0102030405060708
	h.RefCount = 42
	h.FragIndex = 2
	h.FragTotal = 5

	b, err := h.MarshalBinary()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if len(b) != headerSize {
		t.Fatalf("header size = %d", len(b))
	}

	var h2 Header
	if err := h2.UnmarshalBinary(b); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if h2 != h {
		t.Fatalf("headers differ: %#v vs %#v", h2, h)
	}

	b[0] = 0
	if err := h2.UnmarshalBinary(b); err == nil {
		t.Fatalf("expected bad magic")
	}
}

func TestNodeKeyStable(t *testing.T) {
	if NodeKey("alice") != NodeKey("alice") || NodeKey("alice") == NodeKey("bob") {
		t.Fatalf("node keys should be stable and distinct")
	}
}
