package protocol

import (
	"bytes"
	"encoding/json"
	"testing"

	"google.golang.org/protobuf/types/known/structpb"

	"meshgraph/pkg/protocol/codec"
)

func TestEncodeDecodeBodyJSON(t *testing.T) {
	reg := codec.NewRegistry()
	in := map[string]any{"x": 1, "y": "z"}
	b, err := EncodeBody(reg, FormatJSON, in, false)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if b[0] != byte(FormatJSON) {
		t.Fatalf("format prefix mismatch")
	}
	var out map[string]any
	f, err := DecodeBody(reg, b, &out)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if f != FormatJSON {
		t.Fatalf("format mismatch")
	}
	if out["x"] != json.Number("1") {
		t.Fatalf("x = %#v", out["x"])
	}
}

func TestEncodeDecodeBodyCBOR(t *testing.T) {
	reg := codec.NewRegistry()
	buf := bytes.Repeat([]byte{0xAA}, 16)
	in := map[string]any{"buf": buf}
	b, err := EncodeBody(reg, FormatCBOR, in, false)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var out map[string]any
	if _, err := DecodeBody(reg, b, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !bytes.Equal(out["buf"].([]byte), buf) {
		t.Fatalf("buf mismatch")
	}
}

func TestEncodeDecodeBodyProto(t *testing.T) {
	reg := codec.NewRegistry()
	s, err := structpb.NewStruct(map[string]any{"k": "v"})
	if err != nil {
		t.Fatalf("struct: %v", err)
	}
	b, err := EncodeBody(reg, FormatProto, s, false)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var out structpb.Struct
	if _, err := DecodeBody(reg, b, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Fields["k"].GetStringValue() != "v" {
		t.Fatalf("value mismatch")
	}
}

func TestEncodeDecodeBodyCompressed(t *testing.T) {
	in := map[string]any{"obj": []any{"a", "b"}, "mode": "subscribe"}
	b, err := EncodeBody(nil, FormatMsgPack, in, true)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !Compressed(b) {
		t.Fatalf("zstd marker missing")
	}
	var out any
	f, err := DecodeBody(nil, b, &out)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if f != FormatMsgPack {
		t.Fatalf("format = %v", f)
	}
	m := out.(map[string]any)
	if m["mode"] != "subscribe" || len(m["obj"].([]any)) != 2 {
		t.Fatalf("body mismatch: %#v", out)
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{
		"json": FormatJSON, "CBOR": FormatCBOR, "proto": FormatProto,
		"msgpack": FormatMsgPack, ContentJSON: FormatJSON,
	} {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Fatalf("ParseFormat(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Fatalf("expected error")
	}
	if _, err := DecodeBody(nil, []byte{0x7f, 1}, new(any)); err == nil {
		t.Fatalf("expected unknown format error")
	}
}
