package protocol

import (
	"fmt"
	"strings"

	"meshgraph/pkg/protocol/codec"
)

// Format is a compact on-wire indicator of payload encoding.
// It is carried as the first byte of Envelope.Payload. The high bit
// marks a zstd-compressed body.
type Format uint8

const (
	FormatUnknown Format = iota
	FormatJSON
	FormatCBOR
	FormatProto
	FormatMsgPack
)

const formatZstd = 0x80

func (f Format) String() string {
	switch f {
	case FormatJSON:
		return ContentJSON
	case FormatCBOR:
		return ContentCBOR
	case FormatProto:
		return ContentProto
	case FormatMsgPack:
		return ContentMsgPack
	default:
		return ContentUnknown
	}
}

// ParseFormat accepts a short name ("json", "cbor", "proto",
// "msgpack") or a content type.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json", ContentJSON:
		return FormatJSON, nil
	case "cbor", ContentCBOR:
		return FormatCBOR, nil
	case "proto", "protobuf", ContentProto:
		return FormatProto, nil
	case "msgpack", ContentMsgPack:
		return FormatMsgPack, nil
	}
	return FormatUnknown, fmt.Errorf("unknown format: %q", s)
}

// CodecFor returns a codec instance for a given format.
func CodecFor(r *codec.Registry, f Format) (codec.Codec, error) {
	if f == FormatUnknown || f.String() == ContentUnknown {
		return nil, fmt.Errorf("unknown format: %d", f)
	}
	if r != nil {
		if c := r.Get(f.String()); c != nil {
			return c, nil
		}
	}
	switch f {
	case FormatJSON:
		return codec.JSON(), nil
	case FormatCBOR:
		return codec.CBOR()
	case FormatProto:
		return codec.Proto(), nil
	default:
		return codec.MsgPack(), nil
	}
}

// EncodeBody serializes v using the codec for f and prefixes the payload
// with a single format byte. With compress the body is zstd-compressed.
func EncodeBody(r *codec.Registry, f Format, v any, compress bool) ([]byte, error) {
	c, err := CodecFor(r, f)
	if err != nil {
		return nil, err
	}
	prefix := byte(f)
	if compress {
		c = codec.Zstd(c)
		prefix |= formatZstd
	}
	b, err := c.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 1+len(b))
	out[0] = prefix
	copy(out[1:], b)
	return out, nil
}

// DecodeBody decodes payload produced by EncodeBody into v.
func DecodeBody(r *codec.Registry, payload []byte, v any) (Format, error) {
	if len(payload) == 0 {
		return FormatUnknown, fmt.Errorf("empty payload")
	}
	f := Format(payload[0] &^ formatZstd)
	c, err := CodecFor(r, f)
	if err != nil {
		return f, err
	}
	if payload[0]&formatZstd != 0 {
		c = codec.Zstd(c)
	}
	if err := c.Unmarshal(payload[1:], v); err != nil {
		return f, err
	}
	return f, nil
}

// Compressed reports whether an encoded body carries the zstd marker.
func Compressed(payload []byte) bool {
	return len(payload) > 0 && payload[0]&formatZstd != 0
}
