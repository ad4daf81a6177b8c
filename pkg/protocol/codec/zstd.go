package codec

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// zstdEncoder and zstdDecoder are shared by every compressed codec.
// EncodeAll and DecodeAll are safe for concurrent use.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("codec: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("codec: zstd decoder initialization failed: " + err.Error())
	}
}

type zstdCodec struct {
	inner Codec
}

// Zstd wraps inner so that its output is zstd-compressed.
// Content-Type: <inner>+zstd
func Zstd(inner Codec) Codec { return zstdCodec{inner: inner} }

func (c zstdCodec) ContentType() string { return c.inner.ContentType() + "+zstd" }

func (c zstdCodec) Marshal(v any) ([]byte, error) {
	b, err := c.inner.Marshal(v)
	if err != nil {
		return nil, err
	}
	return zstdEncoder.EncodeAll(b, nil), nil
}

func (c zstdCodec) Unmarshal(data []byte, v any) error {
	b, err := zstdDecoder.DecodeAll(data, nil)
	if err != nil {
		return fmt.Errorf("zstd decompress: %w", err)
	}
	return c.inner.Unmarshal(b, v)
}
