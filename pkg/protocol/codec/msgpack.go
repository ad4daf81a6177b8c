package codec

import (
	"bytes"

	"github.com/vmihailenco/msgpack/v5"
)

type msgpackCodec struct{}

// MsgPack returns a MessagePack codec. Map keys are sorted on encode.
// Content-Type: application/msgpack
func MsgPack() Codec { return msgpackCodec{} }

func (msgpackCodec) ContentType() string { return "application/msgpack" }

func (msgpackCodec) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (msgpackCodec) Unmarshal(data []byte, v any) error {
	return msgpack.Unmarshal(data, v)
}
