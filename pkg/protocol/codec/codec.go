// Package codec carries tagged trees over the wire. A tagged tree is
// built from nil, bool, numbers, string, []any and map[string]any; every
// codec here turns one into bytes and back.
//
// Decoded numbers keep the representation of their format: JSON yields
// json.Number, CBOR and MessagePack yield sized integers and float64,
// Proto yields float64 for every number.
package codec

import (
	"fmt"
	"strings"
)

// Codec defines a simple interface for marshaling tagged trees.
// Implementations should be deterministic and safe for cross-node exchange.
type Codec interface {
	ContentType() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// Registry maps content types and short names to codecs.
type Registry struct {
	byType map[string]Codec
	byName map[string]Codec
}

// NewRegistry constructs a registry preloaded with the built-in codecs:
// JSON, CBOR, MessagePack and Proto.
func NewRegistry() *Registry {
	r := &Registry{byType: make(map[string]Codec), byName: make(map[string]Codec)}
	r.RegisterAs("json", JSON())
	r.RegisterAs("cbor", MustCBOR())
	r.RegisterAs("msgpack", MsgPack())
	r.RegisterAs("proto", Proto())
	return r
}

// Register adds a codec under its content type.
func (r *Registry) Register(c Codec) { r.byType[c.ContentType()] = c }

// RegisterAs adds a codec under its content type and a short name.
func (r *Registry) RegisterAs(name string, c Codec) {
	r.Register(c)
	r.byName[strings.ToLower(name)] = c
}

// Get returns a codec by content type, or nil.
func (r *Registry) Get(contentType string) Codec { return r.byType[contentType] }

// ByName returns a codec by short name ("json", "cbor", "msgpack",
// "proto") or content type.
func (r *Registry) ByName(name string) (Codec, error) {
	if c, ok := r.byName[strings.ToLower(strings.TrimSpace(name))]; ok {
		return c, nil
	}
	if c := r.Get(name); c != nil {
		return c, nil
	}
	return nil, fmt.Errorf("codec: unknown format %q", name)
}
