package protocol

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"slices"
)

// MaxPayload bounds the payload a single frame may announce.
const MaxPayload = 1 << 30

var (
	ErrShortFrame      = errors.New("protocol: short frame")
	ErrPayloadTooLarge = errors.New("protocol: payload too large")
)

// Envelope is one frame: a fixed header followed by PayloadLen bytes.
type Envelope struct {
	Header  Header
	Payload []byte
}

// NewCorrelation generates a random 16-byte id.
func NewCorrelation() (out [16]byte, err error) {
	_, err = io.ReadFull(rand.Reader, out[:])
	return
}

func (e *Envelope) HasFlag(flag uint32) bool { return e.Header.Flags&flag != 0 }

func (e *Envelope) SetFlag(flag uint32, on bool) {
	if on {
		e.Header.Flags |= flag
		return
	}
	e.Header.Flags &^= flag
}

func (e *Envelope) header() ([]byte, error) {
	if len(e.Payload) > MaxPayload {
		return nil, fmt.Errorf("%w: %d", ErrPayloadTooLarge, len(e.Payload))
	}
	e.Header.PayloadLen = uint32(len(e.Payload))
	return e.Header.MarshalBinary()
}

// WriteTo writes the frame to w. PayloadLen is taken from Payload.
func (e *Envelope) WriteTo(w io.Writer) (int64, error) {
	hb, err := e.header()
	if err != nil {
		return 0, err
	}
	var n int64
	for _, part := range [][]byte{hb, e.Payload} {
		m, err := w.Write(part)
		n += int64(m)
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

// ReadFrom reads exactly one frame from r.
func (e *Envelope) ReadFrom(r io.Reader) (int64, error) {
	var hb [headerSize]byte
	if _, err := io.ReadFull(r, hb[:]); err != nil {
		return 0, err
	}
	if err := e.Header.UnmarshalBinary(hb[:]); err != nil {
		return headerSize, err
	}
	size := int(e.Header.PayloadLen)
	if size > MaxPayload {
		return headerSize, fmt.Errorf("%w: %d", ErrPayloadTooLarge, size)
	}
	e.Payload = nil
	if size > 0 {
		e.Payload = make([]byte, size)
		if _, err := io.ReadFull(r, e.Payload); err != nil {
			return headerSize, err
		}
	}
	return int64(headerSize + size), nil
}

// EncodeFrame returns the frame as one byte slice.
func (e *Envelope) EncodeFrame() ([]byte, error) {
	hb, err := e.header()
	if err != nil {
		return nil, err
	}
	return append(hb, e.Payload...), nil
}

// DecodeFrame parses the frame at the start of buf. Trailing bytes are
// ignored; the payload is copied.
func (e *Envelope) DecodeFrame(buf []byte) error {
	if len(buf) < headerSize {
		return ErrShortFrame
	}
	if err := e.Header.UnmarshalBinary(buf[:headerSize]); err != nil {
		return err
	}
	end := headerSize + int(e.Header.PayloadLen)
	if end > len(buf) {
		return fmt.Errorf("%w: need %d bytes, have %d", ErrShortFrame, end, len(buf))
	}
	e.Payload = append(e.Payload[:0], buf[headerSize:end]...)
	return nil
}

// Fragments splits the payload into frames of at most chunk bytes. A
// payload that fits is returned as the single unmodified envelope.
func (e *Envelope) Fragments(chunk int) ([]Envelope, error) {
	if chunk <= 0 {
		return nil, fmt.Errorf("invalid chunk size: %d", chunk)
	}
	total := (len(e.Payload) + chunk - 1) / chunk
	if total <= 1 {
		return []Envelope{*e}, nil
	}
	if total > 1<<16-1 {
		return nil, fmt.Errorf("payload of %d bytes needs %d fragments", len(e.Payload), total)
	}
	out := make([]Envelope, 0, total)
	for part := range slices.Chunk(e.Payload, chunk) {
		f := Envelope{Header: e.Header, Payload: slices.Clone(part)}
		f.Header.FragIndex = uint16(len(out))
		f.Header.FragTotal = uint16(total)
		f.Header.PayloadLen = uint32(len(part))
		f.SetFlag(FlagFragment, true)
		f.SetFlag(FlagLastFrag, len(out) == total-1)
		out = append(out, f)
	}
	return out, nil
}

// Reassemble merges fragments into a single payload. Fragments may
// arrive in any order; a missing or repeated index is an error.
func Reassemble(frags []Envelope) (Envelope, error) {
	if len(frags) == 0 {
		return Envelope{}, fmt.Errorf("no fragments")
	}
	frags = slices.Clone(frags)
	slices.SortFunc(frags, func(a, b Envelope) int {
		return int(a.Header.FragIndex) - int(b.Header.FragIndex)
	})
	size := 0
	for i, f := range frags {
		if int(f.Header.FragIndex) != i || (f.Header.FragTotal != 0 && int(f.Header.FragTotal) != len(frags)) {
			return Envelope{}, fmt.Errorf("fragment %d/%d out of sequence", f.Header.FragIndex, f.Header.FragTotal)
		}
		size += len(f.Payload)
	}
	whole := Envelope{Header: frags[0].Header, Payload: make([]byte, 0, size)}
	for _, f := range frags {
		whole.Payload = append(whole.Payload, f.Payload...)
	}
	whole.SetFlag(FlagFragment|FlagLastFrag, false)
	whole.Header.FragIndex, whole.Header.FragTotal = 0, 0
	whole.Header.PayloadLen = uint32(size)
	return whole, nil
}
