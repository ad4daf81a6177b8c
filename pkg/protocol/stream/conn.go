// Package stream sends and receives protocol frames over a byte stream.
package stream

import (
	"bufio"
	"io"
	"net"
	"sync"

	"meshgraph/pkg/protocol"
)

// Conn wraps an io.ReadWriter to send/receive protocol.Envelope frames.
// Send and Recv may be called from different goroutines.
type Conn struct {
	rw io.ReadWriter
	br *bufio.Reader
	bw *bufio.Writer

	wmu sync.Mutex
	rmu sync.Mutex
}

func New(rw io.ReadWriter) *Conn {
	return &Conn{rw: rw, br: bufio.NewReader(rw), bw: bufio.NewWriter(rw)}
}

func NewNetConn(c net.Conn) *Conn { return New(c) }

func (c *Conn) Send(e *protocol.Envelope) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if _, err := e.WriteTo(c.bw); err != nil {
		return err
	}
	return c.bw.Flush()
}

func (c *Conn) Recv(e *protocol.Envelope) error {
	c.rmu.Lock()
	defer c.rmu.Unlock()
	_, err := e.ReadFrom(c.br)
	return err
}

// Close closes the underlying stream when it is an io.Closer.
func (c *Conn) Close() error {
	if cl, ok := c.rw.(io.Closer); ok {
		return cl.Close()
	}
	return nil
}
