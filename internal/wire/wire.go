// Package wire frames control messages over a net.Conn. CBOR values are
// self-delimiting, so messages are simply written back to back.
package wire

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/fxamacker/cbor/v2"

	"go.klb.dev/clipbridge/internal/codec"
)

const (
	// MaxMessageSize is the largest single message we will read (16 MiB).
	MaxMessageSize = 16 * 1024 * 1024

	writeDeadline = 5 * time.Second
)

// Conn wraps a net.Conn with CBOR framing.
type Conn struct {
	conn net.Conn
	lr   *io.LimitedReader
	dec  *cbor.Decoder
	enc  *cbor.Encoder
}

// New wraps conn.
func New(conn net.Conn) *Conn {
	lr := &io.LimitedReader{R: bufio.NewReaderSize(conn, 64*1024), N: MaxMessageSize}
	return &Conn{
		conn: conn,
		lr:   lr,
		dec:  codec.NewDecoder(lr),
		enc:  codec.NewEncoder(conn),
	}
}

// SetReadDeadline sets or clears the read deadline.
func (c *Conn) SetReadDeadline(d time.Duration) {
	if d == 0 {
		_ = c.conn.SetReadDeadline(time.Time{})
	} else {
		_ = c.conn.SetReadDeadline(time.Now().Add(d))
	}
}

// Close closes the underlying connection.
func (c *Conn) Close() error { return c.conn.Close() }

// WriteMsg encodes v with a write deadline.
func (c *Conn) WriteMsg(v any) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	defer c.conn.SetWriteDeadline(time.Time{})
	if err := c.enc.Encode(v); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

// ReadMsg decodes the next message into v. Each message may be up to
// MaxMessageSize bytes.
func (c *Conn) ReadMsg(v any) error {
	c.lr.N = MaxMessageSize
	if err := c.dec.Decode(v); err != nil {
		if c.lr.N <= 0 {
			return fmt.Errorf("message too large (over %d bytes)", MaxMessageSize)
		}
		return err
	}
	return nil
}
