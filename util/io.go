package util

import (
	"errors"
	"io"
	"net"
	"sync/atomic"
	"syscall"
)

// DefaultBufSize is the standard buffer size for connection I/O (32 KiB).
const DefaultBufSize = 32 * 1024

// CountingConn wraps a net.Conn and counts the bytes moved in each
// direction.  The optional callbacks fire after every successful
// read/write so callers can feed a metrics collector.
type CountingConn struct {
	net.Conn

	in  atomic.Int64
	out atomic.Int64

	OnRead  func(n int64)
	OnWrite func(n int64)
}

// NewCountingConn wraps c.
func NewCountingConn(c net.Conn, onRead, onWrite func(n int64)) *CountingConn {
	return &CountingConn{Conn: c, OnRead: onRead, OnWrite: onWrite}
}

func (c *CountingConn) Read(p []byte) (int, error) {
	n, err := c.Conn.Read(p)
	if n > 0 {
		c.in.Add(int64(n))
		if c.OnRead != nil {
			c.OnRead(int64(n))
		}
	}
	return n, err
}

func (c *CountingConn) Write(p []byte) (int, error) {
	n, err := c.Conn.Write(p)
	if n > 0 {
		c.out.Add(int64(n))
		if c.OnWrite != nil {
			c.OnWrite(int64(n))
		}
	}
	return n, err
}

// BytesIn returns the number of bytes read so far.
func (c *CountingConn) BytesIn() int64 { return c.in.Load() }

// BytesOut returns the number of bytes written so far.
func (c *CountingConn) BytesOut() int64 { return c.out.Load() }

// IsHarmless returns true for errors that are expected when a peer goes
// away or a connection is closed during shutdown.
func IsHarmless(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) {
		return true
	}
	// net.OpError wrapping "use of closed network connection"
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return errors.Is(opErr.Err, net.ErrClosed)
	}
	return false
}
