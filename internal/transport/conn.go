// Copyright 2015-2021 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package transport

import (
	"context"
	"fmt"
	"net"
	"time"
)

// Conn is a dialed MTProto connection: one Framer's connect header has
// already gone out, and Send/Recv move whole frame payloads end to end.
// internal/authkey and internal/sender are the only callers.
type Conn struct {
	nc net.Conn
	f  Framer
	de *Deframer
}

// Dial opens a TCP connection to address, writes the framer's connect
// header, and returns a Conn ready for Send/Recv.
func Dial(ctx context.Context, address string, f Framer, connectTimeout time.Duration) (*Conn, error) {
	d := net.Dialer{Timeout: connectTimeout}
	nc, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", address, err)
	}
	return NewConn(nc, f)
}

// NewConn wraps an already-established net.Conn (a real TCP socket, or one
// side of a net.Pipe() in tests), writing the framer's connect header
// immediately.
func NewConn(nc net.Conn, f Framer) (*Conn, error) {
	if header := f.ConnectHeader(); len(header) > 0 {
		if _, err := nc.Write(header); err != nil {
			nc.Close()
			return nil, fmt.Errorf("transport: connect header: %w", err)
		}
	}
	return &Conn{nc: nc, f: f, de: NewDeframer(nc, f)}, nil
}

// Send frames and writes one payload.
func (c *Conn) Send(payload []byte) error {
	if err := c.f.WriteFrame(c.nc, payload); err != nil {
		return fmt.Errorf("transport: send: %w", err)
	}
	return nil
}

// Recv blocks for the next complete frame payload.
func (c *Conn) Recv() ([]byte, error) {
	return c.de.ReadFrame()
}

// SetDeadline forwards to the underlying net.Conn, letting a caller bound
// how long Recv can block.
func (c *Conn) SetDeadline(t time.Time) error {
	return c.nc.SetDeadline(t)
}

func (c *Conn) Close() error {
	return c.nc.Close()
}
