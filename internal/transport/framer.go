// Copyright 2015-2021 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

// Package transport frames and deframes raw MTProto packets over a byte
// stream. Two framings are interchangeable, chosen per connection and
// announced by a magic header sent immediately after connect.
package transport

import (
	"bytes"
	"fmt"
	"io"
)

// maxPayloadBytes bounds a single frame's payload; anything at or beyond 2^31
// is rejected outright rather than attempting to allocate it.
const maxPayloadBytes = 1 << 31

// Framer turns packet payloads into wire frames and back. TryDecode operates
// on a buffer the caller accumulates from reads, so a caller that needs to
// interleave framing with other I/O can do so without a second goroutine;
// Deframer below wraps this into the blocking ReadFrame that Conn.Recv (and
// so internal/sender's receive loop) uses.
type Framer interface {
	// ConnectHeader is written once, immediately after TCP connect,
	// announcing which framing the rest of the connection uses.
	ConnectHeader() []byte
	// WriteFrame writes one framed payload. len(payload) must be a
	// multiple of 4.
	WriteFrame(w io.Writer, payload []byte) error
	// TryDecode consumes exactly one complete frame from the head of buf
	// and returns its payload, or returns ok=false without consuming
	// anything if buf doesn't yet hold a full frame. Negative lengths,
	// a payload not a multiple of 4, or a payload at/over the configured
	// maximum are reported as errors, not as ok=false.
	TryDecode(buf *bytes.Buffer) (payload []byte, ok bool, err error)
}

func checkPayload(payload []byte) error {
	if len(payload)%4 != 0 {
		return fmt.Errorf("transport: payload length %d is not a multiple of 4", len(payload))
	}
	if len(payload) >= maxPayloadBytes {
		return fmt.Errorf("transport: payload length %d exceeds maximum", len(payload))
	}
	return nil
}

// Deframer accumulates bytes read from a connection and yields one frame
// payload at a time, regardless of how the underlying reads chunk the
// stream -- the TestDeframerToleratesArbitraryChunkBoundaries property in
// framer_test.go exercises exactly this.
type Deframer struct {
	r   io.Reader
	f   Framer
	buf bytes.Buffer
}

func NewDeframer(r io.Reader, f Framer) *Deframer {
	return &Deframer{r: r, f: f}
}

// ReadFrame blocks until one full frame is available and returns its
// payload.
func (d *Deframer) ReadFrame() ([]byte, error) {
	chunk := make([]byte, 4096)
	for {
		payload, ok, err := d.f.TryDecode(&d.buf)
		if err != nil {
			return nil, err
		}
		if ok {
			return payload, nil
		}
		n, err := d.r.Read(chunk)
		if n > 0 {
			d.buf.Write(chunk[:n])
			continue
		}
		if err != nil {
			if err == io.EOF {
				return nil, fmt.Errorf("transport: connection closed")
			}
			return nil, fmt.Errorf("transport: read: %w", err)
		}
	}
}

// IsQuickAck reports whether a decoded frame payload is a 4-byte quick-ack
// rather than a real message body. The receive loop (internal/sender) uses
// this to decide whether to discard the frame silently, bounded by its own
// configured tolerance.
func IsQuickAck(payload []byte) bool {
	return len(payload) == 4
}
