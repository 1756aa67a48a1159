// Copyright 2015-2021 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package transport

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// Intermediate is the MTProto intermediate framing: a 4-byte little-endian
// payload length, then the payload. Connect header is 0xEEEEEEEE.
type Intermediate struct{}

func (Intermediate) ConnectHeader() []byte { return []byte{0xEE, 0xEE, 0xEE, 0xEE} }

func (Intermediate) WriteFrame(w io.Writer, payload []byte) error {
	if err := checkPayload(payload); err != nil {
		return err
	}
	var header [4]byte
	binary.LittleEndian.PutUint32(header[:], uint32(len(payload)))
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("transport: intermediate write header: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("transport: intermediate write payload: %w", err)
	}
	return nil
}

func (Intermediate) TryDecode(buf *bytes.Buffer) ([]byte, bool, error) {
	b := buf.Bytes()
	if len(b) < 4 {
		return nil, false, nil
	}
	length := int32(binary.LittleEndian.Uint32(b[:4]))
	if length < 0 {
		return nil, false, fmt.Errorf("transport: negative intermediate frame length %d", length)
	}
	if length%4 != 0 {
		return nil, false, fmt.Errorf("transport: intermediate payload length %d not a multiple of 4", length)
	}
	total := 4 + int(length)
	if int64(total) >= maxPayloadBytes {
		return nil, false, fmt.Errorf("transport: intermediate frame length %d exceeds maximum", total)
	}
	if len(b) < total {
		return nil, false, nil
	}
	payload := make([]byte, length)
	copy(payload, b[4:total])
	buf.Next(total)
	return payload, true, nil
}
