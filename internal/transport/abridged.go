// Copyright 2015-2021 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package transport

import (
	"bytes"
	"fmt"
	"io"
)

// Abridged is the MTProto abridged framing: a 1-byte word count when under
// 127 words, else a 0x7F sentinel followed by a 3-byte little-endian word
// count. Connect header is a single 0xEF byte.
type Abridged struct{}

func (Abridged) ConnectHeader() []byte { return []byte{0xEF} }

func (Abridged) WriteFrame(w io.Writer, payload []byte) error {
	if err := checkPayload(payload); err != nil {
		return err
	}
	words := len(payload) / 4
	var header []byte
	if words < 127 {
		header = []byte{byte(words)}
	} else {
		if words >= 1<<24 {
			return fmt.Errorf("transport: abridged payload too large (%d words)", words)
		}
		header = []byte{0x7F, byte(words), byte(words >> 8), byte(words >> 16)}
	}
	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("transport: abridged write header: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("transport: abridged write payload: %w", err)
	}
	return nil
}

func (Abridged) TryDecode(buf *bytes.Buffer) ([]byte, bool, error) {
	b := buf.Bytes()
	if len(b) < 1 {
		return nil, false, nil
	}
	var words, headerLen int
	if b[0] == 0x7F {
		if len(b) < 4 {
			return nil, false, nil
		}
		words = int(b[1]) | int(b[2])<<8 | int(b[3])<<16
		headerLen = 4
	} else {
		words = int(b[0])
		headerLen = 1
	}
	total := headerLen + words*4
	if total < 0 || total >= maxPayloadBytes {
		return nil, false, fmt.Errorf("transport: abridged frame length %d exceeds maximum", total)
	}
	if len(b) < total {
		return nil, false, nil
	}
	payload := make([]byte, words*4)
	copy(payload, b[headerLen:total])
	buf.Next(total)
	return payload, true, nil
}
