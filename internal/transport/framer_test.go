// Copyright 2015-2021 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package transport

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

// chunkedReader drip-feeds a fixed byte slice in caller-controlled chunk
// sizes, to prove the deframer is agnostic to where TCP happens to split
// reads.
type chunkedReader struct {
	data   []byte
	offset int
	sizes  []int
	idx    int
}

func (c *chunkedReader) Read(p []byte) (int, error) {
	if c.offset >= len(c.data) {
		return 0, io.EOF
	}
	size := 1
	if c.idx < len(c.sizes) {
		size = c.sizes[c.idx]
		c.idx++
	}
	if size > len(p) {
		size = len(p)
	}
	if c.offset+size > len(c.data) {
		size = len(c.data) - c.offset
	}
	n := copy(p, c.data[c.offset:c.offset+size])
	c.offset += n
	return n, nil
}

func framers() map[string]Framer {
	return map[string]Framer{
		"abridged":     Abridged{},
		"intermediate": Intermediate{},
	}
}

func TestFrameRoundTrip(t *testing.T) {
	for name, f := range framers() {
		t.Run(name, func(t *testing.T) {
			payloads := [][]byte{
				{},
				bytes.Repeat([]byte{0x11}, 4),
				bytes.Repeat([]byte{0x22}, 500*4),  // forces the 3-byte abridged length path
				bytes.Repeat([]byte{0x33}, 1000*4), // multi-chunk
			}
			var wire bytes.Buffer
			for _, p := range payloads {
				require.NoError(t, f.WriteFrame(&wire, p))
			}

			d := NewDeframer(&wire, f)
			for _, want := range payloads {
				got, err := d.ReadFrame()
				require.NoError(t, err)
				require.Equal(t, want, got)
			}
		})
	}
}

func TestDeframerToleratesArbitraryChunkBoundaries(t *testing.T) {
	for name, f := range framers() {
		t.Run(name, func(t *testing.T) {
			payloads := [][]byte{
				bytes.Repeat([]byte{0xAA}, 8),
				bytes.Repeat([]byte{0xBB}, 128*4),
				bytes.Repeat([]byte{0xCC}, 4),
			}
			var wire bytes.Buffer
			for _, p := range payloads {
				require.NoError(t, f.WriteFrame(&wire, p))
			}

			for _, chunkSizes := range [][]int{{1}, {2, 3}, {7, 1, 1000}, {10000}} {
				r := &chunkedReader{data: wire.Bytes(), sizes: chunkSizes}
				d := NewDeframer(r, f)
				for _, want := range payloads {
					got, err := d.ReadFrame()
					require.NoError(t, err)
					require.Equal(t, want, got)
				}
			}
		})
	}
}

func TestWriteFrameRejectsUnalignedPayload(t *testing.T) {
	for name, f := range framers() {
		t.Run(name, func(t *testing.T) {
			err := f.WriteFrame(&bytes.Buffer{}, []byte{1, 2, 3})
			require.Error(t, err)
		})
	}
}

func TestIntermediateTryDecodeRejectsNegativeLength(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0xFF, 0xFF, 0xFF, 0xFF}) // -1 as little-endian int32
	_, _, err := Intermediate{}.TryDecode(&buf)
	require.Error(t, err)
}

func TestIntermediateTryDecodeRejectsUnalignedLength(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{3, 0, 0, 0}) // length 3, not a multiple of 4
	_, _, err := Intermediate{}.TryDecode(&buf)
	require.Error(t, err)
}

func TestIsQuickAck(t *testing.T) {
	require.True(t, IsQuickAck(make([]byte, 4)))
	require.False(t, IsQuickAck(make([]byte, 8)))
	require.False(t, IsQuickAck(nil))
}

func TestConnectHeaders(t *testing.T) {
	require.Equal(t, []byte{0xEF}, Abridged{}.ConnectHeader())
	require.Equal(t, []byte{0xEE, 0xEE, 0xEE, 0xEE}, Intermediate{}.ConnectHeader())
}
