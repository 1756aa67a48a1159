// Copyright 2015-2021 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package mcrypto

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

// A 2048-bit RSA public key in the shape MTProto keyrings use; the exact
// value doesn't matter for these tests, only its size.
func testKey(t *testing.T) RSAPublicKey {
	t.Helper()
	nBytes, err := SecureRandomBytes(256)
	require.NoError(t, err)
	nBytes[0] |= 0x80 // ensure full bit length
	n := new(big.Int).SetBytes(nBytes)
	return NewRSAPublicKey(n, big.NewInt(65537))
}

func TestRSAFingerprintDeterministic(t *testing.T) {
	k := testKey(t)
	f1 := k.Fingerprint()
	f2 := k.Fingerprint()
	require.Equal(t, f1, f2)
}

func TestRSAEncryptRawLength(t *testing.T) {
	k := testKey(t)
	require.Equal(t, 256, k.KeySizeBytes())

	data := make([]byte, 255-20) // leaves room for the sha1 prefix
	ciphertext, err := k.EncryptRaw(data)
	require.NoError(t, err)
	require.Len(t, ciphertext, k.KeySizeBytes())
}

func TestRSAEncryptRawRejectsOversizedData(t *testing.T) {
	k := testKey(t)
	data := make([]byte, 300)
	_, err := k.EncryptRaw(data)
	require.Error(t, err)
}

func TestTLBytesEncodeBoundary(t *testing.T) {
	// length 253 uses the 1-byte header; 254 uses the 4-byte header.
	short := tlBytesEncode(make([]byte, 253))
	require.Equal(t, byte(253), short[0])

	long := tlBytesEncode(make([]byte, 254))
	require.Equal(t, byte(0xFE), long[0])

	require.Zero(t, len(short)%4)
	require.Zero(t, len(long)%4)
}
