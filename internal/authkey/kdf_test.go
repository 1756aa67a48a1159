// Copyright 2015-2021 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package authkey

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTmpAESKeyIVLengths(t *testing.T) {
	var newNonce [32]byte
	var serverNonce [16]byte
	for i := range newNonce {
		newNonce[i] = 1
	}
	for i := range serverNonce {
		serverNonce[i] = 2
	}

	key, iv := tmpAESKeyIV(newNonce, serverNonce)
	require.Len(t, key, 32)
	require.Len(t, iv, 32)
}

func TestDeriveServerSaltLength(t *testing.T) {
	var newNonce [32]byte
	var serverNonce [16]byte
	for i := range newNonce {
		newNonce[i] = 1
	}
	for i := range serverNonce {
		serverNonce[i] = 2
	}

	salt := deriveServerSalt(newNonce, serverNonce)
	require.Len(t, salt, 8)
	for i := 0; i < 8; i++ {
		require.Equal(t, newNonce[i]^serverNonce[i], salt[i])
	}
}

func TestNewNonceHashLength(t *testing.T) {
	var newNonce [32]byte
	for i := range newNonce {
		newNonce[i] = 1
	}
	authKey := make([]byte, 256)
	for i := range authKey {
		authKey[i] = 0xAA
	}

	for _, n := range []byte{1, 2, 3} {
		h := newNonceHash(newNonce, authKey, n)
		require.Len(t, h, 16)
	}
}

func TestNewNonceHashDiffersByNumber(t *testing.T) {
	var newNonce [32]byte
	authKey := make([]byte, 256)

	h1 := newNonceHash(newNonce, authKey, 1)
	h2 := newNonceHash(newNonce, authKey, 2)
	require.NotEqual(t, h1, h2)
}
