// Copyright 2015-2021 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package authkey

import (
	"crypto/rand"
	"math/big"

	"github.com/telecraft/mtproto/internal/mcrypto"
)

// dhResult is the client's half of the Diffie-Hellman exchange: the
// derived auth_key, its id, and g_b to send back to the server.
type dhResult struct {
	authKey   []byte // 256 bytes, left-padded
	authKeyID uint64
	gB        []byte
}

// computeDH picks a random 2048-bit b and derives g_b and the shared
// auth_key from the server's g and dh_prime.
func computeDH(g int32, dhPrime, gA []byte) (*dhResult, error) {
	prime := new(big.Int).SetBytes(dhPrime)
	gBig := big.NewInt(int64(g))
	gABig := new(big.Int).SetBytes(gA)

	bBytes := make([]byte, 256)
	if _, err := rand.Read(bBytes); err != nil {
		return nil, err
	}
	b := new(big.Int).SetBytes(bBytes)

	gB := new(big.Int).Exp(gBig, b, prime)
	authKeyInt := new(big.Int).Exp(gABig, b, prime)

	authKey := make([]byte, 256)
	authKeyInt.FillBytes(authKey)

	h := mcrypto.SHA1Sum(authKey)
	low8 := h[len(h)-8:]
	var authKeyID uint64
	for i := 0; i < 8; i++ {
		authKeyID |= uint64(low8[i]) << (8 * i)
	}

	return &dhResult{authKey: authKey, authKeyID: authKeyID, gB: gB.Bytes()}, nil
}
