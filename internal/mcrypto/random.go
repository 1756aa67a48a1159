// Copyright 2015-2021 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

// Package mcrypto implements the crypto primitives the MTProto wire protocol
// needs: AES-256-IGE, SHA1/SHA256, RSA (PKCS#1 v1.5 and MTProto's raw padded
// variant), PBKDF2-HMAC-SHA512, and SRP password verification.
package mcrypto

import (
	"crypto/rand"
)

// SecureRandomBytes fills and returns n cryptographically random bytes.
func SecureRandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}
