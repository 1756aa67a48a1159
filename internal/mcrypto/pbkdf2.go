// Copyright 2015-2021 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package mcrypto

import (
	"crypto/sha512"

	"golang.org/x/crypto/pbkdf2"
)

const pbkdf2Iterations = 100000
const pbkdf2KeyLen = 64

// PBKDF2SHA512 derives a 64-byte key from password and salt using
// PBKDF2-HMAC-SHA512 at 100,000 iterations, matching the 2FA srp password
// check key derivation.
func PBKDF2SHA512(password, salt []byte) []byte {
	return pbkdf2.Key(password, salt, pbkdf2Iterations, pbkdf2KeyLen, sha512.New)
}
