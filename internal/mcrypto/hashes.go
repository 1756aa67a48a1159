// Copyright 2015-2021 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package mcrypto

import (
	"crypto/sha1"
	"crypto/sha256"
)

// SHA1Sum returns the SHA1 digest of data.
func SHA1Sum(data ...[]byte) []byte {
	h := sha1.New()
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum(nil)
}

// SHA256Sum returns the SHA256 digest of data.
func SHA256Sum(data ...[]byte) []byte {
	h := sha256.New()
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum(nil)
}
