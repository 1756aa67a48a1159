// Copyright 2015-2021 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package mcrypto

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/binary"
	"errors"
	"math/big"
)

// RSAPublicKey is a pinned server RSA key as handed out in res_pq's
// server_public_key_fingerprints. N and E are the raw key components; the
// fingerprint is derived from them rather than stored, matching how the
// server computes it.
type RSAPublicKey struct {
	N *big.Int
	E *big.Int
}

// NewRSAPublicKey builds a key from its modulus and public exponent.
func NewRSAPublicKey(n, e *big.Int) RSAPublicKey {
	return RSAPublicKey{N: n, E: e}
}

// KeySizeBytes returns the modulus size in bytes (256 for a 2048-bit key).
func (k RSAPublicKey) KeySizeBytes() int {
	return (k.N.BitLen() + 7) / 8
}

// Fingerprint computes the Telegram-style RSA key fingerprint: TL-encode n
// and e as TL byte strings, concatenate, SHA1, and take the low 8 bytes
// read little-endian as a signed int64.
func (k RSAPublicKey) Fingerprint() int64 {
	data := append(tlBytesEncode(bigIntBytes(k.N)), tlBytesEncode(bigIntBytes(k.E))...)
	sum := SHA1Sum(data)
	low8 := sum[len(sum)-8:]
	return int64(binary.LittleEndian.Uint64(low8))
}

// EncryptPKCS1v15 encrypts plaintext for one-time use (e.g. takeout file
// encryption keys), not the handshake path.
func (k RSAPublicKey) EncryptPKCS1v15(plaintext []byte) ([]byte, error) {
	pub := &rsa.PublicKey{N: k.N, E: int(k.E.Int64())}
	return rsa.EncryptPKCS1v15(rand.Reader, pub, plaintext)
}

// EncryptRaw implements MTProto's "raw RSA" padding used during the
// auth-key handshake: pad sha1(data)||data||random to key_size-1 bytes,
// then compute m^e mod n directly (no PKCS#1 framing on the wire).
func (k RSAPublicKey) EncryptRaw(data []byte) ([]byte, error) {
	keySize := k.KeySizeBytes()
	if keySize < 16 {
		return nil, errors.New("mcrypto: RSA key too small for raw MTProto padding")
	}

	targetLen := keySize - 1
	prefix := append(SHA1Sum(data), data...)
	if len(prefix) > targetLen {
		return nil, errors.New("mcrypto: data too long for MTProto raw RSA padding")
	}

	padding, err := SecureRandomBytes(targetLen - len(prefix))
	if err != nil {
		return nil, err
	}
	padded := append(prefix, padding...)

	m := new(big.Int).SetBytes(padded)
	c := new(big.Int).Exp(m, k.E, k.N)

	out := make([]byte, keySize)
	c.FillBytes(out)
	return out, nil
}

func bigIntBytes(v *big.Int) []byte {
	// big-endian, unsigned, no leading zero stripped beyond what Bytes() does
	return v.Bytes()
}

// tlBytesEncode mirrors internal/tl's bytes wire format without importing
// that package (mcrypto sits below tl in the dependency graph): 1-byte
// length + data + zero pad to 4, or 0xFE + 3-byte LE length + data + pad for
// data.length >= 254.
func tlBytesEncode(data []byte) []byte {
	n := len(data)
	var out []byte
	if n < 254 {
		out = make([]byte, 0, 1+n+3)
		out = append(out, byte(n))
		out = append(out, data...)
	} else {
		out = make([]byte, 0, 4+n+3)
		out = append(out, 0xFE, byte(n), byte(n>>8), byte(n>>16))
		out = append(out, data...)
	}
	for len(out)%4 != 0 {
		out = append(out, 0)
	}
	return out
}
