// Copyright 2015-2021 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package mcrypto

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"
)

const blockSize = 16

// AESIGEEncrypt encrypts plaintext under AES-256-IGE. key must be 32 bytes,
// iv must be 32 bytes (two 16-byte halves), and len(plaintext) must be a
// multiple of 16.
//
// IGE's chaining is C_i = AES(P_i XOR C_{i-1}) XOR P_{i-1}, built here on top
// of plain AES-ECB block operations (crypto/aes.Block.Encrypt).
func AESIGEEncrypt(key, iv, plaintext []byte) ([]byte, error) {
	block, err := checkIGEArgs(key, iv, plaintext)
	if err != nil {
		return nil, err
	}

	prevCipher := iv[:blockSize]
	prevPlain := iv[blockSize:]

	out := make([]byte, len(plaintext))
	x := make([]byte, blockSize)
	for i := 0; i < len(plaintext); i += blockSize {
		p := plaintext[i : i+blockSize]
		xorBytes(x, p, prevCipher)

		y := make([]byte, blockSize)
		block.Encrypt(y, x)

		c := make([]byte, blockSize)
		xorBytes(c, y, prevPlain)

		copy(out[i:i+blockSize], c)
		prevCipher = c
		prevPlain = p
	}
	return out, nil
}

// AESIGEDecrypt is the inverse of AESIGEEncrypt.
func AESIGEDecrypt(key, iv, ciphertext []byte) ([]byte, error) {
	block, err := checkIGEArgs(key, iv, ciphertext)
	if err != nil {
		return nil, err
	}

	prevCipher := iv[:blockSize]
	prevPlain := iv[blockSize:]

	out := make([]byte, len(ciphertext))
	x := make([]byte, blockSize)
	for i := 0; i < len(ciphertext); i += blockSize {
		c := ciphertext[i : i+blockSize]
		xorBytes(x, c, prevPlain)

		y := make([]byte, blockSize)
		block.Decrypt(y, x)

		p := make([]byte, blockSize)
		xorBytes(p, y, prevCipher)

		copy(out[i:i+blockSize], p)
		prevPlain = p
		prevCipher = c
	}
	return out, nil
}

func checkIGEArgs(key, iv, data []byte) (cipher.Block, error) {
	if len(key) != 32 {
		return nil, errors.New("mcrypto: AES-IGE key must be 32 bytes")
	}
	if len(iv) != 32 {
		return nil, errors.New("mcrypto: AES-IGE iv must be 32 bytes")
	}
	if len(data)%blockSize != 0 {
		return nil, errors.New("mcrypto: AES-IGE data length must be a multiple of 16")
	}

	return aes.NewCipher(key)
}

func xorBytes(dst, a, b []byte) {
	for i := range dst {
		dst[i] = a[i] ^ b[i]
	}
}
