// Copyright 2015-2021 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package authkey

import "github.com/telecraft/mtproto/internal/mcrypto"

// tmpAESKeyIV derives the temporary AES-IGE key and IV used to decrypt
// server_DH_params_ok's encrypted_answer:
//
//	tmp_aes_key = SHA1(new_nonce||server_nonce) || SHA1(server_nonce||new_nonce)[0:12]
//	tmp_aes_iv  = SHA1(server_nonce||new_nonce)[12:20] || SHA1(new_nonce||new_nonce) || new_nonce[0:4]
func tmpAESKeyIV(newNonce [32]byte, serverNonce [16]byte) (key, iv [32]byte) {
	nn := newNonce[:]
	sn := serverNonce[:]

	hashA := mcrypto.SHA1Sum(nn, sn)
	hashB := mcrypto.SHA1Sum(sn, nn)
	hashC := mcrypto.SHA1Sum(nn, nn)

	copy(key[0:20], hashA)
	copy(key[20:32], hashB[0:12])

	copy(iv[0:8], hashB[12:20])
	copy(iv[8:28], hashC)
	copy(iv[28:32], nn[0:4])
	return key, iv
}

// deriveServerSalt XORs the leading 8 bytes of new_nonce and server_nonce.
func deriveServerSalt(newNonce [32]byte, serverNonce [16]byte) (salt [8]byte) {
	for i := 0; i < 8; i++ {
		salt[i] = newNonce[i] ^ serverNonce[i]
	}
	return salt
}

// newNonceHash computes new_nonce_hash{1,2,3}: the server's way of proving
// it derived the same auth_key, checked against dh_gen_ok/retry/fail.
func newNonceHash(newNonce [32]byte, authKey []byte, number byte) [16]byte {
	authKeyHash := mcrypto.SHA1Sum(authKey)
	auxHash := authKeyHash[len(authKeyHash)-8:]

	data := make([]byte, 0, 32+1+8)
	data = append(data, newNonce[:]...)
	data = append(data, number)
	data = append(data, auxHash...)

	full := mcrypto.SHA1Sum(data)
	var out [16]byte
	copy(out[:], full[4:20])
	return out
}
