// Copyright 2015-2021 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package mcrypto

import (
	"errors"
	"math/big"
)

// SRPParams are the server-supplied SRP parameters for checking a 2FA
// password, carried in account.password's current_algo and srp_b/srp_id
// fields (passwordKdfAlgoSHA256SHA256PBKDF2HMACSHA512iter100000SHA256ModPow).
type SRPParams struct {
	SRPID int64
	G     int64
	P     []byte // big-endian prime
	Salt1 []byte
	Salt2 []byte
	SRPB  []byte // big-endian server public value B
}

// SRPCheck is the {A, M1} pair sent back as InputCheckPasswordSRP.
type SRPCheck struct {
	SRPID int64
	A     []byte
	M1    []byte
}

// kdfPasswordHash implements Telegram's two-round password hash:
//
//	PH1 = H(H(password) | salt1 | H(password) | salt2)
//	PH2 = H(PBKDF2-HMAC-SHA512(PH1, salt1, 100000) | salt2)
func kdfPasswordHash(password string, salt1, salt2 []byte) []byte {
	hpw := SHA256Sum([]byte(password))
	ph1 := SHA256Sum(hpw, salt1, hpw, salt2)
	pbk := PBKDF2SHA512(ph1, salt1)
	return SHA256Sum(pbk, salt2)
}

// CheckSRPPassword runs the client side of Telegram's SRP password check and
// returns the {A, M1} pair to embed in an account.checkPassword call.
// randomBytes supplies the client's ephemeral secret a; pass
// mcrypto.SecureRandomBytes in production, a fixed source in tests.
func CheckSRPPassword(password string, params SRPParams, randomBytes func(int) ([]byte, error)) (*SRPCheck, error) {
	if len(params.P) < 64 {
		return nil, errors.New("mcrypto: SRP prime p too short")
	}
	if params.G <= 1 {
		return nil, errors.New("mcrypto: invalid SRP generator g")
	}

	pLen := len(params.P)
	p := new(big.Int).SetBytes(params.P)
	g := big.NewInt(params.G)

	bBytes := leftPad(params.SRPB, pLen)
	if len(params.SRPB) > pLen {
		return nil, errors.New("mcrypto: srp_b longer than p")
	}
	B := new(big.Int).SetBytes(bBytes)
	if B.Sign() <= 0 || B.Cmp(p) >= 0 {
		return nil, errors.New("mcrypto: invalid srp_B value")
	}

	gBytes := leftPad(g.Bytes(), pLen)

	// k := H(p | g)
	k := new(big.Int).SetBytes(SHA256Sum(params.P, gBytes))

	// x := int(PH2(password, salt1, salt2))
	ph2 := kdfPasswordHash(password, params.Salt1, params.Salt2)
	x := new(big.Int).SetBytes(ph2)

	aRaw, err := randomBytes(256)
	if err != nil {
		return nil, err
	}
	a := new(big.Int).SetBytes(aRaw)

	A := new(big.Int).Exp(g, a, p)
	aBytes := leftPad(A.Bytes(), pLen)

	// u := H(A | B)
	u := new(big.Int).SetBytes(SHA256Sum(aBytes, bBytes))
	if u.Sign() == 0 {
		return nil, errors.New("mcrypto: invalid SRP u=0")
	}

	// v := g^x mod p
	v := new(big.Int).Exp(g, x, p)

	// S := (B - k*v) ^ (a + u*x) mod p
	kv := new(big.Int).Mod(new(big.Int).Mul(k, v), p)
	base := new(big.Int).Mod(new(big.Int).Sub(B, kv), p)
	if base.Sign() < 0 {
		base.Add(base, p)
	}
	if base.Sign() == 0 {
		return nil, errors.New("mcrypto: invalid SRP base=0")
	}
	exp := new(big.Int).Add(a, new(big.Int).Mul(u, x))
	S := new(big.Int).Exp(base, exp, p)
	sBytes := leftPad(S.Bytes(), pLen)

	// K := H(S)
	K := SHA256Sum(sBytes)

	// M1 := H(H(p) xor H(g) | H(salt1) | H(salt2) | A | B | K)
	hp := SHA256Sum(params.P)
	hg := SHA256Sum(gBytes)
	hpxorhg := make([]byte, len(hp))
	xorBytes(hpxorhg, hp, hg)

	m1 := SHA256Sum(hpxorhg, SHA256Sum(params.Salt1), SHA256Sum(params.Salt2), aBytes, bBytes, K)

	return &SRPCheck{SRPID: params.SRPID, A: aBytes, M1: m1}, nil
}

func leftPad(b []byte, n int) []byte {
	if len(b) >= n {
		return b
	}
	out := make([]byte, n)
	copy(out[n-len(b):], b)
	return out
}
