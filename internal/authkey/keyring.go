// Copyright 2015-2021 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package authkey

import (
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"math/big"

	"github.com/telecraft/mtproto/internal/mcrypto"
)

// testRSAPublicKeyPEM and mainRSAPublicKeyPEM are the well-known RSA public
// keys servers present during ExchangeAuthKey's res_pq step, one per
// environment. Both are PKCS1-encoded, matching x509.ParsePKCS1PublicKey.
const testRSAPublicKeyPEM = `-----BEGIN RSA PUBLIC KEY-----
MIIBCgKCAQEAyMEdY1aR+sCR3ZSJrtztKTKqigvO/vBfqACJLZtS7QMgCGXJ6XIR
yy7mx66W0/sOFa7/1mAZtEoIokDP3ShoqF4fVNb6XeqgQfaUHd8wJpDWHcR2OFwv
plUUI1PLTktZ9uW2WE23b+ixNwJjJGwBDJPQEQFBE+vfmH0JP503wr5INS1poWg/
j25sIWeYPHYeOrFp/eXaqhISP6G+q2IeTaWTXpwZj4LzXq5YOpk4bYEQ6mvRq7D1
aHWfYmlEGepfaYR8Q0YqvvhYtMte3ITnuSJs171+GDqpdKcSwHnd6FudwGO4pcCO
j4WcDuXc2CTHgH8gFTNhp/Y8/SpDOhvn9QIDAQAB
-----END RSA PUBLIC KEY-----
`

const mainRSAPublicKeyPEM = `-----BEGIN RSA PUBLIC KEY-----
MIIBCgKCAQEAwVACPi9w23mF3tBkdZz+zwrzKOaaQdr01vAbU4E1pvkfj4sqDsm6
lyDONS789sVoD/xCS9Y0hkkC3gtL1tSfTlgCMOOul9lcixlEKzwKENj1Yz/s7daS
an9tqw3bfUV/nqgbhGX81v/+7RFAEd+RwFnK7a+XYl9sluzHRyVVaTTveB2GazTw
Efzk2DWgkBluml8OREmvfraX3bkHZJTKX4EQSjBbbdJ2ZXIsRrYOXfaA+xayEGB+
8hdlLmAjbCVfaigxX0CDqWeR1yFL9kwd9P0NsZRPsmoqVwMbMu7mStFai6aIhc3n
Slv8kg9qv1m6XHVQY3PnEw+QQtqSIXklHwIDAQAB
-----END RSA PUBLIC KEY-----
`

// parsePKCS1RSAPublicKeyPEM decodes a single PEM block holding a PKCS1 RSA
// public key into the modulus/exponent pair ExchangeAuthKey's keyring wants.
func parsePKCS1RSAPublicKeyPEM(pemText string) (mcrypto.RSAPublicKey, error) {
	block, _ := pem.Decode([]byte(pemText))
	if block == nil {
		return mcrypto.RSAPublicKey{}, fmt.Errorf("authkey: no PEM block found")
	}
	pub, err := x509.ParsePKCS1PublicKey(block.Bytes)
	if err != nil {
		return mcrypto.RSAPublicKey{}, fmt.Errorf("authkey: parsing PKCS1 public key: %w", err)
	}
	return mcrypto.NewRSAPublicKey(pub.N, big.NewInt(int64(pub.E))), nil
}

// DefaultKeyring returns a one-element keyring holding the well-known server
// RSA public key for network: the test key for config.EnvironmentTest, the
// main key for any other value. ExchangeAuthKey still checks the key's
// fingerprint against the server's res_pq reply before using it.
func DefaultKeyring(network string) ([]mcrypto.RSAPublicKey, error) {
	pemText := mainRSAPublicKeyPEM
	if network == "test" {
		pemText = testRSAPublicKeyPEM
	}
	key, err := parsePKCS1RSAPublicKeyPEM(pemText)
	if err != nil {
		return nil, err
	}
	return []mcrypto.RSAPublicKey{key}, nil
}
