// Copyright 2015-2021 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package authkey

import (
	"crypto/rand"
	"crypto/rsa"
	"io"
	"math/big"
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/telecraft/mtproto/internal/mcrypto"
	"github.com/telecraft/mtproto/internal/tl"
	"github.com/telecraft/mtproto/internal/transport"
)

// A real, publicly documented 2048-bit MODP prime (RFC 3526 group 14),
// reused here only as a toy dh_prime for the handshake's arithmetic -- not
// meant to model production key sizes for the RSA key below.
const testDHPrimeHex = "FFFFFFFFFFFFFFFFC90FDAA22168C234C4C6628B80DC1CD129024E088A67CC74020BBEA63B139B22514A08798E3404DDEF9519B3CD3A431B302B0A6DF25F14374FE1356D6D51C245E485B576625E7EC6F44C42E9A637ED6B0BFF5CB6F406B7EDEE386BFB5A899FA5AE9F24117C4B1FE649286651ECE45B3DC2007CB8A163BF0598DA48361C55D39A69163FA8FD24CF5F83655D23DCA3AD961C62F356208552BB9ED529077096966D670C354E4ABC9804F1746C08CA18217C32905E462E36CE3BE39E772C180E86039B2783A2EC07A28FB5C55DF06F4C52C9DE2BCBF6955817183995497CEA956AE515D2261898FA051015728E5A8AACAA68FFFFFFFFFFFFFFFF"

func testDHPrime(t *testing.T) *big.Int {
	t.Helper()
	n, ok := new(big.Int).SetString(testDHPrimeHex, 16)
	require.True(t, ok)
	return n
}

// TestExchangeAuthKeyFullHandshake drives ExchangeAuthKey against an
// in-process fake server over a net.Pipe(), exercising every wire step of
// the handshake end to end: RSA key selection, pq factorization, the
// nonce-derived temporary AES key, DH computation, and dh_gen_ok
// verification.
func TestExchangeAuthKeyFullHandshake(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	pub := mcrypto.NewRSAPublicKey(priv.PublicKey.N, big.NewInt(int64(priv.PublicKey.E)))

	clientNC, serverNC := net.Pipe()
	framer := transport.Intermediate{}

	dhPrime := testDHPrime(t)
	aSecret := big.NewInt(987654321)

	serverDone := make(chan struct{})
	go func() {
		defer close(serverDone)
		runFakeServer(t, serverNC, framer, priv, dhPrime, 2, aSecret)
	}()

	conn, err := transport.NewConn(clientNC, framer)
	require.NoError(t, err)

	result, err := ExchangeAuthKey(conn, []mcrypto.RSAPublicKey{pub})
	require.NoError(t, err)
	<-serverDone

	require.Len(t, result.AuthKey, 256)
	require.NotZero(t, result.AuthKeyID)
	require.Equal(t, pub.Fingerprint(), result.RSAFingerprint)
}

func runFakeServer(t *testing.T, conn net.Conn, framer transport.Framer, priv *rsa.PrivateKey, dhPrime *big.Int, g int64, aSecret *big.Int) {
	t.Helper()

	header := make([]byte, len(framer.ConnectHeader()))
	_, err := io.ReadFull(conn, header)
	require.NoError(t, err)

	de := transport.NewDeframer(conn, framer)

	reqBody := recvPlain(t, de)
	reqObj := decodeAs(t, reqBody, "req_pq_multi")
	nonce := reqObj.Fields["nonce"].(tl.Int128)

	var serverNonce tl.Int128
	sn, err := mcrypto.SecureRandomBytes(16)
	require.NoError(t, err)
	copy(serverNonce[:], sn)

	pq := uint64(17 * 19)
	pqBytes := new(big.Int).SetUint64(pq).Bytes()
	fp := mcrypto.NewRSAPublicKey(priv.PublicKey.N, big.NewInt(int64(priv.PublicKey.E))).Fingerprint()

	resPQ := &tl.Object{ID: combinator("resPQ").ID, Name: "resPQ", Fields: map[string]interface{}{
		"nonce":                          nonce,
		"server_nonce":                   serverNonce,
		"pq":                             pqBytes,
		"server_public_key_fingerprints": []interface{}{fp},
	}}
	sendPlain(t, conn, framer, 100000004, resPQ)

	dhReqBody := recvPlain(t, de)
	dhReqObj := decodeAs(t, dhReqBody, "req_DH_params")
	encryptedData := dhReqObj.Fields["encrypted_data"].([]byte)

	innerPadded := rsaRawDecrypt(priv, encryptedData)
	innerObjBytes := innerPadded[20:]
	r := codec.NewReader(innerObjBytes)
	decodedInner, err := r.DecodeObject()
	require.NoError(t, err)
	innerObj := decodedInner.(*tl.Object)
	newNonce := [32]byte(innerObj.Fields["new_nonce"].(tl.Int256))

	gA := new(big.Int).Exp(big.NewInt(g), aSecret, dhPrime)

	serverDHInner := &tl.Object{ID: combinator("server_DH_inner_data").ID, Name: "server_DH_inner_data", Fields: map[string]interface{}{
		"nonce":        nonce,
		"server_nonce": serverNonce,
		"g":            int32(g),
		"dh_prime":     dhPrime.Bytes(),
		"g_a":          gA.Bytes(),
		"server_time":  int32(12345),
	}}
	iw := codec.NewWriter()
	require.NoError(t, iw.WriteObject(serverDHInner))
	innerBytes := iw.Bytes()
	plain := append(mcrypto.SHA1Sum(innerBytes), innerBytes...)
	padLen := (16 - len(plain)%16) % 16
	plain = append(plain, make([]byte, padLen)...)

	key, iv := tmpAESKeyIV(newNonce, serverNonce)
	enc, err := mcrypto.AESIGEEncrypt(key[:], iv[:], plain)
	require.NoError(t, err)

	dhOK := &tl.Object{ID: combinator("server_DH_params_ok").ID, Name: "server_DH_params_ok", Fields: map[string]interface{}{
		"nonce":            nonce,
		"server_nonce":     serverNonce,
		"encrypted_answer": enc,
	}}
	sendPlain(t, conn, framer, 100000008, dhOK)

	setBody := recvPlain(t, de)
	setObj := decodeAs(t, setBody, "set_client_DH_params")
	encData := setObj.Fields["encrypted_data"].([]byte)
	clientPlain, err := mcrypto.AESIGEDecrypt(key[:], iv[:], encData)
	require.NoError(t, err)
	clientInnerBytes := clientPlain[20:]
	cr := codec.NewReader(clientInnerBytes)
	clientDecoded, err := cr.DecodeObject()
	require.NoError(t, err)
	clientInner := clientDecoded.(*tl.Object)
	gB := new(big.Int).SetBytes(clientInner.Fields["g_b"].([]byte))

	authKeyInt := new(big.Int).Exp(gB, aSecret, dhPrime)
	authKey := make([]byte, 256)
	authKeyInt.FillBytes(authKey)

	hash1 := newNonceHash(newNonce, authKey, 1)

	dhGenOK := &tl.Object{ID: combinator("dh_gen_ok").ID, Name: "dh_gen_ok", Fields: map[string]interface{}{
		"nonce":           nonce,
		"server_nonce":    serverNonce,
		"new_nonce_hash1": tl.Int128(hash1),
	}}
	sendPlain(t, conn, framer, 100000012, dhGenOK)
}

func recvPlain(t *testing.T, de *transport.Deframer) []byte {
	t.Helper()
	payload, err := de.ReadFrame()
	require.NoError(t, err)
	_, body, err := unpackUnencrypted(payload)
	require.NoError(t, err)
	return body
}

func sendPlain(t *testing.T, conn net.Conn, framer transport.Framer, msgID int64, obj *tl.Object) {
	t.Helper()
	w := codec.NewWriter()
	require.NoError(t, w.WriteObject(obj))
	packet := packUnencrypted(msgID, w.Bytes())
	require.NoError(t, framer.WriteFrame(conn, packet))
}

func decodeAs(t *testing.T, body []byte, expectName string) *tl.Object {
	t.Helper()
	decoded, err := codec.DecodeTopLevel(body)
	require.NoError(t, err)
	obj, ok := decoded.(*tl.Object)
	require.True(t, ok)
	require.Equal(t, expectName, obj.Name)
	return obj
}

func rsaRawDecrypt(priv *rsa.PrivateKey, ct []byte) []byte {
	c := new(big.Int).SetBytes(ct)
	m := new(big.Int).Exp(c, priv.D, priv.N)
	keySize := (priv.N.BitLen() + 7) / 8
	out := make([]byte, keySize-1)
	m.FillBytes(out)
	return out
}
