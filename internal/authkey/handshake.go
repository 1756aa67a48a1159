// Copyright 2015-2021 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package authkey

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/telecraft/mtproto/internal/mcrypto"
	"github.com/telecraft/mtproto/internal/mterr"
	"github.com/telecraft/mtproto/internal/mtsession"
	"github.com/telecraft/mtproto/internal/tl"
	"github.com/telecraft/mtproto/internal/transport"
)

// maxTinyFramesTolerated bounds how many quick-ack frames the handshake
// discards while waiting for a real reply; a consumer expecting the first
// real reply must bound the number of such tiny frames tolerated before
// failing.
const maxTinyFramesTolerated = 32

// maxDHRetries bounds dh_gen_retry loops (step 6: "on retry, restart from
// step 3 with a fresh new_nonce").
const maxDHRetries = 5

// Result is everything a connection needs to switch from the unencrypted
// handshake to an encrypted mtsession.State.
type Result struct {
	AuthKey        []byte
	AuthKeyID      uint64
	ServerSalt     [8]byte
	RSAFingerprint int64
	ServerTime     int32
}

// ExchangeAuthKey runs the full unencrypted DH handshake over conn and
// returns the negotiated auth_key material.
func ExchangeAuthKey(conn *transport.Conn, rsaKeys []mcrypto.RSAPublicKey) (*Result, error) {
	msgIDGen := &mtsession.MsgIDGenerator{}

	var nonce tl.Int128
	nonceBytes, err := mcrypto.SecureRandomBytes(16)
	if err != nil {
		return nil, &mterr.AuthHandshakeError{Step: "nonce", Err: err}
	}
	copy(nonce[:], nonceBytes)

	resPQ, err := sendReqPqMulti(conn, msgIDGen, nonce)
	if err != nil {
		return nil, err
	}
	respNonce, ok := resPQ.Get("nonce")
	if !ok || respNonce.(tl.Int128) != nonce {
		return nil, &mterr.AuthHandshakeError{Step: "res_pq", Err: fmt.Errorf("nonce mismatch")}
	}
	serverNonceVal, ok := resPQ.Get("server_nonce")
	if !ok {
		return nil, &mterr.AuthHandshakeError{Step: "res_pq", Err: fmt.Errorf("missing server_nonce")}
	}
	serverNonce := serverNonceVal.(tl.Int128)

	pqVal, ok := resPQ.Get("pq")
	if !ok {
		return nil, &mterr.AuthHandshakeError{Step: "res_pq", Err: fmt.Errorf("missing pq")}
	}
	pqBytes := pqVal.([]byte)
	pq := new(big.Int).SetBytes(pqBytes).Uint64()

	p, q, err := FactorizePQ(pq)
	if err != nil {
		return nil, &mterr.AuthHandshakeError{Step: "factorize_pq", Err: err}
	}

	fingerprintsVal, _ := resPQ.Get("server_public_key_fingerprints")
	rsaKey, chosenFP, err := selectRSAKey(rsaKeys, fingerprintsVal)
	if err != nil {
		return nil, &mterr.AuthHandshakeError{Step: "select_rsa_key", Err: err}
	}

	var retryID int64
	for attempt := 0; attempt < maxDHRetries; attempt++ {
		var newNonce [32]byte
		newNonceBytes, err := mcrypto.SecureRandomBytes(32)
		if err != nil {
			return nil, &mterr.AuthHandshakeError{Step: "new_nonce", Err: err}
		}
		copy(newNonce[:], newNonceBytes)

		dhParamsOK, err := sendReqDHParams(conn, msgIDGen, nonce, serverNonce, p, q, pqBytes, newNonce, rsaKey, chosenFP)
		if err != nil {
			return nil, err
		}

		innerDH, err := decryptServerDHInner(dhParamsOK, newNonce, serverNonce)
		if err != nil {
			return nil, &mterr.AuthHandshakeError{Step: "server_DH_inner_data", Err: err}
		}
		if err := checkNonces(innerDH, nonce, serverNonce); err != nil {
			return nil, err
		}

		gVal, _ := innerDH.Get("g")
		dhPrimeVal, _ := innerDH.Get("dh_prime")
		gAVal, _ := innerDH.Get("g_a")
		serverTimeVal, _ := innerDH.Get("server_time")

		dh, err := computeDH(gVal.(int32), dhPrimeVal.([]byte), gAVal.([]byte))
		if err != nil {
			return nil, &mterr.AuthHandshakeError{Step: "dh_compute", Err: err}
		}

		genObj, err := sendSetClientDHParams(conn, msgIDGen, nonce, serverNonce, newNonce, dh, retryID)
		if err != nil {
			return nil, err
		}
		if err := checkNonces(genObj, nonce, serverNonce); err != nil {
			return nil, err
		}

		switch genObj.Name {
		case "dh_gen_ok":
			hashVal, _ := genObj.Get("new_nonce_hash1")
			if hashVal.(tl.Int128) != tl.Int128(newNonceHash(newNonce, dh.authKey, 1)) {
				return nil, &mterr.AuthHandshakeError{Step: "dh_gen_ok", Err: fmt.Errorf("new_nonce_hash1 mismatch")}
			}
			return &Result{
				AuthKey:        dh.authKey,
				AuthKeyID:      dh.authKeyID,
				ServerSalt:     deriveServerSalt(newNonce, serverNonce),
				RSAFingerprint: chosenFP,
				ServerTime:     serverTimeVal.(int32),
			}, nil

		case "dh_gen_retry":
			hashVal, _ := genObj.Get("new_nonce_hash2")
			if hashVal.(tl.Int128) != tl.Int128(newNonceHash(newNonce, dh.authKey, 2)) {
				return nil, &mterr.AuthHandshakeError{Step: "dh_gen_retry", Err: fmt.Errorf("new_nonce_hash2 mismatch")}
			}
			retryID = authKeyAuxHash(dh.authKey)
			continue

		case "dh_gen_fail":
			hashVal, _ := genObj.Get("new_nonce_hash3")
			if hashVal.(tl.Int128) != tl.Int128(newNonceHash(newNonce, dh.authKey, 3)) {
				return nil, &mterr.AuthHandshakeError{Step: "dh_gen_fail", Err: fmt.Errorf("new_nonce_hash3 mismatch")}
			}
			return nil, &mterr.AuthHandshakeError{Step: "dh_gen_fail", Err: fmt.Errorf("server rejected the auth key")}

		default:
			return nil, &mterr.AuthHandshakeError{Step: "dh_gen", Err: fmt.Errorf("unexpected constructor %q", genObj.Name)}
		}
	}

	return nil, &mterr.AuthHandshakeError{Step: "dh_gen", Err: fmt.Errorf("exceeded %d dh_gen_retry attempts", maxDHRetries)}
}

func sendUnencrypted(conn *transport.Conn, msgIDGen *mtsession.MsgIDGenerator, body []byte) error {
	packet := packUnencrypted(msgIDGen.Next(), body)
	return conn.Send(packet)
}

// recvUnencrypted blocks for the next non-quick-ack frame and decodes its
// unencrypted envelope.
func recvUnencrypted(conn *transport.Conn, msgIDGen *mtsession.MsgIDGenerator) ([]byte, error) {
	for i := 0; i < maxTinyFramesTolerated; i++ {
		payload, err := conn.Recv()
		if err != nil {
			return nil, &mterr.AuthHandshakeError{Step: "recv", Err: err}
		}
		if transport.IsQuickAck(payload) {
			continue
		}
		msgID, body, err := unpackUnencrypted(payload)
		if err != nil {
			return nil, &mterr.AuthHandshakeError{Step: "recv", Err: err}
		}
		msgIDGen.Observe(msgID)
		return body, nil
	}
	return nil, &mterr.AuthHandshakeError{Step: "recv", Err: fmt.Errorf("exceeded %d tolerated quick-ack frames", maxTinyFramesTolerated)}
}

// sendReqPqMulti is step 1-2 of the handshake.
func sendReqPqMulti(conn *transport.Conn, msgIDGen *mtsession.MsgIDGenerator, nonce tl.Int128) (*tl.Object, error) {
	obj := &tl.Object{ID: combinator("req_pq_multi").ID, Name: "req_pq_multi", Fields: map[string]interface{}{"nonce": nonce}}
	w := codec.NewWriter()
	if err := w.WriteObject(obj); err != nil {
		return nil, &mterr.AuthHandshakeError{Step: "req_pq_multi", Err: err}
	}
	if err := sendUnencrypted(conn, msgIDGen, w.Bytes()); err != nil {
		return nil, &mterr.AuthHandshakeError{Step: "req_pq_multi", Err: err}
	}

	body, err := recvUnencrypted(conn, msgIDGen)
	if err != nil {
		return nil, err
	}
	decoded, err := codec.DecodeTopLevel(body)
	if err != nil {
		return nil, &mterr.AuthHandshakeError{Step: "res_pq", Err: err}
	}
	resPQ, ok := decoded.(*tl.Object)
	if !ok || resPQ.Name != "resPQ" {
		return nil, &mterr.AuthHandshakeError{Step: "res_pq", Err: fmt.Errorf("unexpected response %v", decoded)}
	}
	return resPQ, nil
}

// sendReqDHParams is step 3-4: assemble p_q_inner_data, RSA-encrypt it,
// send req_DH_params, and return the still-encrypted answer from
// server_DH_params_ok.
func sendReqDHParams(
	conn *transport.Conn, msgIDGen *mtsession.MsgIDGenerator,
	nonce, serverNonce tl.Int128, p, q uint64, pq []byte, newNonce [32]byte,
	rsaKey mcrypto.RSAPublicKey, fingerprint int64,
) ([]byte, error) {
	pBytes, qBytes := uint64ToMinimalBytes(p), uint64ToMinimalBytes(q)

	inner := &tl.Object{ID: combinator("p_q_inner_data").ID, Name: "p_q_inner_data", Fields: map[string]interface{}{
		"pq":           pq,
		"p":            pBytes,
		"q":            qBytes,
		"nonce":        nonce,
		"server_nonce": serverNonce,
		"new_nonce":    tl.Int256(newNonce),
	}}
	iw := codec.NewWriter()
	if err := iw.WriteObject(inner); err != nil {
		return nil, &mterr.AuthHandshakeError{Step: "p_q_inner_data", Err: err}
	}

	encryptedData, err := rsaKey.EncryptRaw(iw.Bytes())
	if err != nil {
		return nil, &mterr.AuthHandshakeError{Step: "rsa_encrypt", Err: err}
	}

	reqDH := &tl.Object{ID: combinator("req_DH_params").ID, Name: "req_DH_params", Fields: map[string]interface{}{
		"nonce":                  nonce,
		"server_nonce":           serverNonce,
		"p":                      pBytes,
		"q":                      qBytes,
		"public_key_fingerprint": fingerprint,
		"encrypted_data":         encryptedData,
	}}
	dw := codec.NewWriter()
	if err := dw.WriteObject(reqDH); err != nil {
		return nil, &mterr.AuthHandshakeError{Step: "req_DH_params", Err: err}
	}
	if err := sendUnencrypted(conn, msgIDGen, dw.Bytes()); err != nil {
		return nil, &mterr.AuthHandshakeError{Step: "req_DH_params", Err: err}
	}

	body, err := recvUnencrypted(conn, msgIDGen)
	if err != nil {
		return nil, err
	}
	decoded, err := codec.DecodeTopLevel(body)
	if err != nil {
		return nil, &mterr.AuthHandshakeError{Step: "server_DH_params", Err: err}
	}
	dhObj, ok := decoded.(*tl.Object)
	if !ok {
		return nil, &mterr.AuthHandshakeError{Step: "server_DH_params", Err: fmt.Errorf("unexpected response %v", decoded)}
	}
	if err := checkNonces(dhObj, nonce, serverNonce); err != nil {
		return nil, err
	}
	switch dhObj.Name {
	case "server_DH_params_ok":
		encryptedAnswer, _ := dhObj.Get("encrypted_answer")
		return encryptedAnswer.([]byte), nil
	case "server_DH_params_fail":
		return nil, &mterr.AuthHandshakeError{Step: "server_DH_params", Err: fmt.Errorf("server_DH_params_fail")}
	default:
		return nil, &mterr.AuthHandshakeError{Step: "server_DH_params", Err: fmt.Errorf("unexpected constructor %q", dhObj.Name)}
	}
}

// sendSetClientDHParams is step 5-6: send the encrypted client_DH_inner_data
// and return the decoded dh_gen_ok/retry/fail response.
func sendSetClientDHParams(
	conn *transport.Conn, msgIDGen *mtsession.MsgIDGenerator,
	nonce, serverNonce tl.Int128, newNonce [32]byte, dh *dhResult, retryID int64,
) (*tl.Object, error) {
	clientInner := &tl.Object{ID: combinator("client_DH_inner_data").ID, Name: "client_DH_inner_data", Fields: map[string]interface{}{
		"nonce":        nonce,
		"server_nonce": serverNonce,
		"retry_id":     retryID,
		"g_b":          dh.gB,
	}}
	ciw := codec.NewWriter()
	if err := ciw.WriteObject(clientInner); err != nil {
		return nil, &mterr.AuthHandshakeError{Step: "client_DH_inner_data", Err: err}
	}

	encryptedData, err := encryptClientDHInner(ciw.Bytes(), newNonce, serverNonce)
	if err != nil {
		return nil, &mterr.AuthHandshakeError{Step: "client_DH_inner_data", Err: err}
	}

	setParams := &tl.Object{ID: combinator("set_client_DH_params").ID, Name: "set_client_DH_params", Fields: map[string]interface{}{
		"nonce":          nonce,
		"server_nonce":   serverNonce,
		"encrypted_data": encryptedData,
	}}
	sw := codec.NewWriter()
	if err := sw.WriteObject(setParams); err != nil {
		return nil, &mterr.AuthHandshakeError{Step: "set_client_DH_params", Err: err}
	}
	if err := sendUnencrypted(conn, msgIDGen, sw.Bytes()); err != nil {
		return nil, &mterr.AuthHandshakeError{Step: "set_client_DH_params", Err: err}
	}

	body, err := recvUnencrypted(conn, msgIDGen)
	if err != nil {
		return nil, err
	}
	decoded, err := codec.DecodeTopLevel(body)
	if err != nil {
		return nil, &mterr.AuthHandshakeError{Step: "dh_gen", Err: err}
	}
	genObj, ok := decoded.(*tl.Object)
	if !ok {
		return nil, &mterr.AuthHandshakeError{Step: "dh_gen", Err: fmt.Errorf("unexpected response %v", decoded)}
	}
	return genObj, nil
}

// decryptServerDHInner decrypts server_DH_params_ok's encrypted_answer with
// the temporary nonce-derived key, verifies the leading SHA1 digest covers
// exactly the decoded object's bytes, and returns the decoded
// server_DH_inner_data.
func decryptServerDHInner(encryptedAnswer []byte, newNonce [32]byte, serverNonce tl.Int128) (*tl.Object, error) {
	key, iv := tmpAESKeyIV(newNonce, [16]byte(serverNonce))
	plain, err := mcrypto.AESIGEDecrypt(key[:], iv[:], encryptedAnswer)
	if err != nil {
		return nil, err
	}
	if len(plain) < 20 {
		return nil, fmt.Errorf("decrypted answer shorter than a SHA1 digest")
	}
	digest, rest := plain[:20], plain[20:]

	r := codec.NewReader(rest)
	decoded, err := r.DecodeObject()
	if err != nil {
		return nil, err
	}
	consumed := len(rest) - r.Len()

	if !bytesEqual(digest, mcrypto.SHA1Sum(rest[:consumed])) {
		return nil, fmt.Errorf("server_DH_inner_data sha1 prefix mismatch")
	}

	obj, ok := decoded.(*tl.Object)
	if !ok || obj.Name != "server_DH_inner_data" {
		return nil, fmt.Errorf("unexpected decrypted object %v", decoded)
	}
	return obj, nil
}

// encryptClientDHInner applies the SHA1-prefix-then-pad-then-encrypt scheme
// symmetric to decryptServerDHInner, for client_DH_inner_data.
func encryptClientDHInner(data []byte, newNonce [32]byte, serverNonce tl.Int128) ([]byte, error) {
	key, iv := tmpAESKeyIV(newNonce, [16]byte(serverNonce))

	plain := append(mcrypto.SHA1Sum(data), data...)
	padLen := (16 - len(plain)%16) % 16
	padding, err := mcrypto.SecureRandomBytes(padLen)
	if err != nil {
		return nil, err
	}
	plain = append(plain, padding...)

	return mcrypto.AESIGEEncrypt(key[:], iv[:], plain)
}

func selectRSAKey(rsaKeys []mcrypto.RSAPublicKey, fingerprintsVal interface{}) (mcrypto.RSAPublicKey, int64, error) {
	fingerprints, ok := fingerprintsVal.([]interface{})
	if !ok {
		return mcrypto.RSAPublicKey{}, 0, fmt.Errorf("server_public_key_fingerprints has unexpected type %T", fingerprintsVal)
	}
	byFingerprint := make(map[int64]mcrypto.RSAPublicKey, len(rsaKeys))
	for _, k := range rsaKeys {
		byFingerprint[k.Fingerprint()] = k
	}
	for _, fpVal := range fingerprints {
		fp, ok := fpVal.(int64)
		if !ok {
			continue
		}
		if k, ok := byFingerprint[fp]; ok {
			return k, fp, nil
		}
	}
	return mcrypto.RSAPublicKey{}, 0, fmt.Errorf("no pinned RSA key matches any server fingerprint")
}

// checkNonces validates both nonce and server_nonce on a response that's
// already past the res_pq step, where server_nonce is known.
func checkNonces(obj *tl.Object, nonce, serverNonce tl.Int128) error {
	n, ok := obj.Get("nonce")
	if !ok || n.(tl.Int128) != nonce {
		return &mterr.AuthHandshakeError{Step: obj.Name, Err: fmt.Errorf("nonce mismatch")}
	}
	sn, ok := obj.Get("server_nonce")
	if !ok || sn.(tl.Int128) != serverNonce {
		return &mterr.AuthHandshakeError{Step: obj.Name, Err: fmt.Errorf("server_nonce mismatch")}
	}
	return nil
}

func uint64ToMinimalBytes(v uint64) []byte {
	return new(big.Int).SetUint64(v).Bytes()
}

// authKeyAuxHash is the low 8 bytes of SHA1(auth_key), read little-endian as
// a signed int64 -- MTProto's retry_id for a second set_client_DH_params
// attempt after dh_gen_retry.
func authKeyAuxHash(authKey []byte) int64 {
	h := mcrypto.SHA1Sum(authKey)
	low8 := h[len(h)-8:]
	return int64(binary.LittleEndian.Uint64(low8))
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
