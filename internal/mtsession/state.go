// Copyright 2015-2021 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package mtsession

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/telecraft/mtproto/internal/mcrypto"
	"github.com/telecraft/mtproto/internal/mterr"
)

const (
	authKeyLen   = 256
	saltLen      = 8
	sessionIDLen = 8
	msgKeyLen    = 16
)

// State is the per-connection MTProto v2 session: the auth key, server
// salt, session id, and the id/seq generators built over them. It is
// mutated only by the Encrypted Sender; Encrypt/Decrypt are safe to call
// concurrently with each other and are the only methods the sender needs
// to reach for on the wire hot path.
type State struct {
	mu sync.Mutex

	AuthKey     []byte // 256 bytes
	ServerSalt  [8]byte
	SessionID   [8]byte
	MsgIDGen    *MsgIDGenerator
	SeqCounter  *SeqCounter
	authKeyID   uint64
}

// NewState validates an existing session's material and materializes a
// fresh msg_id generator: constructing from a loaded session never reuses
// the previous connection's generator state.
func NewState(authKey []byte, serverSalt [8]byte, sessionID [8]byte) (*State, error) {
	if len(authKey) != authKeyLen {
		return nil, &mterr.SessionError{Reason: fmt.Sprintf("auth_key must be %d bytes, got %d", authKeyLen, len(authKey))}
	}
	s := &State{
		AuthKey:    append([]byte(nil), authKey...),
		ServerSalt: serverSalt,
		SessionID:  sessionID,
		MsgIDGen:   &MsgIDGenerator{},
		SeqCounter: &SeqCounter{},
	}
	s.authKeyID = authKeyIDOf(s.AuthKey)
	return s, nil
}

// authKeyIDOf is the low 8 bytes of SHA1(auth_key), read as little-endian.
func authKeyIDOf(authKey []byte) uint64 {
	h := mcrypto.SHA1Sum(authKey)
	return binary.LittleEndian.Uint64(h[len(h)-8:])
}

// AuthKeyID returns the auth_key_id written at the head of every encrypted
// packet.
func (s *State) AuthKeyID() uint64 {
	return s.authKeyID
}

// SetServerSalt updates the salt in place, e.g. on bad_server_salt or
// new_session_created.
func (s *State) SetServerSalt(salt [8]byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ServerSalt = salt
}

func (s *State) currentSalt() [8]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ServerSalt
}

func calcKeyIV(authKey, msgKey []byte, outbound bool) (key, iv []byte) {
	x := 0
	if !outbound {
		x = 8
	}
	sha256a := mcrypto.SHA256Sum(msgKey, authKey[x:x+36])
	sha256b := mcrypto.SHA256Sum(authKey[x+40:x+76], msgKey)

	key = make([]byte, 0, 32)
	key = append(key, sha256a[0:8]...)
	key = append(key, sha256b[8:24]...)
	key = append(key, sha256a[24:32]...)

	iv = make([]byte, 0, 32)
	iv = append(iv, sha256b[0:8]...)
	iv = append(iv, sha256a[8:24]...)
	iv = append(iv, sha256b[24:32]...)
	return key, iv
}

// Encrypt builds msg_id+seqno+length+body (inner) into a full encrypted
// packet: auth_key_id(8) || msg_key(16) || aes_ige(data||padding).
func (s *State) Encrypt(msgID int64, seqNo int32, body []byte) ([]byte, error) {
	if len(body)%4 != 0 {
		return nil, &mterr.SessionError{Reason: "message body must be 4-byte aligned"}
	}

	inner := make([]byte, 16+len(body))
	binary.LittleEndian.PutUint64(inner[0:8], uint64(msgID))
	binary.LittleEndian.PutUint32(inner[8:12], uint32(seqNo))
	binary.LittleEndian.PutUint32(inner[12:16], uint32(len(body)))
	copy(inner[16:], body)

	salt := s.currentSalt()
	data := make([]byte, 0, saltLen+sessionIDLen+len(inner))
	data = append(data, salt[:]...)
	data = append(data, s.SessionID[:]...)
	data = append(data, inner...)

	padLen := (-(len(data) + 12)) % 16
	if padLen < 0 {
		padLen += 16
	}
	padLen += 12
	padding, err := mcrypto.SecureRandomBytes(padLen)
	if err != nil {
		return nil, fmt.Errorf("mtsession: padding: %w", err)
	}

	authSlice := s.AuthKey[88:120]
	msgKeyLarge := mcrypto.SHA256Sum(authSlice, data, padding)
	msgKey := msgKeyLarge[8:24]

	aesKey, aesIV := calcKeyIV(s.AuthKey, msgKey, true)
	ciphertext, err := mcrypto.AESIGEEncrypt(aesKey, aesIV, append(data, padding...))
	if err != nil {
		return nil, &mterr.SessionError{Reason: err.Error()}
	}

	packet := make([]byte, 0, 8+msgKeyLen+len(ciphertext))
	var keyIDBuf [8]byte
	binary.LittleEndian.PutUint64(keyIDBuf[:], s.authKeyID)
	packet = append(packet, keyIDBuf[:]...)
	packet = append(packet, msgKey...)
	packet = append(packet, ciphertext...)
	return packet, nil
}

// DecryptedMessage is one decrypted inner message: the fields embedded in
// the packet ahead of the TL-decodable body.
type DecryptedMessage struct {
	MsgID int64
	SeqNo int32
	Body  []byte
}

// Decrypt validates and decrypts an incoming encrypted packet, returning
// the inner msg_id/seqno/body. A msg_key or session_id mismatch is a fatal
// SessionError.
func (s *State) Decrypt(packet []byte) (*DecryptedMessage, error) {
	if len(packet) < 8+msgKeyLen {
		return nil, &mterr.SessionError{Reason: "encrypted packet too short"}
	}

	keyID := binary.LittleEndian.Uint64(packet[0:8])
	if keyID != s.authKeyID {
		return nil, &mterr.SessionError{Reason: "auth_key_id mismatch in incoming packet"}
	}

	msgKey := packet[8:24]
	aesKey, aesIV := calcKeyIV(s.AuthKey, msgKey, false)
	plain, err := mcrypto.AESIGEDecrypt(aesKey, aesIV, packet[24:])
	if err != nil {
		return nil, &mterr.SessionError{Reason: err.Error()}
	}

	authSlice := s.AuthKey[96:128]
	expected := mcrypto.SHA256Sum(authSlice, plain)[8:24]
	if !bytesEqual(expected, msgKey) {
		return nil, &mterr.SessionError{Reason: "msg_key mismatch after decryption"}
	}
	if len(plain) < 16+16 {
		return nil, &mterr.SessionError{Reason: "decrypted payload too short"}
	}

	sessionID := plain[8:16]
	if !bytesEqual(sessionID, s.SessionID[:]) {
		return nil, &mterr.SessionError{Reason: "session_id mismatch in incoming packet"}
	}

	inner := plain[16:]
	msgID := int64(binary.LittleEndian.Uint64(inner[0:8]))
	seqNo := int32(binary.LittleEndian.Uint32(inner[8:12]))
	length := int32(binary.LittleEndian.Uint32(inner[12:16]))
	if length < 0 || int(16+length) > len(inner) {
		return nil, &mterr.SessionError{Reason: "inner message length exceeds decrypted payload"}
	}

	return &DecryptedMessage{MsgID: msgID, SeqNo: seqNo, Body: inner[16 : 16+length]}, nil
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
