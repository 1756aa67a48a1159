// Copyright 2015-2021 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package mtsession

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/telecraft/mtproto/internal/mcrypto"
)

func testAuthKey() []byte {
	k := make([]byte, authKeyLen)
	for i := range k {
		k[i] = byte(i * 7 % 251)
	}
	return k
}

func newTestState(t *testing.T) *State {
	t.Helper()
	s, err := NewState(testAuthKey(), [8]byte{1, 2, 3, 4, 5, 6, 7, 8}, [8]byte{9, 8, 7, 6, 5, 4, 3, 2})
	require.NoError(t, err)
	return s
}

// serverEncrypt mirrors State.Encrypt but from the server's perspective
// (outbound=false, auth_key slice [96:128]), so tests can exercise
// State.Decrypt against a packet this state didn't produce itself.
func serverEncrypt(s *State, msgID int64, seqNo int32, body []byte) []byte {
	inner := make([]byte, 16+len(body))
	binary.LittleEndian.PutUint64(inner[0:8], uint64(msgID))
	binary.LittleEndian.PutUint32(inner[8:12], uint32(seqNo))
	binary.LittleEndian.PutUint32(inner[12:16], uint32(len(body)))
	copy(inner[16:], body)

	data := make([]byte, 0, 16+len(inner))
	data = append(data, s.ServerSalt[:]...)
	data = append(data, s.SessionID[:]...)
	data = append(data, inner...)

	padLen := (16 - (len(data)+12)%16) % 16
	padLen += 12
	padding := make([]byte, padLen)

	authSlice := s.AuthKey[96:128]
	msgKeyLarge := mcrypto.SHA256Sum(authSlice, data, padding)
	msgKey := msgKeyLarge[8:24]

	aesKey, aesIV := calcKeyIV(s.AuthKey, msgKey, false)
	ciphertext, err := mcrypto.AESIGEEncrypt(aesKey, aesIV, append(data, padding...))
	if err != nil {
		panic(err)
	}

	packet := make([]byte, 0, 24+len(ciphertext))
	var keyIDBuf [8]byte
	binary.LittleEndian.PutUint64(keyIDBuf[:], s.AuthKeyID())
	packet = append(packet, keyIDBuf[:]...)
	packet = append(packet, msgKey...)
	packet = append(packet, ciphertext...)
	return packet
}

func TestDecryptAcceptsWellFormedServerPacket(t *testing.T) {
	s := newTestState(t)
	body := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	packet := serverEncrypt(s, 123456789, 7, body)

	msg, err := s.Decrypt(packet)
	require.NoError(t, err)
	require.Equal(t, int64(123456789), msg.MsgID)
	require.Equal(t, int32(7), msg.SeqNo)
	require.Equal(t, body, msg.Body)
}

func TestDecryptRejectsAuthKeyIDMismatch(t *testing.T) {
	s := newTestState(t)
	packet := serverEncrypt(s, 1, 1, []byte{1, 2, 3, 4})
	packet[0] ^= 0xFF

	_, err := s.Decrypt(packet)
	require.Error(t, err)
}

func TestDecryptRejectsTamperedCiphertext(t *testing.T) {
	s := newTestState(t)
	packet := serverEncrypt(s, 1, 1, []byte{1, 2, 3, 4})
	packet[len(packet)-1] ^= 0xFF

	_, err := s.Decrypt(packet)
	require.Error(t, err)
}

func TestDecryptRejectsWrongSessionID(t *testing.T) {
	s := newTestState(t)
	other := newTestState(t)
	other.SessionID = [8]byte{0, 0, 0, 0, 0, 0, 0, 1}
	other.AuthKey = s.AuthKey

	packet := serverEncrypt(other, 1, 1, []byte{1, 2, 3, 4})
	_, err := s.Decrypt(packet)
	require.Error(t, err)
}

func TestEncryptProducesAlignedAuthKeyIDPrefix(t *testing.T) {
	s := newTestState(t)
	packet, err := s.Encrypt(8, 1, []byte{1, 2, 3, 4})
	require.NoError(t, err)
	require.Equal(t, s.AuthKeyID(), binary.LittleEndian.Uint64(packet[0:8]))
	require.Greater(t, len(packet), 24)
}

func TestEncryptRejectsUnalignedBody(t *testing.T) {
	s := newTestState(t)
	_, err := s.Encrypt(8, 1, []byte{1, 2, 3})
	require.Error(t, err)
}

func TestNewStateRejectsWrongAuthKeyLength(t *testing.T) {
	_, err := NewState(make([]byte, 10), [8]byte{}, [8]byte{})
	require.Error(t, err)
}
