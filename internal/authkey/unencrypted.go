// Copyright 2015-2021 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package authkey

import (
	"encoding/binary"
	"fmt"
)

// packUnencrypted builds an unencrypted MTProto packet: auth_key_id=0 (8
// bytes), msg_id (8), length (4), body. Used only for the handshake steps
// that precede having an auth_key.
func packUnencrypted(msgID int64, body []byte) []byte {
	packet := make([]byte, 8+8+4+len(body))
	// auth_key_id stays zero
	binary.LittleEndian.PutUint64(packet[8:16], uint64(msgID))
	binary.LittleEndian.PutUint32(packet[16:20], uint32(len(body)))
	copy(packet[20:], body)
	return packet
}

// unpackUnencrypted validates and strips an unencrypted packet's envelope.
func unpackUnencrypted(data []byte) (msgID int64, body []byte, err error) {
	if len(data) < 20 {
		return 0, nil, fmt.Errorf("authkey: unencrypted packet too small")
	}
	authKeyID := binary.LittleEndian.Uint64(data[0:8])
	if authKeyID != 0 {
		return 0, nil, fmt.Errorf("authkey: auth_key_id is not 0 in an unencrypted packet")
	}
	msgID = int64(binary.LittleEndian.Uint64(data[8:16]))
	length := int32(binary.LittleEndian.Uint32(data[16:20]))
	if length < 0 || int(20+length) != len(data) {
		return 0, nil, fmt.Errorf("authkey: unencrypted packet length mismatch")
	}
	return msgID, data[20 : 20+length], nil
}
