// Copyright 2015-2021 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

// Package mtsession holds per-connection MTProto state: the msg_id
// generator, the seq_no counter, and the v2 encryption envelope.
package mtsession

import (
	"sync"
	"time"
)

// MsgIDGenerator produces MTProto message ids: strictly increasing over the
// session's lifetime and always divisible by 4. Telegram's servers can
// return an id slightly ahead of the local clock, so Observe lets the
// generator catch up to whatever the server has seen.
type MsgIDGenerator struct {
	mu   sync.Mutex
	last int64
}

// Observe bumps the generator's floor from a message id seen on the wire
// (ours or the server's) so a subsequent Next never produces something at
// or below it.
func (g *MsgIDGenerator) Observe(remoteMsgID int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	floor := remoteMsgID &^ 3
	if floor > g.last {
		g.last = floor
	}
}

// Next returns the next message id: roughly unix_time*2^32, rounded down to
// a multiple of 4, bumped past the last value handed out or observed.
func (g *MsgIDGenerator) Next() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	msgID := int64(float64(time.Now().UnixNano()) / 1e9 * (1 << 32))
	msgID &^= 3
	if msgID <= g.last {
		msgID = g.last + 4
	}
	g.last = msgID
	return msgID
}
