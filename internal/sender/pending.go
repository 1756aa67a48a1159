// Copyright 2015-2021 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package sender

import (
	"sync"

	"github.com/telecraft/mtproto/internal/tl"
)

// pendingResult is what a waiting Invoke call receives: either a decoded
// result object or an error scoped to this one call.
type pendingResult struct {
	obj *tl.Object
	err error
}

// pendingCall tracks one outstanding invoke(): the request so it can be
// resent under a fresh msg_id, and retry counters that are independent per
// call rather than shared across the connection.
type pendingCall struct {
	req        tl.Request
	resultCh   chan pendingResult
	acked      bool // true once a msgs_ack named this call's msg_id
	floodTries int
}

// pendingCalls is the msg_id -> pendingCall table the receive loop
// dispatches into. It mirrors internal/minitunnel/mux.go's chans: a
// mutex-guarded map keyed by an id the other side echoes back, with the
// same add/remove/get/dropAll shape.
type pendingCalls struct {
	mu    sync.Mutex
	calls map[int64]*pendingCall
}

func newPendingCalls() *pendingCalls {
	return &pendingCalls{calls: make(map[int64]*pendingCall)}
}

func (p *pendingCalls) add(msgID int64, c *pendingCall) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls[msgID] = c
}

func (p *pendingCalls) remove(msgID int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.calls, msgID)
}

func (p *pendingCalls) get(msgID int64) (*pendingCall, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.calls[msgID]
	return c, ok
}

// rekey moves a pending call from oldID to newID, used when a call is
// resent under a freshly generated msg_id (bad_server_salt, a
// resynchronizable bad_msg_notification, or a flood-wait retry).
func (p *pendingCalls) rekey(oldID, newID int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.calls[oldID]
	if !ok {
		return
	}
	delete(p.calls, oldID)
	p.calls[newID] = c
}

// allInFlight returns every currently pending msg_id, used by
// bad_server_salt handling when it doesn't name a specific bad_msg_id.
func (p *pendingCalls) allInFlight() []int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]int64, 0, len(p.calls))
	for id := range p.calls {
		ids = append(ids, id)
	}
	return ids
}

// dropAll empties the table and returns every waiter so the caller can fail
// them once the connection is no longer usable.
func (p *pendingCalls) dropAll() []*pendingCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*pendingCall, 0, len(p.calls))
	for id, c := range p.calls {
		out = append(out, c)
		delete(p.calls, id)
	}
	return out
}
