// Copyright 2015-2021 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package sender

import (
	"sync"
	"time"
)

const (
	defaultAckBatchInterval = 2 * time.Second
	defaultAckBatchSize     = 32
)

// ackBatcher accumulates msg_ids of received content-related server
// messages and flushes them as one msgs_ack, either once ackBatchSize have
// piled up or ackBatchInterval has elapsed since the first unacked id.
// Failing to ack eventually causes the server to redeliver, so every add
// either extends the pending batch or starts the timer that will flush it.
type ackBatcher struct {
	mu      sync.Mutex
	pending []int64
	size    int
	timer   *time.Timer
	after   time.Duration
	flush   func([]int64)
}

func newAckBatcher(interval time.Duration, size int, flush func([]int64)) *ackBatcher {
	return &ackBatcher{after: interval, size: size, flush: flush}
}

func (a *ackBatcher) add(msgID int64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.pending = append(a.pending, msgID)
	if len(a.pending) >= a.size {
		a.flushLocked()
		return
	}
	if a.timer == nil {
		a.timer = time.AfterFunc(a.after, a.onTimer)
	}
}

func (a *ackBatcher) onTimer() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.flushLocked()
}

func (a *ackBatcher) flushLocked() {
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	if len(a.pending) == 0 {
		return
	}
	ids := a.pending
	a.pending = nil
	a.flush(ids)
}

// stop cancels any pending timer without flushing; used on teardown, once
// there's nowhere left to send an ack.
func (a *ackBatcher) stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}
