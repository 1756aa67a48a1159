// Copyright 2015-2021 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package mtsession

import "sync"

// SeqCounter produces MTProto seq_no values: content-related messages get
// 2*n+1 (and advance the counter), service messages get 2*n (and don't).
type SeqCounter struct {
	mu  sync.Mutex
	seq int32
}

// Next returns the next seq_no for a message, advancing the counter only
// for content-related messages.
func (c *SeqCounter) Next(contentRelated bool) int32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if contentRelated {
		out := c.seq*2 + 1
		c.seq++
		return out
	}
	return c.seq * 2
}
