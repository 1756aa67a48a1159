// Copyright 2015-2021 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package sender

import (
	"strconv"
	"strings"
)

// defaultMaxFloodRetries bounds how many times a single call may sleep and
// resend on a FLOOD_WAIT-shaped rpc_error before the wait is surfaced to the
// caller as a real error.
const defaultMaxFloodRetries = 3

// defaultMaxFloodWaitSeconds is the configured cap on N in
// FLOOD_WAIT_<N>/SLOWMODE_WAIT_<N>/FLOOD_PREMIUM_WAIT_<N>; a wait longer
// than this is treated as an immediate error rather than slept through.
const defaultMaxFloodWaitSeconds = 60

// floodWaitKinds are the recognized rpc_error message prefixes; each is
// followed by "_<N>" giving the wait in seconds.
var floodWaitKinds = []string{"FLOOD_WAIT_", "SLOWMODE_WAIT_", "FLOOD_PREMIUM_WAIT_"}

// parseFloodWait reports the wait duration (seconds) encoded in an
// rpc_error's message, if it matches one of the recognized flood-wait
// shapes.
func parseFloodWait(message string) (seconds int, ok bool) {
	for _, prefix := range floodWaitKinds {
		if strings.HasPrefix(message, prefix) {
			n, err := strconv.Atoi(message[len(prefix):])
			if err != nil {
				return 0, false
			}
			return n, true
		}
	}
	return 0, false
}
