// Copyright 2015-2021 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package sender

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPendingCallsAddGetRemove(t *testing.T) {
	p := newPendingCalls()
	call := &pendingCall{resultCh: make(chan pendingResult, 1)}

	p.add(100, call)
	got, ok := p.get(100)
	require.True(t, ok)
	require.Same(t, call, got)

	p.remove(100)
	_, ok = p.get(100)
	require.False(t, ok)
}

func TestPendingCallsRekey(t *testing.T) {
	p := newPendingCalls()
	call := &pendingCall{resultCh: make(chan pendingResult, 1)}
	p.add(100, call)

	p.rekey(100, 200)

	_, ok := p.get(100)
	require.False(t, ok)
	got, ok := p.get(200)
	require.True(t, ok)
	require.Same(t, call, got)
}

func TestPendingCallsAllInFlight(t *testing.T) {
	p := newPendingCalls()
	p.add(1, &pendingCall{resultCh: make(chan pendingResult, 1)})
	p.add(2, &pendingCall{resultCh: make(chan pendingResult, 1)})

	ids := p.allInFlight()
	require.ElementsMatch(t, []int64{1, 2}, ids)
}

func TestPendingCallsDropAll(t *testing.T) {
	p := newPendingCalls()
	p.add(1, &pendingCall{resultCh: make(chan pendingResult, 1)})
	p.add(2, &pendingCall{resultCh: make(chan pendingResult, 1)})

	dropped := p.dropAll()
	require.Len(t, dropped, 2)
	require.Empty(t, p.allInFlight())
}
