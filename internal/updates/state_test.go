// Copyright 2015-2021 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package updates

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSnapshotIsIndependentOfLiveState(t *testing.T) {
	e := newEngine(&fakeInvoker{})
	e.Seed(State{Pts: 1, ChannelPts: map[int64]int32{5: 1}})

	snap := e.Snapshot()
	snap.ChannelPts[5] = 999
	snap.Pts = 999

	live := e.Snapshot()
	require.Equal(t, int32(1), live.Pts)
	require.Equal(t, int32(1), live.ChannelPts[5])
}
