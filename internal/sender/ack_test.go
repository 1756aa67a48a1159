// Copyright 2015-2021 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package sender

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAckBatcherFlushesAtSize(t *testing.T) {
	var flushed [][]int64
	a := newAckBatcher(time.Hour, 3, func(ids []int64) {
		flushed = append(flushed, ids)
	})

	a.add(1)
	a.add(2)
	require.Empty(t, flushed)
	a.add(3)

	require.Len(t, flushed, 1)
	require.Equal(t, []int64{1, 2, 3}, flushed[0])
}

func TestAckBatcherFlushesAfterInterval(t *testing.T) {
	flushed := make(chan []int64, 1)
	a := newAckBatcher(10*time.Millisecond, 100, func(ids []int64) {
		flushed <- ids
	})

	a.add(42)

	select {
	case ids := <-flushed:
		require.Equal(t, []int64{42}, ids)
	case <-time.After(time.Second):
		t.Fatal("ack batcher never flushed on timer")
	}
}

func TestAckBatcherStopCancelsTimer(t *testing.T) {
	flushed := false
	a := newAckBatcher(10*time.Millisecond, 100, func(ids []int64) {
		flushed = true
	})

	a.add(1)
	a.stop()
	time.Sleep(30 * time.Millisecond)
	require.False(t, flushed)
}
