// Copyright 2015-2021 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package mtsession

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMsgIDGeneratorStrictlyIncreasingAndAligned(t *testing.T) {
	g := &MsgIDGenerator{}
	var prev int64
	for i := 0; i < 1000; i++ {
		id := g.Next()
		require.Zero(t, id%4)
		require.Greater(t, id, prev)
		prev = id
	}
}

func TestMsgIDGeneratorObserveRaisesFloor(t *testing.T) {
	g := &MsgIDGenerator{}
	future := g.Next() + 4*1_000_000
	g.Observe(future + 7) // not a multiple of 4

	next := g.Next()
	require.Greater(t, next, future)
	require.Zero(t, next%4)
}

func TestMsgIDGeneratorObserveIgnoresLowerValues(t *testing.T) {
	g := &MsgIDGenerator{}
	first := g.Next()
	g.Observe(4) // far below anything Next() would produce

	next := g.Next()
	require.Greater(t, next, first)
}
