// Copyright 2015-2021 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package mtsession

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSeqCounterContentRelatedAdvances(t *testing.T) {
	c := &SeqCounter{}
	require.Equal(t, int32(1), c.Next(true))
	require.Equal(t, int32(3), c.Next(true))
	require.Equal(t, int32(5), c.Next(true))
}

func TestSeqCounterServiceDoesNotAdvance(t *testing.T) {
	c := &SeqCounter{}
	require.Equal(t, int32(1), c.Next(true))
	require.Equal(t, int32(2), c.Next(false))
	require.Equal(t, int32(2), c.Next(false))
	require.Equal(t, int32(3), c.Next(true))
}
