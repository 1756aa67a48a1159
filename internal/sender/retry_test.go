// Copyright 2015-2021 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package sender

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseFloodWaitRecognizesEachKind(t *testing.T) {
	cases := map[string]int{
		"FLOOD_WAIT_30":          30,
		"SLOWMODE_WAIT_5":        5,
		"FLOOD_PREMIUM_WAIT_120": 120,
	}
	for msg, want := range cases {
		got, ok := parseFloodWait(msg)
		require.True(t, ok, msg)
		require.Equal(t, want, got, msg)
	}
}

func TestParseFloodWaitRejectsUnrelatedErrors(t *testing.T) {
	_, ok := parseFloodWait("PEER_ID_INVALID")
	require.False(t, ok)
}

func TestParseFloodWaitRejectsMalformedSuffix(t *testing.T) {
	_, ok := parseFloodWait("FLOOD_WAIT_soon")
	require.False(t, ok)
}
