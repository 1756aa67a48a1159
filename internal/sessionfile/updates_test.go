// Copyright 2015-2021 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package sessionfile

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/telecraft/mtproto/internal/updates"
)

func TestSaveLoadUpdatesRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "updates.json")

	state := updates.State{
		Pts: 100, Qts: 5, Date: 12345, Seq: 9,
		ChannelPts: map[int64]int32{1001: 50, -1002: 75},
	}
	require.NoError(t, SaveUpdates(path, state))

	loaded, err := LoadUpdates(path)
	require.NoError(t, err)
	require.Equal(t, state.Pts, loaded.Pts)
	require.Equal(t, state.Qts, loaded.Qts)
	require.Equal(t, state.Date, loaded.Date)
	require.Equal(t, state.Seq, loaded.Seq)
	require.Equal(t, state.ChannelPts, loaded.ChannelPts)
}

func TestLoadUpdatesRefusesVersionMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "updates.json")
	rec := FromUpdatesState(updates.State{ChannelPts: map[int64]int32{}})
	rec.Version = LegacyVersion
	require.NoError(t, atomicWriteJSON(path, rec))

	_, err := LoadUpdates(path)
	require.Error(t, err)
}
