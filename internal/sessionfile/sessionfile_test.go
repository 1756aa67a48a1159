// Copyright 2015-2021 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package sessionfile

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/telecraft/mtproto/internal/config"
)

func TestSaveLoadSessionRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")

	authKey := bytes.Repeat([]byte{0x42}, 256)
	salt := [8]byte{1, 2, 3, 4, 5, 6, 7, 8}
	sessionID := [8]byte{8, 7, 6, 5, 4, 3, 2, 1}

	s := NewSession(2, "149.154.167.50", 443, config.FramingIntermediate, authKey, salt, sessionID)
	require.NoError(t, SaveSession(path, s))

	loaded, err := LoadSession(path)
	require.NoError(t, err)
	require.Equal(t, int32(2), loaded.DCID)
	require.Equal(t, "149.154.167.50", loaded.Host)

	gotKey, err := loaded.AuthKeyBytes()
	require.NoError(t, err)
	require.Equal(t, authKey, gotKey)

	gotSalt, err := loaded.ServerSaltBytes()
	require.NoError(t, err)
	require.Equal(t, salt, gotSalt)

	gotSessionID, err := loaded.SessionIDBytes()
	require.NoError(t, err)
	require.Equal(t, sessionID, gotSessionID)
}

func TestLoadSessionRefusesVersionMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	s := NewSession(1, "host", 443, config.FramingAbridged, bytes.Repeat([]byte{1}, 256), [8]byte{}, [8]byte{})
	require.NoError(t, SaveSession(path, s))

	// Corrupt the on-disk version to simulate a stale format.
	loaded, err := LoadSession(path)
	require.NoError(t, err)
	loaded.Version = LegacyVersion
	require.NoError(t, atomicWriteJSON(path, loaded))

	_, err = LoadSession(path)
	require.Error(t, err)
}

func TestLoadSessionRejectsBadFraming(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	s := NewSession(1, "host", 443, "made-up-framing", bytes.Repeat([]byte{1}, 256), [8]byte{}, [8]byte{})
	require.NoError(t, atomicWriteJSON(path, s))

	_, err := LoadSession(path)
	require.Error(t, err)
}

func TestLoadSessionRejectsShortAuthKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	s := NewSession(1, "host", 443, config.FramingAbridged, bytes.Repeat([]byte{1}, 10), [8]byte{}, [8]byte{})
	require.NoError(t, atomicWriteJSON(path, s))

	_, err := LoadSession(path)
	require.Error(t, err)
}

func TestSaveSessionCreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "c", "session.json")
	s := NewSession(1, "host", 443, config.FramingAbridged, bytes.Repeat([]byte{1}, 256), [8]byte{}, [8]byte{})
	require.NoError(t, SaveSession(path, s))

	_, err := LoadSession(path)
	require.NoError(t, err)
}
