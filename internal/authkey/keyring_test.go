// Copyright 2015-2021 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package authkey

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultKeyringParsesTestAndMainKeys(t *testing.T) {
	testKeys, err := DefaultKeyring("test")
	require.NoError(t, err)
	require.Len(t, testKeys, 1)
	require.NotNil(t, testKeys[0].N)

	mainKeys, err := DefaultKeyring("prod")
	require.NoError(t, err)
	require.Len(t, mainKeys, 1)
	require.NotNil(t, mainKeys[0].N)

	require.NotEqual(t, testKeys[0].Fingerprint(), mainKeys[0].Fingerprint())
}

func TestParsePKCS1RSAPublicKeyPEMRejectsGarbage(t *testing.T) {
	_, err := parsePKCS1RSAPublicKeyPEM("not a pem block")
	require.Error(t, err)
}
