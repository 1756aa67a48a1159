// Copyright 2015-2021 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package resolve

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveHostSkipsLookupForLiteralIP(t *testing.T) {
	r, err := NewResolver("127.0.0.1:53")
	require.NoError(t, err)

	ips, err := r.ResolveHost("149.154.167.51")
	require.NoError(t, err)
	require.Equal(t, []net.IP{net.ParseIP("149.154.167.51")}, ips)
}

func TestNewResolverAcceptsExplicitServer(t *testing.T) {
	r, err := NewResolver("9.9.9.9:53")
	require.NoError(t, err)
	require.NotNil(t, r)
}
