// Copyright 2015-2021 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package authkey

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFactorizePQSmall(t *testing.T) {
	p, q, err := FactorizePQ(17 * 19)
	require.NoError(t, err)
	require.Equal(t, uint64(17), p)
	require.Equal(t, uint64(19), q)
}

func TestFactorizePQMedium(t *testing.T) {
	p, q, err := FactorizePQ(10007 * 10009)
	require.NoError(t, err)
	require.Equal(t, uint64(10007*10009), p*q)
	require.Less(t, p, q)
}

func TestFactorizePQRejectsPrime(t *testing.T) {
	_, _, err := FactorizePQ(101)
	require.Error(t, err)
	var pqErr *PqFactorizationError
	require.ErrorAs(t, err, &pqErr)
}

func TestFactorizePQEvenFastPath(t *testing.T) {
	p, q, err := FactorizePQ(2 * 94906249) // 94906249 is prime
	require.NoError(t, err)
	require.Equal(t, uint64(2), p)
	require.Equal(t, uint64(94906249), q)
}
