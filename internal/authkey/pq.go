// Copyright 2015-2021 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package authkey

import (
	"fmt"
	"math/big"
)

// PqFactorizationError means pq could not be split into two factors, most
// likely because the server handed over something that wasn't a semiprime.
type PqFactorizationError struct {
	PQ uint64
}

func (e *PqFactorizationError) Error() string {
	return fmt.Sprintf("authkey: could not factorize pq=%d", e.PQ)
}

// FactorizePQ splits the ~63-bit value pq into p < q using Pollard's rho
// (with Floyd's cycle detection), which suffices at this bit size.
func FactorizePQ(pq uint64) (p, q uint64, err error) {
	n := new(big.Int).SetUint64(pq)
	one := big.NewInt(1)
	if n.Cmp(one) <= 0 {
		return 0, 0, &PqFactorizationError{PQ: pq}
	}
	if n.Bit(0) == 0 {
		return 2, pq / 2, nil
	}
	if n.ProbablyPrime(20) {
		return 0, 0, &PqFactorizationError{PQ: pq}
	}

	factor, ok := pollardRhoBrent(n)
	if !ok {
		return 0, 0, &PqFactorizationError{PQ: pq}
	}
	other := new(big.Int).Div(n, factor)

	pf, qf := factor.Uint64(), other.Uint64()
	if pf > qf {
		pf, qf = qf, pf
	}
	return pf, qf, nil
}

// pollardRhoBrent tries increasing polynomial constants c until it finds a
// nontrivial divisor of n, stepping x once and y twice per round (Floyd's
// tortoise-and-hare cycle detection). Deterministic (no RNG) so factorization is
// reproducible across retries of the same pq.
func pollardRhoBrent(n *big.Int) (*big.Int, bool) {
	one := big.NewInt(1)

	for c := int64(1); c < 1000; c++ {
		cBig := big.NewInt(c)
		f := func(v *big.Int) *big.Int {
			r := new(big.Int).Mul(v, v)
			r.Add(r, cBig)
			r.Mod(r, n)
			return r
		}

		x, y, d := big.NewInt(2), big.NewInt(2), big.NewInt(1)
		for d.Cmp(one) == 0 {
			x = f(x)
			y = f(f(y))
			diff := new(big.Int).Sub(x, y)
			diff.Abs(diff)
			if diff.Sign() == 0 {
				break
			}
			d = new(big.Int).GCD(nil, nil, diff, n)
		}
		if d.Cmp(one) != 0 && d.Cmp(n) != 0 {
			return d, true
		}
	}
	return nil, false
}
