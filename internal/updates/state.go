// Copyright 2015-2021 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package updates

// State is the updates engine's bookkeeping: the global pts/qts/date/seq
// counters plus a per-channel pts map. It is mutated only by the Engine
// holding it; a Snapshot is the only view a concurrent reader gets.
type State struct {
	Pts, Qts, Date, Seq int32
	ChannelPts          map[int64]int32
}

func newState() State {
	return State{ChannelPts: make(map[int64]int32)}
}

// snapshot returns a value copy of s, including a fresh copy of
// ChannelPts so the caller can't observe (or cause) a data race against
// the engine's own mutation of the map.
func (s *State) snapshot() State {
	cp := make(map[int64]int32, len(s.ChannelPts))
	for k, v := range s.ChannelPts {
		cp[k] = v
	}
	return State{Pts: s.Pts, Qts: s.Qts, Date: s.Date, Seq: s.Seq, ChannelPts: cp}
}
