// Copyright 2015-2021 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package updates

import "github.com/telecraft/mtproto/internal/tl"

// channelDifferenceLimit bounds how many messages a single
// updates.getChannelDifference call asks for; the server caps it further on
// its own side, this is just the client's ask.
const channelDifferenceLimit = 100

type getDifferenceRequest struct {
	pts, date, qts int32
}

func (r getDifferenceRequest) AsObject() *tl.Object {
	return &tl.Object{
		ID:   combinator("updates.getDifference").ID,
		Name: "updates.getDifference",
		Fields: map[string]interface{}{
			"pts":  r.pts,
			"date": r.date,
			"qts":  r.qts,
		},
	}
}
func (r getDifferenceRequest) ResultType() tl.TypeRef { return "updates.Difference" }

type getChannelDifferenceRequest struct {
	channelID int64
	pts       int32
}

func (r getChannelDifferenceRequest) AsObject() *tl.Object {
	return &tl.Object{
		ID:   combinator("updates.getChannelDifference").ID,
		Name: "updates.getChannelDifference",
		Fields: map[string]interface{}{
			"channel_id": r.channelID,
			"pts":        r.pts,
			"limit":      int32(channelDifferenceLimit),
		},
	}
}
func (r getChannelDifferenceRequest) ResultType() tl.TypeRef { return "updates.ChannelDifference" }

type getStateRequest struct{}

func (r getStateRequest) AsObject() *tl.Object {
	return &tl.Object{ID: combinator("updates.getState").ID, Name: "updates.getState"}
}
func (r getStateRequest) ResultType() tl.TypeRef { return "updates.State" }
