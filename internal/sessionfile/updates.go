// Copyright 2015-2021 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package sessionfile

import (
	"strconv"

	"github.com/telecraft/mtproto/internal/mterr"
	"github.com/telecraft/mtproto/internal/updates"
)

// UpdatesRecord is the durable form of an updates.State: JSON object keys
// must be strings, so ChannelPts is keyed by the decimal channel id rather
// than the int64 the engine uses in memory.
type UpdatesRecord struct {
	Version    int              `json:"version"`
	Pts        int32            `json:"pts"`
	Qts        int32            `json:"qts"`
	Date       int32            `json:"date"`
	Seq        int32            `json:"seq"`
	ChannelPts map[string]int32 `json:"channel_pts"`
}

// FromUpdatesState converts an in-memory updates.State snapshot to its
// durable form.
func FromUpdatesState(s updates.State) UpdatesRecord {
	cp := make(map[string]int32, len(s.ChannelPts))
	for id, pts := range s.ChannelPts {
		cp[strconv.FormatInt(id, 10)] = pts
	}
	return UpdatesRecord{
		Version:    CurrentVersion,
		Pts:        s.Pts,
		Qts:        s.Qts,
		Date:       s.Date,
		Seq:        s.Seq,
		ChannelPts: cp,
	}
}

// ToUpdatesState converts a loaded UpdatesRecord back to an updates.State
// ready to hand to Engine.Seed.
func (r UpdatesRecord) ToUpdatesState() (updates.State, error) {
	cp := make(map[int64]int32, len(r.ChannelPts))
	for k, v := range r.ChannelPts {
		id, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			return updates.State{}, &mterr.SessionFileError{Reason: "channel_pts key " + k + " is not an integer"}
		}
		cp[id] = v
	}
	return updates.State{Pts: r.Pts, Qts: r.Qts, Date: r.Date, Seq: r.Seq, ChannelPts: cp}, nil
}

// SaveUpdates atomically rewrites path with the given updates state.
func SaveUpdates(path string, s updates.State) error {
	return atomicWriteJSON(path, FromUpdatesState(s))
}

// LoadUpdates reads and validates path, refusing a version mismatch the
// same way LoadSession does.
func LoadUpdates(path string) (updates.State, error) {
	var r UpdatesRecord
	if err := loadJSON(path, &r); err != nil {
		return updates.State{}, err
	}
	if r.Version != CurrentVersion {
		return updates.State{}, &mterr.SessionFileError{
			Path:   path,
			Reason: "version mismatch: found " + strconv.Itoa(r.Version) + ", want " + strconv.Itoa(CurrentVersion),
		}
	}
	return r.ToUpdatesState()
}
