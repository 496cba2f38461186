// Package resolve derives views that every storage backend computes the same
// way from its primitive reads: the effective membership, the initial state
// handed to the consensus core at startup and the first known log id.
package resolve

import (
	"context"

	"github.com/xmh1011/raft-storage/param"
)

// WindowSize is the number of entries read per step of the backward membership scan.
const WindowSize = 64

// Source is the read-only part of a storage backend the resolver needs.
type Source interface {
	LastAppliedState(ctx context.Context) (param.LogID, *param.EffectiveMembership, error)
	FirstIDInLog(ctx context.Context) (*param.LogID, error)
	LastIDInLog(ctx context.Context) (param.LogID, error)
	TryGetLogEntries(ctx context.Context, r param.LogRange) ([]param.Entry, error)
}

// Membership returns the last membership found in the log or in the state
// machine. A membership entry still in the log past the applied membership
// dominates it.
func Membership(ctx context.Context, src Source) (*param.EffectiveMembership, error) {
	_, smMem, err := src.LastAppliedState(ctx)
	if err != nil {
		return nil, err
	}

	var since uint64
	if smMem != nil {
		since = smMem.LogID.Index + 1
	}

	logMem, err := LastMembershipInLog(ctx, src, since)
	if err != nil {
		return nil, err
	}
	if logMem != nil {
		return logMem, nil
	}
	return smMem, nil
}

// LastMembershipInLog returns the membership entry with the greatest index
// that is >= sinceIndex, or nil when there is none. The log is read backward
// from its tail in windows of WindowSize entries, so the cost grows with the
// distance from the tail to the last membership entry rather than with the
// length of the log.
func LastMembershipInLog(ctx context.Context, src Source, sinceIndex uint64) (*param.EffectiveMembership, error) {
	first, err := src.FirstIDInLog(ctx)
	if err != nil {
		return nil, err
	}
	if first == nil {
		return nil, nil
	}
	last, err := src.LastIDInLog(ctx)
	if err != nil {
		return nil, err
	}

	floor := max(first.Index, sinceIndex)
	end := last.Index + 1
	for end > floor {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		start := floor
		if end-floor > WindowSize {
			start = end - WindowSize
		}

		entries, err := src.TryGetLogEntries(ctx, param.Range(start, end))
		if err != nil {
			return nil, err
		}
		for i := len(entries) - 1; i >= 0; i-- {
			ent := entries[i]
			if ent.Payload.Type == param.EntryMembership && ent.Payload.Membership != nil {
				return param.NewEffectiveMembership(ent.LogID, ent.Payload.Membership.Clone()), nil
			}
		}

		end = start
	}
	return nil, nil
}

// InitialState builds the state read once at node startup. hs is the stored
// hard state, nil for a node that never saved one.
func InitialState(ctx context.Context, src Source, id param.NodeID, hs *param.HardState) (param.InitialState, error) {
	if hs == nil {
		return param.NewInitialState(id), nil
	}

	lastApplied, _, err := src.LastAppliedState(ctx)
	if err != nil {
		return param.InitialState{}, err
	}
	lastLogID, err := src.LastIDInLog(ctx)
	if err != nil {
		return param.InitialState{}, err
	}
	if lastLogID.Less(lastApplied) {
		lastLogID = lastApplied
	}

	membership, err := Membership(ctx, src)
	if err != nil {
		return param.InitialState{}, err
	}
	last := param.NewInitialEffectiveMembership(id)
	if membership != nil {
		last = *membership
	}

	return param.InitialState{
		LastLogID:      lastLogID,
		LastApplied:    lastApplied,
		HardState:      *hs,
		LastMembership: last,
	}, nil
}

// FirstKnownLogID returns the smaller of the first stored log id and the last
// applied log id; everything before it has been folded into the state machine.
func FirstKnownLogID(ctx context.Context, src Source) (param.LogID, error) {
	lastApplied, _, err := src.LastAppliedState(ctx)
	if err != nil {
		return param.LogID{}, err
	}
	first, err := src.FirstIDInLog(ctx)
	if err != nil {
		return param.LogID{}, err
	}
	if first == nil {
		return lastApplied, nil
	}
	return param.MinLogID(*first, lastApplied), nil
}
