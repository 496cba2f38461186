package param

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogIDOrdering(t *testing.T) {
	assert.True(t, NewLogID(1, 10).Less(NewLogID(2, 1)), "term dominates index")
	assert.True(t, NewLogID(2, 1).Less(NewLogID(2, 2)))
	assert.False(t, NewLogID(2, 2).Less(NewLogID(2, 2)))
	assert.Equal(t, 0, NewLogID(3, 4).Compare(NewLogID(3, 4)))
	assert.Equal(t, NewLogID(1, 9), MinLogID(NewLogID(2, 1), NewLogID(1, 9)))
	assert.True(t, LogID{}.IsZero())
	assert.Equal(t, "3-7", NewLogID(3, 7).String())
}

func TestLogRange(t *testing.T) {
	t.Run("Contains", func(t *testing.T) {
		r := Range(3, 6)
		assert.False(t, r.Contains(2))
		assert.True(t, r.Contains(3))
		assert.True(t, r.Contains(5))
		assert.False(t, r.Contains(6))
		assert.True(t, From(5).Contains(math.MaxUint64-1))
		assert.True(t, Until(4).Contains(0))
	})

	t.Run("Empty", func(t *testing.T) {
		assert.True(t, Range(5, 5).IsEmpty())
		assert.True(t, Range(6, 5).IsEmpty())
		assert.False(t, From(100).IsEmpty())
		assert.True(t, Until(0).IsEmpty())
	})

	t.Run("Clamp", func(t *testing.T) {
		start, stop, ok := From(0).Clamp(4, 9)
		require.True(t, ok)
		assert.Equal(t, uint64(4), start)
		assert.Equal(t, uint64(10), stop)

		start, stop, ok = Range(6, 8).Clamp(4, 9)
		require.True(t, ok)
		assert.Equal(t, []uint64{6, 8}, []uint64{start, stop})

		_, _, ok = Range(10, 20).Clamp(4, 9)
		assert.False(t, ok)

		_, _, ok = Until(4).Clamp(4, 9)
		assert.False(t, ok)
	})

	t.Run("String", func(t *testing.T) {
		assert.Equal(t, "[1, 5)", Range(1, 5).String())
		assert.Equal(t, "[7, +inf)", From(7).String())
	})
}

func TestMembership(t *testing.T) {
	m := NewMembership([]NodeID{3, 1, 2, 1}, []NodeID{5, 2, 4, 4})
	assert.Equal(t, []NodeID{1, 2, 3}, m.Voters)
	assert.Equal(t, []NodeID{4, 5}, m.Learners, "voters are dropped from learners")
	assert.True(t, m.IsVoter(2))
	assert.False(t, m.IsVoter(4))
	assert.True(t, m.Contains(4))
	assert.False(t, m.Contains(9))

	assert.Nil(t, NewMembership([]NodeID{1}, []NodeID{1}).Learners)

	cp := m.Clone()
	cp.Voters[0] = 42
	assert.Equal(t, NodeID(1), m.Voters[0])

	a := NewEffectiveMembership(NewLogID(1, 3), m)
	b := a.Clone()
	assert.True(t, EqualMembership(a, b))
	b.LogID = NewLogID(1, 4)
	assert.False(t, EqualMembership(a, b))
	assert.True(t, EqualMembership(nil, nil))
	assert.False(t, EqualMembership(a, nil))
	assert.Nil(t, (*EffectiveMembership)(nil).Clone())

	initial := NewInitialEffectiveMembership(7)
	assert.True(t, initial.LogID.IsZero())
	assert.Equal(t, []NodeID{7}, initial.Membership.Voters)
}

func TestEntryClone(t *testing.T) {
	m := NewMembership([]NodeID{1, 2}, nil)
	entries := []Entry{
		NewEntry(1, 1, EntryPayload{Type: EntryNormal, Data: []byte("cmd")}),
		NewEntry(1, 2, NewMembershipPayload(m)),
		NewPurgedMarker(SnapshotMeta{LastLogID: NewLogID(1, 3), SnapshotID: "1-3-x"}),
	}

	for _, e := range entries {
		t.Run(e.Payload.Type.String(), func(t *testing.T) {
			cp := e.Clone()
			assert.Equal(t, e, cp)
			switch e.Payload.Type {
			case EntryNormal:
				cp.Payload.Data[0] = 'X'
				assert.Equal(t, "cmd", string(e.Payload.Data))
			case EntryMembership:
				cp.Payload.Membership.Voters[0] = 9
				assert.Equal(t, NodeID(1), e.Payload.Membership.Voters[0])
			case EntrySnapshotPointer:
				assert.Equal(t, NewLogID(1, 3), e.LogID)
				cp.Payload.SnapshotMeta.SnapshotID = "other"
				assert.Equal(t, "1-3-x", e.Payload.SnapshotMeta.SnapshotID)
			}
		})
	}
}

func TestStorageError(t *testing.T) {
	t.Run("Fatal", func(t *testing.T) {
		err := NewFatal("append_to_log", "1-5", ErrNonContiguousEntries)
		assert.True(t, IsFatal(err))
		assert.False(t, IsRetryable(err))
		assert.ErrorIs(t, err, ErrNonContiguousEntries)
		assert.Equal(t, "raft storage: append_to_log 1-5 (fatal): non-contiguous log entries", err.Error())
	})

	t.Run("Retryable", func(t *testing.T) {
		err := NewRetryable("do_log_compaction", "", errors.New("busy"))
		assert.True(t, IsRetryable(err))
		assert.False(t, IsFatal(err))
		assert.Equal(t, "raft storage: do_log_compaction (retryable): busy", err.Error())
	})

	t.Run("Nil", func(t *testing.T) {
		assert.NoError(t, NewFatal("op", "", nil))
		assert.NoError(t, NewRetryable("op", "", nil))
		assert.False(t, IsFatal(nil))
	})

	t.Run("Plain errors are fatal", func(t *testing.T) {
		assert.True(t, IsFatal(errors.New("unknown")))
	})

	t.Run("Fatal is not rewrapped", func(t *testing.T) {
		inner := NewFatal("save_hard_state", "", errors.New("disk"))
		outer := NewFatal("get_initial_state", "", fmt.Errorf("load: %w", inner))
		var se *StorageError
		require.ErrorAs(t, outer, &se)
		assert.Equal(t, "save_hard_state", se.Op)
	})
}
