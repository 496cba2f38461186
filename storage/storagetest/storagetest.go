// Package storagetest is a conformance suite every RaftStorage backend runs.
package storagetest

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xmh1011/raft-storage/fsm"
	"github.com/xmh1011/raft-storage/param"
	"github.com/xmh1011/raft-storage/storage"
	"github.com/xmh1011/raft-storage/storage/inmemory"
)

// Factory creates a fresh, empty storage around sm. The factory owns cleanup.
type Factory func(t *testing.T, sm fsm.StateMachine, opts inmemory.Options) storage.RaftStorage

const nodeID param.NodeID = 1

// Run executes the whole suite against newStore.
func Run(t *testing.T, newStore Factory) {
	open := func(t *testing.T) (storage.RaftStorage, *fsm.KV) {
		kv := fsm.NewKV()
		return newStore(t, kv, inmemory.Options{NodeID: nodeID}), kv
	}

	t.Run("PristineBootstrap", func(t *testing.T) { testPristineBootstrap(t, open) })
	t.Run("HardState", func(t *testing.T) { testHardState(t, open) })
	t.Run("RangeSemantics", func(t *testing.T) { testRangeSemantics(t, open) })
	t.Run("OverwriteConflictingSuffix", func(t *testing.T) { testOverwrite(t, open) })
	t.Run("TruncationSafety", func(t *testing.T) { testTruncationSafety(t, open) })
	t.Run("ApplyResponses", func(t *testing.T) { testApplyResponses(t, open) })
	t.Run("ApplyOrdering", func(t *testing.T) { testApplyOrdering(t, open) })
	t.Run("MembershipDominance", func(t *testing.T) { testMembershipDominance(t, open) })
	t.Run("MonotonicApply", func(t *testing.T) { testMonotonicApply(t, open) })
	t.Run("Compaction", func(t *testing.T) { testCompaction(t, open) })
	t.Run("CompactionAfterPrefixPurge", func(t *testing.T) { testCompactionAfterPrefixPurge(t, open) })
	t.Run("CompactionAfterTruncation", func(t *testing.T) { testCompactionAfterTruncation(t, open) })
	t.Run("CompactionIdempotence", func(t *testing.T) { testCompactionIdempotence(t, open) })
	t.Run("CompactionDuringApply", func(t *testing.T) { testCompactionDuringApply(t, open) })
	t.Run("SnapshotTransfer", func(t *testing.T) { testSnapshotTransfer(t, open) })
	t.Run("StaleSnapshotIgnored", func(t *testing.T) { testStaleSnapshot(t, open) })
	t.Run("LogRetention", func(t *testing.T) {
		kv := fsm.NewKV()
		testLogRetention(t, newStore(t, kv, inmemory.Options{NodeID: nodeID, LogRetention: 5}))
	})
	t.Run("DefensiveMode", func(t *testing.T) {
		kv := fsm.NewKV()
		testDefensive(t, newStore(t, kv, inmemory.Options{NodeID: nodeID, Defensive: true}))
	})
	t.Run("Closed", func(t *testing.T) { testClosed(t, open) })
}

type opener func(t *testing.T) (storage.RaftStorage, *fsm.KV)

// NormalEntries returns Normal entries [start, end] that each set a distinct key.
func NormalEntries(term, start, end uint64) []param.Entry {
	entries := make([]param.Entry, 0, end-start+1)
	for i := start; i <= end; i++ {
		cmd := fsm.NewSetCommand(fmt.Sprintf("key-%d", i), fmt.Sprintf("value-%d", i))
		entries = append(entries, param.NewEntry(term, i, param.NewNormalPayload(cmd)))
	}
	return entries
}

// AppendAndApply appends entries and applies them in one batch.
func AppendAndApply(t *testing.T, s storage.RaftStorage, entries []param.Entry) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.AppendToLog(ctx, entries))
	_, err := s.ApplyToStateMachine(ctx, entries)
	require.NoError(t, err)
}

func indices(entries []param.Entry) []uint64 {
	out := make([]uint64, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.LogID.Index)
	}
	return out
}

func membershipEntry(term, index uint64, voters ...param.NodeID) param.Entry {
	return param.NewEntry(term, index, param.NewMembershipPayload(param.NewMembership(voters, nil)))
}

func testPristineBootstrap(t *testing.T, open opener) {
	ctx := context.Background()
	s, _ := open(t)

	hs, err := s.ReadHardState(ctx)
	require.NoError(t, err)
	assert.Nil(t, hs, "pristine node has no hard state")

	st, err := s.GetInitialState(ctx)
	require.NoError(t, err)
	assert.Equal(t, param.LogID{}, st.LastLogID)
	assert.Equal(t, param.LogID{}, st.LastApplied)
	assert.Equal(t, uint64(0), st.HardState.CurrentTerm)
	assert.Nil(t, st.HardState.VotedFor)
	assert.Equal(t, []param.NodeID{nodeID}, st.LastMembership.Membership.Voters)
	assert.Equal(t, param.LogID{}, st.LastMembership.LogID)

	hs, err = s.ReadHardState(ctx)
	require.NoError(t, err)
	require.NotNil(t, hs, "the first GetInitialState persists the empty hard state")

	again, err := s.GetInitialState(ctx)
	require.NoError(t, err)
	assert.Equal(t, st, again)

	first, err := s.FirstIDInLog(ctx)
	require.NoError(t, err)
	assert.Nil(t, first)

	snap, err := s.GetCurrentSnapshot(ctx)
	require.NoError(t, err)
	assert.Nil(t, snap)

	mem, err := s.GetMembership(ctx)
	require.NoError(t, err)
	assert.Nil(t, mem)
}

func testHardState(t *testing.T, open opener) {
	ctx := context.Background()
	s, _ := open(t)

	vote := param.NodeID(2)
	require.NoError(t, s.SaveHardState(ctx, param.NewHardState(5, &vote)))

	hs, err := s.ReadHardState(ctx)
	require.NoError(t, err)
	require.NotNil(t, hs)
	assert.Equal(t, uint64(5), hs.CurrentTerm)
	require.NotNil(t, hs.VotedFor)
	assert.Equal(t, param.NodeID(2), *hs.VotedFor)

	// 调用者之后修改自己的变量不影响已保存的值
	vote = 9
	hs, err = s.ReadHardState(ctx)
	require.NoError(t, err)
	assert.Equal(t, param.NodeID(2), *hs.VotedFor)

	require.NoError(t, s.SaveHardState(ctx, param.NewHardState(6, nil)))
	hs, err = s.ReadHardState(ctx)
	require.NoError(t, err)
	assert.True(t, hs.Equal(param.NewHardState(6, nil)))

	st, err := s.GetInitialState(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(6), st.HardState.CurrentTerm)
}

func testRangeSemantics(t *testing.T, open opener) {
	ctx := context.Background()
	s, _ := open(t)
	require.NoError(t, s.AppendToLog(ctx, NormalEntries(1, 1, 10)))

	got, err := s.GetLogEntries(ctx, param.Range(3, 7))
	require.NoError(t, err)
	assert.Equal(t, []uint64{3, 4, 5, 6}, indices(got))

	got, err = s.GetLogEntries(ctx, param.From(8))
	require.NoError(t, err)
	assert.Equal(t, []uint64{8, 9, 10}, indices(got))

	got, err = s.GetLogEntries(ctx, param.Range(4, 4))
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = s.GetLogEntries(ctx, param.Range(8, 13))
	assert.ErrorIs(t, err, param.ErrLogNotFound, "strict read past the tail")
	assert.True(t, param.IsFatal(err))

	got, err = s.TryGetLogEntries(ctx, param.Range(8, 13))
	require.NoError(t, err)
	assert.Equal(t, []uint64{8, 9, 10}, indices(got), "tolerant read returns what exists")

	e, err := s.TryGetLogEntry(ctx, 5)
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, param.NewLogID(1, 5), e.LogID)

	e, err = s.TryGetLogEntry(ctx, 11)
	require.NoError(t, err)
	assert.Nil(t, e, "absence is not an error")

	first, err := s.FirstIDInLog(ctx)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, param.NewLogID(1, 1), *first)

	last, err := s.LastIDInLog(ctx)
	require.NoError(t, err)
	assert.Equal(t, param.NewLogID(1, 10), last)

	// 前缀清理之后，严格读取被清理的部分会失败
	require.NoError(t, s.DeleteLogsFrom(ctx, param.Until(4)))
	_, err = s.GetLogEntries(ctx, param.Range(2, 6))
	assert.ErrorIs(t, err, param.ErrLogNotFound)
	got, err = s.TryGetLogEntries(ctx, param.Range(2, 6))
	require.NoError(t, err)
	assert.Equal(t, []uint64{4, 5}, indices(got))

	first, err = s.FirstIDInLog(ctx)
	require.NoError(t, err)
	assert.Equal(t, param.NewLogID(1, 4), *first)
}

func testOverwrite(t *testing.T, open opener) {
	ctx := context.Background()
	s, _ := open(t)
	require.NoError(t, s.AppendToLog(ctx, NormalEntries(1, 1, 6)))

	require.NoError(t, s.DeleteLogsFrom(ctx, param.From(4)))
	last, err := s.LastIDInLog(ctx)
	require.NoError(t, err)
	assert.Equal(t, param.NewLogID(1, 3), last)

	require.NoError(t, s.AppendToLog(ctx, NormalEntries(2, 4, 5)))
	got, err := s.GetLogEntries(ctx, param.Range(1, 6))
	require.NoError(t, err)
	require.Len(t, got, 5)
	assert.Equal(t, param.NewLogID(1, 3), got[2].LogID)
	assert.Equal(t, param.NewLogID(2, 4), got[3].LogID)
	assert.Equal(t, param.NewLogID(2, 5), got[4].LogID)

	// 每个条目按自身索引落位，重叠追加直接覆盖
	require.NoError(t, s.AppendToLog(ctx, NormalEntries(3, 5, 5)))
	e, err := s.TryGetLogEntry(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, param.NewLogID(3, 5), e.LogID)
}

func testTruncationSafety(t *testing.T, open opener) {
	ctx := context.Background()
	s, _ := open(t)
	require.NoError(t, s.AppendToLog(ctx, NormalEntries(1, 1, 10)))
	_, err := s.ApplyToStateMachine(ctx, NormalEntries(1, 1, 5))
	require.NoError(t, err)

	require.NoError(t, s.DeleteLogsFrom(ctx, param.From(8)))
	got, err := s.GetLogEntries(ctx, param.Range(1, 8))
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2, 3, 4, 5, 6, 7}, indices(got), "entries below k are untouched")

	err = s.DeleteLogsFrom(ctx, param.From(3))
	assert.ErrorIs(t, err, param.ErrTruncateApplied)
	assert.True(t, param.IsFatal(err))

	err = s.DeleteLogsFrom(ctx, param.From(5))
	assert.ErrorIs(t, err, param.ErrTruncateApplied, "deleting at the applied index is rejected")

	last, err := s.LastIDInLog(ctx)
	require.NoError(t, err)
	assert.Equal(t, param.NewLogID(1, 7), last, "a rejected truncation leaves the log intact")

	require.NoError(t, s.DeleteLogsFrom(ctx, param.From(6)))
	last, err = s.LastIDInLog(ctx)
	require.NoError(t, err)
	assert.Equal(t, param.NewLogID(1, 5), last)

	// 从首条日志开始的无界删除同样是后缀截断
	err = s.DeleteLogsFrom(ctx, param.From(1))
	assert.ErrorIs(t, err, param.ErrTruncateApplied)
	err = s.DeleteLogsFrom(ctx, param.From(0))
	assert.ErrorIs(t, err, param.ErrTruncateApplied)
	got, err = s.GetLogEntries(ctx, param.From(1))
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2, 3, 4, 5}, indices(got))

	// 有界的前缀清理可以越过已应用的位置
	require.NoError(t, s.DeleteLogsFrom(ctx, param.Until(4)))
	first, err := s.FirstIDInLog(ctx)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, param.NewLogID(1, 4), *first)
}

func testCompactionAfterPrefixPurge(t *testing.T, open opener) {
	ctx := context.Background()
	s, _ := open(t)
	require.NoError(t, s.AppendToLog(ctx, NormalEntries(1, 1, 12)))
	_, err := s.ApplyToStateMachine(ctx, NormalEntries(1, 1, 6))
	require.NoError(t, err)

	require.NoError(t, s.DeleteLogsFrom(ctx, param.Until(10)))
	snap, err := s.DoLogCompaction(ctx)
	require.NoError(t, err)
	assert.Equal(t, param.NewLogID(1, 6), snap.Meta.LastLogID)
	require.NoError(t, snap.Data.Close())

	last, err := s.LastIDInLog(ctx)
	require.NoError(t, err)
	assert.Equal(t, param.NewLogID(1, 12), last, "entries past the applied index survive compaction")

	got, err := s.GetLogEntries(ctx, param.From(10))
	require.NoError(t, err)
	assert.Equal(t, []uint64{10, 11, 12}, indices(got))
	for _, e := range got {
		assert.Equal(t, param.EntryNormal, e.Payload.Type)
	}

	first, err := s.FirstIDInLog(ctx)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, param.NewLogID(1, 10), *first, "no marker is placed away from the remaining log")
}

func testCompactionAfterTruncation(t *testing.T, open opener) {
	ctx := context.Background()
	s, _ := open(t)
	require.NoError(t, s.AppendToLog(ctx, NormalEntries(1, 1, 10)))
	_, err := s.ApplyToStateMachine(ctx, NormalEntries(1, 1, 5))
	require.NoError(t, err)

	require.NoError(t, s.DeleteLogsFrom(ctx, param.From(8)))
	snap, err := s.DoLogCompaction(ctx)
	require.NoError(t, err)
	require.NoError(t, snap.Data.Close())

	got, err := s.TryGetLogEntries(ctx, param.From(0))
	require.NoError(t, err)
	assert.Equal(t, []uint64{5, 6, 7}, indices(got))
	assert.Equal(t, param.EntrySnapshotPointer, got[0].Payload.Type)
	assert.Equal(t, param.EntryNormal, got[2].Payload.Type)

	last, err := s.LastIDInLog(ctx)
	require.NoError(t, err)
	assert.Equal(t, param.NewLogID(1, 7), last)
}

func testApplyResponses(t *testing.T, open opener) {
	ctx := context.Background()
	s, kv := open(t)

	entries := []param.Entry{
		param.NewEntry(1, 1, param.NewBlankPayload()),
		param.NewEntry(1, 2, param.NewNormalPayload(fsm.NewSetCommand("a", "1"))),
		membershipEntry(1, 3, 1, 2, 3),
		param.NewEntry(1, 4, param.NewNormalPayload([]byte(`{"op":"incr","key":"a"}`))),
	}
	require.NoError(t, s.AppendToLog(ctx, entries))

	resp, err := s.ApplyToStateMachine(ctx, entries)
	require.NoError(t, err)
	require.Len(t, resp, 4, "one response slot per entry")
	assert.Nil(t, resp[0])
	assert.Nil(t, resp[1])
	assert.Nil(t, resp[2], "membership entries take a placeholder slot")
	assert.Error(t, resp[3].(error), "application-level failures are responses")

	val, err := kv.Get("a")
	require.NoError(t, err)
	assert.Equal(t, "1", val)

	applied, mem, err := s.LastAppliedState(ctx)
	require.NoError(t, err)
	assert.Equal(t, param.NewLogID(1, 4), applied)
	require.NotNil(t, mem)
	assert.Equal(t, param.NewLogID(1, 3), mem.LogID)
	assert.Equal(t, []param.NodeID{1, 2, 3}, mem.Membership.Voters)
}

func testApplyOrdering(t *testing.T, open opener) {
	ctx := context.Background()
	s, kv := open(t)
	require.NoError(t, s.AppendToLog(ctx, NormalEntries(1, 1, 10)))

	_, err := s.ApplyToStateMachine(ctx, NormalEntries(1, 2, 3))
	assert.ErrorIs(t, err, param.ErrApplyOutOfOrder, "first batch must start at index 1")
	assert.True(t, param.IsFatal(err))

	AppendAndApply(t, s, NormalEntries(1, 1, 3))

	gapped := append(NormalEntries(1, 4, 4), NormalEntries(1, 6, 6)...)
	_, err = s.ApplyToStateMachine(ctx, gapped)
	assert.ErrorIs(t, err, param.ErrApplyOutOfOrder)

	_, err = s.ApplyToStateMachine(ctx, NormalEntries(1, 3, 4))
	assert.ErrorIs(t, err, param.ErrApplyOutOfOrder, "re-applying an index is rejected")

	pointer := param.NewPurgedMarker(param.SnapshotMeta{LastLogID: param.NewLogID(1, 5), SnapshotID: "x"})
	_, err = s.ApplyToStateMachine(ctx, append(NormalEntries(1, 4, 4), pointer))
	assert.ErrorIs(t, err, param.ErrSnapshotPointerApplied)

	applied, _, err := s.LastAppliedState(ctx)
	require.NoError(t, err)
	assert.Equal(t, param.NewLogID(1, 3), applied, "rejected batches apply nothing")
	assert.Equal(t, 3, kv.Len())

	_, err = s.ApplyToStateMachine(ctx, NormalEntries(1, 4, 10))
	require.NoError(t, err)
	applied, _, err = s.LastAppliedState(ctx)
	require.NoError(t, err)
	assert.Equal(t, param.NewLogID(1, 10), applied)
}

func testMembershipDominance(t *testing.T, open opener) {
	ctx := context.Background()
	s, _ := open(t)

	entries := NormalEntries(1, 1, 12)
	entries[4] = membershipEntry(1, 5, 1, 2)
	entries[8] = membershipEntry(1, 9, 1, 2, 3)
	require.NoError(t, s.AppendToLog(ctx, entries))
	_, err := s.ApplyToStateMachine(ctx, entries[:6])
	require.NoError(t, err)

	_, smMem, err := s.LastAppliedState(ctx)
	require.NoError(t, err)
	require.NotNil(t, smMem)
	assert.Equal(t, uint64(5), smMem.LogID.Index)

	mem, err := s.GetMembership(ctx)
	require.NoError(t, err)
	require.NotNil(t, mem)
	assert.Equal(t, param.NewLogID(1, 9), mem.LogID, "unapplied log membership dominates")
	assert.Equal(t, []param.NodeID{1, 2, 3}, mem.Membership.Voters)

	require.NoError(t, s.SaveHardState(ctx, param.NewHardState(1, nil)))
	st, err := s.GetInitialState(ctx)
	require.NoError(t, err)
	assert.Equal(t, param.NewLogID(1, 9), st.LastMembership.LogID)
	assert.Equal(t, param.NewLogID(1, 12), st.LastLogID)
	assert.Equal(t, param.NewLogID(1, 6), st.LastApplied)

	require.NoError(t, s.DeleteLogsFrom(ctx, param.Until(10)))
	mem, err = s.GetMembership(ctx)
	require.NoError(t, err)
	require.NotNil(t, mem)
	assert.Equal(t, param.NewLogID(1, 5), mem.LogID, "falls back to the applied membership")
}

func testMonotonicApply(t *testing.T, open opener) {
	const (
		total = 10000
		batch = 100
	)
	ctx := context.Background()
	s, kv := open(t)

	entries := NormalEntries(1, 1, total)
	for i := 0; i < total; i += batch {
		require.NoError(t, s.AppendToLog(ctx, entries[i:i+batch]))
	}

	stop := make(chan struct{})
	var (
		wg        sync.WaitGroup
		observed  int
		violation string
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		var prev uint64
		for {
			select {
			case <-stop:
				return
			default:
			}
			applied, _, err := s.LastAppliedState(ctx)
			if err != nil {
				violation = err.Error()
				return
			}
			if applied.Index < prev {
				violation = fmt.Sprintf("applied index went from %d to %d", prev, applied.Index)
				return
			}
			if applied.Index%batch != 0 {
				violation = fmt.Sprintf("observed index %d inside a batch", applied.Index)
				return
			}
			prev = applied.Index
			observed++
		}
	}()

	for i := 0; i < total; i += batch {
		resp, err := s.ApplyToStateMachine(ctx, entries[i:i+batch])
		require.NoError(t, err)
		require.Len(t, resp, batch)

		applied, _, err := s.LastAppliedState(ctx)
		require.NoError(t, err)
		require.Equal(t, uint64(i+batch), applied.Index, "each batch advances by exactly its size")
	}
	close(stop)
	wg.Wait()

	assert.Empty(t, violation)
	assert.Positive(t, observed)

	applied, _, err := s.LastAppliedState(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(total), applied.Index)
	assert.Equal(t, total, kv.Len())
}

func testCompaction(t *testing.T, open opener) {
	ctx := context.Background()
	s, _ := open(t)

	entries := NormalEntries(1, 1, 25)
	entries[2] = membershipEntry(1, 3, 1, 2)
	require.NoError(t, s.AppendToLog(ctx, entries))
	_, err := s.ApplyToStateMachine(ctx, entries[:20])
	require.NoError(t, err)

	snap, err := s.DoLogCompaction(ctx)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, param.NewLogID(1, 20), snap.Meta.LastLogID)
	assert.NotEmpty(t, snap.Meta.SnapshotID)
	require.NoError(t, snap.Data.Close())

	cur, err := s.GetCurrentSnapshot(ctx)
	require.NoError(t, err)
	require.NotNil(t, cur)
	assert.Equal(t, snap.Meta, cur.Meta)
	data, err := io.ReadAll(cur.Data)
	require.NoError(t, err)
	assert.NotEmpty(t, data)

	got, err := s.TryGetLogEntries(ctx, param.Range(0, 21))
	require.NoError(t, err)
	require.Len(t, got, 1, "only the boundary marker survives up to the snapshot")
	assert.Equal(t, param.EntrySnapshotPointer, got[0].Payload.Type)
	assert.Equal(t, param.NewLogID(1, 20), got[0].LogID)

	first, err := s.FirstIDInLog(ctx)
	require.NoError(t, err)
	assert.Equal(t, param.NewLogID(1, 20), *first)

	known, err := s.FirstKnownLogID(ctx)
	require.NoError(t, err)
	assert.Equal(t, param.NewLogID(1, 20), known)

	got, err = s.GetLogEntries(ctx, param.Range(21, 26))
	require.NoError(t, err)
	assert.Equal(t, []uint64{21, 22, 23, 24, 25}, indices(got), "entries past the boundary are kept")

	mem, err := s.GetMembership(ctx)
	require.NoError(t, err)
	assert.Equal(t, param.NewLogID(1, 3), mem.LogID)
}

func testCompactionIdempotence(t *testing.T, open opener) {
	ctx := context.Background()
	src, srcKV := open(t)
	AppendAndApply(t, src, NormalEntries(1, 1, 30))

	first, err := src.DoLogCompaction(ctx)
	require.NoError(t, err)
	second, err := src.DoLogCompaction(ctx)
	require.NoError(t, err)

	assert.Equal(t, first.Meta.LastLogID, second.Meta.LastLogID)
	assert.NotEqual(t, first.Meta.SnapshotID, second.Meta.SnapshotID)

	cur, err := src.GetCurrentSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.Meta, cur.Meta)

	for name, snap := range map[string]*param.Snapshot{"first": first, "second": second} {
		t.Run(name, func(t *testing.T) {
			dst, dstKV := open(t)
			changes := install(t, dst, snap)
			assert.Equal(t, param.NewLogID(1, 30), changes.LastApplied)

			applied, _, err := dst.LastAppliedState(ctx)
			require.NoError(t, err)
			assert.Equal(t, param.NewLogID(1, 30), applied)
			assert.Equal(t, srcKV.Dump(), dstKV.Dump())
		})
	}
}

func testCompactionDuringApply(t *testing.T, open opener) {
	ctx := context.Background()
	s, _ := open(t)

	const total = 2000
	entries := NormalEntries(1, 1, total)
	require.NoError(t, s.AppendToLog(ctx, entries))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < total; i += 50 {
			if _, err := s.ApplyToStateMachine(ctx, entries[i:i+50]); err != nil {
				return
			}
		}
	}()

	var snaps []*param.Snapshot
	for len(snaps) < 5 {
		snap, err := s.DoLogCompaction(ctx)
		require.NoError(t, err)
		snaps = append(snaps, snap)
		time.Sleep(time.Millisecond)
	}
	<-done

	applied, _, err := s.LastAppliedState(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(total), applied.Index)

	// 每个快照的内容必须与它声明的边界完全一致
	for _, snap := range snaps {
		dst, dstKV := open(t)
		install(t, dst, snap)
		assert.Equal(t, int(snap.Meta.LastLogID.Index), dstKV.Len(), "snapshot %s", snap.Meta.SnapshotID)
	}
}

func install(t *testing.T, dst storage.RaftStorage, snap *param.Snapshot) param.StateMachineChanges {
	t.Helper()
	ctx := context.Background()

	sink, err := dst.BeginReceivingSnapshot(ctx)
	require.NoError(t, err)
	_, err = snap.Data.Seek(0, io.SeekStart)
	require.NoError(t, err)
	_, err = io.Copy(sink, snap.Data)
	require.NoError(t, err)

	changes, err := dst.FinalizeSnapshotInstallation(ctx, snap.Meta, sink)
	require.NoError(t, err)
	return changes
}

func testSnapshotTransfer(t *testing.T, open opener) {
	ctx := context.Background()
	leader, leaderKV := open(t)

	entries := NormalEntries(2, 1, 40)
	entries[9] = membershipEntry(2, 10, 1, 2, 3)
	AppendAndApply(t, leader, entries)
	snap, err := leader.DoLogCompaction(ctx)
	require.NoError(t, err)

	follower, followerKV := open(t)
	require.NoError(t, follower.AppendToLog(ctx, NormalEntries(1, 1, 50)))
	AppendAndApply(t, follower, NormalEntries(1, 1, 5))

	changes := install(t, follower, snap)
	assert.True(t, changes.IsSnapshot)
	assert.True(t, changes.MembershipChanged)
	assert.Equal(t, param.NewLogID(2, 40), changes.LastApplied)

	applied, mem, err := follower.LastAppliedState(ctx)
	require.NoError(t, err)
	assert.Equal(t, param.NewLogID(2, 40), applied)
	require.NotNil(t, mem)
	assert.Equal(t, param.NewLogID(2, 10), mem.LogID)
	assert.Equal(t, leaderKV.Dump(), followerKV.Dump())

	cur, err := follower.GetCurrentSnapshot(ctx)
	require.NoError(t, err)
	require.NotNil(t, cur)
	assert.Equal(t, snap.Meta, cur.Meta)

	// 与快照冲突的旧日志全部清理，只剩边界标记
	got, err := follower.TryGetLogEntries(ctx, param.From(0))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, param.EntrySnapshotPointer, got[0].Payload.Type)
	assert.Equal(t, snap.Meta, *got[0].Payload.SnapshotMeta)

	last, err := follower.LastIDInLog(ctx)
	require.NoError(t, err)
	assert.Equal(t, param.NewLogID(2, 40), last)

	known, err := follower.FirstKnownLogID(ctx)
	require.NoError(t, err)
	assert.Equal(t, param.NewLogID(2, 40), known)

	// 安装后继续应用
	next := NormalEntries(2, 41, 45)
	require.NoError(t, follower.DeleteLogsFrom(ctx, param.From(41)))
	AppendAndApply(t, follower, next)
	applied, _, err = follower.LastAppliedState(ctx)
	require.NoError(t, err)
	assert.Equal(t, param.NewLogID(2, 45), applied)
}

func testStaleSnapshot(t *testing.T, open opener) {
	ctx := context.Background()
	old, _ := open(t)
	AppendAndApply(t, old, NormalEntries(1, 1, 5))
	snap, err := old.DoLogCompaction(ctx)
	require.NoError(t, err)

	s, kv := open(t)
	AppendAndApply(t, s, NormalEntries(1, 1, 8))

	changes := install(t, s, snap)
	assert.False(t, changes.IsSnapshot)
	assert.Equal(t, param.NewLogID(1, 8), changes.LastApplied)
	assert.Equal(t, 8, kv.Len())

	cur, err := s.GetCurrentSnapshot(ctx)
	require.NoError(t, err)
	assert.Nil(t, cur, "an ignored snapshot does not become current")
}

func testLogRetention(t *testing.T, s storage.RaftStorage) {
	ctx := context.Background()
	AppendAndApply(t, s, NormalEntries(1, 1, 20))
	require.NoError(t, s.AppendToLog(ctx, NormalEntries(1, 21, 22)))

	_, err := s.DoLogCompaction(ctx)
	require.NoError(t, err)

	first, err := s.FirstIDInLog(ctx)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, param.NewLogID(1, 16), *first, "five entries up to the boundary are retained")

	got, err := s.GetLogEntries(ctx, param.From(16))
	require.NoError(t, err)
	assert.Equal(t, []uint64{16, 17, 18, 19, 20, 21, 22}, indices(got))
	assert.Equal(t, param.EntryNormal, got[4].Payload.Type, "no marker when the boundary entry survives")
}

func testDefensive(t *testing.T, s storage.RaftStorage) {
	ctx := context.Background()
	require.NoError(t, s.AppendToLog(ctx, NormalEntries(2, 1, 5)))

	err := s.AppendToLog(ctx, NormalEntries(2, 7, 8))
	assert.ErrorIs(t, err, param.ErrNonContiguousEntries, "hole after the tail")

	gapped := append(NormalEntries(2, 6, 6), NormalEntries(2, 8, 8)...)
	err = s.AppendToLog(ctx, gapped)
	assert.ErrorIs(t, err, param.ErrNonContiguousEntries)

	err = s.AppendToLog(ctx, NormalEntries(1, 6, 6))
	assert.ErrorIs(t, err, param.ErrNonContiguousEntries, "term must not decrease")

	require.NoError(t, s.AppendToLog(ctx, NormalEntries(3, 4, 6)))

	err = s.DeleteLogsFrom(ctx, param.Range(5, 5))
	assert.ErrorIs(t, err, param.ErrInvalidRange)

	_, err = s.TryGetLogEntries(ctx, param.Range(6, 3))
	assert.ErrorIs(t, err, param.ErrInvalidRange)
}

func testClosed(t *testing.T, open opener) {
	ctx := context.Background()
	s, _ := open(t)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "closing twice is harmless")

	err := s.AppendToLog(ctx, NormalEntries(1, 1, 1))
	assert.ErrorIs(t, err, param.ErrStorageClosed)
	assert.True(t, param.IsFatal(err))

	_, _, err = s.LastAppliedState(ctx)
	assert.ErrorIs(t, err, param.ErrStorageClosed)
}
