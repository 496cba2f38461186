package inmemory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xmh1011/raft-storage/fsm"
	"github.com/xmh1011/raft-storage/metrics"
	"github.com/xmh1011/raft-storage/param"
	"github.com/xmh1011/raft-storage/storage"
	"github.com/xmh1011/raft-storage/storage/inmemory"
	"github.com/xmh1011/raft-storage/storage/storagetest"
)

func TestConformance(t *testing.T) {
	storagetest.Run(t, func(t *testing.T, sm fsm.StateMachine, opts inmemory.Options) storage.RaftStorage {
		s := inmemory.New(sm, opts)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestApplyFailureIsFatal(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	mockSM := fsm.NewMockStateMachine(ctrl)
	s := inmemory.New(mockSM, inmemory.Options{NodeID: 1})

	entries := storagetest.NormalEntries(1, 1, 3)
	require.NoError(t, s.AppendToLog(ctx, entries))

	gomock.InOrder(
		mockSM.EXPECT().Apply(uint64(1), entries[0].Payload.Data).Return("ok", nil),
		mockSM.EXPECT().Apply(uint64(2), entries[1].Payload.Data).Return(nil, errors.New("disk full")),
	)

	_, err := s.ApplyToStateMachine(ctx, entries)
	require.Error(t, err)
	assert.True(t, param.IsFatal(err), "state machine failures halt the node")

	applied, _, err := s.LastAppliedState(ctx)
	require.NoError(t, err)
	assert.Equal(t, param.LogID{}, applied, "a failed batch is never reported as applied")
}

func TestCompactionFailureIsRetryable(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	mockSM := fsm.NewMockStateMachine(ctrl)
	s := inmemory.New(mockSM, inmemory.Options{NodeID: 1})

	entries := storagetest.NormalEntries(1, 1, 4)
	require.NoError(t, s.AppendToLog(ctx, entries))
	mockSM.EXPECT().Apply(gomock.Any(), gomock.Any()).Return(nil, nil).Times(4)
	_, err := s.ApplyToStateMachine(ctx, entries)
	require.NoError(t, err)

	gomock.InOrder(
		mockSM.EXPECT().GetSnapshot().Return([]byte(`{"a":"1"}`), nil),
		mockSM.EXPECT().GetSnapshot().Return(nil, errors.New("export interrupted")),
	)

	first, err := s.DoLogCompaction(ctx)
	require.NoError(t, err)

	_, err = s.DoLogCompaction(ctx)
	require.Error(t, err)
	assert.True(t, param.IsRetryable(err))
	assert.False(t, param.IsFatal(err))

	cur, err := s.GetCurrentSnapshot(ctx)
	require.NoError(t, err)
	require.NotNil(t, cur)
	assert.Equal(t, first.Meta, cur.Meta, "the previous snapshot stays current")
}

func TestInstallFailureIsFatal(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	mockSM := fsm.NewMockStateMachine(ctrl)

	src := inmemory.New(fsm.NewKV(), inmemory.Options{NodeID: 1})
	storagetest.AppendAndApply(t, src, storagetest.NormalEntries(1, 1, 3))
	snap, err := src.DoLogCompaction(ctx)
	require.NoError(t, err)

	dst := inmemory.New(mockSM, inmemory.Options{NodeID: 2})
	mockSM.EXPECT().ApplySnapshot(gomock.Any()).Return(errors.New("corrupt"))

	sink, err := dst.BeginReceivingSnapshot(ctx)
	require.NoError(t, err)
	_, err = sink.Write(snap.Data.(*inmemory.SnapshotBuffer).Bytes())
	require.NoError(t, err)

	_, err = dst.FinalizeSnapshotInstallation(ctx, snap.Meta, sink)
	require.Error(t, err)
	assert.True(t, param.IsFatal(err))

	t.Run("Garbage payload", func(t *testing.T) {
		sink, err := dst.BeginReceivingSnapshot(ctx)
		require.NoError(t, err)
		_, err = sink.Write([]byte("not a snapshot"))
		require.NoError(t, err)
		_, err = dst.FinalizeSnapshotInstallation(ctx, snap.Meta, sink)
		assert.True(t, param.IsFatal(err))
	})

	t.Run("Meta mismatch", func(t *testing.T) {
		meta := snap.Meta
		meta.LastLogID = param.NewLogID(1, 99)
		_, err := dst.FinalizeSnapshotInstallation(ctx, meta, inmemory.NewSnapshotBufferFrom(snap.Data.(*inmemory.SnapshotBuffer).Bytes()))
		assert.True(t, param.IsFatal(err))
	})
}

func TestMetrics(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	m, err := metrics.NewPrometheus(reg)
	require.NoError(t, err)
	s := inmemory.New(fsm.NewKV(), inmemory.Options{NodeID: 7, Metrics: m})

	storagetest.AppendAndApply(t, s, storagetest.NormalEntries(1, 1, 12))
	err = s.DeleteLogsFrom(ctx, param.From(5))
	require.ErrorIs(t, err, param.ErrTruncateApplied)
	_, err = s.DoLogCompaction(ctx)
	require.NoError(t, err)

	count, err := testutil.GatherAndCount(reg,
		"raftstore_state_machine_last_applied_index",
		"raftstore_snapshot_last_index",
		"raftstore_snapshot_compactions_total",
		"raftstore_storage_errors_total",
	)
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}
