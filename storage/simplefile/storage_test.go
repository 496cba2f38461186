package simplefile_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xmh1011/raft-storage/fsm"
	"github.com/xmh1011/raft-storage/param"
	"github.com/xmh1011/raft-storage/storage"
	"github.com/xmh1011/raft-storage/storage/inmemory"
	"github.com/xmh1011/raft-storage/storage/simplefile"
	"github.com/xmh1011/raft-storage/storage/storagetest"
)

func TestConformance(t *testing.T) {
	storagetest.Run(t, func(t *testing.T, sm fsm.StateMachine, opts inmemory.Options) storage.RaftStorage {
		s, err := simplefile.Open(t.TempDir(), sm, opts)
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func openAt(t *testing.T, dir string) (*simplefile.Storage, *fsm.KV) {
	t.Helper()
	kv := fsm.NewKV()
	s, err := simplefile.Open(dir, kv, simplefile.Options{NodeID: 1})
	require.NoError(t, err)
	return s, kv
}

func TestRestart(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, _ := openAt(t, dir)
	voted := param.NodeID(3)
	require.NoError(t, s.SaveHardState(ctx, param.NewHardState(4, &voted)))
	storagetest.AppendAndApply(t, s, storagetest.NormalEntries(4, 1, 10))
	require.NoError(t, s.AppendToLog(ctx, storagetest.NormalEntries(4, 11, 15)))
	require.NoError(t, s.Close())

	s, kv := openAt(t, dir)
	defer s.Close()

	hs, err := s.ReadHardState(ctx)
	require.NoError(t, err)
	require.NotNil(t, hs)
	assert.Equal(t, uint64(4), hs.CurrentTerm)
	require.NotNil(t, hs.VotedFor)
	assert.Equal(t, voted, *hs.VotedFor)

	entries, err := s.GetLogEntries(ctx, param.Range(1, 16))
	require.NoError(t, err)
	assert.Len(t, entries, 15)

	applied, _, err := s.LastAppliedState(ctx)
	require.NoError(t, err)
	assert.Equal(t, param.NewLogID(4, 10), applied)
	assert.Equal(t, 10, kv.Len())
	v, err := kv.Get("key-7")
	require.NoError(t, err)
	assert.Equal(t, "value-7", v)

	// 重启后继续应用，从 lastApplied 之后接上
	_, err = s.ApplyToStateMachine(ctx, storagetest.NormalEntries(4, 11, 15))
	require.NoError(t, err)
	assert.Equal(t, 15, kv.Len())
}

func TestRestartAfterTruncation(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, _ := openAt(t, dir)
	require.NoError(t, s.AppendToLog(ctx, storagetest.NormalEntries(1, 1, 10)))
	require.NoError(t, s.DeleteLogsFrom(ctx, param.From(6)))
	require.NoError(t, s.AppendToLog(ctx, storagetest.NormalEntries(2, 6, 8)))
	require.NoError(t, s.Close())

	s, _ = openAt(t, dir)
	defer s.Close()

	last, err := s.LastIDInLog(ctx)
	require.NoError(t, err)
	assert.Equal(t, param.NewLogID(2, 8), last)

	e, err := s.TryGetLogEntry(ctx, 5)
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, uint64(1), e.LogID.Term)
}

func TestRestartAfterCompaction(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, _ := openAt(t, dir)
	storagetest.AppendAndApply(t, s, storagetest.NormalEntries(1, 1, 20))
	require.NoError(t, s.AppendToLog(ctx, storagetest.NormalEntries(1, 21, 25)))
	snap, err := s.DoLogCompaction(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, kv := openAt(t, dir)
	defer s.Close()

	cur, err := s.GetCurrentSnapshot(ctx)
	require.NoError(t, err)
	require.NotNil(t, cur)
	assert.Equal(t, snap.Meta, cur.Meta)

	first, err := s.FirstIDInLog(ctx)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, param.NewLogID(1, 20), *first)

	marker, err := s.TryGetLogEntry(ctx, 20)
	require.NoError(t, err)
	require.NotNil(t, marker)
	assert.Equal(t, param.EntrySnapshotPointer, marker.Payload.Type)

	entries, err := s.GetLogEntries(ctx, param.Range(21, 26))
	require.NoError(t, err)
	assert.Len(t, entries, 5)
	assert.Equal(t, 20, kv.Len())

	// 只剩一个快照文件
	files, err := filepath.Glob(filepath.Join(s.Dir(), "snapshots", "*.snap"))
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestTornLogTail(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, _ := openAt(t, dir)
	require.NoError(t, s.AppendToLog(ctx, storagetest.NormalEntries(1, 1, 5)))
	require.NoError(t, s.Close())

	path := filepath.Join(dir, "raft.log")
	info, err := os.Stat(path)
	require.NoError(t, err)

	t.Run("Garbage", func(t *testing.T) {
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0644)
		require.NoError(t, err)
		_, err = f.Write([]byte{0x00, 0x00, 0x01})
		require.NoError(t, err)
		require.NoError(t, f.Close())

		s, _ := openAt(t, dir)
		defer s.Close()

		entries, err := s.GetLogEntries(ctx, param.Range(1, 6))
		require.NoError(t, err)
		assert.Len(t, entries, 5)

		after, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, info.Size(), after.Size(), "torn tail is cut off")
	})

	t.Run("Appends after recovery", func(t *testing.T) {
		s, _ := openAt(t, dir)
		require.NoError(t, s.AppendToLog(ctx, storagetest.NormalEntries(1, 6, 7)))
		require.NoError(t, s.Close())

		s, _ = openAt(t, dir)
		defer s.Close()
		last, err := s.LastIDInLog(ctx)
		require.NoError(t, err)
		assert.Equal(t, param.NewLogID(1, 7), last)
	})
}

func TestStrayTempFilesRemoved(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "snapshots"), 0755))

	strays := []string{
		filepath.Join(dir, "hard_state.json.tmp-123"),
		filepath.Join(dir, "snapshots", "recv.tmp-456"),
	}
	for _, p := range strays {
		require.NoError(t, os.WriteFile(p, []byte("partial"), 0644))
	}

	s, _ := openAt(t, dir)
	defer s.Close()

	for _, p := range strays {
		_, err := os.Stat(p)
		assert.True(t, os.IsNotExist(err), "%s should be removed", p)
	}
}

func TestSnapshotNewerThanStateMachine(t *testing.T) {
	ctx := context.Background()
	leaderDir, followerDir := t.TempDir(), t.TempDir()

	leader, _ := openAt(t, leaderDir)
	defer leader.Close()
	storagetest.AppendAndApply(t, leader, storagetest.NormalEntries(1, 1, 30))
	snap, err := leader.DoLogCompaction(ctx)
	require.NoError(t, err)

	follower, _ := openAt(t, followerDir)
	sink, err := follower.BeginReceivingSnapshot(ctx)
	require.NoError(t, err)
	payload, err := io.ReadAll(snap.Data)
	require.NoError(t, err)
	_, err = sink.Write(payload)
	require.NoError(t, err)
	_, err = follower.FinalizeSnapshotInstallation(ctx, snap.Meta, sink)
	require.NoError(t, err)
	require.NoError(t, follower.Close())

	// 模拟快照提交后、状态机文件写入前崩溃
	require.NoError(t, os.Remove(filepath.Join(followerDir, "state_machine.json")))

	follower, kv := openAt(t, followerDir)
	defer follower.Close()

	applied, _, err := follower.LastAppliedState(ctx)
	require.NoError(t, err)
	assert.Equal(t, param.NewLogID(1, 30), applied)
	assert.Equal(t, 30, kv.Len())

	_, err = os.Stat(filepath.Join(followerDir, "state_machine.json"))
	assert.NoError(t, err, "state machine file is rebuilt")

	matches, err := filepath.Glob(filepath.Join(followerDir, "snapshots", "recv.tmp-*"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestSnapshotIDIsNotAPath(t *testing.T) {
	ctx := context.Background()
	leader, _ := openAt(t, t.TempDir())
	defer leader.Close()
	storagetest.AppendAndApply(t, leader, storagetest.NormalEntries(2, 1, 12))
	snap, err := leader.DoLogCompaction(ctx)
	require.NoError(t, err)
	payload, err := io.ReadAll(snap.Data)
	require.NoError(t, err)

	for _, id := range []string{"leader-2/run-7", "../../escape", "a\\b:c"} {
		t.Run(id, func(t *testing.T) {
			dir := t.TempDir()
			follower, _ := openAt(t, dir)

			meta := snap.Meta
			meta.SnapshotID = id
			sink, err := follower.BeginReceivingSnapshot(ctx)
			require.NoError(t, err)
			_, err = sink.Write(payload)
			require.NoError(t, err)
			changes, err := follower.FinalizeSnapshotInstallation(ctx, meta, sink)
			require.NoError(t, err)
			assert.True(t, changes.IsSnapshot)
			require.NoError(t, follower.Close())

			follower, kv := openAt(t, dir)
			defer follower.Close()
			cur, err := follower.GetCurrentSnapshot(ctx)
			require.NoError(t, err)
			require.NotNil(t, cur)
			assert.Equal(t, id, cur.Meta.SnapshotID)
			assert.Equal(t, 12, kv.Len())

			files, err := filepath.Glob(filepath.Join(dir, "snapshots", "*.snap"))
			require.NoError(t, err)
			assert.Len(t, files, 1)
			escaped, err := filepath.Glob(filepath.Join(filepath.Dir(dir), "*.snap"))
			require.NoError(t, err)
			assert.Empty(t, escaped, "nothing is written outside the snapshot directory")
		})
	}
}
