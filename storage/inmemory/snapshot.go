package inmemory

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/xmh1011/raft-storage/codec"
	"github.com/xmh1011/raft-storage/param"
)

// --- 快照操作 ---

// DoLogCompaction 导出状态机并生成新快照，快照边界是导出时的 lastApplied。
// 失败时旧快照及其覆盖的日志保持不变，可以稍后重试。
func (s *Storage) DoLogCompaction(ctx context.Context) (*param.Snapshot, error) {
	const op = "do_log_compaction"
	if err := s.checkUsable(ctx); err != nil {
		return nil, s.retryable(op, "", err)
	}

	s.compactMu.Lock()
	defer s.compactMu.Unlock()

	payload, err := s.exportStateMachine()
	if err != nil {
		s.metrics.IncCompaction(uint64(s.id), "failure")
		return nil, s.retryable(op, "", err)
	}

	var buf bytes.Buffer
	if err := codec.WriteSnapshot(&buf, payload); err != nil {
		s.metrics.IncCompaction(uint64(s.id), "failure")
		return nil, s.retryable(op, payload.LastApplied.String(), err)
	}
	meta := param.SnapshotMeta{
		LastLogID:  payload.LastApplied,
		SnapshotID: newSnapshotID(payload.LastApplied),
	}

	if s.persister != nil {
		if err := s.persister.SaveSnapshot(meta, buf.Bytes()); err != nil {
			s.metrics.IncCompaction(uint64(s.id), "failure")
			return nil, s.retryable(op, meta.SnapshotID, err)
		}
	}
	s.setCurrentSnapshot(meta, buf.Bytes())

	if err := s.purgeCovered(meta, false); err != nil {
		s.metrics.IncCompaction(uint64(s.id), "failure")
		return nil, s.retryable(op, meta.SnapshotID, err)
	}

	s.metrics.IncCompaction(uint64(s.id), "success")
	s.logger.Info("log compacted", "snapshot_id", meta.SnapshotID, "index", meta.LastLogID.Index, "term", meta.LastLogID.Term)
	return &param.Snapshot{Meta: meta, Data: NewSnapshotBufferFrom(buf.Bytes())}, nil
}

// exportStateMachine 在状态机读锁内导出数据，保证数据与 lastApplied、membership 一致。
func (s *Storage) exportStateMachine() (codec.SnapshotPayload, error) {
	s.smMu.RLock()
	defer s.smMu.RUnlock()

	data, err := s.sm.GetSnapshot()
	if err != nil {
		return codec.SnapshotPayload{}, fmt.Errorf("export state machine: %w", err)
	}
	return codec.SnapshotPayload{
		LastApplied:    s.lastApplied,
		LastMembership: s.lastMembership.Clone(),
		Data:           data,
	}, nil
}

func newSnapshotID(last param.LogID) string {
	return fmt.Sprintf("%d-%d-%s", last.Term, last.Index, uuid.NewString())
}

// BeginReceivingSnapshot returns an empty handle for an inbound snapshot transfer.
func (s *Storage) BeginReceivingSnapshot(ctx context.Context) (param.SnapshotData, error) {
	const op = "begin_receiving_snapshot"
	if err := s.checkUsable(ctx); err != nil {
		return nil, s.fatal(op, "", err)
	}
	if s.persister == nil {
		return NewSnapshotBuffer(), nil
	}
	sink, err := s.persister.CreateSnapshotSink()
	if err != nil {
		return nil, s.fatal(op, "", err)
	}
	return sink, nil
}

// FinalizeSnapshotInstallation 用收到的快照整体替换状态机，并把 meta 作为当前快照。
// 旧快照在此时被丢弃；边界之前的日志按保留策略清理。
// 比当前 lastApplied 更旧的快照会被忽略，状态机不会倒退。
func (s *Storage) FinalizeSnapshotInstallation(ctx context.Context, meta param.SnapshotMeta, data param.SnapshotData) (param.StateMachineChanges, error) {
	const op = "finalize_snapshot_installation"
	if err := s.checkUsable(ctx); err != nil {
		return param.StateMachineChanges{}, s.fatal(op, meta.SnapshotID, err)
	}

	raw, err := drain(data)
	if err != nil {
		return param.StateMachineChanges{}, s.fatal(op, meta.SnapshotID, err)
	}
	payload, err := codec.ReadSnapshot(bytes.NewReader(raw))
	if err != nil {
		return param.StateMachineChanges{}, s.fatal(op, meta.SnapshotID, err)
	}
	if payload.LastApplied != meta.LastLogID {
		return param.StateMachineChanges{}, s.fatal(op, meta.SnapshotID,
			fmt.Errorf("payload covers %s but meta claims %s", payload.LastApplied, meta.LastLogID))
	}

	s.compactMu.Lock()
	defer s.compactMu.Unlock()

	changes, installed, err := s.installStateMachine(meta, raw, payload)
	if err != nil {
		return param.StateMachineChanges{}, s.fatal(op, meta.SnapshotID, err)
	}
	if !installed {
		s.logger.Info("stale snapshot ignored", "snapshot_id", meta.SnapshotID, "last_applied", changes.LastApplied.String())
		return changes, nil
	}

	s.setCurrentSnapshot(meta, raw)
	if err := s.purgeCovered(meta, true); err != nil {
		return param.StateMachineChanges{}, s.fatal(op, meta.SnapshotID, err)
	}

	s.logger.Info("snapshot installed", "snapshot_id", meta.SnapshotID, "index", meta.LastLogID.Index,
		"term", meta.LastLogID.Term, "membership_changed", changes.MembershipChanged)
	return changes, nil
}

// installStateMachine 在状态机写锁内完成替换。快照文件先于状态机落盘，
// 因此崩溃后重启总能从较新的快照恢复。
func (s *Storage) installStateMachine(meta param.SnapshotMeta, raw []byte, payload codec.SnapshotPayload) (param.StateMachineChanges, bool, error) {
	s.smMu.Lock()
	defer s.smMu.Unlock()

	if meta.LastLogID.Less(s.lastApplied) {
		return param.StateMachineChanges{LastApplied: s.lastApplied}, false, nil
	}

	if s.persister != nil {
		if err := s.persister.SaveSnapshot(meta, raw); err != nil {
			return param.StateMachineChanges{}, false, err
		}
	}
	if err := s.sm.ApplySnapshot(payload.Data); err != nil {
		return param.StateMachineChanges{}, false, fmt.Errorf("restore state machine: %w", err)
	}
	if s.persister != nil {
		if err := s.persister.SaveStateMachine(payload); err != nil {
			return param.StateMachineChanges{}, false, err
		}
	}

	changed := !param.EqualMembership(s.lastMembership, payload.LastMembership)
	s.lastApplied = payload.LastApplied
	s.lastMembership = payload.LastMembership.Clone()
	s.metrics.SetLastApplied(uint64(s.id), s.lastApplied.Index)

	return param.StateMachineChanges{
		LastApplied:       s.lastApplied,
		IsSnapshot:        true,
		MembershipChanged: changed,
	}, true, nil
}

func drain(data param.SnapshotData) ([]byte, error) {
	if data == nil {
		return nil, fmt.Errorf("%w: nil snapshot handle", param.ErrNoSnapshot)
	}
	defer data.Close()

	if _, err := data.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind snapshot handle: %w", err)
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return nil, fmt.Errorf("read snapshot handle: %w", err)
	}
	return raw, nil
}

// GetCurrentSnapshot returns the current snapshot with a fresh read handle, nil
// if this node never built or installed one.
func (s *Storage) GetCurrentSnapshot(ctx context.Context) (*param.Snapshot, error) {
	if err := s.checkUsable(ctx); err != nil {
		return nil, err
	}

	s.snapMu.RLock()
	defer s.snapMu.RUnlock()

	if s.snapshot == nil {
		return nil, nil
	}
	return &param.Snapshot{
		Meta: s.snapshot.Meta,
		Data: NewSnapshotBufferFrom(s.snapshot.Payload),
	}, nil
}

func (s *Storage) setCurrentSnapshot(meta param.SnapshotMeta, payload []byte) {
	s.snapMu.Lock()
	s.snapshot = &StoredSnapshot{Meta: meta, Payload: append([]byte(nil), payload...)}
	s.snapMu.Unlock()
	s.metrics.SetSnapshotIndex(uint64(s.id), meta.LastLogID.Index)
}

// purgeCovered 清理被快照覆盖的日志。LogRetention 条日志保留在边界之前；
// 边界条目被清理或本就缺失时写入一个 SnapshotPointer 标记，使日志尾部不会落后于快照。
//
// fromLeader 表示快照来自 leader：边界条目缺失或与快照冲突时其后的日志也不可信，全部丢弃。
// 本地压缩的边界是自己的 lastApplied，边界之后的日志可能已提交但尚未应用，不能删除。
func (s *Storage) purgeCovered(meta param.SnapshotMeta, fromLeader bool) error {
	boundary := meta.LastLogID
	if boundary.IsZero() {
		return nil
	}

	s.logMu.Lock()
	defer s.logMu.Unlock()

	const op = "purge_logs"
	if fromLeader {
		at, found := s.log.Get(boundary.Index)
		if !found || at.LogID != boundary {
			if err := s.deleteLocked(op, param.From(0)); err != nil {
				return err
			}
			return s.appendMarkerLocked(op, meta)
		}
	}

	if s.opts.LogRetention <= boundary.Index {
		cut := boundary.Index + 1 - s.opts.LogRetention
		if err := s.deleteLocked(op, param.Until(cut)); err != nil {
			return err
		}
	}
	if _, found := s.log.Get(boundary.Index); found {
		return nil
	}
	// 标记只放在与剩余日志相接的位置，不在日志中间留下空洞
	if first, _, ok := s.log.Bounds(); ok && first != boundary.Index+1 {
		return nil
	}
	return s.appendMarkerLocked(op, meta)
}

func (s *Storage) appendMarkerLocked(op string, meta param.SnapshotMeta) error {
	marker := param.NewPurgedMarker(meta)
	if s.persister != nil {
		if err := s.persister.AppendLog([]param.Entry{marker}); err != nil {
			return s.fatal(op, meta.LastLogID.String(), err)
		}
	}
	s.log.Append([]param.Entry{marker})
	return nil
}
