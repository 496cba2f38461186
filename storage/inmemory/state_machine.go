package inmemory

import (
	"context"
	"fmt"
	"time"

	"github.com/xmh1011/raft-storage/codec"
	"github.com/xmh1011/raft-storage/param"
)

// ApplyToStateMachine 按日志顺序把一批已提交条目应用到状态机，每个条目对应一个响应。
// 批次必须紧接在 lastApplied 之后且连续；整个批次在状态机写锁内完成。
func (s *Storage) ApplyToStateMachine(ctx context.Context, entries []param.Entry) ([]any, error) {
	const op = "apply_to_state_machine"
	if err := s.checkUsable(ctx); err != nil {
		return nil, s.fatal(op, "", err)
	}
	if len(entries) == 0 {
		return nil, nil
	}
	subject := entries[0].LogID.String() + ".." + entries[len(entries)-1].LogID.String()
	start := time.Now()

	s.smMu.Lock()
	defer s.smMu.Unlock()

	if err := checkApplyOrder(s.lastApplied, entries); err != nil {
		return nil, s.fatal(op, subject, err)
	}

	membership := s.lastMembership
	responses := make([]any, len(entries))
	for i, e := range entries {
		switch e.Payload.Type {
		case param.EntryNormal:
			resp, err := s.sm.Apply(e.LogID.Index, e.Payload.Data)
			if err != nil {
				return nil, s.fatal(op, e.LogID.String(), err)
			}
			responses[i] = resp
		case param.EntryMembership:
			if e.Payload.Membership != nil {
				membership = param.NewEffectiveMembership(e.LogID, e.Payload.Membership.Clone())
			}
		}
	}
	lastApplied := entries[len(entries)-1].LogID

	if s.persister != nil {
		data, err := s.sm.GetSnapshot()
		if err != nil {
			return nil, s.fatal(op, subject, fmt.Errorf("export state machine: %w", err))
		}
		payload := codec.SnapshotPayload{LastApplied: lastApplied, LastMembership: membership, Data: data}
		if err := s.persister.SaveStateMachine(payload); err != nil {
			return nil, s.fatal(op, subject, err)
		}
	}

	s.lastApplied = lastApplied
	s.lastMembership = membership

	s.metrics.SetLastApplied(uint64(s.id), lastApplied.Index)
	s.metrics.ObserveApplyBatch(uint64(s.id), len(entries), time.Since(start))
	return responses, nil
}

// checkApplyOrder 在任何修改发生之前拒绝乱序、有空洞或包含 SnapshotPointer 的批次。
func checkApplyOrder(lastApplied param.LogID, entries []param.Entry) error {
	next := lastApplied.Index + 1
	for _, e := range entries {
		if e.Payload.Type == param.EntrySnapshotPointer {
			return fmt.Errorf("%w: %s", param.ErrSnapshotPointerApplied, e.LogID)
		}
		if e.LogID.Index != next {
			return fmt.Errorf("%w: got %s, want index %d", param.ErrApplyOutOfOrder, e.LogID, next)
		}
		next++
	}
	return nil
}

// LastAppliedState returns the last applied log id and the membership applied at or before it.
func (s *Storage) LastAppliedState(ctx context.Context) (param.LogID, *param.EffectiveMembership, error) {
	if err := s.checkUsable(ctx); err != nil {
		return param.LogID{}, nil, err
	}
	id, mem := s.appliedState()
	return id, mem, nil
}

func (s *Storage) appliedState() (param.LogID, *param.EffectiveMembership) {
	s.smMu.RLock()
	defer s.smMu.RUnlock()
	return s.lastApplied, s.lastMembership.Clone()
}
