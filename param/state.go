package param

import "io"

// HardState 定义需要持久化的状态（必须稳定存储）
type HardState struct {
	CurrentTerm uint64  `json:"current_term"` // 当前任期号
	VotedFor    *NodeID `json:"voted_for"`    // 当前任期内投票给的候选者，nil 表示未投票
}

// NewHardState creates a HardState. A nil votedFor means no vote was cast in term.
func NewHardState(term uint64, votedFor *NodeID) HardState {
	hs := HardState{CurrentTerm: term}
	if votedFor != nil {
		v := *votedFor
		hs.VotedFor = &v
	}
	return hs
}

// Voted reports whether a vote was cast in CurrentTerm.
func (hs HardState) Voted() bool {
	return hs.VotedFor != nil
}

// Equal compares terms and votes by value.
func (hs HardState) Equal(other HardState) bool {
	if hs.CurrentTerm != other.CurrentTerm {
		return false
	}
	if hs.VotedFor == nil || other.VotedFor == nil {
		return hs.VotedFor == other.VotedFor
	}
	return *hs.VotedFor == *other.VotedFor
}

// SnapshotMeta 描述一个快照实例。
// 即使 LastLogID 相同，两次压缩产生的快照字节也可能不同，SnapshotID 用于区分它们。
type SnapshotMeta struct {
	LastLogID  LogID  `json:"last_log_id"`
	SnapshotID string `json:"snapshot_id"`
}

// SnapshotData is the byte stream carried by a snapshot. Whoever holds it owns it
// exclusively: the reader during transfer, the writer during receipt.
type SnapshotData interface {
	io.Reader
	io.Writer
	io.Seeker
	io.Closer
}

// Snapshot 表示当前快照及其数据句柄。
type Snapshot struct {
	Meta SnapshotMeta
	Data SnapshotData
}

// InitialState 是节点启动时一次性读取的全部持久化状态。
type InitialState struct {
	LastLogID      LogID               `json:"last_log_id"`
	LastApplied    LogID               `json:"last_applied"`
	HardState      HardState           `json:"hard_state"`
	LastMembership EffectiveMembership `json:"last_membership"`
}

// NewInitialState returns the state of a pristine node whose only member is id.
func NewInitialState(id NodeID) InitialState {
	return InitialState{
		HardState:      HardState{},
		LastMembership: NewInitialEffectiveMembership(id),
	}
}

// StateMachineChanges tells the consensus core which cached views a snapshot
// installation invalidated.
type StateMachineChanges struct {
	LastApplied       LogID `json:"last_applied"`
	IsSnapshot        bool  `json:"is_snapshot"`
	MembershipChanged bool  `json:"membership_changed"`
}
