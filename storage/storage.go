package storage

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/xmh1011/raft-storage/config"
	"github.com/xmh1011/raft-storage/fsm"
	"github.com/xmh1011/raft-storage/metrics"
	"github.com/xmh1011/raft-storage/param"
	"github.com/xmh1011/raft-storage/storage/inmemory"
	"github.com/xmh1011/raft-storage/storage/simplefile"
)

//go:generate mockgen -destination=mock_storage.go -package=storage github.com/xmh1011/raft-storage/storage DebugStorage

// LogStore 是可追加、可截断、可按范围查询的 Raft 日志。
type LogStore interface {
	// AppendToLog 追加一批日志条目。每个条目由它自己的索引决定存放位置，
	// 因此重新追加重叠的范围会覆盖冲突的后缀。失败是致命的。
	AppendToLog(ctx context.Context, entries []param.Entry) error

	// GetLogEntries 返回 [start, stop) 内的全部条目，缺少任何一个索引都会返回错误。
	GetLogEntries(ctx context.Context, r param.LogRange) ([]param.Entry, error)

	// TryGetLogEntries 只返回范围内实际存在的条目，缺失不是错误。
	TryGetLogEntries(ctx context.Context, r param.LogRange) ([]param.Entry, error)

	// TryGetLogEntry 返回指定索引的条目，不存在时返回 nil。
	TryGetLogEntry(ctx context.Context, index uint64) (*param.Entry, error)

	// FirstIDInLog 返回物理上保存的第一条日志的 id，日志为空时返回 nil。
	FirstIDInLog(ctx context.Context) (*param.LogID, error)

	// LastIDInLog 返回物理上保存的最后一条日志的 id；日志为空时返回 lastApplied。
	LastIDInLog(ctx context.Context) (param.LogID, error)

	// FirstKnownLogID 返回 min(FirstIDInLog, lastApplied)，不会指向一个已被压缩却没有快照覆盖的位置。
	FirstKnownLogID(ctx context.Context) (param.LogID, error)

	// DeleteLogsFrom 删除范围内的日志，用于截断冲突后缀和清理已压缩的前缀。失败是致命的。
	DeleteLogsFrom(ctx context.Context, r param.LogRange) error
}

// HardStateStore persists the current term and vote.
type HardStateStore interface {
	// SaveHardState 必须在返回前落盘。
	SaveHardState(ctx context.Context, hs param.HardState) error
	// ReadHardState 返回最后保存的值，从未保存过时返回 nil。
	ReadHardState(ctx context.Context) (*param.HardState, error)
}

// StateMachineStore applies committed entries to the application.
type StateMachineStore interface {
	// ApplyToStateMachine 严格按日志顺序应用一批条目，每个条目占一个响应槽位。
	ApplyToStateMachine(ctx context.Context, entries []param.Entry) ([]any, error)
	// LastAppliedState 返回最后应用的 log id 以及在它之前（含）生效的 membership。
	LastAppliedState(ctx context.Context) (param.LogID, *param.EffectiveMembership, error)
}

// SnapshotStore builds, receives and serves snapshots.
type SnapshotStore interface {
	DoLogCompaction(ctx context.Context) (*param.Snapshot, error)
	BeginReceivingSnapshot(ctx context.Context) (param.SnapshotData, error)
	FinalizeSnapshotInstallation(ctx context.Context, meta param.SnapshotMeta, data param.SnapshotData) (param.StateMachineChanges, error)
	// GetCurrentSnapshot 只在从未压缩或安装过快照的节点上返回 nil。
	GetCurrentSnapshot(ctx context.Context) (*param.Snapshot, error)
}

// RaftStorage is the whole durable-storage contract a Raft node runs on.
// 共识模块只依赖这个接口，而不是具体的存储实现。
type RaftStorage interface {
	LogStore
	HardStateStore
	StateMachineStore
	SnapshotStore

	// GetMembership 返回当前生效的 membership：日志中未应用的 membership 条目优先于状态机中的。
	GetMembership(ctx context.Context) (*param.EffectiveMembership, error)

	// GetInitialState 在节点启动时调用一次，返回全部持久化状态。
	GetInitialState(ctx context.Context) (param.InitialState, error)

	// Close 释放底层资源。
	Close() error
}

// Debug 暴露状态机本身，只供校验工具使用，不在共识路径上。
type Debug interface {
	GetStateMachine(ctx context.Context) fsm.StateMachine
}

// DebugStorage is a RaftStorage that also allows direct state machine access.
type DebugStorage interface {
	RaftStorage
	Debug
}

var (
	_ DebugStorage = (*inmemory.Storage)(nil)
	_ DebugStorage = (*simplefile.Storage)(nil)
)

// NewStorage 根据配置创建存储。simplefile 的数据放在 <data_dir>/node-<id> 下。
func NewStorage(cfg config.Config, sm fsm.StateMachine, logger *slog.Logger, m metrics.Metrics) (DebugStorage, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opts := inmemory.Options{
		NodeID:       param.NodeID(cfg.Node.ID),
		Defensive:    cfg.Storage.Defensive,
		LogRetention: cfg.Storage.LogRetention,
		Logger:       logger,
		Metrics:      m,
	}

	switch cfg.Storage.Type {
	case config.StorageInMemory:
		logger.Info("using in-memory storage", "node_id", cfg.Node.ID)
		return inmemory.New(sm, opts), nil
	case config.StorageSimpleFile:
		nodeDir := filepath.Join(cfg.Storage.DataDir, fmt.Sprintf("node-%d", cfg.Node.ID))
		store, err := simplefile.Open(nodeDir, sm, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to open simplefile storage: %w", err)
		}
		logger.Info("using simple file storage", "node_id", cfg.Node.ID, "dir", nodeDir)
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Storage.Type)
	}
}
