package inmemory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/xmh1011/raft-storage/codec"
	"github.com/xmh1011/raft-storage/fsm"
	"github.com/xmh1011/raft-storage/metrics"
	"github.com/xmh1011/raft-storage/param"
	"github.com/xmh1011/raft-storage/resolve"
)

// Options configures a Storage.
type Options struct {
	NodeID param.NodeID
	// Defensive 打开额外的一致性检查：追加必须连续且不留空洞，容错读取遇到空洞也会报错。
	Defensive bool
	// LogRetention 是快照完成后在边界之前保留的日志条数，0 表示全部清除。
	LogRetention uint64
	Logger       *slog.Logger
	Metrics      metrics.Metrics
}

// Persister makes mutations durable before they become visible. Storage calls
// each method while holding the lock that guards the matching in-memory state,
// so a Persister never sees two concurrent calls for the same kind of state.
// A Storage without a Persister keeps everything in memory.
type Persister interface {
	SaveHardState(hs param.HardState) error
	AppendLog(entries []param.Entry) error
	DeleteLog(r param.LogRange) error
	SaveStateMachine(p codec.SnapshotPayload) error
	SaveSnapshot(meta param.SnapshotMeta, payload []byte) error
	CreateSnapshotSink() (param.SnapshotData, error)
	Close() error
}

// State is the durable state a Persister recovered, handed to Restore.
type State struct {
	HardState *param.HardState
	// Log 是重放得到的日志，Storage 直接接管它；nil 表示空日志。
	Log          *Log
	StateMachine *codec.SnapshotPayload
	Snapshot     *StoredSnapshot
}

// StoredSnapshot is the current snapshot: its metadata and encoded payload.
type StoredSnapshot struct {
	Meta    param.SnapshotMeta
	Payload []byte
}

// Storage 是 Raft 存储契约的线程安全实现。
// 日志、硬状态、状态机和快照各自有独立的锁，任何方法都不会同时持有两把，
// 因此读路径（复制、监控）不会被压缩或应用阻塞太久。
type Storage struct {
	id        param.NodeID
	opts      Options
	logger    *slog.Logger
	metrics   metrics.Metrics
	persister Persister
	closed    atomic.Bool

	// Log entries
	logMu sync.Mutex // 串行化 AppendToLog/DeleteLogsFrom 及其持久化
	log   *Log

	// HardState (term, votedFor)
	hsMu      sync.RWMutex
	hardState *param.HardState

	// 状态机：一个批次在写锁内整体应用，读者只能看到批次之前或之后的状态
	smMu           sync.RWMutex
	sm             fsm.StateMachine
	lastApplied    param.LogID
	lastMembership *param.EffectiveMembership

	// Snapshot
	compactMu sync.Mutex // 串行化压缩与快照安装
	snapMu    sync.RWMutex
	snapshot  *StoredSnapshot
}

// New creates an in-memory storage around sm.
func New(sm fsm.StateMachine, opts Options) *Storage {
	return newStorage(sm, opts, nil)
}

// Restore creates a storage from recovered durable state. Every later mutation
// is handed to p before it becomes visible.
func Restore(sm fsm.StateMachine, opts Options, p Persister, st State) (*Storage, error) {
	s := newStorage(sm, opts, p)

	if st.HardState != nil {
		hs := param.NewHardState(st.HardState.CurrentTerm, st.HardState.VotedFor)
		s.hardState = &hs
	}
	if st.Log != nil {
		s.log = st.Log
	}

	if st.StateMachine != nil {
		if err := sm.ApplySnapshot(st.StateMachine.Data); err != nil {
			return nil, fmt.Errorf("restore state machine at %s: %w", st.StateMachine.LastApplied, err)
		}
		s.lastApplied = st.StateMachine.LastApplied
		s.lastMembership = st.StateMachine.LastMembership.Clone()
	}
	if st.Snapshot != nil {
		s.snapshot = &StoredSnapshot{Meta: st.Snapshot.Meta, Payload: st.Snapshot.Payload}
	}

	s.refreshGauges()
	s.logger.Info("storage restored",
		"last_applied", s.lastApplied.String(),
		"log_entries", s.log.Len(),
		"has_snapshot", s.snapshot != nil)
	return s, nil
}

func newStorage(sm fsm.StateMachine, opts Options, p Persister) *Storage {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Storage{
		id:        opts.NodeID,
		opts:      opts,
		logger:    logger.With("node_id", uint64(opts.NodeID)),
		metrics:   metrics.OrNoop(opts.Metrics),
		persister: p,
		log:       NewLog(),
		sm:        sm,
	}
}

// --- HardState 操作 ---

// SaveHardState 在返回前持久化 term 和 vote。
func (s *Storage) SaveHardState(ctx context.Context, hs param.HardState) error {
	const op = "save_hard_state"
	if err := s.checkUsable(ctx); err != nil {
		return s.fatal(op, "", err)
	}

	s.hsMu.Lock()
	defer s.hsMu.Unlock()

	cp := param.NewHardState(hs.CurrentTerm, hs.VotedFor)
	if s.persister != nil {
		if err := s.persister.SaveHardState(cp); err != nil {
			return s.fatal(op, fmt.Sprintf("term=%d", hs.CurrentTerm), err)
		}
	}
	s.hardState = &cp
	return nil
}

// ReadHardState returns the last saved hard state, nil on a pristine node.
func (s *Storage) ReadHardState(ctx context.Context) (*param.HardState, error) {
	if err := s.checkUsable(ctx); err != nil {
		return nil, err
	}

	s.hsMu.RLock()
	defer s.hsMu.RUnlock()

	if s.hardState == nil {
		return nil, nil
	}
	hs := param.NewHardState(s.hardState.CurrentTerm, s.hardState.VotedFor)
	return &hs, nil
}

// --- 日志条目操作 ---

// AppendToLog stores every entry at its own index, overwriting a conflicting suffix.
func (s *Storage) AppendToLog(ctx context.Context, entries []param.Entry) error {
	const op = "append_to_log"
	if err := s.checkUsable(ctx); err != nil {
		return s.fatal(op, "", err)
	}
	if len(entries) == 0 {
		return nil
	}
	subject := entries[0].LogID.String() + ".." + entries[len(entries)-1].LogID.String()

	s.logMu.Lock()
	defer s.logMu.Unlock()

	if s.opts.Defensive {
		if err := s.checkAppend(entries); err != nil {
			return s.fatal(op, subject, err)
		}
	}
	if s.persister != nil {
		if err := s.persister.AppendLog(entries); err != nil {
			return s.fatal(op, subject, err)
		}
	}
	s.log.Append(entries)

	if _, last, ok := s.log.Bounds(); ok {
		s.metrics.SetLastLogIndex(uint64(s.id), last)
	}
	return nil
}

// checkAppend 检查批次内部连续、term 不递减，并且不会在现有日志之后留下空洞。
func (s *Storage) checkAppend(entries []param.Entry) error {
	for i := 1; i < len(entries); i++ {
		prev, cur := entries[i-1].LogID, entries[i].LogID
		if cur.Index != prev.Index+1 {
			return fmt.Errorf("%w: %s follows %s", param.ErrNonContiguousEntries, cur, prev)
		}
		if cur.Term < prev.Term {
			return fmt.Errorf("%w: term decreases from %s to %s", param.ErrNonContiguousEntries, prev, cur)
		}
	}

	head := entries[0].LogID
	first, last, ok := s.log.Bounds()
	if !ok {
		return nil
	}
	if head.Index > last+1 || head.Index < first {
		return fmt.Errorf("%w: %s does not attach to [%d, %d]", param.ErrNonContiguousEntries, head, first, last)
	}
	if prev, found := s.log.Get(head.Index - 1); found && head.Term < prev.LogID.Term {
		return fmt.Errorf("%w: term decreases from %s to %s", param.ErrNonContiguousEntries, prev.LogID, head)
	}
	return nil
}

// GetLogEntries returns exactly the entries of r, failing if any index is missing.
func (s *Storage) GetLogEntries(ctx context.Context, r param.LogRange) ([]param.Entry, error) {
	const op = "get_log_entries"
	if err := s.checkUsable(ctx); err != nil {
		return nil, err
	}
	if !r.Unbounded && r.Start > r.Stop {
		return nil, s.fatal(op, r.String(), param.ErrInvalidRange)
	}
	entries, err := s.log.Entries(r, true)
	if err != nil {
		return nil, s.fatal(op, r.String(), err)
	}
	return entries, nil
}

// TryGetLogEntries returns whatever part of r is stored.
func (s *Storage) TryGetLogEntries(ctx context.Context, r param.LogRange) ([]param.Entry, error) {
	const op = "try_get_log_entries"
	if err := s.checkUsable(ctx); err != nil {
		return nil, err
	}
	if s.opts.Defensive {
		if !r.Unbounded && r.Start > r.Stop {
			return nil, s.fatal(op, r.String(), param.ErrInvalidRange)
		}
		if idx, found := s.log.Holes(r); found {
			return nil, s.fatal(op, r.String(), fmt.Errorf("%w: hole at %d", param.ErrNonContiguousEntries, idx))
		}
	}
	entries, err := s.log.Entries(r, false)
	if err != nil {
		return nil, s.fatal(op, r.String(), err)
	}
	return entries, nil
}

// TryGetLogEntry returns the entry at index, or nil if it is not stored.
func (s *Storage) TryGetLogEntry(ctx context.Context, index uint64) (*param.Entry, error) {
	if err := s.checkUsable(ctx); err != nil {
		return nil, err
	}
	e, ok := s.log.Get(index)
	if !ok {
		return nil, nil
	}
	return &e, nil
}

// DeleteLogsFrom removes the entries in r.
// 只有有界的前缀清理（起点不大于首条日志）可以删除已应用的日志；
// 无界范围是后缀截断，从已应用的位置开始截断会被拒绝。
func (s *Storage) DeleteLogsFrom(ctx context.Context, r param.LogRange) error {
	const op = "delete_logs_from"
	if err := s.checkUsable(ctx); err != nil {
		return s.fatal(op, r.String(), err)
	}
	if r.IsEmpty() {
		if s.opts.Defensive {
			return s.fatal(op, r.String(), param.ErrInvalidRange)
		}
		return nil
	}

	lastApplied, _ := s.appliedState()

	s.logMu.Lock()
	defer s.logMu.Unlock()

	first, _, ok := s.log.Bounds()
	if !ok {
		return nil
	}
	if removesApplied(r, first, lastApplied) {
		return s.fatal(op, r.String(), fmt.Errorf("%w: last applied is %s", param.ErrTruncateApplied, lastApplied))
	}
	return s.deleteLocked(op, r)
}

// removesApplied reports whether deleting r from a log starting at first would
// cut into applied entries anywhere other than a bounded prefix.
func removesApplied(r param.LogRange, first uint64, lastApplied param.LogID) bool {
	if lastApplied.IsZero() {
		return false
	}
	if r.Unbounded {
		return max(r.Start, first) <= lastApplied.Index
	}
	return r.Start > first && r.Start <= lastApplied.Index
}

// deleteLocked 要求调用者持有 logMu。
func (s *Storage) deleteLocked(op string, r param.LogRange) error {
	if s.persister != nil {
		if err := s.persister.DeleteLog(r); err != nil {
			return s.fatal(op, r.String(), err)
		}
	}
	n := s.log.Delete(r)
	s.logger.Debug("log entries deleted", "op", op, "range", r.String(), "count", n)

	if _, last, ok := s.log.Bounds(); ok {
		s.metrics.SetLastLogIndex(uint64(s.id), last)
	}
	return nil
}

// --- 日志元数据操作 ---

// FirstIDInLog returns the id of the earliest stored entry, nil for an empty log.
func (s *Storage) FirstIDInLog(ctx context.Context) (*param.LogID, error) {
	if err := s.checkUsable(ctx); err != nil {
		return nil, err
	}
	e, found := s.log.FirstEntry()
	if !found {
		return nil, nil
	}
	return &e.LogID, nil
}

// LastIDInLog returns the id of the latest stored entry. An empty log reports
// the last applied id so that a fully compacted log never appears to regress.
func (s *Storage) LastIDInLog(ctx context.Context) (param.LogID, error) {
	if err := s.checkUsable(ctx); err != nil {
		return param.LogID{}, err
	}
	if e, found := s.log.LastEntry(); found {
		return e.LogID, nil
	}
	lastApplied, _ := s.appliedState()
	return lastApplied, nil
}

// FirstKnownLogID accounts for entries already folded into the state machine.
func (s *Storage) FirstKnownLogID(ctx context.Context) (param.LogID, error) {
	return resolve.FirstKnownLogID(ctx, s)
}

// GetMembership returns the effective membership, nil on a pristine node.
func (s *Storage) GetMembership(ctx context.Context) (*param.EffectiveMembership, error) {
	return resolve.Membership(ctx, s)
}

// GetInitialState returns all durable state needed at startup. The first call on
// a pristine node persists the empty hard state.
func (s *Storage) GetInitialState(ctx context.Context) (param.InitialState, error) {
	hs, err := s.ReadHardState(ctx)
	if err != nil {
		return param.InitialState{}, err
	}
	if hs == nil {
		st := param.NewInitialState(s.id)
		if err := s.SaveHardState(ctx, st.HardState); err != nil {
			return param.InitialState{}, err
		}
		s.logger.Info("pristine node initialized")
		return st, nil
	}
	return resolve.InitialState(ctx, s, s.id, hs)
}

// GetStateMachine gives verification tooling direct access to the application state.
func (s *Storage) GetStateMachine(context.Context) fsm.StateMachine {
	return s.sm
}

// Close 关闭存储，之后的调用都会返回 param.ErrStorageClosed。
func (s *Storage) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	if s.persister != nil {
		return s.persister.Close()
	}
	return nil
}

func (s *Storage) checkUsable(ctx context.Context) error {
	if s.closed.Load() {
		return param.ErrStorageClosed
	}
	return ctx.Err()
}

// fatal wraps err, counts it and logs it once at the storage boundary.
func (s *Storage) fatal(op, subject string, err error) error {
	s.metrics.IncStorageError(uint64(s.id), op)
	s.logger.Error("storage operation failed", "op", op, "subject", subject, "severity", "fatal", "error", err)
	return param.NewFatal(op, subject, err)
}

func (s *Storage) retryable(op, subject string, err error) error {
	s.metrics.IncStorageError(uint64(s.id), op)
	s.logger.Warn("storage operation failed", "op", op, "subject", subject, "severity", "retryable", "error", err)
	return param.NewRetryable(op, subject, err)
}

func (s *Storage) refreshGauges() {
	s.metrics.SetLastApplied(uint64(s.id), s.lastApplied.Index)
	if _, last, ok := s.log.Bounds(); ok {
		s.metrics.SetLastLogIndex(uint64(s.id), last)
	}
	if s.snapshot != nil {
		s.metrics.SetSnapshotIndex(uint64(s.id), s.snapshot.Meta.LastLogID.Index)
	}
}
