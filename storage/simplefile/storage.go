package simplefile

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/xmh1011/raft-storage/codec"
	"github.com/xmh1011/raft-storage/fsm"
	"github.com/xmh1011/raft-storage/param"
	"github.com/xmh1011/raft-storage/storage/inmemory"
)

const (
	hardStateFileName    = "hard_state.json"
	logFileName          = "raft.log"
	stateMachineFileName = "state_machine.json"
	snapshotDirName      = "snapshots"
)

// Options is shared with the in-memory backend.
type Options = inmemory.Options

// Storage implements a simple file-based storage.
// 所有读操作由内存中的副本提供；每次修改先落盘再对读者可见。
//
// 目录布局：
//
//	hard_state.json      term 和 vote
//	raft.log             带 CRC 的日志记录，只追加
//	state_machine.json   应用数据、lastApplied、membership
//	snapshots/<sha256(id)>.snap  当前快照
//	snapshots/CURRENT    当前快照的元数据
type Storage struct {
	*inmemory.Storage
	dir string
}

// Open opens or creates the storage rooted at dir and recovers its state into sm.
func Open(dir string, sm fsm.StateMachine, opts Options) (*Storage, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("node_id", uint64(opts.NodeID), "dir", dir)

	p := &filePersister{
		dir:       dir,
		snapshots: snapshotDir{dir: filepath.Join(dir, snapshotDirName)},
		sm:        stateMachineFile{path: filepath.Join(dir, stateMachineFileName)},
	}
	if err := os.MkdirAll(p.snapshots.dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	for _, d := range []string{dir, p.snapshots.dir} {
		removed, err := removeStray(d)
		if err != nil {
			return nil, fmt.Errorf("clean %s: %w", d, err)
		}
		if len(removed) > 0 {
			logger.Warn("removed leftover temp files", "files", removed)
		}
	}

	st, err := p.recover(logger)
	if err != nil {
		return nil, err
	}

	store, err := inmemory.Restore(sm, opts, p, st)
	if err != nil {
		_ = p.Close()
		return nil, err
	}
	return &Storage{Storage: store, dir: dir}, nil
}

// Dir returns the directory the storage lives in.
func (s *Storage) Dir() string {
	return s.dir
}

// filePersister implements inmemory.Persister on top of plain files.
type filePersister struct {
	dir       string
	log       *logFile
	snapshots snapshotDir
	sm        stateMachineFile
}

func (p *filePersister) hardStatePath() string {
	return filepath.Join(p.dir, hardStateFileName)
}

// recover 读取全部持久化状态。若快照比状态机文件新（安装快照时在两次写之间崩溃），
// 以快照内容为准并补写状态机文件。
func (p *filePersister) recover(logger *slog.Logger) (inmemory.State, error) {
	var st inmemory.State

	var hs param.HardState
	found, err := readJSON(p.hardStatePath(), &hs)
	if err != nil {
		return st, fmt.Errorf("read hard state: %w", err)
	}
	if found {
		st.HardState = &hs
	}

	snap, err := p.snapshots.load()
	if err != nil {
		return st, err
	}
	if snap != nil {
		if err := p.snapshots.prune(snap.Meta.SnapshotID); err != nil {
			return st, err
		}
	}
	st.Snapshot = snap

	smState, err := p.sm.load()
	if err != nil {
		return st, err
	}
	if snap != nil && (smState == nil || smState.LastApplied.Less(snap.Meta.LastLogID)) {
		payload, err := codec.ReadSnapshot(bytes.NewReader(snap.Payload))
		if err != nil {
			return st, fmt.Errorf("decode snapshot %s: %w", snap.Meta.SnapshotID, err)
		}
		if err := p.sm.save(payload); err != nil {
			return st, err
		}
		logger.Info("state machine rebuilt from snapshot", "snapshot_id", snap.Meta.SnapshotID)
		smState = &payload
	}
	st.StateMachine = smState

	lf, err := openLogFile(filepath.Join(p.dir, logFileName), logger)
	if err != nil {
		return st, err
	}
	p.log = lf
	st.Log = lf.log
	return st, nil
}

func (p *filePersister) SaveHardState(hs param.HardState) error {
	return writeJSONAtomically(p.hardStatePath(), hs)
}

func (p *filePersister) AppendLog(entries []param.Entry) error {
	return p.log.append(entries)
}

func (p *filePersister) DeleteLog(r param.LogRange) error {
	return p.log.delete(r)
}

func (p *filePersister) SaveStateMachine(payload codec.SnapshotPayload) error {
	return p.sm.save(payload)
}

func (p *filePersister) SaveSnapshot(meta param.SnapshotMeta, payload []byte) error {
	return p.snapshots.save(meta, payload)
}

func (p *filePersister) CreateSnapshotSink() (param.SnapshotData, error) {
	return p.snapshots.createSink()
}

func (p *filePersister) Close() error {
	if p.log == nil {
		return nil
	}
	return p.log.close()
}
