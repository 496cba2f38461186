package simplefile

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xmh1011/raft-storage/param"
	"github.com/xmh1011/raft-storage/storage/inmemory"
)

const (
	snapshotSuffix = ".snap"
	currentFile    = "CURRENT"
)

// snapshotDir 保存快照文件。CURRENT 记录当前快照的元数据，是快照切换的提交点：
// 新快照文件先完整落盘，再原子地替换 CURRENT，最后删除其余快照。
type snapshotDir struct {
	dir string
}

// dataFileName 由快照 id 的摘要得出。id 可能来自其他节点，不能直接当作文件名。
func dataFileName(id string) string {
	sum := sha256.Sum256([]byte(id))
	return hex.EncodeToString(sum[:]) + snapshotSuffix
}

func (d snapshotDir) dataPath(id string) string {
	return filepath.Join(d.dir, dataFileName(id))
}

func (d snapshotDir) currentPath() string {
	return filepath.Join(d.dir, currentFile)
}

// load returns the current snapshot, nil if none was ever committed.
func (d snapshotDir) load() (*inmemory.StoredSnapshot, error) {
	var meta param.SnapshotMeta
	found, err := readJSON(d.currentPath(), &meta)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", d.currentPath(), err)
	}
	if !found {
		return nil, nil
	}

	payload, err := os.ReadFile(d.dataPath(meta.SnapshotID))
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", meta.SnapshotID, err)
	}
	return &inmemory.StoredSnapshot{Meta: meta, Payload: payload}, nil
}

func (d snapshotDir) save(meta param.SnapshotMeta, payload []byte) error {
	if err := writeFileAtomically(d.dataPath(meta.SnapshotID), payload); err != nil {
		return fmt.Errorf("write snapshot %s: %w", meta.SnapshotID, err)
	}
	if err := writeJSONAtomically(d.currentPath(), meta); err != nil {
		return fmt.Errorf("commit snapshot %s: %w", meta.SnapshotID, err)
	}
	return d.prune(meta.SnapshotID)
}

// prune removes every snapshot file except keepID.
func (d snapshotDir) prune(keepID string) error {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, snapshotSuffix) || name == dataFileName(keepID) {
			continue
		}
		if err := os.Remove(filepath.Join(d.dir, name)); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

// createSink returns a temp file for an inbound snapshot. It is removed on Close.
func (d snapshotDir) createSink() (param.SnapshotData, error) {
	f, err := os.CreateTemp(d.dir, "recv"+tmpMarker+"*")
	if err != nil {
		return nil, err
	}
	return &receiveFile{File: f}, nil
}

// receiveFile 是接收中的快照文件。安装时内容已被完整读出并另存，所以关闭即删除。
type receiveFile struct {
	*os.File
}

func (r *receiveFile) Close() error {
	err := r.File.Close()
	if rmErr := os.Remove(r.Name()); rmErr != nil && !os.IsNotExist(rmErr) && err == nil {
		err = rmErr
	}
	return err
}
