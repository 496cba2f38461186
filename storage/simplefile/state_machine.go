package simplefile

import (
	"fmt"

	"github.com/xmh1011/raft-storage/codec"
)

// stateMachineFile 保存应用层导出的数据以及它对应的 lastApplied 和 membership。
// 每个应用批次结束后整体原子替换一次，重启后看到的总是最后一个完整批次。
type stateMachineFile struct {
	path string
}

func (f stateMachineFile) load() (*codec.SnapshotPayload, error) {
	var p codec.SnapshotPayload
	found, err := readJSON(f.path, &p)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.path, err)
	}
	if !found {
		return nil, nil
	}
	return &p, nil
}

func (f stateMachineFile) save(p codec.SnapshotPayload) error {
	if err := writeJSONAtomically(f.path, p); err != nil {
		return fmt.Errorf("persist state machine at %s: %w", p.LastApplied, err)
	}
	return nil
}
