package fsm

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"sync"
)

var ErrKeyNotFound = errors.New("key not found")

// KVCommand 定义了客户端与状态机交互的命令格式。
type KVCommand struct {
	Op    string `json:"op"`
	Key   string `json:"key"`
	Value string `json:"value"`
}

// NewSetCommand encodes a set command.
func NewSetCommand(key, value string) []byte {
	data, _ := json.Marshal(KVCommand{Op: "set", Key: key, Value: value})
	return data
}

// NewDeleteCommand encodes a delete command.
func NewDeleteCommand(key string) []byte {
	data, _ := json.Marshal(KVCommand{Op: "delete", Key: key})
	return data
}

// KV 是 StateMachine 接口的一个内存实现，模拟一个简单的KV数据库。
type KV struct {
	mu      sync.RWMutex
	kvStore map[string]string
}

// NewKV creates an empty key-value state machine.
func NewKV() *KV {
	return &KV{
		kvStore: make(map[string]string),
	}
}

// Apply 将命令应用到状态机。
func (sm *KV) Apply(index uint64, command []byte) (any, error) {
	var cmd KVCommand
	if err := json.Unmarshal(command, &cmd); err != nil {
		return nil, fmt.Errorf("failed to unmarshal command at index %d: %w", index, err)
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()

	switch cmd.Op {
	case "set":
		sm.kvStore[cmd.Key] = cmd.Value
		return nil, nil
	case "delete":
		delete(sm.kvStore, cmd.Key)
		return nil, nil
	default:
		// 未知操作是应用层结果，不影响日志一致性
		return fmt.Errorf("unknown operation: %s", cmd.Op), nil
	}
}

// Get 从状态机中查询一个键的值。
func (sm *KV) Get(key string) (string, error) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if val, ok := sm.kvStore[key]; ok {
		return val, nil
	}
	return "", ErrKeyNotFound
}

// Len returns the number of stored keys.
func (sm *KV) Len() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.kvStore)
}

// GetSnapshot 生成状态机的快照。
func (sm *KV) GetSnapshot() ([]byte, error) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return json.Marshal(sm.kvStore)
}

// ApplySnapshot 从快照中恢复状态机。
func (sm *KV) ApplySnapshot(snapshot []byte) error {
	newStore := make(map[string]string)
	if len(snapshot) > 0 {
		if err := json.Unmarshal(snapshot, &newStore); err != nil {
			return fmt.Errorf("failed to unmarshal snapshot: %w", err)
		}
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()
	// 用快照数据完全替换当前状态
	sm.kvStore = newStore
	return nil
}

// Dump returns a copy of the stored pairs for inspection tooling.
func (sm *KV) Dump() map[string]string {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return maps.Clone(sm.kvStore)
}
