package param

import "fmt"

// NodeID 标识集群中的一个节点。
type NodeID uint64

// LogID 唯一定位节点日志中的一个位置，按 (Term, Index) 字典序比较。
type LogID struct {
	Term  uint64 `json:"term"`
	Index uint64 `json:"index"`
}

// NewLogID creates a new LogID.
func NewLogID(term, index uint64) LogID {
	return LogID{Term: term, Index: index}
}

// Compare returns -1, 0 or +1 depending on whether id sorts before, equal to or after other.
func (id LogID) Compare(other LogID) int {
	switch {
	case id.Term < other.Term:
		return -1
	case id.Term > other.Term:
		return 1
	case id.Index < other.Index:
		return -1
	case id.Index > other.Index:
		return 1
	default:
		return 0
	}
}

// Less reports whether id sorts strictly before other.
func (id LogID) Less(other LogID) bool {
	return id.Compare(other) < 0
}

// IsZero reports whether id is the pristine {0,0} position.
func (id LogID) IsZero() bool {
	return id.Term == 0 && id.Index == 0
}

func (id LogID) String() string {
	return fmt.Sprintf("%d-%d", id.Term, id.Index)
}

// MinLogID returns the smaller of a and b.
func MinLogID(a, b LogID) LogID {
	if b.Less(a) {
		return b
	}
	return a
}

// EntryType identifies the kind of payload carried by a log entry.
type EntryType uint8

const (
	EntryBlank EntryType = iota
	EntryNormal
	EntryMembership
	// EntrySnapshotPointer marks a compaction boundary; it is never applied.
	EntrySnapshotPointer
)

func (t EntryType) String() string {
	switch t {
	case EntryBlank:
		return "Blank"
	case EntryNormal:
		return "Normal"
	case EntryMembership:
		return "Membership"
	case EntrySnapshotPointer:
		return "SnapshotPointer"
	default:
		return "Unknown"
	}
}

// EntryPayload 是日志条目携带的内容。Type 决定哪个字段有效。
type EntryPayload struct {
	Type         EntryType     `json:"type"`
	Data         []byte        `json:"data,omitempty"`          // EntryNormal: 应用层命令
	Membership   *Membership   `json:"membership,omitempty"`    // EntryMembership
	SnapshotMeta *SnapshotMeta `json:"snapshot_meta,omitempty"` // EntrySnapshotPointer
}

func NewBlankPayload() EntryPayload {
	return EntryPayload{Type: EntryBlank}
}

func NewNormalPayload(data []byte) EntryPayload {
	return EntryPayload{Type: EntryNormal, Data: data}
}

func NewMembershipPayload(m Membership) EntryPayload {
	return EntryPayload{Type: EntryMembership, Membership: &m}
}

func NewSnapshotPointerPayload(meta SnapshotMeta) EntryPayload {
	return EntryPayload{Type: EntrySnapshotPointer, SnapshotMeta: &meta}
}

// Entry represents a single entry in the Raft log.
type Entry struct {
	LogID   LogID        `json:"log_id"`
	Payload EntryPayload `json:"payload"`
}

// NewEntry creates a new Entry.
func NewEntry(term, index uint64, payload EntryPayload) Entry {
	return Entry{
		LogID:   NewLogID(term, index),
		Payload: payload,
	}
}

// NewPurgedMarker creates the SnapshotPointer entry left at a compaction boundary.
func NewPurgedMarker(meta SnapshotMeta) Entry {
	return Entry{
		LogID:   meta.LastLogID,
		Payload: NewSnapshotPointerPayload(meta),
	}
}

// Clone returns a deep copy of e so callers cannot alias stored data.
func (e Entry) Clone() Entry {
	cp := e
	if e.Payload.Data != nil {
		cp.Payload.Data = append([]byte(nil), e.Payload.Data...)
	}
	if e.Payload.Membership != nil {
		m := e.Payload.Membership.Clone()
		cp.Payload.Membership = &m
	}
	if e.Payload.SnapshotMeta != nil {
		meta := *e.Payload.SnapshotMeta
		cp.Payload.SnapshotMeta = &meta
	}
	return cp
}
