package debughttp

import (
	"github.com/xmh1011/raft-storage/param"
)

// Response is the envelope every endpoint returns.
type Response struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
	Data   any    `json:"data,omitempty"`
}

func NewOKResponse(data any) Response {
	return Response{Status: "ok", Data: data}
}

func NewErrorResponse(msg string) Response {
	return Response{Status: "error", Error: msg}
}

// StateView 汇总节点当前的存储状态。
type StateView struct {
	HardState      *param.HardState           `json:"hard_state"`
	FirstLogID     *param.LogID               `json:"first_log_id"`
	LastLogID      param.LogID                `json:"last_log_id"`
	LastApplied    param.LogID                `json:"last_applied"`
	Membership     *param.EffectiveMembership `json:"membership"`
	SnapshotMeta   *param.SnapshotMeta        `json:"snapshot_meta,omitempty"`
	StateMachineKV int                        `json:"state_machine_keys,omitempty"`
}

type AppliedView struct {
	LastApplied    param.LogID                `json:"last_applied"`
	LastMembership *param.EffectiveMembership `json:"last_membership"`
}

type KVView struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}
