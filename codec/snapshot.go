package codec

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"

	"github.com/xmh1011/raft-storage/param"
)

// SnapshotPayload is the content of a snapshot: the exported application state
// together with the position and membership it reflects.
type SnapshotPayload struct {
	LastApplied    param.LogID                `json:"last_applied"`
	LastMembership *param.EffectiveMembership `json:"last_membership,omitempty"`
	Data           []byte                     `json:"data"`
}

// WriteSnapshot writes p to w as zstd-compressed JSON.
func WriteSnapshot(w io.Writer, p SnapshotPayload) error {
	enc, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("create zstd writer: %w", err)
	}
	if err := json.NewEncoder(enc).Encode(p); err != nil {
		_ = enc.Close()
		return fmt.Errorf("encode snapshot payload: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("flush zstd writer: %w", err)
	}
	return nil
}

// ReadSnapshot decodes a payload written by WriteSnapshot.
func ReadSnapshot(r io.Reader) (SnapshotPayload, error) {
	var p SnapshotPayload
	dec, err := zstd.NewReader(r)
	if err != nil {
		return p, fmt.Errorf("create zstd reader: %w", err)
	}
	defer dec.Close()

	if err := json.NewDecoder(dec).Decode(&p); err != nil {
		return p, fmt.Errorf("decode snapshot payload: %w", err)
	}
	return p, nil
}
