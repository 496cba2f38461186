package codec

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xmh1011/raft-storage/param"
)

func TestEntryEncoding(t *testing.T) {
	entries := []param.Entry{
		param.NewEntry(1, 1, param.NewBlankPayload()),
		param.NewEntry(1, 2, param.NewNormalPayload([]byte(`{"op":"set"}`))),
		param.NewEntry(2, 3, param.NewMembershipPayload(param.NewMembership([]param.NodeID{3, 1, 2}, []param.NodeID{9}))),
		param.NewPurgedMarker(param.SnapshotMeta{LastLogID: param.NewLogID(2, 3), SnapshotID: "2-3-abc"}),
	}

	for _, want := range entries {
		t.Run(want.Payload.Type.String(), func(t *testing.T) {
			got, err := DecodeEntry(AppendEntry(nil, want))
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}

	t.Run("truncated input is rejected", func(t *testing.T) {
		b := AppendEntry(nil, entries[1])
		_, err := DecodeEntry(b[:len(b)-3])
		assert.ErrorIs(t, err, ErrCorruptRecord)
	})
}

func TestRecordFraming(t *testing.T) {
	var buf bytes.Buffer
	appendRec := Record{Kind: RecordAppend, Entries: []param.Entry{
		param.NewEntry(1, 5, param.NewNormalPayload([]byte("a"))),
		param.NewEntry(1, 6, param.NewNormalPayload([]byte("b"))),
	}}
	deleteRec := Record{Kind: RecordDelete, Range: param.From(6)}
	buf.Write(mustEncodeRecord(t, appendRec))
	buf.Write(mustEncodeRecord(t, deleteRec))

	got, err := ReadRecord(&buf)
	require.NoError(t, err)
	assert.Equal(t, appendRec, got)

	got, err = ReadRecord(&buf)
	require.NoError(t, err)
	assert.Equal(t, RecordDelete, got.Kind)
	assert.Equal(t, param.From(6), got.Range)

	_, err = ReadRecord(&buf)
	assert.ErrorIs(t, err, io.EOF)

	t.Run("torn tail", func(t *testing.T) {
		frame := mustEncodeRecord(t, appendRec)
		_, err := ReadRecord(bytes.NewReader(frame[:len(frame)-1]))
		assert.ErrorIs(t, err, ErrTornRecord)

		_, err = ReadRecord(bytes.NewReader(frame[:3]))
		assert.ErrorIs(t, err, ErrTornRecord)
	})

	t.Run("checksum mismatch", func(t *testing.T) {
		frame := mustEncodeRecord(t, appendRec)
		frame[len(frame)-1] ^= 0xff
		_, err := ReadRecord(bytes.NewReader(frame))
		assert.ErrorIs(t, err, ErrTornRecord)
	})

	t.Run("oversized record is not written", func(t *testing.T) {
		defer func(old int) { maxRecordSize = old }(maxRecordSize)
		maxRecordSize = 16

		big := Record{Kind: RecordAppend, Entries: []param.Entry{
			param.NewEntry(1, 7, param.NewNormalPayload(bytes.Repeat([]byte("x"), 64))),
		}}
		_, err := EncodeRecord(big)
		assert.ErrorIs(t, err, ErrRecordTooLarge)

		frame, err := EncodeRecord(deleteRec)
		require.NoError(t, err)
		got, err := ReadRecord(bytes.NewReader(frame))
		require.NoError(t, err, "records within the limit still round trip")
		assert.Equal(t, RecordDelete, got.Kind)
	})
}

func mustEncodeRecord(t *testing.T, r Record) []byte {
	t.Helper()
	frame, err := EncodeRecord(r)
	require.NoError(t, err)
	return frame
}

func TestSnapshotPayload(t *testing.T) {
	want := SnapshotPayload{
		LastApplied:    param.NewLogID(3, 120),
		LastMembership: param.NewEffectiveMembership(param.NewLogID(2, 7), param.NewMembership([]param.NodeID{1, 2, 3}, nil)),
		Data:           []byte(`{"k":"v"}`),
	}

	var buf bytes.Buffer
	require.NoError(t, WriteSnapshot(&buf, want))

	got, err := ReadSnapshot(&buf)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = ReadSnapshot(bytes.NewReader([]byte("not zstd")))
	assert.Error(t, err)
}
