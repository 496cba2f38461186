package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/xmh1011/raft-storage/param"
)

// ErrTornRecord is returned for a record whose frame is incomplete or whose
// checksum does not match, which is what an interrupted write leaves behind.
var ErrTornRecord = errors.New("torn log record")

// ErrRecordTooLarge is returned when a record body exceeds the size a reader accepts.
var ErrRecordTooLarge = errors.New("log record too large")

// RecordKind distinguishes the mutations stored in the log file.
type RecordKind uint8

const (
	RecordAppend RecordKind = iota + 1
	RecordDelete
)

// Record is one durable log mutation. A whole AppendToLog or DeleteLogsFrom
// call maps to exactly one record so that it is replayed entirely or not at all.
type Record struct {
	Kind    RecordKind
	Entries []param.Entry
	Range   param.LogRange
}

const (
	recordKind      protowire.Number = 1
	recordEntry     protowire.Number = 2
	recordStart     protowire.Number = 3
	recordStop      protowire.Number = 4
	recordUnbounded protowire.Number = 5
)

const frameHeaderSize = 8

// maxRecordSize guards against allocating absurd buffers for a corrupt header.
// 写入端使用同一个上限，读不回来的记录不允许写出去。
var maxRecordSize = 256 << 20

var crcTable = crc32.MakeTable(crc32.Castagnoli)

// EncodeRecord returns the framed form of r: body length, CRC32-C of body, body.
func EncodeRecord(r Record) ([]byte, error) {
	body := appendVarintField(nil, recordKind, uint64(r.Kind))
	switch r.Kind {
	case RecordAppend:
		for _, e := range r.Entries {
			body = protowire.AppendTag(body, recordEntry, protowire.BytesType)
			body = protowire.AppendBytes(body, AppendEntry(nil, e))
		}
	case RecordDelete:
		body = appendVarintField(body, recordStart, r.Range.Start)
		body = appendVarintField(body, recordStop, r.Range.Stop)
		body = appendVarintField(body, recordUnbounded, protowire.EncodeBool(r.Range.Unbounded))
	}

	if len(body) > maxRecordSize {
		return nil, fmt.Errorf("%w: %d bytes, limit %d", ErrRecordTooLarge, len(body), maxRecordSize)
	}

	frame := make([]byte, frameHeaderSize, frameHeaderSize+len(body))
	binary.LittleEndian.PutUint32(frame[0:4], uint32(len(body)))
	binary.LittleEndian.PutUint32(frame[4:8], crc32.Checksum(body, crcTable))
	return append(frame, body...), nil
}

// ReadRecord reads the next framed record from r. It returns io.EOF at a clean
// end of stream and ErrTornRecord when the tail was cut short or corrupted.
func ReadRecord(r io.Reader) (Record, error) {
	var header [frameHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return Record{}, io.EOF
		}
		return Record{}, fmt.Errorf("%w: header: %v", ErrTornRecord, err)
	}

	size := binary.LittleEndian.Uint32(header[0:4])
	sum := binary.LittleEndian.Uint32(header[4:8])
	if int64(size) > int64(maxRecordSize) {
		return Record{}, fmt.Errorf("%w: record size %d", ErrTornRecord, size)
	}

	body := make([]byte, size)
	if _, err := io.ReadFull(r, body); err != nil {
		return Record{}, fmt.Errorf("%w: body: %v", ErrTornRecord, err)
	}
	if crc32.Checksum(body, crcTable) != sum {
		return Record{}, fmt.Errorf("%w: checksum mismatch", ErrTornRecord)
	}
	return decodeRecord(body)
}

func decodeRecord(b []byte) (Record, error) {
	var rec Record
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return rec, wireErr("record tag", n)
		}
		b = b[n:]

		switch {
		case num == recordEntry && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return rec, wireErr("record entry", n)
			}
			e, err := DecodeEntry(v)
			if err != nil {
				return rec, err
			}
			rec.Entries = append(rec.Entries, e)
			b = b[n:]
		case typ == protowire.VarintType && num >= recordKind && num <= recordUnbounded:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return rec, wireErr("record field", n)
			}
			switch num {
			case recordKind:
				rec.Kind = RecordKind(v)
			case recordStart:
				rec.Range.Start = v
			case recordStop:
				rec.Range.Stop = v
			case recordUnbounded:
				rec.Range.Unbounded = protowire.DecodeBool(v)
			}
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return rec, wireErr("unknown record field", n)
			}
			b = b[n:]
		}
	}
	if rec.Kind != RecordAppend && rec.Kind != RecordDelete {
		return rec, fmt.Errorf("%w: unknown record kind %d", ErrCorruptRecord, rec.Kind)
	}
	return rec, nil
}
