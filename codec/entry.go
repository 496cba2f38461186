package codec

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/xmh1011/raft-storage/param"
)

var ErrCorruptRecord = errors.New("corrupt log record")

// Field numbers of the entry message.
const (
	entryTerm         protowire.Number = 1
	entryIndex        protowire.Number = 2
	entryType         protowire.Number = 3
	entryData         protowire.Number = 4
	entryMembership   protowire.Number = 5
	entrySnapshotMeta protowire.Number = 6
)

// Field numbers of the membership message.
const (
	membershipVoter   protowire.Number = 1
	membershipLearner protowire.Number = 2
)

// Field numbers of the snapshot meta message.
const (
	metaTerm       protowire.Number = 1
	metaIndex      protowire.Number = 2
	metaSnapshotID protowire.Number = 3
)

// AppendEntry appends the wire form of e to b.
func AppendEntry(b []byte, e param.Entry) []byte {
	b = appendVarintField(b, entryTerm, e.LogID.Term)
	b = appendVarintField(b, entryIndex, e.LogID.Index)
	b = appendVarintField(b, entryType, uint64(e.Payload.Type))
	if e.Payload.Data != nil {
		b = protowire.AppendTag(b, entryData, protowire.BytesType)
		b = protowire.AppendBytes(b, e.Payload.Data)
	}
	if e.Payload.Membership != nil {
		b = protowire.AppendTag(b, entryMembership, protowire.BytesType)
		b = protowire.AppendBytes(b, appendMembership(nil, *e.Payload.Membership))
	}
	if e.Payload.SnapshotMeta != nil {
		b = protowire.AppendTag(b, entrySnapshotMeta, protowire.BytesType)
		b = protowire.AppendBytes(b, appendSnapshotMeta(nil, *e.Payload.SnapshotMeta))
	}
	return b
}

// DecodeEntry parses an entry produced by AppendEntry. Unknown fields are skipped.
func DecodeEntry(b []byte) (param.Entry, error) {
	var e param.Entry
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return e, wireErr("entry tag", n)
		}
		b = b[n:]

		switch {
		case num == entryTerm && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return e, wireErr("entry term", n)
			}
			e.LogID.Term = v
			b = b[n:]
		case num == entryIndex && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return e, wireErr("entry index", n)
			}
			e.LogID.Index = v
			b = b[n:]
		case num == entryType && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return e, wireErr("entry type", n)
			}
			e.Payload.Type = param.EntryType(v)
			b = b[n:]
		case num == entryData && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return e, wireErr("entry data", n)
			}
			e.Payload.Data = append([]byte{}, v...)
			b = b[n:]
		case num == entryMembership && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return e, wireErr("entry membership", n)
			}
			m, err := decodeMembership(v)
			if err != nil {
				return e, err
			}
			e.Payload.Membership = &m
			b = b[n:]
		case num == entrySnapshotMeta && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return e, wireErr("entry snapshot meta", n)
			}
			meta, err := decodeSnapshotMeta(v)
			if err != nil {
				return e, err
			}
			e.Payload.SnapshotMeta = &meta
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return e, wireErr("unknown entry field", n)
			}
			b = b[n:]
		}
	}
	if e.Payload.Type > param.EntrySnapshotPointer {
		return e, fmt.Errorf("%w: unknown entry type %d", ErrCorruptRecord, e.Payload.Type)
	}
	return e, nil
}

func appendMembership(b []byte, m param.Membership) []byte {
	for _, id := range m.Voters {
		b = appendVarintField(b, membershipVoter, uint64(id))
	}
	for _, id := range m.Learners {
		b = appendVarintField(b, membershipLearner, uint64(id))
	}
	return b
}

func decodeMembership(b []byte) (param.Membership, error) {
	var voters, learners []param.NodeID
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return param.Membership{}, wireErr("membership tag", n)
		}
		b = b[n:]
		if typ != protowire.VarintType || (num != membershipVoter && num != membershipLearner) {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return param.Membership{}, wireErr("unknown membership field", n)
			}
			b = b[n:]
			continue
		}
		v, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return param.Membership{}, wireErr("membership id", n)
		}
		b = b[n:]
		if num == membershipVoter {
			voters = append(voters, param.NodeID(v))
		} else {
			learners = append(learners, param.NodeID(v))
		}
	}
	return param.NewMembership(voters, learners), nil
}

func appendSnapshotMeta(b []byte, meta param.SnapshotMeta) []byte {
	b = appendVarintField(b, metaTerm, meta.LastLogID.Term)
	b = appendVarintField(b, metaIndex, meta.LastLogID.Index)
	b = protowire.AppendTag(b, metaSnapshotID, protowire.BytesType)
	return protowire.AppendString(b, meta.SnapshotID)
}

func decodeSnapshotMeta(b []byte) (param.SnapshotMeta, error) {
	var meta param.SnapshotMeta
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return meta, wireErr("snapshot meta tag", n)
		}
		b = b[n:]
		switch {
		case num == metaTerm && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return meta, wireErr("snapshot meta term", n)
			}
			meta.LastLogID.Term = v
			b = b[n:]
		case num == metaIndex && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return meta, wireErr("snapshot meta index", n)
			}
			meta.LastLogID.Index = v
			b = b[n:]
		case num == metaSnapshotID && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return meta, wireErr("snapshot id", n)
			}
			meta.SnapshotID = v
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return meta, wireErr("unknown snapshot meta field", n)
			}
			b = b[n:]
		}
	}
	return meta, nil
}

func appendVarintField(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func wireErr(what string, n int) error {
	return fmt.Errorf("%w: %s: %v", ErrCorruptRecord, what, protowire.ParseError(n))
}
