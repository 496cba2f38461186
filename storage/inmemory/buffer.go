package inmemory

import (
	"errors"
	"fmt"
	"io"
)

var errBufferClosed = errors.New("snapshot buffer is closed")

// SnapshotBuffer 是快照数据的内存句柄，实现 param.SnapshotData。
// 同一时刻只有一个持有者，因此不加锁。
type SnapshotBuffer struct {
	buf    []byte
	off    int64
	closed bool
}

// NewSnapshotBuffer returns an empty buffer ready for writing.
func NewSnapshotBuffer() *SnapshotBuffer {
	return &SnapshotBuffer{}
}

// NewSnapshotBufferFrom returns a buffer positioned at offset 0 over a copy of data.
func NewSnapshotBufferFrom(data []byte) *SnapshotBuffer {
	return &SnapshotBuffer{buf: append([]byte(nil), data...)}
}

func (b *SnapshotBuffer) Read(p []byte) (int, error) {
	if b.closed {
		return 0, errBufferClosed
	}
	if b.off >= int64(len(b.buf)) {
		return 0, io.EOF
	}
	n := copy(p, b.buf[b.off:])
	b.off += int64(n)
	return n, nil
}

func (b *SnapshotBuffer) Write(p []byte) (int, error) {
	if b.closed {
		return 0, errBufferClosed
	}
	end := b.off + int64(len(p))
	if end > int64(len(b.buf)) {
		if end > int64(cap(b.buf)) {
			grown := make([]byte, end, max(end, 2*int64(cap(b.buf))))
			copy(grown, b.buf)
			b.buf = grown
		} else {
			b.buf = b.buf[:end]
		}
	}
	copy(b.buf[b.off:], p)
	b.off = end
	return len(p), nil
}

func (b *SnapshotBuffer) Seek(offset int64, whence int) (int64, error) {
	if b.closed {
		return 0, errBufferClosed
	}
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = b.off + offset
	case io.SeekEnd:
		abs = int64(len(b.buf)) + offset
	default:
		return 0, fmt.Errorf("seek: invalid whence %d", whence)
	}
	if abs < 0 {
		return 0, fmt.Errorf("seek: negative position %d", abs)
	}
	b.off = abs
	return abs, nil
}

func (b *SnapshotBuffer) Close() error {
	b.closed = true
	return nil
}

// Bytes returns the buffer content written so far.
func (b *SnapshotBuffer) Bytes() []byte {
	return b.buf
}
