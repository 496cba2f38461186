package inmemory

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/zhangyunhao116/skipmap"

	"github.com/xmh1011/raft-storage/param"
)

// logBounds 记录当前日志的首尾索引，整体替换以保证读者看到的一对值是一致的。
type logBounds struct {
	first uint64
	last  uint64
}

// Log 是按索引有序的内存日志。
// 写操作（Append/Delete）之间相互串行，读操作无锁，可以与写操作并发进行。
type Log struct {
	mu      sync.Mutex
	entries *skipmap.OrderedMap[uint64, param.Entry]
	bounds  atomic.Pointer[logBounds] // nil 表示日志为空
}

// NewLog creates an empty log.
func NewLog() *Log {
	return &Log{
		entries: skipmap.New[uint64, param.Entry](),
	}
}

// Bounds returns the first and last stored index. ok is false for an empty log.
func (l *Log) Bounds() (first, last uint64, ok bool) {
	b := l.bounds.Load()
	if b == nil {
		return 0, 0, false
	}
	return b.first, b.last, true
}

// Len returns the number of stored entries.
func (l *Log) Len() int {
	return l.entries.Len()
}

// Get returns a copy of the entry stored at index.
func (l *Log) Get(index uint64) (param.Entry, bool) {
	e, ok := l.entries.Load(index)
	if !ok {
		return param.Entry{}, false
	}
	return e.Clone(), true
}

// FirstEntry returns the earliest stored entry. Bounds and lookup happen under
// the write lock so a concurrent Delete cannot slip in between.
func (l *Log) FirstEntry() (param.Entry, bool) {
	return l.edge(func(b *logBounds) uint64 { return b.first })
}

// LastEntry returns the latest stored entry.
func (l *Log) LastEntry() (param.Entry, bool) {
	return l.edge(func(b *logBounds) uint64 { return b.last })
}

func (l *Log) edge(pick func(*logBounds) uint64) (param.Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.bounds.Load()
	if b == nil {
		return param.Entry{}, false
	}
	return l.Get(pick(b))
}

// Entries returns copies of the entries in r, clamped to the stored bounds.
// When strict is set every index of the clamped range must be present and a
// bounded range must lie inside the log.
func (l *Log) Entries(r param.LogRange, strict bool) ([]param.Entry, error) {
	if r.IsEmpty() {
		return nil, nil
	}

	first, last, ok := l.Bounds()
	if !ok {
		if strict {
			return nil, fmt.Errorf("%w: %s on empty log", param.ErrLogNotFound, r)
		}
		return nil, nil
	}
	if strict && (r.Start < first || (!r.Unbounded && r.Stop > last+1)) {
		return nil, fmt.Errorf("%w: %s outside [%d, %d]", param.ErrLogNotFound, r, first, last)
	}

	start, stop, ok := r.Clamp(first, last)
	if !ok {
		return nil, nil
	}

	out := make([]param.Entry, 0, stop-start)
	for i := start; i < stop; i++ {
		e, found := l.entries.Load(i)
		if !found {
			if strict {
				return nil, fmt.Errorf("%w: index %d", param.ErrLogNotFound, i)
			}
			continue
		}
		out = append(out, e.Clone())
	}
	return out, nil
}

// Holes reports the first missing index inside [start, stop) ∩ bounds, if any.
func (l *Log) Holes(r param.LogRange) (uint64, bool) {
	first, last, ok := l.Bounds()
	if !ok {
		return 0, false
	}
	start, stop, ok := r.Clamp(first, last)
	if !ok {
		return 0, false
	}
	for i := start; i < stop; i++ {
		if _, found := l.entries.Load(i); !found {
			return i, true
		}
	}
	return 0, false
}

// All returns every stored entry in index order.
func (l *Log) All() []param.Entry {
	out := make([]param.Entry, 0, l.entries.Len())
	l.entries.Range(func(_ uint64, e param.Entry) bool {
		out = append(out, e.Clone())
		return true
	})
	return out
}

// Append stores every entry at its own index, overwriting whatever was there.
func (l *Log) Append(entries []param.Entry) {
	if len(entries) == 0 {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	nb := logBounds{first: entries[0].LogID.Index, last: entries[0].LogID.Index}
	if b := l.bounds.Load(); b != nil {
		nb = *b
	}
	for _, e := range entries {
		l.entries.Store(e.LogID.Index, e.Clone())
		nb.first = min(nb.first, e.LogID.Index)
		nb.last = max(nb.last, e.LogID.Index)
	}
	l.bounds.Store(&nb)
}

// Delete removes the entries in r and returns how many were removed.
func (l *Log) Delete(r param.LogRange) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.bounds.Load()
	if b == nil {
		return 0
	}
	start, stop, ok := r.Clamp(b.first, b.last)
	if !ok {
		return 0
	}

	removed := 0
	for i := start; i < stop; i++ {
		if _, found := l.entries.LoadAndDelete(i); found {
			removed++
		}
	}

	nb := *b
	if start <= b.first {
		nb.first = stop
	}
	if stop > b.last {
		nb.last = start - 1
	}
	if start <= b.first && stop > b.last {
		l.bounds.Store(nil)
		return removed
	}
	// 跳过删除范围边缘可能存在的空洞
	for nb.first <= nb.last {
		if _, found := l.entries.Load(nb.first); found {
			break
		}
		nb.first++
	}
	for nb.last > nb.first {
		if _, found := l.entries.Load(nb.last); found {
			break
		}
		nb.last--
	}
	l.bounds.Store(&nb)
	return removed
}
