package simplefile

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/xmh1011/raft-storage/codec"
	"github.com/xmh1011/raft-storage/param"
	"github.com/xmh1011/raft-storage/storage/inmemory"
)

// logFile 是只追加的日志文件，每次 AppendToLog/DeleteLogsFrom 对应一条带校验的记录。
// 前缀清理时整个文件被原子重写为只包含存活条目的一条记录。
type logFile struct {
	path string
	f    *os.File
	// log 与 Storage 共享；调用者持有 Storage 的日志写锁，因此这里读取它是安全的。
	log *inmemory.Log
}

// countingReader tracks how many bytes were consumed so that a torn tail can be cut off.
type countingReader struct {
	r *bufio.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// openLogFile replays path into a fresh in-memory log. A torn record at the
// tail is an interrupted write; it is truncated away and replay succeeds.
func openLogFile(path string, logger *slog.Logger) (*logFile, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, err
	}

	log := inmemory.NewLog()
	cr := &countingReader{r: bufio.NewReader(f)}
	var good int64
	records := 0
	for {
		rec, err := codec.ReadRecord(cr)
		if errors.Is(err, io.EOF) {
			break
		}
		if errors.Is(err, codec.ErrTornRecord) {
			logger.Warn("truncating torn log tail", "path", path, "offset", good, "error", err)
			if err := f.Truncate(good); err != nil {
				_ = f.Close()
				return nil, fmt.Errorf("truncate torn tail of %s: %w", path, err)
			}
			if err := f.Sync(); err != nil {
				_ = f.Close()
				return nil, err
			}
			break
		}
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("replay %s at offset %d: %w", path, good, err)
		}

		switch rec.Kind {
		case codec.RecordAppend:
			log.Append(rec.Entries)
		case codec.RecordDelete:
			log.Delete(rec.Range)
		}
		good = cr.n
		records++
	}

	if _, err := f.Seek(good, io.SeekStart); err != nil {
		_ = f.Close()
		return nil, err
	}
	logger.Debug("log file replayed", "path", path, "records", records, "entries", log.Len())
	return &logFile{path: path, f: f, log: log}, nil
}

func (l *logFile) write(rec codec.Record) error {
	frame, err := codec.EncodeRecord(rec)
	if err != nil {
		return err
	}
	if _, err := l.f.Write(frame); err != nil {
		return err
	}
	return l.f.Sync()
}

func (l *logFile) append(entries []param.Entry) error {
	return l.write(codec.Record{Kind: codec.RecordAppend, Entries: entries})
}

// delete 记录一次删除。如果删除覆盖了日志开头，就直接用存活条目重写整个文件。
func (l *logFile) delete(r param.LogRange) error {
	first, _, ok := l.log.Bounds()
	if !ok || r.Start > first {
		return l.write(codec.Record{Kind: codec.RecordDelete, Range: r})
	}

	var survivors []param.Entry
	for _, e := range l.log.All() {
		if !r.Contains(e.LogID.Index) {
			survivors = append(survivors, e)
		}
	}
	return l.rewrite(survivors)
}

func (l *logFile) rewrite(entries []param.Entry) error {
	var data []byte
	if len(entries) > 0 {
		var err error
		data, err = codec.EncodeRecord(codec.Record{Kind: codec.RecordAppend, Entries: entries})
		if err != nil {
			return fmt.Errorf("rewrite %s: %w", l.path, err)
		}
	}
	if err := writeFileAtomically(l.path, data); err != nil {
		return fmt.Errorf("rewrite %s: %w", l.path, err)
	}

	f, err := os.OpenFile(l.path, os.O_RDWR|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	_ = l.f.Close()
	l.f = f
	return nil
}

func (l *logFile) close() error {
	return l.f.Close()
}
