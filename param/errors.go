package param

import (
	"errors"
	"fmt"
)

var (
	ErrLogNotFound            = errors.New("log entry not found")
	ErrIndexOutOfBounds       = errors.New("index is out of bounds")
	ErrInvalidRange           = errors.New("invalid log range")
	ErrNonContiguousEntries   = errors.New("non-contiguous log entries")
	ErrApplyOutOfOrder        = errors.New("entries applied out of log order")
	ErrSnapshotPointerApplied = errors.New("snapshot pointer entry passed to state machine")
	ErrTruncateApplied        = errors.New("truncation would remove applied entries")
	ErrStorageClosed          = errors.New("storage is closed")
	ErrNoSnapshot             = errors.New("no snapshot available")
)

// Severity tells the consensus core whether it must halt or may retry.
type Severity int

const (
	// SeverityFatal means the durability or consistency contract can no longer be
	// honored; the node must stop participating in consensus.
	SeverityFatal Severity = iota
	// SeverityRetryable means already durable state is intact and the operation may
	// be attempted again later.
	SeverityRetryable
)

func (s Severity) String() string {
	switch s {
	case SeverityFatal:
		return "fatal"
	case SeverityRetryable:
		return "retryable"
	default:
		return "unknown"
	}
}

// StorageError carries the failed operation, the log id or range it touched and
// the severity the caller has to act on.
type StorageError struct {
	Severity Severity
	Op       string
	Subject  string
	Err      error
}

func (e *StorageError) Error() string {
	if e.Subject == "" {
		return fmt.Sprintf("raft storage: %s (%s): %v", e.Op, e.Severity, e.Err)
	}
	return fmt.Sprintf("raft storage: %s %s (%s): %v", e.Op, e.Subject, e.Severity, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// NewFatal wraps err as a fatal storage error. A nil err yields nil.
func NewFatal(op, subject string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) && se.Severity == SeverityFatal {
		return err
	}
	return &StorageError{Severity: SeverityFatal, Op: op, Subject: subject, Err: err}
}

// NewRetryable wraps err as a retryable storage error. A nil err yields nil.
func NewRetryable(op, subject string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Severity: SeverityRetryable, Op: op, Subject: subject, Err: err}
}

// IsFatal reports whether err must halt the node. Errors that are not
// StorageErrors are treated as fatal.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var se *StorageError
	if errors.As(err, &se) {
		return se.Severity == SeverityFatal
	}
	return true
}

// IsRetryable reports whether err may be retried later.
func IsRetryable(err error) bool {
	var se *StorageError
	return errors.As(err, &se) && se.Severity == SeverityRetryable
}
