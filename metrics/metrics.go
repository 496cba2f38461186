package metrics

import "time"

// Metrics captures storage-layer metric sinks used by the backends.
type Metrics interface {
	SetLastApplied(nodeID uint64, index uint64)
	SetLastLogIndex(nodeID uint64, index uint64)
	SetSnapshotIndex(nodeID uint64, index uint64)
	ObserveApplyBatch(nodeID uint64, entries int, d time.Duration)
	IncStorageError(nodeID uint64, op string)
	IncCompaction(nodeID uint64, result string)
}

// Noop discards every observation.
type Noop struct{}

func (Noop) SetLastApplied(uint64, uint64)                {}
func (Noop) SetLastLogIndex(uint64, uint64)               {}
func (Noop) SetSnapshotIndex(uint64, uint64)              {}
func (Noop) ObserveApplyBatch(uint64, int, time.Duration) {}
func (Noop) IncStorageError(uint64, string)               {}
func (Noop) IncCompaction(uint64, string)                 {}

// OrNoop returns m, or Noop when m is nil.
func OrNoop(m Metrics) Metrics {
	if m == nil {
		return Noop{}
	}
	return m
}
