package metrics

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus exposes storage metrics through a prometheus.Registerer.
type Prometheus struct {
	lastApplied      *prometheus.GaugeVec
	lastLogIndex     *prometheus.GaugeVec
	snapshotIndex    *prometheus.GaugeVec
	applyBatchSize   *prometheus.HistogramVec
	applyDuration    *prometheus.HistogramVec
	storageErrors    *prometheus.CounterVec
	compactionsTotal *prometheus.CounterVec
}

func NewPrometheus(reg prometheus.Registerer) (*Prometheus, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Prometheus{
		lastApplied: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "raftstore",
				Subsystem: "state_machine",
				Name:      "last_applied_index",
				Help:      "Index of the last log entry applied to the state machine.",
			},
			[]string{"node_id"},
		),
		lastLogIndex: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "raftstore",
				Subsystem: "log",
				Name:      "last_index",
				Help:      "Index of the last entry physically stored in the log.",
			},
			[]string{"node_id"},
		),
		snapshotIndex: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "raftstore",
				Subsystem: "snapshot",
				Name:      "last_index",
				Help:      "Last log index covered by the current snapshot.",
			},
			[]string{"node_id"},
		),
		applyBatchSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "raftstore",
				Subsystem: "state_machine",
				Name:      "apply_batch_entries",
				Help:      "Number of entries per apply batch.",
				Buckets:   []float64{1, 2, 5, 10, 20, 50, 100, 200, 500, 1000},
			},
			[]string{"node_id"},
		),
		applyDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "raftstore",
				Subsystem: "state_machine",
				Name:      "apply_batch_duration_seconds",
				Help:      "Time spent applying one batch of committed entries.",
				Buckets:   []float64{0.0001, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.5},
			},
			[]string{"node_id"},
		),
		storageErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "raftstore",
				Subsystem: "storage",
				Name:      "errors_total",
				Help:      "Storage operation failures by operation.",
			},
			[]string{"node_id", "op"},
		),
		compactionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "raftstore",
				Subsystem: "snapshot",
				Name:      "compactions_total",
				Help:      "Log compaction attempts by result.",
			},
			[]string{"node_id", "result"},
		),
	}

	var err error
	if m.lastApplied, err = register(reg, m.lastApplied); err != nil {
		return nil, err
	}
	if m.lastLogIndex, err = register(reg, m.lastLogIndex); err != nil {
		return nil, err
	}
	if m.snapshotIndex, err = register(reg, m.snapshotIndex); err != nil {
		return nil, err
	}
	if m.applyBatchSize, err = register(reg, m.applyBatchSize); err != nil {
		return nil, err
	}
	if m.applyDuration, err = register(reg, m.applyDuration); err != nil {
		return nil, err
	}
	if m.storageErrors, err = register(reg, m.storageErrors); err != nil {
		return nil, err
	}
	if m.compactionsTotal, err = register(reg, m.compactionsTotal); err != nil {
		return nil, err
	}
	return m, nil
}

// register adds c to reg. When an equal collector is already registered the
// existing one is returned so repeated construction shares series.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, fmt.Errorf("register raftstore metrics: %w", err)
	}
	return c, nil
}

func nodeLabel(nodeID uint64) string {
	return strconv.FormatUint(nodeID, 10)
}

func (m *Prometheus) SetLastApplied(nodeID uint64, index uint64) {
	m.lastApplied.WithLabelValues(nodeLabel(nodeID)).Set(float64(index))
}

func (m *Prometheus) SetLastLogIndex(nodeID uint64, index uint64) {
	m.lastLogIndex.WithLabelValues(nodeLabel(nodeID)).Set(float64(index))
}

func (m *Prometheus) SetSnapshotIndex(nodeID uint64, index uint64) {
	m.snapshotIndex.WithLabelValues(nodeLabel(nodeID)).Set(float64(index))
}

func (m *Prometheus) ObserveApplyBatch(nodeID uint64, entries int, d time.Duration) {
	label := nodeLabel(nodeID)
	m.applyBatchSize.WithLabelValues(label).Observe(float64(entries))
	m.applyDuration.WithLabelValues(label).Observe(d.Seconds())
}

func (m *Prometheus) IncStorageError(nodeID uint64, op string) {
	m.storageErrors.WithLabelValues(nodeLabel(nodeID), op).Inc()
}

func (m *Prometheus) IncCompaction(nodeID uint64, result string) {
	m.compactionsTotal.WithLabelValues(nodeLabel(nodeID), result).Inc()
}
