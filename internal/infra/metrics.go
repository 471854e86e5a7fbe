package infra

import (
	"sync/atomic"
	"time"
)

// Metrics provides lightweight observability without external dependencies.
// Uses atomic operations for thread-safety.
type Metrics struct {
	// Counters
	updatesIngested  atomic.Uint64
	ordersCreated    atomic.Uint64
	updatesApplied   atomic.Uint64
	updatesDiscarded atomic.Uint64
	updatesMalformed atomic.Uint64
	batchesDrained   atomic.Uint64

	// Latency tracking (per reconciled update)
	latencySumNs atomic.Int64
	latencyCount atomic.Uint64

	// Gauges
	queueDepth    atomic.Int64
	feedConnected atomic.Int32 // 1 = connected, 0 = disconnected
}

// GlobalMetrics is the singleton metrics instance.
var GlobalMetrics = &Metrics{}

// RecordIngested records an update accepted into the ingest queue.
func (m *Metrics) RecordIngested() {
	m.updatesIngested.Add(1)
}

// RecordCreated records an update that materialized a new order.
func (m *Metrics) RecordCreated(latencyNs int64) {
	m.ordersCreated.Add(1)
	m.latencySumNs.Add(latencyNs)
	m.latencyCount.Add(1)
}

// RecordApplied records an update folded into an existing order.
func (m *Metrics) RecordApplied(latencyNs int64) {
	m.updatesApplied.Add(1)
	m.latencySumNs.Add(latencyNs)
	m.latencyCount.Add(1)
}

// RecordDiscarded records a stale update dropped by the reconciler.
func (m *Metrics) RecordDiscarded() {
	m.updatesDiscarded.Add(1)
}

// RecordMalformed records an update rejected before reconciliation.
func (m *Metrics) RecordMalformed() {
	m.updatesMalformed.Add(1)
}

// RecordBatch records one drain tick that processed at least one update.
func (m *Metrics) RecordBatch() {
	m.batchesDrained.Add(1)
}

// SetQueueDepth sets the current ingest queue depth.
func (m *Metrics) SetQueueDepth(depth int) {
	m.queueDepth.Store(int64(depth))
}

// SetFeedConnected sets the feed connectivity gauge.
func (m *Metrics) SetFeedConnected(connected bool) {
	if connected {
		m.feedConnected.Store(1)
	} else {
		m.feedConnected.Store(0)
	}
}

// MetricsSnapshot is a point-in-time view of all metrics.
type MetricsSnapshot struct {
	UpdatesIngested  uint64    `json:"updates_ingested"`
	OrdersCreated    uint64    `json:"orders_created"`
	UpdatesApplied   uint64    `json:"updates_applied"`
	UpdatesDiscarded uint64    `json:"updates_discarded"`
	UpdatesMalformed uint64    `json:"updates_malformed"`
	BatchesDrained   uint64    `json:"batches_drained"`
	AvgLatencyNs     int64     `json:"avg_latency_ns"`
	QueueDepth       int64     `json:"queue_depth"`
	FeedConnected    bool      `json:"feed_connected"`
	Timestamp        time.Time `json:"timestamp"`
}

// Snapshot returns current metrics as a snapshot.
func (m *Metrics) Snapshot() MetricsSnapshot {
	var avgLatency int64
	count := m.latencyCount.Load()
	if count > 0 {
		avgLatency = m.latencySumNs.Load() / int64(count)
	}

	return MetricsSnapshot{
		UpdatesIngested:  m.updatesIngested.Load(),
		OrdersCreated:    m.ordersCreated.Load(),
		UpdatesApplied:   m.updatesApplied.Load(),
		UpdatesDiscarded: m.updatesDiscarded.Load(),
		UpdatesMalformed: m.updatesMalformed.Load(),
		BatchesDrained:   m.batchesDrained.Load(),
		AvgLatencyNs:     avgLatency,
		QueueDepth:       m.queueDepth.Load(),
		FeedConnected:    m.feedConnected.Load() == 1,
		Timestamp:        time.Now(),
	}
}

// Reset clears all metrics (for testing).
func (m *Metrics) Reset() {
	m.updatesIngested.Store(0)
	m.ordersCreated.Store(0)
	m.updatesApplied.Store(0)
	m.updatesDiscarded.Store(0)
	m.updatesMalformed.Store(0)
	m.batchesDrained.Store(0)
	m.latencySumNs.Store(0)
	m.latencyCount.Store(0)
	m.queueDepth.Store(0)
	m.feedConnected.Store(0)
}
