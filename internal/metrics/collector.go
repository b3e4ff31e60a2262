// Package metrics provides in-memory statistics for backend requests.
package metrics

import (
	"math"
	"sort"
	"sync"
	"time"
)

// Outcome classifies how a request ended.
type Outcome int

const (
	OutcomeOK Outcome = iota
	// OutcomeRequestError means the backend answered with a non-2xx status.
	OutcomeRequestError
	// OutcomeConnectivity means no response was received.
	OutcomeConnectivity
)

// OperationMetrics holds aggregated metrics for a single gateway operation.
type OperationMetrics struct {
	Count     int64
	Failures  int64
	Offline   int64
	TotalTime time.Duration
	MinTime   time.Duration
	MaxTime   time.Duration
}

// OperationSnapshot provides computed stats from raw metrics.
type OperationSnapshot struct {
	Operation   string
	Count       int64
	Failures    int64
	Offline     int64
	TotalTimeMs int64
	AvgTimeMs   float64
	MinTimeMs   int64
	MaxTimeMs   int64
}

// Snapshot represents all request statistics at a point in time.
type Snapshot struct {
	UptimeSeconds float64
	Operations    []OperationSnapshot // sorted by operation name
}

// Collector aggregates request statistics.
// All methods are thread-safe.
type Collector struct {
	mu        sync.RWMutex
	startTime time.Time
	ops       map[string]*OperationMetrics
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{
		startTime: time.Now(),
		ops:       make(map[string]*OperationMetrics),
	}
}

// getOrCreate returns existing metrics or creates new ones for an operation.
// Caller must hold write lock.
func (c *Collector) getOrCreate(op string) *OperationMetrics {
	m, ok := c.ops[op]
	if !ok {
		m = &OperationMetrics{MinTime: time.Duration(math.MaxInt64)}
		c.ops[op] = m
	}
	return m
}

// RecordRequest records one completed gateway request.
func (c *Collector) RecordRequest(op string, duration time.Duration, outcome Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.getOrCreate(op)
	m.Count++
	m.TotalTime += duration

	if duration < m.MinTime {
		m.MinTime = duration
	}
	if duration > m.MaxTime {
		m.MaxTime = duration
	}

	switch outcome {
	case OutcomeRequestError:
		m.Failures++
	case OutcomeConnectivity:
		m.Failures++
		m.Offline++
	}
}

// snapshotOp creates a snapshot for an operation, returning nil if no data.
func snapshotOp(name string, m *OperationMetrics) *OperationSnapshot {
	if m == nil || m.Count == 0 {
		return nil
	}
	return &OperationSnapshot{
		Operation:   name,
		Count:       m.Count,
		Failures:    m.Failures,
		Offline:     m.Offline,
		TotalTimeMs: m.TotalTime.Milliseconds(),
		AvgTimeMs:   float64(m.TotalTime.Milliseconds()) / float64(m.Count),
		MinTimeMs:   m.MinTime.Milliseconds(),
		MaxTimeMs:   m.MaxTime.Milliseconds(),
	}
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap := Snapshot{UptimeSeconds: time.Since(c.startTime).Seconds()}
	for name, m := range c.ops {
		if s := snapshotOp(name, m); s != nil {
			snap.Operations = append(snap.Operations, *s)
		}
	}
	sort.Slice(snap.Operations, func(i, j int) bool {
		return snap.Operations[i].Operation < snap.Operations[j].Operation
	})
	return snap
}
