package store

import (
	"sync/atomic"
	"time"

	"github.com/heysubinoy/rollbook/pkg/roster"
)

// Operation names used as metric keys.
const (
	OpAdd    = "add"
	OpRemove = "remove"
	OpSearch = "search"
	OpList   = "list"
	OpSave   = "save"
	OpLoad   = "load"
)

var operations = []string{OpAdd, OpRemove, OpSearch, OpList, OpSave, OpLoad}

// opMetrics holds counters for a single operation.
// Uses atomic operations for thread-safe updates without locks.
type opMetrics struct {
	count     atomic.Uint64
	errors    atomic.Uint64
	latencyNs atomic.Uint64 // cumulative
}

// InstrumentedStore wraps any roster.Store implementation with timing metrics.
// This pattern works for both in-memory and Raft-backed stores.
type InstrumentedStore struct {
	store   roster.Store
	metrics map[string]*opMetrics
}

// Compile-time check to ensure InstrumentedStore implements roster.Store.
var _ roster.Store = (*InstrumentedStore)(nil)

// NewInstrumentedStore wraps a store with instrumentation.
func NewInstrumentedStore(store roster.Store) *InstrumentedStore {
	m := make(map[string]*opMetrics, len(operations))
	for _, op := range operations {
		m[op] = &opMetrics{}
	}
	return &InstrumentedStore{
		store:   store,
		metrics: m,
	}
}

// Unwrap returns the wrapped store.
func (s *InstrumentedStore) Unwrap() roster.Store {
	return s.store
}

func (s *InstrumentedStore) record(op string, start time.Time, err error) {
	m := s.metrics[op]
	m.count.Add(1)
	m.latencyNs.Add(uint64(time.Since(start).Nanoseconds()))
	if err != nil {
		m.errors.Add(1)
	}
}

// Add delegates to the wrapped store and records timing.
func (s *InstrumentedStore) Add(record roster.Record) error {
	start := time.Now()
	err := s.store.Add(record)
	s.record(OpAdd, start, err)
	return err
}

// Remove delegates to the wrapped store and records timing.
func (s *InstrumentedStore) Remove(rollNumber int) error {
	start := time.Now()
	err := s.store.Remove(rollNumber)
	s.record(OpRemove, start, err)
	return err
}

// Search delegates to the wrapped store and records timing.
func (s *InstrumentedStore) Search(rollNumber int) (roster.Record, bool) {
	start := time.Now()
	r, found := s.store.Search(rollNumber)
	s.record(OpSearch, start, nil)
	return r, found
}

// List delegates to the wrapped store and records timing.
func (s *InstrumentedStore) List() []roster.Record {
	start := time.Now()
	records := s.store.List()
	s.record(OpList, start, nil)
	return records
}

// Save delegates to the wrapped store and records timing.
func (s *InstrumentedStore) Save(path string) error {
	start := time.Now()
	err := s.store.Save(path)
	s.record(OpSave, start, err)
	return err
}

// Load delegates to the wrapped store and records timing.
func (s *InstrumentedStore) Load(path string) error {
	start := time.Now()
	err := s.store.Load(path)
	s.record(OpLoad, start, err)
	return err
}

// OpSnapshot is a point-in-time view of one operation's metrics.
type OpSnapshot struct {
	Count      uint64
	Errors     uint64
	AvgLatency time.Duration
}

// MetricsSnapshot is a point-in-time view of metrics, keyed by operation name.
type MetricsSnapshot map[string]OpSnapshot

// GetMetrics returns a snapshot of current metrics.
func (s *InstrumentedStore) GetMetrics() MetricsSnapshot {
	snap := make(MetricsSnapshot, len(s.metrics))
	for op, m := range s.metrics {
		count := m.count.Load()
		snap[op] = OpSnapshot{
			Count:      count,
			Errors:     m.errors.Load(),
			AvgLatency: avgLatency(m.latencyNs.Load(), count),
		}
	}
	return snap
}

// ResetMetrics clears all metrics counters.
func (s *InstrumentedStore) ResetMetrics() {
	for _, m := range s.metrics {
		m.count.Store(0)
		m.errors.Store(0)
		m.latencyNs.Store(0)
	}
}

func avgLatency(totalNs, count uint64) time.Duration {
	if count == 0 {
		return 0
	}
	return time.Duration(totalNs / count)
}
