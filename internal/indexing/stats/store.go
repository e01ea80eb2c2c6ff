// Package stats aggregates block stream liveness counters.
package stats

import (
	"log/slog"
	"sync"
	"time"

	"github.com/vietddude/pulse/internal/indexing/metrics"
)

// Snapshot is a consistent copy of the store counters.
type Snapshot struct {
	ProcessedCount uint64
	LastHeight     uint64
	RatePerSecond  float64
}

// Store holds the counters shared by the consumer, the stall watcher and the
// metrics exporter. The consumer is the only writer of the count and height,
// the watcher the only writer of the rate.
type Store struct {
	mu        sync.Mutex
	processed uint64
	height    uint64
	rate      float64
	baseline  uint64

	metrics *metrics.Registry
	log     *slog.Logger
}

// NewStore creates a zeroed store.
func NewStore(m *metrics.Registry) *Store {
	return &Store{
		metrics: m,
		log:     slog.Default().With("component", "stats"),
	}
}

// RecordEvent counts one processed block. A height below the last seen height
// is counted and logged as an anomaly; the last height never moves backwards.
func (s *Store) RecordEvent(height uint64) {
	s.mu.Lock()
	s.processed++
	prev := s.height
	regressed := height < prev
	if !regressed {
		s.height = height
	}
	s.metrics.LatestBlock.Set(float64(s.height))
	s.mu.Unlock()

	if regressed {
		s.metrics.HeightRegressions.Inc()
		s.log.Warn("Block height went backwards", "height", height, "last_height", prev)
	}
}

// SampleAndResetRate computes the rate of events recorded since the previous
// sample over the given interval and makes the current count the new baseline.
func (s *Store) SampleAndResetRate(interval time.Duration) (count uint64, rate float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count = s.processed
	if secs := interval.Seconds(); secs > 0 {
		rate = float64(count-s.baseline) / secs
	}
	s.baseline = count
	s.rate = rate
	s.metrics.ProcessingRate.Set(rate)

	return count, rate
}

// Snapshot returns the current counters.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Snapshot{
		ProcessedCount: s.processed,
		LastHeight:     s.height,
		RatePerSecond:  s.rate,
	}
}
