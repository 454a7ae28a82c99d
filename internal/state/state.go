package state

import (
	"sync"
	"time"

	"github.com/doridoridoriand/latencybar/internal/log"
	"github.com/doridoridoriand/latencybar/internal/ping"
	"github.com/dustin/go-humanize"
)

const (
	advisoryEvery    = 10000
	advisoryInterval = time.Minute
)

// StatsSnapshot is an immutable view of Stats. Average, Minimum and Maximum
// are nil until a successful sample has been recorded since the last reset.
type StatsSnapshot struct {
	Current ping.Sample
	Average *float64
	Minimum *float64
	Maximum *float64
	Count   int
}

// Stats keeps the current sample and running aggregates over successful
// samples. It is safe for concurrent use.
type Stats struct {
	mu      sync.Mutex
	current ping.Sample
	values  []float64
	sum     float64
	min     float64
	max     float64

	lastAdvisory time.Time
	logger       *log.Logger
	now          func() time.Time
}

// NewStats returns empty statistics.
func NewStats(logger *log.Logger) *Stats {
	if logger == nil {
		logger = log.Discard()
	}
	return &Stats{logger: logger, now: time.Now}
}

// Update records one sample. A failed sample only replaces the current value.
func (s *Stats) Update(sample ping.Sample) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = sample
	if !sample.OK {
		return
	}

	v := sample.Millis
	if len(s.values) == 0 {
		s.min, s.max = v, v
	} else {
		if v < s.min {
			s.min = v
		}
		if v > s.max {
			s.max = v
		}
	}
	s.values = append(s.values, v)
	s.sum += v

	if n := len(s.values); n%advisoryEvery == 0 {
		now := s.now()
		if s.lastAdvisory.IsZero() || now.Sub(s.lastAdvisory) >= advisoryInterval {
			s.lastAdvisory = now
			s.logger.Warn("latency statistics are growing large, consider a reset", map[string]interface{}{
				"entries": humanize.Comma(int64(n)),
			})
		}
	}
}

// Reset clears all statistics back to the initial state.
func (s *Stats) Reset() {
	s.mu.Lock()
	dropped := len(s.values)
	s.current = ping.Sample{}
	s.values = nil
	s.sum, s.min, s.max = 0, 0, 0
	s.lastAdvisory = time.Time{}
	s.mu.Unlock()

	s.logger.Info("latency statistics reset", map[string]interface{}{
		"dropped_entries": dropped,
	})
}

// Snapshot returns a copy of the current statistics.
func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Stats) snapshotLocked() StatsSnapshot {
	snap := StatsSnapshot{Current: s.current, Count: len(s.values)}
	if len(s.values) == 0 {
		return snap
	}
	avg := s.sum / float64(len(s.values))
	if avg < s.min {
		avg = s.min
	}
	if avg > s.max {
		avg = s.max
	}
	lo, hi := s.min, s.max
	snap.Average = &avg
	snap.Minimum = &lo
	snap.Maximum = &hi
	return snap
}

// Current returns the most recent sample.
func (s *Stats) Current() ping.Sample {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Average returns the mean of successful samples.
func (s *Stats) Average() (float64, bool) {
	snap := s.Snapshot()
	if snap.Average == nil {
		return 0, false
	}
	return *snap.Average, true
}

// Minimum returns the lowest successful sample.
func (s *Stats) Minimum() (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.min, len(s.values) > 0
}

// Maximum returns the highest successful sample.
func (s *Stats) Maximum() (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.max, len(s.values) > 0
}

// Count returns the number of successful samples since the last reset.
func (s *Stats) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.values)
}
