package state

import (
	"sync"

	"github.com/doridoridoriand/latencybar/internal/log"
	"github.com/doridoridoriand/latencybar/internal/ping"
)

// Snapshot is a consistent view of statistics and history.
type Snapshot struct {
	Stats      StatsSnapshot
	History    []ping.Sample
	Generation uint64
}

// Store applies samples to Stats and History together. Every reset advances
// the generation; samples taken under an older generation are discarded.
type Store struct {
	mu         sync.Mutex
	stats      *Stats
	history    *History
	generation uint64
}

// NewStore returns a store with a history of historySize entries.
func NewStore(historySize int, logger *log.Logger) *Store {
	return &Store{
		stats:   NewStats(logger),
		history: NewHistory(historySize),
	}
}

// Generation returns the current generation.
func (s *Store) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// Apply records sample if gen is still current. It reports whether the
// sample was applied, along with the resulting snapshot.
func (s *Store) Apply(gen uint64, sample ping.Sample) (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		return Snapshot{}, false
	}
	s.stats.Update(sample)
	s.history.Push(sample)
	return s.snapshotLocked(), true
}

// Reset clears statistics and history and returns the new generation.
func (s *Store) Reset() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.generation++
	s.stats.Reset()
	s.history.Reset()
	return s.generation
}

// Snapshot returns the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{
		Stats:      s.stats.Snapshot(),
		History:    s.history.Snapshot(),
		Generation: s.generation,
	}
}

// HistoryCap returns the capacity of the history buffer.
func (s *Store) HistoryCap() int {
	return s.history.Cap()
}
