package state

import (
	"bytes"
	"math"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/doridoridoriand/latencybar/internal/log"
	"github.com/doridoridoriand/latencybar/internal/ping"
)

func TestStatsUpdateSequence(t *testing.T) {
	stats := NewStats(nil)
	for _, s := range []ping.Sample{ping.Latency(10), ping.Lost(), ping.Latency(15), ping.Latency(12)} {
		stats.Update(s)
	}

	snap := stats.Snapshot()
	if !snap.Current.OK || snap.Current.Millis != 12 {
		t.Fatalf("expected current 12, got %v", snap.Current)
	}
	if snap.Minimum == nil || *snap.Minimum != 10 {
		t.Fatalf("expected min 10, got %v", snap.Minimum)
	}
	if snap.Maximum == nil || *snap.Maximum != 15 {
		t.Fatalf("expected max 15, got %v", snap.Maximum)
	}
	if snap.Average == nil || math.Abs(*snap.Average-37.0/3.0) > 1e-9 {
		t.Fatalf("expected avg 12.333, got %v", snap.Average)
	}
	if snap.Count != 3 {
		t.Fatalf("expected 3 successful samples, got %d", snap.Count)
	}
}

func TestStatsFailureOnlyTouchesCurrent(t *testing.T) {
	stats := NewStats(nil)
	stats.Update(ping.Lost())

	snap := stats.Snapshot()
	if snap.Current.OK {
		t.Fatalf("expected failed current, got %v", snap.Current)
	}
	if snap.Average != nil || snap.Minimum != nil || snap.Maximum != nil {
		t.Fatalf("expected unset aggregates, got %+v", snap)
	}

	stats.Update(ping.Latency(20))
	stats.Update(ping.Lost())
	if avg, ok := stats.Average(); !ok || avg != 20 {
		t.Fatalf("expected avg 20 after failure, got %v/%v", avg, ok)
	}
	if stats.Current().OK {
		t.Fatalf("expected failed current")
	}
}

func TestStatsResetReturnsInitialState(t *testing.T) {
	var buf bytes.Buffer
	logger := log.NewLogger(log.LevelInfo)
	logger.SetOutput(&buf)

	stats := NewStats(logger)
	initial := stats.Snapshot()
	stats.Update(ping.Latency(5))
	stats.Update(ping.Latency(7))
	stats.Reset()

	if !reflect.DeepEqual(stats.Snapshot(), initial) {
		t.Fatalf("expected initial snapshot after reset, got %+v", stats.Snapshot())
	}
	if _, ok := stats.Minimum(); ok {
		t.Fatalf("expected unset minimum after reset")
	}
	if _, ok := stats.Maximum(); ok {
		t.Fatalf("expected unset maximum after reset")
	}
	if stats.Count() != 0 {
		t.Fatalf("expected zero count after reset")
	}
	if !strings.Contains(buf.String(), `"dropped_entries":2`) {
		t.Fatalf("expected dropped entry count in reset log, got %q", buf.String())
	}
}

func TestStatsAdvisoryIsRateLimited(t *testing.T) {
	var buf bytes.Buffer
	logger := log.NewLogger(log.LevelWarn)
	logger.SetOutput(&buf)

	now := time.Unix(1700000000, 0)
	stats := NewStats(logger)
	stats.now = func() time.Time { return now }

	for i := 0; i < advisoryEvery; i++ {
		stats.Update(ping.Latency(1))
	}
	if !strings.Contains(buf.String(), `"entries":"10,000"`) {
		t.Fatalf("expected advisory at 10,000 entries, got %q", buf.String())
	}

	buf.Reset()
	for i := 0; i < advisoryEvery; i++ {
		stats.Update(ping.Latency(1))
	}
	if buf.Len() != 0 {
		t.Fatalf("expected advisory to be suppressed within a minute, got %q", buf.String())
	}

	now = now.Add(2 * time.Minute)
	for i := 0; i < advisoryEvery; i++ {
		stats.Update(ping.Latency(1))
	}
	if !strings.Contains(buf.String(), `"entries":"30,000"`) {
		t.Fatalf("expected advisory at 30,000 entries, got %q", buf.String())
	}
}

func TestStatsConcurrentUpdateAndReset(t *testing.T) {
	stats := NewStats(nil)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				stats.Update(ping.Latency(float64(i*j%50 + 1)))
				if j%50 == 0 {
					stats.Reset()
				}
			}
		}(i)
	}
	wg.Wait()

	snap := stats.Snapshot()
	if snap.Count > 0 && (*snap.Minimum > *snap.Average || *snap.Average > *snap.Maximum) {
		t.Fatalf("ordering violated: %+v", snap)
	}
}

func TestHistoryKeepsLastEntries(t *testing.T) {
	history := NewHistory(3)
	for i := 1; i <= 5; i++ {
		history.Push(ping.Latency(float64(i)))
	}

	got := history.Snapshot()
	want := []ping.Sample{ping.Latency(3), ping.Latency(4), ping.Latency(5)}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if history.Len() != 3 || history.Cap() != 3 {
		t.Fatalf("unexpected len/cap %d/%d", history.Len(), history.Cap())
	}
}

func TestHistoryDefaultsAndReset(t *testing.T) {
	history := NewHistory(0)
	if history.Cap() != DefaultHistorySize {
		t.Fatalf("expected default capacity %d, got %d", DefaultHistorySize, history.Cap())
	}

	history.Push(ping.Latency(1))
	history.Push(ping.Lost())
	history.Reset()
	if history.Len() != 0 || len(history.Snapshot()) != 0 {
		t.Fatalf("expected empty history after reset")
	}

	history.Push(ping.Latency(9))
	if got := history.Snapshot(); len(got) != 1 || got[0].Millis != 9 {
		t.Fatalf("unexpected history after reset and push: %v", got)
	}
}

func TestHistorySnapshotIsACopy(t *testing.T) {
	history := NewHistory(2)
	history.Push(ping.Latency(1))
	snap := history.Snapshot()
	snap[0] = ping.Latency(99)

	if history.Snapshot()[0].Millis != 1 {
		t.Fatalf("snapshot must not alias the buffer")
	}
}

func TestStoreEndToEndSequence(t *testing.T) {
	store := NewStore(DefaultHistorySize, nil)
	gen := store.Generation()

	var snap Snapshot
	for _, s := range []ping.Sample{ping.Latency(10), ping.Lost(), ping.Latency(15), ping.Latency(12)} {
		var ok bool
		snap, ok = store.Apply(gen, s)
		if !ok {
			t.Fatalf("expected sample %v to be applied", s)
		}
	}

	want := []ping.Sample{ping.Latency(10), ping.Lost(), ping.Latency(15), ping.Latency(12)}
	if !reflect.DeepEqual(snap.History, want) {
		t.Fatalf("expected history %v, got %v", want, snap.History)
	}
	if snap.Stats.Current.Millis != 12 || *snap.Stats.Minimum != 10 || *snap.Stats.Maximum != 15 {
		t.Fatalf("unexpected stats %+v", snap.Stats)
	}
}

func TestStoreDiscardsStaleGeneration(t *testing.T) {
	store := NewStore(10, nil)
	stale := store.Generation()
	store.Apply(stale, ping.Latency(50))

	next := store.Reset()
	if next == stale {
		t.Fatalf("expected generation to advance")
	}

	if _, ok := store.Apply(stale, ping.Latency(99)); ok {
		t.Fatalf("expected stale sample to be discarded")
	}
	snap := store.Snapshot()
	if len(snap.History) != 0 || snap.Stats.Count != 0 {
		t.Fatalf("expected empty store after reset, got %+v", snap)
	}

	if _, ok := store.Apply(next, ping.Latency(7)); !ok {
		t.Fatalf("expected current-generation sample to be applied")
	}
	if got := store.Snapshot().History; len(got) != 1 || got[0].Millis != 7 {
		t.Fatalf("unexpected history %v", got)
	}
}
