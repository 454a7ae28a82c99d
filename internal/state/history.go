package state

import (
	"sync"

	"github.com/doridoridoriand/latencybar/internal/ping"
)

// DefaultHistorySize holds about two minutes of samples at 1 Hz.
const DefaultHistorySize = 120

// History is a fixed-capacity ring of samples, oldest evicted first.
type History struct {
	mu    sync.Mutex
	data  []ping.Sample
	head  int
	count int
	size  int
}

// NewHistory returns an empty buffer holding up to size samples.
func NewHistory(size int) *History {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &History{
		data: make([]ping.Sample, size),
		size: size,
	}
}

// Push appends a sample, evicting the oldest when full.
func (h *History) Push(sample ping.Sample) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.data[h.head] = sample
	h.head = (h.head + 1) % h.size
	if h.count < h.size {
		h.count++
	}
}

// Reset removes every entry.
func (h *History) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i := range h.data {
		h.data[i] = ping.Sample{}
	}
	h.head = 0
	h.count = 0
}

// Snapshot returns the entries oldest first.
func (h *History) Snapshot() []ping.Sample {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]ping.Sample, h.count)
	start := (h.head - h.count + h.size) % h.size
	for i := 0; i < h.count; i++ {
		out[i] = h.data[(start+i)%h.size]
	}
	return out
}

// Len returns the number of stored entries.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

// Cap returns the buffer capacity.
func (h *History) Cap() int {
	return h.size
}
