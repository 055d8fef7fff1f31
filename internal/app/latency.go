package app

import (
	"sync"
	"time"
)

// DefaultLatencyWindow is the number of samples kept for latency stats.
const DefaultLatencyWindow = 30

// LatencySnapshot summarizes the recent capture-to-delivery delays.
type LatencySnapshot struct {
	Samples int           `json:"samples"`
	Last    time.Duration `json:"last_ns"`
	Mean    time.Duration `json:"mean_ns"`
	Max     time.Duration `json:"max_ns"`
}

// LatencyWindow keeps the last n latency samples.
type LatencyWindow struct {
	mu      sync.Mutex
	samples []time.Duration
	next    int
	full    bool
	last    time.Duration
}

// NewLatencyWindow returns a window of n samples.
func NewLatencyWindow(n int) *LatencyWindow {
	if n <= 0 {
		n = DefaultLatencyWindow
	}
	return &LatencyWindow{samples: make([]time.Duration, n)}
}

// Add records one sample.
func (w *LatencyWindow) Add(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.samples[w.next] = d
	w.next = (w.next + 1) % len(w.samples)
	if w.next == 0 {
		w.full = true
	}
	w.last = d
}

// Snapshot returns mean and max over the window.
func (w *LatencyWindow) Snapshot() LatencySnapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	n := w.next
	if w.full {
		n = len(w.samples)
	}
	if n == 0 {
		return LatencySnapshot{}
	}
	var sum, max time.Duration
	for _, d := range w.samples[:n] {
		sum += d
		if d > max {
			max = d
		}
	}
	return LatencySnapshot{Samples: n, Last: w.last, Mean: sum / time.Duration(n), Max: max}
}
