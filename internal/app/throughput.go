package app

import (
	"sync"
	"time"
)

// ThroughputSnapshot summarizes one measurement window.
type ThroughputSnapshot struct {
	Window         time.Duration
	Frames         int
	Chunks         int
	FPS            float64
	ChunksPerFrame float64
	At             time.Time
}

// Throughput counts frames and chunks over fixed windows.
type Throughput struct {
	mu     sync.Mutex
	window time.Duration
	now    func() time.Time

	start  time.Time
	frames int
	chunks int
	last   ThroughputSnapshot
}

// NewThroughput returns a counter that closes a window every d.
func NewThroughput(d time.Duration) *Throughput {
	if d <= 0 {
		d = DefaultWindow
	}
	return &Throughput{window: d, now: time.Now}
}

// Record adds one frame of the given chunk count.
func (t *Throughput) Record(chunks int) (ThroughputSnapshot, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if t.start.IsZero() {
		t.start = now
	}
	t.frames++
	t.chunks += chunks

	elapsed := now.Sub(t.start)
	if elapsed < t.window {
		return ThroughputSnapshot{}, false
	}
	snap := ThroughputSnapshot{
		Window: elapsed,
		Frames: t.frames,
		Chunks: t.chunks,
		FPS:    float64(t.frames) / elapsed.Seconds(),
		At:     now,
	}
	if t.frames > 0 {
		snap.ChunksPerFrame = float64(t.chunks) / float64(t.frames)
	}
	t.last = snap
	t.start = now
	t.frames = 0
	t.chunks = 0
	return snap, true
}

// Last returns the most recently closed window.
func (t *Throughput) Last() ThroughputSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}
