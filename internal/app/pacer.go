package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/mob852/framecast/internal/domain"
	"github.com/mob852/framecast/internal/ports"
)

// Pacing defaults taken from the capture scripts.
const (
	DefaultFPS        = 30
	DefaultChunkDelay = 500 * time.Microsecond
	DefaultWindow     = time.Second
)

// Pacer enforces a minimum delay between datagrams and a frame rate ceiling.
// Both cadences are token buckets with a burst of one, so the first frame and
// the first datagram go out immediately.
type Pacer struct {
	frames *rate.Limiter
	chunks *rate.Limiter
	writer ports.DatagramWriter
	tp     *Throughput

	mu         sync.RWMutex
	fps        float64
	chunkDelay time.Duration
}

// NewPacer returns a Pacer writing to w. A zero fps or delay disables that cadence.
func NewPacer(w ports.DatagramWriter, fps float64, chunkDelay time.Duration, window time.Duration) *Pacer {
	p := &Pacer{
		frames: rate.NewLimiter(rate.Inf, 1),
		chunks: rate.NewLimiter(rate.Inf, 1),
		writer: w,
		tp:     NewThroughput(window),
	}
	p.SetPacing(fps, chunkDelay)
	return p
}

// SetPacing changes both cadences. Safe to call while sending.
func (p *Pacer) SetPacing(fps float64, chunkDelay time.Duration) {
	p.frames.SetLimit(frameLimit(fps))
	p.chunks.SetLimit(rate.Every(chunkDelay))

	p.mu.Lock()
	p.fps = fps
	p.chunkDelay = chunkDelay
	p.mu.Unlock()
}

// Pacing returns the current cadence settings.
func (p *Pacer) Pacing() (fps float64, chunkDelay time.Duration) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.fps, p.chunkDelay
}

func frameLimit(fps float64) rate.Limit {
	if fps <= 0 {
		return rate.Inf
	}
	return rate.Limit(fps)
}

// WaitFrame blocks until the next frame may start.
func (p *Pacer) WaitFrame(ctx context.Context) error {
	return p.frames.Wait(ctx)
}

// Transmit waits for the datagram cadence and writes datagram.
// Write failures are wrapped in domain.ErrTransport.
func (p *Pacer) Transmit(ctx context.Context, datagram []byte) error {
	if err := p.chunks.Wait(ctx); err != nil {
		return err
	}
	if err := p.writer.WriteDatagram(ctx, datagram); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}
	return nil
}

// FrameSent records a transmitted frame. It returns a snapshot when a
// measurement window closes.
func (p *Pacer) FrameSent(chunks int) (ThroughputSnapshot, bool) {
	return p.tp.Record(chunks)
}

// Throughput returns the last completed measurement window.
func (p *Pacer) Throughput() ThroughputSnapshot {
	return p.tp.Last()
}
