package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/mob852/framecast/internal/domain"
	"github.com/mob852/framecast/internal/ports"
	"github.com/mob852/framecast/pkg/integrity"
	"github.com/mob852/framecast/pkg/wire"
)

// DefaultSequenceLease is how far ahead of the current sequence number the
// persisted state points, so a crash never reuses a sequence number.
const DefaultSequenceLease = 1024

// SenderConfig contains configuration for the send loop.
type SenderConfig struct {
	SessionID     string
	SequenceLease uint64
}

// SendEventEmitter is called for every frame handled by the send loop.
type SendEventEmitter interface {
	OnFrameSent(seq uint64, chunks, envelopeBytes int, duration time.Duration)
	OnFrameSkipped(err error)
}

// SenderStats is a snapshot of the send loop counters.
type SenderStats struct {
	SessionID      string             `json:"session_id"`
	FramesSent     uint64             `json:"frames_sent"`
	ChunksSent     uint64             `json:"chunks_sent"`
	BytesSent      uint64             `json:"bytes_sent"`
	EncodeFailures uint64             `json:"encode_failures"`
	NextSequence   uint64             `json:"next_sequence"`
	Throughput     ThroughputSnapshot `json:"throughput"`
}

// Sender runs the capture, encode, fragment and pace loop.
type Sender struct {
	config    SenderConfig
	source    ports.FrameSource
	codec     ports.Codec
	frag      *Fragmenter
	pacer     *Pacer
	writer    ports.DatagramWriter
	stateRepo ports.StateRepository
	metrics   ports.SenderMetrics
	logger    ports.Logger
	emitter   SendEventEmitter
	now       func() time.Time

	mu       sync.Mutex
	stats    SenderStats
	state    domain.State
	leaseEnd uint64
}

// NewSender creates a sender. stateRepo, metrics and emitter may be nil.
// Run takes ownership of source and writer and closes both when it returns.
func NewSender(
	config SenderConfig,
	source ports.FrameSource,
	codec ports.Codec,
	frag *Fragmenter,
	pacer *Pacer,
	writer ports.DatagramWriter,
	stateRepo ports.StateRepository,
	metrics ports.SenderMetrics,
	logger ports.Logger,
	emitter SendEventEmitter,
) *Sender {
	if config.SequenceLease == 0 {
		config.SequenceLease = DefaultSequenceLease
	}
	if metrics == nil {
		metrics = ports.NoopMetrics{}
	}
	return &Sender{
		config:    config,
		source:    source,
		codec:     codec,
		frag:      frag,
		pacer:     pacer,
		writer:    writer,
		stateRepo: stateRepo,
		metrics:   metrics,
		logger:    logger,
		emitter:   emitter,
		now:       time.Now,
		stats:     SenderStats{SessionID: config.SessionID},
	}
}

// Close releases the source and writer of a sender whose Run was never
// called. Run releases them itself.
func (s *Sender) Close() error {
	serr := s.source.Close()
	if err := s.writer.Close(); err != nil {
		return err
	}
	return serr
}

// Run executes the send loop until ctx is canceled, the source is exhausted,
// the source fails (domain.ErrSourceUnavailable) or a datagram cannot be
// written (domain.ErrTransport).
func (s *Sender) Run(ctx context.Context) error {
	defer s.writer.Close()
	defer s.source.Close()

	seq := s.loadState(ctx)
	defer func() { s.saveState(context.WithoutCancel(ctx), seq, true) }()

	s.logger.Info("sender started",
		ports.String("session", s.config.SessionID),
		ports.Uint64("first_sequence", seq),
		ports.Int("max_chunk_size", s.frag.MaxChunkSize()),
	)

	for {
		if err := s.pacer.WaitFrame(ctx); err != nil {
			return ctxErr(ctx, err)
		}

		raw, err := s.source.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.logger.Info("frame source exhausted", ports.Uint64("next_sequence", seq))
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w: %v", domain.ErrSourceUnavailable, err)
		}

		start := s.now()
		chunks, size, err := s.sendFrame(ctx, seq, raw, start)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, domain.ErrTransport) {
				s.logger.Error("transport failure", ports.Err(err), ports.Uint64("sequence", seq))
				return err
			}
			s.skip(err)
			continue
		}

		s.record(seq, chunks, size, s.now().Sub(start))
		seq++
		if seq >= s.leaseEnd {
			s.saveState(ctx, seq, false)
		}
	}
}

// sendFrame encodes one raw frame and sends it under sequence number seq.
func (s *Sender) sendFrame(ctx context.Context, seq uint64, raw domain.RawFrame, now time.Time) (int, int, error) {
	payload, err := s.codec.Encode(raw.Image)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", domain.ErrEncode, err)
	}
	captured := raw.CapturedAt
	if captured.IsZero() {
		captured = now
	}
	msg := domain.NewFrameMessage(seq, captured, now, payload)
	envelope, err := wire.EncodeEnvelope(msg.ToEnvelope())
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", domain.ErrEncode, err)
	}
	chunks, err := s.frag.Send(ctx, seq, envelope, integrity.Checksum(envelope), s.pacer)
	if err != nil {
		if errors.Is(err, wire.ErrEnvelopeTooLarge) || errors.Is(err, wire.ErrTooManyChunks) {
			return 0, 0, fmt.Errorf("%w: %v", domain.ErrEncode, err)
		}
		return 0, 0, err
	}
	return chunks, len(envelope), nil
}

func (s *Sender) skip(err error) {
	s.mu.Lock()
	s.stats.EncodeFailures++
	s.mu.Unlock()

	s.metrics.EncodeFailed()
	s.logger.Warn("frame skipped", ports.Err(err))
	if s.emitter != nil {
		s.emitter.OnFrameSkipped(err)
	}
}

func (s *Sender) record(seq uint64, chunks, size int, d time.Duration) {
	s.mu.Lock()
	s.stats.FramesSent++
	s.stats.ChunksSent += uint64(chunks)
	s.stats.BytesSent += uint64(size)
	s.stats.NextSequence = seq + 1
	s.mu.Unlock()

	s.metrics.FrameSent(chunks, size)
	if snap, ok := s.pacer.FrameSent(chunks); ok {
		s.logger.Info("sending throughput",
			ports.Float64("fps", snap.FPS),
			ports.Float64("chunks_per_frame", snap.ChunksPerFrame),
			ports.Int("frames", snap.Frames),
		)
	}
	if s.emitter != nil {
		s.emitter.OnFrameSent(seq, chunks, size, d)
	}
}

// Stats returns a snapshot of the send counters.
func (s *Sender) Stats() SenderStats {
	s.mu.Lock()
	st := s.stats
	s.mu.Unlock()
	st.Throughput = s.pacer.Throughput()
	return st
}

func (s *Sender) loadState(ctx context.Context) uint64 {
	if s.stateRepo == nil {
		return 0
	}
	state, err := s.stateRepo.Load(ctx)
	if err != nil {
		s.logger.Error("failed to load state", ports.Err(err))
		// Continue with empty state
	}
	s.mu.Lock()
	s.state = state
	s.stats.NextSequence = state.NextSequence
	s.mu.Unlock()
	s.saveState(ctx, state.NextSequence, false)
	return state.NextSequence
}

// saveState persists next plus the sequence lease, or exactly next once the
// loop has ended.
func (s *Sender) saveState(ctx context.Context, next uint64, final bool) {
	if s.stateRepo == nil {
		return
	}
	s.mu.Lock()
	mark := next
	if !final {
		mark = next + s.config.SequenceLease
		if mark < next {
			mark = math.MaxUint64
		}
	}
	s.leaseEnd = mark
	state := s.state
	state.NextSequence = mark
	state.SessionID = s.config.SessionID
	state.FramesSent += s.stats.FramesSent
	state.UpdatedAt = s.now()
	s.mu.Unlock()

	if err := s.stateRepo.Save(ctx, state); err != nil {
		s.logger.Error("failed to save state", ports.Err(err))
	}
}

func ctxErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
