package app

import (
	"context"
	"fmt"

	"github.com/mob852/framecast/internal/domain"
	"github.com/mob852/framecast/pkg/integrity"
	"github.com/mob852/framecast/pkg/wire"
)

// DefaultMaxChunkSize matches the largest chunk the capture scripts sent.
const DefaultMaxChunkSize = 65000

// Transmitter hands one datagram to the transport.
// Implementations must not retain datagram after returning.
type Transmitter interface {
	Transmit(ctx context.Context, datagram []byte) error
}

// Fragmenter splits envelopes into chunks. It keeps no state across frames.
type Fragmenter struct {
	maxChunkSize int
}

// NewFragmenter returns a Fragmenter producing chunks of at most maxChunkSize bytes.
func NewFragmenter(maxChunkSize int) (*Fragmenter, error) {
	if maxChunkSize <= 0 || maxChunkSize > wire.MaxChunkPayload {
		return nil, fmt.Errorf("%w: max chunk size %d not in (0, %d]",
			domain.ErrInvalidConfig, maxChunkSize, wire.MaxChunkPayload)
	}
	return &Fragmenter{maxChunkSize: maxChunkSize}, nil
}

// MaxChunkSize returns the configured chunk size limit.
func (f *Fragmenter) MaxChunkSize() int { return f.maxChunkSize }

// Fragment computes the metadata and chunks for one envelope.
// Chunk data aliases envelope.
func (f *Fragmenter) Fragment(seq uint64, envelope []byte, sum integrity.Digest) (domain.Metadata, []domain.Chunk, error) {
	if len(envelope) > wire.MaxEnvelopeSize {
		return domain.Metadata{}, nil, fmt.Errorf("%w: %d bytes", wire.ErrEnvelopeTooLarge, len(envelope))
	}
	total := (len(envelope) + f.maxChunkSize - 1) / f.maxChunkSize
	if total > wire.MaxTotalChunks {
		return domain.Metadata{}, nil, fmt.Errorf("%w: %d", wire.ErrTooManyChunks, total)
	}

	meta := domain.Metadata{
		Sequence:    seq,
		TotalChunks: uint32(total),
		TotalSize:   uint64(len(envelope)),
		Checksum:    sum,
	}
	chunks := make([]domain.Chunk, 0, total)
	for i := 0; i < total; i++ {
		start := i * f.maxChunkSize
		end := start + f.maxChunkSize
		if end > len(envelope) {
			end = len(envelope)
		}
		chunks = append(chunks, domain.Chunk{
			Sequence:    seq,
			Index:       uint32(i),
			TotalChunks: uint32(total),
			Data:        envelope[start:end],
		})
	}
	return meta, chunks, nil
}

// Send fragments envelope and hands the metadata datagram, then every chunk
// datagram in ascending index, to tx. It makes exactly one attempt and
// returns the number of chunks transmitted.
func (f *Fragmenter) Send(ctx context.Context, seq uint64, envelope []byte, sum integrity.Digest, tx Transmitter) (int, error) {
	meta, chunks, err := f.Fragment(seq, envelope, sum)
	if err != nil {
		return 0, err
	}

	packet, err := wire.EncodeMetadata(meta.ToWire())
	if err != nil {
		return 0, err
	}
	if err := tx.Transmit(ctx, packet); err != nil {
		return 0, err
	}

	buf := make([]byte, 0, wire.ChunkHeaderSize+f.maxChunkSize)
	for i, c := range chunks {
		buf, err = wire.AppendChunk(buf[:0], c.Header(), c.Data)
		if err != nil {
			return i, err
		}
		if err := tx.Transmit(ctx, buf); err != nil {
			return i, err
		}
	}
	return len(chunks), nil
}
