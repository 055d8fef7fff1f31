package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/mob852/framecast/pkg/integrity"
)

// Metadata describes one message ahead of its chunks.
// Field order is part of the wire format.
type Metadata struct {
	TotalChunks uint32 `msgpack:"total_chunks"`
	TotalSize   uint64 `msgpack:"total_size"`
	Checksum    []byte `msgpack:"checksum"`
	Sequence    uint64 `msgpack:"sequence"`
}

// Digest returns the checksum as a fixed-size digest.
func (m Metadata) Digest() (integrity.Digest, bool) {
	return integrity.FromBytes(m.Checksum)
}

// Validate checks the announced sizes against the package limits.
func (m Metadata) Validate() error {
	if len(m.Checksum) != integrity.Size {
		return ErrBadChecksum
	}
	if m.TotalChunks > MaxTotalChunks {
		return fmt.Errorf("%w: %d", ErrTooManyChunks, m.TotalChunks)
	}
	if m.TotalSize > MaxEnvelopeSize {
		return fmt.Errorf("%w: %d", ErrEnvelopeTooLarge, m.TotalSize)
	}
	// Every chunk carries at least one byte and at most MaxChunkPayload.
	if m.TotalSize < uint64(m.TotalChunks) || m.TotalSize > uint64(m.TotalChunks)*MaxChunkPayload {
		return fmt.Errorf("%w: %d bytes in %d chunks", ErrInconsistentSize, m.TotalSize, m.TotalChunks)
	}
	return nil
}

// EncodeMetadata returns the length-prefixed metadata datagram.
func EncodeMetadata(m Metadata) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	body, err := msgpack.Marshal(&m)
	if err != nil {
		return nil, fmt.Errorf("wire: marshal metadata: %w", err)
	}
	out := make([]byte, LengthPrefixSize, LengthPrefixSize+len(body))
	binary.BigEndian.PutUint32(out, uint32(len(body)))
	return append(out, body...), nil
}

// DecodeMetadata parses a metadata datagram.
func DecodeMetadata(b []byte) (Metadata, error) {
	if !looksLikeMetadata(b) {
		if len(b) <= LengthPrefixSize {
			return Metadata{}, ErrShortDatagram
		}
		if int(binary.BigEndian.Uint32(b)) != len(b)-LengthPrefixSize {
			return Metadata{}, ErrLengthMismatch
		}
		return Metadata{}, ErrNotMetadata
	}
	var m Metadata
	if err := msgpack.Unmarshal(b[LengthPrefixSize:], &m); err != nil {
		return Metadata{}, fmt.Errorf("%w: %v", ErrNotMetadata, err)
	}
	if err := m.Validate(); err != nil {
		return Metadata{}, err
	}
	return m, nil
}

func looksLikeMetadata(b []byte) bool {
	if len(b) <= LengthPrefixSize {
		return false
	}
	if int(binary.BigEndian.Uint32(b)) != len(b)-LengthPrefixSize {
		return false
	}
	return b[LengthPrefixSize] == metadataMarker
}
