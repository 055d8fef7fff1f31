package wire

import (
	"encoding/binary"
	"fmt"
)

// ChunkHeader is the fixed header in front of every chunk's bytes.
type ChunkHeader struct {
	Index       uint32
	TotalChunks uint32
	Sequence    uint64
}

// AppendChunk appends the encoded chunk datagram to dst.
func AppendChunk(dst []byte, h ChunkHeader, data []byte) ([]byte, error) {
	if len(data) > MaxChunkPayload {
		return dst, ErrChunkTooLarge
	}
	dst = binary.BigEndian.AppendUint32(dst, h.Index)
	dst = binary.BigEndian.AppendUint32(dst, h.TotalChunks)
	dst = binary.BigEndian.AppendUint64(dst, h.Sequence)
	return append(dst, data...), nil
}

// EncodeChunk returns a freshly allocated chunk datagram.
func EncodeChunk(h ChunkHeader, data []byte) ([]byte, error) {
	return AppendChunk(make([]byte, 0, ChunkHeaderSize+len(data)), h, data)
}

// DecodeChunk parses a chunk datagram. The returned data aliases b.
func DecodeChunk(b []byte) (ChunkHeader, []byte, error) {
	if len(b) < ChunkHeaderSize {
		return ChunkHeader{}, nil, ErrShortDatagram
	}
	h := ChunkHeader{
		Index:       binary.BigEndian.Uint32(b[0:4]),
		TotalChunks: binary.BigEndian.Uint32(b[4:8]),
		Sequence:    binary.BigEndian.Uint64(b[8:16]),
	}
	if h.TotalChunks == 0 || h.TotalChunks > MaxTotalChunks {
		return ChunkHeader{}, nil, fmt.Errorf("%w: %d", ErrTooManyChunks, h.TotalChunks)
	}
	if h.Index >= h.TotalChunks {
		return ChunkHeader{}, nil, fmt.Errorf("%w: %d of %d", ErrBadChunkIndex, h.Index, h.TotalChunks)
	}
	return h, b[ChunkHeaderSize:], nil
}
